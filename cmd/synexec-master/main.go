// Command synexec-master distributes a configuration to a fleet of
// synexec-slave peers and runs them in lock-step.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/pflag"
	"github.com/synexec/synexec/internal/cliutil"
	"github.com/synexec/synexec/pkg/master"
)

var opt struct {
	Verbose   int
	Daemonize bool
	Iface     string
	Port      uint16
	Session   uint32
	EnvFile   string
	DebugAddr string
	Help      bool
}

// Defaults mirror the original implementation's
// SYNEXEC_MASTER_COMM_PROBE_WAIT and SYNEXEC_COMM_TIMEOUT constants.
const (
	acceptTimeout  = time.Second
	messageTimeout = time.Second
)

func init() {
	pflag.CountVarP(&opt.Verbose, "verbose", "v", "Increase verbosity (may be used multiple times)")
	pflag.BoolVarP(&opt.Daemonize, "daemon", "d", false, "Run as a daemon; stdout/stderr are redirected to a log file")
	pflag.StringVarP(&opt.Iface, "iface", "i", "", "Use this interface instead of the default route")
	pflag.Uint16VarP(&opt.Port, "port", "p", 5165, "UDP/TCP port to use")
	pflag.Uint32VarP(&opt.Session, "session", "s", 0, "Session ID to isolate this run's messages")
	pflag.StringVarP(&opt.EnvFile, "env-file", "e", "", "Read configuration overrides from this KEY=VALUE file")
	pflag.StringVar(&opt.DebugAddr, "debug-addr", "", "If set, serve /debug/metrics on this address")
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [options] <slaves> <conf>\n\noptions:\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
}

func main() {
	pflag.Parse()
	if opt.Help {
		usage()
		os.Exit(2)
	}
	if pflag.NArg() != 2 {
		usage()
		os.Exit(2)
	}

	required, err := strconv.Atoi(pflag.Arg(0))
	if err != nil || required <= 0 {
		fmt.Fprintln(os.Stderr, "fatal: <slaves> must be a positive integer")
		os.Exit(2)
	}

	conf, err := os.ReadFile(pflag.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: read configuration file: %v\n", err)
		os.Exit(1)
	}

	if opt.EnvFile != "" {
		env, err := cliutil.ReadEnvFile(opt.EnvFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: read env file: %v\n", err)
			os.Exit(1)
		}
		applyEnvOverrides(env)
	}

	if opt.Daemonize {
		if err := cliutil.Daemonize("/tmp/synexec-master.log"); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: daemonize: %v\n", err)
			os.Exit(1)
		}
	}

	log := cliutil.NewLogger(opt.Verbose)
	set := metrics.NewSet()
	m := master.NewMetrics(set)

	if opt.DebugAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/metrics", func(w http.ResponseWriter, r *http.Request) {
			set.WritePrometheus(w)
		})
		go func() {
			log.Warn().Str("addr", opt.DebugAddr).Msg("serving debug metrics")
			if err := http.ListenAndServe(opt.DebugAddr, mux); err != nil {
				log.Error().Err(err).Msg("debug server exited")
			}
		}()
	}

	cfg := master.Config{
		Iface:          opt.Iface,
		Port:           opt.Port,
		Session:        opt.Session,
		Required:       required,
		Conf:           conf,
		AcceptTimeout:  acceptTimeout,
		MessageTimeout: messageTimeout,
		Logger:         log,
		Metrics:        m,
	}

	if err := master.Run(cfg); err != nil {
		log.Error().Err(err).Msg("session failed")
		os.Exit(1)
	}
}

// applyEnvOverrides lets an env file override flags not explicitly given
// on the command line, matching atlas's "env file takes precedence over
// the ambient environment, flags still win if set" layering.
func applyEnvOverrides(env []string) {
	if v, ok := cliutil.LookupEnvList("SYNEXEC_IFACE", env); ok && !pflag.CommandLine.Changed("iface") {
		opt.Iface = v
	}
	if v, ok := cliutil.LookupEnvList("SYNEXEC_SESSION", env); ok && !pflag.CommandLine.Changed("session") {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			opt.Session = uint32(n)
		}
	}
}
