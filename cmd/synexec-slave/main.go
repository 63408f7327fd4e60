// Command synexec-slave waits for a synexec-master broadcast and runs the
// command it configures, reporting completion timing back to the master.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/pflag"
	"github.com/synexec/synexec/internal/cliutil"
	"github.com/synexec/synexec/pkg/netutil"
	"github.com/synexec/synexec/pkg/slave"
)

var opt struct {
	Verbose   int
	Iface     string
	Port      uint16
	Session   uint32
	EnvFile   string
	ConfDir   string
	DebugAddr string
	Help      bool
}

// Defaults mirror the original implementation's
// SYNEXEC_SLAVE_BEACON_LOOPTIMEO_SEC and SYNEXEC_COMM_TIMEOUT constants.
const (
	beaconLoopTimeout = time.Second
	messageTimeout    = time.Second
	reconnectDelay    = 2 * time.Second
	defaultOutputFile = "/tmp/synexec.out"
)

func init() {
	pflag.CountVarP(&opt.Verbose, "verbose", "v", "Increase verbosity (may be used multiple times)")
	pflag.StringVarP(&opt.Iface, "iface", "i", "", "Use this interface instead of the default route")
	pflag.Uint16VarP(&opt.Port, "port", "p", 5165, "UDP/TCP port to use")
	pflag.Uint32VarP(&opt.Session, "session", "s", 0, "Session ID to isolate this run's messages")
	pflag.StringVarP(&opt.EnvFile, "env-file", "e", "", "Read configuration overrides from this KEY=VALUE file")
	pflag.StringVar(&opt.ConfDir, "confdir", "/tmp", "Directory for the per-process scratch configuration file")
	pflag.StringVar(&opt.DebugAddr, "debug-addr", "", "If set, serve /debug/metrics on this address")
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [options]\n\noptions:\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
}

func main() {
	pflag.Parse()
	if opt.Help {
		usage()
		os.Exit(2)
	}
	if pflag.NArg() != 0 {
		usage()
		os.Exit(2)
	}

	if opt.EnvFile != "" {
		env, err := cliutil.ReadEnvFile(opt.EnvFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: read env file: %v\n", err)
			os.Exit(1)
		}
		if v, ok := cliutil.LookupEnvList("SYNEXEC_IFACE", env); ok && !pflag.CommandLine.Changed("iface") {
			opt.Iface = v
		}
		if v, ok := cliutil.LookupEnvList("SYNEXEC_SESSION", env); ok && !pflag.CommandLine.Changed("session") {
			if n, err := strconv.ParseUint(v, 10, 32); err == nil {
				opt.Session = uint32(n)
			}
		}
	}

	log := cliutil.NewLogger(opt.Verbose)

	_, bcastIP, err := netutil.ResolveInterface(opt.Iface)
	if err != nil {
		log.Error().Err(err).Msg("resolve interface")
		os.Exit(1)
	}

	set := metrics.NewSet()
	m := slave.NewMetrics(set)

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

	cfg := slave.Config{
		Iface:             opt.Iface,
		Port:              opt.Port,
		Session:           opt.Session,
		ConfDir:           opt.ConfDir,
		OutputFile:        defaultOutputFile,
		BeaconLoopTimeout: beaconLoopTimeout,
		MessageTimeout:    messageTimeout,
		ReconnectDelay:    reconnectDelay,
		Logger:            log,
		Metrics:           m,
	}

	slot := slave.NewMasterSlot()

	beacon, err := slave.NewBeacon(opt.Iface, bcastIP, opt.Port, opt.Session, slot, log.With().Str("component", "beacon").Logger(), m)
	if err != nil {
		log.Error().Err(err).Msg("start beacon")
		os.Exit(1)
	}
	defer beacon.Close()

	worker := slave.NewWorker(cfg, slot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	stopCh := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stopCh)
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- beacon.Run(cfg.BeaconLoopTimeout, stopCh) }()
	go func() { errCh <- worker.Run(stopCh) }()

	if err := <-errCh; err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}
