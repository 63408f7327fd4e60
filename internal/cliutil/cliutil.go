// Package cliutil carries the small pieces of CLI plumbing shared by
// synexec-master and synexec-slave: verbosity-to-log-level mapping, an
// optional env-file override, and the re-exec trick used to daemonize.
package cliutil

import (
	"os"

	"github.com/hashicorp/go-envparse"
	"github.com/rs/zerolog"
)

// NewLogger builds a console-writer logger whose level is derived from a
// repeatable -v flag: 0=warn, 1=info, 2=debug, 3+=trace, matching the
// original implementation's verbose global (thresholds 0-3).
func NewLogger(verbosity int) zerolog.Logger {
	level := zerolog.WarnLevel
	switch {
	case verbosity >= 3:
		level = zerolog.TraceLevel
	case verbosity == 2:
		level = zerolog.DebugLevel
	case verbosity == 1:
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// ReadEnvFile parses a KEY=VALUE env file (as produced by most process
// supervisors) into the same []string form as os.Environ(), so it can be
// searched with the usual k=v scanning instead of calling os.Setenv.
func ReadEnvFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := envparse.Parse(f)
	if err != nil {
		return nil, err
	}

	r := make([]string, 0, len(m))
	for k, v := range m {
		r = append(r, k+"="+v)
	}
	return r, nil
}

// LookupEnvList searches each env list in order for k=v, first match wins.
func LookupEnvList(k string, lists ...[]string) (string, bool) {
	prefix := k + "="
	for _, l := range lists {
		for _, kv := range l {
			if len(kv) > len(prefix) && kv[:len(prefix)] == prefix {
				return kv[len(prefix):], true
			}
		}
	}
	return "", false
}
