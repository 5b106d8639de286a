package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btclog"
	"github.com/lightningnetwork/lighthouse/build"
)

// Exit codes, matching the combined node's contract: 0 normal, 1
// configuration error, 2 already-running.
const (
	exitOK = iota
	exitConfigError
	exitAlreadyRunning
)

func main() {
	os.Exit(lighthouseMain())
}

// lighthouseMain is the true entry point, split from main so deferred
// cleanups run even when a caller below calls os.Exit indirectly via a
// returned code, mirroring lndMain's own separation from main().
func lighthouseMain() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	if err := build.SetupLoggers("", parseLevel(cfg.LogLevel)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	lock, err := acquireLock(lockFilePath(cfg))
	if err != nil {
		build.Log.Errorf("node: %v", err)
		return exitAlreadyRunning
	}
	defer lock.release()

	n, err := newNode(cfg)
	if err != nil {
		build.Log.Errorf("node: %v", err)
		return exitConfigError
	}

	if err := n.start(); err != nil {
		build.Log.Errorf("node: %v", err)
		return exitConfigError
	}

	build.Log.Infof("node: lighthouse running on %s, relay at %s", cfg.Net, cfg.RelayAddr)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	build.Log.Infof("node: shutting down")
	n.stop()
	return exitOK
}

func parseLevel(level string) btclog.Level {
	l, ok := btclog.LevelFromString(level)
	if !ok {
		return btclog.InfoLvl
	}
	return l
}
