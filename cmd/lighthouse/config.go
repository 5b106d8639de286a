package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	flags "github.com/jessevdk/go-flags"
)

const appName = "lighthouse"

var defaultDataDir = btcutil.AppDataDir(appName, false)

// config holds everything loaded from the command line (no config file is
// read), mirroring lnd's own loadConfig shape: a single
// struct tagged for go-flags, defaulted, then sanity-checked once before
// the rest of the daemon ever sees it.
type config struct {
	Net          string   `long:"net" description:"which network to run on" choice:"regtest" choice:"test" choice:"main" default:"test"`
	DataDir      string   `long:"dir" description:"directory to store projects, pledges, and the engine database"`
	KeystorePath string   `long:"keystore" description:"path to the wallet adapter's persisted auth keys"`
	LocalNode    bool     `long:"local-node" description:"run without connecting to any Bitcoin peers, for regtest/local development"`
	ConnectPeers []string `long:"connect" description:"comma-separated ip:port of peers to connect to instead of DNS-seeded defaults"`
	UseTor       bool     `long:"use-tor" description:"tunnel all peer connections through a local Tor proxy"`
	TorProxy     string   `long:"tor-proxy" description:"host:port of the local SOCKS5 Tor proxy" default:"127.0.0.1:9050"`
	RelayAddr    string   `long:"relay-addr" description:"address the HTTP relay listens on" default:"0.0.0.0:8080"`
	LogLevel     string   `long:"log-level" description:"logging level" default:"info"`

	chainParams *chaincfg.Params
}

func loadConfig() (*config, error) {
	cfg := &config{
		DataDir: defaultDataDir,
	}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	if cfg.KeystorePath == "" {
		cfg.KeystorePath = filepath.Join(cfg.DataDir, "keystore")
	}

	var err error
	cfg.chainParams, err = netParams(cfg.Net)
	if err != nil {
		return nil, err
	}

	cfg.DataDir = filepath.Join(cfg.DataDir, cfg.Net)
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	var peers []string
	for _, arg := range cfg.ConnectPeers {
		for _, peer := range strings.Split(arg, ",") {
			if peer = strings.TrimSpace(peer); peer != "" {
				peers = append(peers, peer)
			}
		}
	}
	cfg.ConnectPeers = peers

	return cfg, nil
}

func netParams(net string) (*chaincfg.Params, error) {
	switch net {
	case "main":
		return &chaincfg.MainNetParams, nil
	case "test":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", net)
	}
}

func projectsDir(cfg *config) string {
	return filepath.Join(cfg.DataDir, "projects")
}

func engineDBPath(cfg *config) string {
	return filepath.Join(cfg.DataDir, "engine.db")
}

func lockFilePath(cfg *config) string {
	return filepath.Join(cfg.DataDir, "lighthouse.lock")
}

func certPath(cfg *config) string {
	return filepath.Join(cfg.DataDir, "tls.cert")
}

func keyPath(cfg *config) string {
	return filepath.Join(cfg.DataDir, "tls.key")
}
