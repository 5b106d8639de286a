package main

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/urfave/cli"
)

const (
	defaultTLSCertFilename = "tls.cert"
)

var (
	lighthouseHomeDir  = btcutil.AppDataDir("lighthouse", false)
	defaultTLSCertPath = filepath.Join(lighthouseHomeDir, "test", defaultTLSCertFilename)
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[lighthouse-cli] %v\n", err)
	os.Exit(1)
}

// httpClientFor builds an http.Client trusting only the relay's own
// certificate, the same posture getClientConn takes toward the daemon's
// self-signed RPC cert rather than the system trust store.
func httpClientFor(ctx *cli.Context) *http.Client {
	if ctx.GlobalBool("insecure") {
		return &http.Client{Timeout: 30 * time.Second}
	}

	certPath := cleanAndExpandPath(ctx.GlobalString("tlscertpath"))
	pemBytes, err := os.ReadFile(certPath)
	if err != nil {
		fatal(fmt.Errorf("reading relay TLS cert: %w", err))
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		fatal(fmt.Errorf("no certificates found in %s", certPath))
	}

	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "lighthouse-cli"
	app.Version = "0.1"
	app.Usage = "control plane for a lighthouse assurance-contract node"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "relay",
			Value: "localhost:8080",
			Usage: "host:port of the lighthouse HTTP relay",
		},
		cli.StringFlag{
			Name:  "tlscertpath",
			Value: defaultTLSCertPath,
			Usage: "path to the relay's TLS certificate",
		},
		cli.BoolFlag{
			Name:  "insecure",
			Usage: "talk to the relay over plain HTTP instead of TLS (plaintext relays, local dev)",
		},
		cli.StringFlag{
			Name:  "authkey",
			Usage: "path to a hex-encoded secp256k1 private key, for signed requests",
		},
	}
	app.Commands = []cli.Command{
		statusCommand,
		listPledgesCommand,
		createPledgeCommand,
		claimCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

// cleanAndExpandPath expands a leading ~ and environment variables, the
// same helper lncli carries for its own path flags.
func cleanAndExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' && (len(path) == 1 || path[1] == '/') {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	return os.ExpandEnv(path)
}
