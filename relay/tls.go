package relay

import (
	"crypto/tls"
	"os"
	"time"

	"github.com/lightningnetwork/lnd/cert"
)

// certValidity matches lnd's own node-to-node TLS certificate
// lifetime default.
const certValidity = 14 * 30 * 24 * time.Hour

// EnsureCert generates a self-signed certificate/key pair at certPath/
// keyPath if one doesn't already exist, and returns a tls.Config ready to
// hand to an http.Server.
func EnsureCert(certPath, keyPath string, extraIPs, extraDomains []string) (*tls.Config, error) {
	if !fileExists(certPath) || !fileExists(keyPath) {
		certBytes, keyBytes, err := cert.GenCertPair(
			"lighthouse autogenerated cert", extraIPs, extraDomains,
			false, certValidity,
		)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(certPath, certBytes, 0644); err != nil {
			return nil, err
		}
		if err := os.WriteFile(keyPath, keyBytes, 0600); err != nil {
			return nil, err
		}
	}

	keyPair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{keyPair},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
