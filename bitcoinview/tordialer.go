package bitcoinview

import (
	"net"

	"github.com/lightningnetwork/lnd/tor"
)

// TorConfig configures outbound peer dialing through a local Tor daemon,
// using only its SOCKS dial path so peer connections can be routed through
// Tor without the engine or BitcoinView knowing the difference.
type TorConfig struct {
	Enabled       bool
	SOCKSAddr     string
	SkipProxyIPs  bool
	StreamIsolate bool
}

// DialerFor returns the net.Dial-compatible function NeutrinoConfig's
// ConnectPeers dialer should use: a direct dialer when Tor is disabled, or
// one routed through the configured SOCKS proxy otherwise.
func DialerFor(cfg TorConfig) func(network, addr string) (net.Conn, error) {
	if !cfg.Enabled {
		return net.Dial
	}

	dialer := &tor.ProxyNet{
		SOCKS:           cfg.SOCKSAddr,
		StreamIsolation: cfg.StreamIsolate,
	}
	return func(network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr, tor.DefaultConnTimeout)
	}
}
