package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/lightningnetwork/lighthouse/bitcoinview"
	"github.com/lightningnetwork/lighthouse/build"
	"github.com/lightningnetwork/lighthouse/diskman"
	"github.com/lightningnetwork/lighthouse/engine"
	"github.com/lightningnetwork/lighthouse/relay"
	"github.com/lightningnetwork/lighthouse/store"
	"github.com/lightningnetwork/lighthouse/walletadapter"
)

// p2wpkhOutputSize is the size (bytes) txrules.GetDustThreshold assumes for
// the standard pay-to-witness-pubkey-hash output a pledge's change/claim
// outputs use, the same figure lnd's wallet code assumes for its
// own dust calculations.
const p2wpkhOutputSize = 31

// defaultRelayFeePerKB matches Bitcoin Core's own default minimum relay fee.
var defaultRelayFeePerKB = btcutil.Amount(1000)

// node collects every long-lived component the combined daemon runs,
// mirroring server.go's own posture of holding each subsystem as a field
// and starting/stopping them in a fixed order.
type node struct {
	cfg *config

	disk   *diskman.Manager
	view   bitcoinview.View
	store  *store.Store
	wallet walletadapter.Adapter
	engine *engine.Engine
	relay  *relay.Server
}

// newNode constructs every component without starting any of them, so a
// configuration error surfaces before anything touches the network or
// disk beyond the already-created data directory.
func newNode(cfg *config) (*node, error) {
	if err := os.MkdirAll(projectsDir(cfg), 0700); err != nil {
		return nil, fmt.Errorf("creating projects directory: %w", err)
	}

	disk, err := diskman.New([]string{projectsDir(cfg)})
	if err != nil {
		return nil, fmt.Errorf("starting disk manager: %w", err)
	}

	st, err := store.Open(engineDBPath(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var view bitcoinview.View
	if cfg.LocalNode {
		build.Log.Infof("node: --local-node set, running without a BitcoinView")
	} else {
		dialer := bitcoinview.DialerFor(bitcoinview.TorConfig{
			Enabled:   cfg.UseTor,
			SOCKSAddr: cfg.TorProxy,
		})
		nv, err := bitcoinview.NewNeutrinoView(bitcoinview.NeutrinoConfig{
			ChainParams:  cfg.chainParams,
			DataDir:      cfg.DataDir,
			ConnectPeers: cfg.ConnectPeers,
			Dialer:       dialer,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("constructing neutrino view: %w", err)
		}
		view = nv
	}

	wallet := walletadapter.NewMemory()
	savedKeys, err := walletadapter.LoadKeystore(cfg.KeystorePath)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("loading keystore: %w", err)
	}
	for id, priv := range savedKeys {
		wallet.SetAuthKey(id, priv)
	}

	dustThreshold := int64(txrules.GetDustThreshold(p2wpkhOutputSize, defaultRelayFeePerKB))

	eng := engine.New(engine.Config{
		ChainParams: cfg.chainParams,
		DustSatoshi: dustThreshold,
		View:        view,
		Wallet:      wallet,
		Disk:        disk,
		Store:       st,
	})

	tlsConfig, err := relay.EnsureCert(certPath(cfg), keyPath(cfg), nil, nil)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("provisioning relay TLS cert: %w", err)
	}
	if cfg.LocalNode {
		// A regtest/local node has no public audience for its relay;
		// skip TLS so it's simple to curl against during development.
		tlsConfig = nil
	}

	srv := relay.New(relay.Config{
		Addr:   cfg.RelayAddr,
		TLS:    tlsConfig,
		Engine: eng,
	})

	return &node{
		cfg:    cfg,
		disk:   disk,
		view:   view,
		store:  st,
		wallet: wallet,
		engine: eng,
		relay:  srv,
	}, nil
}

// start brings up every component in the order server.go uses for its own
// subsystems: storage first, then the network-facing pieces, then
// whatever serves external requests.
func (n *node) start() error {
	if err := n.disk.Start(); err != nil {
		return fmt.Errorf("starting disk manager: %w", err)
	}
	if n.view != nil {
		if err := n.view.Start(); err != nil {
			return fmt.Errorf("starting bitcoin view: %w", err)
		}
	}
	if err := n.engine.Start(); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	go func() {
		if err := n.relay.ListenAndServe(); err != nil {
			build.Log.Errorf("node: relay stopped: %v", err)
		}
	}()

	return nil
}

// stop tears components down in reverse start order.
func (n *node) stop() {
	if err := n.engine.Stop(); err != nil {
		build.Log.Errorf("node: stopping engine: %v", err)
	}
	if n.view != nil {
		if err := n.view.Stop(); err != nil {
			build.Log.Errorf("node: stopping bitcoin view: %v", err)
		}
	}
	if err := n.disk.Stop(); err != nil {
		build.Log.Errorf("node: stopping disk manager: %v", err)
	}
	if mem, ok := n.wallet.(*walletadapter.Memory); ok {
		if err := walletadapter.SaveKeystore(n.cfg.KeystorePath, mem.Keys()); err != nil {
			build.Log.Errorf("node: saving keystore: %v", err)
		}
	}
	if err := n.store.Close(); err != nil {
		build.Log.Errorf("node: closing store: %v", err)
	}
}
