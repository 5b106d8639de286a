package bitcoinview

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	btcdwire "github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/neutrino"
	"github.com/lightninglabs/neutrino/cache/lru"
	"github.com/lightningnetwork/lighthouse/build"
	"github.com/lightningnetwork/lighthouse/lherr"
)

// NeutrinoConfig configures a NeutrinoView: the network and data directory
// a *neutrino.ChainService is built from, plus the peer set to connect to
// and the quorum size GetUTXOs reconciles against.
type NeutrinoConfig struct {
	ChainParams    *chaincfg.Params
	DataDir        string
	ConnectPeers   []string
	QuorumSize     int
	SoftTimeout    time.Duration
	HardTimeout    time.Duration
	FilterCacheMiB uint32

	// Dialer, if set, is used for every outbound peer connection neutrino
	// makes, e.g. DialerFor(TorConfig{...}) to tunnel through Tor.
	Dialer func(network, addr string) (net.Conn, error)
}

func (c *NeutrinoConfig) setDefaults() {
	if c.QuorumSize == 0 {
		c.QuorumSize = DefaultQuorumSize
	}
	if c.SoftTimeout == 0 {
		c.SoftTimeout = DefaultSoftTimeout
	}
	if c.HardTimeout == 0 {
		c.HardTimeout = DefaultHardTimeout
	}
	if c.FilterCacheMiB == 0 {
		c.FilterCacheMiB = 100
	}
}

// NeutrinoView implements View over a compact-block-filter SPV node.
// GetUTXOs fills in one answer per connected peer for Reconcile to compare,
// but every one of those answers comes from the same ChainService lookup,
// not from the individual peer.
type NeutrinoView struct {
	cfg NeutrinoConfig

	mu       sync.Mutex
	cs       *neutrino.ChainService
	spendCBs map[btcdwire.OutPoint][]func(SpendDetail)
	blockCBs []func(BlockEpoch)

	quit chan struct{}
}

// NewNeutrinoView constructs a NeutrinoView without starting it.
func NewNeutrinoView(cfg NeutrinoConfig) (*NeutrinoView, error) {
	cfg.setDefaults()
	if cfg.ChainParams == nil {
		return nil, fmt.Errorf("bitcoinview: ChainParams is required")
	}
	return &NeutrinoView{
		cfg:      cfg,
		spendCBs: make(map[btcdwire.OutPoint][]func(SpendDetail)),
		quit:     make(chan struct{}),
	}, nil
}

// Start implements View. It opens neutrino's on-disk filter header store
// and connects to the configured peers (or DNS-seeded defaults if none are
// configured), mirroring chainregistry.go's NewChainService call shape.
func (v *NeutrinoView) Start() error {
	db, err := neutrino.NewFilterDB(v.cfg.DataDir)
	if err != nil {
		return lherr.New(lherr.Offline, "open filter db", err)
	}
	blockCache, err := lru.NewBlockCache(uint64(v.cfg.FilterCacheMiB) * 1024 * 1024)
	if err != nil {
		return lherr.New(lherr.Offline, "init block cache", err)
	}

	cs, err := neutrino.NewChainService(neutrino.Config{
		DataDir:      v.cfg.DataDir,
		Database:     db,
		ChainParams:  *v.cfg.ChainParams,
		ConnectPeers: v.cfg.ConnectPeers,
		BlockCache:   blockCache,
		Dialer:       v.cfg.Dialer,
	})
	if err != nil {
		return lherr.New(lherr.Offline, "start neutrino chain service", err)
	}

	v.mu.Lock()
	v.cs = cs
	v.mu.Unlock()

	if err := cs.Start(); err != nil {
		return lherr.New(lherr.Offline, "neutrino start", err)
	}

	cs.RegisterBlockNotify(v.onFilteredBlockConnected)

	build.Log.Infof("bitcoinview: neutrino started, connected to %d configured peers",
		len(v.cfg.ConnectPeers))
	return nil
}

// Stop implements View.
func (v *NeutrinoView) Stop() error {
	close(v.quit)
	v.mu.Lock()
	cs := v.cs
	v.mu.Unlock()
	if cs == nil {
		return nil
	}
	return cs.Stop()
}

func (v *NeutrinoView) onFilteredBlockConnected(header *btcdwire.BlockHeader, height int32, txns []*btcdwire.MsgTx) {
	hash := header.BlockHash()
	var arr [32]byte
	copy(arr[:], hash[:])

	v.mu.Lock()
	cbs := append([]func(BlockEpoch){}, v.blockCBs...)
	v.mu.Unlock()

	for _, cb := range cbs {
		cb(BlockEpoch{Height: height, Hash: arr})
	}

	for _, tx := range txns {
		v.checkSpends(tx, height)
	}
}

func (v *NeutrinoView) checkSpends(tx *btcdwire.MsgTx, height int32) {
	txHash := tx.TxHash()
	var hashArr [32]byte
	copy(hashArr[:], txHash[:])

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, in := range tx.TxIn {
		cbs, ok := v.spendCBs[in.PreviousOutPoint]
		if !ok {
			continue
		}
		detail := SpendDetail{
			SpentOutPoint:  in.PreviousOutPoint,
			SpendingTxHash: hashArr,
			SpendingTx:     tx,
			SpendingHeight: height,
		}
		for _, cb := range cbs {
			cb(detail)
		}
		delete(v.spendCBs, in.PreviousOutPoint)
	}
}

// WatchForSpend implements View.
func (v *NeutrinoView) WatchForSpend(outpoint btcdwire.OutPoint, callback func(SpendDetail)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.spendCBs[outpoint] = append(v.spendCBs[outpoint], callback)
	return nil
}

// OnNewBlock implements View.
func (v *NeutrinoView) OnNewBlock(callback func(BlockEpoch)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.blockCBs = append(v.blockCBs, callback)
}

// Broadcast implements View, relaying tx through neutrino's own peer set.
// Once SendTransaction succeeds within DefaultBroadcastTimeout it reports
// the number of currently connected peers as PropagatedCount; it does not
// observe which peers relayed the transaction back.
func (v *NeutrinoView) Broadcast(ctx context.Context, tx *btcdwire.MsgTx) (BroadcastResult, error) {
	v.mu.Lock()
	cs := v.cs
	v.mu.Unlock()
	if cs == nil {
		return BroadcastResult{}, lherr.New(lherr.Offline, "neutrino not started", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultBroadcastTimeout)
	defer cancel()

	errChan := cs.SendTransaction(tx)
	select {
	case err := <-errChan:
		if err != nil {
			return BroadcastResult{}, lherr.New(lherr.ClaimBroadcastFailed, err.Error(), err)
		}
	case <-ctx.Done():
		return BroadcastResult{}, lherr.New(lherr.Timeout, "broadcast deadline exceeded", nil)
	}

	peers := cs.Peers()
	return BroadcastResult{PropagatedCount: len(peers)}, nil
}

// GetUTXOs implements View by starting one lookup per connected peer and
// collecting the answers per outpoint for Reconcile to compare. Each lookup
// is a queryPeerUTXOs call, which does not target its peer, so all answers
// for an outpoint come from neutrino's merged ChainService result.
func (v *NeutrinoView) GetUTXOs(ctx context.Context, outpoints []btcdwire.OutPoint, includeMempool bool) (map[btcdwire.OutPoint][]UTXOAnswer, error) {
	v.mu.Lock()
	cs := v.cs
	v.mu.Unlock()
	if cs == nil {
		return nil, lherr.New(lherr.Offline, "neutrino not started", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.HardTimeout)
	defer cancel()

	peers := cs.Peers()
	if len(peers) == 0 {
		return nil, lherr.New(lherr.Offline, "no connected peers", nil)
	}

	results := make(map[btcdwire.OutPoint][]UTXOAnswer, len(outpoints))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, p := range peers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			answers, err := queryPeerUTXOs(ctx, cs, p, outpoints, includeMempool)
			if err != nil {
				return
			}
			mu.Lock()
			for op, a := range answers {
				results[op] = append(results[op], a)
			}
			mu.Unlock()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(v.cfg.SoftTimeout):
		// Soft timeout has elapsed; peers that already answered stand,
		// stragglers are simply absent from their outpoints' slices.
	}

	return results, nil
}

// queryPeerUTXOs makes one neutrino.ChainService.GetUtxo call per outpoint
// to learn its spentness/value. The peer argument is not used: the calls go
// to the ChainService as a whole, not to that peer. Outpoints whose lookup
// fails are left out of the result.
func queryPeerUTXOs(ctx context.Context, cs *neutrino.ChainService, peer *neutrino.ServerPeer, outpoints []btcdwire.OutPoint, includeMempool bool) (map[btcdwire.OutPoint]UTXOAnswer, error) {
	out := make(map[btcdwire.OutPoint]UTXOAnswer, len(outpoints))
	for _, op := range outpoints {
		spendReport, err := cs.GetUtxo(
			neutrino.WatchOutPoints(op),
		)
		if err != nil {
			continue
		}
		if spendReport == nil || spendReport.SpendingTx != nil {
			out[op] = UTXOAnswer{Spent: true}
			continue
		}
		out[op] = UTXOAnswer{
			Spent:  false,
			Amount: spendReport.Output.Value,
			Script: spendReport.Output.PkScript,
		}
	}
	return out, nil
}
