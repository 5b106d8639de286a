// Package engine implements the single-threaded cooperative event loop
// that owns every mutation of project and pledge state. One goroutine
// reads from a buffered `queue chan event`, type-switches on the event,
// and calls an unexported handleX method; outbound network operations
// (UTXO lookups, broadcasts) are issued from a handler as a goroutine
// whose result is re-enqueued as a completion event rather than blocking
// the loop goroutine itself.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lighthouse/bitcoinview"
	"github.com/lightningnetwork/lighthouse/build"
	"github.com/lightningnetwork/lighthouse/diskman"
	"github.com/lightningnetwork/lighthouse/lherr"
	"github.com/lightningnetwork/lighthouse/mirror"
	"github.com/lightningnetwork/lighthouse/project"
	"github.com/lightningnetwork/lighthouse/store"
	"github.com/lightningnetwork/lighthouse/walletadapter"
	lhwire "github.com/lightningnetwork/lighthouse/wire"
)

// Config collects everything the engine needs to run.
type Config struct {
	ChainParams *chaincfg.Params
	DustSatoshi int64
	QuorumSize  int
	FeePolicy   project.FeePolicy

	View   bitcoinview.View
	Wallet walletadapter.Adapter
	Disk   *diskman.Manager
	Store  *store.Store
}

// pledgeSnapshot is the read-only view of one pledge a projectStatusSnapshot
// carries; relay and CLI consumers read these off a Mirror, never the
// engine's live pledgeEntry.
type pledgeSnapshot struct {
	Identity    [32]byte
	Wire        *lhwire.Pledge
	CheckStatus lherr.Kind
	CheckOK     bool
	Revoked     bool
}

// projectStatusSnapshot is the Mirror-published read model of one project,
// the engine's answer to "what does this project currently look like" for
// both the HTTP relay and any local CLI/UI.
type projectStatusSnapshot struct {
	IDHash       [32]byte
	Title        string
	GoalSatoshi  int64
	ValuePledged int64
	Status       StateKind
	ClaimTxHash  *[32]byte
	OpenPledges  []pledgeSnapshot
	AuthPubkey   *btcec.PublicKey
}

// Engine is the assurance-contract crowdfunding state machine.
type Engine struct {
	cfg Config

	queue chan event
	quit  chan struct{}
	wg    sync.WaitGroup

	projects      map[[32]byte]*projectState
	diskPathToID  map[string][32]byte
	orphanPledges map[[32]byte][]pledgeAppeared

	ts *tickSource

	Statuses *mirror.Writer[[32]byte, projectStatusSnapshot]
}

// New constructs an Engine. Call Start to begin processing events.
func New(cfg Config) *Engine {
	if cfg.QuorumSize == 0 {
		cfg.QuorumSize = bitcoinview.DefaultQuorumSize
	}
	if cfg.FeePolicy == nil {
		cfg.FeePolicy = project.ZeroFeePolicy{}
	}
	return &Engine{
		cfg:           cfg,
		queue:         make(chan event, 256),
		quit:          make(chan struct{}),
		projects:      make(map[[32]byte]*projectState),
		diskPathToID:  make(map[string][32]byte),
		orphanPledges: make(map[[32]byte][]pledgeAppeared),
		ts:            newTickSource(),
		Statuses:      mirror.NewWriter[[32]byte, projectStatusSnapshot](),
	}
}

// Start wires DiskManager's mirrors and the wallet/view callbacks into the
// engine's own queue, then launches the event loop goroutine.
func (e *Engine) Start() error {
	e.bridgeDiskManager()
	e.bridgeWallet()
	e.bridgeView()

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.eventLoop()
	}()
	go func() {
		defer e.wg.Done()
		e.runTicker(e.ts)
	}()

	build.Log.Infof("engine: started")
	return nil
}

// Stop drains and halts the event loop.
func (e *Engine) Stop() error {
	close(e.quit)
	e.wg.Wait()
	return nil
}

func (e *Engine) bridgeDiskManager() {
	if e.cfg.Disk == nil {
		return
	}
	projMirror := e.cfg.Disk.Projects.NewMirror(mirror.Inline)
	projMirror.OnChange(func(d mirror.Delta[string, diskman.ProjectFile]) {
		switch d.Kind {
		case mirror.Added, mirror.Replaced:
			raw, err := lhwire.EncodeFramed(d.Value.Raw)
			if err != nil {
				build.Log.Errorf("engine: re-encoding disk project %s: %v", d.Key, err)
				return
			}
			e.queue <- projectAppeared{path: d.Key, bytes: raw}
		case mirror.Removed:
			// Path alone doesn't carry the id hash once removed; it is
			// looked up in diskPathToID here, as the delta arrives.
			e.queue <- projectDisappeared{idHash: e.diskPathToID[d.Key]}
		}
	})

	pledgeMirror := e.cfg.Disk.Pledges.NewMirror(mirror.Inline)
	pledgeMirror.OnChange(func(d mirror.Delta[string, diskman.PledgeFile]) {
		if d.Kind != mirror.Added && d.Kind != mirror.Replaced {
			return
		}
		if d.Value.Raw == nil {
			return
		}
		raw, err := lhwire.EncodeFramed(d.Value.Raw)
		if err != nil {
			build.Log.Errorf("engine: re-encoding disk pledge %s: %v", d.Key, err)
			return
		}
		e.queue <- pledgeAppeared{source: SourceDisk, bytes: raw, path: d.Key}
	})
}

func (e *Engine) bridgeWallet() {
	if e.cfg.Wallet == nil {
		return
	}
	e.cfg.Wallet.OnStubSpent(func(spend walletadapter.StubSpend) {
		e.queue <- pledgeRevoked{pledgeIdentity: spend.PledgeIdentity}
	})
}

func (e *Engine) bridgeView() {
	if e.cfg.View == nil {
		return
	}
	e.cfg.View.OnNewBlock(func(ep bitcoinview.BlockEpoch) {
		e.queue <- blockTipChanged{height: ep.Height, hash: ep.Hash}
	})
}

func (e *Engine) eventLoop() {
	for {
		select {
		case ev := <-e.queue:
			e.dispatch(ev)
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) dispatch(ev event) {
	switch msg := ev.(type) {
	case projectAppeared:
		e.handleProjectAppeared(msg)
	case projectDisappeared:
		e.handleProjectDisappeared(msg)
	case pledgeAppeared:
		e.handlePledgeAppeared(msg)
	case pledgeRevoked:
		e.handlePledgeRevoked(msg)
	case blockTipChanged:
		e.handleBlockTipChanged(msg)
	case refreshRequested:
		e.handleRefreshRequested(msg)
	case claimRequested:
		e.handleClaimRequested(msg)
	case utxoCheckComplete:
		e.handleUTXOCheckComplete(msg)
	case broadcastComplete:
		e.handleBroadcastComplete(msg)
	case peerChurnTick:
		e.handlePeerChurnTick()
	default:
		build.Log.Warnf("engine: unknown event type %T", ev)
	}
}

// SubmitPledge enqueues a pledge from source and blocks until the engine
// has processed it, for callers (HTTP relay) that need a synchronous
// result. source must be SourceHTTPUpload or SourceWalletOwn; disk-sourced
// pledges flow in via bridgeDiskManager instead.
func (e *Engine) SubmitPledge(source PledgeSource, raw []byte) (*projectStatusSnapshot, error) {
	resp := make(chan pledgeOutcome, 1)
	e.queue <- pledgeAppeared{source: source, bytes: raw, resp: resp}
	out := <-resp
	return out.status, out.err
}

// RequestRefresh enqueues a targeted UTXO recheck for one project.
func (e *Engine) RequestRefresh(projectIDHash [32]byte) {
	e.queue <- refreshRequested{projectIDHash: projectIDHash}
}

// RequestClaim enqueues a claim attempt and blocks for its outcome.
func (e *Engine) RequestClaim(projectIDHash [32]byte) ([32]byte, error) {
	resp := make(chan claimOutcome, 1)
	e.queue <- claimRequested{projectIDHash: projectIDHash, resp: resp}
	out := <-resp
	return out.claimTxHash, out.err
}

// publishSnapshot re-derives and republishes a project's read model,
// called by handlers after every state mutation.
func (e *Engine) publishSnapshot(ps *projectState) {
	snap := projectStatusSnapshot{
		IDHash:       ps.IDHash,
		Title:        ps.Project.Title(),
		GoalSatoshi:  ps.Project.GoalSatoshi(),
		ValuePledged: ps.valuePledged(),
		Status:       ps.Status,
		ClaimTxHash:  ps.ClaimTx,
		AuthPubkey:   ps.Project.AuthPubkey(),
	}
	for id, entry := range ps.OpenPledges {
		snap.OpenPledges = append(snap.OpenPledges, pledgeSnapshot{
			Identity:    id,
			Wire:        entry.Decoded.Msg,
			CheckOK:     true,
		})
	}
	for id, entry := range ps.LimboPledges {
		snap.OpenPledges = append(snap.OpenPledges, pledgeSnapshot{
			Identity:    id,
			Wire:        entry.Decoded.Msg,
			CheckStatus: checkStatusErrorKind(entry.CheckStatus),
		})
	}
	e.Statuses.Put(ps.IDHash, snap)
}

// WireMessage builds the wire.ProjectStatus a relay serves for projectID,
// scrubbed unless full is true.
func (e *Engine) WireMessage(projectID [32]byte, full bool) (*lhwire.ProjectStatus, error) {
	snap, ok := e.Statuses.Get(projectID)
	if !ok {
		return nil, lherr.New(lherr.BadProject, "unknown project", nil)
	}

	status := &lhwire.ProjectStatus{
		ProjectIDHash:     snap.IDHash,
		Timestamp:         uint64(time.Now().Unix()),
		ValuePledgedSoFar: uint64(snap.ValuePledged),
		ClaimedBy:         snap.ClaimTxHash,
	}
	for _, p := range snap.OpenPledges {
		status.Pledges = append(status.Pledges, p.Wire)
	}

	if full {
		return status, nil
	}
	return status.Scrubbed()
}

// AuthPubkey returns the auth key a project's signed-GET endpoint verifies
// against.
func (e *Engine) AuthPubkey(projectID [32]byte) (*btcec.PublicKey, error) {
	snap, ok := e.Statuses.Get(projectID)
	if !ok {
		return nil, lherr.New(lherr.BadProject, "unknown project", nil)
	}
	return snap.AuthPubkey, nil
}

func projectIDString(id [32]byte) string {
	return fmt.Sprintf("%x", id[:8])
}
