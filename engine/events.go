package engine

import (
	btcdwire "github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lighthouse/bitcoinview"
	"github.com/lightningnetwork/lighthouse/project"
)

// PledgeSource identifies where a PledgeAppeared event came from. Once a
// pledge is admitted, the engine writes it into the project's directory
// unless its source is SourceDisk (a disk-sourced pledge is already there).
type PledgeSource int

const (
	SourceDisk PledgeSource = iota
	SourceHTTPUpload
	SourceWalletOwn
	SourceServerStatusScrubbed
)

// event is the sealed interface every engine event implements; only this
// package constructs events, matching server.go's queries channel pattern
// of an unexported message-type switch.
type event interface {
	isEngineEvent()
}

// projectAppeared carries a freshly read or uploaded project definition.
type projectAppeared struct {
	path  string // empty for non-disk origins
	bytes []byte
}

func (projectAppeared) isEngineEvent() {}

// projectDisappeared fires when DiskManager reports a project file removed.
type projectDisappeared struct {
	idHash [32]byte
}

func (projectDisappeared) isEngineEvent() {}

// pledgeAppeared carries a pledge from any of the four sources the design
// names.
type pledgeAppeared struct {
	source PledgeSource
	bytes  []byte
	path   string // disk path, set only for SourceDisk
	// resp, when non-nil, receives the outcome for sources (HTTP upload)
	// that need a synchronous reply.
	resp chan<- pledgeOutcome
}

func (pledgeAppeared) isEngineEvent() {}

// pledgeOutcome is delivered on pledgeAppeared.resp for synchronous callers.
type pledgeOutcome struct {
	status *projectStatusSnapshot
	err    error
}

// pledgeRevoked fires when the wallet adapter reports a stub outpoint spent.
type pledgeRevoked struct {
	pledgeIdentity [32]byte
}

func (pledgeRevoked) isEngineEvent() {}

// blockTipChanged fires on every new block BitcoinView observes.
type blockTipChanged struct {
	height int32
	hash   [32]byte
}

func (blockTipChanged) isEngineEvent() {}

// refreshRequested targets a single project's UTXO rechecks.
type refreshRequested struct {
	projectIDHash [32]byte
}

func (refreshRequested) isEngineEvent() {}

// claimRequested asks the engine to assemble and broadcast a claim.
type claimRequested struct {
	projectIDHash [32]byte
	resp          chan<- claimOutcome
}

func (claimRequested) isEngineEvent() {}

// claimOutcome is delivered on claimRequested.resp.
type claimOutcome struct {
	claimTxHash [32]byte
	err         error
}

// utxoCheckComplete is an internal completion event re-enqueued once
// BitcoinView answers a GetUTXOs call issued on behalf of projectIDHash.
// Per the design, a single engine event may suspend only at these outbound
// boundaries — so the suspend point is modeled as two events (the request,
// issued inline, and this completion, re-enqueued from a goroutine) rather
// than blocking the event loop goroutine itself.
type utxoCheckComplete struct {
	projectIDHash [32]byte
	decoded       *project.DecodedPledge // the pledge this check was issued for
	source        PledgeSource
	diskPath      string
	resp          chan<- pledgeOutcome

	results map[btcdwire.OutPoint]*bitcoinview.QuorumResult
	err     error
}

func (utxoCheckComplete) isEngineEvent() {}

// broadcastComplete is re-enqueued once BitcoinView answers a claim
// Broadcast call.
type broadcastComplete struct {
	projectIDHash [32]byte
	claimTx       *btcdwire.MsgTx
	result        bitcoinview.BroadcastResult
	err           error
	resp          chan<- claimOutcome
}

func (broadcastComplete) isEngineEvent() {}
