// Package bitcoinview abstracts the peer group the engine consults for
// UTXO truth: broadcasting, querying outpoints for spentness across
// multiple peers, and watching for spends/new blocks. The interface pairs
// a pull-style GetUTXOs with the usual push/subscribe notifications,
// because the quorum rule needs a synchronous answer from each of N peers
// to compare, not just a single eventual notification.
package bitcoinview

import (
	"context"
	"time"

	btcdwire "github.com/btcsuite/btcd/wire"
)

// UTXOAnswer is one peer's opinion about an outpoint.
type UTXOAnswer struct {
	Spent  bool
	Amount int64           // valid when !Spent
	Script []byte          // valid when !Spent
}

// SpendDetail mirrors chainntfs.SpendDetail: the watched outpoint, and the
// transaction (with its hash) and height that spent it.
type SpendDetail struct {
	SpentOutPoint  btcdwire.OutPoint
	SpendingTxHash [32]byte
	SpendingTx     *btcdwire.MsgTx
	SpendingHeight int32
}

// BlockEpoch mirrors chainntfs.BlockEpoch.
type BlockEpoch struct {
	Height int32
	Hash   [32]byte
}

// BroadcastResult reports how many distinct peers relayed a transaction
// back to us within the hard timeout.
type BroadcastResult struct {
	PropagatedCount int
}

// View is the capability the engine depends on to talk to the Bitcoin
// network. N (the number of peers asked per query) and the per-peer/overall
// timeouts are configured on the concrete implementation (NeutrinoView);
// this interface only exposes the operations, not the policy knobs, so
// engine code and tests can swap in a fake.
type View interface {
	// GetUTXOs asks every connected peer (up to a configured N) for the
	// current status of each outpoint, returning every peer's answer per
	// outpoint so the caller can apply the quorum rule itself. A peer that
	// times out is simply absent from that outpoint's answer slice.
	GetUTXOs(ctx context.Context, outpoints []btcdwire.OutPoint, includeMempool bool) (map[btcdwire.OutPoint][]UTXOAnswer, error)

	// Broadcast relays tx to the peer group and reports how many peers
	// propagated it back within the hard timeout.
	Broadcast(ctx context.Context, tx *btcdwire.MsgTx) (BroadcastResult, error)

	// WatchForSpend registers callback to fire once outpoint is observed
	// spent in a transaction seen on the network (not necessarily
	// confirmed yet), per chainntfs's "seen, not confirmed" contract.
	WatchForSpend(outpoint btcdwire.OutPoint, callback func(SpendDetail)) error

	// OnNewBlock registers callback to fire for every new block connected
	// to what the peer group agrees is the best chain.
	OnNewBlock(callback func(BlockEpoch))

	// Start connects to the configured peer set.
	Start() error

	// Stop disconnects from all peers and releases resources.
	Stop() error
}

// DefaultQuorumSize is the default N the design specifies for production
// networks.
const DefaultQuorumSize = 2

// DefaultSoftTimeout and DefaultHardTimeout implement the UTXO query
// timeout defaults.
const (
	DefaultSoftTimeout = 15 * time.Second
	DefaultHardTimeout = 60 * time.Second
)

// DefaultBroadcastTimeout and DefaultBroadcastQuorum implement the
// claim-broadcast requirements.
const (
	DefaultBroadcastTimeout = 120 * time.Second
	DefaultBroadcastQuorum  = 2
)
