package engine

import (
	btcdwire "github.com/btcsuite/btcd/wire"
)

// claimResolver tracks a single project's claim transaction from assembly
// through the propagation threshold required before the project is
// considered CLAIMED: the transaction under resolution, whether it has
// been broadcast, and whether resolution is complete.
type claimResolver struct {
	projectIDHash [32]byte
	claimTx       *btcdwire.MsgTx
	claimTxHash   [32]byte

	broadcastSent bool
	resolved      bool
}

func newClaimResolver(projectIDHash [32]byte, claimTx *btcdwire.MsgTx) *claimResolver {
	return &claimResolver{
		projectIDHash: projectIDHash,
		claimTx:       claimTx,
		claimTxHash:   claimTxHash(claimTx),
	}
}

func claimTxHash(tx *btcdwire.MsgTx) [32]byte {
	h := tx.TxHash()
	var out [32]byte
	copy(out[:], h[:])
	return out
}

// meetsThreshold reports whether a BroadcastResult satisfies the
// default propagation requirement (≥2 confirmed peer relays).
func (r *claimResolver) meetsThreshold(propagated int, required int) bool {
	return propagated >= required
}
