// Package walletadapter defines the minimum interface the engine needs
// from an SPV wallet (the design): create and revoke pledges, enumerate a
// user's own pledges, sign auth messages with the project's derived auth
// key, and report stub-outpoint spends. The engine never holds a spendable
// private key itself — every signing operation crosses this interface.
//
// lnd never fully defines this boundary (the
// daemon holds a concrete *lnwallet.LightningWallet directly); the method
// set here is built from the design directly, while the posture — a small
// interface the engine depends on and a separate component implements —
// mirrors how server.go holds lnwallet/bio as narrow capabilities rather
// than reaching into wallet internals.
package walletadapter

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
	lhwire "github.com/lightningnetwork/lighthouse/wire"
)

// PledgeRequest describes a pledge the local user wants to create.
type PledgeRequest struct {
	AmountSatoshi int64
	Name          string
	Contact       string
	Memo          string
}

// BroadcastResult reports the outcome of a revocation spend.
type BroadcastResult struct {
	TxHash [32]byte
}

// Adapter is the wallet capability the engine depends on.
type Adapter interface {
	// CreatePledge atomically produces a signed pledge transaction for
	// project, reserving its inputs so they cannot be used by a second
	// concurrent pledge, and marks the stub outpoint it's revocable
	// through.
	CreatePledge(ctx context.Context, projectIDHash [32]byte, req PledgeRequest) (*lhwire.Pledge, error)

	// Revoke spends the stub outpoint backing pledge to a fresh wallet
	// output, cancelling the pledge. The returned channel resolves once
	// the revocation transaction has been constructed and handed to
	// BitcoinView for broadcast.
	Revoke(ctx context.Context, pledge *lhwire.Pledge) (<-chan BroadcastResult, error)

	// PledgesFor lists pledges the wallet itself created for project,
	// independent of what the engine currently has open.
	PledgesFor(projectIDHash [32]byte) ([]*lhwire.Pledge, error)

	// SignAuth signs message with the private key corresponding to
	// project's auth_pubkey, blocking on a password callback if the
	// wallet is locked.
	SignAuth(projectIDHash [32]byte, message []byte) ([]byte, error)

	// AuthPubkey returns the public half of the key SignAuth uses for
	// project, so a newly created project can embed it.
	AuthPubkey(projectIDHash [32]byte) (*btcec.PublicKey, error)

	// OnStubSpent registers a callback invoked whenever a stub outpoint
	// the wallet is tracking is observed spent, whether by the wallet's
	// own revocation or (unexpectedly) by a third party.
	OnStubSpent(callback func(stub StubSpend))
}

// StubSpend is delivered to an OnStubSpent callback.
type StubSpend struct {
	PledgeIdentity [32]byte
	SpendingTxHash [32]byte
}
