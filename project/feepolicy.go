package project

import (
	btcdwire "github.com/btcsuite/btcd/wire"
)

// FeePolicy decides how (or whether) a claim transaction's value shortfall
// from miner fees is covered. An open design question leaves this
// pluggable rather than settling it: "whether a claim transaction should
// include a fee-bearing wallet input when miner policy rejects zero-fee
// contracts is unsettled".
type FeePolicy interface {
	// Apply is given the in-progress claim tx (inputs already the union of
	// all pledges' inputs, outputs already the project's fixed outputs)
	// and returns the tx to actually broadcast, plus whether it added an
	// extra wallet input/change output.
	Apply(tx *btcdwire.MsgTx) (out *btcdwire.MsgTx, feeInputAdded bool, err error)
}

// ZeroFeePolicy broadcasts the claim exactly as assembled: pledges already
// sum exactly to the goal, so the claim pays zero fee. This is the
// default ("the engine prefers the zero-fee form when pool policies
// allow").
type ZeroFeePolicy struct{}

// Apply implements FeePolicy.
func (ZeroFeePolicy) Apply(tx *btcdwire.MsgTx) (*btcdwire.MsgTx, bool, error) {
	return tx, false, nil
}

// FeeInputSource is the minimal wallet capability WalletFeePolicy needs:
// produce a funded input plus a matching change output covering a small
// fee. It is a subset of walletadapter.Adapter, kept separate so
// FeePolicy doesn't import walletadapter (avoiding a dependency cycle
// between project and walletadapter).
type FeeInputSource interface {
	// FeeInput returns an extra input (already signed for SIGHASH_ALL, not
	// ANYONECANPAY, since it isn't shared by other pledgers) and a change
	// output sized to cover feeSatoshi above the input's own value.
	FeeInput(feeSatoshi int64) (*btcdwire.TxIn, *btcdwire.TxOut, error)
}

// WalletFeePolicy asks the wallet adapter for an extra input to cover a
// small fee, plus an equal-and-opposite change output, when miner policy
// would otherwise reject a zero-fee claim. Available but not
// auto-selected, per the Open Question's resolution in DESIGN.md.
type WalletFeePolicy struct {
	Source      FeeInputSource
	FeeSatoshi  int64
}

// Apply implements FeePolicy.
func (w WalletFeePolicy) Apply(tx *btcdwire.MsgTx) (*btcdwire.MsgTx, bool, error) {
	in, change, err := w.Source.FeeInput(w.FeeSatoshi)
	if err != nil {
		return nil, false, err
	}
	out := tx.Copy()
	out.AddTxIn(in)
	out.AddTxOut(change)
	return out, true, nil
}
