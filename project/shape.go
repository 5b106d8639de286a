package project

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	btcdwire "github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lighthouse/lherr"
	lhwire "github.com/lightningnetwork/lighthouse/wire"
)

// MaxPledgeTxWeight bounds a pledge's transaction size so a single pledge
// can't exhaust the resources validating or combining it would take. The
// final claim combines many pledges, so each pledge on its own must stay
// well under Bitcoin's standalone transaction weight limit.
const MaxPledgeTxWeight = 100_000

// DecodedPledge is a Pledge that has passed CheckPledgeShape: its
// transaction bytes parse as a valid btcd wire.MsgTx, its outputs equal the
// project's, and every input's signature verifies against its declared
// (not yet chain-confirmed) previous output. BitcoinView later confirms the
// declaration itself is real.
type DecodedPledge struct {
	Msg          *lhwire.Pledge
	Tx           *btcdwire.MsgTx
	IdentityHash [32]byte
}

// CheckPledgeShape performs the inputs-only checks that require no network
// access: outputs equality, ANYONECANPAY signature validity against the
// pledge's own declared previous outputs, pledged sum bookkeeping, and
// basic sanity (no coinbase inputs, not oversized).
func (p *Project) CheckPledgeShape(pledge *lhwire.Pledge) (*DecodedPledge, error) {
	if pledge.IsScrubbed() {
		return nil, lherr.New(lherr.BadPledgeShape, "cannot shape-check a scrubbed pledge", nil)
	}
	if pledge.ProjectIDHash != p.idHash {
		return nil, lherr.New(lherr.BadPledgeShape, "pledge targets a different project", nil)
	}
	if len(pledge.Transactions) != 1 {
		return nil, lherr.New(lherr.BadPledgeShape,
			fmt.Sprintf("expected exactly one transaction, got %d", len(pledge.Transactions)), nil)
	}

	tx := btcdwire.NewMsgTx(btcdwire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(pledge.Transactions[0])); err != nil {
		return nil, lherr.New(lherr.BadPledgeShape, "failed to parse transaction", err)
	}

	if tx.SerializeSize()*4 > MaxPledgeTxWeight {
		return nil, lherr.New(lherr.BadPledgeShape, "transaction is excessively large", nil)
	}

	for _, in := range tx.TxIn {
		if in.PreviousOutPoint.Hash == (btcdwire.OutPoint{}).Hash &&
			in.PreviousOutPoint.Index == 0xffffffff {
			return nil, lherr.New(lherr.BadPledgeShape, "coinbase-style input not allowed", nil)
		}
	}

	if len(tx.TxOut) != len(p.raw.Outputs) {
		return nil, lherr.New(lherr.BadPledgeShape,
			fmt.Sprintf("pledge has %d outputs, project has %d", len(tx.TxOut), len(p.raw.Outputs)), nil)
	}
	for i, out := range tx.TxOut {
		want := p.raw.Outputs[i]
		if out.Value != want.AmountSatoshi || !bytes.Equal(out.PkScript, want.Script) {
			return nil, lherr.New(lherr.BadPledgeShape,
				fmt.Sprintf("output %d does not match the project's outputs exactly", i), nil)
		}
	}

	if len(pledge.PrevOutputs) != len(tx.TxIn) {
		return nil, lherr.New(lherr.BadPledgeShape,
			"declared previous-output count does not match input count", nil)
	}

	var sum int64
	for i, in := range tx.TxIn {
		prev := pledge.PrevOutputs[i]
		sum += prev.AmountSatoshi

		if err := verifyAnyoneCanPayInput(tx, i, in, prev); err != nil {
			return nil, lherr.New(lherr.BadPledgeShape,
				fmt.Sprintf("input %d: %v", i, err), nil)
		}
	}

	if sum != int64(pledge.TotalPledgedSatoshi) {
		return nil, lherr.New(lherr.BadPledgeShape,
			"declared total_pledged_satoshi does not match summed input values", nil)
	}
	if int64(pledge.TotalPledgedSatoshi) < p.MinPledgeSatoshi() {
		return nil, lherr.New(lherr.PledgeTooSmall, "", nil)
	}

	id, err := pledge.Identity()
	if err != nil {
		return nil, lherr.New(lherr.BadPledgeShape, "failed to compute identity", err)
	}

	return &DecodedPledge{Msg: pledge, Tx: tx, IdentityHash: id}, nil
}

// VerifyInputAgainstUTXO re-runs input idx's script against a BitcoinView-
// reported (amount, script) pair rather than the pledge's own declaration,
// by design: "the engine additionally executes the pledge input's
// signature script against the returned output's script ... success is
// required for acceptance." CheckPledgeShape already ran this once against
// the pledge's self-declared previous output; this call is the
// chain-grounded confirmation that the declaration wasn't a lie.
func (p *Project) VerifyInputAgainstUTXO(decoded *DecodedPledge, idx int, utxo lhwire.TxOutput) error {
	if idx < 0 || idx >= len(decoded.Tx.TxIn) {
		return lherr.New(lherr.BadPledgeShape, "input index out of range", nil)
	}
	in := decoded.Tx.TxIn[idx]
	if err := verifyAnyoneCanPayInput(decoded.Tx, idx, in, utxo); err != nil {
		return lherr.New(lherr.ScriptFailed, fmt.Sprintf("input %d: %v", idx, err), nil)
	}
	return nil
}

// verifyAnyoneCanPayInput checks that the input's signature script (or
// witness) satisfies prev's script under SIGHASH_ANYONECANPAY|SIGHASH_ALL,
// using the engine-global consensus rules for the project's network.
func verifyAnyoneCanPayInput(tx *btcdwire.MsgTx, idx int, in *btcdwire.TxIn, prev lhwire.TxOutput) error {
	prevFetcher := txscript.NewCannedPrevOutputFetcher(prev.Script, prev.AmountSatoshi)
	sigHashes := txscript.NewTxSigHashes(tx, prevFetcher)

	vm, err := txscript.NewEngine(
		prev.Script, tx, idx,
		txscript.StandardVerifyFlags, nil, sigHashes, prev.AmountSatoshi,
		prevFetcher,
	)
	if err != nil {
		return fmt.Errorf("building script engine: %w", err)
	}
	if err := vm.Execute(); err != nil {
		return fmt.Errorf("script did not validate: %w", err)
	}

	if err := requireAnyoneCanPay(tx, idx, in, prev); err != nil {
		return err
	}
	return nil
}

// requireAnyoneCanPay inspects the signature's sighash byte (legacy script
// or witness, whichever the input uses) and rejects anything that isn't
// SIGHASH_ANYONECANPAY|SIGHASH_ALL, exactly as the design requires of a
// pledge's inputs.
func requireAnyoneCanPay(tx *btcdwire.MsgTx, idx int, in *btcdwire.TxIn, prev lhwire.TxOutput) error {
	var sig []byte
	if txscript.IsWitnessProgram(prev.Script) {
		if len(in.Witness) == 0 {
			return fmt.Errorf("witness input has empty witness stack")
		}
		sig = in.Witness[0]
	} else {
		pushes, err := txscript.PushedData(in.SignatureScript)
		if err != nil || len(pushes) == 0 {
			return fmt.Errorf("unable to extract signature from signature script")
		}
		sig = pushes[0]
	}

	if len(sig) == 0 {
		return fmt.Errorf("empty signature")
	}
	hashType := txscript.SigHashType(sig[len(sig)-1])
	if hashType != (txscript.SigHashAnyOneCanPay | txscript.SigHashAll) {
		return fmt.Errorf("signature hash type %v is not SIGHASH_ANYONECANPAY|SIGHASH_ALL", hashType)
	}
	return nil
}

// AmountFromSatoshi converts a satoshi count to a btcutil.Amount for
// display; kept here next to the script-level arithmetic it annotates.
func AmountFromSatoshi(sat int64) btcutil.Amount {
	return btcutil.Amount(sat)
}
