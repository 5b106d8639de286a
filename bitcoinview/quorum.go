package bitcoinview

import (
	btcdwire "github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lighthouse/lherr"
)

// QuorumResult is the outcome of reconciling one outpoint's per-peer
// answers under the rule: of the peers that answered inside the
// soft timeout, every one must agree, and at least quorumSize must have
// answered at all before the hard timeout expires.
type QuorumResult struct {
	Outpoint btcdwire.OutPoint
	Spent    bool
	Amount   int64
	Script   []byte
}

// Reconcile applies the quorum rule to one outpoint's collected answers.
// answers with empty Script/zero Amount and Spent=false are still valid
// "this peer says spent=false, unconfirmed mempool utxo" answers; the
// caller filters those out upstream via includeMempool if it doesn't want
// them considered.
//
// BitcoinView has no local chain index of its own to check a notification
// against, so this cross-checks N peers against each other instead.
func Reconcile(outpoint btcdwire.OutPoint, answers []UTXOAnswer, quorumSize int) (*QuorumResult, error) {
	if len(answers) < quorumSize {
		return nil, lherr.New(lherr.Timeout, outpoint.String(), nil).WithDelta(int64(quorumSize - len(answers)))
	}

	first := answers[0]
	for _, a := range answers[1:] {
		if a.Spent != first.Spent {
			return nil, lherr.New(lherr.InconsistentUTXOAnswers, outpoint.String(), nil)
		}
		if !a.Spent {
			if a.Amount != first.Amount || !bytesEqual(a.Script, first.Script) {
				return nil, lherr.New(lherr.InconsistentUTXOAnswers, outpoint.String(), nil)
			}
		}
	}

	return &QuorumResult{
		Outpoint: outpoint,
		Spent:    first.Spent,
		Amount:   first.Amount,
		Script:   first.Script,
	}, nil
}

// ReconcileAll runs Reconcile across every outpoint in answers, returning
// the first error encountered (callers needing a partial result set should
// call Reconcile directly per outpoint instead).
func ReconcileAll(answers map[btcdwire.OutPoint][]UTXOAnswer, quorumSize int) (map[btcdwire.OutPoint]*QuorumResult, error) {
	out := make(map[btcdwire.OutPoint]*QuorumResult, len(answers))
	for op, a := range answers {
		res, err := Reconcile(op, a, quorumSize)
		if err != nil {
			return nil, err
		}
		out[op] = res
	}
	return out, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
