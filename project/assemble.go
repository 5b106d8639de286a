package project

import (
	"bytes"
	"sort"

	btcdwire "github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lighthouse/lherr"
)

// AssembleContract combines the inputs of every provided (already
// shape-checked and UTXO-quorum-verified) pledge into a single claim
// transaction whose outputs are exactly the project's.
//
// Inputs are sorted deterministically before assembly so two nodes given
// the same pledge set always produce byte-identical claim transactions,
// then the combined total is checked for an *exact* match against the
// project's goal rather than merely dust-above-zero sufficiency.
func (p *Project) AssembleContract(pledges []*DecodedPledge, policy FeePolicy) (*btcdwire.MsgTx, error) {
	if len(pledges) == 0 {
		return nil, lherr.New(lherr.ValueMismatch, "no pledges to assemble", nil).WithDelta(p.GoalSatoshi())
	}

	ordered := orderPledges(pledges)

	tx := btcdwire.NewMsgTx(btcdwire.TxVersion)
	for _, out := range p.raw.Outputs {
		tx.AddTxOut(btcdwire.NewTxOut(out.AmountSatoshi, out.Script))
	}

	seen := make(map[btcdwire.OutPoint]struct{})
	var sum int64
	for _, pl := range ordered {
		for i, in := range pl.Tx.TxIn {
			if _, dup := seen[in.PreviousOutPoint]; dup {
				return nil, lherr.New(lherr.DuplicatedOutpoint,
					in.PreviousOutPoint.String(), nil)
			}
			seen[in.PreviousOutPoint] = struct{}{}
			tx.AddTxIn(in)
			sum += pl.Msg.PrevOutputs[i].AmountSatoshi
		}
	}

	goal := p.GoalSatoshi()
	if sum != goal {
		return nil, lherr.New(lherr.ValueMismatch, "", nil).WithDelta(goal - sum)
	}

	final, _, err := policy.Apply(tx)
	return final, err
}

// orderPledges returns pledges sorted by (timestamp ascending, then
// canonical pledge hash ascending), the deterministic ordering the design
// requires both for display and for reproducible contract assembly.
func orderPledges(pledges []*DecodedPledge) []*DecodedPledge {
	out := make([]*DecodedPledge, len(pledges))
	copy(out, pledges)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Msg.Timestamp, out[j].Msg.Timestamp
		if ti != tj {
			return ti < tj
		}
		return bytes.Compare(out[i].IdentityHash[:], out[j].IdentityHash[:]) < 0
	})
	return out
}
