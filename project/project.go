// Package project implements the validated, immutable view of a project
// definition and the local (network-independent) rules a pledge must
// satisfy against it: a raw wire message goes in, a small set of sanity
// checks run once, and the result is an immutable value the rest of the
// engine can trust without re-checking.
package project

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lighthouse/lherr"
	lhwire "github.com/lightningnetwork/lighthouse/wire"
)

// MaxGoalSatoshi bounds the sum of a project's outputs, matching the
// practical maximum a single Bitcoin transaction's outputs can sum to
// (21 million BTC in satoshi, the protocol supply cap).
const MaxGoalSatoshi = 21_000_000 * 1e8

// Project is the validated, immutable view of a wire.Project. Every field
// on it has already passed the checks the design requires; code elsewhere in
// the engine never needs to re-validate a Project, only a Pledge against
// it.
type Project struct {
	raw      lhwire.Project
	idHash   [32]byte
	chainCfg *chaincfg.Params
}

// New validates raw and, on success, returns the immutable Project view.
// chainCfg must correspond to raw.NetworkTag; the caller (diskman/engine)
// is responsible for picking the right chaincfg.Params for the node's
// configured network and rejecting a project whose tag doesn't match it.
func New(raw lhwire.Project, chainCfg *chaincfg.Params, dustSatoshi int64) (*Project, error) {
	if !raw.NetworkTag.Recognized() {
		return nil, lherr.New(lherr.BadProject,
			fmt.Sprintf("unrecognized network tag %d", raw.NetworkTag), nil)
	}

	if len(raw.Outputs) == 0 {
		return nil, lherr.New(lherr.BadProject, "project has no outputs", nil)
	}

	var goal int64
	for i, out := range raw.Outputs {
		if out.AmountSatoshi <= 0 {
			return nil, lherr.New(lherr.BadProject,
				fmt.Sprintf("output %d has non-positive amount", i), nil)
		}
		if len(out.Script) == 0 {
			return nil, lherr.New(lherr.BadProject,
				fmt.Sprintf("output %d has empty script", i), nil)
		}
		goal += out.AmountSatoshi
		if goal > MaxGoalSatoshi {
			return nil, lherr.New(lherr.BadProject, "goal amount exceeds protocol max", nil)
		}
	}

	floor := MinPledgeFloor(goal, dustSatoshi)
	if raw.Extra.MinPledgeSatoshi < uint64(floor) {
		return nil, lherr.New(lherr.BadProject,
			fmt.Sprintf("min_pledge %d is below the dust-sanity floor %d",
				raw.Extra.MinPledgeSatoshi, floor), nil)
	}
	if raw.Extra.MinPledgeSatoshi > uint64(goal) {
		return nil, lherr.New(lherr.BadProject, "min_pledge exceeds goal amount", nil)
	}

	if raw.Extra.AuthPubkey == nil {
		return nil, lherr.New(lherr.BadProject, "missing auth_pubkey", nil)
	}

	p := &Project{raw: raw, chainCfg: chainCfg}
	idHash, err := raw.IDHash()
	if err != nil {
		return nil, lherr.New(lherr.BadProject, "failed to compute id_hash", err)
	}
	p.idHash = idHash
	return p, nil
}

// IDHash returns the project's stable identity.
func (p *Project) IDHash() [32]byte { return p.idHash }

// GoalSatoshi returns the sum of the project's outputs.
func (p *Project) GoalSatoshi() int64 {
	var total int64
	for _, o := range p.raw.Outputs {
		total += o.AmountSatoshi
	}
	return total
}

// MinPledgeSatoshi returns the smallest acceptable single pledge.
func (p *Project) MinPledgeSatoshi() int64 {
	return int64(p.raw.Extra.MinPledgeSatoshi)
}

// Outputs returns the project's fixed output set.
func (p *Project) Outputs() []lhwire.TxOutput {
	return p.raw.Outputs
}

// AuthPubkey returns the project creator's auth key.
func (p *Project) AuthPubkey() *btcec.PublicKey {
	return p.raw.Extra.AuthPubkey
}

// Network returns the project's declared network tag.
func (p *Project) Network() lhwire.Network {
	return p.raw.NetworkTag
}

// ChainParams returns the chaincfg.Params the caller associated with this
// project at construction time.
func (p *Project) ChainParams() *chaincfg.Params {
	return p.chainCfg
}

// Title returns the project's display title.
func (p *Project) Title() string { return p.raw.Extra.Title }

// Memo returns the project's free-text memo.
func (p *Project) Memo() string { return p.raw.Memo }

// ServerURL returns the project's optional relay URL, if any.
func (p *Project) ServerURL() string {
	if p.raw.Extra.ServerURL != "" {
		return p.raw.Extra.ServerURL
	}
	return p.raw.PaymentURL
}

// Raw returns the underlying wire message, for persistence (DiskManager
// writes back exactly what it read, modulo re-encoding).
func (p *Project) Raw() lhwire.Project {
	return p.raw
}
