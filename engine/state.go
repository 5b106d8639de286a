package engine

import (
	btcdwire "github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lighthouse/lherr"
	"github.com/lightningnetwork/lighthouse/project"
)

// StateKind is a project's position in the state machine.
type StateKind int

const (
	StateUnknown StateKind = iota
	StateOpen
	StateClaimed
)

func (s StateKind) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClaimed:
		return "CLAIMED"
	default:
		return "UNKNOWN"
	}
}

// pledgeEntry is one pledge held in a projectState, in whichever of
// open/claimed/limbo the engine currently considers it.
type pledgeEntry struct {
	Decoded     *project.DecodedPledge
	Source      PledgeSource
	DiskPath    string // empty if not persisted by this engine
	CheckStatus error  // nil means "passed its last UTXO quorum check"
	Revoked     bool
}

// projectState is the engine's full in-memory view of one project,
// everything the per-project rules operate on.
type projectState struct {
	IDHash   [32]byte
	Project  *project.Project
	DiskPath string // path to the .lighthouse-project file, if disk-backed
	Status   StateKind
	ClaimTx  *[32]byte

	// OpenPledges holds pledges currently believed spendable and
	// contributing toward the goal, keyed by pledge identity hash.
	OpenPledges map[[32]byte]*pledgeEntry

	// ClaimedPledges holds the pledges a successful claim consumed.
	ClaimedPledges map[[32]byte]*pledgeEntry

	// LimboPledges holds pledges that passed shape checks but whose UTXO
	// quorum check is pending, failed transiently, or disagreed.
	LimboPledges map[[32]byte]*pledgeEntry

	// outpointIndex maps a claimed input outpoint to the identity of the
	// open pledge that claims it, enforcing the
	// one-outpoint-one-pledge rule.
	outpointIndex map[btcdwire.OutPoint][32]byte
}

func newProjectState(idHash [32]byte, proj *project.Project, diskPath string) *projectState {
	return &projectState{
		IDHash:         idHash,
		Project:        proj,
		DiskPath:       diskPath,
		Status:         StateUnknown,
		OpenPledges:    make(map[[32]byte]*pledgeEntry),
		ClaimedPledges: make(map[[32]byte]*pledgeEntry),
		LimboPledges:   make(map[[32]byte]*pledgeEntry),
		outpointIndex:  make(map[btcdwire.OutPoint][32]byte),
	}
}

// valuePledged sums the total value of pledges currently OPEN.
func (ps *projectState) valuePledged() int64 {
	var total int64
	for _, e := range ps.OpenPledges {
		total += int64(e.Decoded.Msg.TotalPledgedSatoshi)
	}
	return total
}

// findOutpointOwner reports which open pledge (if any) already claims
// outpoint.
func (ps *projectState) findOutpointOwner(op btcdwire.OutPoint) ([32]byte, bool) {
	id, ok := ps.outpointIndex[op]
	return id, ok
}

// admitOpenPledge inserts decoded as an open pledge, indexing its
// outpoints. Callers must have already run the duplicate-outpoint check.
func (ps *projectState) admitOpenPledge(decoded *project.DecodedPledge, source PledgeSource, diskPath string) {
	entry := &pledgeEntry{Decoded: decoded, Source: source, DiskPath: diskPath}
	ps.OpenPledges[decoded.IdentityHash] = entry
	delete(ps.LimboPledges, decoded.IdentityHash)
	for _, in := range decoded.Tx.TxIn {
		ps.outpointIndex[in.PreviousOutPoint] = decoded.IdentityHash
	}
}

// admitLimboPledge records a pledge that passed shape checks but is
// awaiting or failed its UTXO quorum check.
func (ps *projectState) admitLimboPledge(decoded *project.DecodedPledge, source PledgeSource, diskPath string, checkErr error) {
	ps.LimboPledges[decoded.IdentityHash] = &pledgeEntry{
		Decoded:     decoded,
		Source:      source,
		DiskPath:    diskPath,
		CheckStatus: checkErr,
	}
}

// revokePledge moves an open or limbo pledge to revoked-in-memory,
// un-indexing its outpoints. It is a no-op if identity isn't currently
// held by this project.
func (ps *projectState) revokePledge(identity [32]byte) (*pledgeEntry, bool) {
	entry, ok := ps.OpenPledges[identity]
	if ok {
		delete(ps.OpenPledges, identity)
	} else {
		entry, ok = ps.LimboPledges[identity]
		if ok {
			delete(ps.LimboPledges, identity)
		}
	}
	if !ok {
		return nil, false
	}
	for _, in := range entry.Decoded.Tx.TxIn {
		if owner, exists := ps.outpointIndex[in.PreviousOutPoint]; exists && owner == identity {
			delete(ps.outpointIndex, in.PreviousOutPoint)
		}
	}
	entry.Revoked = true
	return entry, true
}

// checkStatusErrorKind maps a pledge's check_status error to its lherr.Kind:
// 0 for nil, the error's own Kind for an *lherr.Error, ScriptFailed
// otherwise.
func checkStatusErrorKind(err error) lherr.Kind {
	if err == nil {
		return 0
	}
	if le, ok := err.(*lherr.Error); ok {
		return le.Kind
	}
	return lherr.ScriptFailed
}
