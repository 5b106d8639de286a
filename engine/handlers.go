package engine

import (
	"bytes"
	"context"
	"path/filepath"

	btcdwire "github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lighthouse/bitcoinview"
	"github.com/lightningnetwork/lighthouse/build"
	"github.com/lightningnetwork/lighthouse/diskman"
	"github.com/lightningnetwork/lighthouse/lherr"
	"github.com/lightningnetwork/lighthouse/project"
	lhwire "github.com/lightningnetwork/lighthouse/wire"
)

// handleProjectAppeared implements the "New project" behavior.
func (e *Engine) handleProjectAppeared(msg projectAppeared) {
	raw := &lhwire.Project{}
	if err := lhwire.DecodeFramed(bytes.NewReader(msg.bytes), raw); err != nil {
		build.Log.Errorf("engine: malformed project at %s: %v", msg.path, err)
		return
	}

	proj, err := project.New(*raw, e.cfg.ChainParams, e.cfg.DustSatoshi)
	if err != nil {
		build.Log.Errorf("engine: rejecting project at %s: %v", msg.path, err)
		return
	}
	idHash := proj.IDHash()

	ps, existed := e.projects[idHash]
	if !existed {
		ps = newProjectState(idHash, proj, msg.path)
		e.projects[idHash] = ps
	} else {
		ps.Project = proj
	}
	if msg.path != "" {
		e.diskPathToID[msg.path] = idHash
	}

	ps.Status = StateOpen
	if msg.path != "" {
		if claim, err := diskman.ReadClaim(filepath.Dir(msg.path)); err == nil && claim != nil {
			h := claim.ClaimTxHash
			ps.Status = StateClaimed
			ps.ClaimTx = &h
		}
	}
	if e.cfg.Store != nil {
		if claimHash, ok, err := e.cfg.Store.ClaimedTxHash(idHash); err == nil && ok {
			ps.Status = StateClaimed
			ps.ClaimTx = &claimHash
		}
	}

	e.publishSnapshot(ps)

	// Rescan pledges that arrived before this project did.
	orphans := e.orphanPledges[idHash]
	delete(e.orphanPledges, idHash)
	for _, o := range orphans {
		e.handlePledgeAppeared(o)
	}
}

// handleProjectDisappeared implements "ProjectDisappeared".
func (e *Engine) handleProjectDisappeared(msg projectDisappeared) {
	ps, ok := e.projects[msg.idHash]
	if !ok {
		return
	}
	delete(e.projects, msg.idHash)
	if ps.DiskPath != "" {
		delete(e.diskPathToID, ps.DiskPath)
	}
	e.Statuses.Delete(msg.idHash)
}

// handlePledgeAppeared implements the "New pledge" behavior up
// through issuing the UTXO quorum check; admission itself completes in
// handleUTXOCheckComplete once BitcoinView answers.
func (e *Engine) handlePledgeAppeared(msg pledgeAppeared) {
	raw := &lhwire.Pledge{}
	if err := lhwire.DecodeFramed(bytes.NewReader(msg.bytes), raw); err != nil {
		e.replyPledge(msg.resp, nil, lherr.New(lherr.BadPledgeShape, "malformed pledge", err))
		return
	}

	ps, ok := e.projects[raw.ProjectIDHash]
	if !ok {
		e.orphanPledges[raw.ProjectIDHash] = append(e.orphanPledges[raw.ProjectIDHash], msg)
		e.replyPledge(msg.resp, nil, lherr.New(lherr.BadProject, "project not yet known to this node", nil))
		return
	}

	decoded, err := ps.Project.CheckPledgeShape(raw)
	if err != nil {
		build.Log.Errorf("engine: pledge shape check failed for project %x: %v", ps.IDHash[:8], err)
		e.replyPledge(msg.resp, nil, err)
		return
	}

	if _, _, dup := e.duplicateOutpoint(ps, decoded); dup {
		err := lherr.New(lherr.DuplicatedOutpoint, "", nil)
		e.replyPledge(msg.resp, nil, err)
		return
	}

	if ps.valuePledged()+int64(decoded.Msg.TotalPledgedSatoshi) > ps.Project.GoalSatoshi() {
		err := lherr.New(lherr.GoalExceeded, "pledge would push total past the project goal", nil)
		e.replyPledge(msg.resp, nil, err)
		return
	}

	if ps.Status == StateClaimed {
		e.replyPledge(msg.resp, nil, lherr.New(lherr.Conflict, "project already claimed", nil))
		return
	}

	if e.cfg.Store != nil {
		if revoked, err := e.cfg.Store.IsRevoked(decoded.IdentityHash); err == nil && revoked {
			e.replyPledge(msg.resp, nil, lherr.New(lherr.Conflict, "pledge was previously revoked", nil))
			return
		}
	}

	ps.admitLimboPledge(decoded, msg.source, msg.path, nil)
	e.issueUTXOCheck(ps, decoded, msg.source, msg.path, msg.resp)
}

// duplicateOutpoint reports whether decoded's inputs collide with an
// existing open pledge, per the earlier-arrival-wins rule: since
// the engine processes exactly one event at a time, whichever pledge was
// admitted first by this loop already owns the outpoint and wins.
func (e *Engine) duplicateOutpoint(ps *projectState, decoded *project.DecodedPledge) (btcdwire.OutPoint, [32]byte, bool) {
	for _, in := range decoded.Tx.TxIn {
		if owner, ok := ps.findOutpointOwner(in.PreviousOutPoint); ok && owner != decoded.IdentityHash {
			return in.PreviousOutPoint, owner, true
		}
	}
	return btcdwire.OutPoint{}, [32]byte{}, false
}

// issueUTXOCheck asks BitcoinView for the status of decoded's inputs and
// re-enqueues the result as a utxoCheckComplete event: an engine event may
// suspend only at an outbound boundary like this one, never mid-handler.
func (e *Engine) issueUTXOCheck(ps *projectState, decoded *project.DecodedPledge, source PledgeSource, diskPath string, resp chan<- pledgeOutcome) {
	if e.cfg.View == nil {
		e.queue <- utxoCheckComplete{
			projectIDHash: ps.IDHash, decoded: decoded, source: source, diskPath: diskPath, resp: resp,
			err: lherr.New(lherr.Offline, "no BitcoinView configured", nil),
		}
		return
	}

	outpoints := make([]btcdwire.OutPoint, len(decoded.Tx.TxIn))
	for i, in := range decoded.Tx.TxIn {
		outpoints[i] = in.PreviousOutPoint
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), bitcoinview.DefaultHardTimeout)
		defer cancel()

		answers, err := e.cfg.View.GetUTXOs(ctx, outpoints, true)
		if err != nil {
			e.queue <- utxoCheckComplete{
				projectIDHash: ps.IDHash, decoded: decoded, source: source, diskPath: diskPath, resp: resp, err: err,
			}
			return
		}

		results, err := bitcoinview.ReconcileAll(answers, e.cfg.QuorumSize)
		e.queue <- utxoCheckComplete{
			projectIDHash: ps.IDHash, decoded: decoded, source: source, diskPath: diskPath, resp: resp,
			results: results, err: err,
		}
	}()
}

// handleUTXOCheckComplete finishes admitting (or rejecting) a pledge once
// its UTXO quorum check returns.
func (e *Engine) handleUTXOCheckComplete(msg utxoCheckComplete) {
	ps, ok := e.projects[msg.projectIDHash]
	if !ok || msg.decoded == nil {
		// Project was destroyed mid-flight; drop by design.
		return
	}

	if msg.err != nil {
		ps.admitLimboPledge(msg.decoded, msg.source, msg.diskPath, msg.err)
		e.publishSnapshot(ps)
		e.replyPledge(msg.resp, nil, msg.err)
		return
	}

	for i, in := range msg.decoded.Tx.TxIn {
		res, ok := msg.results[in.PreviousOutPoint]
		if !ok {
			err := lherr.New(lherr.Timeout, in.PreviousOutPoint.String(), nil)
			ps.admitLimboPledge(msg.decoded, msg.source, msg.diskPath, err)
			e.publishSnapshot(ps)
			e.replyPledge(msg.resp, nil, err)
			return
		}
		if res.Spent {
			err := lherr.New(lherr.Conflict, "input already spent", nil)
			ps.admitLimboPledge(msg.decoded, msg.source, msg.diskPath, err)
			e.publishSnapshot(ps)
			e.replyPledge(msg.resp, nil, err)
			return
		}
		utxo := lhwire.TxOutput{AmountSatoshi: res.Amount, Script: res.Script}
		if err := ps.Project.VerifyInputAgainstUTXO(msg.decoded, i, utxo); err != nil {
			ps.admitLimboPledge(msg.decoded, msg.source, msg.diskPath, err)
			e.publishSnapshot(ps)
			e.replyPledge(msg.resp, nil, err)
			return
		}
	}

	diskPath := msg.diskPath
	if msg.source != SourceDisk && e.cfg.Disk != nil {
		if dir := e.projectDir(ps); dir != "" {
			if framed, err := lhwire.EncodeFramed(msg.decoded.Msg); err == nil {
				if p, err := diskman.WritePledge(dir, framed); err == nil {
					diskPath = p
				}
			}
		}
	}

	ps.admitOpenPledge(msg.decoded, msg.source, diskPath)
	e.publishSnapshot(ps)
	e.replyPledge(msg.resp, e.snapshotPtr(ps), nil)
}

func (e *Engine) snapshotPtr(ps *projectState) *projectStatusSnapshot {
	s, _ := e.Statuses.Get(ps.IDHash)
	return &s
}

func (e *Engine) projectDir(ps *projectState) string {
	if ps.DiskPath == "" {
		return ""
	}
	return filepath.Dir(ps.DiskPath)
}

func (e *Engine) replyPledge(resp chan<- pledgeOutcome, status *projectStatusSnapshot, err error) {
	if resp == nil {
		return
	}
	resp <- pledgeOutcome{status: status, err: err}
}

// handlePledgeRevoked implements the "Revocation" behavior.
func (e *Engine) handlePledgeRevoked(msg pledgeRevoked) {
	for _, ps := range e.projects {
		entry, ok := ps.revokePledge(msg.pledgeIdentity)
		if !ok {
			continue
		}
		if e.cfg.Store != nil {
			e.cfg.Store.MarkRevoked(msg.pledgeIdentity)
		}
		build.Log.Infof("engine: pledge %x for project %x revoked (source %d)",
			entry.Decoded.IdentityHash[:8], ps.IDHash[:8], entry.Source)
		e.publishSnapshot(ps)
		return
	}
}

// handleBlockTipChanged implements "Block tip changed": re-run UTXO checks
// for all open and limbo pledges of all non-claimed projects. Each pledge's
// lookup runs in its own goroutine, concurrently across and within
// projects; the results are applied one at a time on the event loop.
func (e *Engine) handleBlockTipChanged(msg blockTipChanged) {
	for _, ps := range e.projects {
		if ps.Status == StateClaimed {
			continue
		}
		e.recheckProject(ps)
	}
}

// handleRefreshRequested implements "Refresh": like block-tip but targeted.
func (e *Engine) handleRefreshRequested(msg refreshRequested) {
	ps, ok := e.projects[msg.projectIDHash]
	if !ok || ps.Status == StateClaimed {
		return
	}
	e.recheckProject(ps)
}

// handlePeerChurnTick re-issues quorum checks for limbo pledges only, the
// cheaper subset of a full block-tip recheck, since open pledges are
// re-verified on every new block already.
func (e *Engine) handlePeerChurnTick() {
	for _, ps := range e.projects {
		if ps.Status == StateClaimed || len(ps.LimboPledges) == 0 {
			continue
		}
		for _, entry := range ps.LimboPledges {
			e.issueUTXOCheck(ps, entry.Decoded, entry.Source, entry.DiskPath, nil)
		}
	}
}

// recheckProject re-issues a UTXO check for every open and limbo pledge of
// ps. Each issueUTXOCheck call starts its own goroutine, so the lookups for
// one project are not serialized; only their completions are, since
// ps.outpointIndex and the pledge sets change only on the event loop
// goroutine when results return.
func (e *Engine) recheckProject(ps *projectState) {
	for _, entry := range ps.OpenPledges {
		e.issueUTXOCheck(ps, entry.Decoded, entry.Source, entry.DiskPath, nil)
	}
	for _, entry := range ps.LimboPledges {
		e.issueUTXOCheck(ps, entry.Decoded, entry.Source, entry.DiskPath, nil)
	}
}

// handleClaimRequested implements the "Claim" behavior.
func (e *Engine) handleClaimRequested(msg claimRequested) {
	ps, ok := e.projects[msg.projectIDHash]
	if !ok {
		e.replyClaim(msg.resp, [32]byte{}, lherr.New(lherr.BadProject, "unknown project", nil))
		return
	}
	if ps.Status == StateClaimed {
		e.replyClaim(msg.resp, *ps.ClaimTx, lherr.New(lherr.Conflict, "project already claimed", nil))
		return
	}

	decodedList := make([]*project.DecodedPledge, 0, len(ps.OpenPledges))
	for _, entry := range ps.OpenPledges {
		decodedList = append(decodedList, entry.Decoded)
	}

	claimTx, err := ps.Project.AssembleContract(decodedList, e.cfg.FeePolicy)
	if err != nil {
		e.replyClaim(msg.resp, [32]byte{}, err)
		return
	}

	if e.cfg.View == nil {
		e.replyClaim(msg.resp, [32]byte{}, lherr.New(lherr.Offline, "no BitcoinView configured", nil))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), bitcoinview.DefaultBroadcastTimeout)
		defer cancel()
		result, err := e.cfg.View.Broadcast(ctx, claimTx)
		e.queue <- broadcastComplete{
			projectIDHash: ps.IDHash, claimTx: claimTx, result: result, err: err, resp: msg.resp,
		}
	}()
}

// handleBroadcastComplete finishes a claim once BitcoinView answers.
func (e *Engine) handleBroadcastComplete(msg broadcastComplete) {
	ps, ok := e.projects[msg.projectIDHash]
	if !ok {
		return
	}

	if msg.err != nil {
		e.replyClaim(msg.resp, [32]byte{}, lherr.New(lherr.ClaimBroadcastFailed, msg.err.Error(), msg.err))
		return
	}
	if msg.result.PropagatedCount < bitcoinview.DefaultBroadcastQuorum {
		err := lherr.New(lherr.ClaimBroadcastFailed, "insufficient peer propagation", nil)
		e.replyClaim(msg.resp, [32]byte{}, err)
		return
	}

	resolver := newClaimResolver(ps.IDHash, msg.claimTx)
	ps.Status = StateClaimed
	ps.ClaimTx = &resolver.claimTxHash

	for id, entry := range ps.OpenPledges {
		ps.ClaimedPledges[id] = entry
		delete(ps.OpenPledges, id)
	}

	if e.cfg.Store != nil {
		e.cfg.Store.MarkClaimed(ps.IDHash, resolver.claimTxHash)
	}
	if dir := e.projectDir(ps); dir != "" {
		diskman.WriteClaim(dir, resolver.claimTxHash)
	}

	e.publishSnapshot(ps)
	e.replyClaim(msg.resp, resolver.claimTxHash, nil)
}

func (e *Engine) replyClaim(resp chan<- claimOutcome, hash [32]byte, err error) {
	if resp == nil {
		return
	}
	resp <- claimOutcome{claimTxHash: hash, err: err}
}
