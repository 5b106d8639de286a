// Package store persists the small amount of engine state that must
// survive a restart: which projects have been claimed, the registry of
// pledge identities revoked so they never silently reappear, and a
// last-block-tip record (SetLastTip/LastTip) that the engine package
// neither writes nor reads. Everything else (project/pledge bodies)
// lives on disk under DiskManager's ownership and is reloaded from there.
//
// A single bolt database is opened once at startup, its three top-level
// buckets created idempotently, every access wrapped in a View/Update
// transaction. It uses github.com/lightningnetwork/lnd/kvdb's backend-
// agnostic Update/View/CreateTopLevelBucket surface rather than a direct
// bbolt dependency, so a future etcd-backed deployment needs no schema
// change.
package store

import (
	"fmt"

	"github.com/lightningnetwork/lnd/kvdb"
)

var (
	claimedBucket = []byte("claimed-projects")
	revokedBucket = []byte("revoked-pledges")
	metaBucket    = []byte("engine-meta")

	lastTipKey = []byte("last-block-tip")
)

// Store wraps an open kvdb.Backend holding engine restart state.
type Store struct {
	db kvdb.Backend
}

// Open opens (creating if absent) the bolt-backed store at dbPath, the same
// "open-or-create" posture channeldb.Open uses.
func Open(dbPath string) (*Store, error) {
	db, err := kvdb.Create(kvdb.BoltBackendName, dbPath, true, kvdb.DefaultDBTimeout)
	if err != nil {
		return nil, fmt.Errorf("store: opening db: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	return kvdb.Update(s.db, func(tx kvdb.RwTx) error {
		for _, b := range [][]byte{claimedBucket, revokedBucket, metaBucket} {
			if _, err := tx.CreateTopLevelBucket(b); err != nil {
				return err
			}
		}
		return nil
	}, func() {})
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// MarkClaimed records that project (identified by its id hash) resolved to
// claimTxHash, surviving restart per the restart scenario in the design.
func (s *Store) MarkClaimed(projectIDHash [32]byte, claimTxHash [32]byte) error {
	return kvdb.Update(s.db, func(tx kvdb.RwTx) error {
		b := tx.ReadWriteBucket(claimedBucket)
		return b.Put(projectIDHash[:], claimTxHash[:])
	}, func() {})
}

// ClaimedTxHash returns the claim transaction hash for a project, and false
// if the project has no recorded claim.
func (s *Store) ClaimedTxHash(projectIDHash [32]byte) ([32]byte, bool, error) {
	var out [32]byte
	var found bool
	err := kvdb.View(s.db, func(tx kvdb.RTx) error {
		b := tx.ReadBucket(claimedBucket)
		v := b.Get(projectIDHash[:])
		if v == nil {
			return nil
		}
		found = true
		copy(out[:], v)
		return nil
	}, func() {})
	return out, found, err
}

// MarkRevoked adds pledgeIdentity to the permanently-revoked registry so
// the pledge can never reopen, per the non-resurrection rule.
func (s *Store) MarkRevoked(pledgeIdentity [32]byte) error {
	return kvdb.Update(s.db, func(tx kvdb.RwTx) error {
		b := tx.ReadWriteBucket(revokedBucket)
		return b.Put(pledgeIdentity[:], []byte{1})
	}, func() {})
}

// IsRevoked reports whether pledgeIdentity was previously revoked.
func (s *Store) IsRevoked(pledgeIdentity [32]byte) (bool, error) {
	var revoked bool
	err := kvdb.View(s.db, func(tx kvdb.RTx) error {
		b := tx.ReadBucket(revokedBucket)
		revoked = b.Get(pledgeIdentity[:]) != nil
		return nil
	}, func() {})
	return revoked, err
}

// SetLastTip records a block height/hash in the engine-meta bucket,
// replacing any earlier record.
func (s *Store) SetLastTip(height int32, hash [32]byte) error {
	return kvdb.Update(s.db, func(tx kvdb.RwTx) error {
		b := tx.ReadWriteBucket(metaBucket)
		var buf [36]byte
		buf[0] = byte(height >> 24)
		buf[1] = byte(height >> 16)
		buf[2] = byte(height >> 8)
		buf[3] = byte(height)
		copy(buf[4:], hash[:])
		return b.Put(lastTipKey, buf[:])
	}, func() {})
}

// LastTip returns the last recorded tip, and false if none has been set.
func (s *Store) LastTip() (int32, [32]byte, bool, error) {
	var (
		height int32
		hash   [32]byte
		found  bool
	)
	err := kvdb.View(s.db, func(tx kvdb.RTx) error {
		b := tx.ReadBucket(metaBucket)
		v := b.Get(lastTipKey)
		if v == nil || len(v) != 36 {
			return nil
		}
		found = true
		height = int32(v[0])<<24 | int32(v[1])<<16 | int32(v[2])<<8 | int32(v[3])
		copy(hash[:], v[4:])
		return nil
	}, func() {})
	return height, hash, found, err
}
