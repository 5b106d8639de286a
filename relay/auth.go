package relay

import (
	"crypto/sha256"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// NonceTTL is how long a nonce stays in the replay cache, bounding the
// window the "fresh nonce" requirement allows.
const NonceTTL = 2 * time.Minute

// nonceCache tracks recently seen (project, msg) pairs so a signed GET
// can't be replayed, the rate-limiting measure the signed-GET endpoint needs.
type nonceCache struct {
	mu   sync.Mutex
	seen map[[32]byte]time.Time
}

func newNonceCache() *nonceCache {
	return &nonceCache{seen: make(map[[32]byte]time.Time)}
}

// claim records msg as spent for projectID, returning false if it was
// already seen within NonceTTL.
func (c *nonceCache) claim(projectID [32]byte, msg []byte) bool {
	key := sha256.Sum256(append(append([]byte{}, projectID[:]...), msg...))

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.evictLocked(now)

	if seenAt, ok := c.seen[key]; ok && now.Sub(seenAt) < NonceTTL {
		return false
	}
	c.seen[key] = now
	return true
}

func (c *nonceCache) evictLocked(now time.Time) {
	for k, t := range c.seen {
		if now.Sub(t) >= NonceTTL {
			delete(c.seen, k)
		}
	}
}

// verifySignature reports whether sig is a valid DER-encoded secp256k1
// signature of double-SHA256(msg) under pubkey, the same digest convention
// walletadapter.Memory.SignAuth produces.
func verifySignature(pubkey *btcec.PublicKey, msg, sig []byte) bool {
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	digest := doubleSHA256(msg)
	return parsed.Verify(digest, pubkey)
}

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}
