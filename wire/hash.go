package wire

import "crypto/sha256"

// CanonicalHash returns the SHA-256 digest of the canonical (encoded) bytes
// of a Project, Pledge, or ProjectStatus message. It is the identity used
// throughout the engine: a project's id_hash, a pledge's identity, and the
// orig_hash left behind by Scrub.
func CanonicalHash(encoded []byte) [32]byte {
	return sha256.Sum256(encoded)
}
