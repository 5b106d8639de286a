package walletadapter

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

func ecdsaSign(priv *btcec.PrivateKey, digest []byte) []byte {
	sig := ecdsa.Sign(priv, digest)
	return sig.Serialize()
}
