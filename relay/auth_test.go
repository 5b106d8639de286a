package relay

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/stretchr/testify/require"
)

func TestVerifySignatureAcceptsValidSignature(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	msg := []byte("nonce-1700000000")
	digest := doubleSHA256(msg)
	sig := ecdsa.Sign(priv, digest).Serialize()

	require.True(t, verifySignature(priv.PubKey(), msg, sig))
}

func TestVerifySignatureRejectsWrongKey(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	msg := []byte("nonce-1700000001")
	sig := ecdsa.Sign(priv, doubleSHA256(msg)).Serialize()

	require.False(t, verifySignature(other.PubKey(), msg, sig))
}

func TestVerifySignatureRejectsTamperedMessage(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	msg := []byte("nonce-1700000002")
	sig := ecdsa.Sign(priv, doubleSHA256(msg)).Serialize()

	require.False(t, verifySignature(priv.PubKey(), []byte("nonce-1700000003"), sig))
}

func TestVerifySignatureRejectsMalformedSig(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	require.False(t, verifySignature(priv.PubKey(), []byte("msg"), []byte("not-a-signature")))
}

func TestNonceCacheRejectsReplay(t *testing.T) {
	c := newNonceCache()

	var projectID [32]byte
	projectID[0] = 0x01
	msg := []byte("nonce-A")

	require.True(t, c.claim(projectID, msg))
	require.False(t, c.claim(projectID, msg))

	// A different project can reuse the same nonce bytes; the replay
	// window is scoped per project.
	var other [32]byte
	other[0] = 0x02
	require.True(t, c.claim(other, msg))
}
