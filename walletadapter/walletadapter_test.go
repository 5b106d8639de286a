package walletadapter_test

import (
	"crypto/sha256"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	lhwire "github.com/lightningnetwork/lighthouse/wire"

	"github.com/lightningnetwork/lighthouse/walletadapter"
	"github.com/stretchr/testify/require"
)

func TestKeystoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")

	// A missing file is not an error.
	keys, err := walletadapter.LoadKeystore(path)
	require.NoError(t, err)
	require.Empty(t, keys)

	priv1, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	priv2, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var id1, id2 [32]byte
	id1[0] = 0x01
	id2[0] = 0x02
	keys = map[[32]byte]*btcec.PrivateKey{id1: priv1, id2: priv2}

	require.NoError(t, walletadapter.SaveKeystore(path, keys))

	loaded, err := walletadapter.LoadKeystore(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, priv1.Serialize(), loaded[id1].Serialize())
	require.Equal(t, priv2.Serialize(), loaded[id2].Serialize())
}

func TestMemorySignAuthRequiresRegisteredKey(t *testing.T) {
	m := walletadapter.NewMemory()

	var projectID [32]byte
	projectID[0] = 0x01

	_, err := m.SignAuth(projectID, []byte("hello"))
	require.Error(t, err)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	m.SetAuthKey(projectID, priv)

	sig, err := m.SignAuth(projectID, []byte("hello"))
	require.NoError(t, err)

	pub, err := m.AuthPubkey(projectID)
	require.NoError(t, err)
	require.True(t, pub.IsEqual(priv.PubKey()))

	parsed, err := ecdsa.ParseDERSignature(sig)
	require.NoError(t, err)
	require.True(t, parsed.Verify(doubleSHA256([]byte("hello")), pub))
}

func TestMemoryPledgesForReturnsAddedPledges(t *testing.T) {
	m := walletadapter.NewMemory()

	var projectID [32]byte
	projectID[0] = 0x03

	pledges, err := m.PledgesFor(projectID)
	require.NoError(t, err)
	require.Empty(t, pledges)

	p := &lhwire.Pledge{ProjectIDHash: projectID, Name: "alice"}
	m.AddPledge(projectID, p)

	pledges, err = m.PledgesFor(projectID)
	require.NoError(t, err)
	require.Len(t, pledges, 1)
	require.Equal(t, "alice", pledges[0].Name)
}

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}
