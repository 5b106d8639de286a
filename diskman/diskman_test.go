package diskman_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lighthouse/diskman"
	lhwire "github.com/lightningnetwork/lighthouse/wire"
	"github.com/stretchr/testify/require"
)

func testProjectBytes(t *testing.T) []byte {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	p := &lhwire.Project{
		NetworkTag: lhwire.NetworkRegtest,
		Outputs:    []lhwire.TxOutput{{AmountSatoshi: 1_000_000, Script: []byte{0x00, 0x14}}},
		Timestamp:  1_700_000_000,
		Memo:       "disk test",
		Extra: lhwire.ExtraDetails{
			Title:      "disk test",
			AuthPubkey: priv.PubKey(),
		},
	}
	framed, err := lhwire.EncodeFramed(p)
	require.NoError(t, err)
	return framed
}

func TestManagerInitialScanLoadsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	path, err := diskman.WriteProject(dir, "my-project", testProjectBytes(t))
	require.NoError(t, err)

	m, err := diskman.New([]string{dir})
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Stop()

	got, ok := m.Projects.Get(path)
	require.True(t, ok)
	require.Equal(t, "disk test", got.Raw.Memo)
}

func TestManagerPicksUpNewProjectFile(t *testing.T) {
	dir := t.TempDir()

	m, err := diskman.New([]string{dir})
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Stop()

	path, err := diskman.WriteProject(dir, "late-project", testProjectBytes(t))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := m.Projects.Get(path)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManagerRemovesDeletedProjectFile(t *testing.T) {
	dir := t.TempDir()
	path, err := diskman.WriteProject(dir, "removable", testProjectBytes(t))
	require.NoError(t, err)

	m, err := diskman.New([]string{dir})
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Stop()

	_, ok := m.Projects.Get(path)
	require.True(t, ok)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		_, ok := m.Projects.Get(path)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWriteAndRemovePledge(t *testing.T) {
	dir := t.TempDir()
	pledgeBytes := []byte("not a real framed pledge, just bytes for the file path test")

	path, err := diskman.WritePledge(dir, pledgeBytes)
	require.NoError(t, err)
	require.FileExists(t, path)

	require.NoError(t, diskman.RemovePledge(path))
	require.NoFileExists(t, path)

	// Removing an already-absent pledge is a no-op.
	require.NoError(t, diskman.RemovePledge(path))
}

func TestClaimRoundTrip(t *testing.T) {
	dir := t.TempDir()

	rec, err := diskman.ReadClaim(dir)
	require.NoError(t, err)
	require.Nil(t, rec)

	var claimHash [32]byte
	claimHash[0] = 0xAB
	require.NoError(t, diskman.WriteClaim(dir, claimHash))

	rec, err = diskman.ReadClaim(dir)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, claimHash, rec.ClaimTxHash)
}

func TestWriteProjectSanitizesTitle(t *testing.T) {
	dir := t.TempDir()
	path, err := diskman.WriteProject(dir, "a/b\\c", testProjectBytes(t))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "a_b_c.lighthouse-project"), path)
}
