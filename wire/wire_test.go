package wire_test

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	lhwire "github.com/lightningnetwork/lighthouse/wire"
	"github.com/stretchr/testify/require"
)

func testExtraDetails(t *testing.T) lhwire.ExtraDetails {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	return lhwire.ExtraDetails{
		Title:            "water filters for rural clinics",
		CoverImage:       []byte{0xff, 0xd8, 0xff, 0xe0},
		AuthPubkey:       priv.PubKey(),
		MinPledgeSatoshi: 50_000,
		OwnerWalletHint:  []byte("bc1q..."),
		ServerURL:        "https://relay.example.org",
	}
}

func testProject(t *testing.T) *lhwire.Project {
	t.Helper()
	return &lhwire.Project{
		NetworkTag: lhwire.NetworkTestnet,
		Outputs: []lhwire.TxOutput{
			{AmountSatoshi: 1_000_000, Script: []byte{0x00, 0x14}},
			{AmountSatoshi: 2_500_000, Script: []byte{0x00, 0x20}},
		},
		Timestamp:    1_700_000_000,
		Memo:         "clean water project",
		PaymentURL:   "https://relay.example.org/project/abc",
		MerchantData: []byte{0x01, 0x02, 0x03},
		Extra:        testExtraDetails(t),
	}
}

// TestProjectRoundTrip checks that encoding then decoding a Project is
// lossless, the property IDHash stability depends on.
func TestProjectRoundTrip(t *testing.T) {
	p := testProject(t)

	var buf bytes.Buffer
	require.NoError(t, p.Encode(&buf))

	var got lhwire.Project
	require.NoError(t, got.Decode(&buf))

	require.Equal(t, p.NetworkTag, got.NetworkTag)
	require.Equal(t, p.Outputs, got.Outputs)
	require.Equal(t, p.Timestamp, got.Timestamp)
	require.Equal(t, p.Memo, got.Memo)
	require.Equal(t, p.PaymentURL, got.PaymentURL)
	require.Equal(t, p.MerchantData, got.MerchantData)
	require.Equal(t, p.Extra.Title, got.Extra.Title)
	require.Equal(t, p.Extra.MinPledgeSatoshi, got.Extra.MinPledgeSatoshi)
	require.True(t, p.Extra.AuthPubkey.IsEqual(got.Extra.AuthPubkey))
}

// TestProjectIDHashStable checks that encoding a Project twice produces the
// same identity hash, the invariant the engine's project index relies on to
// recognize a project it has already seen.
func TestProjectIDHashStable(t *testing.T) {
	p := testProject(t)

	id1, err := p.IDHash()
	require.NoError(t, err)
	id2, err := p.IDHash()
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	other := testProject(t)
	other.Memo = "a different memo"
	id3, err := other.IDHash()
	require.NoError(t, err)
	require.NotEqual(t, id1, id3)
}

func testPledge(t *testing.T) *lhwire.Pledge {
	t.Helper()
	var projectID [32]byte
	copy(projectID[:], bytes.Repeat([]byte{0xAB}, 32))

	return &lhwire.Pledge{
		ProjectIDHash:       projectID,
		TotalPledgedSatoshi: 100_000,
		Timestamp:           1_700_000_001,
		Name:                "anonymous",
		Contact:             "",
		Memo:                "good luck",
		Transactions:        [][]byte{{0x01, 0x00, 0x00, 0x00}},
		PrevOutputs: []lhwire.TxOutput{
			{AmountSatoshi: 150_000, Script: []byte{0x00, 0x14, 0xAA}},
		},
	}
}

func TestPledgeRoundTrip(t *testing.T) {
	p := testPledge(t)

	framed, err := lhwire.EncodeFramed(p)
	require.NoError(t, err)

	var got lhwire.Pledge
	require.NoError(t, lhwire.DecodeFramed(bytes.NewReader(framed), &got))

	require.Equal(t, *p, got)
	require.False(t, got.IsScrubbed())
}

// TestPledgeScrubRemovesTransactionBytes checks the invariant a scrubbed
// pledge must satisfy: no transaction bytes survive, but its Identity stays
// pinned to the full form it was scrubbed from.
func TestPledgeScrubRemovesTransactionBytes(t *testing.T) {
	full := testPledge(t)

	fullID, err := full.Identity()
	require.NoError(t, err)

	scrubbed, err := full.Scrub()
	require.NoError(t, err)

	require.True(t, scrubbed.IsScrubbed())
	require.Nil(t, scrubbed.Transactions)

	scrubbedID, err := scrubbed.Identity()
	require.NoError(t, err)
	require.Equal(t, fullID, scrubbedID)

	// Scrubbing an already-scrubbed pledge is idempotent.
	scrubbedAgain, err := scrubbed.Scrub()
	require.NoError(t, err)
	require.Equal(t, scrubbed.OrigHash, scrubbedAgain.OrigHash)
}

func TestProjectStatusScrubbedHidesTransactions(t *testing.T) {
	pl := testPledge(t)
	claimHash := [32]byte{0x01}

	status := &lhwire.ProjectStatus{
		ProjectIDHash:     pl.ProjectIDHash,
		Timestamp:         1_700_000_002,
		ValuePledgedSoFar: pl.TotalPledgedSatoshi,
		Pledges:           []*lhwire.Pledge{pl},
		ClaimedBy:         &claimHash,
	}

	scrubbed, err := status.Scrubbed()
	require.NoError(t, err)
	require.Len(t, scrubbed.Pledges, 1)
	require.True(t, scrubbed.Pledges[0].IsScrubbed())
	require.Nil(t, scrubbed.Pledges[0].Transactions)
	require.Equal(t, status.ClaimedBy, scrubbed.ClaimedBy)

	var buf bytes.Buffer
	require.NoError(t, scrubbed.Encode(&buf))
	var got lhwire.ProjectStatus
	require.NoError(t, got.Decode(&buf))
	require.True(t, got.Pledges[0].IsScrubbed())
}

func TestNetworkString(t *testing.T) {
	require.Equal(t, "mainnet", lhwire.NetworkMainnet.String())
	require.Equal(t, "testnet", lhwire.NetworkTestnet.String())
	require.Equal(t, "regtest", lhwire.NetworkRegtest.String())
	require.True(t, lhwire.NetworkMainnet.Recognized())
	require.False(t, lhwire.Network(99).Recognized())
}
