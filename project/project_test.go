package project_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lighthouse/lherr"
	"github.com/lightningnetwork/lighthouse/project"
	lhwire "github.com/lightningnetwork/lighthouse/wire"
	"github.com/stretchr/testify/require"
)

const testDustSatoshi = 546

func testRawProject(t *testing.T, minPledge uint64) lhwire.Project {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	return lhwire.Project{
		NetworkTag: lhwire.NetworkRegtest,
		Outputs: []lhwire.TxOutput{
			{AmountSatoshi: 10_000_000, Script: []byte{0x00, 0x14, 0x01}},
		},
		Timestamp: 1_700_000_000,
		Memo:      "test project",
		Extra: lhwire.ExtraDetails{
			Title:            "test",
			AuthPubkey:       priv.PubKey(),
			MinPledgeSatoshi: minPledge,
		},
	}
}

func TestNewProjectAccepted(t *testing.T) {
	floor := project.MinPledgeFloor(10_000_000, testDustSatoshi)
	raw := testRawProject(t, uint64(floor))

	p, err := project.New(raw, &chaincfg.RegressionNetParams, testDustSatoshi)
	require.NoError(t, err)
	require.Equal(t, int64(10_000_000), p.GoalSatoshi())
	require.Equal(t, floor, p.MinPledgeSatoshi())
	require.NotNil(t, p.AuthPubkey())

	id1 := p.IDHash()
	p2, err := project.New(raw, &chaincfg.RegressionNetParams, testDustSatoshi)
	require.NoError(t, err)
	require.Equal(t, id1, p2.IDHash())
}

func TestNewProjectRejectsUnrecognizedNetwork(t *testing.T) {
	raw := testRawProject(t, 1000)
	raw.NetworkTag = lhwire.Network(99)

	_, err := project.New(raw, &chaincfg.RegressionNetParams, testDustSatoshi)
	require.Error(t, err)

	var le *lherr.Error
	require.ErrorAs(t, err, &le)
	require.Equal(t, lherr.BadProject, le.Kind)
}

func TestNewProjectRejectsNoOutputs(t *testing.T) {
	raw := testRawProject(t, 1000)
	raw.Outputs = nil

	_, err := project.New(raw, &chaincfg.RegressionNetParams, testDustSatoshi)
	require.Error(t, err)
}

func TestNewProjectRejectsMinPledgeBelowFloor(t *testing.T) {
	raw := testRawProject(t, 1)

	_, err := project.New(raw, &chaincfg.RegressionNetParams, testDustSatoshi)
	require.Error(t, err)

	var le *lherr.Error
	require.ErrorAs(t, err, &le)
	require.Equal(t, lherr.BadProject, le.Kind)
}

func TestNewProjectRejectsMinPledgeAboveGoal(t *testing.T) {
	raw := testRawProject(t, 20_000_000)

	_, err := project.New(raw, &chaincfg.RegressionNetParams, testDustSatoshi)
	require.Error(t, err)
}

func TestNewProjectRejectsMissingAuthPubkey(t *testing.T) {
	floor := project.MinPledgeFloor(10_000_000, testDustSatoshi)
	raw := testRawProject(t, uint64(floor))
	raw.Extra.AuthPubkey = nil

	_, err := project.New(raw, &chaincfg.RegressionNetParams, testDustSatoshi)
	require.Error(t, err)
}

func TestMinPledgeFloor(t *testing.T) {
	// A large goal is bounded by MaxNumInputs.
	require.Equal(t, int64(25_000), project.MinPledgeFloor(10_000_000, 100))

	// A small goal falls back to the 4x dust-sanity floor.
	require.Equal(t, int64(2_184), project.MinPledgeFloor(1_000, 546))
}
