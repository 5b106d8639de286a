package bitcoinview_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btcdwire "github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lighthouse/bitcoinview"
	"github.com/lightningnetwork/lighthouse/lherr"
	"github.com/stretchr/testify/require"
)

func testOutpoint() btcdwire.OutPoint {
	return btcdwire.OutPoint{Hash: chainhash.Hash{0x01}, Index: 0}
}

func TestReconcileAgreeingPeersUnspent(t *testing.T) {
	op := testOutpoint()
	answers := []bitcoinview.UTXOAnswer{
		{Spent: false, Amount: 100_000, Script: []byte{0xAA}},
		{Spent: false, Amount: 100_000, Script: []byte{0xAA}},
	}

	res, err := bitcoinview.Reconcile(op, answers, 2)
	require.NoError(t, err)
	require.False(t, res.Spent)
	require.Equal(t, int64(100_000), res.Amount)
}

func TestReconcileAgreeingPeersSpent(t *testing.T) {
	op := testOutpoint()
	answers := []bitcoinview.UTXOAnswer{
		{Spent: true},
		{Spent: true},
		{Spent: true},
	}

	res, err := bitcoinview.Reconcile(op, answers, 2)
	require.NoError(t, err)
	require.True(t, res.Spent)
}

func TestReconcileBelowQuorumIsTimeout(t *testing.T) {
	op := testOutpoint()
	answers := []bitcoinview.UTXOAnswer{
		{Spent: false, Amount: 100_000, Script: []byte{0xAA}},
	}

	_, err := bitcoinview.Reconcile(op, answers, 2)
	require.Error(t, err)

	var le *lherr.Error
	require.ErrorAs(t, err, &le)
	require.Equal(t, lherr.Timeout, le.Kind)
	require.Equal(t, int64(1), le.Delta)
}

func TestReconcileDisagreeingSpentnessIsInconsistent(t *testing.T) {
	op := testOutpoint()
	answers := []bitcoinview.UTXOAnswer{
		{Spent: false, Amount: 100_000, Script: []byte{0xAA}},
		{Spent: true},
	}

	_, err := bitcoinview.Reconcile(op, answers, 2)
	require.Error(t, err)

	var le *lherr.Error
	require.ErrorAs(t, err, &le)
	require.Equal(t, lherr.InconsistentUTXOAnswers, le.Kind)
}

func TestReconcileDisagreeingAmountIsInconsistent(t *testing.T) {
	op := testOutpoint()
	answers := []bitcoinview.UTXOAnswer{
		{Spent: false, Amount: 100_000, Script: []byte{0xAA}},
		{Spent: false, Amount: 99_999, Script: []byte{0xAA}},
	}

	_, err := bitcoinview.Reconcile(op, answers, 2)
	require.Error(t, err)

	var le *lherr.Error
	require.ErrorAs(t, err, &le)
	require.Equal(t, lherr.InconsistentUTXOAnswers, le.Kind)
}

func TestReconcileAllStopsOnFirstError(t *testing.T) {
	good := testOutpoint()
	bad := btcdwire.OutPoint{Hash: chainhash.Hash{0x02}, Index: 1}

	answers := map[btcdwire.OutPoint][]bitcoinview.UTXOAnswer{
		good: {
			{Spent: false, Amount: 1, Script: []byte{0x01}},
			{Spent: false, Amount: 1, Script: []byte{0x01}},
		},
		bad: {
			{Spent: false},
		},
	}

	_, err := bitcoinview.ReconcileAll(answers, 2)
	require.Error(t, err)
}

func TestReconcileAllSucceeds(t *testing.T) {
	good := testOutpoint()
	also := btcdwire.OutPoint{Hash: chainhash.Hash{0x02}, Index: 1}

	answers := map[btcdwire.OutPoint][]bitcoinview.UTXOAnswer{
		good: {
			{Spent: false, Amount: 1, Script: []byte{0x01}},
			{Spent: false, Amount: 1, Script: []byte{0x01}},
		},
		also: {
			{Spent: true},
			{Spent: true},
		},
	}

	res, err := bitcoinview.ReconcileAll(answers, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.False(t, res[good].Spent)
	require.True(t, res[also].Spent)
}
