package project_test

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	btcdwire "github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lighthouse/lherr"
	"github.com/lightningnetwork/lighthouse/project"
	lhwire "github.com/lightningnetwork/lighthouse/wire"
	"github.com/stretchr/testify/require"
)

// buildSignedPledgeTx builds a one-input, one-output P2WPKH transaction
// paying projectOutput, signed with SIGHASH_ANYONECANPAY|SIGHASH_ALL over a
// fabricated previous output, the shape CheckPledgeShape requires.
func buildSignedPledgeTx(t *testing.T, projectOutput lhwire.TxOutput, prevAmount int64) ([]byte, lhwire.TxOutput) {
	t.Helper()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	pkHash := btcutil.Hash160(priv.PubKey().SerializeCompressed())
	prevScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).AddData(pkHash).Script()
	require.NoError(t, err)

	tx := btcdwire.NewMsgTx(btcdwire.TxVersion)
	tx.AddTxIn(&btcdwire.TxIn{
		PreviousOutPoint: btcdwire.OutPoint{Hash: chainhash.Hash{0xAA}, Index: 0},
	})
	tx.AddTxOut(&btcdwire.TxOut{
		Value:    projectOutput.AmountSatoshi,
		PkScript: projectOutput.Script,
	})

	prevOut := lhwire.TxOutput{AmountSatoshi: prevAmount, Script: prevScript}
	prevFetcher := txscript.NewCannedPrevOutputFetcher(prevOut.Script, prevOut.AmountSatoshi)
	sigHashes := txscript.NewTxSigHashes(tx, prevFetcher)

	witness, err := txscript.WitnessSignature(
		tx, sigHashes, 0, prevOut.AmountSatoshi, prevScript,
		txscript.SigHashAnyOneCanPay|txscript.SigHashAll, priv, true,
	)
	require.NoError(t, err)
	tx.TxIn[0].Witness = witness

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	return buf.Bytes(), prevOut
}

func TestCheckPledgeShapeAcceptsValidPledge(t *testing.T) {
	raw := testRawProject(t, 0)
	raw.Extra.MinPledgeSatoshi = uint64(project.MinPledgeFloor(raw.Outputs[0].AmountSatoshi, testDustSatoshi))
	p, err := project.New(raw, &chaincfg.RegressionNetParams, testDustSatoshi)
	require.NoError(t, err)

	txBytes, prevOut := buildSignedPledgeTx(t, raw.Outputs[0], raw.Outputs[0].AmountSatoshi+1000)

	pledge := &lhwire.Pledge{
		ProjectIDHash:       p.IDHash(),
		TotalPledgedSatoshi: uint64(prevOut.AmountSatoshi),
		Timestamp:           1_700_000_010,
		Name:                "tester",
		Transactions:        [][]byte{txBytes},
		PrevOutputs:         []lhwire.TxOutput{prevOut},
	}

	decoded, err := p.CheckPledgeShape(pledge)
	require.NoError(t, err)
	require.NotNil(t, decoded.Tx)
	require.Equal(t, pledge.ProjectIDHash, decoded.Msg.ProjectIDHash)
}

func TestCheckPledgeShapeRejectsWrongProject(t *testing.T) {
	raw := testRawProject(t, 0)
	raw.Extra.MinPledgeSatoshi = uint64(project.MinPledgeFloor(raw.Outputs[0].AmountSatoshi, testDustSatoshi))
	p, err := project.New(raw, &chaincfg.RegressionNetParams, testDustSatoshi)
	require.NoError(t, err)

	txBytes, prevOut := buildSignedPledgeTx(t, raw.Outputs[0], raw.Outputs[0].AmountSatoshi+1000)

	pledge := &lhwire.Pledge{
		ProjectIDHash:       [32]byte{0xFF},
		TotalPledgedSatoshi: uint64(prevOut.AmountSatoshi),
		Transactions:        [][]byte{txBytes},
		PrevOutputs:         []lhwire.TxOutput{prevOut},
	}

	_, err = p.CheckPledgeShape(pledge)
	require.Error(t, err)
	var le *lherr.Error
	require.ErrorAs(t, err, &le)
	require.Equal(t, lherr.BadPledgeShape, le.Kind)
}

func TestCheckPledgeShapeRejectsScrubbedPledge(t *testing.T) {
	raw := testRawProject(t, 0)
	raw.Extra.MinPledgeSatoshi = uint64(project.MinPledgeFloor(raw.Outputs[0].AmountSatoshi, testDustSatoshi))
	p, err := project.New(raw, &chaincfg.RegressionNetParams, testDustSatoshi)
	require.NoError(t, err)

	pledge := &lhwire.Pledge{ProjectIDHash: p.IDHash()}
	scrubHash := [32]byte{0x01}
	pledge.OrigHash = &scrubHash

	_, err = p.CheckPledgeShape(pledge)
	require.Error(t, err)
}

func TestCheckPledgeShapeRejectsMismatchedOutputs(t *testing.T) {
	raw := testRawProject(t, 0)
	raw.Extra.MinPledgeSatoshi = uint64(project.MinPledgeFloor(raw.Outputs[0].AmountSatoshi, testDustSatoshi))
	p, err := project.New(raw, &chaincfg.RegressionNetParams, testDustSatoshi)
	require.NoError(t, err)

	wrongOutput := lhwire.TxOutput{AmountSatoshi: raw.Outputs[0].AmountSatoshi + 1, Script: raw.Outputs[0].Script}
	txBytes, prevOut := buildSignedPledgeTx(t, wrongOutput, wrongOutput.AmountSatoshi+1000)

	pledge := &lhwire.Pledge{
		ProjectIDHash:       p.IDHash(),
		TotalPledgedSatoshi: uint64(prevOut.AmountSatoshi),
		Transactions:        [][]byte{txBytes},
		PrevOutputs:         []lhwire.TxOutput{prevOut},
	}

	_, err = p.CheckPledgeShape(pledge)
	require.Error(t, err)
}
