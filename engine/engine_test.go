package engine_test

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	btcdwire "github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lighthouse/bitcoinview"
	"github.com/lightningnetwork/lighthouse/diskman"
	"github.com/lightningnetwork/lighthouse/engine"
	"github.com/lightningnetwork/lighthouse/project"
	"github.com/lightningnetwork/lighthouse/store"
	"github.com/lightningnetwork/lighthouse/walletadapter"
	lhwire "github.com/lightningnetwork/lighthouse/wire"
	"github.com/stretchr/testify/require"
)

// fakeView is a hand-written bitcoinview.View double: an outpoint the test
// registered via setUTXO is reported unspent at that amount/script, any
// other outpoint is reported spent, and both "peers" always agree so the
// quorum check resolves without needing a real peer group.
type fakeView struct {
	mu    sync.Mutex
	utxos map[btcdwire.OutPoint]bitcoinview.UTXOAnswer
}

func newFakeView() *fakeView {
	return &fakeView{utxos: make(map[btcdwire.OutPoint]bitcoinview.UTXOAnswer)}
}

func (f *fakeView) setUTXO(op btcdwire.OutPoint, amount int64, script []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.utxos[op] = bitcoinview.UTXOAnswer{Spent: false, Amount: amount, Script: script}
}

func (f *fakeView) GetUTXOs(ctx context.Context, outpoints []btcdwire.OutPoint, includeMempool bool) (map[btcdwire.OutPoint][]bitcoinview.UTXOAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[btcdwire.OutPoint][]bitcoinview.UTXOAnswer, len(outpoints))
	for _, op := range outpoints {
		ans, ok := f.utxos[op]
		if !ok {
			ans = bitcoinview.UTXOAnswer{Spent: true}
		}
		out[op] = []bitcoinview.UTXOAnswer{ans, ans}
	}
	return out, nil
}

func (f *fakeView) Broadcast(ctx context.Context, tx *btcdwire.MsgTx) (bitcoinview.BroadcastResult, error) {
	return bitcoinview.BroadcastResult{PropagatedCount: 2}, nil
}

func (f *fakeView) WatchForSpend(outpoint btcdwire.OutPoint, callback func(bitcoinview.SpendDetail)) error {
	return nil
}

func (f *fakeView) OnNewBlock(callback func(bitcoinview.BlockEpoch)) {}

func (f *fakeView) Start() error { return nil }
func (f *fakeView) Stop() error  { return nil }

// buildSignedPledgeTx mirrors project package's own shape-test fixture: a
// one-input, one-output P2WPKH transaction paying projectOutput, signed
// SIGHASH_ANYONECANPAY|SIGHASH_ALL over a fabricated previous output.
func buildSignedPledgeTx(t *testing.T, projectOutput lhwire.TxOutput, prevAmount int64) ([]byte, lhwire.TxOutput, btcdwire.OutPoint) {
	t.Helper()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	pkHash := btcutil.Hash160(priv.PubKey().SerializeCompressed())
	prevScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).AddData(pkHash).Script()
	require.NoError(t, err)

	prevOutpoint := btcdwire.OutPoint{Hash: chainhash.Hash{0xBB}, Index: 0}

	tx := btcdwire.NewMsgTx(btcdwire.TxVersion)
	tx.AddTxIn(&btcdwire.TxIn{PreviousOutPoint: prevOutpoint})
	tx.AddTxOut(&btcdwire.TxOut{Value: projectOutput.AmountSatoshi, PkScript: projectOutput.Script})

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
	return buf.Bytes(), prevOut, prevOutpoint
}

func testProjectWire(t *testing.T) (lhwire.Project, *btcec.PrivateKey) {
	t.Helper()
	authPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	raw := lhwire.Project{
		NetworkTag: lhwire.NetworkRegtest,
		Outputs:    []lhwire.TxOutput{{AmountSatoshi: 10_000_000, Script: []byte{0x00, 0x14, 0x01}}},
		Timestamp:  1_700_000_000,
		Memo:       "engine test project",
		Extra: lhwire.ExtraDetails{
			Title:            "engine test",
			AuthPubkey:       authPriv.PubKey(),
			MinPledgeSatoshi: uint64(project.MinPledgeFloor(10_000_000, 546)),
		},
	}
	return raw, authPriv
}

// newTestEngine wires a real DiskManager and Store over temp directories, a
// walletadapter.Memory, and a fakeView standing in for the peer group —
// everything engine.Config needs, none of it touching the network.
func newTestEngine(t *testing.T) (*engine.Engine, *fakeView, string) {
	t.Helper()
	dir := t.TempDir()

	disk, err := diskman.New([]string{dir})
	require.NoError(t, err)
	require.NoError(t, disk.Start())
	t.Cleanup(func() { disk.Stop() })

	st, err := store.Open(filepath.Join(dir, "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	view := newFakeView()

	e := engine.New(engine.Config{
		ChainParams: &chaincfg.RegressionNetParams,
		DustSatoshi: 546,
		QuorumSize:  2,
		View:        view,
		Wallet:      walletadapter.NewMemory(),
		Disk:        disk,
		Store:       st,
	})
	require.NoError(t, e.Start())
	t.Cleanup(func() { e.Stop() })

	return e, view, dir
}

func TestEngineLoadsDiskProjectAndPublishesSnapshot(t *testing.T) {
	e, _, dir := newTestEngine(t)
	raw, _ := testProjectWire(t)

	framed, err := lhwire.EncodeFramed(&raw)
	require.NoError(t, err)
	_, err = diskman.WriteProject(dir, "engine-test", framed)
	require.NoError(t, err)

	p, err := project.New(raw, &chaincfg.RegressionNetParams, 546)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := e.WireMessage(p.IDHash(), true)
		return err == nil && status.ProjectIDHash == p.IDHash()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngineSubmitPledgeGoesOpenAfterQuorumCheck(t *testing.T) {
	e, view, dir := newTestEngine(t)
	raw, _ := testProjectWire(t)

	framed, err := lhwire.EncodeFramed(&raw)
	require.NoError(t, err)
	_, err = diskman.WriteProject(dir, "engine-test", framed)
	require.NoError(t, err)

	p, err := project.New(raw, &chaincfg.RegressionNetParams, 546)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := e.WireMessage(p.IDHash(), true)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	txBytes, prevOut, prevOutpoint := buildSignedPledgeTx(t, raw.Outputs[0], 1_000_000)
	view.setUTXO(prevOutpoint, prevOut.AmountSatoshi, prevOut.Script)

	pledge := &lhwire.Pledge{
		ProjectIDHash:       p.IDHash(),
		TotalPledgedSatoshi: uint64(prevOut.AmountSatoshi),
		Timestamp:           1_700_000_010,
		Name:                "tester",
		Transactions:        [][]byte{txBytes},
		PrevOutputs:         []lhwire.TxOutput{prevOut},
	}
	pledgeFramed, err := lhwire.EncodeFramed(pledge)
	require.NoError(t, err)

	status, err := e.SubmitPledge(engine.SourceHTTPUpload, pledgeFramed)
	require.NoError(t, err)
	require.Equal(t, int64(prevOut.AmountSatoshi), status.ValuePledged)
	require.Len(t, status.OpenPledges, 1)
	require.True(t, status.OpenPledges[0].CheckOK)
}

func TestEngineSubmitPledgeRejectsSpentInput(t *testing.T) {
	e, view, dir := newTestEngine(t)
	raw, _ := testProjectWire(t)

	framed, err := lhwire.EncodeFramed(&raw)
	require.NoError(t, err)
	_, err = diskman.WriteProject(dir, "engine-test", framed)
	require.NoError(t, err)

	p, err := project.New(raw, &chaincfg.RegressionNetParams, 546)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := e.WireMessage(p.IDHash(), true)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	txBytes, prevOut, _ := buildSignedPledgeTx(t, raw.Outputs[0], 1_000_000)
	// Deliberately do not register the outpoint with view: fakeView reports
	// any unknown outpoint as spent, so this pledge never reaches OPEN.

	pledge := &lhwire.Pledge{
		ProjectIDHash:       p.IDHash(),
		TotalPledgedSatoshi: uint64(prevOut.AmountSatoshi),
		Timestamp:           1_700_000_010,
		Name:                "tester",
		Transactions:        [][]byte{txBytes},
		PrevOutputs:         []lhwire.TxOutput{prevOut},
	}
	pledgeFramed, err := lhwire.EncodeFramed(pledge)
	require.NoError(t, err)

	_, err = e.SubmitPledge(engine.SourceHTTPUpload, pledgeFramed)
	require.Error(t, err)

	status, err := e.WireMessage(p.IDHash(), true)
	require.NoError(t, err)
	require.Equal(t, int64(0), status.ValuePledgedSoFar)
}
