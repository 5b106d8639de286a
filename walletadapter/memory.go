package walletadapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	lhwire "github.com/lightningnetwork/lighthouse/wire"
)

// Memory is an in-process Adapter: it signs with auth keys it holds itself
// and never touches the network. cmd/lighthouse runs with it as the node's
// wallet and the engine tests use it. Auth signing and the pledge list are
// real; CreatePledge always fails and Revoke reports an empty result
// without spending anything.
type Memory struct {
	mu        sync.Mutex
	authKeys  map[[32]byte]*btcec.PrivateKey
	pledges   map[[32]byte][]*lhwire.Pledge
	callbacks []func(StubSpend)
}

// NewMemory returns an empty in-memory wallet adapter.
func NewMemory() *Memory {
	return &Memory{
		authKeys: make(map[[32]byte]*btcec.PrivateKey),
		pledges:  make(map[[32]byte][]*lhwire.Pledge),
	}
}

// SetAuthKey installs the auth private key a project will use; tests call
// this before constructing the project so AuthPubkey/SignAuth work.
func (m *Memory) SetAuthKey(projectIDHash [32]byte, priv *btcec.PrivateKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authKeys[projectIDHash] = priv
}

// CreatePledge implements Adapter. Test callers typically build the pledge
// transaction themselves and register it directly via AddPledge instead;
// CreatePledge here is a minimal stand-in that refuses to fabricate a
// signed transaction (that requires a real funded UTXO, out of scope for a
// pure in-memory double) and exists so Adapter's full surface is exercised
// without a real wallet in unit tests that don't need it.
func (m *Memory) CreatePledge(ctx context.Context, projectIDHash [32]byte, req PledgeRequest) (*lhwire.Pledge, error) {
	return nil, fmt.Errorf("walletadapter.Memory: CreatePledge requires a funded UTXO fixture; use AddPledge in tests")
}

// AddPledge registers a pre-built pledge as one this wallet created.
func (m *Memory) AddPledge(projectIDHash [32]byte, pledge *lhwire.Pledge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pledges[projectIDHash] = append(m.pledges[projectIDHash], pledge)
}

// Revoke implements Adapter by synchronously "broadcasting" a zero-value
// result; tests that want to exercise the spend notification should call
// NotifyStubSpent directly.
func (m *Memory) Revoke(ctx context.Context, pledge *lhwire.Pledge) (<-chan BroadcastResult, error) {
	ch := make(chan BroadcastResult, 1)
	ch <- BroadcastResult{}
	close(ch)
	return ch, nil
}

// PledgesFor implements Adapter.
func (m *Memory) PledgesFor(projectIDHash [32]byte) ([]*lhwire.Pledge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*lhwire.Pledge(nil), m.pledges[projectIDHash]...), nil
}

// SignAuth implements Adapter.
func (m *Memory) SignAuth(projectIDHash [32]byte, message []byte) ([]byte, error) {
	m.mu.Lock()
	priv, ok := m.authKeys[projectIDHash]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("walletadapter.Memory: no auth key for project")
	}
	digest := doubleSHA256(message)
	sig := ecdsaSign(priv, digest)
	return sig, nil
}

// AuthPubkey implements Adapter.
func (m *Memory) AuthPubkey(projectIDHash [32]byte) (*btcec.PublicKey, error) {
	m.mu.Lock()
	priv, ok := m.authKeys[projectIDHash]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("walletadapter.Memory: no auth key for project")
	}
	return priv.PubKey(), nil
}

// Keys returns a copy of every auth key this adapter currently holds, for
// a caller that wants to persist them (see LoadKeystore/SaveKeystore).
func (m *Memory) Keys() map[[32]byte]*btcec.PrivateKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[[32]byte]*btcec.PrivateKey, len(m.authKeys))
	for k, v := range m.authKeys {
		out[k] = v
	}
	return out
}

// OnStubSpent implements Adapter.
func (m *Memory) OnStubSpent(callback func(StubSpend)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// NotifyStubSpent lets a test simulate a wallet-observed revocation.
func (m *Memory) NotifyStubSpent(spend StubSpend) {
	m.mu.Lock()
	cbs := append([]func(StubSpend){}, m.callbacks...)
	m.mu.Unlock()
	for _, cb := range cbs {
		cb(spend)
	}
}
