package engine

import (
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

// PeerChurnPollInterval is how often the engine re-issues UTXO quorum
// checks for limbo pledges even absent a new block, to catch the
// peer-set-churn retry trigger the design names alongside refresh and
// new-block. BitcoinView has no explicit "peer set changed" notification,
// so a low-frequency poll stands in for it.
const PeerChurnPollInterval = 2 * time.Minute

// tickSource bundles the clock and ticker the engine uses for its one
// periodic background trigger. New always builds it with the default clock
// and a live ticker; Config has no field to replace them.
type tickSource struct {
	clock  clock.Clock
	ticker ticker.Ticker
}

func newTickSource() *tickSource {
	return &tickSource{
		clock:  clock.NewDefaultClock(),
		ticker: ticker.New(PeerChurnPollInterval),
	}
}

func (e *Engine) runTicker(ts *tickSource) {
	ts.ticker.Resume()
	defer ts.ticker.Stop()

	for {
		select {
		case <-ts.ticker.Ticks():
			e.queue <- peerChurnTick{}
		case <-e.quit:
			return
		}
	}
}

// peerChurnTick is the internal event the periodic ticker enqueues.
type peerChurnTick struct{}

func (peerChurnTick) isEngineEvent() {}
