package relay

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestLimiterSetPerPeerBudget(t *testing.T) {
	ls := newLimiterSet(rate.Limit(1), 2)

	require.True(t, ls.allow("1.2.3.4"))
	require.True(t, ls.allow("1.2.3.4"))
	require.False(t, ls.allow("1.2.3.4"))

	// A different remote address gets its own budget.
	require.True(t, ls.allow("5.6.7.8"))
}
