package mirror_test

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lighthouse/mirror"
	"github.com/stretchr/testify/require"
)

func TestWriterPutDeleteSnapshot(t *testing.T) {
	w := mirror.NewWriter[string, int]()

	w.Put("a", 1)
	w.Put("b", 2)

	snap := w.Snapshot()
	require.Equal(t, map[string]int{"a": 1, "b": 2}, snap)

	v, ok := w.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	w.Delete("a")
	_, ok = w.Get("a")
	require.False(t, ok)
}

func TestMirrorTracksWriterDeltas(t *testing.T) {
	w := mirror.NewWriter[string, int]()
	w.Put("seed", 100)

	m := w.NewMirror(mirror.Inline)
	require.Equal(t, map[string]int{"seed": 100}, m.Snapshot())

	w.Put("seed", 200)
	w.Put("added", 1)
	w.Delete("seed")

	require.Eventually(t, func() bool {
		_, hasSeed := m.Get("seed")
		v, hasAdded := m.Get("added")
		return !hasSeed && hasAdded && v == 1
	}, time.Second, time.Millisecond)
}

func TestMirrorOnChangeCallback(t *testing.T) {
	w := mirror.NewWriter[string, int]()
	m := w.NewMirror(mirror.Inline)

	var received []mirror.Delta[string, int]
	m.OnChange(func(d mirror.Delta[string, int]) {
		received = append(received, d)
	})

	w.Put("x", 1)
	w.Put("x", 2)
	w.Delete("x")

	require.Eventually(t, func() bool {
		return len(received) == 3
	}, time.Second, time.Millisecond)

	require.Equal(t, mirror.Added, received[0].Kind)
	require.Equal(t, mirror.Replaced, received[1].Kind)
	require.Equal(t, 1, received[1].OldValue)
	require.Equal(t, mirror.Removed, received[2].Kind)
}
