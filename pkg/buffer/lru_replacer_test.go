package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVictimOrder(t *testing.T) {
	r := NewLRUReplacer(4)
	_, ok := r.Victim()
	assert.False(t, ok)

	r.Unpin(2)
	r.Unpin(0)
	r.Unpin(3)
	assert.Equal(t, 3, r.Size())

	// Strict LRU on the sequence of Unpin events.
	for _, want := range []FrameID{2, 0, 3} {
		frame, ok := r.Victim()
		require.True(t, ok)
		assert.Equal(t, want, frame)
	}
	assert.Equal(t, 0, r.Size())
}

func TestPinRemoves(t *testing.T) {
	r := NewLRUReplacer(4)
	r.Unpin(0)
	r.Unpin(1)
	r.Pin(0)
	// Pin is idempotent on absent frames.
	r.Pin(0)
	r.Pin(2)
	assert.Equal(t, 1, r.Size())

	frame, ok := r.Victim()
	require.True(t, ok)
	assert.Equal(t, FrameID(1), frame)
}

func TestUnpinDoesNotReorder(t *testing.T) {
	r := NewLRUReplacer(4)
	r.Unpin(0)
	r.Unpin(1)
	// A second unpin of a queued frame keeps its position.
	r.Unpin(0)
	frame, ok := r.Victim()
	require.True(t, ok)
	assert.Equal(t, FrameID(0), frame)
}

func TestCapacityGuard(t *testing.T) {
	r := NewLRUReplacer(2)
	r.Unpin(0)
	r.Unpin(1)
	// At capacity the front is evicted before appending.
	r.Unpin(2)
	assert.Equal(t, 2, r.Size())
	frame, ok := r.Victim()
	require.True(t, ok)
	assert.Equal(t, FrameID(1), frame)
	frame, ok = r.Victim()
	require.True(t, ok)
	assert.Equal(t, FrameID(2), frame)
}
