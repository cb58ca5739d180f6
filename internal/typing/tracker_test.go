package typing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(window time.Duration) (*Tracker, *time.Time) {
	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	t := NewTracker(window)
	t.clock = func() time.Time { return now }
	return t, &now
}

func all(sig Signal) bool { return true }

func TestSignalExpiresWithoutStop(t *testing.T) {
	tr, now := newTestTracker(3 * time.Second)
	tr.StartTyping("alice", "bob")

	*now = now.Add(2 * time.Second)
	require.Len(t, tr.ListActive(all), 1)

	*now = now.Add(1500 * time.Millisecond)
	assert.Empty(t, tr.ListActive(all), "expired signal reads as not typing without an explicit stop")
}

func TestStopTypingImmediate(t *testing.T) {
	tr, _ := newTestTracker(3 * time.Second)
	tr.StartTyping("alice", "bob")
	tr.StopTyping("alice", "bob")
	assert.Empty(t, tr.ListActive(all))
}

func TestStartRefreshesNotStacks(t *testing.T) {
	tr, now := newTestTracker(3 * time.Second)
	tr.StartTyping("alice", "bob")

	*now = now.Add(2 * time.Second)
	tr.StartTyping("alice", "bob")

	// Past the first window but inside the refreshed one.
	*now = now.Add(2 * time.Second)
	require.Len(t, tr.ListActive(all), 1)

	// One stop clears it; there is no typing count to unwind.
	tr.StopTyping("alice", "bob")
	assert.Empty(t, tr.ListActive(all))
}

func TestDistinctPairsAreIndependent(t *testing.T) {
	tr, _ := newTestTracker(3 * time.Second)
	tr.StartTyping("alice", "bob")
	tr.StartTyping("alice", "") // broadcast
	tr.StartTyping("carol", "bob")

	assert.Len(t, tr.ListActive(all), 3)

	tr.StopTyping("alice", "bob")
	assert.Len(t, tr.ListActive(all), 2)
}

func TestListActiveFilter(t *testing.T) {
	tr, _ := newTestTracker(3 * time.Second)
	tr.StartTyping("alice", "bob")
	tr.StartTyping("carol", "")

	direct := tr.ListActive(func(sig Signal) bool { return sig.RecipientID != "" })
	require.Len(t, direct, 1)
	assert.Equal(t, "alice", direct[0].UserID)
}

func TestPruneDropsExpiredOnly(t *testing.T) {
	tr, now := newTestTracker(3 * time.Second)
	tr.StartTyping("alice", "bob")
	*now = now.Add(4 * time.Second)
	tr.StartTyping("carol", "bob")

	assert.Equal(t, 1, tr.Prune())
	assert.Len(t, tr.ListActive(all), 1)
}

func TestOnChangeFires(t *testing.T) {
	tr, _ := newTestTracker(3 * time.Second)
	type change struct {
		sig      Signal
		isTyping bool
	}
	var changes []change
	tr.OnChange(func(sig Signal, isTyping bool) {
		changes = append(changes, change{sig, isTyping})
	})

	tr.StartTyping("alice", "bob")
	tr.StopTyping("alice", "bob")
	tr.StopTyping("alice", "bob") // already gone, no event

	require.Len(t, changes, 2)
	assert.True(t, changes[0].isTyping)
	assert.False(t, changes[1].isTyping)
}
