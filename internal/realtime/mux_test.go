package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"team-pulse/internal/presence"
)

type fakeSub struct {
	userID string
	block  bool // simulate an unresponsive connection

	mu     sync.Mutex
	events []Event
}

func (f *fakeSub) UserID() string { return f.userID }

func (f *fakeSub) Send(ctx context.Context, ev Event) error {
	if f.block {
		<-ctx.Done()
		return ErrSubscriberUnreachable
	}
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	return nil
}

func (f *fakeSub) received() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

func presenceEvent(userID string) Event {
	return PresenceEvent(presence.Record{UserID: userID, Status: presence.StatusOnline})
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	mux := NewMux(50 * time.Millisecond)
	c1 := &fakeSub{userID: "alice"}
	c2 := &fakeSub{userID: "bob"}
	mux.Subscribe(Global, c1)
	mux.Subscribe(Global, c2)

	require.NoError(t, mux.Publish(context.Background(), presenceEvent("carol")))

	assert.Len(t, c1.received(), 1)
	assert.Len(t, c2.received(), 1)
}

func TestUnresponsiveSubscriberIsDroppedNotBlocking(t *testing.T) {
	mux := NewMux(20 * time.Millisecond)
	good := &fakeSub{userID: "alice"}
	bad := &fakeSub{userID: "bob", block: true}
	mux.Subscribe(Global, good)
	mux.Subscribe(Global, bad)

	require.NoError(t, mux.Publish(context.Background(), presenceEvent("carol")))
	assert.Len(t, good.received(), 1)

	// The failed subscriber was unsubscribed as a side effect.
	assert.False(t, mux.HasSubscriber(Global, "bob"))
	require.NoError(t, mux.Publish(context.Background(), presenceEvent("dave")))
	assert.Len(t, good.received(), 2)
}

func TestScopeIsolation(t *testing.T) {
	mux := NewMux(50 * time.Millisecond)
	global := &fakeSub{userID: "alice"}
	direct := &fakeSub{userID: "bob"}
	mux.Subscribe(Global, global)
	mux.Subscribe(Direct("bob", "carol"), direct)

	ev := presenceEvent("x")
	ev.Scope = Direct("bob", "carol")
	require.NoError(t, mux.Publish(context.Background(), ev))

	assert.Empty(t, global.received())
	assert.Len(t, direct.received(), 1)
}

func TestNoRetroactiveDelivery(t *testing.T) {
	mux := NewMux(50 * time.Millisecond)
	require.NoError(t, mux.Publish(context.Background(), presenceEvent("carol")))

	late := &fakeSub{userID: "alice"}
	mux.Subscribe(Global, late)
	assert.Empty(t, late.received())
}

func TestFIFOPerScope(t *testing.T) {
	mux := NewMux(50 * time.Millisecond)
	sub := &fakeSub{userID: "alice"}
	mux.Subscribe(Global, sub)

	for i := 0; i < 100; i++ {
		ev := presenceEvent("u")
		ev.Presence.CustomStatus = string(rune('a' + i%26))
		ev.Presence.LastSeen = time.Unix(int64(i), 0)
		require.NoError(t, mux.Publish(context.Background(), ev))
	}

	got := sub.received()
	require.Len(t, got, 100)
	for i, ev := range got {
		assert.Equal(t, time.Unix(int64(i), 0), ev.Presence.LastSeen)
	}
}

func TestCancelIdempotent(t *testing.T) {
	mux := NewMux(50 * time.Millisecond)
	sub := &fakeSub{userID: "alice"}
	handle := mux.Subscribe(Global, sub)

	handle.Cancel()
	handle.Cancel() // safe after the connection already dropped

	require.NoError(t, mux.Publish(context.Background(), presenceEvent("bob")))
	assert.Empty(t, sub.received())
}

func TestCancelDuringFanOut(t *testing.T) {
	mux := NewMux(20 * time.Millisecond)
	slow := &fakeSub{userID: "alice", block: true}
	handle := mux.Subscribe(Global, slow)

	done := make(chan struct{})
	go func() {
		mux.Publish(context.Background(), presenceEvent("bob"))
		close(done)
	}()
	handle.Cancel() // must not deadlock against the in-flight fan-out

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish deadlocked against concurrent cancel")
	}
}

func TestHasSubscriber(t *testing.T) {
	mux := NewMux(50 * time.Millisecond)
	sub := &fakeSub{userID: "alice"}
	handle := mux.Subscribe(Direct("alice", "bob"), sub)

	assert.True(t, mux.HasSubscriber(Direct("bob", "alice"), "alice"))
	assert.False(t, mux.HasSubscriber(Direct("bob", "alice"), "bob"))
	assert.False(t, mux.HasSubscriber(Global, "alice"))

	handle.Cancel()
	assert.False(t, mux.HasSubscriber(Direct("bob", "alice"), "alice"))
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	mux := NewMux(20 * time.Millisecond)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := &fakeSub{userID: "u"}
			h := mux.Subscribe(Global, sub)
			h.Cancel()
		}()
		go func() {
			defer wg.Done()
			mux.Publish(context.Background(), presenceEvent("x"))
		}()
	}
	wg.Wait()
}
