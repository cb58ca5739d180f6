package typing

import (
	"sync"
	"time"
)

// Signal records that a user is composing a message. RecipientID is empty for
// broadcast typing. A signal is only meaningful until ExpiresAt; after that it
// reads as not-typing whether or not it is still in the map.
type Signal struct {
	UserID      string    `json:"user_id"`
	RecipientID string    `json:"recipient_id,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type key struct {
	userID      string
	recipientID string
}

type Tracker struct {
	mu         sync.RWMutex
	signals    map[key]Signal
	idleWindow time.Duration
	clock      func() time.Time
	onChange   func(Signal, bool) // signal, isTyping; nil ok
}

func NewTracker(idleWindow time.Duration) *Tracker {
	return &Tracker{
		signals:    map[key]Signal{},
		idleWindow: idleWindow,
		clock:      time.Now,
	}
}

// OnChange registers a callback fired on start and explicit stop. Expiry is
// lazy and fires no callback; readers see expired signals as absent.
func (t *Tracker) OnChange(fn func(Signal, bool)) {
	t.onChange = fn
}

// StartTyping inserts or refreshes the signal. Repeated calls for the same
// pair refresh the expiry, they never stack.
func (t *Tracker) StartTyping(userID, recipientID string) Signal {
	t.mu.Lock()
	sig := Signal{
		UserID:      userID,
		RecipientID: recipientID,
		ExpiresAt:   t.clock().Add(t.idleWindow),
	}
	t.signals[key{userID, recipientID}] = sig
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(sig, true)
	}
	return sig
}

// StopTyping removes the signal immediately, regardless of remaining window.
func (t *Tracker) StopTyping(userID, recipientID string) {
	t.mu.Lock()
	sig, ok := t.signals[key{userID, recipientID}]
	if ok {
		delete(t.signals, key{userID, recipientID})
	}
	t.mu.Unlock()

	if ok && t.onChange != nil {
		t.onChange(sig, false)
	}
}

// isActive is the single expiry predicate shared by all readers.
func isActive(sig Signal, now time.Time) bool {
	return sig.ExpiresAt.After(now)
}

// ListActive returns the live signals matched by the filter, computed against
// the caller's current time.
func (t *Tracker) ListActive(match func(Signal) bool) []Signal {
	now := t.clock()
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Signal
	for _, sig := range t.signals {
		if isActive(sig, now) && (match == nil || match(sig)) {
			out = append(out, sig)
		}
	}
	return out
}

// Prune drops expired entries. Correctness never depends on it; it only keeps
// the map from growing across long-idle users.
func (t *Tracker) Prune() int {
	now := t.clock()
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, sig := range t.signals {
		if !isActive(sig, now) {
			delete(t.signals, k)
			n++
		}
	}
	return n
}
