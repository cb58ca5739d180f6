package realtime

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSubscriberUnreachable = errors.New("subscriber unreachable")

// Subscriber is one connected client view. Send must respect the context
// deadline; returning an error marks the subscriber failed and removes it
// from the set.
type Subscriber interface {
	UserID() string
	Send(ctx context.Context, ev Event) error
}

// Publisher is the write side of the pipeline. The Mux implements it for a
// single process; the Bridge implements it across instances.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type scopeSet struct {
	regMu sync.RWMutex
	subs  map[uuid.UUID]Subscriber

	// fanMu serializes fan-outs so every subscriber sees this scope's events
	// in publish order. Registration never takes it, so Cancel cannot be
	// blocked by an in-flight fan-out.
	fanMu sync.Mutex
}

// Mux fans events out to the current subscribers of each scope. This is a
// live view, not a queue: a connection that joins after a publish does not
// see it, and missed events are reconciled by the client's refetch on
// reconnect.
type Mux struct {
	mu      sync.RWMutex
	scopes  map[Scope]*scopeSet
	timeout time.Duration
}

func NewMux(perSubscriberTimeout time.Duration) *Mux {
	return &Mux{
		scopes:  map[Scope]*scopeSet{},
		timeout: perSubscriberTimeout,
	}
}

// Subscription is the cancellation handle returned by Subscribe. Cancel is
// idempotent and safe after the connection already dropped.
type Subscription struct {
	mux   *Mux
	scope Scope
	id    uuid.UUID
	once  sync.Once
}

func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.mux.remove(s.scope, s.id)
	})
}

func (m *Mux) Subscribe(scope Scope, sub Subscriber) *Subscription {
	m.mu.Lock()
	set, ok := m.scopes[scope]
	if !ok {
		set = &scopeSet{subs: map[uuid.UUID]Subscriber{}}
		m.scopes[scope] = set
	}
	m.mu.Unlock()

	id := uuid.New()
	set.regMu.Lock()
	set.subs[id] = sub
	set.regMu.Unlock()

	return &Subscription{mux: m, scope: scope, id: id}
}

func (m *Mux) remove(scope Scope, id uuid.UUID) {
	m.mu.RLock()
	set, ok := m.scopes[scope]
	m.mu.RUnlock()
	if !ok {
		return
	}
	set.regMu.Lock()
	delete(set.subs, id)
	set.regMu.Unlock()
}

// HasSubscriber reports whether the user currently has the scope open. The
// decision engine uses this to skip redundant pushes.
func (m *Mux) HasSubscriber(scope Scope, userID string) bool {
	m.mu.RLock()
	set, ok := m.scopes[scope]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	set.regMu.RLock()
	defer set.regMu.RUnlock()
	for _, sub := range set.subs {
		if sub.UserID() == userID {
			return true
		}
	}
	return false
}

// Publish fans ev out to the subscriber snapshot taken at call time. A
// subscriber that misses its delivery budget is treated as gone and removed;
// it never blocks or fails the rest of the fan-out.
func (m *Mux) Publish(ctx context.Context, ev Event) error {
	m.mu.RLock()
	set, ok := m.scopes[ev.Scope]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	set.fanMu.Lock()
	defer set.fanMu.Unlock()

	set.regMu.RLock()
	ids := make([]uuid.UUID, 0, len(set.subs))
	snapshot := make([]Subscriber, 0, len(set.subs))
	for id, sub := range set.subs {
		ids = append(ids, id)
		snapshot = append(snapshot, sub)
	}
	set.regMu.RUnlock()

	for i, sub := range snapshot {
		sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := sub.Send(sendCtx, ev)
		cancel()
		if err != nil {
			log.Printf("realtime: dropping subscriber %s on scope %s: %v", sub.UserID(), ev.Scope, err)
			set.regMu.Lock()
			delete(set.subs, ids[i])
			set.regMu.Unlock()
		}
	}
	return nil
}
