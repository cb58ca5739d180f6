package presence

import (
	"context"
	"errors"
	"hash/fnv"
	"log"
	"sync"
	"time"
)

var ErrInvalidUser = errors.New("invalid user id")

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

type Record struct {
	UserID       string    `json:"user_id"`
	Status       Status    `json:"status"`
	CustomStatus string    `json:"custom_status,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
}

const shardCount = 16

type shard struct {
	mu      sync.RWMutex
	records map[string]*Record

	// notifyMu is acquired before mu is released on a transition, so change
	// callbacks fire in the same order the shard linearized the mutations
	// without holding the data lock during the callback itself.
	notifyMu sync.Mutex
}

// Store is the authoritative in-memory presence table, sharded by user id so
// updates to different users never contend on the same lock.
type Store struct {
	shards   [shardCount]*shard
	clock    func() time.Time
	onChange func(Record) // fired after every status transition, nil ok
}

func NewStore() *Store {
	s := &Store{clock: time.Now}
	for i := range s.shards {
		s.shards[i] = &shard{records: map[string]*Record{}}
	}
	return s
}

// OnChange registers a callback invoked after a record's status changes, in
// the order the transitions were applied. The callback must not call back
// into the store. Must be set before the store is shared across goroutines.
func (s *Store) OnChange(fn func(Record)) {
	s.onChange = fn
}

func (s *Store) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return s.shards[h.Sum32()%shardCount]
}

func (s *Store) SetOnline(userID string) error {
	if userID == "" {
		return ErrInvalidUser
	}
	s.upsert(userID, func(r *Record, now time.Time) {
		r.Status = StatusOnline
		r.touch(now)
	})
	return nil
}

// SetOffline is idempotent; unknown users get an offline record so last_seen
// is retained for the retention window.
func (s *Store) SetOffline(userID string) error {
	if userID == "" {
		return ErrInvalidUser
	}
	s.upsert(userID, func(r *Record, now time.Time) {
		r.Status = StatusOffline
		r.touch(now)
	})
	return nil
}

// Heartbeat refreshes last_seen without changing status. A heartbeat from an
// unknown user creates the record as online.
func (s *Store) Heartbeat(userID string) error {
	if userID == "" {
		return ErrInvalidUser
	}
	s.upsert(userID, func(r *Record, now time.Time) {
		if r.Status == "" {
			r.Status = StatusOnline
		}
		r.touch(now)
	})
	return nil
}

func (s *Store) SetCustomStatus(userID, text string) error {
	if userID == "" {
		return ErrInvalidUser
	}
	s.upsert(userID, func(r *Record, now time.Time) {
		if r.Status == "" {
			r.Status = StatusOffline
			r.touch(now)
		}
		r.CustomStatus = text
	})
	return nil
}

func (s *Store) Get(userID string) (Record, bool) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	r, ok := sh.records[userID]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

func (s *Store) ListAll() []Record {
	var out []Record
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, r := range sh.records {
			out = append(out, *r)
		}
		sh.mu.RUnlock()
	}
	return out
}

func (s *Store) upsert(userID string, mutate func(*Record, time.Time)) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	r, ok := sh.records[userID]
	if !ok {
		r = &Record{UserID: userID}
		sh.records[userID] = r
	}
	before := r.Status
	mutate(r, s.clock())
	changed := r.Status != before
	snapshot := *r
	if !changed || s.onChange == nil {
		sh.mu.Unlock()
		return
	}

	sh.notifyMu.Lock()
	sh.mu.Unlock()
	s.onChange(snapshot)
	sh.notifyMu.Unlock()
}

// touch keeps last_seen monotonically non-decreasing even when a sweep and a
// heartbeat race on the same record.
func (r *Record) touch(now time.Time) {
	if now.After(r.LastSeen) {
		r.LastSeen = now
	}
}

// RunSweeper converts silent disconnects into offline records: every interval
// it moves online records whose last_seen is older than staleAfter to
// offline. It never moves a record the other way.
func (s *Store) RunSweeper(ctx context.Context, interval, staleAfter time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sweepOnce(staleAfter); n > 0 {
				log.Printf("presence sweep: %d stale connection(s) marked offline", n)
			}
		}
	}
}

func (s *Store) sweepOnce(staleAfter time.Duration) int {
	now := s.clock()
	swept := 0
	for _, sh := range s.shards {
		var stale []Record
		sh.mu.Lock()
		for _, r := range sh.records {
			if r.Status == StatusOnline && now.Sub(r.LastSeen) > staleAfter {
				r.Status = StatusOffline
				r.touch(now)
				stale = append(stale, *r)
			}
		}
		swept += len(stale)
		if len(stale) == 0 || s.onChange == nil {
			sh.mu.Unlock()
			continue
		}
		sh.notifyMu.Lock()
		sh.mu.Unlock()
		for _, r := range stale {
			s.onChange(r)
		}
		sh.notifyMu.Unlock()
	}
	return swept
}
