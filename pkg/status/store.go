package status

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Store holds the current Collection. Reads are lock-free snapshots.
// Apply is meant to be called from a single writer (the feed loop);
// Replace is for the owner seeding or reloading the list.
type Store struct {
	current atomic.Pointer[Collection]

	mu     sync.Mutex
	subs   map[uint64]func(Collection)
	nextID uint64
}

// NewStore returns a Store seeded with a copy of initial.
func NewStore(initial Collection) *Store {
	s := &Store{subs: make(map[uint64]func(Collection))}
	c := initial.Clone()
	s.current.Store(&c)
	return s
}

// Snapshot returns the current Collection. Callers must not modify it.
func (s *Store) Snapshot() Collection {
	if c := s.current.Load(); c != nil {
		return *c
	}
	return nil
}

// Get returns the current record with id.
func (s *Store) Get(id int64) (Record, bool) {
	return s.Snapshot().Get(id)
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.Snapshot())
}

// Replace swaps in a copy of c and notifies subscribers.
func (s *Store) Replace(c Collection) {
	next := c.Clone()
	s.current.Store(&next)
	s.notify(next)
}

// Apply merges one status delta. It reports whether serverID was known;
// subscribers are notified only in that case.
func (s *Store) Apply(serverID int64, st Status) bool {
	prev := s.Snapshot()
	if prev.Index(serverID) < 0 {
		return false
	}
	next := Merge(prev, serverID, st)
	s.current.Store(&next)
	s.notify(next)
	return true
}

// Subscribe registers fn to receive every new Collection. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(Collection)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify(c Collection) {
	s.mu.Lock()
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	fns := make([]func(Collection), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

