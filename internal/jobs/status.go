package jobs

import (
	"sync"
	"time"

	"transcript-server/internal/domain"
)

// Change describes one mutation of the status store.
type Change struct {
	User    string
	Project string
	Status  domain.JobStatus
	Removed bool
}

// Listener observes status changes. Calls happen outside the store's locks.
type Listener interface {
	StatusChanged(Change)
}

// Option configures a StatusStore.
type Option func(*StatusStore)

// WithSucceededGrace keeps a transient succeeded entry visible in
// reconciliation for d after it was written. Zero drops it immediately.
func WithSucceededGrace(d time.Duration) Option {
	return func(s *StatusStore) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithListener registers a change listener.
func WithListener(l Listener) Option {
	return func(s *StatusStore) {
		if l != nil {
			s.listeners = append(s.listeners, l)
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *StatusStore) {
		if now != nil {
			s.now = now
		}
	}
}

type entry struct {
	status    domain.JobStatus
	updatedAt time.Time
}

type userShard struct {
	mu      sync.Mutex
	entries map[string]entry
}

// StatusStore holds the transient status of in-flight jobs per user.
// Operations on one user's entries are serialized; different users do not
// contend beyond the shard lookup.
type StatusStore struct {
	mu        sync.RWMutex
	shards    map[string]*userShard
	grace     time.Duration
	now       func() time.Time
	listeners []Listener
}

// NewStatusStore creates an empty store.
func NewStatusStore(opts ...Option) *StatusStore {
	s := &StatusStore{
		shards: make(map[string]*userShard),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores status for a job, replacing any previous value.
func (s *StatusStore) Put(user, project string, status domain.JobStatus) {
	shard := s.shard(user, true)
	shard.mu.Lock()
	shard.entries[project] = entry{status: status, updatedAt: s.now()}
	shard.mu.Unlock()

	s.notify(Change{User: user, Project: project, Status: status})
}

// Get returns the transient status of one job.
func (s *StatusStore) Get(user, project string) (domain.JobStatus, bool) {
	shard := s.shard(user, false)
	if shard == nil {
		return domain.JobStatus{}, false
	}
	shard.mu.Lock()
	defer shard.mu.Unlock()
	e, ok := shard.entries[project]
	return e.status, ok
}

// Snapshot copies all transient entries of a user.
func (s *StatusStore) Snapshot(user string) map[string]domain.JobStatus {
	out := make(map[string]domain.JobStatus)
	shard := s.shard(user, false)
	if shard == nil {
		return out
	}
	shard.mu.Lock()
	defer shard.mu.Unlock()
	for project, e := range shard.entries {
		out[project] = e.status
	}
	return out
}

// Remove deletes one entry. It reports whether the entry existed.
func (s *StatusStore) Remove(user, project string) bool {
	shard := s.shard(user, false)
	if shard == nil {
		return false
	}
	shard.mu.Lock()
	e, ok := shard.entries[project]
	delete(shard.entries, project)
	shard.mu.Unlock()

	if ok {
		s.notify(Change{User: user, Project: project, Status: e.status, Removed: true})
	}
	return ok
}

// Reconcile merges a user's transient entries with the set of persisted
// project ids. Entries already persisted are dropped, as are succeeded
// entries outside the grace window. The remaining entries are returned.
func (s *StatusStore) Reconcile(user string, persisted map[string]struct{}) map[string]domain.JobStatus {
	view := make(map[string]domain.JobStatus)
	shard := s.shard(user, false)
	if shard == nil {
		return view
	}

	var removed []Change
	now := s.now()
	shard.mu.Lock()
	for project, e := range shard.entries {
		_, done := persisted[project]
		if !done && e.status.Stage == domain.StageSucceeded {
			done = s.grace == 0 || now.Sub(e.updatedAt) >= s.grace
		}
		if done {
			delete(shard.entries, project)
			removed = append(removed, Change{User: user, Project: project, Status: e.status, Removed: true})
			continue
		}
		view[project] = e.status
	}
	shard.mu.Unlock()

	for _, c := range removed {
		s.notify(c)
	}
	return view
}

func (s *StatusStore) shard(user string, create bool) *userShard {
	s.mu.RLock()
	shard := s.shards[user]
	s.mu.RUnlock()
	if shard != nil || !create {
		return shard
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if shard = s.shards[user]; shard == nil {
		shard = &userShard{entries: make(map[string]entry)}
		s.shards[user] = shard
	}
	return shard
}

func (s *StatusStore) notify(c Change) {
	for _, l := range s.listeners {
		l.StatusChanged(c)
	}
}
