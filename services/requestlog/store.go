package requestlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Request outcome states recorded in the log.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusRejected = "rejected"
)

// Entry records one completed (or rejected) gateway request.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Time      time.Time `json:"time"`
	ClientID  string    `json:"client_id,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	TaskType  string    `json:"task_type,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// DefaultCapacity bounds the in-memory log when no capacity is given.
const DefaultCapacity = 1000

// Store is a bounded in-memory ring buffer of request records. When full,
// the oldest entry is overwritten. Nothing is persisted.
type Store struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	size    int
}

// NewStore creates a Store holding at most capacity entries.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		entries: make([]Entry, capacity),
	}
}

// Append records an entry, assigning an id and timestamp when unset.
func (s *Store) Append(e Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[s.next] = e
	s.next = (s.next + 1) % len(s.entries)
	if s.size < len(s.entries) {
		s.size++
	}
}

// List returns up to limit entries, newest first. limit <= 0 returns all
// retained entries.
func (s *Store) List(limit int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.size
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Entry, 0, n)
	idx := s.next - 1
	for i := 0; i < n; i++ {
		if idx < 0 {
			idx += len(s.entries)
		}
		out = append(out, s.entries[idx])
		idx--
	}
	return out
}

// Len returns the number of retained entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Clear drops every retained entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = 0
	s.size = 0
}
