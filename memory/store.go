package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Filter restricts which records a Query returns. Zero-valued fields
// match everything.
type Filter struct {
	// Types restricts results to the given memory types.
	Types []Type

	// Tags requires every listed tag to be present on the record.
	Tags []string

	// MetadataTags requires every listed tag to appear in the record's
	// metadata "tags" entry.
	MetadataTags []string

	// Domain restricts results to records formed in the given domain.
	Domain string
}

// Store is an append/query store of memory records.
//
// Records are created by Store, mutated only to bump access bookkeeping
// on retrieval, and removed only by explicit deletion or expiry cleanup.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Memory
	order   []string
}

// NewStore creates an empty memory store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*Memory),
	}
}

// Store validates and saves a record, returning its id. A missing id is
// assigned; importance is clamped to [0, 1]; timestamps are set when zero.
func (s *Store) Store(m Memory) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Importance < 0 {
		m.Importance = 0
	}
	if m.Importance > 1 {
		m.Importance = 1
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.LastAccessedAt.IsZero() {
		m.LastAccessedAt = m.CreatedAt
	}

	s.mu.Lock()
	if _, exists := s.records[m.ID]; !exists {
		s.order = append(s.order, m.ID)
	}
	s.records[m.ID] = &m
	s.mu.Unlock()

	return m.ID, nil
}

// Get returns a copy of the record with the given id and bumps its
// access bookkeeping. Expired records report ErrNotFound.
func (s *Store) Get(id string) (*Memory, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.records[id]
	if !ok || m.IsExpired(now) {
		return nil, ErrNotFound
	}
	m.AccessCount++
	m.LastAccessedAt = now

	out := *m
	return &out, nil
}

// Query returns copies of all live records matching the filter, in
// insertion order. Access bookkeeping is not bumped; retrieval layers
// call MarkAccessed for the records they actually surface.
func (s *Store) Query(f Filter) []Memory {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Memory
	for _, id := range s.order {
		m, ok := s.records[id]
		if !ok || m.IsExpired(now) {
			continue
		}
		if !matches(m, f) {
			continue
		}
		out = append(out, *m)
	}
	return out
}

func matches(m *Memory, f Filter) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if m.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, tag := range f.Tags {
		if !m.HasTag(tag) {
			return false
		}
	}

	if len(f.MetadataTags) > 0 {
		metaTags := metadataTags(m)
		for _, tag := range f.MetadataTags {
			if !metaTags[tag] {
				return false
			}
		}
	}

	if f.Domain != "" && m.Context.Domain != f.Domain {
		return false
	}

	return true
}

// metadataTags extracts the metadata "tags" entry as a set. Both
// []string and []any (from JSON round trips) layouts are accepted.
func metadataTags(m *Memory) map[string]bool {
	out := make(map[string]bool)
	raw, ok := m.Metadata["tags"]
	if !ok {
		return out
	}

	switch tags := raw.(type) {
	case []string:
		for _, t := range tags {
			out[t] = true
		}
	case []any:
		for _, t := range tags {
			if s, ok := t.(string); ok {
				out[s] = true
			}
		}
	}
	return out
}

// MarkAccessed bumps access bookkeeping for the given record ids.
// Unknown ids are ignored.
func (s *Store) MarkAccessed(ids ...string) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if m, ok := s.records[id]; ok {
			m.AccessCount++
			m.LastAccessedAt = now
		}
	}
}

// Delete removes a record by id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	s.removeFromOrderLocked(id)
	return nil
}

// Cleanup removes all expired records and returns the number removed.
func (s *Store) Cleanup() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	for id, m := range s.records {
		if m.IsExpired(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.records, id)
		s.removeFromOrderLocked(id)
	}
	return len(expired)
}

func (s *Store) removeFromOrderLocked(id string) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// Count returns the number of live records.
func (s *Store) Count() int {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, m := range s.records {
		if !m.IsExpired(now) {
			n++
		}
	}
	return n
}

// Clear removes all records.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*Memory)
	s.order = nil
}
