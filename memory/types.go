package memory

import (
	"errors"
	"fmt"
	"time"
)

// Type classifies a memory record by how it was formed and how it should
// be used during retrieval and agent enhancement.
type Type string

const (
	// TypeEpisodic records a specific past occurrence (an event, an
	// interaction, an observed outcome).
	TypeEpisodic Type = "episodic"

	// TypeSemantic records a general fact or piece of knowledge that is
	// not tied to a single occurrence.
	TypeSemantic Type = "semantic"

	// TypeProcedural records how to perform something: a strategy, a
	// recipe, a learned enhancement pattern.
	TypeProcedural Type = "procedural"

	// TypeWorking records short-lived state relevant only to in-flight
	// work. Working memories typically carry an expiry.
	TypeWorking Type = "working"
)

// Common errors returned by memory operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("memory: record not found")

	// ErrInvalidMemory is returned when a record fails structural
	// validation (empty content or an unknown type).
	ErrInvalidMemory = errors.New("memory: invalid record")
)

// String returns the string representation of the Type.
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the Type is one of the defined constants.
func (t Type) IsValid() bool {
	switch t {
	case TypeEpisodic, TypeSemantic, TypeProcedural, TypeWorking:
		return true
	default:
		return false
	}
}

// Validate returns an error if the Type is not valid.
func (t Type) Validate() error {
	if !t.IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMemory, t)
	}
	return nil
}

// Context scopes a memory record to where it was formed.
type Context struct {
	// Domain is the subject area the memory belongs to (e.g., "planning").
	Domain string `json:"domain,omitempty"`

	// Session identifies the session the memory was formed in.
	Session string `json:"session,omitempty"`

	// User identifies the user the memory relates to.
	User string `json:"user,omitempty"`
}

// Memory is a single stored record. Records are owned by the Store;
// callers receive copies. The Store mutates a record only to bump its
// access bookkeeping on retrieval.
type Memory struct {
	// ID is the unique identifier, assigned by the Store when empty.
	ID string `json:"id"`

	// Content is the textual body of the memory.
	Content string `json:"content"`

	// Type classifies the record.
	Type Type `json:"type"`

	// Importance ranks the record from 0 (disposable) to 1 (critical).
	// Values outside the range are clamped on store.
	Importance float64 `json:"importance"`

	// Tags are labels used for filtered retrieval.
	Tags []string `json:"tags,omitempty"`

	// Context scopes the record to a domain, session, and user.
	Context Context `json:"context"`

	// Metadata carries additional record-specific fields.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is when the record was stored.
	CreatedAt time.Time `json:"created_at"`

	// LastAccessedAt is the time of the most recent retrieval.
	LastAccessedAt time.Time `json:"last_accessed_at"`

	// AccessCount is the number of retrievals of this record.
	AccessCount int64 `json:"access_count"`

	// ExpiresAt is when the record stops being live. Nil means the
	// record never expires.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// HasTag reports whether the record carries the given tag.
func (m *Memory) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IsExpired reports whether the record's expiry has passed at the given time.
func (m *Memory) IsExpired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}

// Age returns the duration since the record was stored.
func (m *Memory) Age() time.Duration {
	return time.Since(m.CreatedAt)
}

// Validate checks the record's structural requirements.
func (m *Memory) Validate() error {
	if m.Content == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidMemory)
	}
	return m.Type.Validate()
}
