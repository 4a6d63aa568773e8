package retrieval

import (
	"errors"
	"fmt"
	"time"

	"github.com/mnemos-ai/sdk/memory"
)

// Notification kinds emitted by the retriever on its notify.Bus.
const (
	// KindRetrievalCompleted is emitted after a search runs against the
	// store and produces a fresh result.
	KindRetrievalCompleted = "retrievalCompleted"

	// KindCacheHit is emitted when a query is answered from the result
	// cache without touching the store.
	KindCacheHit = "cacheHit"

	// KindRetrievalError is emitted when a retrieval fails validation.
	KindRetrievalError = "retrievalError"
)

// ErrInvalidQuery is returned when a query fails structural validation.
var ErrInvalidQuery = errors.New("retrieval: invalid query")

// SortKey selects the ordering of retrieved memories.
type SortKey string

const (
	// SortRelevance orders by descending similarity score. This is the
	// default.
	SortRelevance SortKey = "relevance"

	// SortImportance orders by descending record importance.
	SortImportance SortKey = "importance"

	// SortRecency orders by descending creation time.
	SortRecency SortKey = "recency"
)

// Query describes one retrieval request.
type Query struct {
	// Text is the free-text query to score memories against.
	Text string `json:"text"`

	// Context scopes the search; records formed in the same domain
	// receive a relevance bonus.
	Context *memory.Context `json:"context"`

	// Filter restricts which records are considered at all.
	Filter memory.Filter `json:"filter"`

	// SortBy selects result ordering. Empty selects SortRelevance.
	SortBy SortKey `json:"sort_by,omitempty"`

	// Limit caps the number of returned records. Zero selects
	// DefaultLimit; negative values are invalid.
	Limit int `json:"limit"`
}

// Validate checks the query's structural requirements. A query must
// carry a context and either text or at least one filter criterion.
func (q *Query) Validate() error {
	if q.Context == nil {
		return fmt.Errorf("%w: context is required", ErrInvalidQuery)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidQuery)
	}
	if q.Text == "" && len(q.Filter.Types) == 0 && len(q.Filter.Tags) == 0 &&
		len(q.Filter.MetadataTags) == 0 && q.Filter.Domain == "" {
		return fmt.Errorf("%w: text or a filter criterion is required", ErrInvalidQuery)
	}
	switch q.SortBy {
	case "", SortRelevance, SortImportance, SortRecency:
	default:
		return fmt.Errorf("%w: unknown sort key %q", ErrInvalidQuery, q.SortBy)
	}
	return nil
}

// Result is the outcome of one retrieval.
type Result struct {
	// Memories are the retrieved records in the query's sort order.
	Memories []memory.Memory `json:"memories"`

	// Confidence is the mean relevance score of the returned records,
	// zero when nothing matched.
	Confidence float64 `json:"confidence"`

	// SearchTime is the wall-clock duration of the search. Cached
	// results report the duration of the cache lookup.
	SearchTime time.Duration `json:"search_time"`

	// FromCache reports whether the result was served from the result
	// cache.
	FromCache bool `json:"from_cache"`
}
