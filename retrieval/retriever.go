package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mnemos-ai/sdk/cache"
	"github.com/mnemos-ai/sdk/memory"
	"github.com/mnemos-ai/sdk/notify"
)

// source identifies this component in emitted notifications.
const source = "retrieval"

// DefaultLimit is the result cap applied when a query's Limit is zero.
const DefaultLimit = 10

// CacheTag labels cached retrieval results so they can be invalidated
// as a group when the underlying store changes.
const CacheTag = "retrieval"

// domainBonus is added to the similarity term for records formed in the
// query's domain.
const domainBonus = 0.2

// Relevance blends token similarity with record importance.
const (
	similarityWeight = 0.7
	importanceWeight = 0.3
)

// Retriever runs scored searches over a memory store, caching results by
// query fingerprint.
//
// Retrieval is deterministic: the same query against the same store
// contents yields the same records in the same order.
type Retriever struct {
	store        *memory.Store
	cache        *cache.Cache
	bus          *notify.Bus
	logger       *slog.Logger
	defaultLimit int
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithDefaultLimit overrides the result cap applied when a query's
// Limit is zero. Non-positive values keep DefaultLimit.
func WithDefaultLimit(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.defaultLimit = n
		}
	}
}

// NewRetriever creates a retriever over the given store. The cache is
// optional; without one every query searches the store. The bus is
// optional as well.
func NewRetriever(store *memory.Store, resultCache *cache.Cache, bus *notify.Bus, logger *slog.Logger, opts ...Option) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retriever{
		store:        store,
		cache:        resultCache,
		bus:          bus,
		logger:       logger,
		defaultLimit: DefaultLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve validates the query, answers it from the result cache when
// possible, and otherwise scores all matching store records and returns
// the top ones per the query's sort order and limit.
func (r *Retriever) Retrieve(q Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		r.bus.Emit(KindRetrievalError, source, map[string]any{"error": err.Error()})
		return nil, err
	}

	start := time.Now()
	key := fingerprint(q)

	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			if result, ok := cached.(Result); ok {
				out := result
				out.FromCache = true
				out.SearchTime = time.Since(start)
				r.bus.Emit(KindCacheHit, source, map[string]any{
					"fingerprint": key,
					"memories":    len(out.Memories),
				})
				return &out, nil
			}
		}
	}

	result := r.search(q)
	result.SearchTime = time.Since(start)

	ids := make([]string, 0, len(result.Memories))
	for _, m := range result.Memories {
		ids = append(ids, m.ID)
	}
	r.store.MarkAccessed(ids...)

	if r.cache != nil {
		r.cache.Set(key, *result, cache.WithTags(CacheTag))
	}

	r.bus.Emit(KindRetrievalCompleted, source, map[string]any{
		"fingerprint": key,
		"memories":    len(result.Memories),
		"confidence":  result.Confidence,
	})
	return result, nil
}

// InvalidateCache drops all cached retrieval results. Callers invoke it
// after store mutations that should be visible to subsequent queries.
func (r *Retriever) InvalidateCache() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.DeleteByTag(CacheTag)
}

// scored pairs a record with its relevance score for sorting.
type scored struct {
	mem   memory.Memory
	score float64
}

// search scores every store record passing the query's filter and
// returns the top records per the sort order and limit.
func (r *Retriever) search(q Query) *Result {
	filter := q.Filter
	candidates := r.store.Query(filter)

	queryTokens := tokenSet(Tokenize(q.Text))

	entries := make([]scored, 0, len(candidates))
	for _, m := range candidates {
		entries = append(entries, scored{mem: m, score: score(queryTokens, q.Context, &m)})
	}

	switch q.SortBy {
	case SortImportance:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].mem.Importance > entries[j].mem.Importance
		})
	case SortRecency:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].mem.CreatedAt.After(entries[j].mem.CreatedAt)
		})
	default:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].score > entries[j].score
		})
	}

	limit := q.Limit
	if limit == 0 {
		limit = r.defaultLimit
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}

	result := &Result{Memories: make([]memory.Memory, 0, len(entries))}
	var total float64
	for _, e := range entries {
		result.Memories = append(result.Memories, e.mem)
		total += e.score
	}
	if len(entries) > 0 {
		result.Confidence = total / float64(len(entries))
	}
	return result
}

// score computes a record's relevance to the query: a weighted blend of
// token similarity (with a bonus for same-domain records) and the
// record's importance.
func score(queryTokens map[string]bool, qctx *memory.Context, m *memory.Memory) float64 {
	similarity := Jaccard(queryTokens, tokenSet(Tokenize(m.Content)))
	if qctx != nil && qctx.Domain != "" && m.Context.Domain == qctx.Domain {
		similarity += domainBonus
	}
	return similarityWeight*similarity + importanceWeight*m.Importance
}

// fingerprint derives a stable cache key from the query's canonical JSON
// form.
func fingerprint(q Query) string {
	canonical := struct {
		Text   string          `json:"text"`
		Domain string          `json:"domain"`
		User   string          `json:"user"`
		Types  []memory.Type   `json:"types"`
		Tags   []string        `json:"tags"`
		Meta   []string        `json:"meta"`
		FDom   string          `json:"fdom"`
		SortBy SortKey         `json:"sort_by"`
		Limit  int             `json:"limit"`
	}{
		Text:   q.Text,
		Types:  q.Filter.Types,
		Tags:   q.Filter.Tags,
		Meta:   q.Filter.MetadataTags,
		FDom:   q.Filter.Domain,
		SortBy: q.SortBy,
		Limit:  q.Limit,
	}
	if q.Context != nil {
		canonical.Domain = q.Context.Domain
		canonical.User = q.Context.User
	}

	raw, err := json.Marshal(canonical)
	if err != nil {
		// Every field is a string, slice of strings, or int; this cannot
		// happen with the struct above.
		raw = []byte(fmt.Sprintf("%+v", canonical))
	}
	sum := sha256.Sum256(raw)
	return "query:" + hex.EncodeToString(sum[:])
}
