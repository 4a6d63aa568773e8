// Package retrieval runs scored searches over a memory store.
//
// A Query carries free text, a scoping context, an optional filter, a
// sort key and a limit. The retriever scores every filtered record as a
// weighted blend of token similarity (Jaccard over lowercase
// alphanumeric tokens, with a bonus for records formed in the query's
// domain) and record importance, then returns the top records.
//
// Results are cached in the shared cache under a fingerprint of the
// query, tagged for group invalidation. Retrieval is deterministic:
// identical queries against identical store contents return identical
// results, whether served fresh or from cache.
package retrieval
