// Package memory provides the append/query store of typed memory records
// that the retrieval and enhancement layers operate over.
//
// Records are classified as episodic, semantic, procedural, or working,
// carry an importance in [0, 1], tags, and a forming context (domain,
// session, user). The store owns its records exclusively: callers receive
// copies, and the only in-place mutation is access bookkeeping bumped on
// retrieval.
//
// Example usage:
//
//	store := memory.NewStore()
//
//	id, err := store.Store(memory.Memory{
//	    Content:    "Task A requires careful planning",
//	    Type:       memory.TypeSemantic,
//	    Importance: 0.8,
//	    Tags:       []string{"task", "planning"},
//	})
//	if err != nil {
//	    return err
//	}
//
//	results := store.Query(memory.Filter{Tags: []string{"planning"}})
package memory
