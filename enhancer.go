package sdk

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mnemos-ai/sdk/memory"
	"github.com/mnemos-ai/sdk/retrieval"
)

// Performance estimation constants. The improvement of an enhancement is
// the importance-weighted boost of its applied memories measured against
// the agent's previous boost.
const (
	// importanceBoostWeight scales mean applied-memory importance into a
	// performance boost.
	importanceBoostWeight = 0.2

	// coldStartImprovement is the minimum improvement reported for an
	// agent's first enhancement, keeping cold-start agents eligible for
	// pattern learning even when their applied memories carry little
	// importance.
	coldStartImprovement = 0.05
)

// typeTags maps well-known agent types to the retrieval vocabulary used
// to fill their memory slots. Unknown types fall back to splitting the
// type name on underscores.
var typeTags = map[string][]string{
	"rule_processor": {"rule", "logic", "processing"},
	"task_planner":   {"task", "plan", "strategy"},
	"data_analyst":   {"data", "analysis", "pattern"},
	"coordinator":    {"coordination", "workflow", "delegation"},
}

// slotTypes are the memory types retrieved during enhancement, in the
// order their results are applied. Semantic records are reported as
// related knowledge rather than written into an agent slot.
var slotTypes = []memory.Type{
	memory.TypeEpisodic,
	memory.TypeProcedural,
	memory.TypeWorking,
	memory.TypeSemantic,
}

// Enhancer fills an agent's memory slots from the store and estimates
// the resulting performance improvement.
type Enhancer struct {
	retriever *retrieval.Retriever
	logger    *slog.Logger

	mu        sync.Mutex
	baselines map[string]float64
}

// NewEnhancer creates an enhancer over the given retriever.
func NewEnhancer(retriever *retrieval.Retriever, logger *slog.Logger) *Enhancer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enhancer{
		retriever: retriever,
		logger:    logger,
		baselines: make(map[string]float64),
	}
}

// queryText derives the retrieval text for an agent from its type
// vocabulary and name.
func queryText(a *Agent) string {
	tags, ok := typeTags[a.Type]
	if !ok {
		tags = strings.Split(a.Type, "_")
	}
	parts := append([]string{}, tags...)
	if a.Name != "" {
		parts = append(parts, a.Name)
	}
	return strings.Join(parts, " ")
}

// EnhanceAgent retrieves relevant memories for each slot type and writes
// them into the agent. A nil agent or one without an id is a validation
// error; retrieval problems for one slot are logged and skipped so the
// remaining slots still fill.
func (e *Enhancer) EnhanceAgent(a *Agent) (*EnhancementResult, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &EnhancementResult{
		AgentID:       a.ID,
		Success:       true,
		AppliedByType: make(map[memory.Type]int),
		EnhancedAt:    start,
	}

	text := queryText(a)
	var importanceSum float64

	for _, memType := range slotTypes {
		res, err := e.retriever.Retrieve(retrieval.Query{
			Text:    text,
			Context: &memory.Context{Domain: a.Domain},
			Filter:  memory.Filter{Types: []memory.Type{memType}},
		})
		if err != nil {
			e.logger.Warn("slot retrieval failed",
				"agent_id", a.ID,
				"memory_type", memType.String(),
				"error", err)
			continue
		}
		if len(res.Memories) == 0 {
			continue
		}

		switch memType {
		case memory.TypeEpisodic:
			a.EpisodicMemory = res.Memories
		case memory.TypeProcedural:
			a.ProceduralMemory = res.Memories
		case memory.TypeWorking:
			a.WorkingMemory = res.Memories
		case memory.TypeSemantic:
			result.RelatedKnowledge = res.Memories
		}

		result.AppliedByType[memType] = len(res.Memories)
		result.Applied += len(res.Memories)
		for _, m := range res.Memories {
			importanceSum += m.Importance
		}
	}

	result.Improvement = e.measureImprovement(a.ID, result.Applied, importanceSum)
	a.LastEnhancedAt = start
	result.Duration = time.Since(start)

	e.logger.Debug("agent enhanced",
		"agent_id", a.ID,
		"applied", result.Applied,
		"improvement", result.Improvement)
	return result, nil
}

// measureImprovement converts the applied memories' mean importance into
// a boost and compares it with the agent's previous boost. An agent's
// first enhancement has no baseline to compare against, so the boost
// itself is reported, floored at coldStartImprovement when anything was
// applied.
func (e *Enhancer) measureImprovement(agentID string, applied int, importanceSum float64) float64 {
	var boost float64
	if applied > 0 {
		boost = importanceSum / float64(applied) * importanceBoostWeight
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prior, seen := e.baselines[agentID]
	e.baselines[agentID] = boost

	improvement := boost
	if seen {
		improvement = boost - prior
	} else if applied > 0 && improvement < coldStartImprovement {
		improvement = coldStartImprovement
	}

	if improvement < 0 {
		return 0
	}
	if improvement > 1 {
		return 1
	}
	return improvement
}
