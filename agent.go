package sdk

import (
	"time"

	"github.com/mnemos-ai/sdk/memory"
)

// Agent is the record enhancement operates on. The engine does not run
// agents; callers hand one in, the engine fills its memory slots from
// the store, and the caller takes it back.
type Agent struct {
	// ID is the unique agent identifier.
	ID string `json:"id"`

	// Name is a human-readable agent name.
	Name string `json:"name"`

	// Type classifies the agent (e.g., "rule_processor", "task_planner")
	// and drives which memory tags retrieval favors.
	Type string `json:"type"`

	// Domain scopes retrieval to the agent's working area.
	Domain string `json:"domain,omitempty"`

	// EpisodicMemory holds retrieved records of past occurrences.
	EpisodicMemory []memory.Memory `json:"episodic_memory,omitempty"`

	// ProceduralMemory holds retrieved strategies and learned patterns.
	ProceduralMemory []memory.Memory `json:"procedural_memory,omitempty"`

	// WorkingMemory holds retrieved short-lived in-flight state.
	WorkingMemory []memory.Memory `json:"working_memory,omitempty"`

	// Metadata carries caller-specific fields the engine ignores.
	Metadata map[string]any `json:"metadata,omitempty"`

	// LastEnhancedAt is when the agent's slots were last filled.
	LastEnhancedAt time.Time `json:"last_enhanced_at,omitempty"`
}

// Validate checks the agent's structural requirements.
func (a *Agent) Validate() error {
	if a == nil {
		return newError("Agent.Validate", KindValidation, ErrInvalidAgent)
	}
	if a.ID == "" {
		return &EngineError{
			Op:   "Agent.Validate",
			Kind: KindValidation,
			Err:  ErrInvalidAgent,
			Context: map[string]any{
				"reason": "agent id is required",
			},
		}
	}
	return nil
}

// EnhancementResult reports the outcome of one agent enhancement.
type EnhancementResult struct {
	// AgentID identifies the enhanced agent.
	AgentID string `json:"agent_id"`

	// Success reports whether the enhancement completed.
	Success bool `json:"success"`

	// Error holds the failure message when Success is false.
	Error string `json:"error,omitempty"`

	// Applied is the total number of memories written into the agent's slots.
	Applied int `json:"applied"`

	// AppliedByType breaks Applied down per memory type.
	AppliedByType map[memory.Type]int `json:"applied_by_type,omitempty"`

	// RelatedKnowledge holds retrieved semantic records. Semantic
	// memories are background knowledge, reported alongside the agent
	// rather than written into a slot.
	RelatedKnowledge []memory.Memory `json:"related_knowledge,omitempty"`

	// Improvement estimates the performance gain over the agent's
	// previous enhancement, in [0, 1].
	Improvement float64 `json:"improvement"`

	// Duration is the wall-clock enhancement time.
	Duration time.Duration `json:"duration"`

	// EnhancedAt is when the enhancement ran.
	EnhancedAt time.Time `json:"enhanced_at"`
}
