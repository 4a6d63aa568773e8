package sdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemos-ai/sdk/memory"
)

func TestPatternLearnerRecord(t *testing.T) {
	store := memory.NewStore()
	learner := NewPatternLearner(store, nil, 0.1)

	t.Run("outcome above threshold stored as procedural memory", func(t *testing.T) {
		learner.Record("task_planner", &EnhancementResult{
			AgentID:     "agent-1",
			Success:     true,
			Applied:     3,
			Improvement: 0.25,
			AppliedByType: map[memory.Type]int{
				memory.TypeProcedural: 2,
				memory.TypeEpisodic:   1,
			},
		})

		patterns := store.Query(memory.Filter{Tags: []string{"pattern", "task_planner"}})
		require.Len(t, patterns, 1)
		assert.Equal(t, memory.TypeProcedural, patterns[0].Type)
		assert.Equal(t, 0.25, patterns[0].Importance)
		assert.Equal(t, "task_planner", patterns[0].Metadata["agent_type"])
	})

	t.Run("outcome below threshold is not recorded", func(t *testing.T) {
		before := store.Count()
		learner.Record("task_planner", &EnhancementResult{
			Success:     true,
			Applied:     1,
			Improvement: 0.01,
			AppliedByType: map[memory.Type]int{
				memory.TypeWorking: 1,
			},
		})
		assert.Equal(t, before, store.Count())
		assert.Equal(t, 1, learner.Plan("task_planner").Samples)
	})

	t.Run("failed outcomes ignored", func(t *testing.T) {
		learner.Record("task_planner", &EnhancementResult{Success: false, Improvement: 0.9})
		assert.Equal(t, 1, learner.Plan("task_planner").Samples)
	})

	t.Run("empty agent type ignored", func(t *testing.T) {
		learner.Record("", &EnhancementResult{Success: true, Improvement: 0.9})
		assert.Zero(t, learner.Plan("").Samples)
	})
}

func TestPatternLearnerPlan(t *testing.T) {
	store := memory.NewStore()
	learner := NewPatternLearner(store, nil, 0.1)

	t.Run("unknown type yields empty plan", func(t *testing.T) {
		plan := learner.Plan("nobody")
		assert.Empty(t, plan.MemoryTypes)
		assert.Zero(t, plan.Confidence)
		assert.Zero(t, plan.Samples)
	})

	t.Run("memory types ranked by contribution", func(t *testing.T) {
		learner.Record("data_analyst", &EnhancementResult{
			Success:     true,
			Improvement: 0.3,
			AppliedByType: map[memory.Type]int{
				memory.TypeProcedural: 5,
				memory.TypeEpisodic:   2,
				memory.TypeSemantic:   1,
				memory.TypeWorking:    1,
			},
		})

		plan := learner.Plan("data_analyst")
		require.NotEmpty(t, plan.MemoryTypes)
		assert.Equal(t, memory.TypeProcedural, plan.MemoryTypes[0])
		assert.Len(t, plan.MemoryTypes, 3, "plans recommend at most three types")
		assert.InDelta(t, 0.3, plan.ExpectedImprovement, 1e-9)
	})

	t.Run("sub-threshold outcomes never grow confidence", func(t *testing.T) {
		learner := NewPatternLearner(memory.NewStore(), nil, 0.1)
		for i := 0; i < 10; i++ {
			learner.Record("coordinator", &EnhancementResult{
				Success:       true,
				Improvement:   0.05,
				AppliedByType: map[memory.Type]int{memory.TypeWorking: 1},
			})
		}

		plan := learner.Plan("coordinator")
		assert.Zero(t, plan.Samples)
		assert.Zero(t, plan.Confidence)
		assert.Empty(t, plan.MemoryTypes)
	})

	t.Run("confidence grows with samples", func(t *testing.T) {
		learner := NewPatternLearner(memory.NewStore(), nil, 0.1)
		outcome := &EnhancementResult{
			Success:       true,
			Improvement:   0.2,
			AppliedByType: map[memory.Type]int{memory.TypeProcedural: 1},
		}

		for i := 0; i < 5; i++ {
			learner.Record("coordinator", outcome)
		}
		assert.InDelta(t, 0.5, learner.Plan("coordinator").Confidence, 1e-9)

		for i := 0; i < 20; i++ {
			learner.Record("coordinator", outcome)
		}
		assert.Equal(t, 1.0, learner.Plan("coordinator").Confidence, "confidence is capped at 1")
	})
}

func TestPatternLearnerDefaultThreshold(t *testing.T) {
	learner := NewPatternLearner(memory.NewStore(), nil, 0)
	assert.Equal(t, DefaultPatternThreshold, learner.threshold)
}
