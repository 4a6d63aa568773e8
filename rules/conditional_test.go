package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddConditionalRule(t *testing.T) {
	e := NewEngine()

	t.Run("missing id rejected", func(t *testing.T) {
		err := e.AddConditionalRule(ConditionalRule{
			Branches: []ConditionalBranch{{Expression: "true"}},
		})
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("empty branches rejected", func(t *testing.T) {
		err := e.AddConditionalRule(ConditionalRule{ID: "c1"})
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("unknown mode rejected", func(t *testing.T) {
		err := e.AddConditionalRule(ConditionalRule{
			ID:       "c1",
			Mode:     EvaluationMode("most"),
			Branches: []ConditionalBranch{{Expression: "true"}},
		})
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("compile error fails fast", func(t *testing.T) {
		err := e.AddConditionalRule(ConditionalRule{
			ID:       "c1",
			Branches: []ConditionalBranch{{Expression: "event.type =="}},
		})
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("valid expression compiles", func(t *testing.T) {
		err := e.AddConditionalRule(ConditionalRule{
			ID: "c1",
			Branches: []ConditionalBranch{{
				Expression: `event.type == "user_login" && context.score > 0.5`,
				Actions:    []Action{{Type: ActionBlock}},
			}},
		})
		assert.NoError(t, err)
	})

	t.Run("remove unknown conditional rejected", func(t *testing.T) {
		assert.ErrorIs(t, e.RemoveConditionalRule("ghost"), ErrConditionalNotFound)
	})
}

func TestEvaluateConditionalAnyMode(t *testing.T) {
	e := newRunningEngine(t)

	require.NoError(t, e.AddConditionalRule(ConditionalRule{
		ID:   "branching",
		Mode: EvalAny,
		Branches: []ConditionalBranch{
			{
				Expression: `context.score > 0.9`,
				Actions: []Action{{Type: ActionStoreMemory, Parameters: map[string]any{
					"variable": "tier", "value": "high",
				}}},
			},
			{
				Expression: `context.score > 0.5`,
				Actions: []Action{{Type: ActionStoreMemory, Parameters: map[string]any{
					"variable": "tier", "value": "medium",
				}}},
			},
			{
				Expression: `true`,
				Actions: []Action{{Type: ActionStoreMemory, Parameters: map[string]any{
					"variable": "tier", "value": "low",
				}}},
			},
		},
	}))

	tests := []struct {
		name  string
		score float64
		want  string
	}{
		{"first branch wins", 0.95, "high"},
		{"second branch", 0.7, "medium"},
		{"fallback branch", 0.1, "low"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rctx := Context{"score": tt.score}
			result, err := e.EvaluateConditional(context.Background(), "branching", NewEvent("x", "test", nil), rctx)
			require.NoError(t, err)
			assert.True(t, result.Success)
			assert.Equal(t, tt.want, rctx["tier"], "only the first matching branch executes")
			assert.Len(t, result.Actions, 1)
		})
	}
}

func TestEvaluateConditionalAllMode(t *testing.T) {
	e := newRunningEngine(t)

	require.NoError(t, e.AddConditionalRule(ConditionalRule{
		ID:   "cumulative",
		Mode: EvalAll,
		Branches: []ConditionalBranch{
			{Expression: `context.score > 0.1`, Actions: []Action{{Type: ActionBlock, Parameters: map[string]any{"counter": "a"}}}},
			{Expression: `context.score > 0.9`, Actions: []Action{{Type: ActionBlock, Parameters: map[string]any{"counter": "b"}}}},
			{Expression: `context.score > 0.3`, Actions: []Action{{Type: ActionBlock, Parameters: map[string]any{"counter": "c"}}}},
		},
	}))

	rctx := Context{"score": 0.5}
	result, err := e.EvaluateConditional(context.Background(), "cumulative", NewEvent("x", "test", nil), rctx)
	require.NoError(t, err)
	assert.True(t, result.Success)

	assert.Equal(t, float64(1), rctx["a"])
	assert.NotContains(t, rctx, "b")
	assert.Equal(t, float64(1), rctx["c"])
	assert.Len(t, result.Actions, 2)
}

func TestEvaluateConditionalEventAccess(t *testing.T) {
	e := newRunningEngine(t)

	require.NoError(t, e.AddConditionalRule(ConditionalRule{
		ID: "ev",
		Branches: []ConditionalBranch{{
			Expression: `event.type == "task_completed" && event.data.user == "alice"`,
			Actions: []Action{{Type: ActionStoreMemory, Parameters: map[string]any{
				"variable": "matched", "value": true,
			}}},
		}},
	}))

	rctx := Context{}
	_, err := e.EvaluateConditional(context.Background(), "ev",
		NewEvent("task_completed", "test", map[string]any{"user": "alice"}), rctx)
	require.NoError(t, err)
	assert.Equal(t, true, rctx["matched"])

	rctx = Context{}
	_, err = e.EvaluateConditional(context.Background(), "ev",
		NewEvent("task_completed", "test", map[string]any{"user": "bob"}), rctx)
	require.NoError(t, err)
	assert.NotContains(t, rctx, "matched")
}

func TestEvaluateConditionalRuntimeFailures(t *testing.T) {
	e := newRunningEngine(t)

	t.Run("evaluation error captured in result", func(t *testing.T) {
		// Compiles against dyn-typed maps but fails at runtime when the
		// key is absent.
		require.NoError(t, e.AddConditionalRule(ConditionalRule{
			ID: "runtime",
			Branches: []ConditionalBranch{{
				Expression: `context.missing_key > 1`,
				Actions:    []Action{{Type: ActionBlock}},
			}},
		}))

		result, err := e.EvaluateConditional(context.Background(), "runtime", NewEvent("x", "test", nil), Context{})
		require.NoError(t, err, "runtime evaluation errors are captured, not propagated")
		assert.False(t, result.Success)
		assert.NotEmpty(t, result.Error)
	})

	t.Run("action failure stops remaining branches", func(t *testing.T) {
		require.NoError(t, e.AddConditionalRule(ConditionalRule{
			ID:   "failing",
			Mode: EvalAll,
			Branches: []ConditionalBranch{
				{Expression: `true`, Actions: []Action{{Type: ActionEnhance, Parameters: map[string]any{"function": "missing"}}}},
				{Expression: `true`, Actions: []Action{{Type: ActionBlock}}},
			},
		}))

		rctx := Context{}
		result, err := e.EvaluateConditional(context.Background(), "failing", NewEvent("x", "test", nil), rctx)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.NotContains(t, rctx, "blocked", "branches after a failed action must not run")
	})

	t.Run("unknown conditional", func(t *testing.T) {
		_, err := e.EvaluateConditional(context.Background(), "ghost", NewEvent("x", "test", nil), nil)
		assert.ErrorIs(t, err, ErrConditionalNotFound)
	})

	t.Run("stopped engine", func(t *testing.T) {
		e.Stop()
		defer e.Start()
		_, err := e.EvaluateConditional(context.Background(), "runtime", NewEvent("x", "test", nil), nil)
		assert.ErrorIs(t, err, ErrEngineNotRunning)
	})
}
