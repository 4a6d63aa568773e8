package rules

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterGenerator(t *testing.T) {
	e := NewEngine()

	t.Run("empty name rejected", func(t *testing.T) {
		err := e.RegisterGenerator("", func(Event, Context) ([]Rule, error) { return nil, nil })
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("nil function rejected", func(t *testing.T) {
		err := e.RegisterGenerator("gen", nil)
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("unknown generator", func(t *testing.T) {
		_, err := e.GenerateRules("ghost", NewEvent("x", "test", nil), nil)
		assert.ErrorIs(t, err, ErrFunctionNotFound)
	})
}

func TestGenerateRules(t *testing.T) {
	e := newRunningEngine(t)

	require.NoError(t, e.RegisterGenerator("per-user", func(ev Event, _ Context) ([]Rule, error) {
		user, _ := ev.Data["user"].(string)
		return []Rule{{
			ID:     "user-" + user,
			Name:   "watch " + user,
			Active: true,
			Conditions: []Condition{
				{Field: "event.data.user", Operator: OpEquals, Value: user},
			},
			Actions: []Action{{Type: ActionBlock, Parameters: map[string]any{"counter": "seen_" + user}}},
		}}, nil
	}))

	added, err := e.GenerateRules("per-user", NewEvent("login", "test", map[string]any{"user": "alice"}), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-alice"}, added)

	r, err := e.GetRule("user-alice")
	require.NoError(t, err)
	assert.Equal(t, "watch alice", r.Name)

	// Generated rules behave like any other registered rule.
	rctx := Context{}
	_, err = e.ProcessEvent(context.Background(), NewEvent("login", "test", map[string]any{"user": "alice"}), rctx)
	require.NoError(t, err)
	assert.Equal(t, float64(1), rctx["seen_alice"])
}

func TestGenerateRulesReplacesExisting(t *testing.T) {
	e := newRunningEngine(t)

	version := 0
	require.NoError(t, e.RegisterGenerator("versioned", func(Event, Context) ([]Rule, error) {
		version++
		return []Rule{{
			ID:      "gen-1",
			Name:    fmt.Sprintf("version %d", version),
			Active:  true,
			Actions: []Action{{Type: ActionBlock}},
		}}, nil
	}))

	_, err := e.GenerateRules("versioned", NewEvent("x", "test", nil), nil)
	require.NoError(t, err)
	_, err = e.GenerateRules("versioned", NewEvent("x", "test", nil), nil)
	require.NoError(t, err)

	r, err := e.GetRule("gen-1")
	require.NoError(t, err)
	assert.Equal(t, "version 2", r.Name)
	assert.Len(t, e.ListRules(), 1, "regenerating an existing id replaces it in place")
}

func TestGenerateRulesCap(t *testing.T) {
	e := newRunningEngine(t, WithMaxGeneratedRules(3))

	require.NoError(t, e.RegisterGenerator("bulk", func(Event, Context) ([]Rule, error) {
		rules := make([]Rule, 5)
		for i := range rules {
			rules[i] = Rule{
				ID:      fmt.Sprintf("bulk-%d", i),
				Name:    fmt.Sprintf("bulk %d", i),
				Active:  true,
				Actions: []Action{{Type: ActionBlock}},
			}
		}
		return rules, nil
	}))

	added, err := e.GenerateRules("bulk", NewEvent("x", "test", nil), nil)
	require.ErrorIs(t, err, ErrRuleLimit)
	assert.Equal(t, []string{"bulk-0", "bulk-1", "bulk-2"}, added, "rules before the cap are still added")
	assert.Len(t, e.ListRules(), 3)
}

func TestGenerateRulesGeneratorFailure(t *testing.T) {
	e := newRunningEngine(t)

	require.NoError(t, e.RegisterGenerator("broken", func(Event, Context) ([]Rule, error) {
		return nil, fmt.Errorf("upstream unavailable")
	}))

	_, err := e.GenerateRules("broken", NewEvent("x", "test", nil), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestGenerateRulesInvalidRule(t *testing.T) {
	e := newRunningEngine(t)

	require.NoError(t, e.RegisterGenerator("malformed", func(Event, Context) ([]Rule, error) {
		return []Rule{{ID: "bad"}}, nil
	}))

	_, err := e.GenerateRules("malformed", NewEvent("x", "test", nil), nil)
	assert.ErrorIs(t, err, ErrInvalidRule)
}
