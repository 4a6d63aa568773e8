package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() Event {
	return Event{
		ID:       "ev-1",
		Type:     "user_login",
		Source:   "auth",
		Severity: SeverityWarning,
		Data: map[string]any{
			"user":  "alice",
			"score": 42,
			"nested": map[string]any{
				"flag": true,
			},
		},
	}
}

func TestResolveField(t *testing.T) {
	ev := testEvent()
	rctx := Context{"session": "s-9", "depth": map[string]any{"level": 2}}

	tests := []struct {
		name  string
		field string
		want  any
		found bool
	}{
		{"event prefix", "event.type", "user_login", true},
		{"event data path", "event.data.user", "alice", true},
		{"nested data path", "event.data.nested.flag", true, true},
		{"context prefix", "context.session", "s-9", true},
		{"context nested", "context.depth.level", 2, true},
		{"bare path hits event first", "type", "user_login", true},
		{"bare path falls back to context", "session", "s-9", true},
		{"missing", "event.data.absent", nil, false},
		{"path through scalar", "event.type.deeper", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := resolveField(tt.field, ev, rctx)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEvaluateCondition(t *testing.T) {
	ev := testEvent()
	rctx := Context{"attempts": 3}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"eq", Condition{Field: "event.type", Operator: OpEquals, Value: "user_login"}, true},
		{"eq numeric coercion", Condition{Field: "event.data.score", Operator: OpEquals, Value: 42.0}, true},
		{"ne", Condition{Field: "event.type", Operator: OpNotEquals, Value: "logout"}, true},
		{"contains", Condition{Field: "event.type", Operator: OpContains, Value: "login"}, true},
		{"not contains", Condition{Field: "event.type", Operator: OpNotContains, Value: "xyz"}, true},
		{"prefix", Condition{Field: "event.type", Operator: OpHasPrefix, Value: "user_"}, true},
		{"suffix", Condition{Field: "event.type", Operator: OpHasSuffix, Value: "_login"}, true},
		{"gt", Condition{Field: "event.data.score", Operator: OpGreaterThan, Value: 40}, true},
		{"gt false", Condition{Field: "event.data.score", Operator: OpGreaterThan, Value: 42}, false},
		{"gte", Condition{Field: "event.data.score", Operator: OpGreaterOrEqual, Value: 42}, true},
		{"lt", Condition{Field: "context.attempts", Operator: OpLessThan, Value: 5}, true},
		{"lte", Condition{Field: "context.attempts", Operator: OpLessOrEqual, Value: 3}, true},
		{"numeric string coerced", Condition{Field: "event.data.score", Operator: OpGreaterThan, Value: "40"}, true},
		{"in", Condition{Field: "event.data.user", Operator: OpIn, Value: []any{"bob", "alice"}}, true},
		{"in typed slice", Condition{Field: "event.data.user", Operator: OpIn, Value: []string{"bob", "alice"}}, true},
		{"not in", Condition{Field: "event.data.user", Operator: OpNotIn, Value: []any{"bob"}}, true},
		{"matches", Condition{Field: "event.data.user", Operator: OpMatches, Value: "^al.*$"}, true},
		{"exists", Condition{Field: "event.data.user", Operator: OpExists}, true},
		{"not exists", Condition{Field: "event.data.ghost", Operator: OpNotExists}, true},
		{"missing field is false", Condition{Field: "event.data.ghost", Operator: OpEquals, Value: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluateCondition(tt.cond, ev, rctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateConditionErrors(t *testing.T) {
	ev := testEvent()

	t.Run("unknown operator", func(t *testing.T) {
		_, err := evaluateCondition(Condition{Field: "event.type", Operator: Operator("almost")}, ev, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownOperator)
	})

	t.Run("invalid regex pattern", func(t *testing.T) {
		_, err := evaluateCondition(Condition{Field: "event.type", Operator: OpMatches, Value: "("}, ev, nil)
		require.Error(t, err)
	})
}

func TestEvaluateConditionsShortCircuit(t *testing.T) {
	ev := testEvent()

	// The second condition carries an unknown operator; with the first
	// condition false, evaluation must short-circuit before reaching it.
	conds := []Condition{
		{Field: "event.type", Operator: OpEquals, Value: "other"},
		{Field: "event.type", Operator: Operator("bad")},
	}

	ok, err := evaluateConditions(conds, ev, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateConditionsEmptyAlwaysMatches(t *testing.T) {
	ok, err := evaluateConditions(nil, testEvent(), nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInterpolate(t *testing.T) {
	ev := testEvent()
	rctx := Context{"session": "s-9"}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"event field", "user {{event.data.user}} logged in", "user alice logged in"},
		{"context field", "session={{context.session}}", "session=s-9"},
		{"multiple", "{{event.data.user}}@{{context.session}}", "alice@s-9"},
		{"whitespace tolerated", "{{ event.data.user }}", "alice"},
		{"unresolvable renders empty", "x{{event.data.ghost}}y", "xy"},
		{"no placeholders", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, interpolate(tt.template, ev, rctx))
		})
	}
}
