package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification kinds emitted by the engine on its notify.Bus.
const (
	// KindRuleAdded is emitted after a rule is registered.
	KindRuleAdded = "ruleAdded"

	// KindRuleRemoved is emitted after a rule is removed.
	KindRuleRemoved = "ruleRemoved"

	// KindRuleUpdated is emitted after a rule is replaced.
	KindRuleUpdated = "ruleUpdated"

	// KindRuleExecuted is emitted after a matched rule finishes executing,
	// whether or not its actions succeeded.
	KindRuleExecuted = "ruleExecuted"

	// KindExecutionError is emitted when condition evaluation or an action
	// fails at runtime.
	KindExecutionError = "executionError"

	// KindEventNotify carries events synthesized by the NOTIFY action.
	KindEventNotify = "notify"
)

// Common errors returned by engine operations. Structural misuse (adding
// a malformed rule, processing while stopped) surfaces as an error;
// runtime failures inside a single rule are captured in its
// ExecutionResult instead.
var (
	// ErrEngineNotRunning is returned when ProcessEvent is called before
	// Start or after Stop.
	ErrEngineNotRunning = errors.New("rules: engine is not running")

	// ErrRuleNotFound is returned when a referenced rule id is not registered.
	ErrRuleNotFound = errors.New("rules: rule not found")

	// ErrRuleExists is returned when adding a rule whose id is already registered.
	ErrRuleExists = errors.New("rules: rule already exists")

	// ErrInvalidRule is returned when a rule fails structural validation.
	ErrInvalidRule = errors.New("rules: invalid rule")

	// ErrUnknownOperator is recorded when a condition names an operator
	// the engine does not implement.
	ErrUnknownOperator = errors.New("rules: unknown operator")

	// ErrUnknownActionType is recorded when an action names a type the
	// engine does not implement.
	ErrUnknownActionType = errors.New("rules: unknown action type")

	// ErrFunctionNotFound is recorded when an ENHANCE action or a
	// generator names a function missing from the registry.
	ErrFunctionNotFound = errors.New("rules: function not found")

	// ErrChainNotFound is returned when a referenced chain id is not registered.
	ErrChainNotFound = errors.New("rules: chain not found")

	// ErrConditionalNotFound is returned when a referenced conditional
	// rule id is not registered.
	ErrConditionalNotFound = errors.New("rules: conditional rule not found")

	// ErrRuleLimit is returned when a generator would exceed the
	// configured cap on generated rules.
	ErrRuleLimit = errors.New("rules: generated rule limit reached")
)

// Category groups rules by concern.
type Category string

const (
	CategorySecurity  Category = "security"
	CategoryTechnical Category = "technical"
	CategoryPersonal  Category = "personal"
	CategoryWorkflow  Category = "workflow"
	CategoryMemory    Category = "memory"
)

// Severity ranks an event's urgency.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Operator names a condition comparison.
type Operator string

const (
	OpEquals         Operator = "eq"
	OpNotEquals      Operator = "ne"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpHasPrefix      Operator = "prefix"
	OpHasSuffix      Operator = "suffix"
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpIn             Operator = "in"
	OpNotIn          Operator = "not_in"
	OpMatches        Operator = "matches"
	OpExists         Operator = "exists"
	OpNotExists      Operator = "not_exists"
)

// ActionType names one of the engine's action kinds. The set is closed:
// an unrecognized type fails the action at execution time.
type ActionType string

const (
	// ActionLog formats a templated message and writes it to the engine's
	// logger collaborator.
	ActionLog ActionType = "LOG"

	// ActionNotify synthesizes a new Event and emits it to listeners.
	ActionNotify ActionType = "NOTIFY"

	// ActionModify deep-merges an updates map into the rule context.
	ActionModify ActionType = "MODIFY"

	// ActionEnhance invokes a named function from the registry and waits
	// for its result. This is the engine's extension point for
	// caller-supplied logic, including the memory-enhancement hook.
	ActionEnhance ActionType = "ENHANCE"

	// ActionStoreMemory sets a named context variable, the entry point
	// into the memory store workflow.
	ActionStoreMemory ActionType = "STORE_MEMORY"

	// ActionBlock increments a named numeric counter in the context.
	ActionBlock ActionType = "BLOCK"
)

// Condition is a single field comparison. Conditions within a rule are
// combined with logical AND and short-circuited left to right.
type Condition struct {
	// Field is a dot-path resolved against the event, the context, or a
	// combined view (e.g., "event.type", "context.user", "data.score").
	Field string `json:"field"`

	// Operator selects the comparison.
	Operator Operator `json:"operator"`

	// Value is the right-hand operand. Its expected shape depends on the
	// operator (a slice for in/not_in, a pattern string for matches).
	Value any `json:"value,omitempty"`
}

// Action is a single effect executed when a rule matches. Actions run
// sequentially in declaration order; the first failure aborts the rest.
type Action struct {
	// Type selects the action kind.
	Type ActionType `json:"type"`

	// Parameters configure the action. Recognized keys depend on the type
	// (e.g., "message" for LOG, "updates" for MODIFY, "function" for ENHANCE).
	Parameters map[string]any `json:"parameters,omitempty"`
}

// MetadataExecuteOnce is the rule metadata key that, when true, makes the
// rule deactivate itself after its first successful execution.
const MetadataExecuteOnce = "executeOnce"

// Rule is a registered condition/action rule. Rules are owned by the
// engine's registry and are never mutated concurrently with their own
// evaluation.
type Rule struct {
	// ID is the unique rule identifier.
	ID string `json:"id"`

	// Name is a human-readable rule name.
	Name string `json:"name"`

	// Description explains what the rule does.
	Description string `json:"description,omitempty"`

	// Category groups the rule by concern.
	Category Category `json:"category,omitempty"`

	// Priority orders execution: higher priorities run first. Ties
	// preserve registration order.
	Priority int `json:"priority"`

	// Active controls whether the rule participates in event processing.
	Active bool `json:"active"`

	// Conditions must all hold for the rule to match. An empty list
	// always matches.
	Conditions []Condition `json:"conditions,omitempty"`

	// Actions execute in declaration order on match.
	Actions []Action `json:"actions"`

	// Metadata carries rule-specific flags such as MetadataExecuteOnce.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is when the rule was registered.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the rule was last replaced.
	UpdatedAt time.Time `json:"updated_at"`
}

// ExecuteOnce reports whether the rule deactivates itself after its
// first successful execution.
func (r *Rule) ExecuteOnce() bool {
	v, ok := r.Metadata[MetadataExecuteOnce]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Validate checks the rule's structural requirements. Validation covers
// structure only; unknown operators and action types are runtime
// failures captured per execution.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRule)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrInvalidRule)
	}
	for i, c := range r.Conditions {
		if c.Field == "" {
			return fmt.Errorf("%w: condition %d is missing a field", ErrInvalidRule, i)
		}
		if c.Operator == "" {
			return fmt.Errorf("%w: condition %d is missing an operator", ErrInvalidRule, i)
		}
	}
	for i, a := range r.Actions {
		if a.Type == "" {
			return fmt.Errorf("%w: action %d is missing a type", ErrInvalidRule, i)
		}
	}
	return nil
}

// Event is an immutable system event consumed by the engine.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type names the event kind (e.g., "user_login", "task_completed").
	Type string `json:"type"`

	// Source names the emitting component.
	Source string `json:"source"`

	// Data is the event payload.
	Data map[string]any `json:"data,omitempty"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Severity ranks the event's urgency.
	Severity Severity `json:"severity"`
}

// NewEvent constructs an event with a generated id and the current time.
func NewEvent(eventType, source string, data map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now(),
		Severity:  SeverityInfo,
	}
}

// AsMap returns the event as a string-keyed map for field resolution and
// expression evaluation.
func (e Event) AsMap() map[string]any {
	return map[string]any{
		"id":        e.ID,
		"type":      e.Type,
		"source":    e.Source,
		"data":      e.Data,
		"timestamp": e.Timestamp,
		"severity":  string(e.Severity),
	}
}

// Context is the mutable, caller-supplied state threaded through one
// ProcessEvent call. Actions may read and write it; callers that retain
// a context across calls (as rule chains do) see those mutations.
type Context map[string]any

// Clone returns a shallow copy of the context. Parallel chain members
// each receive a clone so their mutations stay independent.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ActionResult records one action's outcome.
type ActionResult struct {
	// Type is the executed action's kind.
	Type ActionType `json:"type"`

	// Success reports whether the action completed without error.
	Success bool `json:"success"`

	// Error holds the failure message when Success is false.
	Error string `json:"error,omitempty"`

	// Duration is the action's wall-clock execution time.
	Duration time.Duration `json:"duration"`
}

// ExecutionResult records one rule's outcome for one event. Results are
// read-only after creation and retained in the engine's bounded history.
type ExecutionResult struct {
	// RuleID identifies the executed rule.
	RuleID string `json:"rule_id"`

	// RuleName is the rule's human-readable name.
	RuleName string `json:"rule_name"`

	// EventID identifies the event that triggered execution.
	EventID string `json:"event_id"`

	// Success reports whether every action completed without error.
	Success bool `json:"success"`

	// Error holds the first failure message when Success is false.
	Error string `json:"error,omitempty"`

	// Actions are the per-action outcomes, in declaration order. Actions
	// after the first failure are absent because they never ran.
	Actions []ActionResult `json:"actions,omitempty"`

	// Duration is the rule's total wall-clock execution time.
	Duration time.Duration `json:"duration"`

	// ExecutedAt is when execution started.
	ExecutedAt time.Time `json:"executed_at"`
}
