package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mnemos-ai/sdk/notify"
)

// source identifies this component in emitted notifications.
const source = "rules"

// DefaultMaxGeneratedRules caps how many rules dynamic generators may
// add over an engine's lifetime.
const DefaultMaxGeneratedRules = 100

// Engine registers rules, matches them against incoming events and a
// shared mutable context, and executes their actions in order.
//
// Structural misuse (adding a malformed rule, updating a nonexistent
// rule, processing while stopped) returns an error. Runtime failures
// inside a single rule are captured in its ExecutionResult and never
// abort the surrounding batch.
type Engine struct {
	mu      sync.RWMutex
	running bool
	rules   map[string]*Rule
	order   []string

	chains       map[string]*Chain
	conditionals map[string]*compiledConditional
	generators   map[string]GeneratorFunc
	generated    int
	maxGenerated int

	history *History
	funcs   *FunctionRegistry
	bus     *notify.Bus
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger collaborator used by the LOG action and
// internal diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithBus sets the notification bus the engine emits on.
func WithBus(bus *notify.Bus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithFunctions sets the host-supplied function registry used by the
// ENHANCE action and dynamic rule generators.
func WithFunctions(funcs *FunctionRegistry) Option {
	return func(e *Engine) {
		if funcs != nil {
			e.funcs = funcs
		}
	}
}

// WithHistoryCap sets the execution history capacity.
// Default: DefaultHistoryCap.
func WithHistoryCap(n int) Option {
	return func(e *Engine) {
		e.history = NewHistory(n)
	}
}

// WithMaxGeneratedRules caps how many rules dynamic generators may add.
// Default: DefaultMaxGeneratedRules.
func WithMaxGeneratedRules(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxGenerated = n
		}
	}
}

// NewEngine creates a stopped engine. Call Start before processing events.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rules:        make(map[string]*Rule),
		chains:       make(map[string]*Chain),
		conditionals: make(map[string]*compiledConditional),
		generators:   make(map[string]GeneratorFunc),
		maxGenerated: DefaultMaxGeneratedRules,
		history:      NewHistory(DefaultHistoryCap),
		funcs:        NewFunctionRegistry(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start makes the engine accept events.
func (e *Engine) Start() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
}

// Stop makes ProcessEvent fail with ErrEngineNotRunning until the next Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Running reports whether the engine accepts events.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Functions returns the engine's function registry.
func (e *Engine) Functions() *FunctionRegistry {
	return e.funcs
}

// History returns the retained execution results, oldest first.
func (e *Engine) History() []ExecutionResult {
	return e.history.All()
}

// AddRule validates and registers a rule. Structural errors fail fast.
func (e *Engine) AddRule(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	e.mu.Lock()
	if _, exists := e.rules[r.ID]; exists {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrRuleExists, r.ID)
	}
	e.rules[r.ID] = &r
	e.order = append(e.order, r.ID)
	e.mu.Unlock()

	e.bus.Emit(KindRuleAdded, source, map[string]any{"rule_id": r.ID})
	return nil
}

// UpdateRule replaces a registered rule, preserving its creation time
// and registration order. Updating a nonexistent rule is structural
// misuse and returns an error.
func (e *Engine) UpdateRule(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	existing, ok := e.rules[r.ID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrRuleNotFound, r.ID)
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now()
	e.rules[r.ID] = &r
	e.mu.Unlock()

	e.bus.Emit(KindRuleUpdated, source, map[string]any{"rule_id": r.ID})
	return nil
}

// RemoveRule deletes a registered rule.
func (e *Engine) RemoveRule(id string) error {
	e.mu.Lock()
	if _, ok := e.rules[id]; !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrRuleNotFound, id)
	}
	delete(e.rules, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	e.bus.Emit(KindRuleRemoved, source, map[string]any{"rule_id": id})
	return nil
}

// GetRule returns a copy of a registered rule.
func (e *Engine) GetRule(id string) (*Rule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRuleNotFound, id)
	}
	out := *r
	return &out, nil
}

// ListRules returns copies of all registered rules in registration order.
func (e *Engine) ListRules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Rule, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, *e.rules[id])
	}
	return out
}

// SetActive toggles a rule between active and inactive.
func (e *Engine) SetActive(id string, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rules[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrRuleNotFound, id)
	}
	r.Active = active
	r.UpdatedAt = time.Now()
	return nil
}

// ProcessEvent evaluates all active rules against the event and context,
// in descending priority order (ties preserve registration order), and
// executes the actions of every matching rule.
//
// Runtime failures are captured per rule: one failing rule never aborts
// processing of the remaining rules. The returned slice holds one result
// per matched rule plus one per rule whose condition evaluation failed.
func (e *Engine) ProcessEvent(ctx context.Context, ev Event, rctx Context) ([]ExecutionResult, error) {
	if !e.Running() {
		return nil, ErrEngineNotRunning
	}
	if rctx == nil {
		rctx = make(Context)
	}

	candidates := e.activeRulesByPriority()

	var results []ExecutionResult
	for _, rule := range candidates {
		result, matched := e.evaluateAndExecute(ctx, rule, ev, rctx)
		if !matched && result == nil {
			continue
		}
		results = append(results, *result)
	}

	return results, nil
}

// activeRulesByPriority snapshots the active rules sorted by priority
// descending with a stable sort, so equal priorities keep registration
// order.
func (e *Engine) activeRulesByPriority() []*Rule {
	e.mu.RLock()
	out := make([]*Rule, 0, len(e.order))
	for _, id := range e.order {
		if r := e.rules[id]; r.Active {
			out = append(out, r)
		}
	}
	e.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// evaluateAndExecute runs one rule against one event. It returns the
// recorded result and whether the rule matched. A condition-evaluation
// error produces a failed result with matched=false.
func (e *Engine) evaluateAndExecute(ctx context.Context, rule *Rule, ev Event, rctx Context) (*ExecutionResult, bool) {
	matched, err := evaluateConditions(rule.Conditions, ev, rctx)
	if err != nil {
		result := ExecutionResult{
			RuleID:     rule.ID,
			RuleName:   rule.Name,
			EventID:    ev.ID,
			Success:    false,
			Error:      err.Error(),
			ExecutedAt: time.Now(),
		}
		e.record(result)
		e.bus.Emit(KindExecutionError, source, map[string]any{
			"rule_id": rule.ID,
			"error":   err.Error(),
		})
		return &result, false
	}
	if !matched {
		return nil, false
	}

	result := e.executeActions(ctx, rule, ev, rctx)

	if result.Success && rule.ExecuteOnce() {
		e.mu.Lock()
		if live, ok := e.rules[rule.ID]; ok {
			live.Active = false
			live.UpdatedAt = time.Now()
		}
		e.mu.Unlock()
	}

	e.record(result)
	if !result.Success {
		e.bus.Emit(KindExecutionError, source, map[string]any{
			"rule_id": rule.ID,
			"error":   result.Error,
		})
	}
	return &result, true
}

// record appends a result to the bounded history and emits ruleExecuted.
func (e *Engine) record(result ExecutionResult) {
	e.history.Append(result)
	e.bus.Emit(KindRuleExecuted, source, map[string]any{
		"rule_id": result.RuleID,
		"success": result.Success,
	})
}
