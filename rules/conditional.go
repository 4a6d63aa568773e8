package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// EvaluationMode selects how a conditional rule's branches combine.
type EvaluationMode string

const (
	// EvalAny executes the first matching branch's actions only.
	EvalAny EvaluationMode = "any"

	// EvalAll executes every matching branch's actions.
	EvalAll EvaluationMode = "all"
)

// ConditionalBranch pairs a CEL expression with the actions to run when
// it evaluates true.
type ConditionalBranch struct {
	// Expression is a CEL expression over the "event" and "context" maps
	// (e.g., `context.score > 0.5 && event.type == "task_completed"`).
	Expression string `json:"expression"`

	// Actions execute in declaration order when the expression holds.
	Actions []Action `json:"actions"`
}

// ConditionalRule is a list of expression/action branches evaluated
// against the event and context.
type ConditionalRule struct {
	// ID is the unique conditional rule identifier.
	ID string `json:"id"`

	// Mode selects whether the first or every matching branch executes.
	Mode EvaluationMode `json:"mode"`

	// Branches are evaluated in declaration order.
	Branches []ConditionalBranch `json:"branches"`
}

// compiledConditional pairs a conditional rule with its compiled CEL
// programs, one per branch.
type compiledConditional struct {
	rule     ConditionalRule
	programs []cel.Program
}

// celEnv builds the CEL environment conditional expressions compile in.
func celEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("event", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("context", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// AddConditionalRule compiles and registers a conditional rule. A branch
// expression that fails to compile is structural misuse and fails fast.
func (e *Engine) AddConditionalRule(cr ConditionalRule) error {
	if cr.ID == "" {
		return fmt.Errorf("%w: conditional rule id is required", ErrInvalidRule)
	}
	if len(cr.Branches) == 0 {
		return fmt.Errorf("%w: conditional rule %q has no branches", ErrInvalidRule, cr.ID)
	}
	if cr.Mode == "" {
		cr.Mode = EvalAny
	}
	if cr.Mode != EvalAny && cr.Mode != EvalAll {
		return fmt.Errorf("%w: unknown evaluation mode %q", ErrInvalidRule, cr.Mode)
	}

	env, err := celEnv()
	if err != nil {
		return fmt.Errorf("rules: failed to build expression environment: %w", err)
	}

	programs := make([]cel.Program, 0, len(cr.Branches))
	for i, branch := range cr.Branches {
		ast, issues := env.Compile(branch.Expression)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("%w: branch %d expression: %v", ErrInvalidRule, i, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return fmt.Errorf("%w: branch %d expression: %v", ErrInvalidRule, i, err)
		}
		programs = append(programs, prg)
	}

	e.mu.Lock()
	e.conditionals[cr.ID] = &compiledConditional{rule: cr, programs: programs}
	e.mu.Unlock()
	return nil
}

// RemoveConditionalRule deletes a registered conditional rule.
func (e *Engine) RemoveConditionalRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.conditionals[id]; !ok {
		return fmt.Errorf("%w: %q", ErrConditionalNotFound, id)
	}
	delete(e.conditionals, id)
	return nil
}

// EvaluateConditional evaluates a conditional rule's branches against
// the event and context and executes matching branches' actions per the
// rule's mode. Branch evaluation errors are runtime failures captured in
// the result.
func (e *Engine) EvaluateConditional(ctx context.Context, id string, ev Event, rctx Context) (*ExecutionResult, error) {
	if !e.Running() {
		return nil, ErrEngineNotRunning
	}
	if rctx == nil {
		rctx = make(Context)
	}

	e.mu.RLock()
	compiled, ok := e.conditionals[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrConditionalNotFound, id)
	}

	start := time.Now()
	result := ExecutionResult{
		RuleID:     id,
		EventID:    ev.ID,
		Success:    true,
		ExecutedAt: start,
	}

	activation := map[string]any{
		"event":   ev.AsMap(),
		"context": map[string]any(rctx),
	}

branches:
	for i, prg := range compiled.programs {
		out, _, err := prg.Eval(activation)
		if err != nil {
			result.Success = false
			result.Error = fmt.Sprintf("branch %d evaluation failed: %v", i, err)
			break
		}
		truthy, ok := out.Value().(bool)
		if !ok || !truthy {
			continue
		}

		for _, action := range compiled.rule.Branches[i].Actions {
			actionStart := time.Now()
			actionErr := e.executeAction(ctx, action, ev, rctx)

			ar := ActionResult{
				Type:     action.Type,
				Success:  actionErr == nil,
				Duration: time.Since(actionStart),
			}
			if actionErr != nil {
				ar.Error = actionErr.Error()
			}
			result.Actions = append(result.Actions, ar)

			if actionErr != nil {
				result.Success = false
				result.Error = actionErr.Error()
				break branches
			}
		}

		if compiled.rule.Mode == EvalAny {
			break
		}
	}

	result.Duration = time.Since(start)
	e.record(result)
	if !result.Success {
		e.bus.Emit(KindExecutionError, source, map[string]any{
			"rule_id": id,
			"error":   result.Error,
		})
	}
	return &result, nil
}
