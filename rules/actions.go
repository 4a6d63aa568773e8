package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// executeActions runs a matched rule's actions sequentially in
// declaration order. The first failure aborts the remaining actions and
// marks the result failed; failures are captured, never propagated.
func (e *Engine) executeActions(ctx context.Context, rule *Rule, ev Event, rctx Context) ExecutionResult {
	start := time.Now()
	result := ExecutionResult{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		EventID:    ev.ID,
		Success:    true,
		ExecutedAt: start,
	}

	for _, action := range rule.Actions {
		actionStart := time.Now()
		err := e.executeAction(ctx, action, ev, rctx)

		ar := ActionResult{
			Type:     action.Type,
			Success:  err == nil,
			Duration: time.Since(actionStart),
		}
		if err != nil {
			ar.Error = err.Error()
		}
		result.Actions = append(result.Actions, ar)

		if err != nil {
			result.Success = false
			result.Error = err.Error()
			break
		}
	}

	result.Duration = time.Since(start)
	return result
}

// executeAction dispatches a single action over the closed set of action
// kinds. An unrecognized type is a runtime failure.
func (e *Engine) executeAction(ctx context.Context, action Action, ev Event, rctx Context) error {
	switch action.Type {
	case ActionLog:
		return e.runLog(action, ev, rctx)
	case ActionNotify:
		return e.runNotify(action, ev, rctx)
	case ActionModify:
		return runModify(action, rctx)
	case ActionEnhance:
		return e.runEnhance(ctx, action, ev, rctx)
	case ActionStoreMemory:
		return runStoreMemory(action, ev, rctx)
	case ActionBlock:
		return runBlock(action, rctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownActionType, action.Type)
	}
}

// runLog formats the "message" template with {{field}} interpolation and
// writes it to the engine's logger collaborator. The optional "level"
// parameter selects debug/info/warn/error.
func (e *Engine) runLog(action Action, ev Event, rctx Context) error {
	template, ok := action.Parameters["message"].(string)
	if !ok {
		return fmt.Errorf("rules: LOG action requires a string \"message\" parameter")
	}

	msg := interpolate(template, ev, rctx)

	level := slog.LevelInfo
	switch action.Parameters["level"] {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	e.logger.Log(context.Background(), level, msg,
		"event_id", ev.ID,
		"event_type", ev.Type)
	return nil
}

// runNotify synthesizes a new event and emits it to listeners on the
// notification bus. String payload values are interpolated.
func (e *Engine) runNotify(action Action, ev Event, rctx Context) error {
	eventType, ok := action.Parameters["event_type"].(string)
	if !ok {
		return fmt.Errorf("rules: NOTIFY action requires a string \"event_type\" parameter")
	}

	eventSource, _ := action.Parameters["source"].(string)
	if eventSource == "" {
		eventSource = source
	}

	data := make(map[string]any)
	if raw, ok := action.Parameters["data"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				data[k] = interpolate(s, ev, rctx)
			} else {
				data[k] = v
			}
		}
	}

	synthesized := NewEvent(eventType, eventSource, data)
	e.bus.Emit(KindEventNotify, source, map[string]any{"event": synthesized})
	return nil
}

// runModify deep-merges the "updates" map into the context.
func runModify(action Action, rctx Context) error {
	updates, ok := action.Parameters["updates"].(map[string]any)
	if !ok {
		return fmt.Errorf("rules: MODIFY action requires a map \"updates\" parameter")
	}
	deepMerge(rctx, updates)
	return nil
}

// deepMerge merges src into dst recursively: nested maps merge,
// everything else overwrites.
func deepMerge(dst map[string]any, src map[string]any) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
}

// runEnhance looks up the named function in the registry and invokes it,
// waiting for the result before the next action runs. The result is
// stored in the context under the optional "output" parameter name,
// defaulting to "enhancement".
func (e *Engine) runEnhance(ctx context.Context, action Action, ev Event, rctx Context) error {
	name, ok := action.Parameters["function"].(string)
	if !ok {
		return fmt.Errorf("rules: ENHANCE action requires a string \"function\" parameter")
	}

	fn, ok := e.funcs.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}

	args := map[string]any{
		"event":   ev.AsMap(),
		"context": map[string]any(rctx),
	}
	if extra, ok := action.Parameters["args"].(map[string]any); ok {
		for k, v := range extra {
			args[k] = v
		}
	}

	result, err := fn.Invoke(ctx, args)
	if err != nil {
		return fmt.Errorf("rules: function %q failed: %w", name, err)
	}

	output, _ := action.Parameters["output"].(string)
	if output == "" {
		output = "enhancement"
	}
	rctx[output] = result
	return nil
}

// runStoreMemory sets a named context variable, the rule-engine-facing
// entry point into the memory store workflow. String values are
// interpolated.
func runStoreMemory(action Action, ev Event, rctx Context) error {
	variable, ok := action.Parameters["variable"].(string)
	if !ok {
		return fmt.Errorf("rules: STORE_MEMORY action requires a string \"variable\" parameter")
	}

	value := action.Parameters["value"]
	if s, ok := value.(string); ok {
		value = interpolate(s, ev, rctx)
	}
	rctx[variable] = value
	return nil
}

// runBlock increments a named numeric counter in the context. The
// "counter" parameter defaults to "blocked".
func runBlock(action Action, rctx Context) error {
	counter, _ := action.Parameters["counter"].(string)
	if counter == "" {
		counter = "blocked"
	}

	current, _ := asFloat(rctx[counter])
	rctx[counter] = current + 1
	return nil
}
