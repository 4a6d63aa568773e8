package rules

import (
	"fmt"
)

// GeneratorFunc synthesizes rules at runtime from an event and context,
// for example one rule per encountered user id. Generated rules are
// added to the registry like any other, subject to the engine's cap on
// generated rules.
type GeneratorFunc func(ev Event, rctx Context) ([]Rule, error)

// RegisterGenerator registers a dynamic rule generator under a name.
func (e *Engine) RegisterGenerator(name string, fn GeneratorFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("%w: generator name and function are required", ErrInvalidRule)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generators[name] = fn
	return nil
}

// GenerateRules invokes a registered generator and adds the rules it
// returns, stopping at the configured cap. It returns the ids of the
// rules actually added; when the cap truncates the batch, the added ids
// are returned together with ErrRuleLimit.
//
// A generated rule whose id is already registered is replaced in place
// rather than duplicated.
func (e *Engine) GenerateRules(name string, ev Event, rctx Context) ([]string, error) {
	e.mu.RLock()
	fn, ok := e.generators[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: generator %q", ErrFunctionNotFound, name)
	}

	generated, err := fn(ev, rctx)
	if err != nil {
		return nil, fmt.Errorf("rules: generator %q failed: %w", name, err)
	}

	var added []string
	for _, r := range generated {
		e.mu.RLock()
		_, exists := e.rules[r.ID]
		count := e.generated
		e.mu.RUnlock()

		if !exists && count >= e.maxGenerated {
			return added, fmt.Errorf("%w: cap is %d", ErrRuleLimit, e.maxGenerated)
		}

		if exists {
			if err := e.UpdateRule(r); err != nil {
				return added, err
			}
		} else {
			if err := e.AddRule(r); err != nil {
				return added, err
			}
			e.mu.Lock()
			e.generated++
			e.mu.Unlock()
		}
		added = append(added, r.ID)
	}
	return added, nil
}
