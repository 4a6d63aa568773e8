package rules

import (
	"context"
	"fmt"
	"sync"
)

// Chain is an ordered group of rules executed as one logical unit.
type Chain struct {
	// ID is the unique chain identifier.
	ID string `json:"id"`

	// RuleIDs lists the member rules in execution order.
	RuleIDs []string `json:"rule_ids"`

	// StopOnFailure aborts remaining members after the first failed rule.
	// It has no effect when Parallel is true.
	StopOnFailure bool `json:"stop_on_failure"`

	// Parallel executes members independently on cloned contexts. When
	// false, members run sequentially and later members see context
	// mutations made by earlier ones.
	Parallel bool `json:"parallel"`
}

// AddChain registers a chain. Member rules must already be registered.
func (e *Engine) AddChain(c Chain) error {
	if c.ID == "" {
		return fmt.Errorf("%w: chain id is required", ErrInvalidRule)
	}
	if len(c.RuleIDs) == 0 {
		return fmt.Errorf("%w: chain %q has no members", ErrInvalidRule, c.ID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range c.RuleIDs {
		if _, ok := e.rules[id]; !ok {
			return fmt.Errorf("%w: %q (chain member)", ErrRuleNotFound, id)
		}
	}
	e.chains[c.ID] = &c
	return nil
}

// RemoveChain deletes a registered chain.
func (e *Engine) RemoveChain(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.chains[id]; !ok {
		return fmt.Errorf("%w: %q", ErrChainNotFound, id)
	}
	delete(e.chains, id)
	return nil
}

// ExecuteChain runs a chain's member rules against the event.
//
// Sequential chains thread the same context through every member,
// establishing a total order; StopOnFailure aborts remaining members
// after the first failed rule. Parallel chains run members independently
// on cloned contexts with no ordering guarantee between them, though
// each still runs to completion. Non-matching members produce no result.
func (e *Engine) ExecuteChain(ctx context.Context, chainID string, ev Event, rctx Context) ([]ExecutionResult, error) {
	if !e.Running() {
		return nil, ErrEngineNotRunning
	}
	if rctx == nil {
		rctx = make(Context)
	}

	e.mu.RLock()
	chain, ok := e.chains[chainID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrChainNotFound, chainID)
	}

	members := make([]*Rule, 0, len(chain.RuleIDs))
	e.mu.RLock()
	for _, id := range chain.RuleIDs {
		r, ok := e.rules[id]
		if !ok {
			e.mu.RUnlock()
			return nil, fmt.Errorf("%w: %q (chain member)", ErrRuleNotFound, id)
		}
		members = append(members, r)
	}
	e.mu.RUnlock()

	if chain.Parallel {
		return e.executeChainParallel(ctx, members, ev, rctx), nil
	}
	return e.executeChainSequential(ctx, chain, members, ev, rctx), nil
}

func (e *Engine) executeChainSequential(ctx context.Context, chain *Chain, members []*Rule, ev Event, rctx Context) []ExecutionResult {
	var results []ExecutionResult
	for _, rule := range members {
		result, matched := e.evaluateAndExecute(ctx, rule, ev, rctx)
		if result == nil && !matched {
			continue
		}
		results = append(results, *result)
		if chain.StopOnFailure && !result.Success {
			break
		}
	}
	return results
}

func (e *Engine) executeChainParallel(ctx context.Context, members []*Rule, ev Event, rctx Context) []ExecutionResult {
	slots := make([]*ExecutionResult, len(members))

	var wg sync.WaitGroup
	for i, rule := range members {
		wg.Add(1)
		go func(i int, rule *Rule) {
			defer wg.Done()
			result, _ := e.evaluateAndExecute(ctx, rule, ev, rctx.Clone())
			slots[i] = result
		}(i, rule)
	}
	wg.Wait()

	var results []ExecutionResult
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results
}
