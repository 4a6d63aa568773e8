// Package rules provides the condition/action rule engine at the core of
// the memory engine.
//
// Rules pair an ordered list of conditions (dot-path field, operator,
// value) with an ordered list of actions. ProcessEvent evaluates every
// active rule against an incoming event and a caller-supplied mutable
// context: rules run in descending priority order (ties preserve
// registration order), conditions combine with logical AND and
// short-circuit, and a matching rule's actions execute sequentially with
// the first failure aborting the rest.
//
// Six action kinds form a closed set: LOG, NOTIFY, MODIFY, ENHANCE,
// STORE_MEMORY and BLOCK. ENHANCE is the engine's extension point: it
// invokes a named Function from the host-supplied registry and waits for
// the result before the next action runs.
//
// Three composite constructs layer on top of single-rule evaluation:
//
//   - Chains execute an ordered group of rules as one unit, either
//     sequentially with shared context or in parallel on cloned contexts.
//   - Conditional rules evaluate CEL expressions against the event and
//     context and execute the first or every matching branch's actions.
//   - Generators synthesize rules at runtime, subject to a cap.
//
// Error handling follows a strict split: structural misuse (malformed
// rules, updating a nonexistent rule, processing while stopped) returns
// an error; runtime failures inside one rule are captured in its
// ExecutionResult, recorded in a bounded history ring, and never abort
// the surrounding batch. The engine performs no retries; a caller that
// wants one re-emits the event.
package rules
