// Package sdk is a rule-driven memory engine for agent systems,
// consumed as an in-process library.
//
// The Manager is the entry point. It wires four subsystems behind one
// facade:
//
//   - cache: a bounded, tag-aware item cache with TTL expiry and
//     size/memory eviction, optionally snapshotted to Redis.
//   - rules: a condition/action rule engine with chains, CEL
//     conditional rules, and dynamic rule generators.
//   - memory: a typed store of episodic, semantic, procedural, and
//     working records.
//   - retrieval: scored, cached searches over the store.
//
// On top of those, the manager enhances agents: it fills an Agent's
// memory slots with relevant records, estimates the resulting
// performance improvement, and learns which memory types pay off per
// agent type. Enhancement runs synchronously via EnhanceAgent or
// asynchronously through a single-worker task queue.
//
// Example usage:
//
//	m, err := sdk.New(sdk.WithConfig("engine.yaml"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := m.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer m.Shutdown(ctx)
//
//	m.StoreMemory(memory.Memory{
//		Content: "retry deploys with exponential backoff",
//		Type:    memory.TypeProcedural,
//		Importance: 0.8,
//	})
//
//	agent := &sdk.Agent{ID: "agent-1", Type: "task_planner", Domain: "ops"}
//	result := m.EnhanceAgent(ctx, agent)
//
// All components share one notification bus, reachable via Manager.Bus,
// and report OpenTelemetry metrics and traces when a meter and tracer
// are configured.
package sdk
