package sdk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mnemos-ai/sdk/cache"
	"github.com/mnemos-ai/sdk/config"
	"github.com/mnemos-ai/sdk/memory"
	"github.com/mnemos-ai/sdk/notify"
	"github.com/mnemos-ai/sdk/retrieval"
	"github.com/mnemos-ai/sdk/rules"
)

// EnhanceFunctionName is the registry name the manager's agent
// enhancement hook is registered under, for use by ENHANCE actions.
const EnhanceFunctionName = "enhance_agent"

// Manager wires the cache, rule engine, memory store, retriever, and
// enhancement queue into one engine instance.
//
// Construct with New, call Start before use, and Shutdown when done.
type Manager struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	bus      *notify.Bus
	cache    *cache.Cache
	store    *memory.Store
	engine   *rules.Engine
	retr     *retrieval.Retriever
	enhancer *Enhancer
	learner  *PatternLearner
	queue    *taskQueue
	snapshot cache.SnapshotStore

	mu      sync.Mutex
	started bool
}

// Stats is a point-in-time view of the engine's state.
type Stats struct {
	// Cache holds the cache's hit/miss and occupancy statistics.
	Cache cache.Stats `json:"cache"`

	// Rules is the number of registered rules.
	Rules int `json:"rules"`

	// Memories is the number of live memory records.
	Memories int `json:"memories"`

	// PendingTasks is the number of queued, unclaimed enhancement tasks.
	PendingTasks int `json:"pending_tasks"`
}

// New creates a Manager from the given options. The manager is stopped;
// call Start before processing.
func New(opts ...Option) (*Manager, error) {
	mc := &managerConfig{}
	for _, opt := range opts {
		opt(mc)
	}

	if mc.logger == nil {
		mc.logger = slog.Default()
	}
	if mc.bus == nil {
		mc.bus = notify.NewBus()
	}

	cfg := mc.cfg
	if cfg == nil && mc.configPath != "" {
		loaded, err := config.Load(mc.configPath)
		if err != nil {
			return nil, &EngineError{
				Op:   "New",
				Kind: KindConfiguration,
				Err:  ErrInvalidConfig,
				Context: map[string]any{
					"path":  mc.configPath,
					"cause": err.Error(),
				},
			}
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	m := &Manager{
		logger:   mc.logger,
		tracer:   mc.tracer,
		bus:      mc.bus,
		snapshot: mc.snapshotStore,
	}

	m.cache = cache.New(cache.Options{
		MaxSize:         cfg.Cache.GetMaxSize(),
		MaxMemory:       cfg.Cache.GetMaxMemory(),
		DefaultTTL:      cfg.Cache.GetDefaultTTL(),
		CleanupInterval: cfg.Cache.GetCleanupInterval(),
	}, m.bus, m.logger)

	if m.snapshot == nil && cfg.Cache != nil && cfg.Cache.Snapshot != nil {
		store, err := cache.NewRedisSnapshotStore(cache.RedisSnapshotOptions{
			URL: cfg.Cache.Snapshot.URL,
			Key: cfg.Cache.Snapshot.Key,
		})
		if err != nil {
			m.cache.Close()
			return nil, &EngineError{
				Op:   "New",
				Kind: KindConfiguration,
				Err:  ErrInvalidConfig,
				Context: map[string]any{
					"cause": err.Error(),
				},
			}
		}
		m.snapshot = store
	}

	m.store = memory.NewStore()
	m.retr = retrieval.NewRetriever(m.store, m.cache, m.bus, m.logger,
		retrieval.WithDefaultLimit(cfg.Retrieval.GetDefaultLimit()))
	m.enhancer = NewEnhancer(m.retr, m.logger)
	m.learner = NewPatternLearner(m.store, m.logger, cfg.Enhancement.GetPatternThreshold())
	m.queue = newTaskQueue(m.enhancer, m.bus, m.logger, cfg.Enhancement.GetPollInterval())
	m.queue.onComplete = m.learner.Record

	m.engine = rules.NewEngine(
		rules.WithLogger(m.logger),
		rules.WithBus(m.bus),
		rules.WithHistoryCap(cfg.Rules.GetHistoryCap()),
		rules.WithMaxGeneratedRules(cfg.Rules.GetMaxGeneratedRules()),
	)
	m.engine.Functions().RegisterFunc(EnhanceFunctionName, m.enhanceFunction)

	tel, err := newTelemetry(mc.meter)
	if err != nil {
		m.cache.Close()
		return nil, newError("New", KindInternal, err)
	}
	tel.observe(m.bus)

	return m, nil
}

// Start makes the manager operational: the rule engine accepts events,
// the enhancement worker begins polling, and a configured snapshot store
// is restored into the cache.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	if m.snapshot != nil {
		m.cache.LoadFrom(ctx, m.snapshot)
	}

	m.engine.Start()
	m.queue.start()
	m.logger.Info("engine started")
	return nil
}

// Shutdown stops the manager: the worker drains its in-flight task, the
// rule engine stops accepting events, and the cache is snapshotted and
// closed. Shutdown is idempotent.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	m.mu.Unlock()

	m.queue.close()
	m.engine.Stop()

	if m.snapshot != nil {
		m.cache.SaveTo(ctx, m.snapshot)
	}
	m.cache.Close()
	m.logger.Info("engine stopped")
	return nil
}

// running reports whether Start has been called without a later Shutdown.
func (m *Manager) running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// StoreMemory saves a record and invalidates cached retrieval results so
// subsequent queries see it.
func (m *Manager) StoreMemory(rec memory.Memory) (string, error) {
	id, err := m.store.Store(rec)
	if err != nil {
		return "", newError("Manager.StoreMemory", KindValidation, err)
	}
	m.retr.InvalidateCache()
	return id, nil
}

// Retrieve runs a scored search over the memory store.
func (m *Manager) Retrieve(ctx context.Context, q retrieval.Query) (*retrieval.Result, error) {
	if !m.running() {
		return nil, newError("Manager.Retrieve", KindExecution, ErrNotStarted)
	}

	if m.tracer != nil {
		var span trace.Span
		_, span = m.tracer.Start(ctx, "manager.retrieve")
		defer span.End()
		span.SetAttributes(attribute.String("query.text", q.Text))

		result, err := m.retr.Retrieve(q)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		span.SetAttributes(
			attribute.Int("result.memories", len(result.Memories)),
			attribute.Float64("result.confidence", result.Confidence),
			attribute.Bool("result.from_cache", result.FromCache),
		)
		return result, nil
	}

	return m.retr.Retrieve(q)
}

// ProcessEvent feeds an event through the rule engine.
func (m *Manager) ProcessEvent(ctx context.Context, ev rules.Event, rctx rules.Context) ([]rules.ExecutionResult, error) {
	return m.engine.ProcessEvent(ctx, ev, rctx)
}

// EnhanceAgent synchronously fills the agent's memory slots. Misuse
// (a nil agent, a stopped manager) is reported inside the failure
// result rather than as an error, so callers always receive an outcome
// record.
func (m *Manager) EnhanceAgent(ctx context.Context, a *Agent) *EnhancementResult {
	var span trace.Span
	if m.tracer != nil {
		_, span = m.tracer.Start(ctx, "manager.enhance_agent")
		defer span.End()
	}

	fail := func(err error) *EnhancementResult {
		result := &EnhancementResult{Success: false, Error: err.Error()}
		if a != nil {
			result.AgentID = a.ID
		}
		if span != nil {
			span.RecordError(err)
		}
		m.bus.Emit(KindEnhancementError, "manager", map[string]any{
			"agent_id": result.AgentID,
			"error":    result.Error,
		})
		return result
	}

	if !m.running() {
		return fail(newError("Manager.EnhanceAgent", KindExecution, ErrNotStarted))
	}

	result, err := m.enhancer.EnhanceAgent(a)
	if err != nil {
		return fail(err)
	}

	m.learner.Record(a.Type, result)
	if span != nil {
		span.SetAttributes(
			attribute.String("agent.id", a.ID),
			attribute.Int("enhancement.applied", result.Applied),
			attribute.Float64("enhancement.improvement", result.Improvement),
		)
	}
	m.bus.Emit(KindAgentEnhanced, "manager", map[string]any{
		"agent_id":    a.ID,
		"applied":     result.Applied,
		"improvement": result.Improvement,
	})
	return result
}

// QueueEnhancement schedules an asynchronous enhancement and returns the
// task id.
func (m *Manager) QueueEnhancement(a *Agent) (string, error) {
	if !m.running() {
		return "", newError("Manager.QueueEnhancement", KindExecution, ErrNotStarted)
	}
	return m.queue.enqueue(a)
}

// Task returns a copy of the enhancement task with the given id.
func (m *Manager) Task(id string) (*EnhancementTask, error) {
	return m.queue.get(id)
}

// CancelEnhancement cancels a queued or in-flight enhancement task.
// Slot changes already applied are not rolled back.
func (m *Manager) CancelEnhancement(id string) error {
	return m.queue.cancel(id)
}

// Plan returns the learned enhancement plan for an agent type.
func (m *Manager) Plan(agentType string) EnhancementPlan {
	return m.learner.Plan(agentType)
}

// enhanceFunction is the rule-engine hook: an ENHANCE action naming
// EnhanceFunctionName enhances the agent passed in its arguments.
func (m *Manager) enhanceFunction(ctx context.Context, args map[string]any) (any, error) {
	a, ok := args["agent"].(*Agent)
	if !ok {
		return nil, fmt.Errorf("enhance_agent requires an \"agent\" argument")
	}
	result := m.EnhanceAgent(ctx, a)
	if !result.Success {
		return nil, fmt.Errorf("enhancement failed: %s", result.Error)
	}
	return result, nil
}

// Stats returns a point-in-time view of the engine's state.
func (m *Manager) Stats() Stats {
	return Stats{
		Cache:        m.cache.Stats(),
		Rules:        len(m.engine.ListRules()),
		Memories:     m.store.Count(),
		PendingTasks: m.queue.pending(),
	}
}

// Bus returns the shared notification bus.
func (m *Manager) Bus() *notify.Bus { return m.bus }

// Engine returns the rule engine for rule registration and chains.
func (m *Manager) Engine() *rules.Engine { return m.engine }

// Store returns the memory store.
func (m *Manager) Store() *memory.Store { return m.store }

// Cache returns the shared cache.
func (m *Manager) Cache() *cache.Cache { return m.cache }
