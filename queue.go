package sdk

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mnemos-ai/sdk/notify"
)

// Notification kinds emitted by the enhancement queue.
const (
	// KindEnhancementQueued is emitted when an enhancement task is accepted.
	KindEnhancementQueued = "enhancementQueued"

	// KindAgentEnhanced is emitted when an enhancement task completes.
	KindAgentEnhanced = "agentEnhanced"

	// KindEnhancementError is emitted when an enhancement task fails.
	KindEnhancementError = "enhancementError"

	// KindEnhancementCancelled is emitted when an enhancement task is cancelled.
	KindEnhancementCancelled = "enhancementCancelled"
)

// TaskStatus is the lifecycle state of an enhancement task. Transitions
// are monotonic: pending to processing to completed or failed, with
// cancellation allowed until the task finishes.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Finished reports whether the status is terminal.
func (s TaskStatus) Finished() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// EnhancementTask is one queued agent enhancement.
type EnhancementTask struct {
	// ID is the unique task identifier.
	ID string `json:"id"`

	// Agent is the agent to enhance. The worker mutates it in place on
	// completion, exactly as a synchronous enhancement would.
	Agent *Agent `json:"agent"`

	// Status is the task's lifecycle state.
	Status TaskStatus `json:"status"`

	// Result holds the enhancement outcome once the task completes.
	Result *EnhancementResult `json:"result,omitempty"`

	// Error holds the failure message when Status is failed.
	Error string `json:"error,omitempty"`

	// CreatedAt is when the task was queued.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the worker picked the task up.
	StartedAt time.Time `json:"started_at,omitempty"`

	// FinishedAt is when the task reached a terminal status.
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// taskQueue runs enhancement tasks on a single background worker.
//
// Tasks are claimed strictly one at a time in FIFO order, so two tasks
// for the same agent can never run concurrently.
type taskQueue struct {
	enhancer *Enhancer
	bus      *notify.Bus
	logger   *slog.Logger
	interval time.Duration

	// onComplete, when set, receives every completed task's outcome. The
	// manager points it at the pattern learner so async enhancements feed
	// learning the same way synchronous ones do.
	onComplete func(agentType string, result *EnhancementResult)

	mu    sync.Mutex
	tasks map[string]*EnhancementTask
	order []string

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// newTaskQueue creates a stopped queue. Call start to begin processing.
func newTaskQueue(enhancer *Enhancer, bus *notify.Bus, logger *slog.Logger, interval time.Duration) *taskQueue {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &taskQueue{
		enhancer: enhancer,
		bus:      bus,
		logger:   logger,
		interval: interval,
		tasks:    make(map[string]*EnhancementTask),
		stop:     make(chan struct{}),
	}
}

// start launches the background worker.
func (q *taskQueue) start() {
	q.wg.Add(1)
	go q.run()
}

// close stops the worker and waits for an in-flight task to finish.
func (q *taskQueue) close() {
	q.stopOnce.Do(func() { close(q.stop) })
	q.wg.Wait()
}

// enqueue accepts an enhancement task for the given agent and returns
// its id.
func (q *taskQueue) enqueue(a *Agent) (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}

	task := &EnhancementTask{
		ID:        uuid.NewString(),
		Agent:     a,
		Status:    TaskPending,
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	q.tasks[task.ID] = task
	q.order = append(q.order, task.ID)
	q.mu.Unlock()

	q.bus.Emit(KindEnhancementQueued, "queue", map[string]any{
		"task_id":  task.ID,
		"agent_id": a.ID,
	})
	return task.ID, nil
}

// get returns a copy of the task with the given id.
func (q *taskQueue) get(id string) (*EnhancementTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return nil, newError("Queue.Get", KindNotFound, ErrTaskNotFound)
	}
	out := *task
	return &out, nil
}

// cancel marks a task cancelled. Pending tasks never run; a processing
// task keeps running but its outcome is discarded, since applied slot
// changes are not rolled back. Finished tasks cannot be cancelled.
func (q *taskQueue) cancel(id string) error {
	q.mu.Lock()
	task, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return newError("Queue.Cancel", KindNotFound, ErrTaskNotFound)
	}
	if task.Status.Finished() {
		q.mu.Unlock()
		return newError("Queue.Cancel", KindExecution, ErrTaskFinished)
	}
	task.Status = TaskCancelled
	task.FinishedAt = time.Now()
	agentID := task.Agent.ID
	q.mu.Unlock()

	q.bus.Emit(KindEnhancementCancelled, "queue", map[string]any{
		"task_id":  id,
		"agent_id": agentID,
	})
	return nil
}

// pending returns the number of tasks not yet claimed.
func (q *taskQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, task := range q.tasks {
		if task.Status == TaskPending {
			n++
		}
	}
	return n
}

// run is the worker loop. Each tick claims and executes at most one task.
func (q *taskQueue) run() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stop:
			return
		case <-ticker.C:
			if task := q.claimNext(); task != nil {
				q.execute(task)
			}
		}
	}
}

// claimNext marks the oldest pending task processing and returns it.
func (q *taskQueue) claimNext() *EnhancementTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.order {
		task := q.tasks[id]
		if task.Status != TaskPending {
			continue
		}
		task.Status = TaskProcessing
		task.StartedAt = time.Now()
		return task
	}
	return nil
}

// execute runs one claimed task and records its terminal status.
func (q *taskQueue) execute(task *EnhancementTask) {
	result, err := q.enhancer.EnhanceAgent(task.Agent)

	q.mu.Lock()
	if task.Status == TaskCancelled {
		// Cancelled mid-flight: the outcome is discarded. Slot changes
		// already applied to the agent stay applied.
		q.mu.Unlock()
		return
	}

	task.FinishedAt = time.Now()
	if err != nil {
		task.Status = TaskFailed
		task.Error = err.Error()
	} else {
		task.Status = TaskCompleted
		task.Result = result
	}
	agentID := task.Agent.ID
	agentType := task.Agent.Type
	q.mu.Unlock()

	if err != nil {
		q.logger.Warn("enhancement task failed", "task_id", task.ID, "error", err)
		q.bus.Emit(KindEnhancementError, "queue", map[string]any{
			"task_id":  task.ID,
			"agent_id": agentID,
			"error":    err.Error(),
		})
		return
	}

	if q.onComplete != nil {
		q.onComplete(agentType, result)
	}
	q.bus.Emit(KindAgentEnhanced, "queue", map[string]any{
		"task_id":     task.ID,
		"agent_id":    agentID,
		"applied":     result.Applied,
		"improvement": result.Improvement,
	})
}
