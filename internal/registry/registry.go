// Package registry tracks the background tasks handed off by plugin
// setups and runs them concurrently on a shared goroutine pool.
//
// The registry owns the full cancellation protocol of a run: Schedule
// starts a task and immediately returns a handle, CancelAll requests
// cooperative cancellation of every still-running task exactly once, and
// JoinAll blocks until every task has reached an end-state, reporting one
// of Completed, Cancelled, or Failed per task. A task failing never
// cancels its siblings; the orchestrator decides what a failure means.
//
// Tasks run their own cleanup before acknowledging cancellation by
// returning their context's error. A panicking task is captured and
// recorded as Failed rather than crashing the run.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/plugspan/internal/errors"
	"github.com/Iron-Ham/plugspan/internal/lifespan"
	"github.com/Iron-Ham/plugspan/internal/logging"
)

// Outcome classifies how a scheduled task ended.
type Outcome int

const (
	// OutcomePending means the task has not reached an end-state yet.
	OutcomePending Outcome = iota
	// OutcomeCompleted means the task returned nil on its own.
	OutcomeCompleted
	// OutcomeCancelled means the task acknowledged cancellation.
	OutcomeCancelled
	// OutcomeFailed means the task returned a non-cancellation error or
	// panicked.
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "Pending"
	case OutcomeCompleted:
		return "Completed"
	case OutcomeCancelled:
		return "Cancelled"
	case OutcomeFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is a task's end-state. Err is non-nil only for OutcomeFailed.
type Result struct {
	Outcome Outcome
	Err     error
}

// ScheduledTask is the handle for one running task.
type ScheduledTask struct {
	name   string
	cancel context.CancelFunc

	done   chan struct{}
	result Result // written once, before done closes
}

// Name returns the plugin name the task belongs to.
func (t *ScheduledTask) Name() string { return t.name }

// Cancel requests cooperative cancellation. Safe to call repeatedly.
func (t *ScheduledTask) Cancel() { t.cancel() }

// Join blocks until the task reaches an end-state or ctx is done. A
// task that already finished is reported even when ctx has expired.
func (t *ScheduledTask) Join(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	default:
	}
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Status is a point-in-time view of one scheduled task.
type Status struct {
	Name    string
	Done    bool
	Outcome Outcome
}

// Registry wraps the shared goroutine pool and tracks the mapping from
// plugin name to its scheduled task. Safe for concurrent use.
type Registry struct {
	logger *logging.Logger
	pool   *ants.Pool

	mu     sync.Mutex
	tasks  map[string]*ScheduledTask
	order  []string
	closed bool

	failures chan string
}

// New creates a registry backed by a goroutine pool of the given size.
// Submission is non-blocking: scheduling more tasks than the pool holds
// is a configuration error surfaced by Schedule.
func New(poolSize int, logger *logging.Logger) (*Registry, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create task pool: %w", err)
	}

	return &Registry{
		logger:   logger,
		pool:     pool,
		tasks:    make(map[string]*ScheduledTask),
		failures: make(chan string, poolSize),
	}, nil
}

// Schedule starts fn on the shared pool under the given plugin name and
// immediately returns its handle. It never blocks on the task itself.
func (r *Registry) Schedule(name string, fn lifespan.TaskFunc) (*ScheduledTask, error) {
	if fn == nil {
		return nil, errors.NewInvalidStateError("Schedule", "nil task", nil)
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	st := &ScheduledTask{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return nil, errors.ErrRegistryClosed
	}
	if _, exists := r.tasks[name]; exists {
		r.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: %q", errors.ErrDuplicateTask, name)
	}
	r.tasks[name] = st
	r.order = append(r.order, name)
	r.mu.Unlock()

	submitErr := r.pool.Submit(func() {
		r.run(st, taskCtx, fn)
	})
	if submitErr != nil {
		r.mu.Lock()
		delete(r.tasks, name)
		r.order = r.order[:len(r.order)-1]
		r.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("failed to submit task %q: %w", name, submitErr)
	}

	r.logger.WithTask(name).Debug("task scheduled")
	return st, nil
}

// run executes one task and records its end-state.
func (r *Registry) run(st *ScheduledTask, ctx context.Context, fn lifespan.TaskFunc) {
	logger := r.logger.WithTask(st.name)

	var err error
	recovered := panics.Try(func() {
		err = fn(ctx)
	})

	switch {
	case recovered != nil:
		err = errors.NewTaskError(st.name,
			fmt.Errorf("%w: %v", errors.ErrTaskPanicked, recovered.AsError()))
		st.result = Result{Outcome: OutcomeFailed, Err: err}
		logger.Error("task panicked", "panic", recovered.Value)
		r.reportFailure(st.name)
	case err != nil && errors.Is(err, context.Canceled):
		st.result = Result{Outcome: OutcomeCancelled}
		logger.Debug("task cancelled")
	case err != nil:
		st.result = Result{Outcome: OutcomeFailed, Err: errors.NewTaskError(st.name, err)}
		logger.Error("task failed", "error", err)
		r.reportFailure(st.name)
	default:
		st.result = Result{Outcome: OutcomeCompleted}
		logger.Debug("task completed")
	}

	st.cancel()
	close(st.done)
}

// reportFailure makes a failure observable without blocking the task.
func (r *Registry) reportFailure(name string) {
	select {
	case r.failures <- name:
	default:
	}
}

// Failures returns a channel carrying the names of failed tasks.
// The orchestrator selects on it while in its running state and treats
// the first receive as a termination signal.
func (r *Registry) Failures() <-chan string {
	return r.failures
}

// Done returns a channel closed once every task scheduled so far has
// reached an end-state. With nothing scheduled it closes immediately;
// the caller decides whether an empty registry counts as finished.
func (r *Registry) Done() <-chan struct{} {
	r.mu.Lock()
	tasks := make([]*ScheduledTask, 0, len(r.tasks))
	for _, st := range r.tasks {
		tasks = append(tasks, st)
	}
	r.mu.Unlock()

	ch := make(chan struct{})
	go func() {
		for _, st := range tasks {
			<-st.done
		}
		close(ch)
	}()
	return ch
}

// CancelAll requests cancellation of every scheduled task exactly once,
// in no particular order. Call JoinAll afterwards to observe completion.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	tasks := make([]*ScheduledTask, 0, len(r.tasks))
	for _, st := range r.tasks {
		tasks = append(tasks, st)
	}
	r.mu.Unlock()

	for _, st := range tasks {
		st.Cancel()
	}
	r.logger.Debug("cancellation requested for all tasks", "count", len(tasks))
}

// JoinAll blocks until every scheduled task has completed, failed, or
// acknowledged cancellation, and returns each task's end-state by plugin
// name. When ctx expires first, every task still running is recorded as
// Failed with ErrForcedAbort and JoinAll returns ErrForcedAbort.
func (r *Registry) JoinAll(ctx context.Context) (map[string]Result, error) {
	r.mu.Lock()
	order := make([]string, len(r.order))
	copy(order, r.order)
	tasks := make(map[string]*ScheduledTask, len(r.tasks))
	for name, st := range r.tasks {
		tasks[name] = st
	}
	r.mu.Unlock()

	results := make(map[string]Result, len(order))
	var aborted bool
	for _, name := range order {
		result, err := tasks[name].Join(ctx)
		if err != nil {
			aborted = true
			results[name] = Result{
				Outcome: OutcomeFailed,
				Err:     errors.NewTaskError(name, errors.ErrForcedAbort),
			}
			continue
		}
		results[name] = result
	}

	if aborted {
		return results, errors.ErrForcedAbort
	}
	return results, nil
}

// Snapshot returns the current state of every scheduled task in
// scheduling order.
func (r *Registry) Snapshot() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]Status, 0, len(r.order))
	for _, name := range r.order {
		st := r.tasks[name]
		status := Status{Name: name}
		select {
		case <-st.done:
			status.Done = true
			status.Outcome = st.result.Outcome
		default:
			status.Outcome = OutcomePending
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Len returns the number of scheduled tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Release shuts the pool down. Scheduling after Release fails with
// ErrRegistryClosed.
func (r *Registry) Release() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.pool.Release()
}
