package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/plugspan/internal/errors"
	"github.com/Iron-Ham/plugspan/internal/lifespan"
	"github.com/Iron-Ham/plugspan/internal/logging"
	"github.com/Iron-Ham/plugspan/internal/registry"
)

// State is the orchestrator's run state.
type State int

const (
	// StateIdle means Run has not been called.
	StateIdle State = iota
	// StateSettingUp means plugin setups are executing sequentially.
	StateSettingUp
	// StateRunning means all setups succeeded and scheduled tasks are live.
	StateRunning
	// StateShuttingDown means tasks are being cancelled and joined.
	StateShuttingDown
	// StateTearingDown means teardowns are executing in reverse order.
	StateTearingDown
	// StateStopped is terminal.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSettingUp:
		return "SettingUp"
	case StateRunning:
		return "Running"
	case StateShuttingDown:
		return "ShuttingDown"
	case StateTearingDown:
		return "TearingDown"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures an Orchestrator.
type Options struct {
	// Logger receives run progress; nil discards output.
	Logger *logging.Logger
	// PoolSize is the task scheduler capacity. It must be at least the
	// number of plugins that yield tasks.
	PoolSize int
	// ShutdownGrace bounds how long shutdown waits for tasks to
	// acknowledge cancellation. Zero waits forever.
	ShutdownGrace time.Duration
}

// Orchestrator sequences plugin setups, schedules their background
// tasks, and drives teardown in reverse setup order on termination.
// One Orchestrator performs one run.
type Orchestrator struct {
	logger *logging.Logger
	opts   Options

	mu       sync.Mutex
	state    State
	registry *registry.Registry
}

// New creates an idle Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	if opts.PoolSize < 1 {
		opts.PoolSize = 16
	}
	return &Orchestrator{
		logger: logger,
		opts:   opts,
		state:  StateIdle,
	}
}

// State returns the current run state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Tasks returns a snapshot of the scheduled tasks, or nil while no
// registry exists (before scheduling or after the run).
func (o *Orchestrator) Tasks() []registry.Status {
	o.mu.Lock()
	reg := o.registry
	o.mu.Unlock()

	if reg == nil {
		return nil
	}
	return reg.Snapshot()
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.logger.Debug("state transition", "state", s.String())
}

// Run executes the plugins' full lifecycle and blocks until the run is
// over. Cancelling ctx is the external termination signal; a task
// failure or every scheduled task completing on its own terminates the
// run the same way. The returned error is nil on success, otherwise the
// single representative error with setup errors taking precedence over
// task errors over teardown errors.
//
// Run may be called at most once.
func (o *Orchestrator) Run(ctx context.Context, plugins []lifespan.Plugin) error {
	o.mu.Lock()
	if o.state != StateIdle {
		state := o.state
		o.mu.Unlock()
		return errors.NewInvalidStateError("Run", state.String(), nil)
	}
	o.mu.Unlock()

	reg, err := registry.New(o.opts.PoolSize, o.logger)
	if err != nil {
		return err
	}
	defer reg.Release()

	o.mu.Lock()
	o.registry = reg
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.registry = nil
		o.mu.Unlock()
	}()

	// ---- SettingUp: strictly sequential, registration order ----
	o.setState(StateSettingUp)

	completed := make([]*lifespan.Session, 0, len(plugins))
	var setupErr error
	for _, p := range plugins {
		logger := o.logger.WithPlugin(p.Name).WithPhase("setup")
		logger.Debug("setting up")

		sess := p.Init()
		if _, err := sess.Setup(ctx); err != nil {
			logger.Error("setup failed", "error", err)
			setupErr = err
			break
		}
		logger.Debug("setup complete", "has_task", sess.Task() != nil)
		completed = append(completed, sess)
	}

	var taskErr, abortErr error
	if setupErr == nil {
		taskErr, abortErr = o.runTasks(ctx, reg, completed)
	}

	// ---- TearingDown: strictly sequential, reverse setup order ----
	o.setState(StateTearingDown)

	var tearErr error
	for i := len(completed) - 1; i >= 0; i-- {
		sess := completed[i]
		logger := o.logger.WithPlugin(sess.Name()).WithPhase("teardown")
		logger.Debug("tearing down")

		if err := sess.Teardown(context.Background()); err != nil {
			// Recorded, never fatal: every session gets its attempt.
			logger.Error("teardown failed", "error", err)
			if tearErr == nil {
				tearErr = err
			}
		}
	}

	o.setState(StateStopped)

	err = errors.First(setupErr, taskErr, abortErr, tearErr)
	if err != nil {
		o.logger.Error("run finished with error", "error", err)
	} else {
		o.logger.Info("run finished")
	}
	return err
}

// runTasks schedules every captured task descriptor, waits for a
// termination signal, then cancels and joins everything. It returns the
// first task failure and any forced-abort error.
func (o *Orchestrator) runTasks(ctx context.Context, reg *registry.Registry, sessions []*lifespan.Session) (taskErr, abortErr error) {
	scheduled := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		task := sess.Task()
		if task == nil {
			// No descriptor: the plugin rides until the global
			// termination signal and never appears in the registry.
			continue
		}
		if _, err := reg.Schedule(sess.Name(), task); err != nil {
			// Already-scheduled tasks must still be cancelled and
			// joined before any teardown runs.
			o.logger.WithPlugin(sess.Name()).Error("failed to schedule task", "error", err)
			taskErr = errors.NewTaskError(sess.Name(), err)
			break
		}
		if err := sess.MarkScheduled(); err != nil {
			o.logger.WithPlugin(sess.Name()).Warn("session not awaiting its task", "error", err)
		}
		scheduled = append(scheduled, sess.Name())
	}

	if taskErr == nil {
		// ---- Running: wait for a termination signal ----
		o.setState(StateRunning)
		o.logger.Info("running", "plugins", len(sessions), "tasks", len(scheduled))

		// Without any scheduled tasks the run lasts until the external
		// signal; a nil channel never fires in the select.
		var allDone <-chan struct{}
		if len(scheduled) > 0 {
			allDone = reg.Done()
		}

		select {
		case <-ctx.Done():
			o.logger.Info("termination signal received")
		case name := <-reg.Failures():
			o.logger.Error("task failure observed, shutting down", "plugin", name)
		case <-allDone:
			o.logger.Info("all tasks completed")
		}
	}

	// ---- ShuttingDown: cancel and join everything before teardown ----
	o.setState(StateShuttingDown)
	reg.CancelAll()

	joinCtx := context.Background()
	if o.opts.ShutdownGrace > 0 {
		var cancel context.CancelFunc
		joinCtx, cancel = context.WithTimeout(joinCtx, o.opts.ShutdownGrace)
		defer cancel()
	}

	results, err := reg.JoinAll(joinCtx)
	if err != nil {
		o.logger.Error("tasks did not stop within the grace period", "error", err)
		abortErr = err
	}

	for _, name := range scheduled {
		result := results[name]
		o.logger.WithTask(name).Debug("task result", "outcome", result.Outcome.String())
		if result.Outcome == registry.OutcomeFailed && taskErr == nil {
			taskErr = result.Err
		}
	}
	return taskErr, abortErr
}
