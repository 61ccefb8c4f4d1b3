package lifespan

import (
	"context"
	"fmt"
	"sync"

	"github.com/Iron-Ham/plugspan/internal/errors"
)

// Phase is the lifecycle phase of a Session.
type Phase int

const (
	// PhaseNotStarted means setup has not been driven yet.
	PhaseNotStarted Phase = iota
	// PhaseAwaitingTask means setup completed and produced a task
	// descriptor that has not been scheduled yet.
	PhaseAwaitingTask
	// PhaseRunning means the session is live: its task (if any) has been
	// handed to the scheduler, or it produced none and simply rides until
	// the termination signal.
	PhaseRunning
	// PhaseTearingDown means teardown is executing.
	PhaseTearingDown
	// PhaseDone means teardown finished (successfully or not).
	PhaseDone
	// PhaseFailed means setup failed before the suspension point;
	// the session will never run teardown.
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "NotStarted"
	case PhaseAwaitingTask:
		return "AwaitingTask"
	case PhaseRunning:
		return "Running"
	case PhaseTearingDown:
		return "TearingDown"
	case PhaseDone:
		return "Done"
	case PhaseFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// TaskFunc is a background task descriptor. The task runs until it
// finishes on its own or ctx is cancelled. Cancellation is cooperative:
// the task must run its cleanup and then return ctx.Err() (or an error
// wrapping it) to acknowledge. Swallowing cancellation and continuing to
// run is a bug in the task.
type TaskFunc func(ctx context.Context) error

// TeardownFunc is the cleanup stage run during shutdown.
type TeardownFunc func(ctx context.Context) error

// SetupFunc is a plugin's lifespan body. It runs the setup stage, then
// returns the optional task descriptor and the teardown closure produced
// at the suspension point. A nil task means the plugin contributes no
// background work; a nil teardown means it has no cleanup stage.
type SetupFunc func(ctx context.Context) (TaskFunc, TeardownFunc, error)

// Plugin is a named unit contributing setup/teardown logic and
// optionally one background task. Immutable once handed to the
// orchestrator.
type Plugin struct {
	// Name identifies the plugin in logs, results, and errors.
	Name string
	// Init creates a fresh Session for one run. The CLI layer builds it
	// after option binding; it takes no arguments.
	Init func() *Session
}

// Func builds a Plugin whose sessions drive the given setup function.
func Func(name string, setup SetupFunc) Plugin {
	return Plugin{
		Name: name,
		Init: func() *Session { return NewSession(name, setup) },
	}
}

// Session holds one plugin's lifecycle state. All methods are safe for
// concurrent use, though the orchestrator drives each session from a
// single goroutine.
type Session struct {
	name string

	mu       sync.Mutex
	phase    Phase
	setup    SetupFunc
	task     TaskFunc
	teardown TeardownFunc
}

// NewSession creates a session in PhaseNotStarted.
func NewSession(name string, setup SetupFunc) *Session {
	return &Session{
		name:  name,
		phase: PhaseNotStarted,
		setup: setup,
	}
}

// Name returns the plugin name this session belongs to.
func (s *Session) Name() string { return s.name }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Setup drives the setup stage once. On success it captures the task
// descriptor and teardown closure and moves the session to
// PhaseAwaitingTask (task produced) or PhaseRunning (no task). On
// failure the session moves to PhaseFailed and must never be torn down.
//
// The returned task is nil when the plugin yielded none. Calling Setup
// twice is an InvalidStateError.
func (s *Session) Setup(ctx context.Context) (TaskFunc, error) {
	s.mu.Lock()
	if s.phase != PhaseNotStarted {
		phase := s.phase
		s.mu.Unlock()
		return nil, errors.NewInvalidStateError("Setup", phase.String(), errors.ErrSetupAlreadyRun)
	}
	setup := s.setup
	s.mu.Unlock()

	if setup == nil {
		// A plugin with no setup body still has a valid (empty) lifespan.
		s.mu.Lock()
		s.phase = PhaseRunning
		s.mu.Unlock()
		return nil, nil
	}

	task, teardown, err := setup(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.phase = PhaseFailed
		return nil, errors.NewSetupError(s.name, err)
	}

	s.task = task
	s.teardown = teardown
	if task != nil {
		s.phase = PhaseAwaitingTask
	} else {
		s.phase = PhaseRunning
	}
	return task, nil
}

// Task returns the captured task descriptor, or nil.
func (s *Session) Task() TaskFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

// MarkScheduled records that the session's task descriptor was handed to
// the scheduler, moving the session from PhaseAwaitingTask to
// PhaseRunning. Calling it in any other phase is an InvalidStateError.
func (s *Session) MarkScheduled() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAwaitingTask {
		return errors.NewInvalidStateError("MarkScheduled", s.phase.String(), nil)
	}
	s.phase = PhaseRunning
	return nil
}

// Teardown drives the cleanup stage once. It may only be called after a
// completed Setup; invoking it before then, or a second time, is an
// InvalidStateError. The session ends in PhaseDone whether or not the
// cleanup stage returned an error.
func (s *Session) Teardown(ctx context.Context) error {
	s.mu.Lock()
	switch s.phase {
	case PhaseAwaitingTask, PhaseRunning:
		// ok
	case PhaseTearingDown, PhaseDone:
		phase := s.phase
		s.mu.Unlock()
		return errors.NewInvalidStateError("Teardown", phase.String(), errors.ErrTeardownDone)
	default:
		phase := s.phase
		s.mu.Unlock()
		return errors.NewInvalidStateError("Teardown", phase.String(), errors.ErrSetupNotComplete)
	}
	s.phase = PhaseTearingDown
	teardown := s.teardown
	s.mu.Unlock()

	var err error
	if teardown != nil {
		err = teardown(ctx)
	}

	s.mu.Lock()
	s.phase = PhaseDone
	s.mu.Unlock()

	if err != nil {
		return errors.NewTeardownError(s.name, err)
	}
	return nil
}
