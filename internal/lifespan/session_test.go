package lifespan

import (
	"context"
	"testing"

	"github.com/Iron-Ham/plugspan/internal/errors"
)

func TestSetupCapturesTaskAndTeardown(t *testing.T) {
	taskRan := false
	tearRan := false

	sess := NewSession("demo", func(ctx context.Context) (TaskFunc, TeardownFunc, error) {
		task := func(ctx context.Context) error {
			taskRan = true
			return nil
		}
		teardown := func(ctx context.Context) error {
			tearRan = true
			return nil
		}
		return task, teardown, nil
	})

	if sess.Phase() != PhaseNotStarted {
		t.Fatalf("Expected NotStarted, got %v", sess.Phase())
	}

	task, err := sess.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if task == nil {
		t.Fatal("Setup should return the task descriptor")
	}
	if sess.Phase() != PhaseAwaitingTask {
		t.Errorf("Expected AwaitingTask after setup with task, got %v", sess.Phase())
	}

	if err := sess.MarkScheduled(); err != nil {
		t.Fatalf("MarkScheduled failed: %v", err)
	}
	if sess.Phase() != PhaseRunning {
		t.Errorf("Expected Running after MarkScheduled, got %v", sess.Phase())
	}

	if err := task(context.Background()); err != nil {
		t.Fatalf("Task failed: %v", err)
	}
	if !taskRan {
		t.Error("Task body should have run")
	}

	if err := sess.Teardown(context.Background()); err != nil {
		t.Fatalf("Teardown failed: %v", err)
	}
	if !tearRan {
		t.Error("Teardown body should have run")
	}
	if sess.Phase() != PhaseDone {
		t.Errorf("Expected Done, got %v", sess.Phase())
	}
}

func TestSetupWithoutTask(t *testing.T) {
	sess := NewSession("quiet", func(ctx context.Context) (TaskFunc, TeardownFunc, error) {
		return nil, func(ctx context.Context) error { return nil }, nil
	})

	task, err := sess.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if task != nil {
		t.Error("Expected no task descriptor")
	}
	if sess.Phase() != PhaseRunning {
		t.Errorf("Expected Running after setup without task, got %v", sess.Phase())
	}
}

func TestSetupFailure(t *testing.T) {
	cause := errors.New("no device")
	sess := NewSession("broken", func(ctx context.Context) (TaskFunc, TeardownFunc, error) {
		return nil, nil, cause
	})

	_, err := sess.Setup(context.Background())
	if err == nil {
		t.Fatal("Setup should fail")
	}
	if !errors.IsSetup(err) {
		t.Errorf("Expected a SetupError, got %T", err)
	}
	if !errors.Is(err, cause) {
		t.Error("SetupError should wrap the plugin's error")
	}
	if sess.Phase() != PhaseFailed {
		t.Errorf("Expected Failed, got %v", sess.Phase())
	}

	// A failed session never gets teardown.
	err = sess.Teardown(context.Background())
	if !errors.IsInvalidState(err) {
		t.Errorf("Teardown after failed setup should be an InvalidStateError, got %v", err)
	}
	if !errors.Is(err, errors.ErrSetupNotComplete) {
		t.Errorf("Expected ErrSetupNotComplete, got %v", err)
	}
}

func TestDoubleSetup(t *testing.T) {
	sess := NewSession("demo", func(ctx context.Context) (TaskFunc, TeardownFunc, error) {
		return nil, nil, nil
	})

	if _, err := sess.Setup(context.Background()); err != nil {
		t.Fatalf("First Setup failed: %v", err)
	}
	_, err := sess.Setup(context.Background())
	if !errors.IsInvalidState(err) {
		t.Errorf("Second Setup should be an InvalidStateError, got %v", err)
	}
	if !errors.Is(err, errors.ErrSetupAlreadyRun) {
		t.Errorf("Expected ErrSetupAlreadyRun, got %v", err)
	}
}

func TestTeardownBeforeSetup(t *testing.T) {
	sess := NewSession("demo", nil)

	err := sess.Teardown(context.Background())
	if !errors.IsInvalidState(err) {
		t.Errorf("Teardown before Setup should be an InvalidStateError, got %v", err)
	}
}

func TestDoubleTeardown(t *testing.T) {
	sess := NewSession("demo", func(ctx context.Context) (TaskFunc, TeardownFunc, error) {
		return nil, nil, nil
	})

	if _, err := sess.Setup(context.Background()); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := sess.Teardown(context.Background()); err != nil {
		t.Fatalf("First Teardown failed: %v", err)
	}

	err := sess.Teardown(context.Background())
	if !errors.IsInvalidState(err) {
		t.Errorf("Second Teardown should be an InvalidStateError, got %v", err)
	}
	if !errors.Is(err, errors.ErrTeardownDone) {
		t.Errorf("Expected ErrTeardownDone, got %v", err)
	}
}

func TestTeardownFailureStillFinishes(t *testing.T) {
	cause := errors.New("close failed")
	sess := NewSession("flaky", func(ctx context.Context) (TaskFunc, TeardownFunc, error) {
		return nil, func(ctx context.Context) error { return cause }, nil
	})

	if _, err := sess.Setup(context.Background()); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	err := sess.Teardown(context.Background())
	if !errors.IsTeardown(err) {
		t.Fatalf("Expected a TeardownError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("TeardownError should wrap the plugin's error")
	}
	if sess.Phase() != PhaseDone {
		t.Errorf("Session should end in Done even when teardown fails, got %v", sess.Phase())
	}
}

func TestNilSetupFunc(t *testing.T) {
	sess := NewSession("empty", nil)

	task, err := sess.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if task != nil {
		t.Error("Expected no task descriptor")
	}
	if err := sess.Teardown(context.Background()); err != nil {
		t.Fatalf("Teardown failed: %v", err)
	}
}

func TestFuncPlugin(t *testing.T) {
	p := Func("demo", func(ctx context.Context) (TaskFunc, TeardownFunc, error) {
		return nil, nil, nil
	})

	if p.Name != "demo" {
		t.Errorf("Expected name 'demo', got %q", p.Name)
	}

	a := p.Init()
	b := p.Init()
	if a == b {
		t.Error("Init should create a fresh session each time")
	}
	if a.Name() != "demo" {
		t.Errorf("Expected session name 'demo', got %q", a.Name())
	}
}
