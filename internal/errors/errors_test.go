package errors

import (
	"fmt"
	"testing"
)

func TestSetupError(t *testing.T) {
	cause := New("dial failed")
	err := NewSetupError("countdown", cause)

	if !Is(err, cause) {
		t.Error("SetupError should unwrap to its cause")
	}
	if err.Plugin != "countdown" {
		t.Errorf("Expected plugin 'countdown', got %q", err.Plugin)
	}
	want := "setup failed [plugin=countdown]: dial failed"
	if err.Error() != want {
		t.Errorf("Expected message %q, got %q", want, err.Error())
	}
}

func TestTaskErrorWrapping(t *testing.T) {
	err := NewTaskError("watch", ErrTaskPanicked)

	if !Is(err, ErrTaskPanicked) {
		t.Error("TaskError should match its sentinel cause")
	}

	wrapped := fmt.Errorf("run aborted: %w", err)
	var taskErr *TaskError
	if !As(wrapped, &taskErr) {
		t.Fatal("As should find TaskError through wrapping")
	}
	if taskErr.Plugin != "watch" {
		t.Errorf("Expected plugin 'watch', got %q", taskErr.Plugin)
	}
}

func TestInvalidStateError(t *testing.T) {
	err := NewInvalidStateError("Teardown", "NotStarted", ErrSetupNotComplete)

	if !Is(err, ErrSetupNotComplete) {
		t.Error("InvalidStateError should unwrap to its cause")
	}
	want := "invalid state [op=Teardown, state=NotStarted]: setup has not completed"
	if err.Error() != want {
		t.Errorf("Expected message %q, got %q", want, err.Error())
	}

	bare := NewInvalidStateError("Setup", "Done", nil)
	want = "invalid state [op=Setup, state=Done]"
	if bare.Error() != want {
		t.Errorf("Expected message %q, got %q", want, bare.Error())
	}
}

func TestClassificationHelpers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		isSetup bool
		isTask  bool
		isTear  bool
		isState bool
	}{
		{"setup", NewSetupError("a", New("boom")), true, false, false, false},
		{"task", NewTaskError("a", New("boom")), false, true, false, false},
		{"teardown", NewTeardownError("a", New("boom")), false, false, true, false},
		{"state", NewInvalidStateError("Setup", "Done", nil), false, false, false, true},
		{"wrapped setup", fmt.Errorf("outer: %w", NewSetupError("a", New("boom"))), true, false, false, false},
		{"plain", New("boom"), false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSetup(tt.err); got != tt.isSetup {
				t.Errorf("IsSetup = %v, want %v", got, tt.isSetup)
			}
			if got := IsTask(tt.err); got != tt.isTask {
				t.Errorf("IsTask = %v, want %v", got, tt.isTask)
			}
			if got := IsTeardown(tt.err); got != tt.isTear {
				t.Errorf("IsTeardown = %v, want %v", got, tt.isTear)
			}
			if got := IsInvalidState(tt.err); got != tt.isState {
				t.Errorf("IsInvalidState = %v, want %v", got, tt.isState)
			}
		})
	}
}

func TestFirst(t *testing.T) {
	setupErr := NewSetupError("a", New("boom"))
	tearErr := NewTeardownError("b", New("boom"))

	if got := First(nil, nil, nil); got != nil {
		t.Errorf("First of all nils should be nil, got %v", got)
	}
	if got := First(nil, setupErr, tearErr); got != setupErr {
		t.Errorf("First should return the earliest non-nil error, got %v", got)
	}
	if got := First(); got != nil {
		t.Errorf("First of nothing should be nil, got %v", got)
	}
}
