// Package internal contains integration tests that verify the packages
// work together correctly. These tests drive a full orchestrator run
// with the built-in plugins communicating over a notification hub.
package internal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/plugspan/internal/lifespan"
	"github.com/Iron-Ham/plugspan/internal/logging"
	"github.com/Iron-Ham/plugspan/internal/notify"
	"github.com/Iron-Ham/plugspan/internal/orchestrator"
	"github.com/Iron-Ham/plugspan/internal/plugins"
)

// TestCountdownEchoIntegration runs countdown and echo together and
// verifies the countdown's publishes flow through the hub into the
// echo plugin's log output.
func TestCountdownEchoIntegration(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.log")
	logger, err := logging.NewLogger(logFile, "debug")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer logger.Close()

	orch := orchestrator.New(orchestrator.Options{Logger: logger, PoolSize: 4})
	pctx := &plugins.Context{
		Hub:    notify.NewHub(),
		Logger: logger,
		Orch:   orch,
	}

	plugs := []lifespan.Plugin{
		plugins.Countdown(pctx, 3, 5*time.Millisecond),
		plugins.Echo(pctx, false),
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- orch.Run(ctx, plugs) }()

	// Wait until the echo plugin has seen at least one countdown value.
	deadline := time.After(2 * time.Second)
	for {
		data, _ := os.ReadFile(logFile)
		if strings.Contains(string(data), "countdown currently at") {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("echo never logged a countdown value, log:\n%s", data)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if state := orch.State(); state != orchestrator.StateStopped {
		t.Errorf("State() = %v, want %v", state, orchestrator.StateStopped)
	}

	// Teardown runs for both plugins, echo before countdown.
	data, _ := os.ReadFile(logFile)
	log := string(data)
	echoTear := strings.Index(log, `"plugin":"echo","phase":"teardown"`)
	countdownTear := strings.Index(log, `"plugin":"countdown","phase":"teardown"`)
	if echoTear < 0 || countdownTear < 0 {
		t.Fatalf("missing teardown log entries, log:\n%s", log)
	}
	if echoTear > countdownTear {
		t.Error("echo should tear down before countdown")
	}
}

// TestWatchIntegration runs the watch plugin through the orchestrator
// and verifies filesystem events land on the hub.
func TestWatchIntegration(t *testing.T) {
	dir := t.TempDir()
	hub := notify.NewHub()

	orch := orchestrator.New(orchestrator.Options{PoolSize: 2})
	pctx := &plugins.Context{
		Hub:    hub,
		Logger: logging.NopLogger(),
		Orch:   orch,
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- orch.Run(ctx, []lifespan.Plugin{plugins.Watch(pctx, dir, "*.log")})
	}()

	// The watcher starts once the orchestrator reaches Running.
	waitDeadline := time.After(2 * time.Second)
	for orch.State() != orchestrator.StateRunning {
		select {
		case <-waitDeadline:
			t.Fatalf("orchestrator never reached Running, state = %v", orch.State())
		case <-time.After(time.Millisecond):
		}
	}

	target := filepath.Join(dir, "out.log")
	if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	_, value, err := hub.Wait(waitCtx, plugins.WatchTopic, 0)
	if err != nil {
		t.Fatalf("no watch event published: %v", err)
	}
	if value != target {
		t.Errorf("published path = %v, want %s", value, target)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
