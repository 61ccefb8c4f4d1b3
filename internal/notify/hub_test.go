package notify

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishStoresValueAndVersion(t *testing.T) {
	hub := NewHub()

	if v := hub.Version("countdown"); v != 0 {
		t.Errorf("Unpublished topic should be at version 0, got %d", v)
	}

	hub.Publish("countdown", 3)
	hub.Publish("countdown", 2)

	value, version := hub.Load("countdown")
	if version != 2 {
		t.Errorf("Expected version 2, got %d", version)
	}
	if value != 2 {
		t.Errorf("Expected value 2, got %v", value)
	}
}

func TestWaitReturnsImmediatelyForPastVersion(t *testing.T) {
	hub := NewHub()
	hub.Publish("countdown", "ready")

	// The update happened before the wait; it must not be missed.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	version, value, err := hub.Wait(ctx, "countdown", 0)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected version 1, got %d", version)
	}
	if value != "ready" {
		t.Errorf("Expected value 'ready', got %v", value)
	}
}

func TestWaitBlocksUntilPublish(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		version, value, err := hub.Wait(context.Background(), "topic", 0)
		if err != nil {
			t.Errorf("Wait failed: %v", err)
			return
		}
		if version != 1 || value != 42 {
			t.Errorf("Expected (1, 42), got (%d, %v)", version, value)
		}
	}()

	select {
	case <-done:
		t.Fatal("Wait should block before any publish")
	case <-time.After(20 * time.Millisecond):
	}

	hub.Publish("topic", 42)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait should return after publish")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	hub := NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := hub.Wait(ctx, "never", 0)
		errCh <- err
	}()

	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait should return when its context is cancelled")
	}
}

func TestMultipleWaitersAllWake(t *testing.T) {
	hub := NewHub()

	const waiters = 8
	var wg sync.WaitGroup
	results := make(chan uint64, waiters)

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			version, _, err := hub.Wait(context.Background(), "broadcast", 0)
			if err != nil {
				t.Errorf("Wait failed: %v", err)
				return
			}
			results <- version
		}()
	}

	// Give the waiters a moment to block.
	time.Sleep(20 * time.Millisecond)
	hub.Publish("broadcast", "go")

	wg.Wait()
	close(results)
	for version := range results {
		if version != 1 {
			t.Errorf("Expected every waiter to observe version 1, got %d", version)
		}
	}
}

func TestIndependentTopics(t *testing.T) {
	hub := NewHub()

	hub.Publish("a", 1)

	if v := hub.Version("a"); v != 1 {
		t.Errorf("Expected topic a at version 1, got %d", v)
	}
	if v := hub.Version("b"); v != 0 {
		t.Errorf("Publishing to a must not touch b, got version %d", v)
	}
}

func TestUpdatesImmediate(t *testing.T) {
	hub := NewHub()
	hub.Publish("countdown", 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := hub.Updates(ctx, "countdown", true)

	select {
	case u := <-updates:
		if u.Version != 1 || u.Value != 5 {
			t.Errorf("Expected immediate (1, 5), got (%d, %v)", u.Version, u.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("Immediate update should arrive without a publish")
	}

	hub.Publish("countdown", 4)
	select {
	case u := <-updates:
		if u.Version != 2 || u.Value != 4 {
			t.Errorf("Expected (2, 4), got (%d, %v)", u.Version, u.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("Update should arrive after publish")
	}
}

func TestUpdatesImmediateOnVirginTopic(t *testing.T) {
	hub := NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := hub.Updates(ctx, "nothing-yet", true)

	select {
	case u := <-updates:
		if u.Version != 0 || u.Value != nil {
			t.Errorf("Expected (0, nil) for a virgin topic, got (%d, %v)", u.Version, u.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("Immediate mode should yield even on a virgin topic")
	}
}

func TestUpdatesClosesOnContextDone(t *testing.T) {
	hub := NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	updates := hub.Updates(ctx, "countdown", false)

	cancel()

	select {
	case _, ok := <-updates:
		if ok {
			t.Error("Expected the updates channel to close, got a value")
		}
	case <-time.After(time.Second):
		t.Fatal("Updates channel should close when the context is done")
	}
}

func TestTopicsListsLazilyCreated(t *testing.T) {
	hub := NewHub()
	hub.Publish("a", nil)
	hub.Version("b")

	topics := hub.Topics()
	if len(topics) != 2 {
		t.Errorf("Expected 2 topics, got %v", topics)
	}
}
