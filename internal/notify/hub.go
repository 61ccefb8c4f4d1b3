// Package notify provides a versioned notification hub for decoupled
// communication between plugin tasks.
//
// A Hub maps topic names to versioned values. Publishing to a topic
// stores the latest value, bumps the topic's version, and wakes every
// current waiter. Waiting is version-based: a waiter that passes a
// last-seen version observes every later publish exactly because the
// version comparison happens before blocking, so an update published
// before the wait can never be missed.
//
// Topics are created lazily on first reference and live for the lifetime
// of the Hub. There is no topic deletion.
//
// # Basic Usage
//
//	hub := notify.NewHub()
//
//	// Producer task
//	hub.Publish("countdown", 3)
//
//	// Consumer task
//	for update := range hub.Updates(ctx, "countdown", false) {
//	    log.Printf("countdown at %v", update.Value)
//	}
//
// All operations are safe for concurrent use.
package notify

import (
	"context"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Update is one observed publish on a topic.
type Update struct {
	// Version is the topic version this update corresponds to.
	Version uint64
	// Value is the value stored by the publish. It is nil for a topic
	// that has never been published (immediate yields only).
	Value any
}

// topic is one versioned broadcast slot. The changed channel is closed
// and replaced on every publish; waiters block on the channel captured
// while holding the lock, which is what makes missed wakeups impossible.
type topic struct {
	mu      sync.Mutex
	version uint64
	value   any
	changed chan struct{}
}

// Hub is a process-wide mapping from topic name to a broadcastable
// condition. The zero value is not usable; construct with NewHub.
type Hub struct {
	topics cmap.ConcurrentMap[string, *topic]
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{topics: cmap.New[*topic]()}
}

// get returns the named topic, creating it if needed.
func (h *Hub) get(name string) *topic {
	return h.topics.Upsert(name, nil, func(exist bool, cur, _ *topic) *topic {
		if exist {
			return cur
		}
		return &topic{changed: make(chan struct{})}
	})
}

// Publish stores value as the topic's current value, increments the
// topic's version, and wakes all current waiters.
func (h *Hub) Publish(name string, value any) {
	tp := h.get(name)

	tp.mu.Lock()
	tp.version++
	tp.value = value
	close(tp.changed)
	tp.changed = make(chan struct{})
	tp.mu.Unlock()
}

// Version returns the topic's current version. A topic that has never
// been published has version 0.
func (h *Hub) Version(name string) uint64 {
	tp := h.get(name)
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.version
}

// Load returns the topic's current value and version.
func (h *Hub) Load(name string) (any, uint64) {
	tp := h.get(name)
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.value, tp.version
}

// Wait blocks until the topic's version exceeds lastSeen, then returns
// the new version and value. If the version already exceeds lastSeen it
// returns immediately; an already-published update is never missed.
// Wait returns ctx.Err() if ctx is done first.
func (h *Hub) Wait(ctx context.Context, name string, lastSeen uint64) (uint64, any, error) {
	tp := h.get(name)

	for {
		tp.mu.Lock()
		if tp.version > lastSeen {
			version, value := tp.version, tp.value
			tp.mu.Unlock()
			return version, value, nil
		}
		changed := tp.changed
		tp.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		}
	}
}

// Updates returns a channel of publishes on the topic, closed when ctx
// is done. When immediate is true the current value is delivered first,
// even if the topic has never been published (a nil Value at version 0).
// A slow consumer observes the latest state rather than every
// intermediate publish.
func (h *Hub) Updates(ctx context.Context, name string, immediate bool) <-chan Update {
	ch := make(chan Update)

	go func() {
		defer close(ch)

		var lastSeen uint64
		if immediate {
			value, version := h.Load(name)
			select {
			case ch <- Update{Version: version, Value: value}:
				lastSeen = version
			case <-ctx.Done():
				return
			}
		}

		for {
			version, value, err := h.Wait(ctx, name, lastSeen)
			if err != nil {
				return
			}
			select {
			case ch <- Update{Version: version, Value: value}:
				lastSeen = version
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Topics returns the names of all topics referenced so far.
func (h *Hub) Topics() []string {
	return h.topics.Keys()
}
