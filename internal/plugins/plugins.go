// Package plugins contains the built-in plugins shipped with plugspan:
// countdown, echo, watch, and debug. Each constructor binds its options
// and collaborators up front and returns a lifespan.Plugin whose
// zero-argument Init the orchestrator drives.
package plugins

import (
	"github.com/Iron-Ham/plugspan/internal/logging"
	"github.com/Iron-Ham/plugspan/internal/notify"
	"github.com/Iron-Ham/plugspan/internal/orchestrator"
)

// Topics the built-in plugins publish on.
const (
	// CountdownTopic carries the countdown plugin's current value.
	CountdownTopic = "countdown"
	// WatchTopic carries filesystem paths seen by the watch plugin.
	WatchTopic = "watch"
)

// Context carries the shared collaborators every built-in plugin closes
// over. The CLI layer builds one per run.
type Context struct {
	// Hub is the run's notification hub.
	Hub *notify.Hub
	// Logger is the run's root logger.
	Logger *logging.Logger
	// Orch is consulted by the debug plugin for task state; may be nil.
	Orch *orchestrator.Orchestrator
}
