// Package orchestrator drives the full lifecycle of a plugin run.
//
// An [Orchestrator] owns an ordered list of lifespan sessions and moves
// through a fixed state machine:
//
//	Idle → SettingUp → Running → ShuttingDown → TearingDown → Stopped
//
// Setup runs strictly sequentially in registration order, because later
// plugins may depend on earlier ones having finished initializing. Only
// once every setup has succeeded are the collected task descriptors
// handed to the task registry and run concurrently. The orchestrator
// then blocks until a termination signal: its context is cancelled (the
// process layer translates an operating-system interrupt into that
// cancellation), a task fails, or every scheduled task completes on its
// own. Plugins without tasks never end the run by themselves; with no
// scheduled tasks at all only the external signal terminates it.
//
// Shutdown is the mirror image. All tasks are cancelled and joined
// before any teardown starts, so a task can never race its own plugin's
// teardown over shared state. Teardowns then run strictly sequentially
// in reverse registration order, every one attempted regardless of
// earlier teardown failures.
//
// A setup failure short-circuits: remaining setups are abandoned, and
// only the sessions that completed setup are torn down (in reverse
// order of their completion).
//
// The run reports exactly one representative error, preferring the
// earliest setup error, then the first task failure, then the first
// teardown failure; everything else is logged.
package orchestrator
