// Package lifespan models one plugin's setup → task → teardown sequence
// as an explicit state machine.
//
// A plugin contributes a [SetupFunc] with two stages around a single
// suspension point. Everything the function does before returning is the
// setup stage; at the suspension point it hands back an optional
// [TaskFunc] (the background task descriptor) and a [TeardownFunc]
// closure carrying the cleanup stage, which may capture state built
// during setup:
//
//	func setup(ctx context.Context) (lifespan.TaskFunc, lifespan.TeardownFunc, error) {
//	    conn, err := dial(ctx)
//	    if err != nil {
//	        return nil, nil, err
//	    }
//	    task := func(ctx context.Context) error { return pump(ctx, conn) }
//	    teardown := func(ctx context.Context) error { return conn.Close() }
//	    return task, teardown, nil
//	}
//
// A [Session] drives that function once and enforces the lifecycle
// invariants:
//
//   - Teardown runs if and only if setup completed.
//   - The task descriptor is captured exactly once, at the suspension point.
//   - Setup and Teardown each run at most once; out-of-order calls fail
//     with an InvalidStateError.
//
// Sessions are created by [Plugin.Init] and driven by the orchestrator;
// plugin code never manipulates phases directly.
package lifespan
