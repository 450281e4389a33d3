// Package runner provides the default core.Executor. A Runner executes one
// agent per call: it allocates a run id, builds the RunContext, runs the
// agent on its own goroutine with panic recovery, collects the emitted events
// and returns the final output text.
//
// Runners hold no per-request state beyond the set of active runs, so a
// single Runner serves all concurrent requests of a service.
package runner
