package core

import "context"

// Agent is a request-scoped handler. It is constructed from a single
// AgentRequest, run exactly once and then discarded; instances are never
// shared between requests.
//
// Run must respect runCtx cancellation and report its answer by emitting
// events through runCtx.EmitEvent. The final non-partial assistant text
// event is the agent's output.
type Agent interface {
	Name() string
	Run(runCtx *RunContext) error
}

// AgentInfo carries identifying details about an agent used in contexts & events.
type AgentInfo struct{ Name, Type string }

// Constructor builds an executable Agent from a request. Constructors are
// what plugins register under a name.
type Constructor func(req AgentRequest) (Agent, error)

// Result is the outcome of executing an agent.
type Result struct {
	RunID  string
	Output string
	Events []Event
}

// Executor runs an agent instance against a query. Execution may suspend on
// network or model calls; callers treat that as ordinary scheduling.
// Implementations return an error when the agent fails, panics or is
// cancelled.
type Executor interface {
	Execute(ctx context.Context, agent Agent, query string) (*Result, error)
}

// ExecutorFunc adapts an ordinary function to the Executor interface.
type ExecutorFunc func(ctx context.Context, agent Agent, query string) (*Result, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, agent Agent, query string) (*Result, error) {
	return f(ctx, agent, query)
}
