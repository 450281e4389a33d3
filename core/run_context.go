package core

import (
	"context"

	"github.com/hupe1980/useragents/logging"
)

// RunContext carries the execution scope of a single agent run:
//   - the ambient cancellation Context
//   - the run identifier and agent info
//   - the user Content (the request's query)
//   - the emit channel the executor drains
//   - the per-run model-call limiter
//
// A RunContext belongs to exactly one run and is never shared between
// requests.
type RunContext struct {
	Context     context.Context
	RunID       string
	Agent       AgentInfo
	UserContent Content
	Emit        chan<- Event
	Limiter     *ModelLimiter

	*loggerAdapter
}

// NewRunContext constructs a RunContext for one run.
func NewRunContext(
	ctx context.Context,
	runID string,
	agent AgentInfo,
	userContent Content,
	maxModelCalls int,
	emit chan<- Event,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		RunID:         runID,
		Agent:         agent,
		UserContent:   userContent,
		Emit:          emit,
		Limiter:       NewModelLimiter(maxModelCalls),
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// Query returns the text of the user content.
func (rc *RunContext) Query() string { return rc.UserContent.Text() }

// GetAgentName returns the logical agent name for this run.
func (rc *RunContext) GetAgentName() string { return rc.Agent.Name }

// EmitEvent stamps the run id and author (when unset) and sends the event,
// giving up when the run is cancelled.
func (rc *RunContext) EmitEvent(ev Event) error {
	if ev.RunID == "" {
		ev.RunID = rc.RunID
	}
	if ev.Author == "" {
		ev.Author = rc.Agent.Name
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	return nil
}

// EmitMessage emits a final assistant text message.
func (rc *RunContext) EmitMessage(text string) error {
	return rc.EmitEvent(NewMessageEvent(rc.RunID, rc.Agent.Name, text))
}

// WithContext returns a shallow copy of rc bound to ctx. The copy shares the
// emit channel and limiter with rc.
func (rc *RunContext) WithContext(ctx context.Context) *RunContext {
	cp := *rc
	cp.Context = ctx
	return &cp
}
