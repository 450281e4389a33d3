package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/logging"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxConcurrentInvocations limits concurrent runs; 0 = unlimited.
	// Excess runs wait for a slot or their context.
	MaxConcurrentInvocations int
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run; 0 = unlimited.
	MaxModelCalls int
	// Timeout bounds a single run; 0 = only the caller's context applies.
	Timeout time.Duration
	// Logger receives run lifecycle logs.
	Logger logging.Logger
}

// Runner implements core.Executor. Public methods are safe for concurrent use.
type Runner struct {
	eventBufferSize int
	maxModelCalls   int
	timeout         time.Duration
	logger          logging.Logger
	slots           chan struct{}

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

var _ core.Executor = (*Runner)(nil)

// New constructs a Runner with optional overrides.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   25,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Runner{
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		timeout:         opts.Timeout,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
	}

	if opts.MaxConcurrentInvocations > 0 {
		r.slots = make(chan struct{}, opts.MaxConcurrentInvocations)
	}

	return r
}

// Execute runs agent against query and blocks until it finishes, fails or ctx
// is done.
func (r *Runner) Execute(ctx context.Context, agent core.Agent, query string) (*core.Result, error) {
	if agent == nil {
		return nil, fmt.Errorf("runner: nil agent")
	}

	if r.slots != nil {
		select {
		case r.slots <- struct{}{}:
			defer func() { <-r.slots }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	runID := core.NewID()

	var cancel context.CancelFunc
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	r.track(runID, cancel)
	defer r.untrack(runID)

	emit := make(chan core.Event, r.eventBufferSize)
	runCtx := core.NewRunContext(
		ctx,
		runID,
		core.AgentInfo{Name: agent.Name(), Type: fmt.Sprintf("%T", agent)},
		core.NewTextContent(core.RoleUser, query),
		r.maxModelCalls,
		emit,
		logging.With(r.logger, "run_id", runID, "agent", agent.Name()),
	)

	start := time.Now()
	r.logger.Debug("runner.run.start", "run_id", runID, "agent", agent.Name())

	errCh := make(chan error, 1)
	go func() {
		defer close(emit)
		errCh <- runAgent(agent, runCtx)
	}()

	result := &core.Result{RunID: runID}

	for {
		select {
		case ev, ok := <-emit:
			if !ok {
				if err := <-errCh; err != nil {
					r.logger.Warn("runner.run.failed", "run_id", runID, "agent", agent.Name(), "error", err.Error())
					return result, err
				}

				result.Output = core.FinalOutput(result.Events)
				r.logger.Debug(
					"runner.run.complete",
					"run_id", runID,
					"agent", agent.Name(),
					"events", len(result.Events),
					"duration_ms", time.Since(start).Milliseconds(),
				)

				return result, nil
			}
			if !ev.Partial {
				result.Events = append(result.Events, ev)
			}
		case <-ctx.Done():
			r.logger.Warn("runner.run.cancelled", "run_id", runID, "agent", agent.Name(), "error", ctx.Err().Error())
			return result, ctx.Err()
		}
	}
}

// Cancel cancels an active run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, ok := r.activeRuns[runID]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// ActiveRuns returns the number of runs in progress.
func (r *Runner) ActiveRuns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.activeRuns)
}

func (r *Runner) track(runID string, cancel context.CancelFunc) {
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()
}

func (r *Runner) untrack(runID string) {
	r.mu.Lock()
	delete(r.activeRuns, runID)
	r.mu.Unlock()
}

func runAgent(agent core.Agent, runCtx *core.RunContext) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			runCtx.LogError("runner.agent.panic", "recover", rec)
			err = &core.PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()

	return agent.Run(runCtx)
}
