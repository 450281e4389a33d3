// Package dispatcher turns an AgentRequest into exactly one AgentResponse:
// it resolves the agent name through the registry, constructs a
// request-scoped agent and hands it to a core.Executor.
//
// Each request moves through
//
//	received -> resolving -> resolved -> constructing -> executing -> completed
//	                      \-> not_found
//
// and every transition is logged at debug level with the request id.
// Requests share nothing but the read-only registry and the executor, so a
// failing or panicking agent never affects other in-flight requests.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/logging"
)

// Resolver looks up constructors by agent name. *registry.Registry
// implements it.
type Resolver interface {
	Lookup(name string) (core.Constructor, error)
}

// Options configures a Dispatcher.
type Options struct {
	Logger logging.Logger
}

// Dispatcher routes requests to agents.
type Dispatcher struct {
	resolver Resolver
	executor core.Executor
	logger   logging.Logger
}

// New creates a Dispatcher.
func New(resolver Resolver, executor core.Executor, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Dispatcher{
		resolver: resolver,
		executor: executor,
		logger:   opts.Logger,
	}
}

// Dispatch serves req and reports failures as structured errors:
//
//   - core.ErrInvalidRequest when the agent name is empty
//   - *core.AgentNotFoundError when no agent is registered under the name;
//     nothing is constructed or executed
//   - *core.ExecutionError (stage construct or execute) when building or
//     running the agent fails, returns nothing or panics
//
// On success the response mirrors the request's agent name.
func (d *Dispatcher) Dispatch(ctx context.Context, req core.AgentRequest) (core.AgentResponse, error) {
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = core.NewID()
		ctx = WithRequestID(ctx, requestID)
	}

	log := logging.With(d.logger, "request_id", requestID, "agent", req.AgentName)
	start := time.Now()

	log.Debug("dispatch.received")

	if err := req.Validate(); err != nil {
		log.Debug("dispatch.rejected", "error", err.Error())
		return core.AgentResponse{AgentName: req.AgentName}, err
	}

	log.Debug("dispatch.resolving")

	constructor, err := d.resolver.Lookup(req.AgentName)
	if err != nil {
		var nf *core.AgentNotFoundError
		if !errors.As(err, &nf) {
			err = &core.AgentNotFoundError{Name: req.AgentName}
		}
		log.Debug("dispatch.not_found")
		return core.AgentResponse{AgentName: req.AgentName}, err
	}

	log.Debug("dispatch.resolved")
	log.Debug("dispatch.constructing")

	agent, err := construct(constructor, req)
	if err != nil {
		log.Warn("dispatch.failed", "stage", core.StageConstruct, "error", err.Error())
		return core.AgentResponse{AgentName: req.AgentName}, &core.ExecutionError{
			Agent: req.AgentName,
			Stage: core.StageConstruct,
			Err:   err,
		}
	}

	log.Debug("dispatch.executing")

	result, err := execute(ctx, d.executor, agent, req.Query)
	if err != nil {
		log.Warn("dispatch.failed", "stage", core.StageExecute, "error", err.Error())
		return core.AgentResponse{AgentName: req.AgentName}, &core.ExecutionError{
			Agent: req.AgentName,
			Stage: core.StageExecute,
			Err:   err,
		}
	}

	log.Debug("dispatch.completed", "run_id", result.RunID, "duration_ms", time.Since(start).Milliseconds())

	return core.NewAgentResponse(req, result.Output), nil
}

// Handle serves req and always returns one well-formed response. Failures
// are folded into the response text, e.g. "agent foo not found in registry".
func (d *Dispatcher) Handle(ctx context.Context, req core.AgentRequest) core.AgentResponse {
	resp, err := d.Dispatch(ctx, req)
	if err != nil {
		return core.NewAgentResponse(req, err.Error())
	}
	return resp
}

var errNilAgent = errors.New("constructor returned no agent")

func construct(constructor core.Constructor, req core.AgentRequest) (agent core.Agent, err error) {
	defer func() {
		if r := recover(); r != nil {
			agent, err = nil, &core.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	agent, err = constructor(req)
	if err != nil {
		return nil, err
	}
	if isNil(agent) {
		return nil, errNilAgent
	}

	return agent, nil
}

// isNil reports whether agent is nil or an interface holding a nil value.
func isNil(agent core.Agent) bool {
	if agent == nil {
		return true
	}

	switch v := reflect.ValueOf(agent); v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

func execute(ctx context.Context, executor core.Executor, agent core.Agent, query string) (result *core.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &core.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	result, err = executor.Execute(ctx, agent, query)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("executor returned no result")
	}

	return result, nil
}
