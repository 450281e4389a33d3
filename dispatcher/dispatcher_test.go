package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/useragents/agent"
	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/registry"
	"github.com/hupe1980/useragents/runner"
)

type mockExecutor struct{ mock.Mock }

func (m *mockExecutor) Execute(ctx context.Context, a core.Agent, query string) (*core.Result, error) {
	args := m.Called(ctx, a, query)
	res, _ := args.Get(0).(*core.Result)
	return res, args.Error(1)
}

func echoConstructor(req core.AgentRequest) (core.Agent, error) {
	return agent.NewFuncAgent(req.AgentName, func(_ *core.RunContext, q string) (string, error) {
		return q, nil
	}), nil
}

func newEchoDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register("echo", echoConstructor))
	reg.Seal()
	return New(reg, runner.New())
}

func TestDispatch_EndToEndEcho(t *testing.T) {
	d := newEchoDispatcher(t)

	resp, err := d.Dispatch(context.Background(), core.AgentRequest{AgentName: "echo", Instructions: "", Query: "hello"})
	require.NoError(t, err)
	assert.Equal(t, core.AgentResponse{AgentName: "echo", Response: "hello"}, resp)
}

func TestHandle_EndToEndMiss(t *testing.T) {
	exec := &mockExecutor{}
	d := New(registry.New(), exec)

	resp := d.Handle(context.Background(), core.AgentRequest{AgentName: "missing", Query: "x"})
	assert.Equal(t, "missing", resp.AgentName)
	assert.Equal(t, "agent missing not found in registry", resp.Response)

	exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_NotFoundConstructsNothing(t *testing.T) {
	var constructed atomic.Int32
	reg := registry.New()
	require.NoError(t, reg.Register("other", func(req core.AgentRequest) (core.Agent, error) {
		constructed.Add(1)
		return echoConstructor(req)
	}))

	exec := &mockExecutor{}
	_, err := New(reg, exec).Dispatch(context.Background(), core.AgentRequest{AgentName: "missing"})

	var nf *core.AgentNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.Name)
	assert.Zero(t, constructed.Load())
	exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_InvalidRequest(t *testing.T) {
	d := newEchoDispatcher(t)

	_, err := d.Dispatch(context.Background(), core.AgentRequest{Query: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)

	resp := d.Handle(context.Background(), core.AgentRequest{Query: "x"})
	assert.Equal(t, "", resp.AgentName)
	assert.NotEmpty(t, resp.Response)
}

func TestDispatch_ConstructFailures(t *testing.T) {
	boom := errors.New("no credentials")

	tests := []struct {
		name        string
		constructor core.Constructor
	}{
		{name: "error", constructor: func(core.AgentRequest) (core.Agent, error) { return nil, boom }},
		{name: "nil agent", constructor: func(core.AgentRequest) (core.Agent, error) { return nil, nil }},
		{name: "typed nil agent", constructor: func(core.AgentRequest) (core.Agent, error) { return (*agent.FuncAgent)(nil), nil }},
		{name: "panic", constructor: func(core.AgentRequest) (core.Agent, error) { panic("bad constructor") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New()
			require.NoError(t, reg.Register("broken", tt.constructor))

			exec := &mockExecutor{}
			d := New(reg, exec)

			_, err := d.Dispatch(context.Background(), core.AgentRequest{AgentName: "broken"})

			var ee *core.ExecutionError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, core.StageConstruct, ee.Stage)
			assert.Equal(t, "broken", ee.Agent)
			exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)

			resp := d.Handle(context.Background(), core.AgentRequest{AgentName: "broken"})
			assert.Equal(t, "broken", resp.AgentName)
			assert.Contains(t, resp.Response, "construct failed")
		})
	}
}

func TestDispatch_ExecuteFailures(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("echo", echoConstructor))

	boom := errors.New("model unavailable")
	exec := &mockExecutor{}
	exec.On("Execute", mock.Anything, mock.Anything, "fail").Return(nil, boom)
	exec.On("Execute", mock.Anything, mock.Anything, "empty").Return(nil, nil)

	d := New(reg, exec)

	_, err := d.Dispatch(context.Background(), core.AgentRequest{AgentName: "echo", Query: "fail"})
	var ee *core.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, core.StageExecute, ee.Stage)
	assert.ErrorIs(t, err, boom)

	_, err = d.Dispatch(context.Background(), core.AgentRequest{AgentName: "echo", Query: "empty"})
	assert.Error(t, err)

	exec.AssertExpectations(t)
}

func TestDispatch_AgentPanicIsIsolated(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("panic", func(core.AgentRequest) (core.Agent, error) {
		return agent.NewFuncAgent("panic", func(*core.RunContext, string) (string, error) { panic("agent bug") }), nil
	}))
	require.NoError(t, reg.Register("echo", echoConstructor))

	d := New(reg, runner.New())

	_, err := d.Dispatch(context.Background(), core.AgentRequest{AgentName: "panic"})
	var perr *core.PanicError
	require.True(t, errors.As(err, &perr))

	resp, err := d.Dispatch(context.Background(), core.AgentRequest{AgentName: "echo", Query: "still alive"})
	require.NoError(t, err)
	assert.Equal(t, "still alive", resp.Response)
}

func TestDispatch_ExecutorPanicRecovered(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("echo", echoConstructor))

	exec := core.ExecutorFunc(func(context.Context, core.Agent, string) (*core.Result, error) {
		panic("executor bug")
	})

	_, err := New(reg, exec).Dispatch(context.Background(), core.AgentRequest{AgentName: "echo"})
	var perr *core.PanicError
	assert.True(t, errors.As(err, &perr))
}

func TestDispatch_RequestIDPropagates(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("echo", echoConstructor))

	var seen string
	exec := core.ExecutorFunc(func(ctx context.Context, _ core.Agent, q string) (*core.Result, error) {
		seen = RequestIDFromContext(ctx)
		return &core.Result{Output: q}, nil
	})
	d := New(reg, exec)

	_, err := d.Dispatch(WithRequestID(context.Background(), "req-42"), core.AgentRequest{AgentName: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "req-42", seen)

	_, err = d.Dispatch(context.Background(), core.AgentRequest{AgentName: "echo"})
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "req-42", seen)
}

func TestDispatch_ConcurrentRequestsAreIndependent(t *testing.T) {
	reg := registry.New()
	for _, name := range []string{"alpha", "beta", "gamma"} {
		name := name
		require.NoError(t, reg.Register(name, func(req core.AgentRequest) (core.Agent, error) {
			return agent.NewFuncAgent(name, func(_ *core.RunContext, q string) (string, error) {
				return name + ":" + q, nil
			}), nil
		}))
	}
	reg.Seal()

	d := New(reg, runner.New())

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := []string{"alpha", "beta", "gamma"}[i%3]
			q := fmt.Sprintf("q%d", i)

			resp := d.Handle(context.Background(), core.AgentRequest{AgentName: name, Query: q})
			assert.Equal(t, name, resp.AgentName)
			assert.Equal(t, name+":"+q, resp.Response)
		}(i)
	}
	wg.Wait()
}
