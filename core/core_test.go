package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (l testLogger) Debug(string, ...any) {}
func (l testLogger) Info(string, ...any)  {}
func (l testLogger) Warn(string, ...any)  {}
func (l testLogger) Error(string, ...any) {}

func newRunContextForTest() (*RunContext, chan Event) {
	emitCh := make(chan Event, 8)
	rc := NewRunContext(
		context.Background(),
		"run-1",
		AgentInfo{Name: "echo", Type: "func"},
		NewTextContent(RoleUser, "hello"),
		2,
		emitCh,
		testLogger{},
	)
	return rc, emitCh
}

func TestAgentRequest_Validate(t *testing.T) {
	if err := (AgentRequest{AgentName: "echo"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := (AgentRequest{Query: "hello"}).Validate()
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestNewAgentResponse_MirrorsAgentName(t *testing.T) {
	resp := NewAgentResponse(AgentRequest{AgentName: "echo", Query: "q"}, "out")
	if resp.AgentName != "echo" || resp.Response != "out" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("boom")

	execErr := error(&ExecutionError{Agent: "a", Stage: StageExecute, Err: cause})
	if !errors.Is(execErr, cause) {
		t.Fatal("ExecutionError should unwrap to its cause")
	}
	if execErr.Error() != "agent a: execute failed: boom" {
		t.Fatalf("unexpected message: %s", execErr.Error())
	}

	loadErr := error(&PluginLoadError{Unit: "bad.lua", Err: cause})
	if !errors.Is(loadErr, cause) {
		t.Fatal("PluginLoadError should unwrap to its cause")
	}

	var nf *AgentNotFoundError
	if !errors.As(error(&AgentNotFoundError{Name: "missing"}), &nf) || nf.Name != "missing" {
		t.Fatal("AgentNotFoundError should be matchable with errors.As")
	}
	if nf.Error() != "agent missing not found in registry" {
		t.Fatalf("unexpected message: %s", nf.Error())
	}
}

func TestModelLimiter(t *testing.T) {
	ml := NewModelLimiter(2)
	require.NoError(t, ml.Increment())
	require.NoError(t, ml.Increment())
	assert.Equal(t, 0, ml.Remaining())

	err := ml.Increment()
	var le *ModelCallLimitError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 2, le.Max)
	assert.Equal(t, 2, ml.Count())

	assert.Equal(t, -1, NewModelLimiter(0).Remaining())
}

func TestModelLimiter_Concurrent(t *testing.T) {
	ml := NewModelLimiter(50)

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ml.Increment() == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 50, accepted.Load())
	assert.Equal(t, 50, ml.Count())
}
