package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/tool"
)

// toolExecutor runs one turn's function calls, up to maxParallel at a time,
// and returns exactly one response event per call in call order. Panics in
// tools are recovered and reported as failed calls.
type toolExecutor struct {
	author      string
	tools       map[string]tool.Tool
	maxParallel int
	timeout     time.Duration
}

func (e *toolExecutor) execute(runCtx *core.RunContext, calls []core.FunctionCall) []core.Event {
	n := len(calls)
	if n == 0 {
		return nil
	}

	limit := e.maxParallel
	if limit <= 0 || limit > n {
		limit = n
	}

	events := make([]core.Event, n)
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, fc := range calls {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			result, err := e.call(runCtx, fc)

			runCtx.LogInfo(
				"agent.function.executed",
				"agent", e.author,
				"function", fc.Name,
				"function_call_id", fc.ID,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err != nil,
			)

			events[i] = core.NewFunctionResponseEvent(runCtx.RunID, e.author, fc.ID, fc.Name, result, err)
		}(i, fc)
	}

	wg.Wait()

	return events
}

func (e *toolExecutor) call(runCtx *core.RunContext, fc core.FunctionCall) (result any, err error) {
	impl, ok := e.tools[fc.Name]
	if !ok {
		return nil, tool.NewToolError(fc.Name, fmt.Sprintf("tool %s not found", fc.Name), tool.CodeNotFound)
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, tool.NewToolError(fc.Name, fmt.Sprintf("failed to unmarshal args: %v", err), tool.CodeValidation)
		}
	}

	toolRunCtx := runCtx
	if e.timeout > 0 {
		ctx, cancel := context.WithTimeout(runCtx.Context, e.timeout)
		defer cancel()
		toolRunCtx = runCtx.WithContext(ctx)
	}

	defer func() {
		if r := recover(); r != nil {
			runCtx.LogError("agent.function.panic", "agent", e.author, "function", fc.Name, "recover", r)
			err = &core.PanicError{Value: r, Stack: debug.Stack()}
			result = nil
		}
	}()

	return impl.Call(core.NewToolContext(toolRunCtx, fc.ID), args)
}
