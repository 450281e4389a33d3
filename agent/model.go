package agent

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/model"
	"github.com/hupe1980/useragents/tool"
)

// ErrNoFinalAnswer is returned when the model stops without text or tool calls.
var ErrNoFinalAnswer = errors.New("model produced no answer")

// ModelAgentOptions configures a ModelAgent instance.
type ModelAgentOptions struct {
	Instruction     Instruction
	Description     string
	Tools           []tool.Tool
	EnableStreaming bool
	// MaxParallelTools bounds concurrent tool calls within one turn; 0 = no bound.
	MaxParallelTools int
	// ToolTimeout bounds a single tool call; 0 = no bound beyond the run.
	ToolTimeout time.Duration
}

// ModelAgent answers a query by calling a language model, executing any tool
// calls it requests and feeding the results back until the model produces a
// final answer. Every model call is charged against the run's ModelLimiter,
// which bounds the loop.
type ModelAgent struct {
	BaseAgent
	llm         model.Model
	instruction Instruction
	tools       map[string]tool.Tool
	streaming   bool
	executor    *toolExecutor
}

// NewModelAgent creates a model-backed agent.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction: NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		ToolTimeout: 15 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	tools := make(map[string]tool.Tool, len(opts.Tools))
	for _, t := range opts.Tools {
		tools[t.Name()] = t
	}

	a := &ModelAgent{
		BaseAgent:   NewBaseAgent(name),
		llm:         llm,
		instruction: opts.Instruction,
		tools:       tools,
		streaming:   opts.EnableStreaming,
		executor: &toolExecutor{
			author:      name,
			tools:       tools,
			maxParallel: opts.MaxParallelTools,
			timeout:     opts.ToolTimeout,
		},
	}
	a.SetDescription(opts.Description)

	return a
}

// Model returns the underlying model.
func (a *ModelAgent) Model() model.Model { return a.llm }

// ToolNames returns the names of the agent's tools sorted lexically.
func (a *ModelAgent) ToolNames() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run implements core.Agent.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	if a.llm == nil {
		return errors.New("model agent has no model")
	}

	instructions, err := a.instruction.Resolve(runCtx)
	if err != nil {
		return fmt.Errorf("resolve instructions: %w", err)
	}

	defs := a.toolDefinitions()
	history := []core.Content{runCtx.UserContent}

	runCtx.LogDebug("agent.run.start", "agent", a.Name(), "run", runCtx.RunID, "tools", len(defs))

	for {
		if err := runCtx.Limiter.Increment(); err != nil {
			return err
		}

		resp, err := a.generate(runCtx, model.Request{
			Instructions: instructions,
			Contents:     history,
			Tools:        defs,
			Stream:       a.streaming,
		})
		if err != nil {
			return err
		}

		content := resp.Content
		content.Role = core.RoleAssistant
		history = append(history, content)

		ev := core.NewFunctionCallEvent(runCtx.RunID, a.Name(), content)
		if err := runCtx.EmitEvent(ev); err != nil {
			return err
		}

		calls := ev.GetFunctionCalls()
		if len(calls) == 0 {
			if content.Text() == "" {
				return ErrNoFinalAnswer
			}
			runCtx.LogDebug("agent.run.complete", "agent", a.Name(), "model_calls", runCtx.Limiter.Count())
			return nil
		}

		for _, respEv := range a.executor.execute(runCtx, calls) {
			if err := runCtx.EmitEvent(respEv); err != nil {
				return err
			}
			history = append(history, *respEv.Content)
		}
	}
}

// generate performs one model call, forwarding partial chunks as partial
// events when streaming is enabled.
func (a *ModelAgent) generate(runCtx *core.RunContext, req model.Request) (model.Response, error) {
	if !a.streaming {
		return model.GenerateFinal(runCtx.Context, a.llm, req)
	}

	respCh, errCh := a.llm.Generate(runCtx.Context, req)

	var (
		final model.Response
		got   bool
	)

	for respCh != nil || errCh != nil {
		select {
		case <-runCtx.Done():
			return model.Response{}, runCtx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !r.Partial {
				final, got = r, true
				continue
			}
			ev := core.NewEvent(runCtx.RunID, a.Name())
			content := r.Content
			ev.Content = &content
			ev.Partial = true
			if err := runCtx.EmitEvent(ev); err != nil {
				return model.Response{}, err
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return model.Response{}, err
			}
		}
	}

	if !got {
		return model.Response{}, model.ErrNoResponse
	}

	return final, nil
}

func (a *ModelAgent) toolDefinitions() []model.ToolDefinition {
	if len(a.tools) == 0 {
		return nil
	}

	defs := make([]model.ToolDefinition, 0, len(a.tools))
	for _, name := range a.ToolNames() {
		t := a.tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return defs
}
