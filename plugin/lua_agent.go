package plugin

import (
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/hupe1980/useragents/agent"
	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/model"
	"github.com/hupe1980/useragents/tool"
)

// LuaAgent runs a Lua handler function returned by a script constructor. It
// owns the state the constructor ran in and returns it to the unit's pool
// after its single run.
type LuaAgent struct {
	unit    *luaUnit
	name    string
	handler *lua.LFunction
	req     core.AgentRequest

	mu    sync.Mutex
	state *luaState
}

// Name implements core.Agent.
func (a *LuaAgent) Name() string { return a.name }

// Run implements core.Agent. The run's context is attached to the Lua state
// for the duration of the call so cancellation stops the script.
func (a *LuaAgent) Run(runCtx *core.RunContext) error {
	a.mu.Lock()
	st := a.state
	a.state = nil
	a.mu.Unlock()

	if st == nil {
		return fmt.Errorf("agent %s has already run", a.name)
	}

	out, err := a.call(runCtx, st)
	a.unit.release(st, err == nil)
	if err != nil {
		return err
	}

	return runCtx.EmitMessage(out)
}

func (a *LuaAgent) call(runCtx *core.RunContext, st *luaState) (string, error) {
	ctx, done := a.unit.track(runCtx.Context, 0)
	defer done()

	L := st.L
	L.SetContext(ctx)
	defer L.RemoveContext()

	err := L.CallByParam(
		lua.P{Fn: a.handler, NRet: 2, Protect: true},
		lua.LString(runCtx.Query()),
		requestTable(L, a.req),
	)
	if err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("plugin %s is closed", a.unit.name)
		}
		return "", err
	}

	text, errVal := L.Get(-2), L.Get(-1)
	L.Pop(2)

	if errVal != lua.LNil && errVal != lua.LFalse {
		return "", errors.New(errVal.String())
	}
	if text == lua.LNil {
		return "", nil
	}

	return text.String(), nil
}

// agentSpec is the table form of a script constructor result.
type agentSpec struct {
	model        string
	instructions string
	description  string
	tools        []string
}

func parseAgentSpec(t *lua.LTable) (*agentSpec, error) {
	spec := &agentSpec{}

	var err error
	if spec.model, err = stringField(t, "model"); err != nil {
		return nil, err
	}
	if spec.model == "" {
		return nil, errors.New("agent table requires a model")
	}
	if spec.instructions, err = stringField(t, "instructions"); err != nil {
		return nil, err
	}
	if spec.description, err = stringField(t, "description"); err != nil {
		return nil, err
	}

	switch tools := t.RawGetString("tools").(type) {
	case *lua.LNilType:
	case *lua.LTable:
		for i := 1; i <= tools.Len(); i++ {
			name, ok := tools.RawGetInt(i).(lua.LString)
			if !ok {
				return nil, fmt.Errorf("tools[%d] must be a string", i)
			}
			spec.tools = append(spec.tools, string(name))
		}
	default:
		return nil, fmt.Errorf("tools must be a list, got %s", tools.Type())
	}

	return spec, nil
}

// build creates a ModelAgent. Script instructions are rendered as a template
// per run; without them the request's instructions are used verbatim.
func (s *agentSpec) build(req core.AgentRequest, models model.Catalog, tools tool.Catalog) (core.Agent, error) {
	llm, err := models.Get(s.model)
	if err != nil {
		return nil, err
	}

	resolved, err := tools.Resolve(s.tools...)
	if err != nil {
		return nil, err
	}

	instruction := agent.NewInstructionFromText(req.Instructions)
	if s.instructions != "" {
		instruction = agent.NewInstructionFromTemplate(s.instructions)
	}

	return agent.NewModelAgent(req.AgentName, llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = instruction
		o.Description = s.description
		o.Tools = resolved
	}), nil
}

func stringField(t *lua.LTable, key string) (string, error) {
	switch v := t.RawGetString(key).(type) {
	case *lua.LNilType:
		return "", nil
	case lua.LString:
		return string(v), nil
	default:
		return "", fmt.Errorf("%s must be a string, got %s", key, v.Type())
	}
}
