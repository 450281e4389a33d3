package agent

import (
	"errors"

	"github.com/hupe1980/useragents/core"
)

// HandlerFunc computes an agent's reply for a query.
type HandlerFunc func(runCtx *core.RunContext, query string) (string, error)

// FuncAgent runs a Go function and emits its result as the final message.
type FuncAgent struct {
	BaseAgent
	fn HandlerFunc
}

// NewFuncAgent wraps fn as an agent named name.
func NewFuncAgent(name string, fn HandlerFunc) *FuncAgent {
	return &FuncAgent{BaseAgent: NewBaseAgent(name), fn: fn}
}

// Run implements core.Agent.
func (a *FuncAgent) Run(runCtx *core.RunContext) error {
	if a.fn == nil {
		return errors.New("agent has no handler")
	}

	out, err := a.fn(runCtx, runCtx.Query())
	if err != nil {
		return err
	}

	return runCtx.EmitMessage(out)
}
