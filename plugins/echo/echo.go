// Package echo provides the "echo" agent, which answers with the query it
// was given.
package echo

import (
	"github.com/hupe1980/useragents/agent"
	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/plugin"
	"github.com/hupe1980/useragents/registry"
)

// Name is both the unit name and the registered agent name.
const Name = "echo"

// New returns the echo plugin.
func New() plugin.Plugin {
	return plugin.NewFunc(Name, func(r registry.Registrar) error {
		return r.Register(Name, Construct)
	})
}

// Construct builds an echo agent for req.
func Construct(req core.AgentRequest) (core.Agent, error) {
	a := agent.NewFuncAgent(req.AgentName, func(_ *core.RunContext, query string) (string, error) {
		return query, nil
	})
	a.SetDescription("Answers with the query")

	return a, nil
}
