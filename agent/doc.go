// Package agent contains the agent implementations plugins construct per
// request:
//
//  1. FuncAgent wraps a Go function (compiled plugins, tests)
//  2. ModelAgent drives a model.Model through a tool-calling loop
//
// Both embed BaseAgent for identity and satisfy core.Agent. An agent is
// built for one request, run once by a core.Executor and then discarded, so
// implementations keep no cross-request state.
package agent
