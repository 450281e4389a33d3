// Package core provides the domain types shared by every layer of useragents:
//
//   - AgentRequest / AgentResponse (the wire-level request and answer shapes)
//   - Agent and Constructor (the request-scoped handler and the capability
//     that builds it from a request)
//   - Executor (the opaque, possibly suspending execution capability)
//   - Events, Content and Parts emitted by agents while they run
//   - RunContext / ToolContext (scoped execution state for agents and tools)
//   - The typed errors surfaced by loading and dispatching
//
// Implementation concerns (plugin loading, dispatching, model providers,
// transport) live in their own packages and depend on core, never the
// other way round.
package core
