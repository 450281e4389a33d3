package core

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest indicates a request violating AgentRequest invariants.
var ErrInvalidRequest = errors.New("invalid agent request")

// ErrRegistrySealed indicates a registration attempted after the load phase.
var ErrRegistrySealed = errors.New("registry sealed")

// ErrInvalidRegistration indicates an empty name or nil constructor.
var ErrInvalidRegistration = errors.New("invalid registration")

// AgentNotFoundError reports a lookup for a name with no registry binding.
type AgentNotFoundError struct {
	Name string
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("agent %s not found in registry", e.Name)
}

// DuplicateNameError is returned by a registry running in strict mode when a
// name is registered twice.
type DuplicateNameError struct {
	Name     string
	Origin   string // unit that attempted the registration
	Existing string // unit that holds the binding
}

func (e *DuplicateNameError) Error() string {
	if e.Existing != "" {
		return fmt.Sprintf("agent %s already registered by %s", e.Name, e.Existing)
	}
	return fmt.Sprintf("agent %s already registered", e.Name)
}

// PluginLoadError reports a single extension unit that failed to load. The
// unit is skipped; loading continues with the remaining units.
type PluginLoadError struct {
	Unit string
	Err  error
}

func (e *PluginLoadError) Error() string {
	return fmt.Sprintf("plugin %s: %v", e.Unit, e.Err)
}

func (e *PluginLoadError) Unwrap() error { return e.Err }

// Execution stages reported by ExecutionError.
const (
	StageConstruct = "construct"
	StageExecute   = "execute"
)

// ExecutionError reports a failure while constructing or executing an agent
// for one request.
type ExecutionError struct {
	Agent string
	Stage string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("agent %s: %s failed: %v", e.Agent, e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panicking agent, constructor or tool.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic recovered: %v", e.Value) }
