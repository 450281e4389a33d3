package plugin

import "github.com/hupe1980/useragents/registry"

// Plugin is a compiled extension unit.
type Plugin interface {
	// Name identifies the unit in logs and load reports.
	Name() string
	// Register adds the unit's agents. Registrations are applied only if
	// Register returns nil.
	Register(r registry.Registrar) error
}

// Func adapts a function to Plugin.
type Func struct {
	name string
	fn   func(r registry.Registrar) error
}

// NewFunc returns a Plugin named name that registers through fn.
func NewFunc(name string, fn func(r registry.Registrar) error) *Func {
	return &Func{name: name, fn: fn}
}

// Name implements Plugin.
func (f *Func) Name() string { return f.name }

// Register implements Plugin.
func (f *Func) Register(r registry.Registrar) error { return f.fn(r) }
