package plugin

import (
	"github.com/hashicorp/go-multierror"

	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/registry"
)

// Report summarizes a load pass.
type Report struct {
	// Loaded lists the units that loaded successfully, in load order.
	Loaded []string
	// Registered lists the names committed to the registry, in commit order.
	Registered []registry.Entry
	// Failures lists the units that were skipped.
	Failures []*core.PluginLoadError
}

// Err aggregates all failures, or returns nil when every unit loaded.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, f := range r.Failures {
		result = multierror.Append(result, f)
	}
	return result.ErrorOrNil()
}

// Merge appends other's contents to r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Loaded = append(r.Loaded, other.Loaded...)
	r.Registered = append(r.Registered, other.Registered...)
	r.Failures = append(r.Failures, other.Failures...)
}

func (r *Report) fail(unit string, err error) *core.PluginLoadError {
	le := &core.PluginLoadError{Unit: unit, Err: err}
	r.Failures = append(r.Failures, le)
	return le
}
