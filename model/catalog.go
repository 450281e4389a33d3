package model

import (
	"fmt"
	"sort"
)

// Catalog maps provider names (as referenced by plugins and configuration)
// to Model instances. A Catalog is built once at startup and read-only
// afterwards.
type Catalog map[string]Model

// Get returns the model registered under name.
func (c Catalog) Get(name string) (Model, error) {
	m, ok := c[name]
	if !ok || m == nil {
		return nil, fmt.Errorf("model %q not configured", name)
	}
	return m, nil
}

// Names returns the configured model names sorted lexically.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
