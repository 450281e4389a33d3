package tool

import (
	"fmt"
	"sort"
)

// Catalog indexes tools by name so plugins can refer to them symbolically.
// It is populated at startup and read-only afterwards.
type Catalog map[string]Tool

// NewCatalog builds a catalog from tools; a later tool replaces an earlier
// one with the same name.
func NewCatalog(tools ...Tool) Catalog {
	c := make(Catalog, len(tools))
	for _, t := range tools {
		c[t.Name()] = t
	}
	return c
}

// Resolve returns the tools for names in the given order.
func (c Catalog) Resolve(names ...string) ([]Tool, error) {
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		t, ok := c[name]
		if !ok {
			return nil, NewToolError(name, fmt.Sprintf("tool %q not in catalog", name), CodeNotFound)
		}
		out = append(out, t)
	}
	return out, nil
}

// Names returns the catalog's tool names sorted lexically.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
