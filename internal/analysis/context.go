// Package analysis defines the detection-module contract: the per-tick shared
// context modules write into, the read-only parameters a scan receives, and
// the registry that fixes module execution order by declared dependency.
package analysis

import "sort"

// ModuleResult is one module's verdict for one token and tick.
type ModuleResult struct {
	Detected bool
	Metadata map[string]any
}

// Context is the per-token, per-tick scratch space shared along a module
// chain. It is exclusively owned by that chain: modules run sequentially in
// dependency order, each writing its own entry and reading only entries of
// modules it declared a dependency on.
type Context struct {
	results map[string]ModuleResult
}

// NewContext creates an empty analysis context.
func NewContext() *Context {
	return &Context{results: make(map[string]ModuleResult)}
}

// Put records a module's result under its key.
func (c *Context) Put(key string, r ModuleResult) {
	c.results[key] = r
}

// Get returns the result written by the module with the given key this tick.
func (c *Context) Get(key string) (ModuleResult, bool) {
	r, ok := c.results[key]
	return r, ok
}

// Keys returns the module keys present in the context, sorted.
func (c *Context) Keys() []string {
	keys := make([]string, 0, len(c.results))
	for k := range c.results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Detected reports whether the module with the given key fired this tick.
// An absent entry counts as not detected.
func (c *Context) Detected(key string) bool {
	return c.results[key].Detected
}

// Changed reports whether any module's detected flag differs from prev.
// A nil prev counts as changed when any entry exists.
func (c *Context) Changed(prev *Context) bool {
	if prev == nil {
		return len(c.results) > 0
	}
	if len(c.results) != len(prev.results) {
		return true
	}
	for k, r := range c.results {
		if prev.results[k].Detected != r.Detected {
			return true
		}
	}
	return false
}
