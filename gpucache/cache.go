// Package gpucache implements the shader/pipeline cache and the
// process-wide GPU device singleton described in spec.md §4.7 and §9
// ("Global state"). It is the only package in this module that holds
// mutable process-wide state — everything else is either a pure
// function over an IR document or scoped to a caller-owned context.
package gpucache

import "sync"

// CompiledModule is a successfully compiled shader module plus whatever
// pipeline was built from it. The harness (component E) populates
// Pipeline; gpucache itself only cares about keying and lifetime.
type CompiledModule struct {
	Source   string
	Pipeline any // the harness's pipeline handle; opaque to this package
}

// ModuleCache deduplicates compiled shader modules and pipelines keyed
// on the exact generated source string, per spec.md §4.7 ("Keyed on the
// exact generated source string"). Entries are retained until Reset is
// called (modeling "until device loss", spec.md §3's ownership summary).
type ModuleCache struct {
	mu      sync.Mutex
	modules map[string]*CompiledModule
}

// NewModuleCache returns an empty cache.
func NewModuleCache() *ModuleCache {
	return &ModuleCache{modules: map[string]*CompiledModule{}}
}

// Get returns the cached module for source, if any.
func (c *ModuleCache) Get(source string) (*CompiledModule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.modules[source]
	return m, ok
}

// Put records a compiled module under its exact source string.
func (c *ModuleCache) Put(source string, pipeline any) *CompiledModule {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := &CompiledModule{Source: source, Pipeline: pipeline}
	c.modules[source] = m
	return m
}

// Reset drops every cached module. Called on device loss (spec.md §5:
// "the cached device is dropped, subsequent work re-acquires") and
// between test suites (spec.md §9: "tests reset between suites to
// survive device-lost").
func (c *ModuleCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules = map[string]*CompiledModule{}
}

// Len reports the number of cached modules, for diagnostics/tests.
func (c *ModuleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.modules)
}
