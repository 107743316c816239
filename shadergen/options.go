// Package shadergen lowers an IR function (package ir) to shader source
// text for the portable compute/render target described in spec.md §6:
// entry point "main", @group(0)/@binding(N) resource bindings, and
// @compute @workgroup_size(...) compute entry signatures.
//
// The generator's shape — an Options struct, a Writer carrying per-call
// state, and a Compile-style entry point dispatching per expression/
// statement kind — follows naga/glsl and naga/hlsl's backend.go pattern;
// see DESIGN.md for the grounding ledger.
package shadergen

import "github.com/gogpu/shadergraph/ir"

// Stage selects the shader entry-point signature to emit.
type Stage string

const (
	StageCompute  Stage = "compute"
	StageVertex   Stage = "vertex"
	StageFragment Stage = "fragment"
)

// Options configures a single Generate call, matching the option table in
// spec.md §4.3.
type Options struct {
	Stage Stage

	// GlobalBufferBinding is the @binding slot reserved for the storage
	// buffer holding host-visible globals.
	GlobalBufferBinding int

	// InputBinding is the @binding slot for the packed input/uniform
	// buffer.
	InputBinding int

	// VarMap maps a global (non-local) variable id to its scalar offset
	// inside the globals buffer.
	VarMap map[string]int

	// VarTypes gives the declared type of every variable (local and
	// global) referenced by var_get/var_set.
	VarTypes map[string]string

	// NodeTypes gives the type inference package ir already computed for
	// every data-producing node in the target function.
	NodeTypes map[ir.NodeID]string

	// ResourceBindings maps a resource id to its assigned @binding index.
	ResourceBindings map[ir.ResourceID]int

	// SamplerBindings maps a texture resource id to its companion
	// sampler's @binding index.
	SamplerBindings map[ir.ResourceID]int

	// ResourceDefs gives the full declaration of every resource the
	// function may reference, for typed struct emission.
	ResourceDefs map[ir.ResourceID]ir.Resource

	// WorkgroupSize is the compute workgroup size to declare. Defaults to
	// [64,1,1] if zero.
	WorkgroupSize [3]int
}

// DefaultOptions returns sensible Options for a compute-stage function
// with no extra resources bound.
func DefaultOptions() Options {
	return Options{
		Stage:                StageCompute,
		GlobalBufferBinding:  0,
		InputBinding:         1,
		VarMap:               map[string]int{},
		VarTypes:             map[string]string{},
		NodeTypes:            map[ir.NodeID]string{},
		ResourceBindings:     map[ir.ResourceID]int{},
		SamplerBindings:      map[ir.ResourceID]int{},
		ResourceDefs:         map[ir.ResourceID]ir.Resource{},
		WorkgroupSize:        [3]int{64, 1, 1},
	}
}

// InputLayoutEntry describes one write operation in the packed input
// buffer's layout, per spec.md §4.3.
type InputLayoutEntry struct {
	ID   string
	Kind string // "f32", "i32", "u32", "vec", "mat", "struct", "array", or "u_dispatch_size"
	Type string
}

// Metadata is the declared-layout half of a Generate result.
type Metadata struct {
	InputLayout      []InputLayoutEntry
	WorkgroupSize    [3]int
	ResourceBindings map[string]int
}

// Result is the output of Generate.
type Result struct {
	Source   string
	Metadata Metadata
}
