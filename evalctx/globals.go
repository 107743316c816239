package evalctx

import (
	"context"
	"fmt"

	"github.com/gogpu/shadergraph/gpuharness"
	"github.com/gogpu/shadergraph/ir"
	"github.com/gogpu/shadergraph/ops"
)

// toPackValue converts an ops.Vec into the shape layout.Pack expects: a
// bare scalar for width-1 vectors (asFloat only accepts plain numeric
// types, never []float64), or a plain []float64 slice otherwise (Pack's
// indexVector type-switches on []float64 itself, which does not match
// the named ops.Vec type).
func toPackValue(v ops.Vec) any {
	if len(v) == 1 {
		return v[0]
	}
	return []float64(v)
}

// Dispatch implements hostjit.Globals, routing a cmd_dispatch node to
// the GPU dispatch harness (package gpuharness, spec.md §4.5). The
// dispatch [3]int aux is taken directly as the harness's invocation
// count rather than an already-resolved workgroup count: the
// Force-GPU transform only ever emits dispatch=[1,1,1] (one invocation
// running the whole scalarized kernel body, per spec.md §4.6), so
// there is no second, workgroup-size-aware meaning to recover here.
func (ctx *Context) Dispatch(goCtx context.Context, fn ir.FunctionID, dispatch [3]int, args map[string]ops.Vec) error {
	if ctx.Harness == nil {
		return fmt.Errorf("evalctx: cmd_dispatch requires a GPU harness, none configured")
	}

	inputs := make(map[string]any, len(args))
	for k, v := range args {
		inputs[k] = toPackValue(v)
	}

	req := gpuharness.RunRequest{
		Doc:             ctx.doc,
		EntryPoint:      fn,
		Inputs:          inputs,
		VarMap:          map[string]int{},
		InvocationCount: dispatch,
	}
	result, err := ctx.Harness.Run(goCtx, req)
	if err != nil {
		return fmt.Errorf("evalctx: dispatching %s: %w", fn, err)
	}

	for id, data := range result.ResourceData {
		ctx.lastDispatch[id] = data
		if state, ok := ctx.Resources[id]; ok {
			state.GPUDirty = true
		}
	}
	return nil
}

// Draw implements hostjit.Globals. Rendering is out of scope: the GPU
// dispatch harness (spec.md §4.5) only describes a compute pass, never
// a vertex/fragment pipeline, so there is nothing for this to route to.
func (ctx *Context) Draw(goCtx context.Context, target ir.ResourceID, vertexFn, fragmentFn ir.FunctionID, count int) error {
	return fmt.Errorf("evalctx: draw is not implemented (no render pipeline in the GPU dispatch harness)")
}

// Resize implements hostjit.Globals by reallocating a resource's
// host-side backing storage in place. The GPU side is not resized:
// gpuharness.Harness keeps reusing whatever handle it already allocated
// for the resource id, at its original size.
func (ctx *Context) Resize(goCtx context.Context, resource ir.ResourceID, size ir.Size2D) error {
	res, ok := ctx.doc.ResourceByID(resource)
	if !ok {
		return fmt.Errorf("evalctx: resize: unknown resource %q", resource)
	}
	state, ok := ctx.Resources[resource]
	if !ok {
		return fmt.Errorf("evalctx: resize: no state for resource %q", resource)
	}
	n := texelChannels(res.Format)
	state.Data = make(ops.Vec, n*size.Width*size.Height)
	return nil
}

// SyncToCPU implements hostjit.Globals: copies the most recent dispatch
// readback for resource into its host-side ResourceState.Data and
// clears GPUDirty, per spec.md §5's "a gpuDirty flag ... cleared on
// successful readback."
func (ctx *Context) SyncToCPU(goCtx context.Context, resource ir.ResourceID) error {
	state, ok := ctx.Resources[resource]
	if !ok {
		return fmt.Errorf("evalctx: sync_to_cpu: unknown resource %q", resource)
	}
	if data, ok := ctx.lastDispatch[resource]; ok {
		state.Data = floatsFromBytes(data)
	}
	state.GPUDirty = false
	return nil
}

// WaitCPUSync implements hostjit.Globals. The harness's dispatch call is
// already synchronous (map_async is awaited before Run returns, per
// spec.md §4.5 step 9), so there is nothing left to wait for here.
func (ctx *Context) WaitCPUSync(goCtx context.Context, resource ir.ResourceID) error {
	return nil
}

// CallOp implements hostjit.Globals for a call_func node naming another
// document function: it compiles and runs that function as a genuine
// nested call, pushing a fresh frame so its locals don't leak into the
// caller's. Built-in ops (color_mix and friends) are special-cased
// inline by package hostjit's own evalCall and never reach here.
func (ctx *Context) CallOp(goCtx context.Context, name string, args []ops.Vec) (ops.Vec, error) {
	fn, ok := ctx.doc.FunctionByID(ir.FunctionID(name))
	if !ok {
		return nil, fmt.Errorf("evalctx: call_func: unknown function %q", name)
	}
	// Bound directly into ctx.Inputs, not the caller's frame: ctx.run
	// below pushes a fresh frame for the callee before its body executes,
	// so a frame-local write here would never be visible to it. Inputs
	// is the one document-level scope getVar consults regardless of
	// which frame is on top.
	for i, port := range fn.Inputs {
		if i < len(args) {
			ctx.Inputs[port.Name] = args[i]
		}
	}
	if err := ctx.run(goCtx, fn.ID); err != nil {
		return nil, err
	}
	return ctx.Result, nil
}

// ResolveVar implements hostjit.Globals. Declared for interface
// completeness only: package hostjit never calls it (variable
// resolution always goes through Variables.Get/Set instead).
func (ctx *Context) ResolveVar(id string) (ops.Vec, bool) {
	return ctx.getVar(id)
}

// ResolveString implements hostjit.Globals. No IR op in this module
// produces an indirect string reference, so this is always a miss.
func (ctx *Context) ResolveString(s string) (string, bool) {
	return "", false
}
