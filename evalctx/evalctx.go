// Package evalctx implements the Host API described in spec.md §6:
// createContext/run/execute and the EvaluationContext runtime variables
// (ctx.inputs, ctx.resources, ctx.stack, ctx.result). It is the
// orchestration layer that binds package hostjit (CPU execution),
// package gpuharness (GPU dispatch), and package forcegpu (capture
// readback) behind the three backend operations, the same role
// naga/wgsl's frontend.Run plays in gluing a parsed module to its
// backend per spec.md §4.4's cross-reference to naga's pass pipeline.
package evalctx

import (
	"context"
	"fmt"

	"github.com/gogpu/shadergraph/gpuharness"
	"github.com/gogpu/shadergraph/hostjit"
	"github.com/gogpu/shadergraph/ir"
	"github.com/gogpu/shadergraph/layout"
	"github.com/gogpu/shadergraph/ops"
)

// ResourceState is one resource's host/GPU-side state, per spec.md §5:
// "GPU-side handles attached to a resource state (gpuBuffer, gpuTexture)
// are owned by the harness; the host-side data field is authoritative
// when not dispatched... a gpuDirty flag is set on any resource
// potentially written by a dispatch and cleared on successful readback."
type ResourceState struct {
	Data       ops.Vec
	GPUBuffer  gpuharness.BufferID
	GPUTexture gpuharness.TextureID
	GPUDirty   bool
}

// frame is one function-call scope, per spec.md §6's "ctx.stack (frames
// per function call)". It holds document-level ("global", non-local)
// variable bindings visible while that call is active — the same role
// RunContext.Variables plays for a single hostjit.Program.Run, but
// shared here across the whole call chain a cmd_dispatch/call_func may
// traverse.
type frame struct {
	fn     ir.FunctionID
	locals map[string]ops.Vec
}

// Context is the EvaluationContext: owns inputs, resources, the call
// stack, and the most recent function result, and implements the three
// hostjit facades (Variables, Globals, Builtins) so a compiled
// hostjit.Program can run against it directly.
type Context struct {
	doc       *ir.Document
	Inputs    map[string]ops.Vec
	Resources map[ir.ResourceID]*ResourceState
	Result    ops.Vec

	stack    []*frame
	builtins map[string]ops.Vec

	Harness *gpuharness.Harness // nil disables GPU-backed ops (Dispatch, Draw, Resize)

	// lastDispatch caches the most recent gpuharness.RunResult, keyed by
	// the resource ids it populated, so a following cmd_sync_to_cpu can
	// copy the already-fetched staging data into ResourceState without a
	// second round trip to the device.
	lastDispatch map[ir.ResourceID][]byte
}

// createContext builds a fresh EvaluationContext over doc, per spec.md
// §6's createContext(ir, inputs?, builtins?). inputs and builtins are
// copied by reference (callers should not mutate the maps afterward).
func createContext(doc *ir.Document, inputs map[string]ops.Vec, builtins map[string]ops.Vec) (*Context, error) {
	if inputs == nil {
		inputs = map[string]ops.Vec{}
	}
	if builtins == nil {
		builtins = map[string]ops.Vec{}
	}
	ctx := &Context{
		doc:          doc,
		Inputs:       inputs,
		Resources:    map[ir.ResourceID]*ResourceState{},
		builtins:     builtins,
		lastDispatch: map[ir.ResourceID][]byte{},
	}
	for _, res := range doc.Resources {
		state, err := newResourceState(doc, res)
		if err != nil {
			return nil, fmt.Errorf("evalctx: resource %s: %w", res.ID, err)
		}
		ctx.Resources[res.ID] = state
	}
	return ctx, nil
}

// CreateContext is the exported entry point for createContext.
func CreateContext(doc *ir.Document, inputs map[string]ops.Vec, builtins map[string]ops.Vec) (*Context, error) {
	return createContext(doc, inputs, builtins)
}

func newResourceState(doc *ir.Document, res ir.Resource) (*ResourceState, error) {
	switch res.Kind {
	case ir.ResourceBuffer:
		n, err := layout.ComponentCount(res.DataType, doc)
		if err != nil {
			return nil, err
		}
		return &ResourceState{Data: make(ops.Vec, n*max1(res.Count))}, nil
	case ir.ResourceTexture2D:
		n := texelChannels(res.Format)
		return &ResourceState{Data: make(ops.Vec, n*res.Size.Width*res.Size.Height)}, nil
	default:
		return &ResourceState{}, nil
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// run executes entryPointID's function against ctx, per spec.md §6's
// run(ctx, entryPointId) -> void ("side effects mutate ctx").
func (ctx *Context) run(goCtx context.Context, entryPointID ir.FunctionID) error {
	program, err := hostjit.Compile(ctx.doc, entryPointID)
	if err != nil {
		return fmt.Errorf("evalctx: compiling %s: %w", entryPointID, err)
	}
	if err := ctx.pushFrame(entryPointID); err != nil {
		return err
	}
	defer ctx.popFrame()

	rc := &hostjit.RunContext{
		Variables: ctx,
		Globals:   ctx,
		Builtins:  builtinsFacade{ctx},
		Buffers:   ctx.buildBuffers(),
		Textures:  ctx.buildTextures(),
	}
	result, err := program.Run(goCtx, rc)
	ctx.absorbBuffers(rc.Buffers)
	ctx.absorbTextures(rc.Textures)
	if err != nil {
		return fmt.Errorf("evalctx: running %s: %w", entryPointID, err)
	}
	ctx.Result = result
	return nil
}

// Run is the exported entry point for run.
func (ctx *Context) Run(goCtx context.Context, entryPointID ir.FunctionID) error {
	return ctx.run(goCtx, entryPointID)
}

// execute is createContext followed by run, per spec.md §6's
// execute(ir, entryPointId, inputs?, builtins?) -> ctx.
func execute(goCtx context.Context, doc *ir.Document, entryPointID ir.FunctionID, inputs, builtins map[string]ops.Vec) (*Context, error) {
	ctx, err := createContext(doc, inputs, builtins)
	if err != nil {
		return nil, err
	}
	if err := ctx.run(goCtx, entryPointID); err != nil {
		return nil, err
	}
	return ctx, nil
}

// Execute is the exported entry point for execute.
func Execute(goCtx context.Context, doc *ir.Document, entryPointID ir.FunctionID, inputs, builtins map[string]ops.Vec) (*Context, error) {
	return execute(goCtx, doc, entryPointID, inputs, builtins)
}

// pushFrame opens a new call scope for fnID, per spec.md §6's
// pushFrame(fnId).
func (ctx *Context) pushFrame(fnID ir.FunctionID) error {
	if _, ok := ctx.doc.FunctionByID(fnID); !ok {
		return fmt.Errorf("evalctx: pushFrame: unknown function %q", fnID)
	}
	ctx.stack = append(ctx.stack, &frame{fn: fnID, locals: map[string]ops.Vec{}})
	return nil
}

// popFrame closes the innermost call scope.
func (ctx *Context) popFrame() {
	if len(ctx.stack) == 0 {
		return
	}
	ctx.stack = ctx.stack[:len(ctx.stack)-1]
}

func (ctx *Context) top() *frame {
	if len(ctx.stack) == 0 {
		return nil
	}
	return ctx.stack[len(ctx.stack)-1]
}

// getVar reads a document-level (non-local) variable, per spec.md §6's
// getVar. Local variables are resolved by hostjit itself and never reach
// this facade.
func (ctx *Context) getVar(id string) (ops.Vec, bool) {
	if f := ctx.top(); f != nil {
		if v, ok := f.locals[id]; ok {
			return v, true
		}
	}
	if v, ok := ctx.Inputs[id]; ok {
		return v, true
	}
	return nil, false
}

// setVar writes a document-level variable, per spec.md §6's setVar.
func (ctx *Context) setVar(id string, v ops.Vec) {
	if f := ctx.top(); f != nil {
		f.locals[id] = v
		return
	}
	ctx.Inputs[id] = v
}

// getResource returns the state backing a declared resource, per
// spec.md §6's getResource.
func (ctx *Context) getResource(id ir.ResourceID) (*ResourceState, bool) {
	s, ok := ctx.Resources[id]
	return s, ok
}

// Get implements hostjit.Variables.
func (ctx *Context) Get(id string) (ops.Vec, bool) { return ctx.getVar(id) }

// Set implements hostjit.Variables.
func (ctx *Context) Set(id string, v ops.Vec) { ctx.setVar(id, v) }
