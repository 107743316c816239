// Package hostjit lowers an IR function (package ir) to a host-callable
// closure, evaluating built-in ops through package ops, whose CPU
// semantics follow the formulas package shadergen emits as shader text,
// per spec.md §4.4.
//
// The shape mirrors shadergen.Writer: a Program carries the function,
// per-run state holds the active frame and the returned value (node
// results are recomputed at each use, not cached), and Run walks the
// execution graph as shadergen's Writer.emitExec does, except it computes
// ops.Vec values instead of emitting shader text.
package hostjit

import (
	"context"
	"fmt"

	"github.com/gogpu/shadergraph/ir"
	"github.com/gogpu/shadergraph/ops"
)

// Variables is the host-side facade for variables that are not declared
// as function locals, per spec.md §4.4: "var_set writes the named local
// or, if absent, calls variables.set."
type Variables interface {
	Get(id string) (ops.Vec, bool)
	Set(id string, v ops.Vec)
}

// Globals is the side-effect facade every cmd_*/call_func op routes
// through, per spec.md §4.4.
type Globals interface {
	Dispatch(ctx context.Context, fn ir.FunctionID, dispatch [3]int, args map[string]ops.Vec) error
	Draw(ctx context.Context, target ir.ResourceID, vertexFn, fragmentFn ir.FunctionID, count int) error
	Resize(ctx context.Context, resource ir.ResourceID, size ir.Size2D) error
	SyncToCPU(ctx context.Context, resource ir.ResourceID) error
	WaitCPUSync(ctx context.Context, resource ir.ResourceID) error
	CallOp(ctx context.Context, name string, args []ops.Vec) (ops.Vec, error)
	ResolveVar(id string) (ops.Vec, bool)
	ResolveString(s string) (string, bool)
}

// Builtins supplies CPU-allowed builtin reads (time, delta_time, bpm,
// beat_number, beat_delta). Reading a GPU-only builtin through this
// facade fails per spec.md §4.2/§7.
type Builtins interface {
	Get(name string) (ops.Vec, bool)
}

// RunContext bundles everything a Program.Run call needs: the resources,
// variable facade, globals facade, builtin reads, and the function-local
// buffer registry backing buffer_load/buffer_store.
type RunContext struct {
	Variables Variables
	Globals   Globals
	Builtins  Builtins
	Buffers   map[string]ops.Vec // resource id -> flattened scalar contents
	Textures  map[string][][]ops.Vec
}

// GetBuffer returns the named buffer's backing slice, creating an empty
// one on first access.
func (rc *RunContext) GetBuffer(id string) ops.Vec {
	if rc.Buffers == nil {
		rc.Buffers = map[string]ops.Vec{}
	}
	return rc.Buffers[id]
}

// SetBufferElement writes a scalar into a flat buffer at index, growing
// the backing slice if needed.
func (rc *RunContext) SetBufferElement(id string, index int, value float64) error {
	if index < 0 {
		return fmt.Errorf("hostjit: buffer %q index %d is negative", id, index)
	}
	if rc.Buffers == nil {
		rc.Buffers = map[string]ops.Vec{}
	}
	buf := rc.Buffers[id]
	if index >= len(buf) {
		grown := make(ops.Vec, index+1)
		copy(grown, buf)
		buf = grown
	}
	buf[index] = value
	rc.Buffers[id] = buf
	return nil
}
