package hostjit

import (
	"context"
	"fmt"

	"github.com/gogpu/shadergraph/ir"
	"github.com/gogpu/shadergraph/ops"
)

// Program is a compiled, runnable unit produced by Compile, mirroring
// shadergen.Writer's shape but evaluating instead of emitting text.
type Program struct {
	doc       *ir.Document
	fn        *ir.Function
	nodeTypes map[ir.NodeID]string
}

// Compile lowers fnID within doc into a runnable Program. Unlike
// shadergen.Generate, no binding/layout options are required: a host run
// resolves buffers, textures and variables dynamically through RunContext.
func Compile(doc *ir.Document, fnID ir.FunctionID) (*Program, error) {
	return CompileTyped(doc, fnID, nil)
}

// CompileTyped is Compile with a precomputed node-id -> type-tag map (see
// ir.Inferer.InferAll), needed only to resolve struct_extract's source
// struct type when the source isn't itself a struct_construct node.
func CompileTyped(doc *ir.Document, fnID ir.FunctionID, nodeTypes map[ir.NodeID]string) (*Program, error) {
	fn, ok := doc.FunctionByID(fnID)
	if !ok {
		return nil, fmt.Errorf("hostjit: unknown function %q", fnID)
	}
	return &Program{doc: doc, fn: fn, nodeTypes: nodeTypes}, nil
}

// frame holds one call's local-variable bindings, per spec.md §6's
// ctx.stack ("frames per function call").
type frame struct {
	locals map[string]ops.Vec
}

func newFrame(fn *ir.Function) (*frame, error) {
	f := &frame{locals: make(map[string]ops.Vec, len(fn.LocalVars))}
	for _, lv := range fn.LocalVars {
		v, err := literalVec(lv.Value, lv.Type)
		if err != nil {
			return nil, fmt.Errorf("hostjit: local %q: %w", lv.ID, err)
		}
		f.locals[lv.ID] = v
	}
	return f, nil
}

// run is the per-call interpreter state: the active frame and the
// RunContext facades. Unlike shadergen's Writer, run does not memoize
// node results across statements: memoization is purely a text-size
// concern for the generated shader, and CSE-style caching is an explicit
// spec non-goal, so the interpreter simply recomputes each data
// dependency wherever it's referenced. This also sidesteps a correctness
// trap a persistent cache would introduce: a var_get or loop_index node
// re-entered on a later loop iteration must re-read the then-current
// value, not a value memoized from the first iteration.
type run struct {
	p     *Program
	rc    *RunContext
	frame *frame

	loopIndex int
	result    ops.Vec
	returned  bool
}

// Run executes the program's execution graph from each entry root in
// order, per spec.md §4.3/§4.4's traversal algorithm, and returns the
// value passed to func_return (if any). The call blocks for the duration
// of any GPU work it triggers through rc.Globals — the host JIT's
// asynchronous-procedure contract (spec.md §4.4) maps onto a plain
// blocking call under Go's single-goroutine cooperative model rather than
// an explicit async type, since nothing else runs concurrently with it.
func (p *Program) Run(ctx context.Context, rc *RunContext) (ops.Vec, error) {
	fr, err := newFrame(p.fn)
	if err != nil {
		return nil, err
	}
	r := &run{p: p, rc: rc, frame: fr}

	for _, root := range p.fn.ExecEntryNodes() {
		if r.returned {
			break
		}
		if err := r.exec(ctx, root); err != nil {
			return nil, err
		}
	}
	return r.result, nil
}
