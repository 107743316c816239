// Package forcegpu implements the IR-to-IR rewrite described in
// spec.md §4.6: given a host-intent function, it produces a document
// whose entry point dispatches a GPU kernel built from that function and
// ferries its variable writes and return value back to the host through
// a synthetic capture buffer.
package forcegpu

import (
	"fmt"

	"github.com/gogpu/shadergraph/ir"
)

// CaptureKind distinguishes a captured local variable from the captured
// function return value.
type CaptureKind string

const (
	CaptureVar    CaptureKind = "var"
	CaptureReturn CaptureKind = "return"
)

// Capture describes one slot reserved in the capture buffer, so the
// caller (package evalctx) knows how to write each slot back after
// readback, per spec.md §4.6 step 5.
type Capture struct {
	Kind   CaptureKind
	VarID  string // set only when Kind == CaptureVar
	Offset int
	Type   string
}

// CaptureBufferID is the synthetic buffer resource id the transform
// adds, per the glossary's "Capture buffer" entry.
const CaptureBufferID ir.ResourceID = "b_force_gpu_capture"

// Result is Transform's output: the rewritten document and the capture
// layout needed to interpret its capture buffer.
type Result struct {
	Doc       *ir.Document
	Captures  []Capture
	KernelID  ir.FunctionID
	Trampoline ir.FunctionID
}

// NodeTypes optionally supplies the inferred type of any data-producing
// node (see ir.Inferer.InferAll), used to size a captured return value
// or a var_set whose local isn't declared with an explicit type. Callers
// that already ran validation/inference should pass its result here;
// Transform falls back to "float" (width 1) otherwise.
type NodeTypes map[ir.NodeID]string

// Transform deep-clones doc, renames entryID's function to
// "_gpu_kernel_<entryID>" and flips it to a shader, injects capture
// stores after every var_set and before every func_return, and
// synthesizes a cpu trampoline that dispatches the kernel and syncs
// every resource back to the host, per spec.md §4.6.
func Transform(doc *ir.Document, entryID ir.FunctionID, types NodeTypes) (*Result, error) {
	clone := doc.Clone()

	fnIdx := -1
	for i := range clone.Functions {
		if clone.Functions[i].ID == entryID {
			fnIdx = i
			break
		}
	}
	if fnIdx < 0 {
		return nil, fmt.Errorf("forcegpu: unknown entry function %q", entryID)
	}

	kernelID := ir.FunctionID(fmt.Sprintf("_gpu_kernel_%s", entryID))
	fn := &clone.Functions[fnIdx]
	fn.ID = kernelID
	fn.Kind = ir.FunctionShader

	rw := &rewriter{fn: fn, types: types}
	if err := rw.injectCaptures(); err != nil {
		return nil, err
	}

	clone.Resources = append(clone.Resources, ir.Resource{
		ID:          CaptureBufferID,
		Kind:        ir.ResourceBuffer,
		DataType:    "float",
		Count:       rw.offset,
		Persistence: ir.PersistenceCPUAccess,
	})

	trampolineID := entryID
	trampoline := buildTrampoline(trampolineID, kernelID, clone.Resources)
	clone.Functions = append(clone.Functions, trampoline)
	clone.EntryPoint = trampolineID

	return &Result{
		Doc:        clone,
		Captures:   rw.captures,
		KernelID:   kernelID,
		Trampoline: trampolineID,
	}, nil
}

// buildTrampoline synthesizes a cpu function that dispatches kernelID
// once and then, for every resource in the document, issues a
// cmd_sync_to_cpu/cmd_wait_cpu_sync pair so the capture buffer (and any
// other resource the kernel may have written) is host-readable, per
// spec.md §4.6 step 4.
func buildTrampoline(id, kernelID ir.FunctionID, resources []ir.Resource) ir.Function {
	nodes := []ir.Node{
		{ID: "_dispatch", Op: "cmd_dispatch", Aux: map[string]any{
			"func":     string(kernelID),
			"dispatch": []any{1, 1, 1},
			"args":     map[string]any{},
		}},
	}
	var edges []ir.Edge

	prev := ir.NodeID("_dispatch")
	for i, res := range resources {
		syncID := ir.NodeID(fmt.Sprintf("_sync_%d", i))
		waitID := ir.NodeID(fmt.Sprintf("_wait_%d", i))
		nodes = append(nodes,
			ir.Node{ID: syncID, Op: "cmd_sync_to_cpu", Aux: map[string]any{"resource": string(res.ID)}},
			ir.Node{ID: waitID, Op: "cmd_wait_cpu_sync", Aux: map[string]any{"resource": string(res.ID)}},
		)
		edges = append(edges,
			ir.Edge{From: prev, PortOut: "exec_out", To: syncID, PortIn: "exec_in", Type: ir.EdgeExecution},
			ir.Edge{From: syncID, PortOut: "exec_out", To: waitID, PortIn: "exec_in", Type: ir.EdgeExecution},
		)
		prev = waitID
	}

	return ir.Function{ID: id, Kind: ir.FunctionCPU, Nodes: nodes, Edges: edges}
}

// rewriter carries the in-progress capture layout while injecting
// capture-store chains into fn.
type rewriter struct {
	fn       *ir.Function
	types    NodeTypes
	offset   int
	captures []Capture
	counter  int
}

func (r *rewriter) freshID(prefix string) ir.NodeID {
	r.counter++
	return ir.NodeID(fmt.Sprintf("_%s_%d", prefix, r.counter))
}

// injectCaptures finds every var_set and func_return node (in a stable
// order) and splices a capture-store chain after/before it.
func (r *rewriter) injectCaptures() error {
	// Snapshot node ids up front: the loop body appends new nodes to
	// r.fn.Nodes, and we must not re-visit those.
	targets := make([]ir.NodeID, 0, len(r.fn.Nodes))
	for _, n := range r.fn.Nodes {
		if n.Op == "var_set" || n.Op == "func_return" {
			targets = append(targets, n.ID)
		}
	}

	for _, id := range targets {
		n, ok := r.fn.NodeByID(id)
		if !ok {
			continue
		}
		switch n.Op {
		case "var_set":
			if err := r.injectVarSetCapture(id, n); err != nil {
				return err
			}
		case "func_return":
			if err := r.injectReturnCapture(id, n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *rewriter) varType(varID string, fallbackNode ir.NodeID) string {
	if lv, ok := r.fn.LocalVarByID(varID); ok && lv.Type != "" {
		return lv.Type
	}
	if r.types != nil {
		if t, ok := r.types[fallbackNode]; ok {
			return t
		}
	}
	return "float"
}

func componentWidth(tag string) int {
	switch tag {
	case "float2", "int2":
		return 2
	case "float3", "int3":
		return 3
	case "float4", "int4":
		return 4
	case "float3x3":
		return 9
	case "float4x4":
		return 16
	default:
		return 1
	}
}

// injectVarSetCapture splices, after setID, a var_get of the same
// variable followed by N buffer_store nodes into b_force_gpu_capture
// (scalar) or a vec_get_element+buffer_store pair per component
// (compound), per spec.md §4.6 step 3.
func (r *rewriter) injectVarSetCapture(setID ir.NodeID, setNode *ir.Node) error {
	varID, _ := setNode.Aux["var"].(string)
	valueSrc := setID
	if from, _, ok := r.fn.DataSource(setID, "value"); ok {
		valueSrc = from
	}
	vtype := r.varType(varID, valueSrc)
	width := componentWidth(vtype)
	offset := r.offset
	r.offset += width
	r.captures = append(r.captures, Capture{Kind: CaptureVar, VarID: varID, Offset: offset, Type: vtype})

	getID := r.freshID("capture_get")
	r.fn.Nodes = append(r.fn.Nodes, ir.Node{ID: getID, Op: "var_get", Aux: map[string]any{"var": varID}})

	chainHead, chainTail, err := r.buildStoreChain(getID, width, offset)
	if err != nil {
		return err
	}

	r.spliceAfter(setID, chainHead, chainTail)
	return nil
}

// injectReturnCapture splices, before retID, capture stores for the
// value flowing into its "val" port, then leaves func_return as the
// chain's last node, per spec.md §4.6 step 3.
func (r *rewriter) injectReturnCapture(retID ir.NodeID, retNode *ir.Node) error {
	from, _, ok := r.fn.DataSource(retID, "val")
	if !ok {
		// A void return carries nothing to capture.
		return nil
	}
	vtype := "float"
	if r.types != nil {
		if t, ok := r.types[from]; ok {
			vtype = t
		}
	}
	width := componentWidth(vtype)
	offset := r.offset
	r.offset += width
	r.captures = append(r.captures, Capture{Kind: CaptureReturn, Offset: offset, Type: vtype})

	chainHead, chainTail, err := r.buildStoreChain(from, width, offset)
	if err != nil {
		return err
	}

	r.spliceBefore(retID, chainHead, chainTail)
	return nil
}

// buildStoreChain builds width buffer_store nodes (preceded by
// vec_get_element extractions for width > 1) reading from valueSrc and
// writing to b_force_gpu_capture starting at baseOffset. It returns the
// chain's first and last node ids.
func (r *rewriter) buildStoreChain(valueSrc ir.NodeID, width, baseOffset int) (head, tail ir.NodeID, err error) {
	if width == 1 {
		storeID := r.freshID("capture_store")
		r.fn.Nodes = append(r.fn.Nodes, ir.Node{
			ID: storeID, Op: "buffer_store",
			Aux: map[string]any{"buffer": string(CaptureBufferID), "index": float64(baseOffset)},
		})
		r.fn.Edges = append(r.fn.Edges, ir.Edge{From: valueSrc, PortOut: "result", To: storeID, PortIn: "value", Type: ir.EdgeData})
		return storeID, storeID, nil
	}

	var prev ir.NodeID
	for i := 0; i < width; i++ {
		elemID := r.freshID("capture_elem")
		r.fn.Nodes = append(r.fn.Nodes, ir.Node{ID: elemID, Op: "vec_get_element", Aux: map[string]any{"index": float64(i)}})
		r.fn.Edges = append(r.fn.Edges, ir.Edge{From: valueSrc, PortOut: "result", To: elemID, PortIn: "vec", Type: ir.EdgeData})

		storeID := r.freshID("capture_store")
		r.fn.Nodes = append(r.fn.Nodes, ir.Node{
			ID: storeID, Op: "buffer_store",
			Aux: map[string]any{"buffer": string(CaptureBufferID), "index": float64(baseOffset + i)},
		})
		r.fn.Edges = append(r.fn.Edges, ir.Edge{From: elemID, PortOut: "result", To: storeID, PortIn: "value", Type: ir.EdgeData})

		if i == 0 {
			head = storeID
		} else {
			r.fn.Edges = append(r.fn.Edges, ir.Edge{From: prev, PortOut: "exec_out", To: storeID, PortIn: "exec_in", Type: ir.EdgeExecution})
		}
		prev = storeID
	}
	return head, prev, nil
}

// spliceAfter rewires id's exec_out successor (if any) to instead follow
// chainTail, with chainHead taking id's old position.
func (r *rewriter) spliceAfter(id, chainHead, chainTail ir.NodeID) {
	for i, e := range r.fn.Edges {
		if e.Type == ir.EdgeExecution && e.From == id && e.PortOut == "exec_out" {
			old := e.To
			oldPort := e.PortIn
			r.fn.Edges[i].To = chainHead
			r.fn.Edges[i].PortIn = "exec_in"
			r.fn.Edges = append(r.fn.Edges, ir.Edge{From: chainTail, PortOut: "exec_out", To: old, PortIn: oldPort, Type: ir.EdgeExecution})
			return
		}
	}
	// id had no successor: chain simply extends the graph from id.
	r.fn.Edges = append(r.fn.Edges, ir.Edge{From: id, PortOut: "exec_out", To: chainHead, PortIn: "exec_in", Type: ir.EdgeExecution})
}

// spliceBefore rewires id's predecessor (the node whose exec_out feeds
// id) to instead feed chainHead, with chainTail feeding id.
func (r *rewriter) spliceBefore(id, chainHead, chainTail ir.NodeID) {
	for i, e := range r.fn.Edges {
		if e.Type == ir.EdgeExecution && e.To == id {
			port := e.PortOut
			r.fn.Edges[i].To = chainHead
			r.fn.Edges[i].PortIn = "exec_in"
			r.fn.Edges = append(r.fn.Edges, ir.Edge{From: chainTail, PortOut: port, To: id, PortIn: "exec_in", Type: ir.EdgeExecution})
			return
		}
	}
	// id was an entry root: the chain becomes the new root, feeding id.
	r.fn.Edges = append(r.fn.Edges, ir.Edge{From: chainTail, PortOut: "exec_out", To: id, PortIn: "exec_in", Type: ir.EdgeExecution})
}
