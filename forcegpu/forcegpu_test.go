package forcegpu

import (
	"testing"

	"github.com/gogpu/shadergraph/ir"
)

// buildCPUFunc mirrors spec.md scenario S5: a cpu function that sets a
// local to a literal vector and returns it.
func buildCPUFunc() ir.Document {
	fn := ir.Function{
		ID:        "main",
		Kind:      ir.FunctionCPU,
		LocalVars: []ir.LocalVar{{ID: "res", Type: "float3"}},
		Nodes: []ir.Node{
			{ID: "lit", Op: "literal", Aux: map[string]any{"value": []any{10.0, 20.0, 30.0}, "type": "float3"}},
			{ID: "set1", Op: "var_set", Aux: map[string]any{"var": "res"}},
			{ID: "getRes", Op: "var_get", Aux: map[string]any{"var": "res"}},
			{ID: "ret", Op: "func_return", Aux: map[string]any{}},
		},
		Edges: []ir.Edge{
			{From: "lit", PortOut: "result", To: "set1", PortIn: "value", Type: ir.EdgeData},
			{From: "set1", PortOut: "exec_out", To: "ret", PortIn: "exec_in", Type: ir.EdgeExecution},
			{From: "getRes", PortOut: "result", To: "ret", PortIn: "val", Type: ir.EdgeData},
		},
	}
	return ir.Document{Functions: []ir.Function{fn}, EntryPoint: "main"}
}

// TestTransformRenamesAndFlipsKernel covers spec.md §4.6 step 1.
func TestTransformRenamesAndFlipsKernel(t *testing.T) {
	doc := buildCPUFunc()
	result, err := Transform(&doc, "main", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.KernelID != "_gpu_kernel_main" {
		t.Errorf("KernelID = %q, want _gpu_kernel_main", result.KernelID)
	}
	kernel, ok := result.Doc.FunctionByID(result.KernelID)
	if !ok {
		t.Fatal("renamed kernel function not found")
	}
	if kernel.Kind != ir.FunctionShader {
		t.Errorf("kernel.Kind = %q, want shader", kernel.Kind)
	}

	// The original function id must no longer resolve to the host logic
	// (it is now the trampoline).
	if _, ok := result.Doc.FunctionByID("main"); !ok {
		t.Fatal("expected a trampoline still registered under the original id")
	}
	if result.Doc.EntryPoint != "main" {
		t.Errorf("EntryPoint = %q, want main (the trampoline)", result.Doc.EntryPoint)
	}
}

// TestTransformCapturesVarSetAndReturn covers spec.md §4.6 step 3: both
// the var_set and the func_return value should be captured.
func TestTransformCapturesVarSetAndReturn(t *testing.T) {
	doc := buildCPUFunc()
	types := NodeTypes{"getRes": "float3"}
	result, err := Transform(&doc, "main", types)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Captures) != 2 {
		t.Fatalf("len(Captures) = %d, want 2", len(result.Captures))
	}
	varCap, retCap := result.Captures[0], result.Captures[1]
	if varCap.Kind != CaptureVar || varCap.VarID != "res" || varCap.Offset != 0 {
		t.Errorf("Captures[0] = %+v, want var capture of res at offset 0", varCap)
	}
	if retCap.Kind != CaptureReturn || retCap.Offset != 3 {
		t.Errorf("Captures[1] = %+v, want return capture at offset 3", retCap)
	}

	buf, ok := result.Doc.ResourceByID(CaptureBufferID)
	if !ok {
		t.Fatal("capture buffer resource not declared")
	}
	if buf.Count != 6 {
		t.Errorf("capture buffer Count = %d, want 6 (3 for var_set + 3 for return)", buf.Count)
	}
	if buf.Persistence != ir.PersistenceCPUAccess {
		t.Errorf("capture buffer Persistence = %q, want cpu-access", buf.Persistence)
	}
}

// TestTransformPreservesReturnAsLastNode covers spec.md §4.6 step 3's
// requirement that func_return remains the chain's terminal node after
// capture-store injection.
func TestTransformPreservesReturnAsLastNode(t *testing.T) {
	doc := buildCPUFunc()
	result, err := Transform(&doc, "main", nil)
	if err != nil {
		t.Fatal(err)
	}
	kernel, _ := result.Doc.FunctionByID(result.KernelID)

	// Walk from set1 and confirm the chain still ends at ret, with only
	// buffer_store nodes in between (the injected var_get and
	// vec_get_element nodes feed them through data edges and sit off the
	// execution chain).
	id := ir.NodeID("set1")
	steps := 0
	for {
		next, ok := kernel.ExecSuccessor(id, "exec_out")
		if !ok {
			t.Fatalf("chain from set1 dead-ended at %q before reaching ret", id)
		}
		n, _ := kernel.NodeByID(next)
		if n.Op == "func_return" {
			break
		}
		if n.Op != "buffer_store" && n.Op != "vec_get_element" {
			t.Errorf("unexpected node %q (op %q) spliced into capture chain", next, n.Op)
		}
		id = next
		steps++
		if steps > 20 {
			t.Fatal("capture chain traversal did not terminate")
		}
	}
}

// TestTransformTrampolineDispatchesAndSyncs covers spec.md §4.6 step 4.
func TestTransformTrampolineDispatchesAndSyncs(t *testing.T) {
	doc := buildCPUFunc()
	result, err := Transform(&doc, "main", nil)
	if err != nil {
		t.Fatal(err)
	}
	trampoline, ok := result.Doc.FunctionByID(result.Trampoline)
	if !ok {
		t.Fatal("trampoline function not found")
	}
	roots := trampoline.ExecEntryNodes()
	if len(roots) != 1 {
		t.Fatalf("trampoline roots = %v, want exactly one entry node", roots)
	}
	dispatch, _ := trampoline.NodeByID(roots[0])
	if dispatch.Op != "cmd_dispatch" {
		t.Fatalf("trampoline entry op = %q, want cmd_dispatch", dispatch.Op)
	}
	if fn, _ := dispatch.Aux["func"].(string); fn != string(result.KernelID) {
		t.Errorf("cmd_dispatch func = %q, want %q", fn, result.KernelID)
	}

	syncNode, ok := trampoline.ExecSuccessor(roots[0], "exec_out")
	if !ok {
		t.Fatal("dispatch has no successor")
	}
	n, _ := trampoline.NodeByID(syncNode)
	if n.Op != "cmd_sync_to_cpu" {
		t.Errorf("dispatch successor op = %q, want cmd_sync_to_cpu", n.Op)
	}
	if res, _ := n.Aux["resource"].(string); res != string(CaptureBufferID) {
		t.Errorf("cmd_sync_to_cpu resource = %q, want %q", res, CaptureBufferID)
	}

	waitNode, ok := trampoline.ExecSuccessor(syncNode, "exec_out")
	if !ok {
		t.Fatal("sync has no successor")
	}
	w, _ := trampoline.NodeByID(waitNode)
	if w.Op != "cmd_wait_cpu_sync" {
		t.Errorf("sync successor op = %q, want cmd_wait_cpu_sync", w.Op)
	}
}

// TestTransformDoesNotMutateOriginalDocument confirms Transform clones
// before rewriting, per spec.md §4.6's framing of Force-GPU as producing
// a second document rather than mutating the host-intent one in place.
func TestTransformDoesNotMutateOriginalDocument(t *testing.T) {
	doc := buildCPUFunc()
	before := len(doc.Functions[0].Nodes)
	if _, err := Transform(&doc, "main", nil); err != nil {
		t.Fatal(err)
	}
	if len(doc.Functions[0].Nodes) != before {
		t.Errorf("original document was mutated: Nodes = %d, want %d", len(doc.Functions[0].Nodes), before)
	}
	if doc.Functions[0].Kind != ir.FunctionCPU {
		t.Errorf("original function Kind = %q, want unchanged cpu", doc.Functions[0].Kind)
	}
}

// TestUnknownEntryFunctionErrors covers the error path when entryID
// doesn't name a function in the document.
func TestUnknownEntryFunctionErrors(t *testing.T) {
	doc := buildCPUFunc()
	if _, err := Transform(&doc, "nope", nil); err == nil {
		t.Fatal("expected an error for an unknown entry function")
	}
}
