package hostjit

import (
	"context"
	"testing"

	"github.com/gogpu/shadergraph/ir"
	"github.com/gogpu/shadergraph/ops"
)

// buildDoc wraps a single function as the document's entry point.
func buildDoc(fn ir.Function) *ir.Document {
	return &ir.Document{Functions: []ir.Function{fn}, EntryPoint: fn.ID}
}

// TestVarSetSequenceMatchesPaperSemantics covers spec.md testable
// property #1: executing a sequence of var_sets yields the same final
// values as interpreting the op semantics by hand.
func TestVarSetSequenceMatchesPaperSemantics(t *testing.T) {
	fn := ir.Function{
		ID:        "main",
		Kind:      ir.FunctionCPU,
		LocalVars: []ir.LocalVar{{ID: "acc", Type: "float", Value: 0.0}},
		Nodes: []ir.Node{
			{ID: "lit1", Op: "literal", Aux: map[string]any{"value": 2.0, "type": "float"}},
			{ID: "lit2", Op: "literal", Aux: map[string]any{"value": 3.0, "type": "float"}},
			{ID: "sum", Op: "math_add", Aux: map[string]any{}},
			{ID: "set1", Op: "var_set", Aux: map[string]any{"var": "acc"}},
			{ID: "getAcc", Op: "var_get", Aux: map[string]any{"var": "acc"}},
			{ID: "ret", Op: "func_return", Aux: map[string]any{}},
		},
		Edges: []ir.Edge{
			{From: "lit1", PortOut: "result", To: "sum", PortIn: "a", Type: ir.EdgeData},
			{From: "lit2", PortOut: "result", To: "sum", PortIn: "b", Type: ir.EdgeData},
			{From: "sum", PortOut: "result", To: "set1", PortIn: "value", Type: ir.EdgeData},
			{From: "getAcc", PortOut: "result", To: "ret", PortIn: "val", Type: ir.EdgeData},
			{From: "set1", PortOut: "exec_out", To: "ret", PortIn: "exec_in", Type: ir.EdgeExecution},
		},
	}
	doc := buildDoc(fn)
	prog, err := Compile(doc, "main")
	if err != nil {
		t.Fatal(err)
	}
	result, err := prog.Run(context.Background(), &RunContext{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 1 || result[0] != 5.0 {
		t.Errorf("Run() = %v, want [5]", result)
	}
}

// TestBuiltinMisuseScenarioS6 covers spec.md scenario S6.
func TestBuiltinMisuseScenarioS6(t *testing.T) {
	fn := ir.Function{
		ID:   "main",
		Kind: ir.FunctionCPU,
		Nodes: []ir.Node{
			{ID: "gid", Op: "builtin_get", Aux: map[string]any{"name": "global_invocation_id"}},
			{ID: "ret", Op: "func_return", Aux: map[string]any{}},
		},
		Edges: []ir.Edge{
			{From: "gid", PortOut: "result", To: "ret", PortIn: "val", Type: ir.EdgeData},
		},
	}
	doc := buildDoc(fn)
	prog, err := Compile(doc, "main")
	if err != nil {
		t.Fatal(err)
	}
	_, err = prog.Run(context.Background(), &RunContext{})
	if err == nil {
		t.Fatal("expected an error reading a GPU-only builtin on the CPU backend")
	}
	want := "GPU Built-in 'global_invocation_id' is not available in CPU context"
	if err.Error() != want {
		t.Errorf("err = %q, want %q", err.Error(), want)
	}
}

// TestBranchTakesSingleArm exercises flow_branch and confirms the
// interpreter only walks the taken arm (unlike the shader generator,
// which must emit both).
func TestBranchTakesSingleArm(t *testing.T) {
	fn := ir.Function{
		ID:        "main",
		Kind:      ir.FunctionCPU,
		LocalVars: []ir.LocalVar{{ID: "out", Type: "float", Value: 0.0}},
		Nodes: []ir.Node{
			{ID: "cond", Op: "literal", Aux: map[string]any{"value": 1.0, "type": "float"}},
			{ID: "br", Op: "flow_branch", Aux: map[string]any{}},
			{ID: "trueLit", Op: "literal", Aux: map[string]any{"value": 10.0, "type": "float"}},
			{ID: "setTrue", Op: "var_set", Aux: map[string]any{"var": "out"}},
			{ID: "falseLit", Op: "literal", Aux: map[string]any{"value": 20.0, "type": "float"}},
			{ID: "setFalse", Op: "var_set", Aux: map[string]any{"var": "out"}},
			{ID: "getOut", Op: "var_get", Aux: map[string]any{"var": "out"}},
			{ID: "ret", Op: "func_return", Aux: map[string]any{}},
		},
		Edges: []ir.Edge{
			{From: "cond", PortOut: "result", To: "br", PortIn: "cond", Type: ir.EdgeData},
			{From: "br", PortOut: "exec_true", To: "setTrue", PortIn: "exec_in", Type: ir.EdgeExecution},
			{From: "br", PortOut: "exec_false", To: "setFalse", PortIn: "exec_in", Type: ir.EdgeExecution},
			{From: "setTrue", PortOut: "exec_out", To: "ret", PortIn: "exec_in", Type: ir.EdgeExecution},
			{From: "setFalse", PortOut: "exec_out", To: "ret", PortIn: "exec_in", Type: ir.EdgeExecution},
			{From: "trueLit", PortOut: "result", To: "setTrue", PortIn: "value", Type: ir.EdgeData},
			{From: "falseLit", PortOut: "result", To: "setFalse", PortIn: "value", Type: ir.EdgeData},
			{From: "getOut", PortOut: "result", To: "ret", PortIn: "val", Type: ir.EdgeData},
		},
	}
	doc := buildDoc(fn)
	prog, err := Compile(doc, "main")
	if err != nil {
		t.Fatal(err)
	}
	result, err := prog.Run(context.Background(), &RunContext{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 1 || result[0] != 10 {
		t.Errorf("Run() (cond true) = %v, want [10]", result)
	}
}

// TestLoopBindsIndexPerIteration exercises flow_loop and loop_index.
func TestLoopBindsIndexPerIteration(t *testing.T) {
	fn := ir.Function{
		ID:        "main",
		Kind:      ir.FunctionCPU,
		LocalVars: []ir.LocalVar{{ID: "acc", Type: "float", Value: 0.0}},
		Nodes: []ir.Node{
			{ID: "start", Op: "literal", Aux: map[string]any{"value": 0.0, "type": "float"}},
			{ID: "end", Op: "literal", Aux: map[string]any{"value": 3.0, "type": "float"}},
			{ID: "loop", Op: "flow_loop", Aux: map[string]any{}},
			{ID: "idx", Op: "loop_index", Aux: map[string]any{}},
			{ID: "getAcc", Op: "var_get", Aux: map[string]any{"var": "acc"}},
			{ID: "sum", Op: "math_add", Aux: map[string]any{}},
			{ID: "setAcc", Op: "var_set", Aux: map[string]any{"var": "acc"}},
			{ID: "getFinal", Op: "var_get", Aux: map[string]any{"var": "acc"}},
			{ID: "ret", Op: "func_return", Aux: map[string]any{}},
		},
		Edges: []ir.Edge{
			{From: "start", PortOut: "result", To: "loop", PortIn: "start", Type: ir.EdgeData},
			{From: "end", PortOut: "result", To: "loop", PortIn: "end", Type: ir.EdgeData},
			{From: "loop", PortOut: "exec_body", To: "setAcc", PortIn: "exec_in", Type: ir.EdgeExecution},
			{From: "loop", PortOut: "exec_completed", To: "ret", PortIn: "exec_in", Type: ir.EdgeExecution},
			{From: "getAcc", PortOut: "result", To: "sum", PortIn: "a", Type: ir.EdgeData},
			{From: "idx", PortOut: "result", To: "sum", PortIn: "b", Type: ir.EdgeData},
			{From: "sum", PortOut: "result", To: "setAcc", PortIn: "value", Type: ir.EdgeData},
			{From: "getFinal", PortOut: "result", To: "ret", PortIn: "val", Type: ir.EdgeData},
		},
	}
	doc := buildDoc(fn)
	prog, err := Compile(doc, "main")
	if err != nil {
		t.Fatal(err)
	}
	result, err := prog.Run(context.Background(), &RunContext{})
	if err != nil {
		t.Fatal(err)
	}
	// 0 + 1 + 2 = 3
	if len(result) != 1 || result[0] != 3 {
		t.Errorf("Run() = %v, want [3]", result)
	}
}

func TestColorMixCallRoutesThroughOps(t *testing.T) {
	fn := ir.Function{
		ID:   "main",
		Kind: ir.FunctionCPU,
		Nodes: []ir.Node{
			{ID: "dstLit", Op: "literal", Aux: map[string]any{"value": []any{1.0, 0.0, 0.0, 1.0}, "type": "float4"}},
			{ID: "srcLit", Op: "literal", Aux: map[string]any{"value": []any{0.0, 1.0, 0.0, 0.5}, "type": "float4"}},
			{ID: "mix", Op: "call_func", Aux: map[string]any{"func": "color_mix"}},
			{ID: "ret", Op: "func_return", Aux: map[string]any{}},
		},
		Edges: []ir.Edge{
			{From: "dstLit", PortOut: "result", To: "mix", PortIn: "dst", Type: ir.EdgeData},
			{From: "srcLit", PortOut: "result", To: "mix", PortIn: "src", Type: ir.EdgeData},
			{From: "mix", PortOut: "result", To: "ret", PortIn: "val", Type: ir.EdgeData},
			{From: "mix", PortOut: "exec_out", To: "ret", PortIn: "exec_in", Type: ir.EdgeExecution},
		},
	}
	prog, err := Compile(buildDoc(fn), "main")
	if err != nil {
		t.Fatal(err)
	}
	got, err := prog.Run(context.Background(), &RunContext{})
	if err != nil {
		t.Fatal(err)
	}
	want := ops.Vec{0.5, 0.5, 0, 1}
	if len(got) != len(want) {
		t.Fatalf("ColorMix = %v, want %v", got, want)
	}
	for i := range want {
		if d := got[i] - want[i]; d > 1e-5 || d < -1e-5 {
			t.Errorf("ColorMix = %v, want %v", got, want)
		}
	}
}
