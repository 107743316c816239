package shadergen

import (
	"strings"
	"testing"

	"github.com/gogpu/shadergraph/ir"
)

func buildDoc(fn ir.Function) *ir.Document {
	return &ir.Document{Functions: []ir.Function{fn}, EntryPoint: fn.ID}
}

// TestEmitLoopStartEnd covers flow_loop's start/end ports, matching the
// convention package hostjit's execLoop reads (spec.md §4.2).
func TestEmitLoopStartEnd(t *testing.T) {
	fn := ir.Function{
		ID:        "main",
		LocalVars: []ir.LocalVar{{ID: "acc", Type: "float", Value: 0.0}},
		Nodes: []ir.Node{
			{ID: "start", Op: "literal", Aux: map[string]any{"value": 0.0, "type": "float"}},
			{ID: "end", Op: "literal", Aux: map[string]any{"value": 3.0, "type": "float"}},
			{ID: "loop", Op: "flow_loop", Aux: map[string]any{}},
			{ID: "idx", Op: "loop_index", Aux: map[string]any{}},
			{ID: "setAcc", Op: "var_set", Aux: map[string]any{"var": "acc"}},
			{ID: "ret", Op: "func_return", Aux: map[string]any{}},
		},
		Edges: []ir.Edge{
			{From: "start", PortOut: "result", To: "loop", PortIn: "start", Type: ir.EdgeData},
			{From: "end", PortOut: "result", To: "loop", PortIn: "end", Type: ir.EdgeData},
			{From: "loop", PortOut: "exec_body", To: "setAcc", PortIn: "exec_in", Type: ir.EdgeExecution},
			{From: "loop", PortOut: "exec_completed", To: "ret", PortIn: "exec_in", Type: ir.EdgeExecution},
			{From: "idx", PortOut: "result", To: "setAcc", PortIn: "value", Type: ir.EdgeData},
		},
	}
	result, err := Generate(buildDoc(fn), "main", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Source, "for (var _i0: i32 = 0.0; _i0 < 3.0; _i0 = _i0 + 1) {") {
		t.Errorf("generated source does not bind flow_loop's start/end ports:\n%s", result.Source)
	}
	if strings.Contains(result.Source, `n.Aux["count"]`) {
		t.Errorf("generated source still references a count port")
	}
}

// TestEmitLoopDefaultsStartToZero covers flow_loop with its start port
// left unbound, matching execLoop's default.
func TestEmitLoopDefaultsStartToZero(t *testing.T) {
	fn := ir.Function{
		ID: "main",
		Nodes: []ir.Node{
			{ID: "end", Op: "literal", Aux: map[string]any{"value": 5.0, "type": "float"}},
			{ID: "loop", Op: "flow_loop", Aux: map[string]any{}},
			{ID: "ret", Op: "func_return", Aux: map[string]any{}},
		},
		Edges: []ir.Edge{
			{From: "end", PortOut: "result", To: "loop", PortIn: "end", Type: ir.EdgeData},
			{From: "loop", PortOut: "exec_completed", To: "ret", PortIn: "exec_in", Type: ir.EdgeExecution},
		},
	}
	result, err := Generate(buildDoc(fn), "main", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Source, "= 0; _i0 < 5.0;") {
		t.Errorf("generated source does not default start to 0:\n%s", result.Source)
	}
}

// TestEmitBranchEmitsBothArms confirms flow_branch, unlike hostjit's
// native if/else, emits both arms as static source text since only one
// executes at runtime on the GPU.
func TestEmitBranchEmitsBothArms(t *testing.T) {
	fn := ir.Function{
		ID:        "main",
		LocalVars: []ir.LocalVar{{ID: "out", Type: "float", Value: 0.0}},
		Nodes: []ir.Node{
			{ID: "cond", Op: "literal", Aux: map[string]any{"value": 1.0, "type": "float"}},
			{ID: "br", Op: "flow_branch", Aux: map[string]any{}},
			{ID: "trueLit", Op: "literal", Aux: map[string]any{"value": 10.0, "type": "float"}},
			{ID: "setTrue", Op: "var_set", Aux: map[string]any{"var": "out"}},
			{ID: "falseLit", Op: "literal", Aux: map[string]any{"value": 20.0, "type": "float"}},
			{ID: "setFalse", Op: "var_set", Aux: map[string]any{"var": "out"}},
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
		},
	}
	result, err := Generate(buildDoc(fn), "main", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Source, "out = 10.0;") || !strings.Contains(result.Source, "out = 20.0;") {
		t.Errorf("generated source is missing one of flow_branch's two arms:\n%s", result.Source)
	}
	if !strings.Contains(result.Source, "} else {") {
		t.Errorf("generated source does not emit an else arm:\n%s", result.Source)
	}
}

// TestEmitBranchMergePointDuplicated confirms a node reachable from both
// branch arms is emitted once per arm rather than hoisted: each arm
// starts a fresh visitation set, so shared successors are duplicated.
func TestEmitBranchMergePointDuplicated(t *testing.T) {
	fn := ir.Function{
		ID:        "main",
		LocalVars: []ir.LocalVar{{ID: "out", Type: "float", Value: 0.0}},
		Nodes: []ir.Node{
			{ID: "cond", Op: "literal", Aux: map[string]any{"value": 1.0, "type": "float"}},
			{ID: "br", Op: "flow_branch", Aux: map[string]any{}},
			{ID: "common", Op: "var_set", Aux: map[string]any{"var": "out"}},
			{ID: "lit", Op: "literal", Aux: map[string]any{"value": 7.0, "type": "float"}},
			{ID: "ret", Op: "func_return", Aux: map[string]any{}},
		},
		Edges: []ir.Edge{
			{From: "cond", PortOut: "result", To: "br", PortIn: "cond", Type: ir.EdgeData},
			{From: "br", PortOut: "exec_true", To: "common", PortIn: "exec_in", Type: ir.EdgeExecution},
			{From: "br", PortOut: "exec_false", To: "common", PortIn: "exec_in", Type: ir.EdgeExecution},
			{From: "common", PortOut: "exec_out", To: "ret", PortIn: "exec_in", Type: ir.EdgeExecution},
			{From: "lit", PortOut: "result", To: "common", PortIn: "value", Type: ir.EdgeData},
		},
	}
	result, err := Generate(buildDoc(fn), "main", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(result.Source, "out = 7.0;"); got != 2 {
		t.Errorf("merge-point node emitted %d times, want 2 (once per arm):\n%s", got, result.Source)
	}
}

// TestLowerCallExprColorMixUsesNamedPorts confirms lowerCallExpr binds
// color_mix's src/dst ports by name, matching hostjit's evalCall
// (spec.md §4.3/§8 scenario S1), rather than falling through to generic
// positional arg0/arg1 resolution.
func TestLowerCallExprColorMixUsesNamedPorts(t *testing.T) {
	fn := ir.Function{
		ID: "main",
		Nodes: []ir.Node{
			{ID: "srcLit", Op: "literal", Aux: map[string]any{"value": []any{1.0, 0.0, 0.0, 1.0}, "type": "float4"}},
			{ID: "dstLit", Op: "literal", Aux: map[string]any{"value": []any{0.0, 1.0, 0.0, 0.5}, "type": "float4"}},
			{ID: "mix", Op: "call_func", Aux: map[string]any{"func": "color_mix", "args": []any{"src", "dst"}}},
			{ID: "ret", Op: "func_return", Aux: map[string]any{}},
		},
		Edges: []ir.Edge{
			{From: "srcLit", PortOut: "result", To: "mix", PortIn: "src", Type: ir.EdgeData},
			{From: "dstLit", PortOut: "result", To: "mix", PortIn: "dst", Type: ir.EdgeData},
			{From: "mix", PortOut: "result", To: "ret", PortIn: "val", Type: ir.EdgeData},
			{From: "mix", PortOut: "exec_out", To: "ret", PortIn: "exec_in", Type: ir.EdgeExecution},
		},
	}
	result, err := Generate(buildDoc(fn), "main", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	want := "color_mix(vec4<f32>(1.0, 0.0, 0.0, 1.0), vec4<f32>(0.0, 1.0, 0.0, 0.5));"
	if !strings.Contains(result.Source, want) {
		t.Fatalf("generated source does not call the color_mix helper as %s:\n%s", want, result.Source)
	}
}
