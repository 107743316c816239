package ir

import "testing"

func simpleDoc() *Document {
	return &Document{
		EntryPoint: "main",
		Functions: []Function{
			{
				ID:   "main",
				Kind: FunctionCPU,
				Nodes: []Node{
					{ID: "n1", Op: "float", Aux: map[string]any{"x": 1.0}},
					{ID: "n2", Op: "func_return"},
				},
				Edges: []Edge{
					{From: "n1", PortOut: "result", To: "n2", PortIn: "value", Type: EdgeData},
				},
			},
		},
	}
}

func TestValidateCleanDocument(t *testing.T) {
	diags := Validate(simpleDoc())
	if HasErrors(diags) {
		t.Fatalf("unexpected errors: %v", diags)
	}
}

func TestValidateMissingEntryPoint(t *testing.T) {
	doc := simpleDoc()
	doc.EntryPoint = "nope"
	diags := Validate(doc)
	if !HasErrors(diags) {
		t.Fatal("expected an error for missing entry point")
	}
}

func TestValidateDuplicateNodeID(t *testing.T) {
	doc := simpleDoc()
	doc.Functions[0].Nodes = append(doc.Functions[0].Nodes, Node{ID: "n1", Op: "float"})
	diags := Validate(doc)
	if !HasErrors(diags) {
		t.Fatal("expected a duplicate node id error")
	}
}

func TestValidateUnknownEdgeEndpoint(t *testing.T) {
	doc := simpleDoc()
	doc.Functions[0].Edges = append(doc.Functions[0].Edges, Edge{From: "ghost", PortOut: "result", To: "n2", PortIn: "x", Type: EdgeData})
	diags := Validate(doc)
	if !HasErrors(diags) {
		t.Fatal("expected an unknown-source-node error")
	}
}

func TestValidateDuplicateDataEdgeIntoSamePort(t *testing.T) {
	doc := simpleDoc()
	doc.Functions[0].Nodes = append(doc.Functions[0].Nodes, Node{ID: "n3", Op: "float"})
	doc.Functions[0].Edges = append(doc.Functions[0].Edges, Edge{From: "n3", PortOut: "result", To: "n2", PortIn: "value", Type: EdgeData})
	diags := Validate(doc)
	if !HasErrors(diags) {
		t.Fatal("expected a duplicate data edge error")
	}
}

func TestValidateDataCycleDetected(t *testing.T) {
	doc := &Document{
		EntryPoint: "main",
		Functions: []Function{{
			ID: "main",
			Nodes: []Node{
				{ID: "a", Op: "math_add"},
				{ID: "b", Op: "math_add"},
			},
			Edges: []Edge{
				{From: "a", PortOut: "result", To: "b", PortIn: "a", Type: EdgeData},
				{From: "b", PortOut: "result", To: "a", PortIn: "a", Type: EdgeData},
			},
		}},
	}
	diags := Validate(doc)
	if !HasErrors(diags) {
		t.Fatal("expected a data-cycle error")
	}
}

func TestValidateConstructorGapAndOverlap(t *testing.T) {
	doc := simpleDoc()
	doc.Functions[0].Nodes = append(doc.Functions[0].Nodes, Node{
		ID: "ctor", Op: "float3",
		Aux: map[string]any{"channels": map[string]any{"xy": "v2"}}, // missing z: gap
	})
	diags := Validate(doc)
	if !HasErrors(diags) {
		t.Fatal("expected a coverage-gap error for missing z component")
	}

	doc2 := simpleDoc()
	doc2.Functions[0].Nodes = append(doc2.Functions[0].Nodes, Node{
		ID: "ctor", Op: "float3",
		Aux: map[string]any{"channels": map[string]any{"xy": "v2", "y": 1.0, "z": 1.0}}, // overlap on y
	})
	diags2 := Validate(doc2)
	if !HasErrors(diags2) {
		t.Fatal("expected an overlap error for duplicated y component")
	}
}

func TestValidateConstructorExactCoverageIsClean(t *testing.T) {
	doc := simpleDoc()
	doc.Functions[0].Nodes = append(doc.Functions[0].Nodes, Node{
		ID: "ctor", Op: "float3",
		Aux: map[string]any{"channels": map[string]any{"xy": "v2", "z": 1.0}},
	})
	diags := Validate(doc)
	if HasErrors(diags) {
		t.Fatalf("unexpected errors for exact coverage: %v", diags)
	}
}

func TestExecEntryNodesAndIsExecutable(t *testing.T) {
	if !IsExecutable("cmd_dispatch") || !IsExecutable("flow_branch") || !IsExecutable("var_set") {
		t.Fatal("expected these ops to be executable")
	}
	if IsExecutable("math_add") || IsExecutable("var_get") {
		t.Fatal("expected these ops to not be executable")
	}

	doc := simpleDoc()
	roots := doc.Functions[0].ExecEntryNodes()
	if len(roots) != 1 || roots[0] != "n2" {
		t.Fatalf("roots = %v, want [n2]", roots)
	}
}
