package ir

import "testing"

func TestSwizzleTypeInference(t *testing.T) {
	doc := &Document{
		EntryPoint: "main",
		Functions: []Function{{
			ID: "main",
			Nodes: []Node{
				{ID: "v", Op: "float4"},
				{ID: "sw", Op: "vec_swizzle", Aux: map[string]any{"vec": "v", "channels": "wzyx"}},
			},
		}},
	}
	inf := NewInferer(doc, &doc.Functions[0], TypeEnv{})
	got, err := inf.NodeType("sw")
	if err != nil {
		t.Fatal(err)
	}
	if got != "float4" {
		t.Errorf("swizzle type = %q, want float4", got)
	}
}

func TestInlineSwizzleRefType(t *testing.T) {
	doc := &Document{
		Functions: []Function{{
			ID: "main",
			Nodes: []Node{
				{ID: "c", Op: "float4"},
			},
		}},
	}
	inf := NewInferer(doc, &doc.Functions[0], TypeEnv{})
	got, err := inf.RefType("c.xy")
	if err != nil {
		t.Fatal(err)
	}
	if got != "float2" {
		t.Errorf("RefType(c.xy) = %q, want float2", got)
	}

	got1, err := inf.RefType("c.x")
	if err != nil {
		t.Fatal(err)
	}
	if got1 != "float" {
		t.Errorf("RefType(c.x) = %q, want float", got1)
	}
}

func TestVarGetTypeFromLocal(t *testing.T) {
	doc := &Document{
		Functions: []Function{{
			ID:        "main",
			LocalVars: []LocalVar{{ID: "res", Type: "float3"}},
			Nodes: []Node{
				{ID: "g", Op: "var_get", Aux: map[string]any{"var": "res"}},
			},
		}},
	}
	inf := NewInferer(doc, &doc.Functions[0], TypeEnv{})
	got, err := inf.NodeType("g")
	if err != nil {
		t.Fatal(err)
	}
	if got != "float3" {
		t.Errorf("var_get type = %q, want float3", got)
	}
}

func TestBuiltinAvailableOnCPU(t *testing.T) {
	if !BuiltinAvailableOnCPU("time") {
		t.Error("time should be CPU-allowed")
	}
	if BuiltinAvailableOnCPU("global_invocation_id") {
		t.Error("global_invocation_id should not be CPU-allowed")
	}
}
