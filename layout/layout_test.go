package layout

import (
	"testing"

	"github.com/gogpu/shadergraph/ir"
)

type docResolver struct {
	structs map[string]*ir.StructDef
}

func (d docResolver) StructByName(name string) (*ir.StructDef, bool) {
	s, ok := d.structs[name]
	return s, ok
}

func emptyResolver() docResolver {
	return docResolver{structs: map[string]*ir.StructDef{}}
}

func TestSizeBytesScalarsAndVectors(t *testing.T) {
	res := emptyResolver()
	cases := []struct {
		tag  string
		size int
	}{
		{"float", 4},
		{"int", 4},
		{"uint", 4},
		{"bool", 4},
		{"float2", 8},
		{"float3", 16},
		{"float4", 16},
		{"float3x3", 48},
		{"float4x4", 64},
	}
	for _, c := range cases {
		got, err := SizeBytes(c.tag, Std140, res)
		if err != nil {
			t.Fatalf("SizeBytes(%q): %v", c.tag, err)
		}
		if got != c.size {
			t.Errorf("SizeBytes(%q) = %d, want %d", c.tag, got, c.size)
		}
	}
}

func TestArrayStrideEqualsElementAlign(t *testing.T) {
	res := emptyResolver()
	size, err := SizeBytes("array<float3,4>", Std430, res)
	if err != nil {
		t.Fatal(err)
	}
	if want := 16 * 4; size != want {
		t.Errorf("array<float3,4> size = %d, want %d", size, want)
	}
}

func TestStructLayoutOffsets(t *testing.T) {
	ResetCache()
	res := docResolver{structs: map[string]*ir.StructDef{
		"Particle": {
			Name: "Particle",
			Fields: []ir.StructField{
				{Name: "pos", Type: "float3"},
				{Name: "life", Type: "float"},
				{Name: "vel", Type: "float2"},
			},
		},
	}}
	shape, err := StructLayout("Particle", Std140, res)
	if err != nil {
		t.Fatal(err)
	}
	want := []FieldLayout{
		{Name: "pos", Type: "float3", Offset: 0, Size: 16},
		{Name: "life", Type: "float", Offset: 16, Size: 4},
		{Name: "vel", Type: "float2", Offset: 24, Size: 8},
	}
	if len(shape.Fields) != len(want) {
		t.Fatalf("got %d fields, want %d", len(shape.Fields), len(want))
	}
	for i, f := range want {
		if shape.Fields[i] != f {
			t.Errorf("field %d = %+v, want %+v", i, shape.Fields[i], f)
		}
	}
	if shape.Size != 32 {
		t.Errorf("struct size = %d, want 32 (vel ends at 24+8, a multiple of align 16)", shape.Size)
	}
}

func TestPackVec4(t *testing.T) {
	res := emptyResolver()
	buf, err := Pack([]float64{1, 2, 3, 4}, "float4", Std140, res)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != 16 {
		t.Fatalf("len = %d, want 16", len(buf))
	}
}

func TestPackVec3PadsFourthLaneZero(t *testing.T) {
	res := emptyResolver()
	buf, err := Pack([]float64{1, 2, 3}, "float3", Std140, res)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != 16 {
		t.Fatalf("len = %d, want 16", len(buf))
	}
	for i := 12; i < 16; i++ {
		if buf[i] != 0 {
			t.Errorf("padding byte %d = %d, want 0", i, buf[i])
		}
	}
}

func TestComponentCount(t *testing.T) {
	res := emptyResolver()
	cases := map[string]int{
		"float":          1,
		"float3":         3,
		"float4x4":       16,
		"array<float,4>": 4,
	}
	for tag, want := range cases {
		got, err := ComponentCount(tag, res)
		if err != nil {
			t.Fatalf("ComponentCount(%q): %v", tag, err)
		}
		if got != want {
			t.Errorf("ComponentCount(%q) = %d, want %d", tag, got, want)
		}
	}
}
