// Package layout maps IR type tags to host representations and byte
// layouts. It implements spec component A: componentCount, sizeBytes,
// align and pack over the closed set of type tags (scalars, vectors,
// matrices, arrays, and named structs), under a chosen Ruleset.
//
// The struct-shape cache mirrors naga's ir.TypeRegistry: a struct's layout
// is computed once per (ruleset, name, field list) and reused, avoiding repeated
// per-call field walking for hot packing paths.
package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/shadergraph/ir"
)

// Ruleset selects which layout convention is applied to vec3 and array
// strides, per spec.md §3: std140-like contexts use vec3 as both 16-byte
// aligned and 16-byte occupying; std430-like array contexts align vec3 to
// 16 bytes but still occupy 16 bytes per array element. Both rulesets here
// make the same choice for vec3 (16/16) — the distinction that matters in
// practice is which one the caller declares intent with, so that a future
// ruleset may diverge without callers needing to change.
type Ruleset int

const (
	// Std140 is used for the globals buffer and packed input buffer.
	Std140 Ruleset = iota
	// Std430 is used for storage-buffer-backed resources.
	Std430
)

// Kind classifies a parsed type tag.
type Kind int

const (
	KindScalar Kind = iota
	KindVector
	KindMatrix
	KindArray
	KindStruct
)

// ScalarKind is the base scalar type underlying a scalar or vector/matrix
// type tag.
type ScalarKind int

const (
	ScalarFloat ScalarKind = iota
	ScalarInt
	ScalarUint
	ScalarBool
)

// Type is a parsed type tag, one of the closed set from spec.md §4.1:
// float, int, uint, bool, float2|3|4, int2|3|4, float3x3, float4x4,
// array<T,N>, struct:<name>.
type Type struct {
	Kind   Kind
	Scalar ScalarKind

	// Vector/matrix component count (2, 3 or 4). For matrices this is the
	// column count; rows always equal columns for the two supported
	// matrix tags (float3x3, float4x4).
	N int

	// Array-only.
	Elem  *Type
	Count int // 0 for a runtime-sized array (permitted at most once, at the end, per spec §4.3)

	// Struct-only.
	StructName string
}

// Tag renders t back to its canonical type-tag string.
func (t Type) Tag() string {
	switch t.Kind {
	case KindScalar:
		return scalarName(t.Scalar)
	case KindVector:
		return fmt.Sprintf("%s%d", scalarName(t.Scalar), t.N)
	case KindMatrix:
		return fmt.Sprintf("float%dx%d", t.N, t.N)
	case KindArray:
		if t.Count == 0 {
			return fmt.Sprintf("array<%s,0>", t.Elem.Tag())
		}
		return fmt.Sprintf("array<%s,%d>", t.Elem.Tag(), t.Count)
	case KindStruct:
		return "struct:" + t.StructName
	}
	return "?"
}

func scalarName(k ScalarKind) string {
	switch k {
	case ScalarFloat:
		return "float"
	case ScalarInt:
		return "int"
	case ScalarUint:
		return "uint"
	case ScalarBool:
		return "bool"
	}
	return "?"
}

// Parse parses a type tag string into a Type.
func Parse(tag string) (Type, error) {
	switch tag {
	case "float", "int", "uint", "bool":
		return Type{Kind: KindScalar, Scalar: scalarOf(tag)}, nil
	case "float2", "float3", "float4", "int2", "int3", "int4":
		base := tag[:len(tag)-1]
		n, _ := strconv.Atoi(tag[len(tag)-1:])
		return Type{Kind: KindVector, Scalar: scalarOf(base), N: n}, nil
	case "float3x3":
		return Type{Kind: KindMatrix, Scalar: ScalarFloat, N: 3}, nil
	case "float4x4":
		return Type{Kind: KindMatrix, Scalar: ScalarFloat, N: 4}, nil
	}
	if strings.HasPrefix(tag, "array<") && strings.HasSuffix(tag, ">") {
		inner := tag[len("array<") : len(tag)-1]
		comma := strings.LastIndexByte(inner, ',')
		if comma < 0 {
			return Type{}, fmt.Errorf("layout: malformed array tag %q", tag)
		}
		elemTag, countStr := inner[:comma], inner[comma+1:]
		elem, err := Parse(elemTag)
		if err != nil {
			return Type{}, fmt.Errorf("layout: array element: %w", err)
		}
		count, err := strconv.Atoi(countStr)
		if err != nil {
			return Type{}, fmt.Errorf("layout: array count %q: %w", countStr, err)
		}
		return Type{Kind: KindArray, Elem: &elem, Count: count}, nil
	}
	if strings.HasPrefix(tag, "struct:") {
		return Type{Kind: KindStruct, StructName: tag[len("struct:"):]}, nil
	}
	return Type{}, fmt.Errorf("layout: unrecognized type tag %q", tag)
}

func scalarOf(base string) ScalarKind {
	switch base {
	case "int":
		return ScalarInt
	case "uint":
		return ScalarUint
	case "bool":
		return ScalarBool
	default:
		return ScalarFloat
	}
}

// Resolver resolves a named struct's field list, used to compute nested
// struct sizes/offsets. *ir.Document satisfies this directly via
// StructByName.
type Resolver interface {
	StructByName(name string) (*ir.StructDef, bool)
}

// ComponentCount returns the number of scalar components a value of type
// tag occupies, per spec.md's testable property #2 (constructor coverage)
// and the globals-buffer sizing rule in spec.md §4.5.
func ComponentCount(tag string, res Resolver) (int, error) {
	t, err := Parse(tag)
	if err != nil {
		return 0, err
	}
	return componentCountOf(t, res)
}

func componentCountOf(t Type, res Resolver) (int, error) {
	switch t.Kind {
	case KindScalar:
		return 1, nil
	case KindVector:
		return t.N, nil
	case KindMatrix:
		return t.N * t.N, nil
	case KindArray:
		n, err := componentCountOf(*t.Elem, res)
		if err != nil {
			return 0, err
		}
		return n * t.Count, nil
	case KindStruct:
		sd, ok := res.StructByName(t.StructName)
		if !ok {
			return 0, fmt.Errorf("layout: unknown struct %q", t.StructName)
		}
		total := 0
		for _, f := range sd.Fields {
			n, err := ComponentCount(f.Type, res)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	}
	return 0, fmt.Errorf("layout: unhandled kind for component count")
}
