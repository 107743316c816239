package hostjit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/shadergraph/ir"
	"github.com/gogpu/shadergraph/ops"
)

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

// zeroVec is the host-side zero value of a type tag.
func zeroVec(tag string) ops.Vec {
	return make(ops.Vec, componentWidth(tag))
}

// literalVec renders a raw Aux literal value (float64, []any, or bool) as
// an ops.Vec of the declared type tag.
func literalVec(value any, tag string) (ops.Vec, error) {
	if value == nil {
		return zeroVec(tag), nil
	}
	switch tag {
	case "", "float", "int", "uint":
		f, err := toFloat(value)
		if err != nil {
			return nil, err
		}
		return ops.Scalar(f), nil
	case "bool":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("hostjit: expected bool literal, got %T", value)
		}
		return ops.BoolVec(b), nil
	default:
		comps, err := toSlice(value)
		if err != nil {
			return nil, err
		}
		out := make(ops.Vec, len(comps))
		for i, c := range comps {
			f, err := toFloat(c)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("hostjit: expected numeric literal, got %T", v)
	}
}

func toSlice(v any) ([]any, error) {
	switch s := v.(type) {
	case []any:
		return s, nil
	case []float64:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, nil
	default:
		return nil, fmt.Errorf("hostjit: expected a component slice, got %T", v)
	}
}

// fieldWidth is the flattened scalar-component width of a type tag,
// recursing into struct and array element types via doc — the host Vec
// analogue of layout.ComponentCount, used to compute struct_extract field
// offsets against the concatenated-Vec representation evalStructConstruct
// builds.
func fieldWidth(tag string, doc *ir.Document) int {
	if strings.HasPrefix(tag, "struct:") {
		name := strings.TrimPrefix(tag, "struct:")
		def, ok := doc.StructByName(name)
		if !ok {
			return 0
		}
		total := 0
		for _, f := range def.Fields {
			total += fieldWidth(f.Type, doc)
		}
		return total
	}
	if strings.HasPrefix(tag, "array<") && strings.HasSuffix(tag, ">") {
		inner := tag[len("array<") : len(tag)-1]
		comma := strings.LastIndexByte(inner, ',')
		if comma > 0 {
			elem, countStr := inner[:comma], inner[comma+1:]
			count, err := strconv.Atoi(countStr)
			if err != nil {
				return 0
			}
			return fieldWidth(elem, doc) * count
		}
		return 0
	}
	return componentWidth(tag)
}

func arrayElemType(arrType string) string {
	inner := strings.TrimPrefix(arrType, "array<")
	inner = strings.TrimSuffix(inner, ">")
	comma := strings.LastIndexByte(inner, ',')
	if comma > 0 {
		return inner[:comma]
	}
	return "float"
}
