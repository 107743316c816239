package layout

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PathStep is one navigation step into a host value: either a struct
// field name, an array/vector index, or a matrix (column, row) pair.
type PathStep struct {
	Field string
	Index int
	IsVec bool // true when Index selects a vector/matrix component rather than a struct field
}

// writeOp is one leaf write in a compiled pack Plan: write the scalar
// reached by following Path from the root value to byte offset Offset,
// encoded according to Scalar.
type writeOp struct {
	Offset int
	Scalar ScalarKind
	Path   []PathStep
}

// Plan is a compiled, type-derived sequence of scalar writes. It is built
// once per distinct type tag (see BuildPlan) and replayed against many
// values, so that Pack never re-walks the type's struct/array shape on
// the hot path — only the value navigation varies per call.
type Plan struct {
	Tag     string
	Size    int
	Ruleset Ruleset
	ops     []writeOp
}

// BuildPlan compiles the write-operation tree for tag under ruleset.
func BuildPlan(tag string, ruleset Ruleset, res Resolver) (*Plan, error) {
	t, err := Parse(tag)
	if err != nil {
		return nil, err
	}
	size, err := sizeOf(t, ruleset, res)
	if err != nil {
		return nil, err
	}
	p := &Plan{Tag: tag, Size: size, Ruleset: ruleset}
	if err := p.compile(t, 0, nil, ruleset, res); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Plan) compile(t Type, offset int, path []PathStep, ruleset Ruleset, res Resolver) error {
	switch t.Kind {
	case KindScalar:
		p.ops = append(p.ops, writeOp{Offset: offset, Scalar: t.Scalar, Path: append([]PathStep(nil), path...)})
		return nil
	case KindVector:
		for i := 0; i < t.N; i++ {
			sub := append(append([]PathStep(nil), path...), PathStep{Index: i, IsVec: true})
			p.ops = append(p.ops, writeOp{Offset: offset + i*scalarSize, Scalar: t.Scalar, Path: sub})
		}
		return nil
	case KindMatrix:
		colStride := 16 // each column padded to vec4/vec3-alignment (16 bytes), per spec.md §3
		for c := 0; c < t.N; c++ {
			for r := 0; r < t.N; r++ {
				sub := append(append([]PathStep(nil), path...), PathStep{Index: c*t.N + r, IsVec: true})
				p.ops = append(p.ops, writeOp{Offset: offset + c*colStride + r*scalarSize, Scalar: ScalarFloat, Path: sub})
			}
		}
		return nil
	case KindArray:
		stride, err := alignOf(*t.Elem, ruleset, res)
		if err != nil {
			return err
		}
		elemSize, err := sizeOf(*t.Elem, ruleset, res)
		if err != nil {
			return err
		}
		if elemSize > stride {
			stride = elemSize
		}
		for i := 0; i < t.Count; i++ {
			sub := append(append([]PathStep(nil), path...), PathStep{Index: i})
			if err := p.compile(*t.Elem, offset+i*stride, sub, ruleset, res); err != nil {
				return err
			}
		}
		return nil
	case KindStruct:
		shape, err := StructLayout(t.StructName, ruleset, res)
		if err != nil {
			return err
		}
		for _, f := range shape.Fields {
			ft, err := Parse(f.Type)
			if err != nil {
				return err
			}
			sub := append(append([]PathStep(nil), path...), PathStep{Field: f.Name})
			if err := p.compile(ft, offset+f.Offset, sub, ruleset, res); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("layout: unhandled kind in plan compile")
}

// Pack replays the compiled plan against value, returning a zero-filled
// byte slice of Plan.Size with every leaf scalar written at its computed
// offset. Bytes untouched by any writeOp (e.g. vec3's fourth lane, matrix
// column padding) remain zero, matching the padding conventions of
// spec.md §3.
func (p *Plan) Pack(value any) ([]byte, error) {
	buf := make([]byte, p.Size)
	for _, op := range p.ops {
		v, err := navigate(value, op.Path)
		if err != nil {
			return nil, fmt.Errorf("layout: packing %s: %w", p.Tag, err)
		}
		if err := writeScalar(buf, op.Offset, op.Scalar, v); err != nil {
			return nil, fmt.Errorf("layout: packing %s: %w", p.Tag, err)
		}
	}
	return buf, nil
}

// Pack parses tag, builds a one-shot plan, and packs value. Callers that
// pack many values of the same type should call BuildPlan once and reuse
// the Plan's Pack method instead.
func Pack(value any, tag string, ruleset Ruleset, res Resolver) ([]byte, error) {
	plan, err := BuildPlan(tag, ruleset, res)
	if err != nil {
		return nil, err
	}
	return plan.Pack(value)
}

func navigate(v any, path []PathStep) (any, error) {
	cur := v
	for _, step := range path {
		switch {
		case step.Field != "":
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected struct value at field %q, got %T", step.Field, cur)
			}
			fv, ok := m[step.Field]
			if !ok {
				return nil, fmt.Errorf("missing field %q", step.Field)
			}
			cur = fv
		case step.IsVec:
			fv, err := indexVector(cur, step.Index)
			if err != nil {
				return nil, err
			}
			cur = fv
		default:
			fv, err := indexArray(cur, step.Index)
			if err != nil {
				return nil, err
			}
			cur = fv
		}
	}
	return cur, nil
}

func indexVector(v any, i int) (any, error) {
	switch s := v.(type) {
	case []float64:
		if i >= len(s) {
			return 0.0, nil // e.g. vec3 broadcast padding, treated as zero
		}
		return s[i], nil
	case []float32:
		if i >= len(s) {
			return 0.0, nil
		}
		return s[i], nil
	case []int:
		if i >= len(s) {
			return 0, nil
		}
		return s[i], nil
	case []any:
		if i >= len(s) {
			return 0.0, nil
		}
		return s[i], nil
	default:
		return nil, fmt.Errorf("expected vector/matrix value, got %T", v)
	}
}

func indexArray(v any, i int) (any, error) {
	switch s := v.(type) {
	case []any:
		if i >= len(s) {
			return nil, fmt.Errorf("array index %d out of range (len %d)", i, len(s))
		}
		return s[i], nil
	default:
		return nil, fmt.Errorf("expected array value, got %T", v)
	}
}

func writeScalar(buf []byte, offset int, kind ScalarKind, v any) error {
	switch kind {
	case ScalarFloat:
		f, err := asFloat(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(float32(f)))
	case ScalarInt:
		i, err := asInt(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(buf[offset:], uint32(int32(i)))
	case ScalarUint:
		i, err := asInt(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(buf[offset:], uint32(i))
	case ScalarBool:
		b, ok := v.(bool)
		if !ok {
			i, err := asInt(v)
			if err != nil {
				return fmt.Errorf("expected bool, got %T", v)
			}
			b = i != 0
		}
		var u uint32
		if b {
			u = 1
		}
		binary.LittleEndian.PutUint32(buf[offset:], u)
	default:
		return fmt.Errorf("unhandled scalar kind %v", kind)
	}
	return nil
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("expected numeric value, got %T", v)
	}
}

func asInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("expected numeric value, got %T", v)
	}
}
