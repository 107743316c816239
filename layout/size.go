package layout

import "fmt"

const scalarSize = 4

// SizeBytes returns the number of bytes a value of type tag occupies
// under ruleset, per the layout rule in spec.md §3: scalars are 4 bytes;
// vec2 is 8; vec3 is 16 (occupied size, in both rulesets, per the
// documented choice below); vec4 is 16; mat3x3 is three vec3 columns
// padded to 16 (48 total); mat4x4 is 64; array-of-T stride equals T's
// aligned size times element count; struct size is the offset past its
// last member, rounded up to the struct's own alignment.
func SizeBytes(tag string, ruleset Ruleset, res Resolver) (int, error) {
	t, err := Parse(tag)
	if err != nil {
		return 0, err
	}
	return sizeOf(t, ruleset, res)
}

func sizeOf(t Type, ruleset Ruleset, res Resolver) (int, error) {
	switch t.Kind {
	case KindScalar:
		return scalarSize, nil
	case KindVector:
		switch t.N {
		case 2:
			return 8, nil
		case 3, 4:
			// vec3 occupies 16 bytes in both std140-like and std430-like
			// array contexts per spec.md §3; this implementation applies
			// that choice uniformly rather than shrinking vec3 to 12
			// bytes outside of arrays.
			return 16, nil
		}
		return 0, fmt.Errorf("layout: invalid vector size %d", t.N)
	case KindMatrix:
		switch t.N {
		case 3:
			return 48, nil // 3 columns of vec3, each padded to 16
		case 4:
			return 64, nil
		}
		return 0, fmt.Errorf("layout: invalid matrix size %d", t.N)
	case KindArray:
		stride, err := alignOf(*t.Elem, ruleset, res)
		if err != nil {
			return 0, err
		}
		elemSize, err := sizeOf(*t.Elem, ruleset, res)
		if err != nil {
			return 0, err
		}
		if elemSize > stride {
			stride = elemSize
		}
		return stride * t.Count, nil
	case KindStruct:
		layout, err := StructLayout(t.StructName, ruleset, res)
		if err != nil {
			return 0, err
		}
		return layout.Size, nil
	}
	return 0, fmt.Errorf("layout: unhandled kind for size")
}

// Align returns the byte alignment of a value of type tag under ruleset.
func Align(tag string, ruleset Ruleset, res Resolver) (int, error) {
	t, err := Parse(tag)
	if err != nil {
		return 0, err
	}
	return alignOf(t, ruleset, res)
}

func alignOf(t Type, ruleset Ruleset, res Resolver) (int, error) {
	switch t.Kind {
	case KindScalar:
		return scalarSize, nil
	case KindVector:
		switch t.N {
		case 2:
			return 8, nil
		case 3, 4:
			return 16, nil
		}
		return 0, fmt.Errorf("layout: invalid vector size %d", t.N)
	case KindMatrix:
		return 16, nil
	case KindArray:
		return alignOf(*t.Elem, ruleset, res)
	case KindStruct:
		layout, err := StructLayout(t.StructName, ruleset, res)
		if err != nil {
			return 0, err
		}
		return layout.Align, nil
	}
	return 0, fmt.Errorf("layout: unhandled kind for align")
}

func alignUp(offset, align int) int {
	if align <= 1 {
		return offset
	}
	rem := offset % align
	if rem == 0 {
		return offset
	}
	return offset + (align - rem)
}

// FieldLayout is one member's resolved position within a struct.
type FieldLayout struct {
	Name   string
	Type   string
	Offset int
	Size   int
}

// StructShape is the resolved byte layout of a named struct: each
// member's offset/size plus the struct's total size and alignment.
type StructShape struct {
	Name    string
	Ruleset Ruleset
	Fields  []FieldLayout
	Size    int
	Align   int
}

// shapeCache deduplicates struct layout computation by (ruleset, struct
// name, field names and types) the way naga's ir.TypeRegistry deduplicates
// SPIR-V type declarations: repeated callers asking for the same struct
// under the same ruleset share one computed StructShape instead of
// re-walking fields.
type shapeCache struct {
	byKey map[string]*StructShape
}

func newShapeCache() *shapeCache {
	return &shapeCache{byKey: make(map[string]*StructShape)}
}

var globalShapeCache = newShapeCache()

func shapeKey(name string, ruleset Ruleset, fields []struct{ Name, Type string }) string {
	key := fmt.Sprintf("%d:%s:", ruleset, name)
	for _, f := range fields {
		key += f.Name + "=" + f.Type + ";"
	}
	return key
}

// StructLayout computes (and caches) the byte layout of struct name under
// ruleset, resolving nested struct/array members through res.
func StructLayout(name string, ruleset Ruleset, res Resolver) (*StructShape, error) {
	sd, ok := res.StructByName(name)
	if !ok {
		return nil, fmt.Errorf("layout: unknown struct %q", name)
	}
	fieldKeys := make([]struct{ Name, Type string }, len(sd.Fields))
	for i, f := range sd.Fields {
		fieldKeys[i] = struct{ Name, Type string }{f.Name, f.Type}
	}
	key := shapeKey(name, ruleset, fieldKeys)
	if cached, ok := globalShapeCache.byKey[key]; ok {
		return cached, nil
	}

	offset := 0
	maxAlign := 1
	fields := make([]FieldLayout, len(sd.Fields))
	for i, f := range sd.Fields {
		ft, err := Parse(f.Type)
		if err != nil {
			return nil, fmt.Errorf("layout: struct %q field %q: %w", name, f.Name, err)
		}
		align, err := alignOf(ft, ruleset, res)
		if err != nil {
			return nil, err
		}
		size, err := sizeOf(ft, ruleset, res)
		if err != nil {
			return nil, err
		}
		offset = alignUp(offset, align)
		fields[i] = FieldLayout{Name: f.Name, Type: f.Type, Offset: offset, Size: size}
		offset += size
		if align > maxAlign {
			maxAlign = align
		}
	}
	shape := &StructShape{
		Name:    name,
		Ruleset: ruleset,
		Fields:  fields,
		Size:    alignUp(offset, maxAlign),
		Align:   maxAlign,
	}
	globalShapeCache.byKey[key] = shape
	return shape, nil
}

// ResetCache clears the process-wide struct-shape cache. Exposed for
// tests that register structs with the same name but different shapes
// across cases.
func ResetCache() {
	globalShapeCache = newShapeCache()
}
