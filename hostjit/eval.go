package hostjit

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/shadergraph/ir"
	"github.com/gogpu/shadergraph/ops"
)

// eval computes node id's data result, sharing op semantics with package
// shadergen's expression lowering via package ops so the two backends
// never diverge on what an op computes (spec.md §4.2).
func (r *run) eval(ctx context.Context, id ir.NodeID) (ops.Vec, error) {
	n, ok := r.p.fn.NodeByID(id)
	if !ok {
		return nil, fmt.Errorf("hostjit: expression references unknown node %q", id)
	}

	switch {
	case n.Op == "literal":
		tag, _ := n.Aux["type"].(string)
		return literalVec(n.Aux["value"], tag)
	case n.Op == "float", n.Op == "int", n.Op == "bool":
		return literalVec(n.Aux["value"], n.Op)
	case n.Op == "float2", n.Op == "float3", n.Op == "float4", n.Op == "int2", n.Op == "int3", n.Op == "int4":
		return r.evalConstructor(ctx, id, n)
	case n.Op == "float3x3", n.Op == "float4x4":
		return r.evalMatrixConstructor(ctx, id, n)
	case n.Op == "var_get":
		return r.evalVarGet(n)
	case n.Op == "vec_swizzle":
		vec, err := r.input(ctx, id, n, "vec")
		if err != nil {
			return nil, err
		}
		channels, _ := n.Aux["channels"].(string)
		return ops.Swizzle(vec, channels)
	case n.Op == "vec_get_element":
		vec, err := r.input(ctx, id, n, "vec")
		if err != nil {
			return nil, err
		}
		idx, err := r.input(ctx, id, n, "index")
		if err != nil {
			return nil, err
		}
		return ops.GetElement(vec, int(idx[0]))
	case n.Op == "vec_dot":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Dot(a, b)
	case n.Op == "vec_length":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Length(a), nil
	case n.Op == "vec_normalize":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Normalize(a)
	case n.Op == "vec_mix":
		return r.ternary(ctx, id, n, "a", "b", "t", ops.Mix)
	case n.Op == "math_add":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Add(a, b)
	case n.Op == "math_sub":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Sub(a, b)
	case n.Op == "math_mul":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Mul(a, b)
	case n.Op == "math_div":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Div(a, b)
	case n.Op == "math_mod":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Mod(a, b)
	case n.Op == "math_mad":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		b, err := r.input(ctx, id, n, "b")
		if err != nil {
			return nil, err
		}
		c, err := r.input(ctx, id, n, "c")
		if err != nil {
			return nil, err
		}
		return ops.Mad(a, b, c)
	case n.Op == "abs":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Abs(a), nil
	case n.Op == "floor":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Floor(a), nil
	case n.Op == "ceil":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Ceil(a), nil
	case n.Op == "fract":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Fract(a), nil
	case n.Op == "sqrt":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Sqrt(a), nil
	case n.Op == "exp":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Exp(a), nil
	case n.Op == "log":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Log(a), nil
	case n.Op == "sin":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Sin(a), nil
	case n.Op == "cos":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Cos(a), nil
	case n.Op == "tan":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Tan(a), nil
	case n.Op == "tanh":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Tanh(a), nil
	case n.Op == "atan":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Atan(a), nil
	case n.Op == "sign":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Sign(a), nil
	case n.Op == "pow":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Pow(a, b)
	case n.Op == "min":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Min(a, b)
	case n.Op == "max":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Max(a, b)
	case n.Op == "atan2":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Atan2(a, b)
	case n.Op == "clamp":
		return r.ternary(ctx, id, n, "x", "lo", "hi", ops.Clamp)
	case n.Op == "mix":
		return r.ternary(ctx, id, n, "a", "b", "t", ops.Mix)
	case n.Op == "lt":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Lt(a, b)
	case n.Op == "gt":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Gt(a, b)
	case n.Op == "le":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Le(a, b)
	case n.Op == "ge":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Ge(a, b)
	case n.Op == "eq":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Eq(a, b)
	case n.Op == "neq":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Neq(a, b)
	case n.Op == "and":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.And(a, b)
	case n.Op == "or":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Or(a, b)
	case n.Op == "xor":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.Xor(a, b)
	case n.Op == "not":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.Not(a), nil
	case n.Op == "math_pi":
		return ops.Scalar(ops.Pi), nil
	case n.Op == "math_e":
		return ops.Scalar(ops.E), nil
	case n.Op == "mat_mul":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.MatMul(a, b)
	case n.Op == "mat_extract":
		m, err := r.input(ctx, id, n, "m")
		if err != nil {
			return nil, err
		}
		col, err := r.input(ctx, id, n, "col")
		if err != nil {
			return nil, err
		}
		return ops.MatExtract(m, int(col[0]))
	case n.Op == "quat_mul":
		a, b, err := r.binaryInputs(ctx, id, n)
		if err != nil {
			return nil, err
		}
		return ops.QuatMul(a, b)
	case n.Op == "quat_slerp":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		b, err := r.input(ctx, id, n, "b")
		if err != nil {
			return nil, err
		}
		t, err := r.input(ctx, id, n, "t")
		if err != nil {
			return nil, err
		}
		return ops.QuatSlerp(a, b, t[0])
	case n.Op == "quat_to_mat4":
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return ops.QuatToMat4(a)
	case n.Op == "buffer_load":
		return r.evalBufferLoad(ctx, id, n)
	case n.Op == "texture_load":
		return r.evalTextureLoad(ctx, id, n)
	case n.Op == "array_construct":
		return r.evalArrayConstruct(ctx, id, n)
	case n.Op == "array_extract":
		arr, err := r.input(ctx, id, n, "array")
		if err != nil {
			return nil, err
		}
		idx, err := r.input(ctx, id, n, "index")
		if err != nil {
			return nil, err
		}
		return ops.GetElement(arr, int(idx[0]))
	case n.Op == "array_set":
		return r.evalArraySet(ctx, id, n)
	case n.Op == "struct_construct":
		return r.evalStructConstruct(ctx, id, n)
	case n.Op == "struct_extract":
		return r.evalStructExtract(ctx, id, n)
	case strings.HasPrefix(n.Op, "static_cast_"):
		a, err := r.input(ctx, id, n, "a")
		if err != nil {
			return nil, err
		}
		return castVec(a, strings.TrimPrefix(n.Op, "static_cast_"))
	case n.Op == "builtin_get":
		return r.evalBuiltinGet(n)
	case n.Op == "loop_index":
		return ops.Scalar(float64(r.loopIndex)), nil
	case n.Op == "call_func":
		return r.evalCall(ctx, id, n)
	default:
		return nil, fmt.Errorf("hostjit: node %q has op %q, which has no expression form", id, n.Op)
	}
}

func castVec(a ops.Vec, target string) (ops.Vec, error) {
	switch target {
	case "float", "int", "uint":
		return ops.Scalar(a[0]), nil
	case "bool":
		return ops.BoolVec(a.Bool()), nil
	}
	return nil, fmt.Errorf("hostjit: unknown cast target %q", target)
}

func (r *run) binaryInputs(ctx context.Context, id ir.NodeID, n *ir.Node) (ops.Vec, ops.Vec, error) {
	a, err := r.input(ctx, id, n, "a")
	if err != nil {
		return nil, nil, err
	}
	b, err := r.input(ctx, id, n, "b")
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (r *run) ternary(ctx context.Context, id ir.NodeID, n *ir.Node, pa, pb, pc string, f func(a, b, c ops.Vec) (ops.Vec, error)) (ops.Vec, error) {
	a, err := r.input(ctx, id, n, pa)
	if err != nil {
		return nil, err
	}
	b, err := r.input(ctx, id, n, pb)
	if err != nil {
		return nil, err
	}
	c, err := r.input(ctx, id, n, pc)
	if err != nil {
		return nil, err
	}
	return f(a, b, c)
}

// input resolves node id's named input port: a connected data edge takes
// precedence over a literal/reference carried in Aux.
func (r *run) input(ctx context.Context, id ir.NodeID, n *ir.Node, port string) (ops.Vec, error) {
	if from, _, ok := r.p.fn.DataSource(id, port); ok {
		return r.eval(ctx, from)
	}
	raw, ok := n.Aux[port]
	if !ok {
		return nil, fmt.Errorf("hostjit: node %q has no input bound to port %q", id, port)
	}
	return r.fromAny(ctx, raw, "")
}

func (r *run) fromAny(ctx context.Context, raw any, tag string) (ops.Vec, error) {
	if s, ok := raw.(string); ok {
		base, swizzle, hasSwizzle := ir.SplitSwizzle(s)
		v, err := r.eval(ctx, base)
		if err != nil {
			return nil, err
		}
		if hasSwizzle {
			return ops.Swizzle(v, swizzle)
		}
		return v, nil
	}
	return literalVec(raw, tag)
}

func (r *run) evalVarGet(n *ir.Node) (ops.Vec, error) {
	varID, _ := n.Aux["var"].(string)
	if v, ok := r.frame.locals[varID]; ok {
		return v, nil
	}
	if r.rc.Variables != nil {
		if v, ok := r.rc.Variables.Get(varID); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("hostjit: var_get references unresolved variable %q", varID)
}

func (r *run) evalBufferLoad(ctx context.Context, id ir.NodeID, n *ir.Node) (ops.Vec, error) {
	buf, _ := n.Aux["buffer"].(string)
	idx, err := r.input(ctx, id, n, "index")
	if err != nil {
		return nil, err
	}
	i := int(idx[0])
	data := r.rc.GetBuffer(buf)
	if i < 0 || i >= len(data) {
		return nil, fmt.Errorf("hostjit: buffer %q index %d out of range (size %d)", buf, i, len(data))
	}
	return ops.Scalar(data[i]), nil
}

func (r *run) evalBuiltinGet(n *ir.Node) (ops.Vec, error) {
	name, _ := n.Aux["name"].(string)
	if !ir.BuiltinAvailableOnCPU(name) {
		return nil, fmt.Errorf("GPU Built-in '%s' is not available in CPU context", name)
	}
	if r.rc.Builtins != nil {
		if v, ok := r.rc.Builtins.Get(name); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("hostjit: builtin %q has no bound value", name)
}

func (r *run) evalCall(ctx context.Context, id ir.NodeID, n *ir.Node) (ops.Vec, error) {
	fnName, _ := n.Aux["func"].(string)
	if fnName == "color_mix" {
		src, err := r.input(ctx, id, n, "src")
		if err != nil {
			return nil, err
		}
		dst, err := r.input(ctx, id, n, "dst")
		if err != nil {
			return nil, err
		}
		return ops.ColorMix(dst, src), nil
	}
	args, _ := n.Aux["args"].([]any)
	vecArgs := make([]ops.Vec, 0, len(args))
	for i := range args {
		v, err := r.input(ctx, id, n, fmt.Sprintf("arg%d", i))
		if err != nil {
			return nil, err
		}
		vecArgs = append(vecArgs, v)
	}
	if r.rc.Globals == nil {
		return nil, fmt.Errorf("hostjit: call_func %q requires a Globals facade", fnName)
	}
	return r.rc.Globals.CallOp(ctx, fnName, vecArgs)
}

func (r *run) evalConstructor(ctx context.Context, id ir.NodeID, n *ir.Node) (ops.Vec, error) {
	target := componentWidth(n.Op)

	if broadcast, _ := n.Aux["broadcast"].(bool); broadcast {
		scalar, err := r.input(ctx, id, n, "value")
		if err != nil {
			return nil, err
		}
		return ops.Broadcast(target, scalar[0]), nil
	}

	if groups, ok := n.Aux["channels"].(map[string]any); ok {
		gs := make([]ops.ComponentGroup, 0, len(groups))
		for chans, raw := range groups {
			v, err := r.fromAny(ctx, raw, "")
			if err != nil {
				return nil, err
			}
			gs = append(gs, ops.ComponentGroup{Channels: chans, Value: v})
		}
		sort.Slice(gs, func(i, j int) bool { return gs[i].Channels < gs[j].Channels })
		return ops.Construct(target, nil, gs)
	}

	channelNames := [...]string{"x", "y", "z", "w"}
	positional := make(ops.Vec, target)
	for i := 0; i < target; i++ {
		v, err := r.input(ctx, id, n, channelNames[i])
		if err != nil {
			return nil, err
		}
		positional[i] = v[0]
	}
	return ops.Construct(target, positional, nil)
}

func (r *run) evalMatrixConstructor(ctx context.Context, id ir.NodeID, n *ir.Node) (ops.Vec, error) {
	cols := 3
	if n.Op == "float4x4" {
		cols = 4
	}
	colNames := [...]string{"col0", "col1", "col2", "col3"}
	out := make(ops.Vec, 0, cols*cols)
	for i := 0; i < cols; i++ {
		v, err := r.input(ctx, id, n, colNames[i])
		if err != nil {
			return nil, err
		}
		out = append(out, v...)
	}
	return out, nil
}

func (r *run) evalArrayConstruct(ctx context.Context, id ir.NodeID, n *ir.Node) (ops.Vec, error) {
	elements, _ := n.Aux["elements"].([]any)
	out := make(ops.Vec, 0, len(elements))
	for i, raw := range elements {
		var v ops.Vec
		var err error
		if raw != nil {
			v, err = r.fromAny(ctx, raw, "")
		} else {
			v, err = r.input(ctx, id, n, fmt.Sprintf("elem%d", i))
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v...)
	}
	return out, nil
}

func (r *run) evalArraySet(ctx context.Context, id ir.NodeID, n *ir.Node) (ops.Vec, error) {
	base, err := r.input(ctx, id, n, "array")
	if err != nil {
		return nil, err
	}
	idx, err := r.input(ctx, id, n, "index")
	if err != nil {
		return nil, err
	}
	value, err := r.input(ctx, id, n, "value")
	if err != nil {
		return nil, err
	}
	i := int(idx[0])
	if i < 0 || i >= len(base) {
		return nil, fmt.Errorf("hostjit: array_set index %d out of range (len %d)", i, len(base))
	}
	out := append(ops.Vec(nil), base...)
	out[i] = value[0]
	return out, nil
}

// evalStructExtract reads a named field out of a flattened struct Vec.
// The source struct's type must come either from a directly referenced
// struct_construct node (the common case) or from the Program's
// precomputed node-type map (see CompileTyped) when the reference is
// indirect (e.g. a var_get of a struct-typed variable).
func (r *run) evalStructExtract(ctx context.Context, id ir.NodeID, n *ir.Node) (ops.Vec, error) {
	structRef, _ := n.Aux["struct"].(string)
	field, _ := n.Aux["field"].(string)

	base, _, _ := ir.SplitSwizzle(structRef)
	structType, err := r.structTypeOf(base)
	if err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(structType, "struct:")
	def, ok := r.p.doc.StructByName(name)
	if !ok {
		return nil, fmt.Errorf("hostjit: struct_extract references unknown struct %q", name)
	}

	value, err := r.input(ctx, id, n, "struct")
	if err != nil {
		return nil, err
	}

	offset := 0
	for _, f := range def.Fields {
		w := fieldWidth(f.Type, r.p.doc)
		if f.Name == field {
			if offset+w > len(value) {
				return nil, fmt.Errorf("hostjit: struct_extract field %q of %q overruns its backing value", field, name)
			}
			return append(ops.Vec(nil), value[offset:offset+w]...), nil
		}
		offset += w
	}
	return nil, fmt.Errorf("hostjit: struct %q has no field %q", name, field)
}

func (r *run) structTypeOf(base ir.NodeID) (string, error) {
	if n, ok := r.p.fn.NodeByID(base); ok && n.Op == "struct_construct" {
		if t, ok := n.Aux["type"].(string); ok {
			return t, nil
		}
	}
	if r.p.nodeTypes != nil {
		if t, ok := r.p.nodeTypes[base]; ok {
			return t, nil
		}
	}
	return "", fmt.Errorf("hostjit: cannot determine the struct type of %q; compile with CompileTyped", base)
}

func (r *run) evalTextureLoad(ctx context.Context, id ir.NodeID, n *ir.Node) (ops.Vec, error) {
	tex, _ := n.Aux["texture"].(string)
	coord, err := r.input(ctx, id, n, "coord")
	if err != nil {
		return nil, err
	}
	x, y := int(coord[0]), int(coord[1])
	rows, ok := r.rc.Textures[tex]
	if !ok || y < 0 || y >= len(rows) || x < 0 || x >= len(rows[y]) {
		return nil, fmt.Errorf("hostjit: texture %q has no texel at (%d, %d)", tex, x, y)
	}
	return rows[y][x], nil
}

func (r *run) evalStructConstruct(ctx context.Context, id ir.NodeID, n *ir.Node) (ops.Vec, error) {
	structType, _ := n.Aux["type"].(string)
	name := strings.TrimPrefix(structType, "struct:")
	def, ok := r.p.doc.StructByName(name)
	if !ok {
		return nil, fmt.Errorf("hostjit: struct_construct references unknown struct %q", name)
	}
	fields, _ := n.Aux["fields"].(map[string]any)
	out := make(ops.Vec, 0, len(def.Fields))
	for i, f := range def.Fields {
		raw, ok := fields[f.Name]
		if !ok {
			return nil, fmt.Errorf("hostjit: struct_construct for %q is missing field %q", name, f.Name)
		}
		var v ops.Vec
		var err error
		if raw != nil {
			v, err = r.fromAny(ctx, raw, f.Type)
		} else {
			v, err = r.input(ctx, id, n, fmt.Sprintf("field%d", i))
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v...)
	}
	return out, nil
}
