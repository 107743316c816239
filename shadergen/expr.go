package shadergen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/shadergraph/ir"
)

// lowerExpr lowers node id's data result to a shader expression,
// resolving through the memoization table: if id's output feeds more
// than one consumer, the first lowering is captured in a `let` temporary
// and subsequent calls simply return that temporary's name.
func (w *Writer) lowerExpr(id ir.NodeID) (string, error) {
	if name, ok := w.memo[id]; ok {
		return name, nil
	}

	n, ok := w.fn.NodeByID(id)
	if !ok {
		return "", fmt.Errorf("shadergen: expression references unknown node %q", id)
	}

	expr, err := w.lowerExprKind(id, n)
	if err != nil {
		return "", err
	}

	if w.useCount[id] > 1 {
		tmp := w.freshTemp()
		w.writeLine(fmt.Sprintf("let %s = %s;", tmp, expr))
		w.memo[id] = tmp
		return tmp, nil
	}
	return expr, nil
}

func (w *Writer) freshTemp() string {
	w.tempCount++
	return fmt.Sprintf("_t%d", w.tempCount)
}

func (w *Writer) nodeType(id ir.NodeID) string {
	if t, ok := w.opts.NodeTypes[id]; ok {
		return t
	}
	return "float"
}

func (w *Writer) lowerExprKind(id ir.NodeID, n *ir.Node) (string, error) {
	switch {
	case n.Op == "literal":
		tag, _ := n.Aux["type"].(string)
		return literalText(n.Aux["value"], tag)
	case n.Op == "float", n.Op == "int", n.Op == "bool":
		return literalText(n.Aux["value"], n.Op)
	case n.Op == "float2" || n.Op == "float3" || n.Op == "float4" ||
		n.Op == "int2" || n.Op == "int3" || n.Op == "int4":
		return w.lowerConstructor(id, n)
	case n.Op == "float3x3", n.Op == "float4x4":
		return w.lowerMatrixConstructor(id, n)
	case n.Op == "var_get":
		return w.lowerVarGet(n)
	case n.Op == "vec_swizzle":
		vec, err := w.resolveInput(id, n, "vec", w.nodeType(id))
		if err != nil {
			return "", err
		}
		channels, _ := n.Aux["channels"].(string)
		return fmt.Sprintf("%s.%s", vec, channels), nil
	case n.Op == "vec_get_element":
		vec, err := w.resolveInput(id, n, "vec", w.nodeType(id))
		if err != nil {
			return "", err
		}
		idx, err := w.resolveInput(id, n, "index", "int")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%s]", vec, idx), nil
	case n.Op == "vec_dot":
		return w.binaryCall(id, n, "dot")
	case n.Op == "vec_length":
		a, err := w.resolveInput(id, n, "a", w.nodeType(id))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("length(%s)", a), nil
	case n.Op == "vec_normalize":
		a, err := w.resolveInput(id, n, "a", w.nodeType(id))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("normalize(%s)", a), nil
	case n.Op == "vec_mix":
		return w.ternaryCall(id, n, "mix", "a", "b", "t")
	case n.Op == "math_add":
		return w.infixOp(id, n, "+")
	case n.Op == "math_sub":
		return w.infixOp(id, n, "-")
	case n.Op == "math_mul":
		return w.infixOp(id, n, "*")
	case n.Op == "math_div":
		return w.infixOp(id, n, "/")
	case n.Op == "math_mod":
		return w.modExpr(id, n)
	case n.Op == "math_mad":
		return w.ternaryCall(id, n, "", "a", "b", "c")
	case n.Op == "abs", n.Op == "floor", n.Op == "ceil", n.Op == "sqrt", n.Op == "exp",
		n.Op == "log", n.Op == "sin", n.Op == "cos", n.Op == "tan", n.Op == "tanh",
		n.Op == "sign":
		return w.unaryCall(id, n, n.Op)
	case n.Op == "fract":
		return w.unaryCall(id, n, "fract")
	case n.Op == "atan":
		return w.unaryCall(id, n, "atan")
	case n.Op == "pow":
		return w.binaryCall(id, n, "pow")
	case n.Op == "min":
		return w.binaryCall(id, n, "min")
	case n.Op == "max":
		return w.binaryCall(id, n, "max")
	case n.Op == "atan2":
		return w.binaryCall(id, n, "atan2")
	case n.Op == "clamp":
		return w.ternaryCall(id, n, "clamp", "x", "lo", "hi")
	case n.Op == "mix":
		return w.ternaryCall(id, n, "mix", "a", "b", "t")
	case n.Op == "lt", n.Op == "gt", n.Op == "le", n.Op == "ge", n.Op == "eq", n.Op == "neq":
		return w.comparison(id, n)
	case n.Op == "and", n.Op == "or", n.Op == "xor":
		return w.logicalBinary(id, n)
	case n.Op == "not":
		a, err := w.resolveInput(id, n, "a", "float")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("select(1.0, 0.0, (%s) != 0.0)", a), nil
	case n.Op == "math_pi":
		return "3.14159265359", nil
	case n.Op == "math_e":
		return "2.71828182846", nil
	case n.Op == "mat_mul":
		return w.binaryCall(id, n, "")
	case n.Op == "mat_extract":
		m, err := w.resolveInput(id, n, "m", w.nodeType(id))
		if err != nil {
			return "", err
		}
		col, err := w.resolveInput(id, n, "col", "int")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%s]", m, col), nil
	case n.Op == "quat_mul", n.Op == "quat_slerp", n.Op == "quat_to_mat4":
		return "", fmt.Errorf("shadergen: %s is not yet lowerable on this target", n.Op)
	case n.Op == "buffer_load":
		return w.lowerBufferLoad(id, n)
	case n.Op == "texture_load":
		return w.lowerTextureLoad(id, n)
	case n.Op == "array_construct":
		return w.lowerArrayConstruct(id, n)
	case n.Op == "array_set":
		return w.lowerArraySet(id, n)
	case n.Op == "struct_construct":
		return w.lowerStructConstruct(id, n)
	case n.Op == "array_extract":
		arr, err := w.resolveInput(id, n, "array", w.nodeType(id))
		if err != nil {
			return "", err
		}
		idx, err := w.resolveInput(id, n, "index", "int")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%s]", arr, idx), nil
	case n.Op == "struct_extract":
		st, err := w.resolveInput(id, n, "struct", w.nodeType(id))
		if err != nil {
			return "", err
		}
		field, _ := n.Aux["field"].(string)
		return fmt.Sprintf("%s.%s", st, field), nil
	case strings.HasPrefix(n.Op, "static_cast_"):
		return w.lowerCast(id, n)
	case n.Op == "builtin_get":
		return w.lowerBuiltinGet(n)
	case n.Op == "loop_index":
		return w.currentLoopVar, nil
	case n.Op == "call_func":
		return w.lowerCallExpr(id, n)
	default:
		return "", fmt.Errorf("shadergen: node %q has op %q, which has no expression form", id, n.Op)
	}
}

// resolveInput resolves the value feeding node id's named input port:
// first a connected data edge, then a literal or plain/swizzled node
// reference carried directly in Aux.
func (w *Writer) resolveInput(id ir.NodeID, n *ir.Node, port, expectedType string) (string, error) {
	if from, _, ok := w.fn.DataSource(id, port); ok {
		return w.lowerExpr(from)
	}
	raw, ok := n.Aux[port]
	if !ok {
		return "", fmt.Errorf("shadergen: node %q has no input bound to port %q", id, port)
	}
	return w.exprFromAny(raw, expectedType)
}

// exprFromAny renders a raw Aux value as a shader expression: a string is
// treated as a (possibly inline-swizzled) node reference; anything else
// is rendered as a literal of expectedType.
func (w *Writer) exprFromAny(raw any, expectedType string) (string, error) {
	if s, ok := raw.(string); ok {
		base, swizzle, hasSwizzle := ir.SplitSwizzle(s)
		expr, err := w.lowerExpr(base)
		if err != nil {
			return "", err
		}
		if hasSwizzle {
			return fmt.Sprintf("%s.%s", expr, swizzle), nil
		}
		return expr, nil
	}
	return literalText(raw, expectedType)
}

func (w *Writer) unaryCall(id ir.NodeID, n *ir.Node, fn string) (string, error) {
	a, err := w.resolveInput(id, n, "a", w.nodeType(id))
	if err != nil {
		a, err = w.resolveInput(id, n, "x", w.nodeType(id))
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s(%s)", fn, a), nil
}

func (w *Writer) binaryCall(id ir.NodeID, n *ir.Node, fn string) (string, error) {
	a, err := w.resolveInput(id, n, "a", w.nodeType(id))
	if err != nil {
		return "", err
	}
	b, err := w.resolveInput(id, n, "b", w.nodeType(id))
	if err != nil {
		return "", err
	}
	if fn == "" {
		return fmt.Sprintf("(%s * %s)", a, b), nil
	}
	return fmt.Sprintf("%s(%s, %s)", fn, a, b), nil
}

func (w *Writer) ternaryCall(id ir.NodeID, n *ir.Node, fn string, pa, pb, pc string) (string, error) {
	a, err := w.resolveInput(id, n, pa, w.nodeType(id))
	if err != nil {
		return "", err
	}
	b, err := w.resolveInput(id, n, pb, w.nodeType(id))
	if err != nil {
		return "", err
	}
	c, err := w.resolveInput(id, n, pc, w.nodeType(id))
	if err != nil {
		return "", err
	}
	if fn == "" {
		return fmt.Sprintf("(%s * %s + %s)", a, b, c), nil
	}
	return fmt.Sprintf("%s(%s, %s, %s)", fn, a, b, c), nil
}

func (w *Writer) infixOp(id ir.NodeID, n *ir.Node, op string) (string, error) {
	a, err := w.resolveInput(id, n, "a", w.nodeType(id))
	if err != nil {
		return "", err
	}
	b, err := w.resolveInput(id, n, "b", w.nodeType(id))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s %s)", a, op, b), nil
}

// modExpr implements mod(a,b) = a - b*floor(a/b), per spec.md §4.3.
func (w *Writer) modExpr(id ir.NodeID, n *ir.Node) (string, error) {
	a, err := w.resolveInput(id, n, "a", w.nodeType(id))
	if err != nil {
		return "", err
	}
	b, err := w.resolveInput(id, n, "b", w.nodeType(id))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s - %s * floor(%s / %s))", a, b, a, b), nil
}

// comparison emits select(0.0, 1.0, cmp) so results compose as scalars,
// per spec.md §4.3.
func (w *Writer) comparison(id ir.NodeID, n *ir.Node) (string, error) {
	a, err := w.resolveInput(id, n, "a", w.nodeType(id))
	if err != nil {
		return "", err
	}
	b, err := w.resolveInput(id, n, "b", w.nodeType(id))
	if err != nil {
		return "", err
	}
	ops := map[string]string{"lt": "<", "gt": ">", "le": "<=", "ge": ">=", "eq": "==", "neq": "!="}
	return fmt.Sprintf("select(0.0, 1.0, %s %s %s)", a, ops[n.Op], b), nil
}

func (w *Writer) logicalBinary(id ir.NodeID, n *ir.Node) (string, error) {
	a, err := w.resolveInput(id, n, "a", "float")
	if err != nil {
		return "", err
	}
	b, err := w.resolveInput(id, n, "b", "float")
	if err != nil {
		return "", err
	}
	ops := map[string]string{"and": "&&", "or": "||", "xor": "!="}
	op := ops[n.Op]
	return fmt.Sprintf("select(0.0, 1.0, ((%s) != 0.0) %s ((%s) != 0.0))", a, op, b), nil
}

func (w *Writer) lowerVarGet(n *ir.Node) (string, error) {
	varID, _ := n.Aux["var"].(string)
	if _, ok := w.fn.LocalVarByID(varID); ok {
		return sanitizeIdent(varID), nil
	}
	offset, ok := w.opts.VarMap[varID]
	if !ok {
		return "", fmt.Errorf("shadergen: var_get references unknown variable %q", varID)
	}
	vtype := w.opts.VarTypes[varID]
	return w.globalsReadExpr(offset, vtype), nil
}

// globalsReadExpr assembles a read of a (possibly multi-component)
// global variable out of the flat globals.data array, per the glossary's
// globals-buffer contract.
func (w *Writer) globalsReadExpr(offset int, vtype string) string {
	switch vtype {
	case "", "float":
		return fmt.Sprintf("globals.data[%d]", offset)
	case "int":
		return fmt.Sprintf("i32(globals.data[%d])", offset)
	case "uint":
		return fmt.Sprintf("u32(globals.data[%d])", offset)
	case "bool":
		return fmt.Sprintf("(globals.data[%d] != 0.0)", offset)
	case "float2", "float3", "float4":
		n := componentWidthOf(vtype)
		parts := make([]string, n)
		for i := 0; i < n; i++ {
			parts[i] = fmt.Sprintf("globals.data[%d]", offset+i)
		}
		return fmt.Sprintf("%s(%s)", shaderTypeName(vtype), strings.Join(parts, ", "))
	default:
		return fmt.Sprintf("globals.data[%d]", offset)
	}
}

func componentWidthOf(tag string) int {
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
	}
	return 1
}

func (w *Writer) lowerBufferLoad(id ir.NodeID, n *ir.Node) (string, error) {
	buf, _ := n.Aux["buffer"].(string)
	idx, err := w.resolveInput(id, n, "index", "int")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.data[%s]", sanitizeIdent(buf), idx), nil
}

func (w *Writer) lowerTextureLoad(id ir.NodeID, n *ir.Node) (string, error) {
	tex, _ := n.Aux["texture"].(string)
	coord, err := w.resolveInput(id, n, "coord", "int2")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("textureLoad(%s, %s)", sanitizeIdent(tex), coord), nil
}

func (w *Writer) lowerCast(id ir.NodeID, n *ir.Node) (string, error) {
	target := strings.TrimPrefix(n.Op, "static_cast_")
	a, err := w.resolveInput(id, n, "a", "float")
	if err != nil {
		return "", err
	}
	switch target {
	case "float":
		return fmt.Sprintf("f32(%s)", a), nil
	case "int":
		return fmt.Sprintf("i32(%s)", a), nil
	case "uint":
		return fmt.Sprintf("u32(%s)", a), nil
	case "bool":
		return fmt.Sprintf("((%s) != 0.0)", a), nil
	}
	return "", fmt.Errorf("shadergen: unknown cast target %q", target)
}

func (w *Writer) lowerBuiltinGet(n *ir.Node) (string, error) {
	name, _ := n.Aux["name"].(string)
	switch name {
	case "global_invocation_id":
		return "vec3<i32>(global_invocation_id)", nil
	case "vertex_index", "instance_index", "local_invocation_index":
		return name, nil
	case "position":
		return "position", nil
	case "frag_coord":
		return "frag_coord", nil
	case "front_facing":
		return "front_facing", nil
	case "local_invocation_id", "workgroup_id", "num_workgroups":
		return name, nil
	default:
		return "", fmt.Errorf("GPU Built-in %q is not available on this stage", name)
	}
}

func (w *Writer) lowerCallExpr(id ir.NodeID, n *ir.Node) (string, error) {
	fnName, _ := n.Aux["func"].(string)
	if fnName == "color_mix" {
		src, err := w.resolveInput(id, n, "src", "float4")
		if err != nil {
			return "", err
		}
		dst, err := w.resolveInput(id, n, "dst", "float4")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("color_mix(%s, %s)", src, dst), nil
	}
	args, _ := n.Aux["args"].([]any)
	parts := make([]string, 0, len(args))
	for i := range args {
		a, err := w.resolveInput(id, n, fmt.Sprintf("arg%d", i), "float")
		if err != nil {
			return "", err
		}
		parts = append(parts, a)
	}
	return fmt.Sprintf("%s(%s)", sanitizeIdent(fnName), strings.Join(parts, ", ")), nil
}

// lowerConstructor builds a vector constructor call. WGSL vector
// constructors accept a flat argument list whose total component count
// equals the target's, so positional args, a single broadcast scalar, and
// concatenated component-group args all lower to the same shape: an
// ordered argument list joined into "vecN<T>(args...)".
func (w *Writer) lowerConstructor(id ir.NodeID, n *ir.Node) (string, error) {
	target := componentWidthOf(n.Op)
	scalarType := "float"
	if strings.HasPrefix(n.Op, "int") {
		scalarType = "int"
	}

	if broadcast, _ := n.Aux["broadcast"].(bool); broadcast {
		scalar, err := w.resolveInput(id, n, "value", scalarType)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s)", shaderTypeName(n.Op), scalar), nil
	}

	if groups, ok := n.Aux["channels"].(map[string]any); ok {
		type group struct {
			start int
			text  string
		}
		gs := make([]group, 0, len(groups))
		for chans, raw := range groups {
			idx, err := firstChannelIndex(chans)
			if err != nil {
				return "", fmt.Errorf("shadergen: node %q: %w", id, err)
			}
			text, err := w.exprFromAny(raw, scalarType)
			if err != nil {
				return "", err
			}
			gs = append(gs, group{start: idx, text: text})
		}
		sort.Slice(gs, func(i, j int) bool { return gs[i].start < gs[j].start })
		parts := make([]string, len(gs))
		for i, g := range gs {
			parts[i] = g.text
		}
		return fmt.Sprintf("%s(%s)", shaderTypeName(n.Op), strings.Join(parts, ", ")), nil
	}

	// Positional form: x, y, z, w keys in order, up to target.
	channelNames := [...]string{"x", "y", "z", "w"}
	parts := make([]string, 0, target)
	for i := 0; i < target; i++ {
		text, err := w.resolveInput(id, n, channelNames[i], scalarType)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return fmt.Sprintf("%s(%s)", shaderTypeName(n.Op), strings.Join(parts, ", ")), nil
}

func firstChannelIndex(channels string) (int, error) {
	if channels == "" {
		return 0, fmt.Errorf("empty channel group")
	}
	order := "xyzw"
	c := channels[0]
	if alias, ok := map[byte]byte{'r': 'x', 'g': 'y', 'b': 'z', 'a': 'w'}[c]; ok {
		c = alias
	}
	idx := strings.IndexByte(order, c)
	if idx < 0 {
		return 0, fmt.Errorf("invalid channel %q", channels)
	}
	return idx, nil
}

// lowerArrayConstruct builds an array<T, N> literal from an ordered list
// of element values/refs carried in Aux["elements"].
func (w *Writer) lowerArrayConstruct(id ir.NodeID, n *ir.Node) (string, error) {
	arrType, _ := n.Aux["type"].(string)
	elemType := arrayElemType(arrType)
	elements, _ := n.Aux["elements"].([]any)
	parts := make([]string, len(elements))
	for i, raw := range elements {
		text, err := w.elementExprFromAny(id, n, i, raw, elemType)
		if err != nil {
			return "", err
		}
		parts[i] = text
	}
	return fmt.Sprintf("%s(%s)", shaderTypeName(arrType), strings.Join(parts, ", ")), nil
}

// elementExprFromAny resolves one array_construct element: either an
// Aux["elements"][i] literal/reference, or (if that slot carries no
// usable value) a connected data edge on port "elem<i>".
func (w *Writer) elementExprFromAny(id ir.NodeID, n *ir.Node, i int, raw any, elemType string) (string, error) {
	if raw != nil {
		return w.exprFromAny(raw, elemType)
	}
	return w.resolveInput(id, n, fmt.Sprintf("elem%d", i), elemType)
}

// lowerArraySet builds a copy of the source array with one element
// replaced, materialized as a local temporary mutated in place (WGSL has
// no array literal "with one field changed" syntax).
func (w *Writer) lowerArraySet(id ir.NodeID, n *ir.Node) (string, error) {
	arrType := w.nodeType(id)
	base, err := w.resolveInput(id, n, "array", arrType)
	if err != nil {
		return "", err
	}
	idx, err := w.resolveInput(id, n, "index", "int")
	if err != nil {
		return "", err
	}
	value, err := w.resolveInput(id, n, "value", arrayElemType(arrType))
	if err != nil {
		return "", err
	}
	tmp := w.freshTemp()
	w.writeLine(fmt.Sprintf("var %s = %s;", tmp, base))
	w.writeLine(fmt.Sprintf("%s[%s] = %s;", tmp, idx, value))
	return tmp, nil
}

// lowerStructConstruct builds a struct literal with fields in the
// declared struct's order, so the emitted positional constructor call
// matches WGSL's field order requirement.
func (w *Writer) lowerStructConstruct(id ir.NodeID, n *ir.Node) (string, error) {
	structType, _ := n.Aux["type"].(string)
	name := strings.TrimPrefix(structType, "struct:")
	def, ok := w.doc.StructByName(name)
	if !ok {
		return "", fmt.Errorf("shadergen: struct_construct references unknown struct %q", name)
	}
	fields, _ := n.Aux["fields"].(map[string]any)
	parts := make([]string, len(def.Fields))
	for i, f := range def.Fields {
		raw, ok := fields[f.Name]
		if !ok {
			return "", fmt.Errorf("shadergen: struct_construct for %q is missing field %q", name, f.Name)
		}
		text, err := w.elementExprFromAny(id, n, i, raw, f.Type)
		if err != nil {
			return "", err
		}
		parts[i] = text
	}
	return fmt.Sprintf("%s(%s)", shaderTypeName(structType), strings.Join(parts, ", ")), nil
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

func (w *Writer) lowerMatrixConstructor(id ir.NodeID, n *ir.Node) (string, error) {
	target := componentWidthOf(n.Op) // 9 or 16, unused directly; columns below
	cols := 3
	if n.Op == "float4x4" {
		cols = 4
	}
	_ = target
	parts := make([]string, 0, cols)
	colNames := [...]string{"col0", "col1", "col2", "col3"}
	for i := 0; i < cols; i++ {
		text, err := w.resolveInput(id, n, colNames[i], fmt.Sprintf("float%d", cols))
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return fmt.Sprintf("%s(%s)", shaderTypeName(n.Op), strings.Join(parts, ", ")), nil
}
