package ir

import (
	"fmt"
	"strings"
)

// TypeEnv supplies the external type information type inference needs:
// declared variable types (locals and document-level Inputs) and resource
// element/format types. gpuharness.Harness builds one from a Document's
// locals, inputs and buffer resources.
type TypeEnv struct {
	VarTypes      map[string]string // variable id -> type tag
	ResourceTypes map[ResourceID]string
	StructOf      func(name string) (*StructDef, bool)
}

// builtinTypes is the fixed return type of each builtin_get name, per
// spec.md §4.2.
var builtinTypes = map[string]string{
	"time": "float", "delta_time": "float", "bpm": "float",
	"beat_number": "int", "beat_delta": "float",
	"position": "float4", "vertex_index": "uint", "instance_index": "uint",
	"global_invocation_id": "int3", "local_invocation_id": "int3",
	"workgroup_id": "int3", "local_invocation_index": "uint",
	"num_workgroups": "int3", "frag_coord": "float4", "front_facing": "bool",
}

// cpuAllowedBuiltins is the subset of builtinTypes readable from a CPU
// backend; the rest are GPU-only and fail per spec.md §4.2/§7.
var cpuAllowedBuiltins = map[string]bool{
	"time": true, "delta_time": true, "bpm": true, "beat_number": true, "beat_delta": true,
}

// BuiltinAvailableOnCPU reports whether the named builtin may be read
// from a CPU backend.
func BuiltinAvailableOnCPU(name string) bool {
	return cpuAllowedBuiltins[name]
}

// TypeError is returned by Infer for an unresolvable port type, carrying
// the node id and offending port per spec.md §7.
type TypeError struct {
	Node NodeID
	Port string
	Msg  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("node %q, port %q: %s", e.Node, e.Port, e.Msg)
}

// Inferer computes a type per node id within a single function, resolving
// data-edge chains and inline swizzle suffixes ("nodeId.xyz").
type Inferer struct {
	doc   *Document
	fn    *Function
	env   TypeEnv
	cache map[NodeID]string
	stack map[NodeID]bool
}

// NewInferer prepares type inference for fn within doc using env.
func NewInferer(doc *Document, fn *Function, env TypeEnv) *Inferer {
	return &Inferer{doc: doc, fn: fn, env: env, cache: map[NodeID]string{}, stack: map[NodeID]bool{}}
}

// InferAll computes the type of every data-producing node in the
// function, returning a map from node id to type tag, or the first
// TypeError encountered. Pure side-effect nodes (var_set, buffer_store,
// texture_store, func_return, and the cmd_*/flow_* ops) have no data
// "result" to infer and are skipped; call_func is the one executable op
// that may also be a data source, so it is still attempted.
func (inf *Inferer) InferAll() (map[NodeID]string, error) {
	for _, n := range inf.fn.Nodes {
		if IsExecutable(n.Op) && n.Op != "call_func" {
			continue
		}
		if _, err := inf.NodeType(n.ID); err != nil {
			return nil, err
		}
	}
	return inf.cache, nil
}

// NodeType returns the data-output ("result") type of node id, resolving
// through cached results and detecting reference cycles.
func (inf *Inferer) NodeType(id NodeID) (string, error) {
	if t, ok := inf.cache[id]; ok {
		return t, nil
	}
	if inf.stack[id] {
		return "", &TypeError{Node: id, Port: "result", Msg: "type depends on itself"}
	}
	inf.stack[id] = true
	defer delete(inf.stack, id)

	t, err := inf.inferNode(id)
	if err != nil {
		return "", err
	}
	inf.cache[id] = t
	return t, nil
}

// RefType resolves the type of a data-source reference, which may carry
// an inline swizzle suffix like "srcNode.xyz". Per the design note in
// spec.md §9, the base node's type is looked up first, then its component
// count and base scalar kind are adjusted to match the swizzle length.
func (inf *Inferer) RefType(ref string) (string, error) {
	base, swizzle, hasSwizzle := SplitSwizzle(ref)
	baseType, err := inf.NodeType(base)
	if err != nil {
		return "", err
	}
	if !hasSwizzle {
		return baseType, nil
	}
	return swizzleType(baseType, swizzle)
}

// swizzleType adjusts a vector type tag's component count/scalar kind to
// the length and implied kind of a swizzle suffix.
func swizzleType(baseType, swizzle string) (string, error) {
	scalarPrefix := "float"
	if strings.HasPrefix(baseType, "int") {
		scalarPrefix = "int"
	}
	n := len(swizzle)
	if n < 1 || n > 4 {
		return "", fmt.Errorf("invalid swizzle %q", swizzle)
	}
	if n == 1 {
		return scalarPrefix, nil
	}
	return fmt.Sprintf("%s%d", scalarPrefix, n), nil
}

func (inf *Inferer) inferNode(id NodeID) (string, error) {
	n, ok := inf.fn.NodeByID(id)
	if !ok {
		return "", &TypeError{Node: id, Port: "result", Msg: "node does not exist"}
	}

	switch {
	case n.Op == "literal":
		if t, ok := n.Aux["type"].(string); ok {
			return t, nil
		}
		return "float", nil
	case n.Op == "float", n.Op == "int", n.Op == "bool":
		return n.Op, nil
	case n.Op == "float2" || n.Op == "float3" || n.Op == "float4" ||
		n.Op == "int2" || n.Op == "int3" || n.Op == "int4":
		return n.Op, nil
	case n.Op == "float3x3", n.Op == "float4x4":
		return n.Op, nil
	case n.Op == "var_get":
		varID, _ := n.Aux["var"].(string)
		if t, ok := inf.env.VarTypes[varID]; ok {
			return t, nil
		}
		if lv, ok := inf.fn.LocalVarByID(varID); ok {
			return lv.Type, nil
		}
		return "", &TypeError{Node: id, Port: "var", Msg: fmt.Sprintf("unknown variable %q", varID)}
	case n.Op == "vec_swizzle":
		src, _ := n.Aux["vec"].(string)
		channels, _ := n.Aux["channels"].(string)
		var base string
		var err error
		if from, _, ok := inf.fn.DataSource(id, "vec"); ok {
			base, err = inf.NodeType(from)
		} else {
			base, err = inf.RefType(src)
		}
		if err != nil {
			return "", err
		}
		return swizzleType(base, channels)
	case n.Op == "vec_get_element":
		src, _ := n.Aux["vec"].(string)
		var base string
		var err error
		if from, _, ok := inf.fn.DataSource(id, "vec"); ok {
			base, err = inf.NodeType(from)
		} else {
			base, err = inf.RefType(src)
		}
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(base, "int") {
			return "int", nil
		}
		return "float", nil
	case n.Op == "vec_dot", n.Op == "vec_length":
		return "float", nil
	case n.Op == "vec_normalize", n.Op == "vec_mix":
		return inf.firstInputType(id, "a", "vec")
	case strings.HasPrefix(n.Op, "math_") && n.Op != "math_pi" && n.Op != "math_e":
		return inf.mathResultType(id, n)
	case n.Op == "abs", n.Op == "floor", n.Op == "ceil", n.Op == "fract", n.Op == "sqrt",
		n.Op == "exp", n.Op == "log", n.Op == "sin", n.Op == "cos", n.Op == "tan",
		n.Op == "tanh", n.Op == "atan", n.Op == "sign":
		return inf.firstInputType(id, "x", "a")
	case n.Op == "pow", n.Op == "min", n.Op == "max", n.Op == "clamp", n.Op == "atan2", n.Op == "mix":
		return inf.firstInputType(id, "a", "x")
	case n.Op == "lt", n.Op == "gt", n.Op == "le", n.Op == "ge", n.Op == "eq", n.Op == "neq",
		n.Op == "and", n.Op == "or", n.Op == "xor", n.Op == "not":
		return "float", nil // 0/1 scalar, per spec.md §4.3 comparisons
	case n.Op == "math_pi", n.Op == "math_e":
		return "float", nil
	case n.Op == "mat_mul":
		return inf.firstInputType(id, "a", "m")
	case n.Op == "mat_extract":
		return "float4", nil
	case n.Op == "quat_mul", n.Op == "quat_slerp":
		return "float4", nil
	case n.Op == "quat_to_mat4":
		return "float4x4", nil
	case n.Op == "buffer_load":
		resID, _ := n.Aux["buffer"].(string)
		if t, ok := inf.env.ResourceTypes[ResourceID(resID)]; ok {
			return t, nil
		}
		return "", &TypeError{Node: id, Port: "buffer", Msg: fmt.Sprintf("unknown resource %q", resID)}
	case n.Op == "texture_load":
		return "float4", nil
	case n.Op == "array_construct":
		if t, ok := n.Aux["type"].(string); ok {
			return t, nil
		}
		return "", &TypeError{Node: id, Port: "type", Msg: "array_construct requires an explicit element/array type"}
	case n.Op == "array_extract":
		arrType, err := inf.firstInputType(id, "array")
		if err != nil {
			return "", err
		}
		inner := strings.TrimPrefix(arrType, "array<")
		comma := strings.LastIndexByte(inner, ',')
		if strings.HasPrefix(arrType, "array<") && comma > 0 {
			return inner[:comma], nil
		}
		return "", &TypeError{Node: id, Port: "array", Msg: fmt.Sprintf("cannot infer element type of %q", arrType)}
	case n.Op == "struct_construct":
		if t, ok := n.Aux["type"].(string); ok {
			return t, nil
		}
		return "", &TypeError{Node: id, Port: "type", Msg: "struct_construct requires an explicit struct type"}
	case n.Op == "struct_extract":
		structRef, _ := n.Aux["struct"].(string)
		field, _ := n.Aux["field"].(string)
		base, err := inf.RefType(structRef)
		if err != nil {
			return "", err
		}
		name := strings.TrimPrefix(base, "struct:")
		sd, ok := inf.env.StructOf(name)
		if !ok {
			return "", &TypeError{Node: id, Port: "struct", Msg: fmt.Sprintf("unknown struct %q", name)}
		}
		for _, f := range sd.Fields {
			if f.Name == field {
				return f.Type, nil
			}
		}
		return "", &TypeError{Node: id, Port: "field", Msg: fmt.Sprintf("struct %q has no field %q", name, field)}
	case strings.HasPrefix(n.Op, "static_cast_"):
		return strings.TrimPrefix(n.Op, "static_cast_"), nil
	case n.Op == "builtin_get":
		name, _ := n.Aux["name"].(string)
		if t, ok := builtinTypes[name]; ok {
			return t, nil
		}
		return "", &TypeError{Node: id, Port: "name", Msg: fmt.Sprintf("unknown builtin %q", name)}
	case n.Op == "loop_index":
		return "int", nil
	case n.Op == "call_func":
		if t, ok := n.Aux["resultType"].(string); ok {
			return t, nil
		}
		return "float", nil
	default:
		// Executable/side-effect ops (cmd_*, var_set, func_return, ...) do
		// not produce a data "result"; callers should not be asking for
		// their type.
		return "", &TypeError{Node: id, Port: "result", Msg: fmt.Sprintf("op %q has no data result", n.Op)}
	}
}

// mathResultType resolves math_add/sub/mul/div/mod/mad's result type as
// the broader of its "a"/"b" operand types, mirroring shader/host
// broadcasting (a scalar combined with a vector yields the vector type).
func (inf *Inferer) mathResultType(id NodeID, n *Node) (string, error) {
	aType, errA := inf.firstInputType(id, "a")
	bType, errB := inf.firstInputType(id, "b")
	if errA != nil && errB != nil {
		return "", errA
	}
	if errA != nil {
		return bType, nil
	}
	if errB != nil {
		return aType, nil
	}
	if componentWidth(aType) >= componentWidth(bType) {
		return aType, nil
	}
	return bType, nil
}

func componentWidth(t string) int {
	switch {
	case strings.HasSuffix(t, "2"):
		return 2
	case strings.HasSuffix(t, "3") && !strings.HasSuffix(t, "x3"):
		return 3
	case strings.HasSuffix(t, "4") && !strings.HasSuffix(t, "x4"):
		return 4
	default:
		return 1
	}
}

// firstInputType returns the type of the first named port (tried in
// order) that has a connected data edge or literal, resolving through
// RefType so inline swizzle suffixes apply.
func (inf *Inferer) firstInputType(id NodeID, ports ...string) (string, error) {
	for _, port := range ports {
		if from, _, ok := inf.fn.DataSource(id, port); ok {
			return inf.NodeType(from)
		}
		n, _ := inf.fn.NodeByID(id)
		if ref, ok := n.Aux[port].(string); ok && strings.Contains(ref, ".") {
			return inf.RefType(ref)
		}
	}
	return "", &TypeError{Node: id, Port: ports[0], Msg: "no connected input to infer type from"}
}
