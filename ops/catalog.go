// Package ops catalogs the built-in op library from spec.md §4.2 and
// supplies the pure CPU evaluation semantics the host JIT (package
// hostjit) runs. The shader generator (package shadergen) does not import
// it: it emits the matching formulas as shader source text.
package ops

// Category groups built-in ops the way spec.md §4.2 groups them.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryLiteralConstructor
	CategoryVector
	CategoryMath
	CategoryMatrixQuaternion
	CategoryMemory
	CategoryCast
	CategoryControlFlow
	CategorySideEffect
	CategoryBuiltinRead
)

var categoryOf = map[string]Category{
	"literal": CategoryLiteralConstructor, "float": CategoryLiteralConstructor,
	"int": CategoryLiteralConstructor, "bool": CategoryLiteralConstructor,
	"float2": CategoryLiteralConstructor, "float3": CategoryLiteralConstructor, "float4": CategoryLiteralConstructor,
	"int2": CategoryLiteralConstructor, "int3": CategoryLiteralConstructor, "int4": CategoryLiteralConstructor,
	"float3x3": CategoryLiteralConstructor, "float4x4": CategoryLiteralConstructor,

	"vec_swizzle": CategoryVector, "vec_get_element": CategoryVector,
	"vec_dot": CategoryVector, "vec_length": CategoryVector,
	"vec_normalize": CategoryVector, "vec_mix": CategoryVector,

	"math_add": CategoryMath, "math_sub": CategoryMath, "math_mul": CategoryMath,
	"math_div": CategoryMath, "math_mod": CategoryMath, "math_mad": CategoryMath,
	"abs": CategoryMath, "floor": CategoryMath, "ceil": CategoryMath, "fract": CategoryMath,
	"sqrt": CategoryMath, "exp": CategoryMath, "log": CategoryMath,
	"sin": CategoryMath, "cos": CategoryMath, "tan": CategoryMath, "tanh": CategoryMath,
	"atan": CategoryMath, "sign": CategoryMath,
	"pow": CategoryMath, "min": CategoryMath, "max": CategoryMath, "clamp": CategoryMath,
	"atan2": CategoryMath, "mix": CategoryMath,
	"lt": CategoryMath, "gt": CategoryMath, "le": CategoryMath, "ge": CategoryMath,
	"eq": CategoryMath, "neq": CategoryMath,
	"and": CategoryMath, "or": CategoryMath, "xor": CategoryMath, "not": CategoryMath,
	"math_pi": CategoryMath, "math_e": CategoryMath,

	"mat_mul": CategoryMatrixQuaternion, "mat_extract": CategoryMatrixQuaternion,
	"quat_mul": CategoryMatrixQuaternion, "quat_slerp": CategoryMatrixQuaternion,
	"quat_to_mat4": CategoryMatrixQuaternion,

	"var_get": CategoryMemory, "var_set": CategoryMemory,
	"buffer_load": CategoryMemory, "buffer_store": CategoryMemory,
	"texture_load": CategoryMemory, "texture_store": CategoryMemory,
	"array_construct": CategoryMemory, "array_extract": CategoryMemory, "array_set": CategoryMemory,
	"struct_construct": CategoryMemory, "struct_extract": CategoryMemory,

	"static_cast_float": CategoryCast, "static_cast_int": CategoryCast,
	"static_cast_uint": CategoryCast, "static_cast_bool": CategoryCast,

	"flow_branch": CategoryControlFlow, "flow_loop": CategoryControlFlow,
	"loop_index": CategoryControlFlow, "func_return": CategoryControlFlow,

	"cmd_dispatch": CategorySideEffect, "cmd_draw": CategorySideEffect,
	"cmd_resize_resource": CategorySideEffect, "cmd_sync_to_cpu": CategorySideEffect,
	"cmd_wait_cpu_sync": CategorySideEffect, "call_func": CategorySideEffect,

	"builtin_get": CategoryBuiltinRead,
}

// Classify returns the op category for op, or CategoryUnknown if op is
// not a recognized built-in.
func Classify(op string) Category {
	if c, ok := categoryOf[op]; ok {
		return c
	}
	return CategoryUnknown
}

// IsKnown reports whether op names a built-in from spec.md §4.2.
func IsKnown(op string) bool {
	_, ok := categoryOf[op]
	return ok
}
