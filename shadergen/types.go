package shadergen

import (
	"fmt"
	"strconv"
	"strings"
)

// shaderTypeName maps an IR type tag to its shader type spelling.
func shaderTypeName(tag string) string {
	switch tag {
	case "float":
		return "f32"
	case "int":
		return "i32"
	case "uint":
		return "u32"
	case "bool":
		return "bool"
	case "float2":
		return "vec2<f32>"
	case "float3":
		return "vec3<f32>"
	case "float4":
		return "vec4<f32>"
	case "int2":
		return "vec2<i32>"
	case "int3":
		return "vec3<i32>"
	case "int4":
		return "vec4<i32>"
	case "float3x3":
		return "mat3x3<f32>"
	case "float4x4":
		return "mat4x4<f32>"
	}
	if strings.HasPrefix(tag, "array<") && strings.HasSuffix(tag, ">") {
		inner := tag[len("array<") : len(tag)-1]
		comma := strings.LastIndexByte(inner, ',')
		if comma > 0 {
			elem, count := inner[:comma], inner[comma+1:]
			if count == "0" {
				return fmt.Sprintf("array<%s>", shaderTypeName(elem))
			}
			return fmt.Sprintf("array<%s, %s>", shaderTypeName(elem), count)
		}
	}
	if strings.HasPrefix(tag, "struct:") {
		return sanitizeIdent(strings.TrimPrefix(tag, "struct:"))
	}
	return "f32"
}

func textureFormatName(format string) string {
	switch format {
	case "rgba8":
		return "rgba8unorm"
	case "r32f":
		return "r32float"
	case "rgba32f":
		return "rgba32float"
	default:
		return "rgba8unorm"
	}
}

// zeroValue renders the shader-source zero value of a type tag.
func zeroValue(tag string) string {
	switch tag {
	case "float":
		return "0.0"
	case "int":
		return "0"
	case "uint":
		return "0u"
	case "bool":
		return "false"
	case "float2", "float3", "float4":
		return fmt.Sprintf("%s()", shaderTypeName(tag))
	case "int2", "int3", "int4":
		return fmt.Sprintf("%s()", shaderTypeName(tag))
	case "float3x3", "float4x4":
		return fmt.Sprintf("%s()", shaderTypeName(tag))
	}
	if strings.HasPrefix(tag, "struct:") {
		return fmt.Sprintf("%s()", shaderTypeName(tag))
	}
	return "0.0"
}

// literalText renders a host literal value as shader source, dispatching
// on the declared type tag.
func literalText(value any, tag string) (string, error) {
	switch tag {
	case "float":
		f, err := toFloat(value)
		if err != nil {
			return "", err
		}
		return formatFloat(f), nil
	case "int":
		i, err := toInt(value)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(i, 10), nil
	case "uint":
		i, err := toInt(value)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(uint64(i), 10) + "u", nil
	case "bool":
		b, ok := value.(bool)
		if !ok {
			return "", fmt.Errorf("shadergen: expected bool literal, got %T", value)
		}
		return strconv.FormatBool(b), nil
	case "float2", "float3", "float4", "int2", "int3", "int4":
		comps, err := toSlice(value)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(comps))
		for i, c := range comps {
			f, err := toFloat(c)
			if err != nil {
				return "", err
			}
			if strings.HasPrefix(tag, "int") {
				parts[i] = strconv.FormatInt(int64(f), 10)
			} else {
				parts[i] = formatFloat(f)
			}
		}
		return fmt.Sprintf("%s(%s)", shaderTypeName(tag), strings.Join(parts, ", ")), nil
	}
	return "", fmt.Errorf("shadergen: unsupported literal type %q", tag)
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("shadergen: expected numeric literal component, got %T", v)
	}
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("shadergen: expected integer literal, got %T", v)
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
		return nil, fmt.Errorf("shadergen: expected a component slice, got %T", v)
	}
}

// sanitizeIdent rewrites a node/var/resource id into a valid shader
// identifier: non-alphanumeric bytes become '_', and a leading digit gets
// an '_' prefix.
func sanitizeIdent(id string) string {
	var b strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	if out[0] >= '0' && out[0] <= '9' {
		return "_" + out
	}
	return out
}
