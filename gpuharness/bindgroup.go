package gpuharness

import (
	"regexp"
	"strconv"
)

// bindingPattern matches the @group(0) @binding(N) syntax
// shadergen.Generate emits for every resource and the globals/inputs
// buffers, per spec.md §4.5 step 6: "filtered to bindings that actually
// appear in the shader source (by regex @binding(\s*<n>\s*))".
var bindingPattern = regexp.MustCompile(`@binding\(\s*(\d+)\s*\)`)

// referencedBindings returns the set of binding indices that literally
// appear in source, deduplicated.
func referencedBindings(source string) map[int]struct{} {
	matches := bindingPattern.FindAllStringSubmatch(source, -1)
	set := make(map[int]struct{}, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		set[n] = struct{}{}
	}
	return set
}

// FilterBindings narrows candidates to exactly the bindings referenced
// in source, dropping any candidate the generator did not emit (the
// globals buffer when no global variable is mapped, the input buffer when
// the document declares no inputs); a declared input keeps its binding
// whether or not the shader reads it. Scenario property #5 requires the bind group to
// contain "exactly the bindings referenced in the generated shader
// source (no extra, none missing)".
func FilterBindings(source string, candidates []Binding) []Binding {
	referenced := referencedBindings(source)
	out := make([]Binding, 0, len(candidates))
	for _, b := range candidates {
		if _, ok := referenced[b.Index]; ok {
			out = append(out, b)
		}
	}
	return out
}
