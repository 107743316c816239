package ir

import "fmt"

// Severity classifies a Diagnostic. Only "error" aborts Run, per
// spec.md §7.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one validation finding, reported as
// {severity, message, location} per spec.md §7.
type Diagnostic struct {
	Severity Severity
	Message  string
	Location string // function id, optionally ":" node id
}

func (d Diagnostic) String() string {
	if d.Location != "" {
		return fmt.Sprintf("%s: %s: %s", d.Severity, d.Location, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// Validator checks a Document for the structural invariants in spec.md
// §3 plus the constructor coverage rule in §4.2. It mirrors naga/ir's
// Validator in shape (accumulate diagnostics, validate module, then
// function by function) adapted to the node/edge graph.
type Validator struct {
	doc   *Document
	diags []Diagnostic
}

// Validate runs structural validation over doc. It never mutates doc.
func Validate(doc *Document) []Diagnostic {
	v := &Validator{doc: doc}
	v.validateResources()
	v.validateStructs()
	v.validateEntryPoint()
	for i := range doc.Functions {
		v.validateFunction(&doc.Functions[i])
	}
	return v.diags
}

// HasErrors reports whether diags contains any error-severity entry.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (v *Validator) errorf(loc, format string, args ...any) {
	v.diags = append(v.diags, Diagnostic{Severity: SeverityError, Message: fmt.Sprintf(format, args...), Location: loc})
}

func (v *Validator) warnf(loc, format string, args ...any) {
	v.diags = append(v.diags, Diagnostic{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), Location: loc})
}

func (v *Validator) validateResources() {
	seen := make(map[ResourceID]bool, len(v.doc.Resources))
	for _, r := range v.doc.Resources {
		if seen[r.ID] {
			v.errorf("", "duplicate resource id %q", r.ID)
		}
		seen[r.ID] = true
	}
}

func (v *Validator) validateStructs() {
	seen := make(map[string]bool, len(v.doc.Structs))
	for _, s := range v.doc.Structs {
		if seen[s.Name] {
			v.errorf("", "duplicate struct name %q", s.Name)
		}
		seen[s.Name] = true
		names := make(map[string]bool, len(s.Fields))
		for _, f := range s.Fields {
			if names[f.Name] {
				v.errorf("", "struct %q: duplicate field %q", s.Name, f.Name)
			}
			names[f.Name] = true
		}
	}
}

func (v *Validator) validateEntryPoint() {
	if v.doc.EntryPoint == "" {
		v.errorf("", "document has no entry point")
		return
	}
	if _, ok := v.doc.FunctionByID(v.doc.EntryPoint); !ok {
		v.errorf("", "entry point %q does not name a defined function", v.doc.EntryPoint)
	}
}

func (v *Validator) validateFunction(f *Function) {
	loc := string(f.ID)

	nodeIDs := make(map[NodeID]bool, len(f.Nodes))
	for _, n := range f.Nodes {
		if nodeIDs[n.ID] {
			v.errorf(loc, "duplicate node id %q", n.ID)
		}
		nodeIDs[n.ID] = true
	}

	dataPorts := make(map[string]bool, len(f.Edges))
	for _, e := range f.Edges {
		if !nodeIDs[e.From] {
			v.errorf(loc, "edge references unknown source node %q", e.From)
		}
		if !nodeIDs[e.To] {
			v.errorf(loc, "edge references unknown destination node %q", e.To)
		}
		if e.Type == EdgeData {
			key := string(e.To) + "#" + e.PortIn
			if dataPorts[key] {
				v.errorf(loc, "duplicate data edge into %s.%s", e.To, e.PortIn)
			}
			dataPorts[key] = true
		}
	}

	v.validateExecutionAcyclic(f, loc)
	v.validateDataAcyclic(f, loc)
	v.validateConstructors(f, loc)
}

// validateExecutionAcyclic checks execution edges form a forest: no node
// may be revisited along a single depth-first walk, except by passing
// back through an explicit flow_loop body, which the walk treats as a
// bounded single traversal of the loop node itself (loops re-enter their
// own body via exec_body → exec_completed, which this walk does not
// follow past the loop node a second time).
func (v *Validator) validateExecutionAcyclic(f *Function, loc string) {
	visiting := make(map[NodeID]bool)
	var walk func(id NodeID) bool
	walk = func(id NodeID) bool {
		if visiting[id] {
			return false
		}
		visiting[id] = true
		defer delete(visiting, id)

		n, ok := f.NodeByID(id)
		if !ok {
			return true
		}
		ports := []string{"exec_out"}
		switch n.Op {
		case "flow_branch":
			ports = []string{"exec_true", "exec_false"}
		case "flow_loop":
			ports = []string{"exec_completed"} // exec_body is a nested scope, not a successor in the outer chain
		}
		for _, p := range ports {
			next, ok := f.ExecSuccessor(id, p)
			if !ok {
				continue
			}
			if !walk(next) {
				return false
			}
		}
		return true
	}
	for _, root := range f.ExecEntryNodes() {
		if !walk(root) {
			v.errorf(loc, "execution edges form a cycle reachable from %q", root)
		}
	}
}

// validateDataAcyclic proves data edges are acyclic, ignoring execution
// edges entirely, per spec.md §9 ("Cyclic data flow").
func (v *Validator) validateDataAcyclic(f *Function, loc string) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[NodeID]int, len(f.Nodes))
	deps := make(map[NodeID][]NodeID, len(f.Nodes))
	for _, e := range f.Edges {
		if e.Type == EdgeData {
			deps[e.To] = append(deps[e.To], e.From)
		}
	}
	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		switch color[id] {
		case gray:
			return false
		case black:
			return true
		}
		color[id] = gray
		for _, dep := range deps[id] {
			if !visit(dep) {
				return false
			}
		}
		color[id] = black
		return true
	}
	for _, n := range f.Nodes {
		if color[n.ID] == white {
			if !visit(n.ID) {
				v.errorf(loc, "data edges form a cycle involving node %q", n.ID)
			}
		}
	}
}

// constructorChannels is the canonical x,y,z,w channel order used to
// check component-group coverage, per spec.md §4.2.
var constructorChannels = []string{"x", "y", "z", "w"}
var colorChannelAlias = map[string]string{"r": "x", "g": "y", "b": "z", "a": "w"}

// validateConstructors rejects gaps, overlaps, and insufficient coverage
// in flexible (component-group) constructor calls, per spec.md §4.2 and
// testable property #2.
func (v *Validator) validateConstructors(f *Function, loc string) {
	for _, n := range f.Nodes {
		target := constructorTargetSize(n.Op)
		if target == 0 {
			continue
		}
		groups, ok := n.Aux["channels"].(map[string]any)
		if !ok {
			continue // positional-argument form, nothing to check here
		}
		if broadcast, ok := n.Aux["broadcast"].(bool); ok && broadcast {
			continue // broadcast form always yields full coverage by construction
		}
		covered := make([]bool, target)
		for group := range groups {
			idxs, err := channelIndices(group)
			if err != nil {
				v.errorf(loc, "node %q: %v", n.ID, err)
				continue
			}
			for _, idx := range idxs {
				if idx >= target {
					v.errorf(loc, "node %q: channel group %q addresses component %d, target has only %d components", n.ID, group, idx, target)
					continue
				}
				if covered[idx] {
					v.errorf(loc, "node %q: channel group %q overlaps an earlier group at component %d", n.ID, group, idx)
				}
				covered[idx] = true
			}
		}
		for i, c := range covered {
			if !c {
				v.errorf(loc, "node %q: component %d (%s) is not covered by any channel group", n.ID, i, constructorChannels[i])
			}
		}
	}
}

func constructorTargetSize(op string) int {
	switch op {
	case "float2", "int2":
		return 2
	case "float3", "int3":
		return 3
	case "float4", "int4":
		return 4
	}
	return 0
}

// channelIndices maps a channel-group string ("xy", "rgb", ...) to
// component indices, accepting both xyzw and rgba spellings per
// spec.md §4.2's vec_swizzle description (channels is a string over
// {x,y,z,w} or {r,g,b,a}).
func channelIndices(group string) ([]int, error) {
	idxs := make([]int, 0, len(group))
	for _, r := range group {
		ch := string(r)
		if alias, ok := colorChannelAlias[ch]; ok {
			ch = alias
		}
		found := -1
		for i, c := range constructorChannels {
			if c == ch {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("invalid channel %q in group %q", r, group)
		}
		idxs = append(idxs, found)
	}
	return idxs, nil
}
