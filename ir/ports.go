package ir

import "strings"

// IsExecutable reports whether a node with the given op participates in
// execution-edge control flow, per the glossary's definition: an
// executable node's op starts with "cmd_" or "flow_", or is one of
// var_set, buffer_store, texture_store, call_func, func_return.
func IsExecutable(op string) bool {
	switch {
	case strings.HasPrefix(op, "cmd_"), strings.HasPrefix(op, "flow_"):
		return true
	}
	switch op {
	case "var_set", "buffer_store", "texture_store", "call_func", "func_return":
		return true
	}
	return false
}

// ExecEntryNodes returns the executable nodes in f that have no incoming
// execution edge — the roots the shader generator and host JIT walk from.
func (f *Function) ExecEntryNodes() []NodeID {
	hasIncoming := make(map[NodeID]bool, len(f.Edges))
	for _, e := range f.Edges {
		if e.Type == EdgeExecution {
			hasIncoming[e.To] = true
		}
	}
	var roots []NodeID
	for _, n := range f.Nodes {
		if IsExecutable(n.Op) && !hasIncoming[n.ID] {
			roots = append(roots, n.ID)
		}
	}
	return roots
}

// ExecSuccessor returns the node reached by following the named exec port
// (e.g. "exec_out", "exec_true") out of node id, or "" if none.
func (f *Function) ExecSuccessor(id NodeID, port string) (NodeID, bool) {
	for _, e := range f.Edges {
		if e.Type == EdgeExecution && e.From == id && e.PortOut == port {
			return e.To, true
		}
	}
	return "", false
}

// DataSource returns the node id and output port feeding the named input
// port of node id, following a data edge. Ok is false if no edge feeds
// that port (the input must then come from a literal carried on the node
// itself, or the caller treats it as unconnected).
func (f *Function) DataSource(id NodeID, portIn string) (NodeID, string, bool) {
	for _, e := range f.Edges {
		if e.Type == EdgeData && e.To == id && e.PortIn == portIn {
			return e.From, e.PortOut, true
		}
	}
	return "", "", false
}

// SplitSwizzle splits a namespaced node reference like "nodeId.xyz" into
// its base node id and swizzle suffix. It splits at the first '.', per
// the design note in spec §9 on inline swizzle inference. ok is false if
// ref carries no '.'.
func SplitSwizzle(ref string) (base NodeID, swizzle string, ok bool) {
	i := strings.IndexByte(ref, '.')
	if i < 0 {
		return NodeID(ref), "", false
	}
	return NodeID(ref[:i]), ref[i+1:], true
}
