// Package ir defines the intermediate representation for shadergraph.
//
// The IR is a directed graph of typed operations: a Document bundles
// Function definitions, Resource declarations, named Struct types, and
// Input declarations, rooted at a single entry-point function. Unlike a
// traditional SSA expression arena, control and data flow are both
// represented as graph Edges between Nodes, which makes the IR a natural
// fit for tools that build or mutate pipelines programmatically (editors,
// the Force-GPU transform in package forcegpu) rather than only parsing
// them from source text.
package ir

// Document is a top-level IR bundle: everything needed to resolve and
// execute a single entry-point function.
type Document struct {
	Functions   []Function
	Resources   []Resource
	Structs     []StructDef
	Inputs      []Input
	EntryPoint  FunctionID
}

// FunctionID, NodeID and ResourceID are opaque identifiers assigned by
// whatever produced the Document (a text format loader, an editor, or a
// transform such as forcegpu.Transform). They are plain strings rather
// than dense handles because the IR is meant to be hand- or tool-authored
// and diffed, not purely machine-generated.
type (
	FunctionID string
	NodeID     string
	ResourceID string
)

// FunctionKind distinguishes host-executable functions from ones destined
// for a shader stage.
type FunctionKind string

const (
	FunctionCPU    FunctionKind = "cpu"
	FunctionShader FunctionKind = "shader"
)

// Port is a typed, named data port declared on a Function's boundary.
type Port struct {
	Name string
	Type string // a type tag, see package layout.
}

// LocalVar is a function-scoped variable. Value, if non-nil, is the
// literal initial value; otherwise the variable initializes to the zero
// value of Type.
type LocalVar struct {
	ID    string
	Type  string
	Value any
}

// Function is one callable unit of the graph: either a CPU procedure or a
// shader entry candidate.
type Function struct {
	ID        FunctionID
	Kind      FunctionKind
	Inputs    []Port
	Outputs   []Port
	LocalVars []LocalVar
	Nodes     []Node
	Edges     []Edge
}

// Node is one operation in the graph. Op is one of the built-in op names
// from package ops. Aux carries op-specific literal arguments and keys
// (e.g. "var", "buffer", "channels", "dispatch") verbatim — the IR does not
// interpret them beyond what a given op's lowering requires, so unknown
// keys on a node round-trip untouched.
type Node struct {
	ID  NodeID
	Op  string
	Aux map[string]any
}

// EdgeType distinguishes a value dependency from a control dependency.
type EdgeType string

const (
	EdgeData      EdgeType = "data"
	EdgeExecution EdgeType = "execution"
)

// Edge connects a named output port on one node to a named input port on
// another. For execution edges PortOut/PortIn carry the op-specific
// exec-port names (exec_in, exec_out, exec_true, exec_false, exec_body,
// exec_completed); for data edges they carry data port names ("result",
// named arguments, etc).
type Edge struct {
	From    NodeID
	PortOut string
	To      NodeID
	PortIn  string
	Type    EdgeType
}

// ResourceKind enumerates the storage kinds a Resource can declare.
type ResourceKind string

const (
	ResourceBuffer   ResourceKind = "buffer"
	ResourceTexture2D ResourceKind = "texture2d"
	ResourceSampler  ResourceKind = "sampler"
)

// Persistence controls how a resource's contents survive across frames.
type Persistence string

const (
	PersistenceRetained      Persistence = "retention"
	PersistenceClearPerFrame Persistence = "clear-per-frame"
	PersistenceClearOnResize Persistence = "clear-on-resize"
	PersistenceCPUAccess     Persistence = "cpu-access"
)

// Size2D is a fixed 2-D extent, used by texture2d resources. Width/Height
// are element counts, not bytes.
type Size2D struct {
	Width  int
	Height int
}

// Resource is a GPU-backed allocation declared at the document level and
// owned by an EvaluationContext (see package evalctx).
type Resource struct {
	ID          ResourceID
	Kind        ResourceKind
	DataType    string // element type, for Kind == ResourceBuffer
	Format      string // texture format, for Kind == ResourceTexture2D
	Count       int    // 1-D element count, for Kind == ResourceBuffer
	Size        Size2D // 2-D extent, for Kind == ResourceTexture2D
	Persistence Persistence
}

// StructField is one ordered, typed member of a named struct type.
type StructField struct {
	Name string
	Type string
}

// StructDef is a named struct type available to var/buffer/struct ops and
// to the layout package's packing rules.
type StructDef struct {
	Name   string
	Fields []StructField
}

// Input is a uniform-like, host-supplied value packed into the input
// buffer at dispatch time (see shadergen.Metadata.InputLayout and package
// gpuharness's pack step).
type Input struct {
	ID   string
	Type string
}

// FunctionByID looks up a function by id, returning false if absent.
func (d *Document) FunctionByID(id FunctionID) (*Function, bool) {
	for i := range d.Functions {
		if d.Functions[i].ID == id {
			return &d.Functions[i], true
		}
	}
	return nil, false
}

// ResourceByID looks up a resource declaration by id, returning false if
// absent.
func (d *Document) ResourceByID(id ResourceID) (*Resource, bool) {
	for i := range d.Resources {
		if d.Resources[i].ID == id {
			return &d.Resources[i], true
		}
	}
	return nil, false
}

// StructByName looks up a struct definition by name, returning false if
// absent.
func (d *Document) StructByName(name string) (*StructDef, bool) {
	for i := range d.Structs {
		if d.Structs[i].Name == name {
			return &d.Structs[i], true
		}
	}
	return nil, false
}

// NodeByID looks up a node within the function by id, returning false if
// absent.
func (f *Function) NodeByID(id NodeID) (*Node, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// LocalVarByID looks up a declared local by id, returning false if absent.
func (f *Function) LocalVarByID(id string) (*LocalVar, bool) {
	for i := range f.LocalVars {
		if f.LocalVars[i].ID == id {
			return &f.LocalVars[i], true
		}
	}
	return nil, false
}

// Clone deep-copies the document. Used by forcegpu.Transform, which must
// rewrite a kernel without mutating the caller's original IR.
func (d *Document) Clone() *Document {
	out := &Document{
		Functions:  make([]Function, len(d.Functions)),
		Resources:  append([]Resource(nil), d.Resources...),
		Structs:    make([]StructDef, len(d.Structs)),
		Inputs:     append([]Input(nil), d.Inputs...),
		EntryPoint: d.EntryPoint,
	}
	for i, fn := range d.Functions {
		out.Functions[i] = fn.Clone()
	}
	for i, s := range d.Structs {
		out.Structs[i] = StructDef{Name: s.Name, Fields: append([]StructField(nil), s.Fields...)}
	}
	return out
}

// Clone deep-copies a function, including its node aux maps.
func (f *Function) Clone() Function {
	out := Function{
		ID:        f.ID,
		Kind:      f.Kind,
		Inputs:    append([]Port(nil), f.Inputs...),
		Outputs:   append([]Port(nil), f.Outputs...),
		LocalVars: append([]LocalVar(nil), f.LocalVars...),
		Nodes:     make([]Node, len(f.Nodes)),
		Edges:     append([]Edge(nil), f.Edges...),
	}
	for i, n := range f.Nodes {
		out.Nodes[i] = n.Clone()
	}
	return out
}

// Clone deep-copies a node's aux map so mutating the clone never touches
// the original.
func (n *Node) Clone() Node {
	out := Node{ID: n.ID, Op: n.Op}
	if n.Aux != nil {
		out.Aux = make(map[string]any, len(n.Aux))
		for k, v := range n.Aux {
			out.Aux[k] = v
		}
	}
	return out
}
