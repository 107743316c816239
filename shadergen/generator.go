package shadergen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/shadergraph/ir"
)

// Writer accumulates generated source and the per-call state the
// lowering passes need: the target function, its useCount/memo tables
// for expression memoization, and a counter for fresh temporaries.
type Writer struct {
	doc *ir.Document
	fn  *ir.Function
	opts Options

	buf    strings.Builder
	indent int

	useCount  map[ir.NodeID]int
	memo      map[ir.NodeID]string
	tempCount int

	currentLoopVar string

	resourceNamesUsed map[string]int // for @binding(N) source-scan filtering downstream
}

// Generate lowers function fnID within doc to shader source under opts,
// per spec.md §4.3's algorithm: diagnostics pragma, GlobalsBuffer
// wrapper, bindings block, helper library, then the entry function.
func Generate(doc *ir.Document, fnID ir.FunctionID, opts Options) (Result, error) {
	fn, ok := doc.FunctionByID(fnID)
	if !ok {
		return Result{}, fmt.Errorf("shadergen: unknown function %q", fnID)
	}
	if opts.WorkgroupSize == ([3]int{}) {
		opts.WorkgroupSize = [3]int{64, 1, 1}
	}

	w := &Writer{
		doc:      doc,
		fn:       fn,
		opts:     opts,
		useCount: map[ir.NodeID]int{},
		memo:     map[ir.NodeID]string{},
	}
	w.computeUseCounts()

	w.writeLine("diagnostic(off, derivative_uniformity);")
	w.writeLine("")

	hasGlobals := len(opts.VarMap) > 0
	if hasGlobals {
		w.writeGlobalsBuffer()
	}
	w.writeInputBuffer()
	if err := w.writeResourceBindings(); err != nil {
		return Result{}, err
	}
	w.writeHelperLibrary()

	if err := w.writeEntryFunction(); err != nil {
		return Result{}, err
	}

	meta := Metadata{
		WorkgroupSize:    opts.WorkgroupSize,
		ResourceBindings: map[string]int{},
	}
	for id, b := range opts.ResourceBindings {
		meta.ResourceBindings[string(id)] = b
	}
	meta.InputLayout = buildInputLayout(doc)

	return Result{Source: w.buf.String(), Metadata: meta}, nil
}

func buildInputLayout(doc *ir.Document) []InputLayoutEntry {
	entries := make([]InputLayoutEntry, 0, len(doc.Inputs)+1)
	entries = append(entries, InputLayoutEntry{ID: "u_dispatch_size", Kind: "u_dispatch_size", Type: "uint3"})
	for _, in := range doc.Inputs {
		entries = append(entries, InputLayoutEntry{ID: in.ID, Kind: inputKind(in.Type), Type: in.Type})
	}
	return entries
}

func inputKind(tag string) string {
	switch {
	case tag == "float":
		return "f32"
	case tag == "int":
		return "i32"
	case tag == "uint":
		return "u32"
	case strings.HasPrefix(tag, "float") && len(tag) == 6, strings.HasPrefix(tag, "int") && len(tag) == 4:
		return "vec"
	case strings.HasPrefix(tag, "float3x3"), strings.HasPrefix(tag, "float4x4"):
		return "mat"
	case strings.HasPrefix(tag, "array<"):
		return "array"
	case strings.HasPrefix(tag, "struct:"):
		return "struct"
	default:
		return "f32"
	}
}

// computeUseCounts scans data edges once so lowerExpr knows which node
// results are consumed by more than one expression and should therefore
// be materialized into a single `let` temporary rather than re-emitted
// at every use site.
func (w *Writer) computeUseCounts() {
	for _, e := range w.fn.Edges {
		if e.Type == ir.EdgeData {
			w.useCount[e.From]++
		}
	}
}

func (w *Writer) writeLine(s string) {
	if s != "" {
		w.buf.WriteString(strings.Repeat("    ", w.indent))
		w.buf.WriteString(s)
	}
	w.buf.WriteString("\n")
}

func (w *Writer) pushIndent() { w.indent++ }
func (w *Writer) popIndent() {
	if w.indent > 0 {
		w.indent--
	}
}

func (w *Writer) writeGlobalsBuffer() {
	w.writeLine("struct GlobalsBuffer {")
	w.pushIndent()
	w.writeLine("data: array<f32>,")
	w.popIndent()
	w.writeLine("}")
	w.writeLine(fmt.Sprintf("@group(0) @binding(%d)", w.opts.GlobalBufferBinding))
	w.writeLine("var<storage, read_write> globals: GlobalsBuffer;")
	w.writeLine("")
}

func (w *Writer) writeInputBuffer() {
	if len(w.doc.Inputs) == 0 {
		return
	}
	w.writeLine("struct Inputs {")
	w.pushIndent()
	for _, in := range w.doc.Inputs {
		w.writeLine(fmt.Sprintf("%s: %s,", sanitizeIdent(in.ID), shaderTypeName(in.Type)))
	}
	w.popIndent()
	w.writeLine("}")
	w.writeLine(fmt.Sprintf("@group(0) @binding(%d)", w.opts.InputBinding))
	w.writeLine("var<uniform> inputs: Inputs;")
	w.writeLine("")
}

func (w *Writer) writeResourceBindings() error {
	ids := make([]ir.ResourceID, 0, len(w.opts.ResourceDefs))
	for id := range w.opts.ResourceDefs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		res := w.opts.ResourceDefs[id]
		binding, ok := w.opts.ResourceBindings[id]
		if !ok {
			continue
		}
		switch res.Kind {
		case ir.ResourceBuffer:
			elemType := shaderTypeName(res.DataType)
			w.writeLine(fmt.Sprintf("struct Buffer_%s {", sanitizeIdent(string(id))))
			w.pushIndent()
			w.writeLine(fmt.Sprintf("data: array<%s>,", elemType))
			w.popIndent()
			w.writeLine("}")
			w.writeLine(fmt.Sprintf("@group(0) @binding(%d)", binding))
			w.writeLine(fmt.Sprintf("var<storage, read_write> %s: Buffer_%s;", sanitizeIdent(string(id)), sanitizeIdent(string(id))))
			w.writeLine("")
		case ir.ResourceTexture2D:
			w.writeLine(fmt.Sprintf("@group(0) @binding(%d)", binding))
			w.writeLine(fmt.Sprintf("var %s: texture_storage_2d<%s, read_write>;", sanitizeIdent(string(id)), textureFormatName(res.Format)))
			if sb, ok := w.opts.SamplerBindings[id]; ok {
				w.writeLine(fmt.Sprintf("@group(0) @binding(%d)", sb))
				w.writeLine(fmt.Sprintf("var %s_sampler: sampler;", sanitizeIdent(string(id))))
			}
			w.writeLine("")
		case ir.ResourceSampler:
			w.writeLine(fmt.Sprintf("@group(0) @binding(%d)", binding))
			w.writeLine(fmt.Sprintf("var %s: sampler;", sanitizeIdent(string(id))))
			w.writeLine("")
		default:
			return fmt.Errorf("shadergen: resource %q has unknown kind %q", id, res.Kind)
		}
	}
	return nil
}

func (w *Writer) writeHelperLibrary() {
	w.writeLine("fn color_mix(src: vec4<f32>, dst: vec4<f32>) -> vec4<f32> {")
	w.pushIndent()
	w.writeLine("let outA = src.a + dst.a * (1.0 - src.a);")
	w.writeLine("if (outA < 1e-5) {")
	w.pushIndent()
	w.writeLine("return vec4<f32>(0.0, 0.0, 0.0, 0.0);")
	w.popIndent()
	w.writeLine("}")
	w.writeLine("let outRGB = (src.rgb * src.a + dst.rgb * dst.a * (1.0 - src.a)) / outA;")
	w.writeLine("return vec4<f32>(outRGB, outA);")
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
}

func (w *Writer) writeEntryFunction() error {
	switch w.opts.Stage {
	case StageCompute:
		w.writeLine(fmt.Sprintf("@compute @workgroup_size(%d, %d, %d)", w.opts.WorkgroupSize[0], w.opts.WorkgroupSize[1], w.opts.WorkgroupSize[2]))
		w.writeLine("fn main(@builtin(global_invocation_id) global_invocation_id: vec3<u32>) {")
	case StageVertex:
		w.writeLine("@vertex")
		w.writeLine("fn main(@builtin(vertex_index) vertex_index: u32) -> @builtin(position) vec4<f32> {")
	case StageFragment:
		w.writeLine("@fragment")
		w.writeLine("fn main(@builtin(position) frag_coord: vec4<f32>) -> @location(0) vec4<f32> {")
	default:
		return fmt.Errorf("shadergen: unknown stage %q", w.opts.Stage)
	}
	w.pushIndent()

	for _, lv := range w.fn.LocalVars {
		init, err := w.literalOrZero(lv)
		if err != nil {
			return err
		}
		w.writeLine(fmt.Sprintf("var %s: %s = %s;", sanitizeIdent(lv.ID), shaderTypeName(lv.Type), init))
	}

	for _, root := range w.fn.ExecEntryNodes() {
		if err := w.emitExec(root, map[ir.NodeID]bool{}); err != nil {
			return err
		}
	}

	w.popIndent()
	w.writeLine("}")
	return nil
}

func (w *Writer) literalOrZero(lv ir.LocalVar) (string, error) {
	if lv.Value != nil {
		return literalText(lv.Value, lv.Type)
	}
	return zeroValue(lv.Type), nil
}
