package gpuharness

import (
	"context"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/shadergraph/gpucache"
	"github.com/gogpu/shadergraph/ir"
	"github.com/gogpu/shadergraph/layout"
	"github.com/gogpu/shadergraph/shadergen"
)

// storageUsage is the usage flag set every buffer this harness creates
// needs: storage binding for shader access, plus copy-src/copy-dst so
// the harness itself can write inputs and read results back.
func storageUsage() gputypes.BufferUsage {
	return gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
}

// Options configures a Harness independent of any one Run call: binding
// assignment, plus a Ruleset that Run does not read (inputs are always
// packed under layout.Std140 and resource buffers sized under
// layout.Std430).
type Options struct {
	Ruleset              layout.Ruleset
	GlobalBufferBinding  int
	InputBinding         int
	FirstResourceBinding int
}

// DefaultOptions mirrors shadergen.DefaultOptions' binding assignment,
// keyed so the same numbers reach both the generator and the bind-group
// builder.
func DefaultOptions() Options {
	return Options{
		Ruleset:              layout.Std430,
		GlobalBufferBinding:  0,
		InputBinding:         1,
		FirstResourceBinding: 2,
	}
}

// RunRequest is one invocation of the full dispatch contract, spec.md
// §4.5: "given an IR, an entry-point id, and a host inputs mapping".
type RunRequest struct {
	Doc             *ir.Document
	EntryPoint      ir.FunctionID
	Inputs          map[string]any
	VarMap          map[string]int // global (non-local) var id -> scalar offset
	InvocationCount [3]int         // requested work size along each axis
}

// RunResult is the reconstructed host-visible state after one dispatch.
type RunResult struct {
	Source       string
	Globals      []byte
	ResourceData map[ir.ResourceID][]byte
}

// allocated tracks the GPU handle backing one declared resource, reused
// across Run calls on the same Harness ("allocate or reuse", spec.md
// §4.5 step 2).
type allocated struct {
	isTexture bool
	buffer    BufferID
	texture   TextureID
	byteSize  int
	rowBytes  int // unpadded row size, textures only
	height    int
}

// Harness implements spec component E: the nine-step GPU dispatch
// contract in spec.md §4.5, built over a Device and the process-wide
// gpucache singleton.
type Harness struct {
	Device   Device
	Opts     Options
	globals  allocated
	inputBuf BufferID
	byRes    map[ir.ResourceID]allocated
}

// New returns a Harness backed by dev, using DefaultOptions.
func New(dev Device) *Harness {
	return &Harness{Device: dev, Opts: DefaultOptions(), byRes: map[ir.ResourceID]allocated{}}
}

// Run executes the full nine-step contract for one entry point.
func (h *Harness) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	// Step 1: validate and type-infer.
	if diags := ir.Validate(req.Doc); ir.HasErrors(diags) {
		return nil, fmt.Errorf("gpuharness: invalid document: %v", diags)
	}
	fn, ok := req.Doc.FunctionByID(req.EntryPoint)
	if !ok {
		return nil, fmt.Errorf("gpuharness: unknown entry point %q", req.EntryPoint)
	}

	varTypes := map[string]string{}
	for _, lv := range fn.LocalVars {
		varTypes[lv.ID] = lv.Type
	}
	for _, in := range req.Doc.Inputs {
		varTypes[in.ID] = in.Type
	}
	resTypes := map[ir.ResourceID]string{}
	for _, r := range req.Doc.Resources {
		if r.Kind == ir.ResourceBuffer {
			resTypes[r.ID] = r.DataType
		}
	}
	inferer := ir.NewInferer(req.Doc, fn, ir.TypeEnv{
		VarTypes:      varTypes,
		ResourceTypes: resTypes,
		StructOf:      req.Doc.StructByName,
	})
	nodeTypes, err := inferer.InferAll()
	if err != nil {
		return nil, fmt.Errorf("gpuharness: type inference: %w", err)
	}

	// Step 2: allocate or reuse GPU buffers/textures per resource.
	resourceBindings := map[ir.ResourceID]int{}
	samplerBindings := map[ir.ResourceID]int{}
	binding := h.Opts.FirstResourceBinding
	for _, res := range req.Doc.Resources {
		if err := h.ensureResource(req.Doc, res); err != nil {
			return nil, fmt.Errorf("gpuharness: allocating resource %s: %w", res.ID, err)
		}
		resourceBindings[res.ID] = binding
		binding++
		if res.Kind == ir.ResourceTexture2D {
			samplerBindings[res.ID] = binding
			binding++
		}
	}

	// Step 3: size the globals buffer to sum(componentCount(varType))
	// scalars, minimum 16 bytes.
	globalsScalars := 0
	for varID := range req.VarMap {
		t, ok := varTypes[varID]
		if !ok {
			continue
		}
		n, err := layout.ComponentCount(t, req.Doc)
		if err != nil {
			return nil, fmt.Errorf("gpuharness: globals component count for %s: %w", varID, err)
		}
		globalsScalars += n
	}
	globalsBytes := globalsScalars * 4
	if globalsBytes < 16 {
		globalsBytes = 16
	}
	if err := h.ensureGlobals(globalsBytes); err != nil {
		return nil, fmt.Errorf("gpuharness: allocating globals buffer: %w", err)
	}

	// Generate shader source; needed before step 4 so the input layout
	// matches exactly what the shader declares.
	opts := shadergen.DefaultOptions()
	opts.GlobalBufferBinding = h.Opts.GlobalBufferBinding
	opts.InputBinding = h.Opts.InputBinding
	opts.VarMap = req.VarMap
	opts.VarTypes = varTypes
	opts.NodeTypes = nodeTypes
	opts.ResourceBindings = resourceBindings
	opts.SamplerBindings = samplerBindings
	resDefs := map[ir.ResourceID]ir.Resource{}
	for _, r := range req.Doc.Resources {
		resDefs[r.ID] = r
	}
	opts.ResourceDefs = resDefs

	result, err := shadergen.Generate(req.Doc, req.EntryPoint, opts)
	if err != nil {
		return nil, fmt.Errorf("gpuharness: shader generation: %w", err)
	}

	// Step 4: pack inputs via the layout, in the generator's declared
	// order.
	inputBuf, err := h.packInputs(req.Doc, req.Inputs, result.Metadata.InputLayout)
	if err != nil {
		return nil, fmt.Errorf("gpuharness: packing inputs: %w", err)
	}

	// Step 5: fetch the compiled pipeline from the cache.
	cache := gpucache.SharedCache()
	module, hit := cache.Get(result.Source)
	var pipeline PipelineID
	if hit {
		pipeline = module.Pipeline.(PipelineID)
	} else {
		pipeline, err = h.Device.CompileShader(result.Source, "main")
		if err != nil {
			return nil, fmt.Errorf("gpuharness: shader compilation: %w", err)
		}
		cache.Put(result.Source, pipeline)
	}

	sem := gpucache.SharedSemaphore()
	if err := sem.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("gpuharness: acquiring dispatch semaphore: %w", err)
	}
	defer sem.Release()

	inputBufID, err := h.ensureInputBuffer(len(inputBuf))
	if err != nil {
		return nil, fmt.Errorf("gpuharness: allocating input buffer: %w", err)
	}
	if err := h.Device.WriteBuffer(inputBufID, 0, inputBuf); err != nil {
		return nil, fmt.Errorf("gpuharness: writing input buffer: %w", err)
	}

	// Step 6: build a bind group filtered to bindings that actually
	// appear in the generated source.
	candidates := []Binding{
		{Index: h.Opts.GlobalBufferBinding, IsBuffer: true, Buffer: h.globals.buffer},
		{Index: h.Opts.InputBinding, IsBuffer: true, Buffer: inputBufID},
	}
	for _, res := range req.Doc.Resources {
		a := h.byRes[res.ID]
		if a.isTexture {
			candidates = append(candidates, Binding{Index: resourceBindings[res.ID], IsBuffer: false, Texture: a.texture})
		} else {
			candidates = append(candidates, Binding{Index: resourceBindings[res.ID], IsBuffer: true, Buffer: a.buffer})
		}
	}
	bindGroup := FilterBindings(result.Source, candidates)

	// Step 7: encode a compute pass and dispatch the requested workgroup
	// count.
	workgroups := computeWorkgroups(req.InvocationCount, result.Metadata.WorkgroupSize)
	if err := h.Device.Dispatch(pipeline, bindGroup, workgroups); err != nil {
		return nil, fmt.Errorf("gpuharness: dispatch: %w", err)
	}

	// Steps 8-9: staging readback, row-pitch un-padding, and
	// reconstruction into typed host values.
	run := &RunResult{Source: result.Source, ResourceData: map[ir.ResourceID][]byte{}}
	globalsData, err := h.Device.ReadBuffer(h.globals.buffer, 0, h.globals.byteSize)
	if err != nil {
		return nil, fmt.Errorf("gpuharness: reading globals buffer: %w", err)
	}
	run.Globals = globalsData

	for _, res := range req.Doc.Resources {
		data, err := h.readResource(res)
		if err != nil {
			return nil, fmt.Errorf("gpuharness: reading resource %s: %w", res.ID, err)
		}
		run.ResourceData[res.ID] = data
	}
	return run, nil
}

func (h *Harness) ensureGlobals(byteSize int) error {
	if h.globals.buffer != 0 && h.globals.byteSize >= byteSize {
		return nil
	}
	id, err := h.Device.CreateBuffer(byteSize, storageUsage())
	if err != nil {
		return err
	}
	h.globals = allocated{buffer: id, byteSize: byteSize}
	return nil
}

func (h *Harness) ensureInputBuffer(byteSize int) (BufferID, error) {
	if byteSize < 16 {
		byteSize = 16
	}
	if h.inputBuf != 0 {
		return h.inputBuf, nil
	}
	id, err := h.Device.CreateBuffer(byteSize, storageUsage())
	if err != nil {
		return 0, err
	}
	h.inputBuf = id
	return id, nil
}

func (h *Harness) ensureResource(doc *ir.Document, res ir.Resource) error {
	if existing, ok := h.byRes[res.ID]; ok && (existing.buffer != 0 || existing.texture != 0) {
		return nil
	}
	switch res.Kind {
	case ir.ResourceBuffer:
		arrayTag := fmt.Sprintf("array<%s,%d>", res.DataType, max1(res.Count))
		size, err := layout.SizeBytes(arrayTag, layout.Std430, doc)
		if err != nil {
			return err
		}
		id, err := h.Device.CreateBuffer(size, storageUsage())
		if err != nil {
			return err
		}
		h.byRes[res.ID] = allocated{buffer: id, byteSize: size}
	case ir.ResourceTexture2D:
		format := TextureFormat(res.Format)
		gf, err := format.gpuFormat()
		if err != nil {
			return err
		}
		id, err := h.Device.CreateTexture(res.Size.Width, res.Size.Height, gf)
		if err != nil {
			return err
		}
		rowBytes := res.Size.Width * format.bytesPerTexel()
		h.byRes[res.ID] = allocated{isTexture: true, texture: id, rowBytes: rowBytes, height: res.Size.Height}
	case ir.ResourceSampler:
		// samplers carry no host-visible state to allocate or read back.
	}
	return nil
}

func (h *Harness) readResource(res ir.Resource) ([]byte, error) {
	a, ok := h.byRes[res.ID]
	if !ok {
		return nil, nil
	}
	if a.isTexture {
		padded, rowPitch, err := h.Device.ReadTexture(a.texture)
		if err != nil {
			return nil, err
		}
		return UnpadRows(padded, a.height, a.rowBytes, rowPitch), nil
	}
	return h.Device.ReadBuffer(a.buffer, 0, a.byteSize)
}

func (h *Harness) packInputs(doc *ir.Document, values map[string]any, layoutEntries []shadergen.InputLayoutEntry) ([]byte, error) {
	var out []byte
	for _, entry := range layoutEntries {
		in, found := inputByID(doc, entry.ID)
		if !found {
			continue
		}
		v, ok := values[entry.ID]
		if !ok {
			return nil, fmt.Errorf("gpuharness: missing host value for input %q", entry.ID)
		}
		b, err := layout.Pack(v, in.Type, layout.Std140, doc)
		if err != nil {
			return nil, fmt.Errorf("gpuharness: packing input %q: %w", entry.ID, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

func inputByID(doc *ir.Document, id string) (ir.Input, bool) {
	for _, in := range doc.Inputs {
		if in.ID == id {
			return in, true
		}
	}
	return ir.Input{}, false
}

func computeWorkgroups(invocations, workgroupSize [3]int) [3]int {
	var out [3]int
	for i := range out {
		ws := workgroupSize[i]
		if ws <= 0 {
			ws = 1
		}
		n := invocations[i]
		if n <= 0 {
			n = 1
		}
		out[i] = (n + ws - 1) / ws
	}
	return out
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
