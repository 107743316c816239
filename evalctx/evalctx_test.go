package evalctx

import (
	"context"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/shadergraph/forcegpu"
	"github.com/gogpu/shadergraph/gpucache"
	"github.com/gogpu/shadergraph/gpuharness"
	"github.com/gogpu/shadergraph/ir"
	"github.com/gogpu/shadergraph/ops"
)

// buildAddOneDoc is a plain cpu function: returns input "x" plus one,
// with no GPU involvement at all.
func buildAddOneDoc() ir.Document {
	fn := ir.Function{
		ID:   "main",
		Kind: ir.FunctionCPU,
		Nodes: []ir.Node{
			{ID: "getX", Op: "var_get", Aux: map[string]any{"var": "x"}},
			{ID: "one", Op: "literal", Aux: map[string]any{"value": 1.0, "type": "float"}},
			{ID: "add", Op: "math_add"},
			{ID: "ret", Op: "func_return"},
		},
		Edges: []ir.Edge{
			{From: "getX", PortOut: "result", To: "add", PortIn: "a", Type: ir.EdgeData},
			{From: "one", PortOut: "result", To: "add", PortIn: "b", Type: ir.EdgeData},
			{From: "add", PortOut: "result", To: "ret", PortIn: "val", Type: ir.EdgeData},
		},
	}
	return ir.Document{Functions: []ir.Function{fn}, EntryPoint: "main"}
}

func TestCreateContextRunExecuteRoundTrip(t *testing.T) {
	doc := buildAddOneDoc()
	ctx, err := CreateContext(&doc, map[string]ops.Vec{"x": ops.Scalar(41)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := ctx.Run(context.Background(), "main"); err != nil {
		t.Fatal(err)
	}
	if len(ctx.Result) != 1 || ctx.Result[0] != 42 {
		t.Errorf("ctx.Result = %v, want [42]", ctx.Result)
	}

	// execute() is createContext+Run in one call.
	ctx2, err := Execute(context.Background(), &doc, "main", map[string]ops.Vec{"x": ops.Scalar(9)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ctx2.Result[0] != 10 {
		t.Errorf("execute result = %v, want [10]", ctx2.Result)
	}
}

func TestGetVarSetVarFrameScoping(t *testing.T) {
	doc := buildAddOneDoc()
	ctx, err := CreateContext(&doc, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx.Inputs["x"] = ops.Scalar(1)
	if v, ok := ctx.getVar("x"); !ok || v[0] != 1 {
		t.Fatalf("getVar(x) = %v, %v", v, ok)
	}
	if err := ctx.pushFrame("main"); err != nil {
		t.Fatal(err)
	}
	ctx.setVar("x", ops.Scalar(2))
	if v, _ := ctx.getVar("x"); v[0] != 2 {
		t.Errorf("frame-local setVar did not shadow the document scope: got %v", v)
	}
	ctx.popFrame()
	if v, _ := ctx.getVar("x"); v[0] != 1 {
		t.Errorf("document-level x was mutated by a popped frame's write: got %v", v)
	}
}

// fakeGPUDevice simulates just enough of gpuharness.Device for the
// Force-GPU round trip test: every real pipeline/buffer bookkeeping is
// exercised (CreateBuffer/CompileShader/Dispatch/ReadBuffer all run for
// real through package gpuharness), but since there is no real GPU to
// execute the generated shader text, Dispatch writes a known answer into
// whichever buffer binding is not the globals or input buffer. That
// answer is computed independently, by the scenario's own arithmetic
// (spec.md §8 scenario S5: res = float3(10,20,30)), not by guessing the
// harness's internal bookkeeping.
type fakeGPUDevice struct {
	buffers   map[gpuharness.BufferID][]byte
	nextBuf   gpuharness.BufferID
	captureAt int
	capture   []byte
}

func newFakeGPUDevice(captureBindingIndex int, capture []byte) *fakeGPUDevice {
	return &fakeGPUDevice{buffers: map[gpuharness.BufferID][]byte{}, captureAt: captureBindingIndex, capture: capture}
}

func (d *fakeGPUDevice) CreateBuffer(size int, usage gputypes.BufferUsage) (gpuharness.BufferID, error) {
	d.nextBuf++
	d.buffers[d.nextBuf] = make([]byte, size)
	return d.nextBuf, nil
}

func (d *fakeGPUDevice) WriteBuffer(id gpuharness.BufferID, offset int, data []byte) error {
	copy(d.buffers[id][offset:], data)
	return nil
}

func (d *fakeGPUDevice) ReadBuffer(id gpuharness.BufferID, offset, size int) ([]byte, error) {
	out := make([]byte, size)
	copy(out, d.buffers[id][offset:offset+size])
	return out, nil
}

func (d *fakeGPUDevice) DestroyBuffer(id gpuharness.BufferID) { delete(d.buffers, id) }

func (d *fakeGPUDevice) CreateTexture(w, h int, format gputypes.TextureFormat) (gpuharness.TextureID, error) {
	return 1, nil
}
func (d *fakeGPUDevice) WriteTexture(id gpuharness.TextureID, rowPitch int, data []byte) error {
	return nil
}
func (d *fakeGPUDevice) ReadTexture(id gpuharness.TextureID) ([]byte, int, error) { return nil, 0, nil }
func (d *fakeGPUDevice) DestroyTexture(id gpuharness.TextureID)                   {}

func (d *fakeGPUDevice) CompileShader(source, entryPoint string) (gpuharness.PipelineID, error) {
	return 1, nil
}

func (d *fakeGPUDevice) Dispatch(pipeline gpuharness.PipelineID, bindings []gpuharness.Binding, workgroups [3]int) error {
	for _, b := range bindings {
		if b.IsBuffer && b.Index == d.captureAt {
			copy(d.buffers[b.Buffer], d.capture)
		}
	}
	return nil
}

// TestForceGPURoundTrip is scenario S5 from spec.md §8: an IR whose
// entry is a cpu function setting res = float3(10,20,30) then returning
// res, executed through the Force-GPU backend, leaves ctx.result =
// [10,20,30] after readback.
func TestForceGPURoundTrip(t *testing.T) {
	gpucache.ResetForTests()

	fn := ir.Function{
		ID:        "main",
		Kind:      ir.FunctionCPU,
		LocalVars: []ir.LocalVar{{ID: "res", Type: "float3"}},
		Nodes: []ir.Node{
			{ID: "lit", Op: "literal", Aux: map[string]any{"value": []any{10.0, 20.0, 30.0}, "type": "float3"}},
			{ID: "set1", Op: "var_set", Aux: map[string]any{"var": "res"}},
			{ID: "getRes", Op: "var_get", Aux: map[string]any{"var": "res"}},
			{ID: "ret", Op: "func_return"},
		},
		Edges: []ir.Edge{
			{From: "lit", PortOut: "result", To: "set1", PortIn: "value", Type: ir.EdgeData},
			{From: "set1", PortOut: "exec_out", To: "ret", PortIn: "exec_in", Type: ir.EdgeExecution},
			{From: "getRes", PortOut: "result", To: "ret", PortIn: "val", Type: ir.EdgeData},
		},
	}
	doc := ir.Document{Functions: []ir.Function{fn}, EntryPoint: "main"}

	result, err := forcegpu.Transform(&doc, "main", forcegpu.NodeTypes{"getRes": "float3"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}

	// Both captures (var_set of res, and the return) hold [10,20,30]:
	// the return reads res right after it was set to that value.
	expected := make([]float64, 0, 6)
	expected = append(expected, 10, 20, 30, 10, 20, 30)
	captureBytes := bytesFromFloats(expected)

	opts := gpuharness.DefaultOptions()
	dev := newFakeGPUDevice(opts.FirstResourceBinding, captureBytes)
	harness := gpuharness.New(dev)

	ctx, err := CreateContext(result.Doc, nil, nil)
	if err != nil {
		t.Fatalf("CreateContext: %v", err)
	}
	ctx.Harness = harness

	if err := ctx.Run(context.Background(), result.Trampoline); err != nil {
		t.Fatalf("Run(trampoline): %v", err)
	}
	if err := ApplyCaptures(ctx, result); err != nil {
		t.Fatalf("ApplyCaptures: %v", err)
	}

	if len(ctx.Result) != 3 || ctx.Result[0] != 10 || ctx.Result[1] != 20 || ctx.Result[2] != 30 {
		t.Fatalf("ctx.Result = %v, want [10 20 30]", ctx.Result)
	}
	resState, ok := ctx.Resources[forcegpu.CaptureBufferID]
	if !ok || resState.GPUDirty {
		t.Errorf("capture resource GPUDirty should be cleared after sync_to_cpu")
	}
}
