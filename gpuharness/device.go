// Package gpuharness implements component E, the GPU dispatch harness
// described in spec.md §4.5: resource allocation, bind-group assembly,
// dispatch, and row-pitch-aware staging readback.
package gpuharness

import (
	"github.com/gogpu/gputypes"
)

// BufferID and TextureID are opaque handles a Device hands back from
// CreateBuffer/CreateTexture; the harness never interprets their bits,
// only threads them back into later Device calls, the same borrowed-
// handle discipline spec.md §5 describes for EvaluationContext resource
// states.
type BufferID uint64

// TextureID is the texture analogue of BufferID.
type TextureID uint64

// PipelineID identifies a compiled compute pipeline, returned by
// CompileShader and consumed by Dispatch.
type PipelineID uint64

// Binding is one resolved bind-group entry: either a buffer or a
// texture bound at a @group(0) @binding(Index) slot.
type Binding struct {
	Index    int
	IsBuffer bool
	Buffer   BufferID
	Texture  TextureID
}

// Device is the resource-allocation and dispatch surface the harness
// needs from a GPU backend. Its method set is narrowed, for this
// module's purposes, from the convenience surface
// gogpu-gg/backend/gogpu.GoGPUAdapter exposes (CreateBuffer/WriteBuffer/
// ReadBuffer/CreateTexture/WriteTexture/ReadTexture/CreateBindGroup/
// BeginComputePass/Submit); the harness defines its own interface
// rather than importing github.com/gogpu/wgpu/hal's directly.
// Buffer/texture usage and format parameters use the real
// github.com/gogpu/gputypes enums so a concrete implementation backed by
// github.com/gogpu/wgpu/core + github.com/gogpu/wgpu/hal can satisfy
// this interface without any adaptation layer for those values.
type Device interface {
	CreateBuffer(sizeBytes int, usage gputypes.BufferUsage) (BufferID, error)
	WriteBuffer(id BufferID, offset int, data []byte) error
	ReadBuffer(id BufferID, offset, size int) ([]byte, error)
	DestroyBuffer(id BufferID)

	CreateTexture(width, height int, format gputypes.TextureFormat) (TextureID, error)
	WriteTexture(id TextureID, rowPitch int, data []byte) error
	ReadTexture(id TextureID) (data []byte, rowPitch int, err error)
	DestroyTexture(id TextureID)

	// CompileShader creates a shader module and compute pipeline from
	// generated source. A non-nil error is expected to already carry
	// line:column diagnostics (wrapping a *gpucache.CompileError) when
	// compilation itself failed, rather than a bare opaque error.
	CompileShader(source, entryPoint string) (PipelineID, error)

	// Dispatch encodes and submits one compute pass: pipeline, the
	// filtered bind group, and the workgroup count along each axis.
	Dispatch(pipeline PipelineID, bindings []Binding, workgroups [3]int) error
}
