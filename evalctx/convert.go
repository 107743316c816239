package evalctx

import (
	"math"

	"github.com/gogpu/shadergraph/ir"
	"github.com/gogpu/shadergraph/ops"
)

// texelChannels returns the scalar component count of one texel in
// format, per the three texture formats spec.md §4.5 names (rgba8,
// r32f, rgba32f). Mirrors gpuharness.TextureFormat.bytesPerTexel's
// channel reasoning without depending on gpuharness for a plain count.
func texelChannels(format string) int {
	switch format {
	case "r32f":
		return 1
	default: // rgba8, rgba32f
		return 4
	}
}

// floatsFromBytes reinterprets data as a sequence of little-endian
// float32 values, the wire representation gpuharness staging buffers
// and packed resources share throughout this module.
func floatsFromBytes(data []byte) ops.Vec {
	out := make(ops.Vec, len(data)/4)
	for i := range out {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		out[i] = float64(math.Float32frombits(bits))
	}
	return out
}

// bytesFromFloats is the inverse of floatsFromBytes.
func bytesFromFloats(v ops.Vec) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(float32(f))
		out[i*4] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

// buildBuffers flattens every declared buffer resource's current host
// data into the map hostjit.RunContext.Buffers expects, so buffer_load/
// buffer_store nodes in a cpu function see the resource's prior
// contents instead of starting from an empty buffer every call.
func (ctx *Context) buildBuffers() map[string]ops.Vec {
	out := map[string]ops.Vec{}
	for id, state := range ctx.Resources {
		res, ok := ctx.doc.ResourceByID(id)
		if !ok || res.Kind != ir.ResourceBuffer {
			continue
		}
		cp := make(ops.Vec, len(state.Data))
		copy(cp, state.Data)
		out[string(id)] = cp
	}
	return out
}

// buildTextures is buildBuffers' texture2d counterpart, reshaping each
// resource's flat Data into the [row][col]ops.Vec texel_store/
// texture_load expect.
func (ctx *Context) buildTextures() map[string][][]ops.Vec {
	out := map[string][][]ops.Vec{}
	for id, state := range ctx.Resources {
		res, ok := ctx.doc.ResourceByID(id)
		if !ok || res.Kind != ir.ResourceTexture2D {
			continue
		}
		n := texelChannels(res.Format)
		rows := make([][]ops.Vec, res.Size.Height)
		for y := range rows {
			row := make([]ops.Vec, res.Size.Width)
			for x := range row {
				off := (y*res.Size.Width + x) * n
				if off+n <= len(state.Data) {
					texel := make(ops.Vec, n)
					copy(texel, state.Data[off:off+n])
					row[x] = texel
				}
			}
			rows[y] = row
		}
		out[string(id)] = rows
	}
	return out
}

// absorbBuffers writes rc's buffer contents (post-run, possibly
// modified by buffer_store) back into the matching resource states.
func (ctx *Context) absorbBuffers(buffers map[string]ops.Vec) {
	for idStr, data := range buffers {
		id := ir.ResourceID(idStr)
		state, ok := ctx.Resources[id]
		if !ok {
			continue
		}
		state.Data = data
	}
}

// absorbTextures is absorbBuffers' texture2d counterpart.
func (ctx *Context) absorbTextures(textures map[string][][]ops.Vec) {
	for idStr, rows := range textures {
		id := ir.ResourceID(idStr)
		state, ok := ctx.Resources[id]
		if !ok {
			continue
		}
		res, ok := ctx.doc.ResourceByID(id)
		if !ok {
			continue
		}
		n := texelChannels(res.Format)
		flat := make(ops.Vec, res.Size.Width*res.Size.Height*n)
		for y, row := range rows {
			for x, texel := range row {
				off := (y*res.Size.Width + x) * n
				for c := 0; c < n && c < len(texel); c++ {
					if off+c < len(flat) {
						flat[off+c] = texel[c]
					}
				}
			}
		}
		state.Data = flat
	}
}
