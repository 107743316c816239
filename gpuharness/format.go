package gpuharness

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
)

// TextureFormat enumerates the texture formats spec.md §4.5 supports:
// "rgba8, r32f, rgba32f".
type TextureFormat string

const (
	FormatRGBA8   TextureFormat = "rgba8"
	FormatR32F    TextureFormat = "r32f"
	FormatRGBA32F TextureFormat = "rgba32f"
)

// gpuFormat maps this harness's small format set onto the real
// gputypes.TextureFormat enum a Device implementation expects.
func (f TextureFormat) gpuFormat() (gputypes.TextureFormat, error) {
	switch f {
	case FormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case FormatR32F:
		return gputypes.TextureFormatR32Float, nil
	case FormatRGBA32F:
		return gputypes.TextureFormatRGBA32Float, nil
	default:
		return 0, fmt.Errorf("gpuharness: unsupported texture format %q", f)
	}
}

// bytesPerTexel returns the packed size, in bytes, of one texel of f.
func (f TextureFormat) bytesPerTexel() int {
	switch f {
	case FormatRGBA8:
		return 4
	case FormatR32F:
		return 4
	case FormatRGBA32F:
		return 16
	default:
		return 0
	}
}

// EncodeTexels converts host float values (each channel in [0,1] for
// rgba8, pass-through otherwise) into the packed byte representation
// Device.WriteTexture expects, per spec.md §4.5's "Resource format
// handling": "uploads convert host float values in [0,1] to u8 for
// rgba8, and pass-through for float formats."
func EncodeTexels(format TextureFormat, channels []float64) ([]byte, error) {
	switch format {
	case FormatRGBA8:
		out := make([]byte, len(channels))
		for i, v := range channels {
			out[i] = floatToUnorm8(v)
		}
		return out, nil
	case FormatR32F, FormatRGBA32F:
		out := make([]byte, 4*len(channels))
		for i, v := range channels {
			putFloat32(out[4*i:], float32(v))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("gpuharness: unsupported texture format %q", format)
	}
}

// DecodeTexels is EncodeTexels' inverse, converting normalized integer
// texels back to floats in [0,1] for rgba8, and passing floats through
// unchanged for float formats.
func DecodeTexels(format TextureFormat, data []byte) ([]float64, error) {
	switch format {
	case FormatRGBA8:
		out := make([]float64, len(data))
		for i, b := range data {
			out[i] = float64(b) / 255.0
		}
		return out, nil
	case FormatR32F, FormatRGBA32F:
		if len(data)%4 != 0 {
			return nil, fmt.Errorf("gpuharness: float texel data length %d not a multiple of 4", len(data))
		}
		out := make([]float64, len(data)/4)
		for i := range out {
			out[i] = float64(getFloat32(data[4*i:]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("gpuharness: unsupported texture format %q", format)
	}
}

func floatToUnorm8(v float64) byte {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return byte(math.Round(v * 255.0))
}

func putFloat32(dst []byte, v float32) {
	bits := math.Float32bits(v)
	dst[0] = byte(bits)
	dst[1] = byte(bits >> 8)
	dst[2] = byte(bits >> 16)
	dst[3] = byte(bits >> 24)
}

func getFloat32(src []byte) float32 {
	bits := uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
	return math.Float32frombits(bits)
}
