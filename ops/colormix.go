package ops

// ColorMix computes premultiplied source-over compositing, exactly as
// the shader generator's color_mix helper does in emitted shader source
// (spec.md §4.3): outA = srcA + dstA*(1-srcA); if outA is ~0 the result
// is transparent black; otherwise outRGB is un-premultiplied by outA.
//
// dst and src are [r,g,b,a] Vecs, in the color_mix op's own argument
// order: the first argument is the background dst is composited under,
// the second is the src layer composited over it. The result is a
// [r,g,b,a] Vec.
func ColorMix(dst, src Vec) Vec {
	srcA, dstA := src[3], dst[3]
	outA := srcA + dstA*(1-srcA)
	if outA < 1e-5 {
		return Vec{0, 0, 0, 0}
	}
	out := make(Vec, 4)
	for i := 0; i < 3; i++ {
		out[i] = (src[i]*srcA + dst[i]*dstA*(1-srcA)) / outA
	}
	out[3] = outA
	return out
}
