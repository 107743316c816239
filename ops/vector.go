package ops

import (
	"fmt"
	"math"
)

var channelOrder = []string{"x", "y", "z", "w"}
var colorAlias = map[byte]byte{'r': 'x', 'g': 'y', 'b': 'z', 'a': 'w'}

// Swizzle reorders/duplicates vec's components according to channels, a
// 1-4 character string over {x,y,z,w} or {r,g,b,a}, per spec.md §4.2.
func Swizzle(vec Vec, channels string) (Vec, error) {
	out := make(Vec, len(channels))
	for i := 0; i < len(channels); i++ {
		idx, err := channelIndex(channels[i])
		if err != nil {
			return nil, err
		}
		if idx >= len(vec) {
			return nil, fmt.Errorf("ops: swizzle channel %c out of range for %d-component vector", channels[i], len(vec))
		}
		out[i] = vec[idx]
	}
	return out, nil
}

func channelIndex(c byte) (int, error) {
	if a, ok := colorAlias[c]; ok {
		c = a
	}
	for i, ch := range channelOrder {
		if ch[0] == c {
			return i, nil
		}
	}
	return 0, fmt.Errorf("ops: invalid channel %q", string(c))
}

// GetElement returns vec[index].
func GetElement(vec Vec, index int) (Vec, error) {
	if index < 0 || index >= len(vec) {
		return nil, fmt.Errorf("ops: vector index %d out of range (len %d)", index, len(vec))
	}
	return Scalar(vec[index]), nil
}

// Dot computes the dot product of two equal-length vectors.
func Dot(a, b Vec) (Vec, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("ops: dot operands have mismatched length %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return Scalar(sum), nil
}

// Length computes the Euclidean length of a vector.
func Length(a Vec) Vec {
	d, _ := Dot(a, a)
	return Scalar(math.Sqrt(d[0]))
}

// Normalize scales a to unit length.
func Normalize(a Vec) (Vec, error) {
	l := Length(a)
	if l[0] == 0 {
		return nil, fmt.Errorf("ops: cannot normalize a zero-length vector")
	}
	out := make(Vec, len(a))
	for i, x := range a {
		out[i] = x / l[0]
	}
	return out, nil
}

// ComponentGroup is one named, gap-free group of a flexible constructor
// call (e.g. {"xy": v2} or {"z": 1.0}), per spec.md §4.2.
type ComponentGroup struct {
	Channels string
	Value    Vec
}

// Construct builds a target-component vector from either positional
// scalar arguments or non-overlapping, gap-free component groups,
// matching testable property #2: the result's length equals target, and
// its elements are the concatenation of the component-group arguments in
// x,y,z,w order.
func Construct(target int, positional Vec, groups []ComponentGroup) (Vec, error) {
	if len(positional) > 0 {
		if len(positional) != target {
			return nil, fmt.Errorf("ops: constructor expected %d positional components, got %d", target, len(positional))
		}
		return append(Vec(nil), positional...), nil
	}

	out := make(Vec, target)
	covered := make([]bool, target)
	for _, g := range groups {
		for i := 0; i < len(g.Channels); i++ {
			idx, err := channelIndex(g.Channels[i])
			if err != nil {
				return nil, err
			}
			if idx >= target {
				return nil, fmt.Errorf("ops: channel group %q addresses component %d beyond target size %d", g.Channels, idx, target)
			}
			if covered[idx] {
				return nil, fmt.Errorf("ops: channel group %q overlaps component %d", g.Channels, idx)
			}
			covered[idx] = true
			out[idx] = at(g.Value, i)
		}
	}
	for i, c := range covered {
		if !c {
			return nil, fmt.Errorf("ops: component %d (%s) is not covered by any channel group", i, channelOrder[i])
		}
	}
	return out, nil
}

// Broadcast replicates a scalar to all target components, implementing
// the constructor's broadcast form floatN{xyz...: scalar}.
func Broadcast(target int, scalar float64) Vec {
	out := make(Vec, target)
	for i := range out {
		out[i] = scalar
	}
	return out
}
