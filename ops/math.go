package ops

import (
	"fmt"
	"math"
)

// Vec is the host-side value representation pure math ops compute over:
// a scalar is a length-1 Vec. Broadcasting a scalar against a longer Vec
// mirrors standard shader broadcasting per spec.md §4.2.
type Vec []float64

// Scalar wraps a single float64 as a length-1 Vec.
func Scalar(x float64) Vec { return Vec{x} }

// Bool converts a scalar 0/1 encoding to bool, treating any nonzero value
// as true per spec.md §4.3's "(x != 0.0)" coercion rule.
func (v Vec) Bool() bool {
	return len(v) > 0 && v[0] != 0
}

// BoolVec encodes b as the 0.0/1.0 scalar convention used for comparisons
// and logical ops.
func BoolVec(b bool) Vec {
	if b {
		return Scalar(1)
	}
	return Scalar(0)
}

func broadcastLen(a, b Vec) (int, error) {
	switch {
	case len(a) == len(b):
		return len(a), nil
	case len(a) == 1:
		return len(b), nil
	case len(b) == 1:
		return len(a), nil
	default:
		return 0, fmt.Errorf("ops: cannot broadcast lengths %d and %d", len(a), len(b))
	}
}

func at(v Vec, i int) float64 {
	if len(v) == 1 {
		return v[0]
	}
	return v[i]
}

func binaryOp(a, b Vec, f func(x, y float64) float64) (Vec, error) {
	n, err := broadcastLen(a, b)
	if err != nil {
		return nil, err
	}
	out := make(Vec, n)
	for i := 0; i < n; i++ {
		out[i] = f(at(a, i), at(b, i))
	}
	return out, nil
}

func unaryOp(a Vec, f func(x float64) float64) Vec {
	out := make(Vec, len(a))
	for i, x := range a {
		out[i] = f(x)
	}
	return out
}

// Add, Sub, Mul, Div, Mod and Mad implement math_add/sub/mul/div/mod/mad.
// Mod follows spec.md §4.3: mod(a,b) = a - b*floor(a/b).
func Add(a, b Vec) (Vec, error) { return binaryOp(a, b, func(x, y float64) float64 { return x + y }) }
func Sub(a, b Vec) (Vec, error) { return binaryOp(a, b, func(x, y float64) float64 { return x - y }) }
func Mul(a, b Vec) (Vec, error) { return binaryOp(a, b, func(x, y float64) float64 { return x * y }) }
func Div(a, b Vec) (Vec, error) { return binaryOp(a, b, func(x, y float64) float64 { return x / y }) }
func Mod(a, b Vec) (Vec, error) {
	return binaryOp(a, b, func(x, y float64) float64 { return x - y*math.Floor(x/y) })
}

// Mad computes a*b+c elementwise.
func Mad(a, b, c Vec) (Vec, error) {
	ab, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	return Add(ab, c)
}

func Abs(a Vec) Vec   { return unaryOp(a, math.Abs) }
func Floor(a Vec) Vec { return unaryOp(a, math.Floor) }
func Ceil(a Vec) Vec  { return unaryOp(a, math.Ceil) }
func Fract(a Vec) Vec { return unaryOp(a, func(x float64) float64 { return x - math.Floor(x) }) }
func Sqrt(a Vec) Vec  { return unaryOp(a, math.Sqrt) }
func Exp(a Vec) Vec   { return unaryOp(a, math.Exp) }
func Log(a Vec) Vec   { return unaryOp(a, math.Log) }
func Sin(a Vec) Vec   { return unaryOp(a, math.Sin) }
func Cos(a Vec) Vec   { return unaryOp(a, math.Cos) }
func Tan(a Vec) Vec   { return unaryOp(a, math.Tan) }
func Tanh(a Vec) Vec  { return unaryOp(a, math.Tanh) }
func Atan(a Vec) Vec  { return unaryOp(a, math.Atan) }
func Sign(a Vec) Vec {
	return unaryOp(a, func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		default:
			return 0
		}
	})
}

func Pow(a, b Vec) (Vec, error)   { return binaryOp(a, b, math.Pow) }
func Min(a, b Vec) (Vec, error)   { return binaryOp(a, b, math.Min) }
func Max(a, b Vec) (Vec, error)   { return binaryOp(a, b, math.Max) }
func Atan2(a, b Vec) (Vec, error) { return binaryOp(a, b, math.Atan2) }

// Clamp computes clamp(x, lo, hi) elementwise.
func Clamp(x, lo, hi Vec) (Vec, error) {
	lowered, err := Max(x, lo)
	if err != nil {
		return nil, err
	}
	return Min(lowered, hi)
}

// Mix computes linear interpolation a + (b-a)*t elementwise.
func Mix(a, b, t Vec) (Vec, error) {
	d, err := Sub(b, a)
	if err != nil {
		return nil, err
	}
	scaled, err := Mul(d, t)
	if err != nil {
		return nil, err
	}
	return Add(a, scaled)
}

func compare(a, b Vec, f func(x, y float64) bool) (Vec, error) {
	n, err := broadcastLen(a, b)
	if err != nil {
		return nil, err
	}
	out := make(Vec, n)
	for i := 0; i < n; i++ {
		if f(at(a, i), at(b, i)) {
			out[i] = 1
		}
	}
	return out, nil
}

func Lt(a, b Vec) (Vec, error)  { return compare(a, b, func(x, y float64) bool { return x < y }) }
func Gt(a, b Vec) (Vec, error)  { return compare(a, b, func(x, y float64) bool { return x > y }) }
func Le(a, b Vec) (Vec, error)  { return compare(a, b, func(x, y float64) bool { return x <= y }) }
func Ge(a, b Vec) (Vec, error)  { return compare(a, b, func(x, y float64) bool { return x >= y }) }
func Eq(a, b Vec) (Vec, error)  { return compare(a, b, func(x, y float64) bool { return x == y }) }
func Neq(a, b Vec) (Vec, error) { return compare(a, b, func(x, y float64) bool { return x != y }) }

func logical(a, b Vec, f func(x, y bool) bool) (Vec, error) {
	n, err := broadcastLen(a, b)
	if err != nil {
		return nil, err
	}
	out := make(Vec, n)
	for i := 0; i < n; i++ {
		if f(at(a, i) != 0, at(b, i) != 0) {
			out[i] = 1
		}
	}
	return out, nil
}

func And(a, b Vec) (Vec, error) { return logical(a, b, func(x, y bool) bool { return x && y }) }
func Or(a, b Vec) (Vec, error)  { return logical(a, b, func(x, y bool) bool { return x || y }) }
func Xor(a, b Vec) (Vec, error) { return logical(a, b, func(x, y bool) bool { return x != y }) }
func Not(a Vec) Vec {
	return unaryOp(a, func(x float64) float64 {
		if x != 0 {
			return 0
		}
		return 1
	})
}

const (
	Pi = math.Pi
	E  = math.E
)
