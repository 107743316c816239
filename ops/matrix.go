package ops

import (
	"fmt"
	"math"
)

// Matrices are flattened Vecs of column-major scalars: 9 for float3x3 (3
// columns of 3), 16 for float4x4 (4 columns of 4) — the same
// representation evalMatrixConstructor/lowerMatrixConstructor build from
// column arguments, not the padded 16-byte-per-column GPU layout package
// layout computes for storage.

// MatExtract returns column col (0-based) of an n x n matrix m.
func MatExtract(m Vec, col int) (Vec, error) {
	n := matrixOrder(len(m))
	if n == 0 {
		return nil, fmt.Errorf("ops: %d is not a supported matrix element count", len(m))
	}
	if col < 0 || col >= n {
		return nil, fmt.Errorf("ops: matrix column %d out of range (order %d)", col, n)
	}
	return append(Vec(nil), m[col*n:col*n+n]...), nil
}

func matrixOrder(n int) int {
	switch n {
	case 9:
		return 3
	case 16:
		return 4
	default:
		return 0
	}
}

// MatMul multiplies two square column-major matrices of equal order.
func MatMul(a, b Vec) (Vec, error) {
	n := matrixOrder(len(a))
	if n == 0 || len(a) != len(b) {
		return nil, fmt.Errorf("ops: mat_mul requires equal-order square matrices, got %d and %d elements", len(a), len(b))
	}
	out := make(Vec, n*n)
	for col := 0; col < n; col++ {
		for row := 0; row < n; row++ {
			var sum float64
			for k := 0; k < n; k++ {
				sum += a[k*n+row] * b[col*n+k]
			}
			out[col*n+row] = sum
		}
	}
	return out, nil
}

// QuatMul computes the Hamilton product a*b of two (x,y,z,w) quaternions.
func QuatMul(a, b Vec) (Vec, error) {
	if len(a) != 4 || len(b) != 4 {
		return nil, fmt.Errorf("ops: quat_mul requires 4-component quaternions")
	}
	ax, ay, az, aw := a[0], a[1], a[2], a[3]
	bx, by, bz, bw := b[0], b[1], b[2], b[3]
	return Vec{
		aw*bx + ax*bw + ay*bz - az*by,
		aw*by - ax*bz + ay*bw + az*bx,
		aw*bz + ax*by - ay*bx + az*bw,
		aw*bw - ax*bx - ay*by - az*bz,
	}, nil
}

// QuatSlerp spherically interpolates between quaternions a and b by t in
// [0,1], taking the short path (negating b when the dot product is
// negative).
func QuatSlerp(a, b Vec, t float64) (Vec, error) {
	if len(a) != 4 || len(b) != 4 {
		return nil, fmt.Errorf("ops: quat_slerp requires 4-component quaternions")
	}
	dot := a[0]*b[0] + a[1]*b[1] + a[2]*b[2] + a[3]*b[3]
	bb := append(Vec(nil), b...)
	if dot < 0 {
		dot = -dot
		for i := range bb {
			bb[i] = -bb[i]
		}
	}
	const epsilon = 1e-6
	if dot > 1-epsilon {
		out := make(Vec, 4)
		for i := range out {
			out[i] = a[i] + (bb[i]-a[i])*t
		}
		return Normalize(out)
	}
	theta0 := math.Acos(dot)
	theta := theta0 * t
	sinTheta0 := math.Sin(theta0)
	s0 := math.Cos(theta) - dot*math.Sin(theta)/sinTheta0
	s1 := math.Sin(theta) / sinTheta0
	out := make(Vec, 4)
	for i := range out {
		out[i] = s0*a[i] + s1*bb[i]
	}
	return out, nil
}

// QuatToMat4 converts a unit (x,y,z,w) quaternion into a column-major
// float4x4 rotation matrix (translation column is identity/zero).
func QuatToMat4(q Vec) (Vec, error) {
	if len(q) != 4 {
		return nil, fmt.Errorf("ops: quat_to_mat4 requires a 4-component quaternion")
	}
	x, y, z, w := q[0], q[1], q[2], q[3]
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z
	return Vec{
		1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy), 0,
		2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx), 0,
		2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}, nil
}
