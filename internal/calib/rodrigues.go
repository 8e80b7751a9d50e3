package calib

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// rodriguesEpsilon is the rotation angle (radians) below which a rotation
	// vector is treated as the identity rotation.
	rodriguesEpsilon = 1e-12

	// nearPiEpsilon switches RotationVector to the diagonal-based axis
	// recovery, where the antisymmetric part of R vanishes.
	nearPiEpsilon = 1e-6

	// MatrixValidationTolerance is the tolerance for checking rotation matrix
	// validity (orthonormality and unit determinant).
	MatrixValidationTolerance = 1e-6
)

// Rodrigues converts a rotation vector (axis·angle, radians) to a 3×3
// rotation matrix: R = I·cosθ + sinθ·[k]× + (1−cosθ)·k·kᵗ.
func Rodrigues(v r3.Vec) *mat.Dense {
	theta := r3.Norm(v)
	if theta < rodriguesEpsilon {
		return identity3()
	}
	k := r3.Scale(1/theta, v)
	sin, cos := math.Sincos(theta)
	c1 := 1 - cos

	return mat.NewDense(3, 3, []float64{
		cos + k.X*k.X*c1, k.X*k.Y*c1 - k.Z*sin, k.X*k.Z*c1 + k.Y*sin,
		k.Y*k.X*c1 + k.Z*sin, cos + k.Y*k.Y*c1, k.Y*k.Z*c1 - k.X*sin,
		k.Z*k.X*c1 - k.Y*sin, k.Z*k.Y*c1 + k.X*sin, cos + k.Z*k.Z*c1,
	})
}

// RotationVector is the inverse of Rodrigues: it returns the rotation
// vector with angle in [0, π] for a proper rotation matrix.
func RotationVector(R mat.Matrix) r3.Vec {
	// The antisymmetric part of R is 2·sinθ·k.
	w := r3.Vec{
		X: R.At(2, 1) - R.At(1, 2),
		Y: R.At(0, 2) - R.At(2, 0),
		Z: R.At(1, 0) - R.At(0, 1),
	}
	cosTheta := (R.At(0, 0) + R.At(1, 1) + R.At(2, 2) - 1) / 2
	theta := math.Atan2(r3.Norm(w)/2, cosTheta)

	if theta < rodriguesEpsilon {
		return r3.Vec{}
	}

	if math.Pi-theta < nearPiEpsilon {
		// R ≈ 2kkᵗ − I. Recover k from the largest diagonal entry, then
		// take its sign from the antisymmetric part.
		i := 0
		for j := 1; j < 3; j++ {
			if R.At(j, j) > R.At(i, i) {
				i = j
			}
		}
		var k [3]float64
		k[i] = math.Sqrt(math.Max(0, (R.At(i, i)+1)/2))
		for j := 0; j < 3; j++ {
			if j != i {
				k[j] = (R.At(i, j) + R.At(j, i)) / (4 * k[i])
			}
		}
		axis := r3.Unit(r3.Vec{X: k[0], Y: k[1], Z: k[2]})
		if r3.Dot(axis, w) < 0 {
			axis = r3.Scale(-1, axis)
		}
		return r3.Scale(theta, axis)
	}

	return r3.Scale(theta/(2*math.Sin(theta)), w)
}

// IsRotationMatrix reports whether R is 3×3, orthonormal (R·Rᵗ ≈ I) and has
// determinant ≈ +1 within tol.
func IsRotationMatrix(R mat.Matrix, tol float64) bool {
	if r, c := R.Dims(); r != 3 || c != 3 {
		return false
	}
	var rrt mat.Dense
	rrt.Mul(R, R.T())
	if !mat.EqualApprox(&rrt, identity3(), tol) {
		return false
	}
	return scalar.EqualWithinAbs(mat.Det(R), 1, tol)
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}
