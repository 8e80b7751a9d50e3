package calib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// CameraCalibration is one camera's intrinsic and extrinsic calibration.
// It is immutable after construction; accessors return copies.
type CameraCalibration struct {
	camera       int
	intrinsic    *mat.Dense // K, 3×3
	rvec         r3.Vec
	rotation     *mat.Dense // R, 3×3
	translation  r3.Vec     // t, world -> camera
	yawOffsetDeg float64    // R_z
	projection   *mat.Dense // K·[R|t], 3×4
}

// NewCameraCalibration validates the raw calibration values and derives
// the rotation and projection matrices.
func NewCameraCalibration(camera int, intrinsic mat.Matrix, rvec, tvec r3.Vec, yawOffsetDeg float64) (*CameraCalibration, error) {
	K, err := validateIntrinsic(intrinsic)
	if err != nil {
		return nil, err
	}
	if !finiteVec(rvec) {
		return nil, fmt.Errorf("rotation vector is not finite")
	}
	if !finiteVec(tvec) {
		return nil, fmt.Errorf("translation vector is not finite")
	}
	if math.IsNaN(yawOffsetDeg) || math.IsInf(yawOffsetDeg, 0) {
		return nil, fmt.Errorf("yaw offset R_z is not finite")
	}

	R := Rodrigues(rvec)
	if !IsRotationMatrix(R, MatrixValidationTolerance) {
		return nil, fmt.Errorf("rotation vector does not yield a proper rotation")
	}

	extrinsic := mat.NewDense(3, 4, nil)
	extrinsic.Slice(0, 3, 0, 3).(*mat.Dense).Copy(R)
	extrinsic.Set(0, 3, tvec.X)
	extrinsic.Set(1, 3, tvec.Y)
	extrinsic.Set(2, 3, tvec.Z)

	P := mat.NewDense(3, 4, nil)
	P.Mul(K, extrinsic)

	return &CameraCalibration{
		camera:       camera,
		intrinsic:    K,
		rvec:         rvec,
		rotation:     R,
		translation:  tvec,
		yawOffsetDeg: yawOffsetDeg,
		projection:   P,
	}, nil
}

// Camera returns the zero-based camera index.
func (c *CameraCalibration) Camera() int { return c.camera }

// Intrinsic returns a copy of K.
func (c *CameraCalibration) Intrinsic() *mat.Dense { return mat.DenseCopyOf(c.intrinsic) }

// Rotation returns a copy of R.
func (c *CameraCalibration) Rotation() *mat.Dense { return mat.DenseCopyOf(c.rotation) }

// RotationVector returns the rotation vector R was built from.
func (c *CameraCalibration) RotationVector() r3.Vec { return c.rvec }

// Translation returns t.
func (c *CameraCalibration) Translation() r3.Vec { return c.translation }

// YawOffsetDeg returns R_z in degrees.
func (c *CameraCalibration) YawOffsetDeg() float64 { return c.yawOffsetDeg }

// YawOffsetRad returns R_z in radians.
func (c *CameraCalibration) YawOffsetRad() float64 { return c.yawOffsetDeg * math.Pi / 180.0 }

// Projection returns a copy of the cached 3×4 projection matrix K·[R|t].
func (c *CameraCalibration) Projection() *mat.Dense { return mat.DenseCopyOf(c.projection) }

// Center returns the camera position in world coordinates, C = −Rᵗ·t.
func (c *CameraCalibration) Center() r3.Vec {
	t := mat.NewVecDense(3, []float64{c.translation.X, c.translation.Y, c.translation.Z})
	var out mat.VecDense
	out.MulVec(c.rotation.T(), t)
	return r3.Vec{X: -out.AtVec(0), Y: -out.AtVec(1), Z: -out.AtVec(2)}
}

// ToCamera maps a world point into the camera frame, R·p + t.
func (c *CameraCalibration) ToCamera(p r3.Vec) r3.Vec {
	v := mat.NewVecDense(3, []float64{p.X, p.Y, p.Z})
	var out mat.VecDense
	out.MulVec(c.rotation, v)
	return r3.Add(r3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}, c.translation)
}

// validateIntrinsic checks K is a finite 3×3 matrix with K[2][2] == 1 and
// returns a private copy.
func validateIntrinsic(intrinsic mat.Matrix) (*mat.Dense, error) {
	if r, c := intrinsic.Dims(); r != 3 || c != 3 {
		return nil, fmt.Errorf("intrinsic matrix must be 3x3, got %dx%d", r, c)
	}
	K := mat.DenseCopyOf(intrinsic)
	for _, v := range K.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("intrinsic matrix has non-finite element")
		}
	}
	if K.At(2, 2) != 1 {
		return nil, fmt.Errorf("intrinsic matrix K[2][2] = %g, want 1", K.At(2, 2))
	}
	return K, nil
}

func finiteVec(v r3.Vec) bool {
	for _, x := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
