package bbox

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Point2 is an image-plane coordinate in pixels.
type Point2 struct {
	X, Y float64
}

// Projection is the result of pushing world points through a camera matrix.
// Points[i] corresponds to the i-th input point. Depth[i] is the
// homogeneous w component before the divide; a value <= 0 means the point
// is on or behind the camera plane and Points[i] is not meaningful.
type Projection struct {
	Points []Point2
	Depth  []float64
}

// Behind reports whether point i had non-positive depth.
func (p Projection) Behind(i int) bool { return p.Depth[i] <= 0 }

// AnyBehind reports whether any point had non-positive depth.
func (p Projection) AnyBehind() bool {
	for _, d := range p.Depth {
		if d <= 0 {
			return true
		}
	}
	return false
}

// Project maps world points through a 3×4 projection matrix P = K·[R|t].
// Each point p becomes q = P·[p;1] and then (q.x/q.z, q.y/q.z). The divide
// is performed for every point, including those with q.z <= 0; callers
// decide what to do with them using Projection.Depth.
func Project(points []r3.Vec, P mat.Matrix) (Projection, error) {
	if r, c := P.Dims(); r != 3 || c != 4 {
		return Projection{}, fmt.Errorf("projection matrix must be 3x4, got %dx%d", r, c)
	}

	out := Projection{
		Points: make([]Point2, len(points)),
		Depth:  make([]float64, len(points)),
	}
	h := mat.NewVecDense(4, nil)
	var q mat.VecDense
	for i, p := range points {
		h.SetVec(0, p.X)
		h.SetVec(1, p.Y)
		h.SetVec(2, p.Z)
		h.SetVec(3, 1)
		q.MulVec(P, h)

		w := q.AtVec(2)
		out.Depth[i] = w
		out.Points[i] = Point2{X: q.AtVec(0) / w, Y: q.AtVec(1) / w}
	}
	return out, nil
}
