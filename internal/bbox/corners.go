package bbox

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"
)

// NumCorners is the number of corners in an oriented 3D box.
const NumCorners = 8

// Corner names a position in a Box3D. The local frame has X along the
// object's length (front positive), Y lateral (left positive) and Z up.
type Corner int

const (
	BottomRearRight Corner = iota
	BottomFrontRight
	BottomFrontLeft
	BottomRearLeft
	TopRearRight
	TopFrontRight
	TopFrontLeft
	TopRearLeft
)

var cornerNames = [NumCorners]string{
	"bottom-rear-right",
	"bottom-front-right",
	"bottom-front-left",
	"bottom-rear-left",
	"top-rear-right",
	"top-front-right",
	"top-front-left",
	"top-rear-left",
}

func (c Corner) String() string {
	if c < 0 || int(c) >= NumCorners {
		return "corner(" + strconv.Itoa(int(c)) + ")"
	}
	return cornerNames[c]
}

// IsTop reports whether the corner lies on the top face.
func (c Corner) IsTop() bool { return c >= TopRearRight }

// Opposite returns the vertically paired corner on the other face.
func (c Corner) Opposite() Corner {
	if c.IsTop() {
		return c - 4
	}
	return c + 4
}

// Edge is a pair of corners joined by a box edge.
type Edge struct {
	From, To Corner
}

// Edges lists the 12 box edges: bottom ring, top ring, then verticals.
var Edges = [12]Edge{
	{BottomRearRight, BottomFrontRight},
	{BottomFrontRight, BottomFrontLeft},
	{BottomFrontLeft, BottomRearLeft},
	{BottomRearLeft, BottomRearRight},
	{TopRearRight, TopFrontRight},
	{TopFrontRight, TopFrontLeft},
	{TopFrontLeft, TopRearLeft},
	{TopRearLeft, TopRearRight},
	{BottomRearRight, TopRearRight},
	{BottomFrontRight, TopFrontRight},
	{BottomFrontLeft, TopFrontLeft},
	{BottomRearLeft, TopRearLeft},
}

// Dimension is a box extent in world units (centimetres in the dataset).
type Dimension struct {
	Length float64 // along the unrotated forward axis
	Width  float64 // lateral
	Height float64 // vertical
}

// ObjectPose is one annotated object as seen in one camera frame.
type ObjectPose struct {
	Location    r3.Vec // box center, world frame
	RotationDeg float64
	Dimension   Dimension
	Visible     bool
}

// Box3D holds the eight world-frame corners of an oriented box, indexed by
// Corner.
type Box3D [NumCorners]r3.Vec

// At returns the point for a named corner.
func (b *Box3D) At(c Corner) r3.Vec { return b[c] }

// Points returns the corners as a slice in Corner order.
func (b *Box3D) Points() []r3.Vec {
	out := make([]r3.Vec, NumCorners)
	copy(out, b[:])
	return out
}

// localSigns holds the (x, y) half-extent signs of the bottom face in cyclic
// order; the top face repeats them.
var localSigns = [4][2]float64{
	{-1, -1},
	{1, -1},
	{1, 1},
	{-1, 1},
}

// Corners expands a pose into its eight world-frame box corners. Yaw rotates
// about the world Z axis; Z offsets are unaffected by yaw.
func Corners(pose ObjectPose) (Box3D, error) {
	var box Box3D
	if err := validateDimension(pose.Dimension); err != nil {
		return box, err
	}

	hl := pose.Dimension.Length / 2
	hw := pose.Dimension.Width / 2
	hh := pose.Dimension.Height / 2

	theta := pose.RotationDeg * math.Pi / 180.0
	sin, cos := math.Sincos(theta)

	for i, s := range localSigns {
		x := s[0] * hl
		y := s[1] * hw
		rx := x*cos - y*sin
		ry := x*sin + y*cos

		box[i] = r3.Add(pose.Location, r3.Vec{X: rx, Y: ry, Z: -hh})
		box[i+4] = r3.Add(pose.Location, r3.Vec{X: rx, Y: ry, Z: hh})
	}
	return box, nil
}

func validateDimension(d Dimension) error {
	for _, v := range [3]float64{d.Length, d.Width, d.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidPoseError{Dimension: d, Reason: "dimension is not finite"}
		}
		if v <= 0 {
			return &InvalidPoseError{Dimension: d, Reason: "dimension must be positive"}
		}
	}
	return nil
}
