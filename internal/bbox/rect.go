package bbox

import "math"

// Rect4 is an axis-aligned rectangle in image pixels.
type Rect4 struct {
	XMin, YMin, XMax, YMax float64
}

func (r Rect4) Width() float64  { return r.XMax - r.XMin }
func (r Rect4) Height() float64 { return r.YMax - r.YMin }

// Contains reports whether p lies inside r, edges included.
func (r Rect4) Contains(p Point2) bool {
	return p.X >= r.XMin && p.X <= r.XMax && p.Y >= r.YMin && p.Y <= r.YMax
}

// EnclosingRect returns the tightest axis-aligned rectangle around exactly
// NumCorners projected corners. No clipping to image bounds is applied.
func EnclosingRect(corners []Point2) (Rect4, error) {
	if len(corners) != NumCorners {
		return Rect4{}, &MalformedCornerSetError{Count: len(corners)}
	}

	r := Rect4{
		XMin: math.Inf(1), YMin: math.Inf(1),
		XMax: math.Inf(-1), YMax: math.Inf(-1),
	}
	for _, c := range corners {
		if math.IsNaN(c.X) || math.IsNaN(c.Y) || math.IsInf(c.X, 0) || math.IsInf(c.Y, 0) {
			return Rect4{}, &MalformedCornerSetError{Count: len(corners), Reason: "corner coordinate is not finite"}
		}
		r.XMin = math.Min(r.XMin, c.X)
		r.XMax = math.Max(r.XMax, c.X)
		r.YMin = math.Min(r.YMin, c.Y)
		r.YMax = math.Max(r.YMax, c.Y)
	}
	return r, nil
}
