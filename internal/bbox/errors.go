package bbox

import (
	"errors"
	"fmt"
)

// ErrBehindCamera marks an object whose projected corners include a point on
// or behind the camera plane (non-positive depth).
var ErrBehindCamera = errors.New("corner behind camera")

// InvalidPoseError reports a pose whose box extent cannot produce valid
// geometry.
type InvalidPoseError struct {
	Dimension Dimension
	Reason    string
}

func (e *InvalidPoseError) Error() string {
	return fmt.Sprintf("invalid pose: %s (dimension l=%g w=%g h=%g)",
		e.Reason, e.Dimension.Length, e.Dimension.Width, e.Dimension.Height)
}

// MalformedCornerSetError reports a projected corner set that cannot be
// reduced to a rectangle.
type MalformedCornerSetError struct {
	Count  int
	Reason string
}

func (e *MalformedCornerSetError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("malformed corner set: %s", e.Reason)
	}
	return fmt.Sprintf("malformed corner set: got %d corners, want %d", e.Count, NumCorners)
}
