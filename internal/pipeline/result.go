package pipeline

import (
	"errors"

	"github.com/banshee-data/multiviewc/internal/bbox"
)

// Status summarises an ObjectResult for logs and storage.
type Status string

const (
	StatusOK               Status = "ok"
	StatusBadRecord        Status = "bad_record"
	StatusInvalidPose      Status = "invalid_pose"
	StatusBehindCamera     Status = "behind_camera"
	StatusMalformedCorners Status = "malformed_corners"
)

// ObjectResult is the projection of one object into one camera.
type ObjectResult struct {
	Camera      int
	ObjectIndex int // position within the camera's annotation list
	ID          string
	Action      string

	// HeadingDeg is the object's camera-relative heading (see
	// calib.CameraHeading).
	HeadingDeg float64

	Box     bbox.Box3D
	Corners []bbox.Point2 // projected, in bbox.Corner order
	Depth   []float64
	Rect    bbox.Rect4

	Err error
}

// OK reports whether the object projected cleanly.
func (r *ObjectResult) OK() bool { return r.Err == nil }

// Status classifies Err.
func (r *ObjectResult) Status() Status {
	var poseErr *bbox.InvalidPoseError
	var cornerErr *bbox.MalformedCornerSetError
	switch {
	case r.Err == nil:
		return StatusOK
	case errors.As(r.Err, &poseErr):
		return StatusInvalidPose
	case errors.Is(r.Err, bbox.ErrBehindCamera):
		return StatusBehindCamera
	case errors.As(r.Err, &cornerErr):
		return StatusMalformedCorners
	default:
		return StatusBadRecord
	}
}

// CameraResult holds one camera's projected objects. Invisible objects are
// not included.
type CameraResult struct {
	Camera       int
	YawOffsetDeg float64
	Objects      []ObjectResult
	Err          error
}

// FrameResult is the output of one ProjectFrame call.
type FrameResult struct {
	Index   int
	Cameras []CameraResult
}

// Boxes returns every successfully projected object in (camera, object)
// order.
func (f *FrameResult) Boxes() []ObjectResult {
	var out []ObjectResult
	for _, c := range f.Cameras {
		for _, o := range c.Objects {
			if o.OK() {
				out = append(out, o)
			}
		}
	}
	return out
}

// Failures returns every object that failed projection.
func (f *FrameResult) Failures() []ObjectResult {
	var out []ObjectResult
	for _, c := range f.Cameras {
		for _, o := range c.Objects {
			if !o.OK() {
				out = append(out, o)
			}
		}
	}
	return out
}

// Camera returns the result for a camera index.
func (f *FrameResult) Camera(camera int) (*CameraResult, bool) {
	for i := range f.Cameras {
		if f.Cameras[i].Camera == camera {
			return &f.Cameras[i], true
		}
	}
	return nil, false
}
