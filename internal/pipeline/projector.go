package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/multiviewc/internal/annotation"
	"github.com/banshee-data/multiviewc/internal/bbox"
	"github.com/banshee-data/multiviewc/internal/calib"
	"github.com/banshee-data/multiviewc/internal/config"
	"github.com/banshee-data/multiviewc/internal/monitoring"
	"github.com/banshee-data/multiviewc/internal/timeutil"
)

var logf = monitoring.Component("pipeline")

// CalibrationSource provides loaded camera calibrations. *calib.Store
// implements it.
type CalibrationSource interface {
	Load(camera int) (*calib.CameraCalibration, error)
}

// BehindCameraPolicy selects what happens to objects with a corner on or
// behind the camera plane.
type BehindCameraPolicy int

const (
	// RejectBehindCamera fails the object with bbox.ErrBehindCamera.
	RejectBehindCamera BehindCameraPolicy = iota
	// PermitBehindCamera keeps the raw divided coordinates, matching the
	// dataset's reference viewer.
	PermitBehindCamera
)

// ParseBehindCameraPolicy maps a configuration value to a policy.
func ParseBehindCameraPolicy(s string) (BehindCameraPolicy, error) {
	switch s {
	case config.BehindCameraReject, "":
		return RejectBehindCamera, nil
	case config.BehindCameraPermit:
		return PermitBehindCamera, nil
	default:
		return 0, fmt.Errorf("unknown behind-camera policy %q", s)
	}
}

// Options configures a Projector.
type Options struct {
	BehindCamera BehindCameraPolicy
	Workers      int // maximum cameras in flight; <= 0 means 1
	// Clock times each frame for the summary log; nil means the system
	// clock.
	Clock timeutil.Clock
}

// Projector runs the per-frame projection.
type Projector struct {
	source CalibrationSource
	opts   Options
}

// NewProjector returns a projector reading calibrations from source.
func NewProjector(source CalibrationSource, opts Options) *Projector {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Projector{source: source, opts: opts}
}

// ProjectFrame projects the frame's visible objects for each requested
// camera. A nil cameras slice means every camera present in the frame;
// a camera listed twice is projected once.
// Only context cancellation produces a non-nil error.
func (p *Projector) ProjectFrame(ctx context.Context, frame *annotation.Frame, cameras []int) (*FrameResult, error) {
	if cameras == nil {
		cameras = frame.Cameras()
	}
	start := p.opts.Clock.Now()
	cameras = uniqueCameras(cameras)
	res := &FrameResult{
		Index:   frame.Index,
		Cameras: make([]CameraResult, len(cameras)),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, cam := range cameras {
		i, cam := i, cam
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res.Cameras[i] = p.projectCamera(cam, frame.Views[cam])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ok, failed int
	for _, c := range res.Cameras {
		if c.Err != nil {
			logf("frame %d camera %d skipped: %v", frame.Index, c.Camera, c.Err)
			continue
		}
		for _, o := range c.Objects {
			if o.OK() {
				ok++
			} else {
				failed++
				logf("frame %d camera %d object %s skipped (%s): %v", frame.Index, o.Camera, o.ID, o.Status(), o.Err)
			}
		}
	}
	logf("frame %d: %d boxes projected, %d skipped in %s", frame.Index, ok, failed, p.opts.Clock.Since(start))
	return res, nil
}

// uniqueCameras drops repeated camera indices, keeping first occurrences.
func uniqueCameras(cameras []int) []int {
	seen := make(map[int]bool, len(cameras))
	out := make([]int, 0, len(cameras))
	for _, c := range cameras {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func (p *Projector) projectCamera(camera int, objects []annotation.Object) CameraResult {
	out := CameraResult{Camera: camera}
	cal, err := p.source.Load(camera)
	if err != nil {
		out.Err = err
		return out
	}
	out.YawOffsetDeg = cal.YawOffsetDeg()
	P := cal.Projection()

	for i, obj := range objects {
		if !obj.Visible {
			continue
		}
		r := p.ProjectObject(cal, P, obj)
		r.ObjectIndex = i
		out.Objects = append(out.Objects, r)
	}
	return out
}

// ProjectObject projects a single annotated object with a camera's
// calibration and projection matrix. Visibility is not checked here.
func (p *Projector) ProjectObject(cal *calib.CameraCalibration, P mat.Matrix, obj annotation.Object) ObjectResult {
	r := ObjectResult{
		Camera: cal.Camera(),
		ID:     obj.ID,
		Action: obj.Action,
	}

	pose, err := obj.Pose()
	if err != nil {
		r.Err = err
		return r
	}
	r.HeadingDeg = calib.CameraHeading(pose.RotationDeg, cal.YawOffsetDeg())

	box, err := bbox.Corners(pose)
	if err != nil {
		r.Err = fmt.Errorf("object %s: %w", obj.ID, err)
		return r
	}
	r.Box = box

	proj, err := bbox.Project(box.Points(), P)
	if err != nil {
		r.Err = fmt.Errorf("object %s: %w", obj.ID, err)
		return r
	}
	r.Corners = proj.Points
	r.Depth = proj.Depth

	if p.opts.BehindCamera == RejectBehindCamera && proj.AnyBehind() {
		r.Err = fmt.Errorf("object %s: %w", obj.ID, bbox.ErrBehindCamera)
		return r
	}

	rect, err := bbox.EnclosingRect(proj.Points)
	if err != nil {
		r.Err = fmt.Errorf("object %s: %w", obj.ID, err)
		return r
	}
	r.Rect = rect
	return r
}
