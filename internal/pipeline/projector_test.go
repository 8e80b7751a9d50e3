package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/multiviewc/internal/annotation"
	"github.com/banshee-data/multiviewc/internal/bbox"
	"github.com/banshee-data/multiviewc/internal/calib"
	"github.com/banshee-data/multiviewc/internal/monitoring"
	"github.com/banshee-data/multiviewc/internal/timeutil"
)

var _ CalibrationSource = (*calib.Store)(nil)

// mapSource serves prebuilt calibrations; missing cameras fail to load.
type mapSource map[int]*calib.CameraCalibration

func (m mapSource) Load(camera int) (*calib.CameraCalibration, error) {
	c, ok := m[camera]
	if !ok {
		return nil, &calib.LoadError{Camera: camera, Err: errors.New("no record")}
	}
	return c, nil
}

func identityK() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// frontCamera sits 10 m in front of the origin looking along +Z.
func frontCamera(t *testing.T, camera int, yaw float64) *calib.CameraCalibration {
	t.Helper()
	c, err := calib.NewCameraCalibration(camera, identityK(), r3.Vec{}, r3.Vec{Z: 1000}, yaw)
	require.NoError(t, err)
	return c
}

func cow(id string, loc [3]float64, dim [3]float64, visible bool) annotation.Object {
	return annotation.Object{
		ID:        id,
		Action:    "walk",
		Location:  loc[:],
		Rotation:  0,
		Dimension: dim[:],
		Visible:   visible,
	}
}

func TestProjectFrame_SkipOnFailure(t *testing.T) {
	frame := &annotation.Frame{
		Index: 3,
		Views: map[int][]annotation.Object{
			0: {
				cow("Cow0", [3]float64{0, 0, 0}, [3]float64{100, 50, 80}, true),
				cow("Cow1", [3]float64{50, 0, 0}, [3]float64{0, 50, 80}, true),
				cow("Cow2", [3]float64{0, 0, 0}, [3]float64{100, 50, 80}, false),
				cow("Cow3", [3]float64{200, 0, 0}, [3]float64{100, 50, 80}, true),
			},
		},
	}
	p := NewProjector(mapSource{0: frontCamera(t, 0, 90)}, Options{Workers: 2})

	res, err := p.ProjectFrame(context.Background(), frame, nil)
	require.NoError(t, err)
	require.Len(t, res.Cameras, 1)

	objs := res.Cameras[0].Objects
	require.Len(t, objs, 3, "invisible object must be excluded")
	assert.Equal(t, []string{"Cow0", "Cow1", "Cow3"}, []string{objs[0].ID, objs[1].ID, objs[2].ID})
	assert.Equal(t, []int{0, 1, 3}, []int{objs[0].ObjectIndex, objs[1].ObjectIndex, objs[2].ObjectIndex})

	assert.Equal(t, StatusOK, objs[0].Status())
	assert.Equal(t, StatusInvalidPose, objs[1].Status())
	var poseErr *bbox.InvalidPoseError
	assert.True(t, errors.As(objs[1].Err, &poseErr))
	assert.Nil(t, objs[1].Corners, "failed object must not carry partial geometry")
	assert.Equal(t, StatusOK, objs[2].Status())

	// Cow0: nearest face at depth 960.
	assert.InDelta(t, -50.0/960, objs[0].Rect.XMin, 1e-12)
	assert.InDelta(t, 50.0/960, objs[0].Rect.XMax, 1e-12)
	assert.InDelta(t, -25.0/960, objs[0].Rect.YMin, 1e-12)
	assert.InDelta(t, 25.0/960, objs[0].Rect.YMax, 1e-12)
	assert.Len(t, objs[0].Corners, bbox.NumCorners)

	assert.Len(t, res.Boxes(), 2)
	failures := res.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "Cow1", failures[0].ID)
}

func TestProjectFrame_CameraFailureIsolated(t *testing.T) {
	frame := &annotation.Frame{
		Views: map[int][]annotation.Object{
			0: {cow("Cow0", [3]float64{}, [3]float64{100, 50, 80}, true)},
			1: {cow("Cow0", [3]float64{}, [3]float64{100, 50, 80}, true)},
			2: {cow("Cow0", [3]float64{}, [3]float64{100, 50, 80}, true)},
		},
	}
	src := mapSource{0: frontCamera(t, 0, 0), 2: frontCamera(t, 2, 0)}
	res, err := NewProjector(src, Options{Workers: 3}).ProjectFrame(context.Background(), frame, nil)
	require.NoError(t, err)
	require.Len(t, res.Cameras, 3)

	cam1, ok := res.Camera(1)
	require.True(t, ok)
	var loadErr *calib.LoadError
	assert.True(t, errors.As(cam1.Err, &loadErr))
	assert.Empty(t, cam1.Objects)

	for _, cam := range []int{0, 2} {
		c, ok := res.Camera(cam)
		require.True(t, ok)
		assert.NoError(t, c.Err)
		require.Len(t, c.Objects, 1)
		assert.True(t, c.Objects[0].OK())
	}
	_, ok = res.Camera(9)
	assert.False(t, ok)
}

func TestProjectFrame_BehindCameraPolicy(t *testing.T) {
	// Object centred 20 m behind a camera at z=-1000.
	behind := cow("Cow5", [3]float64{0, 0, -2000}, [3]float64{100, 50, 80}, true)
	straddling := cow("Cow6", [3]float64{0, 0, -1000}, [3]float64{100, 50, 80}, true)
	frame := &annotation.Frame{Views: map[int][]annotation.Object{0: {behind, straddling}}}
	src := mapSource{0: frontCamera(t, 0, 0)}

	res, err := NewProjector(src, Options{BehindCamera: RejectBehindCamera}).ProjectFrame(context.Background(), frame, []int{0})
	require.NoError(t, err)
	objs := res.Cameras[0].Objects
	require.Len(t, objs, 2)
	for _, o := range objs {
		assert.Equal(t, StatusBehindCamera, o.Status())
		assert.True(t, errors.Is(o.Err, bbox.ErrBehindCamera))
		assert.Len(t, o.Depth, bbox.NumCorners, "depth side channel is still reported")
	}

	res, err = NewProjector(src, Options{BehindCamera: PermitBehindCamera}).ProjectFrame(context.Background(), frame, []int{0})
	require.NoError(t, err)
	objs = res.Cameras[0].Objects
	assert.Equal(t, StatusOK, objs[0].Status(), "permit keeps the raw divide")
	assert.InDelta(t, -50.0/960, objs[0].Rect.XMin, 1e-12)
	assert.Equal(t, StatusOK, objs[1].Status(), "straddling box has no zero-depth corner")
}

func TestProjectFrame_ZeroDepthIsMalformedUnderPermit(t *testing.T) {
	// Bottom face exactly on the camera plane.
	obj := cow("Cow7", [3]float64{0, 0, -960}, [3]float64{100, 50, 80}, true)
	frame := &annotation.Frame{Views: map[int][]annotation.Object{0: {obj}}}
	res, err := NewProjector(mapSource{0: frontCamera(t, 0, 0)}, Options{BehindCamera: PermitBehindCamera}).
		ProjectFrame(context.Background(), frame, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusMalformedCorners, res.Cameras[0].Objects[0].Status())
}

func TestProjectFrame_DeterministicOrder(t *testing.T) {
	const nCams = 7
	src := mapSource{}
	frame := &annotation.Frame{Views: map[int][]annotation.Object{}}
	var cams []int
	for c := nCams - 1; c >= 0; c-- {
		src[c] = frontCamera(t, c, float64(c)*10)
		for i := 0; i < 5; i++ {
			frame.Views[c] = append(frame.Views[c],
				cow(fmt.Sprintf("Cow%d", i), [3]float64{float64(i * 100), 0, 0}, [3]float64{100, 50, 80}, true))
		}
		cams = append(cams, c)
	}

	res, err := NewProjector(src, Options{Workers: 4}).ProjectFrame(context.Background(), frame, cams)
	require.NoError(t, err)
	require.Len(t, res.Cameras, nCams)
	for i, c := range res.Cameras {
		assert.Equal(t, cams[i], c.Camera, "results follow the requested camera order")
		assert.Equal(t, float64(c.Camera)*10, c.YawOffsetDeg)
		for j, o := range c.Objects {
			assert.Equal(t, fmt.Sprintf("Cow%d", j), o.ID)
			assert.Equal(t, c.Camera, o.Camera)
		}
	}
}

func TestProjectFrame_RepeatedCameraProjectedOnce(t *testing.T) {
	src := mapSource{0: frontCamera(t, 0, 0), 1: frontCamera(t, 1, 0)}
	frame := &annotation.Frame{Views: map[int][]annotation.Object{
		0: {cow("Cow0", [3]float64{0, 0, 0}, [3]float64{100, 50, 80}, true)},
		1: {cow("Cow0", [3]float64{0, 0, 0}, [3]float64{100, 50, 80}, true)},
	}}

	res, err := NewProjector(src, Options{Workers: 2}).ProjectFrame(context.Background(), frame, []int{1, 0, 1, 0})
	require.NoError(t, err)
	require.Len(t, res.Cameras, 2)
	assert.Equal(t, 1, res.Cameras[0].Camera)
	assert.Equal(t, 0, res.Cameras[1].Camera)
	assert.Len(t, res.Boxes(), 2)
}

// slowSource advances a mock clock on every load.
type slowSource struct {
	mapSource
	clock *timeutil.MockClock
	step  time.Duration
}

func (s slowSource) Load(camera int) (*calib.CameraCalibration, error) {
	s.clock.Advance(s.step)
	return s.mapSource.Load(camera)
}

func TestProjectFrame_LogsElapsed(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	old := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(old) })

	clock := timeutil.NewMockClock(time.Date(2023, 9, 14, 6, 30, 0, 0, time.UTC))
	src := slowSource{
		mapSource: mapSource{0: frontCamera(t, 0, 0), 1: frontCamera(t, 1, 0)},
		clock:     clock,
		step:      250 * time.Millisecond,
	}
	frame := &annotation.Frame{Index: 9, Views: map[int][]annotation.Object{
		0: {cow("Cow0", [3]float64{0, 0, 0}, [3]float64{100, 50, 80}, true)},
		1: {cow("Cow0", [3]float64{0, 0, 0}, [3]float64{100, 50, 80}, true)},
	}}

	_, err := NewProjector(src, Options{Workers: 2, Clock: clock}).ProjectFrame(context.Background(), frame, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, lines)
	last := lines[len(lines)-1]
	assert.True(t, strings.HasPrefix(last, "[pipeline] frame 9: 2 boxes projected, 0 skipped"), last)
	assert.True(t, strings.HasSuffix(last, "in 500ms"), last)
}

func TestProjectFrame_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	frame := &annotation.Frame{Views: map[int][]annotation.Object{0: nil}}
	_, err := NewProjector(mapSource{0: frontCamera(t, 0, 0)}, Options{}).ProjectFrame(ctx, frame, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProjectObject_HeadingAndBadRecord(t *testing.T) {
	cal := frontCamera(t, 4, 90.000084)
	p := NewProjector(mapSource{}, Options{})

	obj := cow("Cow0", [3]float64{0, 0, 0}, [3]float64{100, 50, 80}, true)
	obj.Rotation = -172
	r := p.ProjectObject(cal, cal.Projection(), obj)
	require.True(t, r.OK())
	assert.Equal(t, 4, r.Camera)
	assert.InDelta(t, calib.WrapDegrees(-172+90-90.000084), r.HeadingDeg, 1e-9)

	obj.Location = []float64{1, 2}
	r = p.ProjectObject(cal, cal.Projection(), obj)
	assert.Equal(t, StatusBadRecord, r.Status())
}

func TestParseBehindCameraPolicy(t *testing.T) {
	p, err := ParseBehindCameraPolicy("reject")
	require.NoError(t, err)
	assert.Equal(t, RejectBehindCamera, p)

	p, err = ParseBehindCameraPolicy("permit")
	require.NoError(t, err)
	assert.Equal(t, PermitBehindCamera, p)

	_, err = ParseBehindCameraPolicy("clip")
	assert.Error(t, err)
}
