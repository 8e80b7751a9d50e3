package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/multiviewc/internal/annotation"
	"github.com/banshee-data/multiviewc/internal/bbox"
	"github.com/banshee-data/multiviewc/internal/calib"
	"github.com/banshee-data/multiviewc/internal/pipeline"
)

func testCamera(t *testing.T) *calib.CameraCalibration {
	t.Helper()
	K := mat.NewDense(3, 3, []float64{
		800, 0, 640,
		0, 800, 360,
		0, 0, 1,
	})
	c, err := calib.NewCameraCalibration(0, K, r3.Vec{}, r3.Vec{X: -1950, Y: -1950, Z: 3000}, 45)
	require.NoError(t, err)
	return c
}

func testFrame() *annotation.Frame {
	return &annotation.Frame{
		Index: 7,
		Views: map[int][]annotation.Object{
			0: {
				{ID: "Cow0", Action: "sleep", Location: []float64{1900, 1874, 0}, Rotation: -172, Dimension: []float64{114, 150, 278}, Visible: true},
				{ID: "Cow1", Action: "eat", Location: []float64{2100, 1800, 0}, Rotation: 30, Dimension: []float64{0, 80, 140}, Visible: true},
			},
			1: {
				{ID: "Cow0", Action: "sleep", Location: []float64{1900, 1874, 0}, Rotation: -172, Dimension: []float64{114, 150, 278}, Visible: true},
				{ID: "Cow2", Action: "stand", Location: []float64{500, 600, 0}, Rotation: 0, Dimension: []float64{200, 80, 140}, Visible: true},
			},
		},
	}
}

func projectedCamera(t *testing.T) *pipeline.CameraResult {
	t.Helper()
	cal := testCamera(t)
	p := pipeline.NewProjector(nil, pipeline.Options{})
	cam := &pipeline.CameraResult{Camera: 0}
	for i, o := range testFrame().Views[0] {
		r := p.ProjectObject(cal, cal.Projection(), o)
		r.ObjectIndex = i
		cam.Objects = append(cam.Objects, r)
	}
	require.True(t, cam.Objects[0].OK())
	require.False(t, cam.Objects[1].OK())
	return cam
}

func TestSaveOverlay_PNG(t *testing.T) {
	bg := image.NewRGBA(image.Rect(0, 0, 320, 180))
	for x := 0; x < 320; x++ {
		bg.Set(x, 90, color.White)
	}

	path := filepath.Join(t.TempDir(), "plots", "C1_0007.png")
	err := SaveOverlay(path, bg, projectedCamera(t), OverlayOptions{ImageWidth: 320, ImageHeight: 180, ShowRect: true})
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
	assert.Greater(t, img.Bounds().Dy(), 0)
}

func TestNewOverlay_PinsViewToImage(t *testing.T) {
	p, err := NewOverlay(nil, projectedCamera(t), OverlayOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.X.Min)
	assert.Equal(t, 1280.0, p.X.Max)
	assert.Equal(t, 0.0, p.Y.Min)
	assert.Equal(t, 720.0, p.Y.Max)
	assert.Equal(t, "Camera C1", p.Title.Text)
}

func TestNewOverlay_NoDrawableObjects(t *testing.T) {
	cam := &pipeline.CameraResult{Camera: 2, Objects: []pipeline.ObjectResult{{ID: "Cow9", Err: bbox.ErrBehindCamera}}}
	_, err := NewOverlay(nil, cam, OverlayOptions{})
	assert.NoError(t, err)
}

func TestBirdsEye(t *testing.T) {
	var buf bytes.Buffer
	err := BirdsEye(&buf, testFrame(), []*calib.CameraCalibration{testCamera(t)}, MapOptions{})
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "Frame 0007")
	assert.Contains(t, html, "objects=3 cameras=1")
	for _, name := range []string{"Cow0", "Cow1", "Cow2", "C1"} {
		assert.Contains(t, html, name)
	}
}

func TestNewPalette_DependsOnlyOnIDSet(t *testing.T) {
	a := NewPalette([]string{"Cow2", "Cow0", "Cow1", "Cow0"})
	b := NewPalette([]string{"Cow1", "Cow2", "Cow0"})
	require.Len(t, a, 3)
	for id, c := range a {
		assert.Equal(t, c, b[id], id)
	}
	assert.NotEqual(t, a["Cow0"], a["Cow1"])
	assert.Equal(t, fallbackColor, a.Color("Cow9"))
	assert.Empty(t, NewPalette(nil))
}

func TestFramePalette_SameColourAcrossCameras(t *testing.T) {
	res := &pipeline.FrameResult{Cameras: []pipeline.CameraResult{
		{Camera: 0, Objects: []pipeline.ObjectResult{{ID: "Cow0"}, {ID: "Cow1"}}},
		{Camera: 1, Objects: []pipeline.ObjectResult{{ID: "Cow1"}, {ID: "Cow7"}}},
	}}
	p := FramePalette(res)
	require.Len(t, p, 3)

	// Per-camera palettes disagree on Cow1; the frame palette has one entry.
	perCam0 := NewPalette([]string{"Cow0", "Cow1"})
	perCam1 := NewPalette([]string{"Cow1", "Cow7"})
	assert.NotEqual(t, perCam0["Cow1"], perCam1["Cow1"])
	assert.Equal(t, p["Cow1"], p.Color("Cow1"))
}

func TestHSL(t *testing.T) {
	cases := []struct {
		hue  float64
		want color.RGBA
	}{
		{0, color.RGBA{R: 255, A: 255}},
		{120, color.RGBA{G: 255, A: 255}},
		{240, color.RGBA{B: 255, A: 255}},
		{60, color.RGBA{R: 255, G: 255, A: 255}},
		{360, color.RGBA{R: 255, A: 255}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, hsl(tc.hue, 1, 0.5), "hue %v", tc.hue)
	}
	assert.Equal(t, color.RGBA{R: 128, G: 128, B: 128, A: 255}, hsl(200, 0, 0.5))
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 3))))
	require.NoError(t, f.Close())

	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())

	_, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
