// Package render draws projected boxes for inspection: a static PNG overlay
// of one camera view and a bird's-eye HTML map of the rig.
package render

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/multiviewc/internal/bbox"
	"github.com/banshee-data/multiviewc/internal/monitoring"
	"github.com/banshee-data/multiviewc/internal/pipeline"
)

var logf = monitoring.Component("render")

// labelOffsetPx lifts the "ID: action" label above the top face.
const labelOffsetPx = 15

// OverlayOptions controls the camera overlay.
type OverlayOptions struct {
	ImageWidth  int // view limits in pixels; objects outside are clipped
	ImageHeight int
	ShowRect    bool      // also draw the axis-aligned rectangle
	LineWidth   vg.Length // 3D edge width; zero means 1pt
	// Palette colours objects by ID. Nil means a palette over this
	// camera's objects only; pass FramePalette to keep colours consistent
	// across views.
	Palette Palette
}

func (o OverlayOptions) withDefaults() OverlayOptions {
	if o.ImageWidth <= 0 {
		o.ImageWidth = 1280
	}
	if o.ImageHeight <= 0 {
		o.ImageHeight = 720
	}
	if o.LineWidth <= 0 {
		o.LineWidth = vg.Points(1)
	}
	return o
}

// NewOverlay builds a plot of one camera's projected boxes over img (which
// may be nil). Image coordinates have y pointing down; the plot flips them
// so the picture is upright. Objects that failed projection are not drawn.
func NewOverlay(img image.Image, cam *pipeline.CameraResult, opts OverlayOptions) (*plot.Plot, error) {
	opts = opts.withDefaults()
	w, h := float64(opts.ImageWidth), float64(opts.ImageHeight)
	flip := func(p bbox.Point2) plotter.XY { return plotter.XY{X: p.X, Y: h - p.Y} }

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Camera C%d", cam.Camera+1)
	p.HideAxes()

	if img != nil {
		p.Add(plotter.NewImage(img, 0, 0, w, h))
	}

	palette := opts.Palette
	if palette == nil {
		ids := make([]string, 0, len(cam.Objects))
		for _, o := range cam.Objects {
			ids = append(ids, o.ID)
		}
		palette = NewPalette(ids)
	}

	var labelXYs plotter.XYs
	var labels []string
	drawn := 0
	for _, o := range cam.Objects {
		if !o.OK() || len(o.Corners) != bbox.NumCorners {
			continue
		}
		c := palette.Color(o.ID)
		for _, e := range bbox.Edges {
			line, err := plotter.NewLine(plotter.XYs{flip(o.Corners[e.From]), flip(o.Corners[e.To])})
			if err != nil {
				return nil, fmt.Errorf("edge %s-%s of %s: %w", e.From, e.To, o.ID, err)
			}
			line.LineStyle.Color = c
			line.LineStyle.Width = opts.LineWidth
			p.Add(line)
		}

		if opts.ShowRect {
			r := o.Rect
			rect, err := plotter.NewLine(plotter.XYs{
				flip(bbox.Point2{X: r.XMin, Y: r.YMin}),
				flip(bbox.Point2{X: r.XMax, Y: r.YMin}),
				flip(bbox.Point2{X: r.XMax, Y: r.YMax}),
				flip(bbox.Point2{X: r.XMin, Y: r.YMax}),
				flip(bbox.Point2{X: r.XMin, Y: r.YMin}),
			})
			if err != nil {
				return nil, fmt.Errorf("rect of %s: %w", o.ID, err)
			}
			rect.LineStyle.Color = color.RGBA{R: 255, A: 255}
			rect.LineStyle.Width = vg.Points(3)
			p.Add(rect)
		}

		anchor := o.Corners[bbox.TopRearRight]
		labelXYs = append(labelXYs, flip(bbox.Point2{X: anchor.X, Y: anchor.Y - labelOffsetPx}))
		labels = append(labels, fmt.Sprintf("%s: %s", o.ID, o.Action))
		drawn++
	}

	if drawn > 0 {
		lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: labelXYs, Labels: labels})
		if err != nil {
			return nil, fmt.Errorf("labels: %w", err)
		}
		p.Add(lbl)
	}

	// Pin the view to the image; Add widens the axes to fit the data.
	p.X.Min, p.X.Max = 0, w
	p.Y.Min, p.Y.Max = 0, h
	return p, nil
}

// SaveOverlay renders NewOverlay to a file; the format follows the
// extension (.png, .svg, .pdf).
func SaveOverlay(path string, img image.Image, cam *pipeline.CameraResult, opts OverlayOptions) error {
	opts = opts.withDefaults()
	p, err := NewOverlay(img, cam, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	if err := p.Save(vg.Length(opts.ImageWidth), vg.Length(opts.ImageHeight), path); err != nil {
		return fmt.Errorf("save overlay: %w", err)
	}
	logf("wrote %s", path)
	return nil
}

// LoadImage decodes a camera frame from disk. PNG and JPEG are supported.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}
