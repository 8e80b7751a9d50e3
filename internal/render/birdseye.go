package render

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/multiviewc/internal/annotation"
	"github.com/banshee-data/multiviewc/internal/calib"
)

// MapOptions controls the bird's-eye map.
type MapOptions struct {
	// Extent is the side of the square ground area in world units; the map
	// spans [0, Extent] on both axes. Zero means the reference farm (3900 cm).
	Extent float64
	// AssetsHost overrides where the echarts JS is loaded from.
	AssetsHost string
}

// BirdsEye writes an HTML scatter map of the frame's object centres and the
// camera positions (−Rᵗt) in world coordinates. Each object appears once,
// at the first location annotated for it.
func BirdsEye(w io.Writer, frame *annotation.Frame, cams []*calib.CameraCalibration, mo MapOptions) error {
	extent := mo.Extent
	if extent <= 0 {
		extent = 3900
	}

	seen := make(map[string]bool)
	var objects []opts.ScatterData
	for _, cam := range frame.Cameras() {
		for _, o := range frame.Views[cam] {
			if seen[o.ID] || len(o.Location) != 3 {
				continue
			}
			seen[o.ID] = true
			objects = append(objects, opts.ScatterData{
				Name:  o.ID,
				Value: []interface{}{o.Location[0], o.Location[1]},
			})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })

	cameras := make([]opts.ScatterData, 0, len(cams))
	for _, c := range cams {
		center := c.Center()
		cameras = append(cameras, opts.ScatterData{
			Name:  annotation.CameraKey(c.Camera()),
			Value: []interface{}{center.X, center.Y},
		})
	}

	initOpts := opts.Initialization{PageTitle: "Multi-view rig", Width: "900px", Height: "900px"}
	if mo.AssetsHost != "" {
		initOpts.AssetsHost = mo.AssetsHost
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Frame %04d", frame.Index), Subtitle: fmt.Sprintf("objects=%d cameras=%d", len(objects), len(cameras))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: extent, Name: "X (cm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: extent, Name: "Y (cm)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("objects", objects, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	scatter.AddSeries("cameras", cameras, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 16}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("render bird's-eye map: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
