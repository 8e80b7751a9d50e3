package render

import (
	"image/color"
	"math"
	"sort"

	"github.com/banshee-data/multiviewc/internal/pipeline"
)

// Palette maps object IDs to line colours.
type Palette map[string]color.Color

// fallbackColor is used for IDs a palette was not built with.
var fallbackColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// NewPalette spreads the distinct IDs evenly around the hue circle in sorted
// order, so the result depends only on the set of IDs.
func NewPalette(ids []string) Palette {
	uniq := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		uniq[id] = struct{}{}
	}
	sorted := make([]string, 0, len(uniq))
	for id := range uniq {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	p := make(Palette, len(sorted))
	for i, id := range sorted {
		p[id] = hsl(360*float64(i)/float64(len(sorted)), 0.7, 0.5)
	}
	return p
}

// FramePalette builds one palette over every object in the frame, so an
// animal keeps its colour in every camera view.
func FramePalette(res *pipeline.FrameResult) Palette {
	var ids []string
	for _, c := range res.Cameras {
		for _, o := range c.Objects {
			ids = append(ids, o.ID)
		}
	}
	return NewPalette(ids)
}

// Color returns the colour for id.
func (p Palette) Color(id string) color.Color {
	if c, ok := p[id]; ok {
		return c
	}
	return fallbackColor
}

// hsl converts hue (degrees), saturation and lightness in [0, 1] to RGBA
// via the chroma form.
func hsl(hue, s, l float64) color.RGBA {
	chroma := (1 - math.Abs(2*l-1)) * s
	h := math.Mod(hue, 360) / 60
	x := chroma * (1 - math.Abs(math.Mod(h, 2)-1))

	var r, g, b float64
	switch {
	case h < 1:
		r, g = chroma, x
	case h < 2:
		r, g = x, chroma
	case h < 3:
		g, b = chroma, x
	case h < 4:
		g, b = x, chroma
	case h < 5:
		r, b = x, chroma
	default:
		r, b = chroma, x
	}
	m := l - chroma/2
	to8 := func(v float64) uint8 { return uint8(math.Round((v + m) * 255)) }
	return color.RGBA{R: to8(r), G: to8(g), B: to8(b), A: 255}
}
