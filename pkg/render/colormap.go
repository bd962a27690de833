package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
)

// ErrUnknownColormap is returned for colour map names that are not registered.
var ErrUnknownColormap = errors.New("unknown colormap")

// stop is one anchor of a piecewise-linear channel: value v at position x.
type stop struct {
	x, v float64
}

// Colormap maps [0, 1] onto a colour with one piecewise-linear curve per channel.
type Colormap struct {
	Name string
	r    []stop
	g    []stop
	b    []stop
}

// lutSize matches the quantisation of the usual 256-entry lookup tables.
const lutSize = 256

// At returns the colour for x, clamped into [0, 1].
func (c *Colormap) At(x float64) color.RGBA {
	idx := int(x * lutSize)
	if idx < 0 {
		idx = 0
	}
	if idx > lutSize-1 {
		idx = lutSize - 1
	}
	q := float64(idx) / (lutSize - 1)
	return color.RGBA{
		R: channelByte(interpolate(c.r, q)),
		G: channelByte(interpolate(c.g, q)),
		B: channelByte(interpolate(c.b, q)),
		A: 255,
	}
}

func interpolate(stops []stop, x float64) float64 {
	i := sort.Search(len(stops), func(i int) bool { return stops[i].x >= x })
	if i == 0 {
		return stops[0].v
	}
	if i == len(stops) {
		return stops[len(stops)-1].v
	}
	a, b := stops[i-1], stops[i]
	return a.v + (x-a.x)*(b.v-a.v)/(b.x-a.x)
}

func channelByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, v*255)))
}

// evenly spreads values over [0, 1].
func evenly(values ...float64) []stop {
	out := make([]stop, len(values))
	for i, v := range values {
		out[i] = stop{x: float64(i) / float64(len(values)-1), v: v}
	}
	return out
}

// evenlyBytes is evenly for 8-bit channel values.
func evenlyBytes(values ...float64) []stop {
	out := evenly(values...)
	for i := range out {
		out[i].v /= 255
	}
	return out
}

var colormaps = map[string]*Colormap{
	"gray": {
		Name: "gray",
		r:    evenly(0, 1),
		g:    evenly(0, 1),
		b:    evenly(0, 1),
	},
	"jet": {
		Name: "jet",
		r:    []stop{{0, 0}, {0.35, 0}, {0.66, 1}, {0.89, 1}, {1, 0.5}},
		g:    []stop{{0, 0}, {0.125, 0}, {0.375, 1}, {0.64, 1}, {0.91, 0}, {1, 0}},
		b:    []stop{{0, 0.5}, {0.11, 1}, {0.34, 1}, {0.65, 0}, {1, 0}},
	},
	"nipy_spectral": {
		Name: "nipy_spectral",
		r: evenly(0, 0.4667, 0.5333, 0, 0, 0, 0, 0, 0, 0, 0,
			0, 0, 0.7333, 0.9333, 1, 1, 1, 0.8667, 0.8, 0.8),
		g: evenly(0, 0, 0, 0, 0, 0.4667, 0.6, 0.6667, 0.6667, 0.6, 0.7333,
			0.8667, 1, 1, 0.9333, 0.8, 0.6, 0, 0, 0, 0.8),
		b: evenly(0, 0.5333, 0.6, 0.6667, 0.8667, 0.8667, 0.8667, 0.6667, 0.5333, 0, 0,
			0, 0, 0, 0, 0, 0, 0, 0, 0, 0.8),
	},
	"viridis": {
		Name: "viridis",
		r:    evenlyBytes(0x44, 0x48, 0x41, 0x35, 0x2a, 0x21, 0x22, 0x44, 0x7a, 0xbd, 0xfd),
		g:    evenlyBytes(0x01, 0x24, 0x44, 0x5f, 0x78, 0x91, 0xa8, 0xbf, 0xd1, 0xdf, 0xe7),
		b:    evenlyBytes(0x54, 0x75, 0x87, 0x8d, 0x8e, 0x8c, 0x84, 0x70, 0x51, 0x26, 0x25),
	},
}

// GetColormap looks up a registered colour map by name.
func GetColormap(name string) (*Colormap, error) {
	c, ok := colormaps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColormap, name)
	}
	return c, nil
}

// Colorize min-max normalises values, ignoring NaN, and maps them through
// the named colour map. Non-finite pixels are painted nanColor. A constant
// raster has no range to normalise over, so every pixel is painted nanColor.
func Colorize(values []float64, width, height int, colormap string, nanColor color.RGBA) (*image.RGBA, error) {
	if len(values) != width*height {
		return nil, fmt.Errorf("raster has %d values, expected %dx%d", len(values), width, height)
	}
	cmap, err := GetColormap(colormap)
	if err != nil {
		return nil, err
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, v := range values {
		c := nanColor
		if span > 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			c = cmap.At((v - lo) / span)
		}
		img.SetRGBA(i%width, i/width, c)
	}
	return img, nil
}
