package models

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"
)

// Axis identifies one of the three sample reference directions used for
// the inverse pole figure colour maps.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Axes lists the reference directions in output order.
var Axes = [3]Axis{AxisX, AxisY, AxisZ}

// String returns the upper-case axis letter used in file and directory names.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// LabelMap is a row-major raster of feature ids. Zero is background.
type LabelMap struct {
	Width  int
	Height int
	Labels []int32
}

// NewLabelMap allocates a zeroed label raster.
func NewLabelMap(width, height int) LabelMap {
	return LabelMap{Width: width, Height: height, Labels: make([]int32, width*height)}
}

// At returns the label at (x, y).
func (m LabelMap) At(x, y int) int32 {
	return m.Labels[y*m.Width+x]
}

// Clone returns a deep copy of the label map.
func (m LabelMap) Clone() LabelMap {
	labels := make([]int32, len(m.Labels))
	copy(labels, m.Labels)
	return LabelMap{Width: m.Width, Height: m.Height, Labels: labels}
}

// Float64 converts the labels to float64 values for colourisation.
func (m LabelMap) Float64() []float64 {
	out := make([]float64, len(m.Labels))
	for i, l := range m.Labels {
		out[i] = float64(l)
	}
	return out
}

// RGBRaster is a row-major 3-channel 8-bit raster, as stored by DREAM3D for
// IPF colour maps.
type RGBRaster struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewRGBRaster allocates a black raster.
func NewRGBRaster(width, height int) RGBRaster {
	return RGBRaster{Width: width, Height: height, Pix: make([]uint8, width*height*3)}
}

// Pixel returns the three channels of pixel i.
func (r RGBRaster) Pixel(i int) (uint8, uint8, uint8) {
	return r.Pix[3*i], r.Pix[3*i+1], r.Pix[3*i+2]
}

// VectorRaster is a row-major raster holding three float components per
// pixel (Euler angles, c-axis directions).
type VectorRaster struct {
	Width  int
	Height int
	Data   []float64
}

// Vector returns the vector stored at pixel i.
func (v VectorRaster) Vector(i int) r3.Vector {
	return r3.Vector{X: v.Data[3*i], Y: v.Data[3*i+1], Z: v.Data[3*i+2]}
}

// Mask flags pixels that passed the reconstruction tool's data-quality
// thresholds.
type Mask struct {
	Width  int
	Height int
	Valid  []bool
}

// IPFSet groups the four IPF colour map variants written by the pipeline
// for one reference direction.
type IPFSet struct {
	// Raw is the orientation map before any cleanup filter.
	Raw RGBRaster

	// Cleaned is the map after the cleanup filters.
	Cleaned RGBRaster

	// Average paints every pixel with its feature-averaged orientation.
	Average RGBRaster

	// MTR keeps only the pixels of features that qualified as MTRs.
	MTR RGBRaster
}

// ScanDataset holds everything read from one .dream3d reconstruction output.
// Per-feature slices are indexed by feature id - 1; the padding row DREAM3D
// writes at index 0 has already been dropped.
type ScanDataset struct {
	// Name is the sample name, the file's base name without extension.
	Name string

	// Path is the file the dataset was loaded from.
	Path string

	// Per-feature arrays
	AvgCAxes            []r3.Vector
	AvgEulers           [][3]float64
	Volumes             []float64
	Misorientations     []float64
	NumCells            []float64
	EquivalentDiameters []float64
	Centroids           []r3.Vector
	Phases              []int32
	NumNeighbors        []int32

	// NeighborList and SharedSurfaceAreas are the flattened neighbour
	// arrays. They are nil for files written without them.
	NeighborList       []int32
	SharedSurfaceAreas []float64

	// Per-pixel rasters
	FeatureIDs  LabelMap
	Mask        Mask
	IPF         [3]IPFSet
	RawEulers   VectorRaster
	AvgEulerMap VectorRaster

	// RawCAxes is the per-pixel c-axis direction. Nil for older files.
	RawCAxes *VectorRaster

	// StepSize is the physical pixel pitch in micrometres.
	StepSize float64
}

// FeatureCount returns the number of physical features in the dataset.
func (d *ScanDataset) FeatureCount() int {
	return len(d.Volumes)
}

// Width returns the raster width in pixels.
func (d *ScanDataset) Width() int { return d.FeatureIDs.Width }

// Height returns the raster height in pixels.
func (d *ScanDataset) Height() int { return d.FeatureIDs.Height }

// HasNeighborList reports whether the optional neighbour arrays were present.
func (d *ScanDataset) HasNeighborList() bool {
	return d.NeighborList != nil && d.SharedSurfaceAreas != nil
}

// HasRawCAxes reports whether the optional per-pixel c-axis raster was present.
func (d *ScanDataset) HasRawCAxes() bool {
	return d.RawCAxes != nil
}

// Validate checks that all per-feature arrays share one length and that every
// raster matches the label map dimensions.
func (d *ScanDataset) Validate() error {
	n := len(d.Volumes)
	lengths := map[string]int{
		"AvgCAxes":            len(d.AvgCAxes),
		"AvgEulers":           len(d.AvgEulers),
		"Misorientations":     len(d.Misorientations),
		"NumCells":            len(d.NumCells),
		"EquivalentDiameters": len(d.EquivalentDiameters),
		"Centroids":           len(d.Centroids),
		"Phases":              len(d.Phases),
		"NumNeighbors":        len(d.NumNeighbors),
	}
	for name, l := range lengths {
		if l != n {
			return fmt.Errorf("feature array %s has %d entries, expected %d", name, l, n)
		}
	}

	w, h := d.FeatureIDs.Width, d.FeatureIDs.Height
	if len(d.FeatureIDs.Labels) != w*h {
		return fmt.Errorf("feature id raster has %d pixels, expected %dx%d", len(d.FeatureIDs.Labels), w, h)
	}
	if d.Mask.Width != w || d.Mask.Height != h {
		return fmt.Errorf("mask is %dx%d, expected %dx%d", d.Mask.Width, d.Mask.Height, w, h)
	}
	for _, axis := range Axes {
		set := d.IPF[axis]
		for name, r := range map[string]RGBRaster{"Raw": set.Raw, "Cleaned": set.Cleaned, "Average": set.Average, "MTR": set.MTR} {
			if r.Width != w || r.Height != h {
				return fmt.Errorf("IPF %s %s is %dx%d, expected %dx%d", name, axis, r.Width, r.Height, w, h)
			}
		}
	}
	for _, l := range d.FeatureIDs.Labels {
		if l < 0 || int(l) > n {
			return fmt.Errorf("feature id %d outside 0..%d", l, n)
		}
	}
	return nil
}

// ComputeStepSize derives the pixel pitch from the mean ratio of feature
// area to feature pixel count. Features with zero cells contribute Inf or NaN
// and propagate into the result.
func ComputeStepSize(volumes, cells []float64) float64 {
	if len(volumes) == 0 || len(volumes) != len(cells) {
		return math.NaN()
	}
	ratios := make([]float64, len(volumes))
	for i := range volumes {
		ratios[i] = volumes[i] / cells[i]
	}
	return math.Sqrt(stat.Mean(ratios, nil))
}
