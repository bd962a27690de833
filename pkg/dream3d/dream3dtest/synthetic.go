package dream3dtest

import (
	"github.com/golang/geo/r3"

	"microtexture/internal/models"
)

// SyntheticWidth and SyntheticHeight are the raster size of Synthetic.
const (
	SyntheticWidth  = 6
	SyntheticHeight = 4

	// SyntheticStepSize is the pixel pitch implied by the feature volumes.
	SyntheticStepSize = 50.0
)

// syntheticLabels places four features:
//
//	1 1 2 2 2 2
//	1 1 2 2 2 2
//	3 3 4 4 4 4
//	4 4 4 4 4 4
var syntheticLabels = []int32{
	1, 1, 2, 2, 2, 2,
	1, 1, 2, 2, 2, 2,
	3, 3, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4,
}

// Synthetic returns a small, fully populated dataset. Every feature has an
// area of 2500 um^2 per pixel, so the step size is 50 um. With a threshold
// of 10000 features 1, 2 and 4 qualify. Feature 4 has zero misorientation.
// The last pixel carries no signal and six pixels differ between the raw and
// cleaned Z maps.
func Synthetic() *models.ScanDataset {
	w, h := SyntheticWidth, SyntheticHeight
	n := w * h

	ds := &models.ScanDataset{
		Name:                "synthetic",
		AvgCAxes:            []r3.Vector{{Z: 1}, {X: 1, Z: 1}, {Y: 1, Z: 1}, {X: 1}},
		AvgEulers:           [][3]float64{{0, 0, 0}, {0.5, 0.5, 0.5}, {1, 1, 1}, {1.5, 1.5, 1.5}},
		Volumes:             []float64{10000, 20000, 5000, 25000},
		Misorientations:     []float64{2, 4, 1, 0},
		NumCells:            []float64{4, 8, 2, 10},
		EquivalentDiameters: []float64{112.8, 159.6, 79.8, 178.4},
		Centroids:           []r3.Vector{{X: 25, Y: 25}, {X: 175, Y: 25}, {X: 25, Y: 100}, {X: 175, Y: 150}},
		Phases:              []int32{1, 1, 1, 1},
		NumNeighbors:        []int32{2, 2, 2, 3},
		NeighborList:        []int32{2, 3, 1, 4, 1, 4, 1, 2, 3},
		SharedSurfaceAreas:  []float64{2, 2, 2, 4, 2, 2, 1, 4, 2},
		FeatureIDs:          models.LabelMap{Width: w, Height: h, Labels: append([]int32(nil), syntheticLabels...)},
		Mask:                models.Mask{Width: w, Height: h, Valid: make([]bool, n)},
		RawEulers:           models.VectorRaster{Width: w, Height: h, Data: make([]float64, 3*n)},
		AvgEulerMap:         models.VectorRaster{Width: w, Height: h, Data: make([]float64, 3*n)},
	}

	caxes := models.VectorRaster{Width: w, Height: h, Data: make([]float64, 3*n)}
	for i, l := range syntheticLabels {
		ds.Mask.Valid[i] = i != n-1
		c := ds.AvgCAxes[l-1].Normalize()
		caxes.Data[3*i], caxes.Data[3*i+1], caxes.Data[3*i+2] = c.X, c.Y, c.Z
		e := ds.AvgEulers[l-1]
		copy(ds.RawEulers.Data[3*i:3*i+3], e[:])
		copy(ds.AvgEulerMap.Data[3*i:3*i+3], e[:])
	}
	ds.RawCAxes = &caxes

	for _, axis := range models.Axes {
		cleaned := models.NewRGBRaster(w, h)
		for i, l := range syntheticLabels {
			if i == n-1 {
				continue
			}
			cleaned.Pix[3*i] = uint8(40 * l)
			cleaned.Pix[3*i+1] = uint8(20 * (int(axis) + 1))
			cleaned.Pix[3*i+2] = 200
		}

		raw := models.NewRGBRaster(w, h)
		copy(raw.Pix, cleaned.Pix)
		for i := 0; i < 6; i++ {
			raw.Pix[3*i+2] = 10
		}

		mtr := models.NewRGBRaster(w, h)
		for i, l := range syntheticLabels {
			if l != 3 {
				copy(mtr.Pix[3*i:3*i+3], cleaned.Pix[3*i:3*i+3])
			}
		}

		ds.IPF[axis] = models.IPFSet{Raw: raw, Cleaned: cleaned, Average: cleaned, MTR: mtr}
	}

	ds.StepSize = models.ComputeStepSize(ds.Volumes, ds.NumCells)
	return ds
}
