// Package mtr turns a loaded DREAM3D scan into microtexture region records.
//
// Extract filters features by area, classifies the survivors by the
// misalignment of their average c-axis to the stress axis and measures
// each region on an MTR-only label raster. Numeric degeneracies are kept
// as NaN or Inf; rows are only dropped by the report package.
package mtr

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"microtexture/internal/models"
	"microtexture/pkg/crystal"
	"microtexture/pkg/regionprops"
)

// ErrZeroStressAxis is returned when the reference axis has no direction.
var ErrZeroStressAxis = errors.New("stress axis has zero length")

// Result holds everything Extract derives from one dataset.
type Result struct {
	// Records lists the qualifying regions in feature id order.
	Records []models.MTRRecord

	Stats models.ScanStats

	// IDMap is the feature id raster with every non-MTR label zeroed.
	IDMap models.LabelMap

	// Mask flags the pixels that belong to a retained region.
	Mask []bool
}

// Extract identifies and measures the MTRs of a dataset.
//
// Parameters:
//   - ds: the loaded scan
//   - sizeThreshold: minimum region area in um^2
//   - reference: stress axis direction; need not be normalised
//
// Returns:
//   - the records, scan statistics and MTR-only label raster
//   - an error only for a nil dataset or a zero reference axis
func Extract(ds *models.ScanDataset, sizeThreshold float64, reference r3.Vector) (*Result, error) {
	if ds == nil {
		return nil, errors.New("nil dataset")
	}
	if reference.Norm() == 0 {
		return nil, fmt.Errorf("%w: %v", ErrZeroStressAxis, reference)
	}

	// Step 1: size filter
	indices := FilterBySize(ds.Volumes, sizeThreshold)

	ids := make([]int32, len(indices))
	caxes := make([]r3.Vector, len(indices))
	for i, idx := range indices {
		ids[i] = int32(idx + 1)
		caxes[i] = ds.AvgCAxes[idx]
	}

	// Steps 2-3: misalignment and class
	angles := crystal.Misalignment(caxes, reference)

	// Step 4: MTR-only raster
	idMap, mask := MaskLabels(ds.FeatureIDs, ids)

	// Step 5: shape descriptors
	regions := regionprops.Measure(idMap)

	records := make([]models.MTRRecord, len(indices))
	for i, idx := range indices {
		rec := models.MTRRecord{
			FeatureID:          ids[i],
			Size:               ds.Volumes[idx],
			Misorientation:     ds.Misorientations[idx],
			Misalignment:       angles[i],
			Class:              crystal.Classify(angles[i]),
			Solidity:           math.NaN(),
			AspectRatio:        math.NaN(),
			EquivalentDiameter: EquivalentDiameter(ds.Volumes[idx]),
			NearestMTRDistance: math.NaN(),
		}
		if r, ok := regions[ids[i]]; ok {
			rec.Solidity = r.Solidity
			rec.AspectRatio = r.MajorAxisLength / r.MinorAxisLength
		}

		// Step 6: intensity
		rec.Intensity = Intensity(rec.Size, rec.Solidity, rec.Misalignment, rec.Misorientation)
		records[i] = rec
	}

	if len(ds.Centroids) == ds.FeatureCount() {
		centroids := make([]r3.Vector, len(indices))
		for i, idx := range indices {
			centroids[i] = ds.Centroids[idx]
		}
		for i, d := range NearestDistances(centroids) {
			records[i].NearestMTRDistance = d
		}
	}

	// Step 7: scan aggregates over the whole raster
	cleaned := ds.IPF[models.AxisZ].Cleaned
	raw := ds.IPF[models.AxisZ].Raw
	stats := models.ScanStats{
		StepSize:        ds.StepSize,
		ScanAreaMM2:     ScanArea(cleaned, ds.StepSize),
		AlteredFraction: AlteredFraction(raw, cleaned),
		FeatureCount:    ds.FeatureCount(),
		MTRCount:        len(records),
	}

	return &Result{Records: records, Stats: stats, IDMap: idMap, Mask: mask}, nil
}

// FilterBySize returns the 0-based indices of volumes at or above the
// threshold, in their original order.
func FilterBySize(volumes []float64, threshold float64) []int {
	out := make([]int, 0, len(volumes))
	for i, v := range volumes {
		if v >= threshold {
			out = append(out, i)
		}
	}
	return out
}

// MaskLabels zeroes every label not in ids and reports which pixels kept
// their label.
func MaskLabels(labels models.LabelMap, ids []int32) (models.LabelMap, []bool) {
	keep := make(map[int32]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}

	out := models.NewLabelMap(labels.Width, labels.Height)
	mask := make([]bool, len(labels.Labels))
	for i, l := range labels.Labels {
		if _, ok := keep[l]; ok && l > 0 {
			out.Labels[i] = l
			mask[i] = true
		}
	}
	return out, mask
}

// Intensity scores a region: large, compact, well aligned regions with a
// small internal spread score highest. Zero misorientation gives Inf.
func Intensity(size, solidity, misalignmentDeg, misorientation float64) float64 {
	return size * solidity * math.Cos(misalignmentDeg*math.Pi/180) / misorientation / 1e4
}

// EquivalentDiameter returns the diameter of a circle with the given area.
func EquivalentDiameter(area float64) float64 {
	return math.Sqrt(4 * area / math.Pi)
}

// ScanArea returns the indexed scan area in mm^2: the fraction of pixels
// with any cleaned IPF signal times the physical raster size.
func ScanArea(cleaned models.RGBRaster, stepSize float64) float64 {
	n := cleaned.Width * cleaned.Height
	if n == 0 {
		return math.NaN()
	}
	indexed := 0
	for i := 0; i < n; i++ {
		r, g, b := cleaned.Pixel(i)
		if int(r)+int(g)+int(b) > 0 {
			indexed++
		}
	}
	fraction := float64(indexed) / float64(n)
	return fraction * (float64(cleaned.Height) * stepSize / 1000) * (float64(cleaned.Width) * stepSize / 1000)
}

// AlteredFraction returns the fraction of pixels whose cleaned colour
// differs from the raw colour in at least one channel.
func AlteredFraction(raw, cleaned models.RGBRaster) float64 {
	n := cleaned.Width * cleaned.Height
	if n == 0 || len(raw.Pix) != len(cleaned.Pix) {
		return math.NaN()
	}
	altered := 0
	for i := 0; i < n; i++ {
		rr, rg, rb := raw.Pixel(i)
		cr, cg, cb := cleaned.Pixel(i)
		if rr != cr || rg != cg || rb != cb {
			altered++
		}
	}
	return float64(altered) / float64(n)
}
