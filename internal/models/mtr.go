package models

import "math"

// Class is the alignment class assigned to an MTR from its c-axis
// misalignment to the stress axis.
type Class string

const (
	ClassHard      Class = "Hard"
	ClassMisc      Class = "Misc"
	ClassInitiator Class = "Initiator"
	ClassSoft      Class = "Soft"

	// ClassUnknown marks a misalignment outside the binned range (including NaN).
	ClassUnknown Class = ""
)

// MTRRecord describes one microtexture region that met the size threshold.
type MTRRecord struct {
	// FeatureID is the label of the region in the feature id raster.
	FeatureID int32

	// Size is the region area in um^2.
	Size float64

	// Misorientation is the internal c-axis spread in degrees.
	Misorientation float64

	// Misalignment is the folded angle between the average c-axis and the
	// stress axis in degrees.
	Misalignment float64

	Class Class

	Solidity    float64
	AspectRatio float64
	Intensity   float64

	// EquivalentDiameter is the diameter of a circle with the same area, um.
	EquivalentDiameter float64

	// NearestMTRDistance is the centroid distance to the closest other MTR
	// in the same scan, um. NaN when the scan holds a single MTR.
	NearestMTRDistance float64
}

// Finite reports whether every tracked metric of the record is finite.
func (r MTRRecord) Finite() bool {
	for _, v := range []float64{r.Size, r.Misalignment, r.Misorientation, r.Solidity, r.Intensity, r.AspectRatio} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ScanStats holds scan-level aggregates that do not depend on the MTR filter.
type ScanStats struct {
	// StepSize is the pixel pitch in um.
	StepSize float64

	// ScanAreaMM2 is the area covered by indexed pixels in mm^2.
	ScanAreaMM2 float64

	// AlteredFraction is the fraction of pixels changed by the cleanup filters.
	AlteredFraction float64

	FeatureCount int
	MTRCount     int
}
