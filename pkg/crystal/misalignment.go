// Package crystal provides the crystallographic helpers used by the MTR
// analysis: c-axis misalignment to a stress axis, the misalignment class
// bins, and c-axis colour maps.
package crystal

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"microtexture/internal/models"
)

// ErrInvalidStressAxis is returned for stress axis strings other than
// "100", "010" or "001".
var ErrInvalidStressAxis = errors.New("invalid stress axis")

// ParseStressAxis converts a Miller-style direction string into a unit vector.
func ParseStressAxis(s string) (r3.Vector, error) {
	switch s {
	case "100":
		return r3.Vector{X: 1}, nil
	case "010":
		return r3.Vector{Y: 1}, nil
	case "001":
		return r3.Vector{Z: 1}, nil
	}
	return r3.Vector{}, fmt.Errorf("%w: %q (must be 100, 010 or 001)", ErrInvalidStressAxis, s)
}

// MisalignmentAngle returns the angle in degrees between v and reference,
// folded into [0, 90] because c-axes are centrosymmetric. A zero-length v
// yields NaN.
func MisalignmentAngle(v, reference r3.Vector) float64 {
	angle := 180 / math.Pi * math.Acos(v.Dot(reference)/(v.Norm()*reference.Norm()))
	if angle > 90 {
		angle = 180 - angle
	}
	return angle
}

// Misalignment computes MisalignmentAngle for every vector.
func Misalignment(vectors []r3.Vector, reference r3.Vector) []float64 {
	angles := make([]float64, len(vectors))
	for i, v := range vectors {
		angles[i] = MisalignmentAngle(v, reference)
	}
	return angles
}

// MisalignmentMap computes the per-pixel misalignment of a c-axis raster.
func MisalignmentMap(caxes models.VectorRaster, reference r3.Vector) []float64 {
	n := caxes.Width * caxes.Height
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = MisalignmentAngle(caxes.Vector(i), reference)
	}
	return out
}

// classBin is a left-closed, right-open misalignment interval.
type classBin struct {
	lo, hi float64
	class  models.Class
}

var classBins = []classBin{
	{0, 25, models.ClassHard},
	{25, 40, models.ClassMisc},
	{40, 60, models.ClassInitiator},
	{60, 70, models.ClassMisc},
	{70, 100, models.ClassSoft},
}

// Classify maps a misalignment angle in degrees onto its class. The last
// bin is closed at 100; NaN and out-of-range values give ClassUnknown.
func Classify(angle float64) models.Class {
	if math.IsNaN(angle) {
		return models.ClassUnknown
	}
	for _, b := range classBins {
		if angle >= b.lo && angle < b.hi {
			return b.class
		}
	}
	if angle == 100 {
		return models.ClassSoft
	}
	return models.ClassUnknown
}

// ClassifyAll classifies every angle.
func ClassifyAll(angles []float64) []models.Class {
	classes := make([]models.Class, len(angles))
	for i, a := range angles {
		classes[i] = Classify(a)
	}
	return classes
}
