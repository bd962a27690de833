package mtr

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"microtexture/internal/models"
	"microtexture/pkg/dream3d/dream3dtest"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestFilterBySize(t *testing.T) {
	got := FilterBySize([]float64{5000, 15000, 9999, 10000}, 10000)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("Expected indices [1 3], got %v", got)
	}

	if got := FilterBySize(nil, 10000); len(got) != 0 {
		t.Errorf("Expected no indices for empty input, got %v", got)
	}
}

func TestMaskLabels(t *testing.T) {
	labels := models.LabelMap{Width: 3, Height: 2, Labels: []int32{0, 1, 2, 2, 3, 1}}

	out, mask := MaskLabels(labels, []int32{1, 3})

	wantLabels := []int32{0, 1, 0, 0, 3, 1}
	wantMask := []bool{false, true, false, false, true, true}
	for i := range wantLabels {
		if out.Labels[i] != wantLabels[i] {
			t.Errorf("Label %d: expected %d, got %d", i, wantLabels[i], out.Labels[i])
		}
		if mask[i] != wantMask[i] {
			t.Errorf("Mask %d: expected %v, got %v", i, wantMask[i], mask[i])
		}
	}
	if labels.Labels[2] != 2 {
		t.Error("MaskLabels modified its input")
	}
}

func TestIntensity(t *testing.T) {
	if got := Intensity(20000, 1, 60, 1); !almostEqual(got, 1, 1e-12) {
		t.Errorf("Expected intensity 1, got %f", got)
	}
	if got := Intensity(20000, 1, 0, 0); !math.IsInf(got, 1) {
		t.Errorf("Expected +Inf for zero misorientation, got %f", got)
	}
	if got := Intensity(20000, math.NaN(), 0, 1); !math.IsNaN(got) {
		t.Errorf("Expected NaN to propagate, got %f", got)
	}
}

func TestAlteredFractionBounds(t *testing.T) {
	a := models.NewRGBRaster(4, 3)
	for i := range a.Pix {
		a.Pix[i] = uint8(i)
	}
	b := models.NewRGBRaster(4, 3)
	copy(b.Pix, a.Pix)

	if got := AlteredFraction(a, b); got != 0 {
		t.Errorf("Expected 0 for identical rasters, got %f", got)
	}

	for i := 0; i < 12; i++ {
		b.Pix[3*i+1]++
	}
	if got := AlteredFraction(a, b); got != 1 {
		t.Errorf("Expected 1 for disjoint rasters, got %f", got)
	}
}

func TestScanArea(t *testing.T) {
	r := models.NewRGBRaster(10, 4)
	for i := 0; i < 20; i++ {
		r.Pix[3*i] = 1
	}
	// Half of a 0.5 mm x 0.2 mm field
	if got := ScanArea(r, 50); !almostEqual(got, 0.05, 1e-12) {
		t.Errorf("Expected scan area 0.05 mm^2, got %f", got)
	}
}

func TestNearestDistances(t *testing.T) {
	points := []r3.Vector{{X: 0, Y: 0}, {X: 3, Y: 4}, {X: 10, Y: 0}, {X: 10, Y: 1}}
	got := NearestDistances(points)
	want := []float64{5, 5, 1, 1}
	for i := range want {
		if !almostEqual(got[i], want[i], 1e-12) {
			t.Errorf("Point %d: expected %f, got %f", i, want[i], got[i])
		}
	}

	single := NearestDistances([]r3.Vector{{X: 1}})
	if !math.IsNaN(single[0]) {
		t.Errorf("Expected NaN for a single point, got %f", single[0])
	}
}

func TestExtractSynthetic(t *testing.T) {
	ds := dream3dtest.Synthetic()

	res, err := Extract(ds, 10000, r3.Vector{Z: 1})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(res.Records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(res.Records))
	}
	wantIDs := []int32{1, 2, 4}
	wantClass := []models.Class{models.ClassHard, models.ClassInitiator, models.ClassSoft}
	wantMis := []float64{0, 45, 90}
	for i, rec := range res.Records {
		if rec.FeatureID != wantIDs[i] {
			t.Errorf("Record %d: expected feature id %d, got %d", i, wantIDs[i], rec.FeatureID)
		}
		if rec.Class != wantClass[i] {
			t.Errorf("Record %d: expected class %q, got %q", i, wantClass[i], rec.Class)
		}
		if !almostEqual(rec.Misalignment, wantMis[i], 1e-9) {
			t.Errorf("Record %d: expected misalignment %f, got %f", i, wantMis[i], rec.Misalignment)
		}
	}

	r1, r2, r4 := res.Records[0], res.Records[1], res.Records[2]

	if !almostEqual(r1.Solidity, 1, 1e-12) || !almostEqual(r1.AspectRatio, 1, 1e-9) {
		t.Errorf("Feature 1: expected solidity 1 and aspect ratio 1, got %f and %f", r1.Solidity, r1.AspectRatio)
	}
	if !almostEqual(r1.Intensity, 0.5, 1e-9) {
		t.Errorf("Feature 1: expected intensity 0.5, got %f", r1.Intensity)
	}

	if !almostEqual(r2.AspectRatio, math.Sqrt(5), 1e-9) {
		t.Errorf("Feature 2: expected aspect ratio %f, got %f", math.Sqrt(5), r2.AspectRatio)
	}
	if !almostEqual(r2.Intensity, 0.5*math.Cos(math.Pi/4), 1e-9) {
		t.Errorf("Feature 2: expected intensity %f, got %f", 0.5*math.Cos(math.Pi/4), r2.Intensity)
	}

	if !almostEqual(r4.Solidity, 10.0/11.0, 1e-12) {
		t.Errorf("Feature 4: expected solidity 10/11, got %f", r4.Solidity)
	}
	if math.IsNaN(r4.Intensity) || r4.Finite() {
		t.Errorf("Feature 4: expected a non-finite intensity from zero misorientation, got %f", r4.Intensity)
	}
	if !r1.Finite() || !r2.Finite() {
		t.Error("Features 1 and 2 should be finite")
	}

	if !almostEqual(r1.NearestMTRDistance, 150, 1e-9) || !almostEqual(r2.NearestMTRDistance, 125, 1e-9) || !almostEqual(r4.NearestMTRDistance, 125, 1e-9) {
		t.Errorf("Unexpected nearest distances %f %f %f", r1.NearestMTRDistance, r2.NearestMTRDistance, r4.NearestMTRDistance)
	}
	if !almostEqual(r1.EquivalentDiameter, math.Sqrt(40000/math.Pi), 1e-9) {
		t.Errorf("Feature 1: unexpected equivalent diameter %f", r1.EquivalentDiameter)
	}

	for i, l := range res.IDMap.Labels {
		if l == 3 {
			t.Fatalf("Pixel %d kept the filtered label 3", i)
		}
		if res.Mask[i] != (l != 0) {
			t.Fatalf("Pixel %d: mask and label disagree", i)
		}
	}

	if !almostEqual(res.Stats.StepSize, 50, 1e-9) {
		t.Errorf("Expected step size 50, got %f", res.Stats.StepSize)
	}
	if !almostEqual(res.Stats.ScanAreaMM2, 23.0/24.0*0.2*0.3, 1e-12) {
		t.Errorf("Expected scan area %f, got %f", 23.0/24.0*0.2*0.3, res.Stats.ScanAreaMM2)
	}
	if !almostEqual(res.Stats.AlteredFraction, 0.25, 1e-12) {
		t.Errorf("Expected altered fraction 0.25, got %f", res.Stats.AlteredFraction)
	}
	if res.Stats.FeatureCount != 4 || res.Stats.MTRCount != 3 {
		t.Errorf("Expected 4 features and 3 MTRs, got %d and %d", res.Stats.FeatureCount, res.Stats.MTRCount)
	}
}

func TestExtractEmpty(t *testing.T) {
	ds := dream3dtest.Synthetic()

	res, err := Extract(ds, 1e9, r3.Vector{Z: 1})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("Expected no records, got %d", len(res.Records))
	}
	if math.IsNaN(res.Stats.ScanAreaMM2) || math.IsNaN(res.Stats.AlteredFraction) {
		t.Error("Scan statistics should be defined without any MTR")
	}
	for i, l := range res.IDMap.Labels {
		if l != 0 {
			t.Fatalf("Pixel %d: expected an empty MTR raster, got label %d", i, l)
		}
	}
}

func TestExtractErrors(t *testing.T) {
	if _, err := Extract(nil, 10000, r3.Vector{Z: 1}); err == nil {
		t.Error("Expected an error for a nil dataset")
	}
	if _, err := Extract(dream3dtest.Synthetic(), 10000, r3.Vector{}); !errors.Is(err, ErrZeroStressAxis) {
		t.Errorf("Expected ErrZeroStressAxis, got %v", err)
	}
}
