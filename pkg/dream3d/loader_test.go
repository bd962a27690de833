package dream3d_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"microtexture/internal/models"
	"microtexture/pkg/dream3d"
	"microtexture/pkg/dream3d/dream3dtest"
)

// writeSynthetic stores the synthetic dataset in a temp dir and returns its path.
func writeSynthetic(t *testing.T, opts dream3dtest.Options) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "PW9-Sample.dream3d")
	if err := dream3dtest.WriteFile(path, dream3dtest.Synthetic(), opts); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

func TestLoadSynthetic(t *testing.T) {
	path := writeSynthetic(t, dream3dtest.Options{NeighborList: true, RawCAxes: true})
	want := dream3dtest.Synthetic()

	ds, err := dream3d.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if ds.Name != "PW9-Sample" {
		t.Errorf("Expected sample name PW9-Sample, got %q", ds.Name)
	}
	if ds.FeatureCount() != want.FeatureCount() {
		t.Fatalf("Expected %d features, got %d", want.FeatureCount(), ds.FeatureCount())
	}
	for i := range want.Volumes {
		if ds.Volumes[i] != want.Volumes[i] {
			t.Errorf("Volume %d: expected %f, got %f", i, want.Volumes[i], ds.Volumes[i])
		}
		if ds.Misorientations[i] != want.Misorientations[i] {
			t.Errorf("Misorientation %d: expected %f, got %f", i, want.Misorientations[i], ds.Misorientations[i])
		}
		if ds.AvgCAxes[i] != want.AvgCAxes[i] {
			t.Errorf("AvgCAxis %d: expected %v, got %v", i, want.AvgCAxes[i], ds.AvgCAxes[i])
		}
		if ds.NumCells[i] != want.NumCells[i] {
			t.Errorf("NumCells %d: expected %f, got %f", i, want.NumCells[i], ds.NumCells[i])
		}
	}

	if ds.Width() != dream3dtest.SyntheticWidth || ds.Height() != dream3dtest.SyntheticHeight {
		t.Errorf("Expected %dx%d raster, got %dx%d", dream3dtest.SyntheticWidth, dream3dtest.SyntheticHeight, ds.Width(), ds.Height())
	}
	for i, l := range want.FeatureIDs.Labels {
		if ds.FeatureIDs.Labels[i] != l {
			t.Fatalf("Label %d: expected %d, got %d", i, l, ds.FeatureIDs.Labels[i])
		}
	}
	if ds.Mask.Valid[len(ds.Mask.Valid)-1] || !ds.Mask.Valid[0] {
		t.Error("Mask was not read correctly")
	}

	cleaned := ds.IPF[models.AxisZ].Cleaned
	for i, v := range want.IPF[models.AxisZ].Cleaned.Pix {
		if cleaned.Pix[i] != v {
			t.Fatalf("IPF cleaned Z byte %d: expected %d, got %d", i, v, cleaned.Pix[i])
		}
	}

	if math.Abs(ds.StepSize-dream3dtest.SyntheticStepSize) > 1e-9 {
		t.Errorf("Expected step size %f, got %f", dream3dtest.SyntheticStepSize, ds.StepSize)
	}
	if !ds.HasNeighborList() {
		t.Error("Expected neighbour list to be loaded")
	}
	if !ds.HasRawCAxes() {
		t.Error("Expected raw c-axes to be loaded")
	}
}

func TestLoadWithoutOptionalFields(t *testing.T) {
	path := writeSynthetic(t, dream3dtest.Options{})

	ds, err := dream3d.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ds.HasNeighborList() {
		t.Error("Expected no neighbour list")
	}
	if ds.HasRawCAxes() {
		t.Error("Expected no raw c-axes")
	}
}

func TestLoadMissingRequiredField(t *testing.T) {
	path := writeSynthetic(t, dream3dtest.Options{Omit: []string{dream3d.FieldVolumes}})

	_, err := dream3d.Load(path)
	if !errors.Is(err, dream3d.ErrSchemaMismatch) {
		t.Errorf("Expected ErrSchemaMismatch, got %v", err)
	}
}

func TestLoadNotFound(t *testing.T) {
	dir := t.TempDir()

	if _, err := dream3d.Load(filepath.Join(dir, "missing.dream3d")); !errors.Is(err, dream3d.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a missing file, got %v", err)
	}
	if _, err := dream3d.Load(dir); !errors.Is(err, dream3d.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a directory, got %v", err)
	}

	text := filepath.Join(dir, "notes.dream3d")
	if err := os.WriteFile(text, []byte("not hdf5"), 0644); err != nil {
		t.Fatalf("Failed to write text file: %v", err)
	}
	if _, err := dream3d.Load(text); !errors.Is(err, dream3d.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a non-HDF5 file, got %v", err)
	}
}

func TestSampleName(t *testing.T) {
	cases := map[string]string{
		"/data/PW9.dream3d":      "PW9",
		"scan.v2.dream3d":        "scan.v2",
		"relative/dir/sample.h5": "sample",
		"sample.dream3d.bak":     "sample",
	}
	for in, want := range cases {
		if got := dream3d.SampleName(in); got != want {
			t.Errorf("SampleName(%q): expected %q, got %q", in, want, got)
		}
	}
}
