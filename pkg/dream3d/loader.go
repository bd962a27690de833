// Package dream3d reads the HDF5 output of the DREAM3D MTR pipeline into a
// models.ScanDataset. The dataset paths and shapes are fixed by the pipeline
// and are only read here, never validated beyond presence and dimensions.
package dream3d

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang/geo/r3"
	"gonum.org/v1/hdf5"

	"microtexture/internal/models"
)

var (
	// ErrNotFound is returned when the path does not resolve to a readable
	// HDF5 file.
	ErrNotFound = errors.New("dream3d file not found")

	// ErrSchemaMismatch is returned when a required dataset is missing or
	// has an unexpected shape.
	ErrSchemaMismatch = errors.New("dream3d schema mismatch")
)

// Load reads a .dream3d file.
//
// The padding row at index 0 of every per-feature array is dropped, so
// feature id k lives at index k-1 of the returned slices. Only the first
// z-slice of per-pixel arrays is kept.
//
// Parameters:
//   - path: location of the .dream3d file
//
// Returns:
//   - the loaded dataset with StepSize computed from all features
//   - ErrNotFound if path is missing, a directory or not HDF5
//   - ErrSchemaMismatch if a required dataset is missing or malformed
func Load(path string) (*models.ScanDataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	defer f.Close()

	r := &reader{file: f}
	ds := &models.ScanDataset{
		Name: SampleName(path),
		Path: path,
	}

	// Per-feature data
	ds.AvgCAxes = toVectors(r.feature(FieldAvgCAxes, 3))
	ds.AvgEulers = toTriples(r.feature(FieldAvgEuler, 3))
	ds.Volumes = r.feature(FieldVolumes, 1)
	ds.Misorientations = r.feature(FieldMisorientations, 1)
	ds.NumCells = r.feature(FieldNumCells, 1)
	ds.EquivalentDiameters = r.feature(FieldEquivalentDiameters, 1)
	ds.Centroids = toVectors(r.feature(FieldCentroids, 3))
	ds.Phases = toInt32(r.feature(FieldPhases, 1))
	ds.NumNeighbors = toInt32(r.feature(FieldNumNeighbors, 1))

	if r.exists(FieldNeighborList) && r.exists(FieldSharedSurfaceAreas) {
		ds.NeighborList = toInt32(r.flat(FieldNeighborList))
		ds.SharedSurfaceAreas = r.flat(FieldSharedSurfaceAreas)
	}

	// Per-pixel data
	ids, w, h := r.cell(FieldFeatureIDs, 1)
	ds.FeatureIDs = models.LabelMap{Width: w, Height: h, Labels: toInt32(ids)}

	mask, _, _ := r.cell(FieldMask, 1)
	ds.Mask = models.Mask{Width: w, Height: h, Valid: make([]bool, len(mask))}
	for i, v := range mask {
		ds.Mask.Valid[i] = v != 0
	}

	for _, axis := range models.Axes {
		var rasters [4]models.RGBRaster
		for i, variant := range ipfVariants {
			rasters[i] = r.rgb(IPFField(variant, axis), w, h)
		}
		ds.IPF[axis] = models.IPFSet{Raw: rasters[0], Cleaned: rasters[1], Average: rasters[2], MTR: rasters[3]}
	}

	ds.RawEulers = r.vectors(FieldEulerAngles, w, h)
	ds.AvgEulerMap = r.vectors(FieldAvgEulerAngles, w, h)

	if r.exists(FieldRawCAxes) {
		caxes := r.vectors(FieldRawCAxes, w, h)
		ds.RawCAxes = &caxes
	}

	if r.err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, r.err)
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, path, err)
	}

	ds.StepSize = models.ComputeStepSize(ds.Volumes, ds.NumCells)
	return ds, nil
}

// reader wraps an open file and remembers the first error, so a sequence of
// reads can be checked once at the end.
type reader struct {
	file *hdf5.File
	err  error
}

// exists reports whether every component of path is a link in the file.
func (r *reader) exists(path string) bool {
	parts := strings.Split(path, "/")
	for i := range parts {
		if !r.file.LinkExists(strings.Join(parts[:i+1], "/")) {
			return false
		}
	}
	return true
}

// read loads a whole dataset as float64 together with its dimensions.
func (r *reader) read(path string) ([]float64, []uint) {
	if r.err != nil {
		return nil, nil
	}
	if !r.exists(path) {
		r.err = fmt.Errorf("%w: missing dataset %s", ErrSchemaMismatch, path)
		return nil, nil
	}

	dset, err := r.file.OpenDataset(path)
	if err != nil {
		r.err = fmt.Errorf("%w: opening %s: %v", ErrSchemaMismatch, path, err)
		return nil, nil
	}
	defer dset.Close()

	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		r.err = fmt.Errorf("%w: reading shape of %s: %v", ErrSchemaMismatch, path, err)
		return nil, nil
	}

	n := 1
	for _, d := range dims {
		n *= int(d)
	}
	data := make([]float64, n)
	if n == 0 {
		return data, dims
	}
	if err := dset.Read(&data); err != nil {
		r.err = fmt.Errorf("reading %s: %w", path, err)
		return nil, nil
	}
	return data, dims
}

// flat reads a dataset without any shape expectation.
func (r *reader) flat(path string) []float64 {
	data, _ := r.read(path)
	return data
}

// feature reads a per-feature array with the given number of components and
// drops the padding row.
func (r *reader) feature(path string, components int) []float64 {
	data, dims := r.read(path)
	if r.err != nil {
		return nil
	}
	if len(dims) == 0 || int(dims[0]) < 1 || len(data) != int(dims[0])*components {
		r.err = fmt.Errorf("%w: %s has shape %v, expected (N, %d)", ErrSchemaMismatch, path, dims, components)
		return nil
	}
	return data[components:]
}

// cell reads a per-pixel array shaped (Z, H, W, C) and returns the first
// z-slice with its width and height.
func (r *reader) cell(path string, components int) ([]float64, int, int) {
	data, dims := r.read(path)
	if r.err != nil {
		return nil, 0, 0
	}
	if len(dims) != 4 || int(dims[3]) != components || dims[0] < 1 {
		r.err = fmt.Errorf("%w: %s has shape %v, expected (Z, H, W, %d)", ErrSchemaMismatch, path, dims, components)
		return nil, 0, 0
	}
	h, w := int(dims[1]), int(dims[2])
	return data[:h*w*components], w, h
}

// rgb reads an IPF colour map and checks it matches the label raster.
func (r *reader) rgb(path string, w, h int) models.RGBRaster {
	data, cw, ch := r.cell(path, 3)
	if r.err != nil {
		return models.RGBRaster{}
	}
	if cw != w || ch != h {
		r.err = fmt.Errorf("%w: %s is %dx%d, expected %dx%d", ErrSchemaMismatch, path, cw, ch, w, h)
		return models.RGBRaster{}
	}
	out := models.RGBRaster{Width: w, Height: h, Pix: make([]uint8, len(data))}
	for i, v := range data {
		out.Pix[i] = uint8(v)
	}
	return out
}

// vectors reads a 3-component per-pixel raster.
func (r *reader) vectors(path string, w, h int) models.VectorRaster {
	data, cw, ch := r.cell(path, 3)
	if r.err != nil {
		return models.VectorRaster{}
	}
	if cw != w || ch != h {
		r.err = fmt.Errorf("%w: %s is %dx%d, expected %dx%d", ErrSchemaMismatch, path, cw, ch, w, h)
		return models.VectorRaster{}
	}
	return models.VectorRaster{Width: w, Height: h, Data: data}
}

func toVectors(data []float64) []r3.Vector {
	if data == nil {
		return nil
	}
	out := make([]r3.Vector, len(data)/3)
	for i := range out {
		out[i] = r3.Vector{X: data[3*i], Y: data[3*i+1], Z: data[3*i+2]}
	}
	return out
}

func toTriples(data []float64) [][3]float64 {
	if data == nil {
		return nil
	}
	out := make([][3]float64, len(data)/3)
	for i := range out {
		out[i] = [3]float64{data[3*i], data[3*i+1], data[3*i+2]}
	}
	return out
}

func toInt32(data []float64) []int32 {
	if data == nil {
		return nil
	}
	out := make([]int32, len(data))
	for i, v := range data {
		out[i] = int32(v)
	}
	return out
}
