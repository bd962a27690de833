// Package dream3dtest writes small synthetic .dream3d files for tests.
package dream3dtest

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
	"gonum.org/v1/hdf5"

	"microtexture/internal/models"
	"microtexture/pkg/dream3d"
)

// Options control which optional datasets are written.
type Options struct {
	NeighborList bool
	RawCAxes     bool

	// Omit lists required dataset paths to leave out, for schema tests.
	Omit []string
}

// WriteFile stores ds at path using the layout dream3d.Load reads. A zero
// padding row is prepended to every per-feature array.
func WriteFile(path string, ds *models.ScanDataset, opts Options) error {
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	for _, g := range []string{"DataContainers", dream3d.ContainerPath, dream3d.FeatureDataPath, dream3d.CellDataPath} {
		grp, err := f.CreateGroup(g)
		if err != nil {
			return fmt.Errorf("creating group %s: %w", g, err)
		}
		grp.Close()
	}

	w := &writer{file: f, omit: opts.Omit}
	n := ds.FeatureCount()

	w.float32s(dream3d.FieldAvgCAxes, []uint{uint(n + 1), 3}, padVectors(ds.AvgCAxes))
	w.float32s(dream3d.FieldAvgEuler, []uint{uint(n + 1), 3}, padTriples(ds.AvgEulers))
	w.float32s(dream3d.FieldVolumes, []uint{uint(n + 1), 1}, pad(ds.Volumes))
	w.float32s(dream3d.FieldMisorientations, []uint{uint(n + 1), 1}, pad(ds.Misorientations))
	w.int32s(dream3d.FieldNumCells, []uint{uint(n + 1), 1}, toInt32(pad(ds.NumCells)))
	w.float32s(dream3d.FieldEquivalentDiameters, []uint{uint(n + 1), 1}, pad(ds.EquivalentDiameters))
	w.float32s(dream3d.FieldCentroids, []uint{uint(n + 1), 3}, padVectors(ds.Centroids))
	w.int32s(dream3d.FieldPhases, []uint{uint(n + 1), 1}, append([]int32{0}, ds.Phases...))
	w.int32s(dream3d.FieldNumNeighbors, []uint{uint(n + 1), 1}, append([]int32{0}, ds.NumNeighbors...))

	if opts.NeighborList {
		w.int32s(dream3d.FieldNeighborList, []uint{uint(len(ds.NeighborList))}, ds.NeighborList)
		w.float32s(dream3d.FieldSharedSurfaceAreas, []uint{uint(len(ds.SharedSurfaceAreas))}, ds.SharedSurfaceAreas)
	}

	width, height := uint(ds.Width()), uint(ds.Height())
	scalar := []uint{1, height, width, 1}
	vector := []uint{1, height, width, 3}

	w.int32s(dream3d.FieldFeatureIDs, scalar, ds.FeatureIDs.Labels)
	mask := make([]uint8, len(ds.Mask.Valid))
	for i, v := range ds.Mask.Valid {
		if v {
			mask[i] = 1
		}
	}
	w.uint8s(dream3d.FieldMask, scalar, mask)

	for _, axis := range models.Axes {
		set := ds.IPF[axis]
		w.uint8s(dream3d.IPFField("Raw", axis), vector, set.Raw.Pix)
		w.uint8s(dream3d.IPFField("Cleaned", axis), vector, set.Cleaned.Pix)
		w.uint8s(dream3d.IPFField("Average", axis), vector, set.Average.Pix)
		w.uint8s(dream3d.IPFField("MTR", axis), vector, set.MTR.Pix)
	}
	w.float32s(dream3d.FieldEulerAngles, vector, ds.RawEulers.Data)
	w.float32s(dream3d.FieldAvgEulerAngles, vector, ds.AvgEulerMap.Data)

	if opts.RawCAxes && ds.RawCAxes != nil {
		w.float32s(dream3d.FieldRawCAxes, vector, ds.RawCAxes.Data)
	}
	return w.err
}

type writer struct {
	file *hdf5.File
	omit []string
	err  error
}

func (w *writer) skip(path string) bool {
	for _, o := range w.omit {
		if strings.EqualFold(o, path) {
			return true
		}
	}
	return false
}

func (w *writer) write(path string, dims []uint, dtype *hdf5.Datatype, data interface{}) {
	if w.err != nil || w.skip(path) {
		return
	}
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		w.err = fmt.Errorf("dataspace for %s: %w", path, err)
		return
	}
	defer space.Close()

	dset, err := w.file.CreateDataset(path, dtype, space)
	if err != nil {
		w.err = fmt.Errorf("creating %s: %w", path, err)
		return
	}
	defer dset.Close()

	if err := dset.Write(data); err != nil {
		w.err = fmt.Errorf("writing %s: %w", path, err)
	}
}

func (w *writer) float32s(path string, dims []uint, data []float64) {
	buf := make([]float32, len(data))
	for i, v := range data {
		buf[i] = float32(v)
	}
	w.write(path, dims, hdf5.T_NATIVE_FLOAT, &buf)
}

func (w *writer) int32s(path string, dims []uint, data []int32) {
	buf := make([]int32, len(data))
	copy(buf, data)
	w.write(path, dims, hdf5.T_NATIVE_INT32, &buf)
}

func (w *writer) uint8s(path string, dims []uint, data []uint8) {
	buf := make([]uint8, len(data))
	copy(buf, data)
	w.write(path, dims, hdf5.T_NATIVE_UINT8, &buf)
}

func pad(v []float64) []float64 {
	return append([]float64{0}, v...)
}

func padVectors(v []r3.Vector) []float64 {
	out := make([]float64, 3, 3*(len(v)+1))
	for _, p := range v {
		out = append(out, p.X, p.Y, p.Z)
	}
	return out
}

func padTriples(v [][3]float64) []float64 {
	out := make([]float64, 3, 3*(len(v)+1))
	for _, p := range v {
		out = append(out, p[0], p[1], p[2])
	}
	return out
}

func toInt32(v []float64) []int32 {
	out := make([]int32, len(v))
	for i, x := range v {
		out[i] = int32(x)
	}
	return out
}
