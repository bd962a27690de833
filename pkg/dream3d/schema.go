package dream3d

import (
	"path/filepath"
	"strings"

	"microtexture/internal/models"
)

// Group paths of the image data container written by the MTR pipeline.
const (
	ContainerPath   = "DataContainers/ImageDataContainer"
	FeatureDataPath = ContainerPath + "/CellFeatureData"
	CellDataPath    = ContainerPath + "/CellData"
)

// Per-feature datasets. Each holds one padding row at index 0.
const (
	FieldAvgCAxes            = FeatureDataPath + "/AvgCAxes"
	FieldAvgEuler            = FeatureDataPath + "/AvgEuler"
	FieldVolumes             = FeatureDataPath + "/Volumes"
	FieldMisorientations     = FeatureDataPath + "/FeatureAvgCAxisMisorientations"
	FieldNumCells            = FeatureDataPath + "/NumCells"
	FieldEquivalentDiameters = FeatureDataPath + "/EquivalentDiameters"
	FieldCentroids           = FeatureDataPath + "/Centroids"
	FieldPhases              = FeatureDataPath + "/Phases"
	FieldNumNeighbors        = FeatureDataPath + "/NumNeighbors2"

	// Optional: absent from files written by older pipeline versions.
	FieldNeighborList       = FeatureDataPath + "/NeighborList2"
	FieldSharedSurfaceAreas = FeatureDataPath + "/SharedSurfaceAreaList2"
)

// Per-pixel datasets, shaped (Z, H, W, C) with Z == 1 for a 2D scan.
const (
	FieldFeatureIDs     = CellDataPath + "/MTRIds"
	FieldMask           = CellDataPath + "/Mask"
	FieldEulerAngles    = CellDataPath + "/EulerAngles"
	FieldAvgEulerAngles = CellDataPath + "/AvgEulerAngles"

	// Optional: absent from files written by older pipeline versions.
	FieldRawCAxes = CellDataPath + "/Raw_CAxes"
)

// IPF map variants, in the order of models.IPFSet.
var ipfVariants = [4]string{"Raw", "Cleaned", "Average", "MTR"}

// IPFField returns the dataset path of one IPF colour map.
func IPFField(variant string, axis models.Axis) string {
	return CellDataPath + "/IPF_" + variant + "_" + axis.String()
}

// SampleName derives the sample name from a .dream3d path.
func SampleName(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, ".dream3d"); i >= 0 {
		return base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
