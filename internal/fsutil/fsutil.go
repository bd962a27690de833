package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"microtexture/internal/models"
)

// Names of the per-sample outputs.
const (
	RawDataCSV      = "Raw_Data.csv"
	SummaryWorkbook = "Microtexture_Statistics_Summary.xlsx"
	MTRMapImage     = "Individual_MTRs.png"
	MisalignmentMap = "CAxis_Misalignment_Map.png"
	CAxisColorMap   = "CAxis_Color_Map.png"
	IPFImagesDir    = "IPF_Images"
)

// WriteFile atomically replaces path with data, creating parent directories.
// A crash leaves either the old file or the new one, never a partial write.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// WriteWith streams the output of fn into a temporary file next to path and
// renames it into place once fn succeeds.
func WriteWith(path string, fn func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0644))
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	defer pf.Cleanup()

	if err := fn(pf); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// SampleDir returns the directory that holds the images of one sample.
func SampleDir(outputDir, sample string) string {
	return filepath.Join(outputDir, sample)
}

// IPFImagePath returns the path of an IPF image with a scale bar, for
// example <out>/<sample>/IPF_Images/Z/IPF_MTR_Z_Image_w_Scalebar.png.
func IPFImagePath(outputDir, sample, variant string, axis models.Axis) string {
	name := fmt.Sprintf("IPF_%s_%s_Image_w_Scalebar.png", variant, axis)
	return filepath.Join(SampleDir(outputDir, sample), IPFImagesDir, axis.String(), name)
}

// IsEmptyDir reports whether dir is missing or holds no entries.
func IsEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

// ListDream3D returns every .dream3d file directly under dir, or dir itself
// when it names a file.
func ListDream3D(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".dream3d") {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	return files, nil
}
