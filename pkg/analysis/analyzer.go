// Package analysis runs the MTR post-processing of one or more DREAM3D
// outputs: load, extract, render the annotated images and write the
// aggregated reports.
package analysis

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang/geo/r3"

	"microtexture/internal/fsutil"
	"microtexture/internal/logging"
	"microtexture/internal/models"
	"microtexture/pkg/crystal"
	"microtexture/pkg/dream3d"
	"microtexture/pkg/mtr"
	"microtexture/pkg/render"
	"microtexture/pkg/report"
)

// Params holds the analysis parameters.
type Params struct {
	// Inputs lists the .dream3d files to analyse, one sample each.
	Inputs []string

	// OutputDir receives Raw_Data.csv, the summary workbook and one image
	// directory per sample.
	OutputDir string

	// MinMTRSize is the minimum region area in um^2.
	MinMTRSize float64

	// StressAxis is "100", "010" or "001".
	StressAxis string

	// Frame selects the c-axis colour map channel convention. Defaults to HKL.
	Frame crystal.ReferenceFrame

	// SaveImages enables the annotated PNG outputs.
	SaveImages bool

	Logger *slog.Logger
}

// Analyzer processes a batch of samples sequentially. Only one dataset is
// held in memory at a time.
type Analyzer struct {
	params *Params
	log    *slog.Logger
	frame  crystal.ReferenceFrame

	// samples collects the per-sample results in input order
	samples []report.Sample

	summary *report.Summary
}

// NewAnalyzer creates a new analyzer with the provided parameters.
func NewAnalyzer(params *Params) *Analyzer {
	return &Analyzer{
		params: params,
		log:    logging.OrDefault(params.Logger),
	}
}

// Process runs the complete analysis. A sample that fails to load is
// logged and skipped; the returned error joins every sample error and is
// reported after the remaining samples and the reports have been written.
// Image failures are logged and never cost a sample its records.
func (a *Analyzer) Process() error {
	reference, err := crystal.ParseStressAxis(a.params.StressAxis)
	if err != nil {
		return err
	}
	if a.frame, err = crystal.ParseFrame(string(a.params.Frame)); err != nil {
		return err
	}
	if len(a.params.Inputs) == 0 {
		return errors.New("no input files")
	}

	var errs []error
	names := make(map[string]bool, len(a.params.Inputs))
	for _, path := range a.params.Inputs {
		start := time.Now()
		name := uniqueName(path, names)
		if name != dream3d.SampleName(path) {
			a.log.Warn("Duplicate sample name, renamed", "path", path, "sample", name)
		}
		sample, err := a.processSample(path, name, reference)
		if err != nil {
			a.log.Error("Sample failed", "path", path, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		a.samples = append(a.samples, *sample)
		a.log.Info("Sample analysed",
			"sample", sample.Name,
			"mtrs", len(sample.Records),
			"elapsed", time.Since(start).Round(time.Millisecond))
	}

	if len(a.samples) == 0 {
		return errors.Join(errs...)
	}

	a.summary = report.Aggregate(a.samples)
	if a.summary.Dropped > 0 {
		a.log.Info("Records excluded from the summary", "count", a.summary.Dropped)
	}

	csvPath := filepath.Join(a.params.OutputDir, fsutil.RawDataCSV)
	if err := report.WriteRawCSV(csvPath, a.samples); err != nil {
		errs = append(errs, fmt.Errorf("failed to write raw data: %w", err))
	}
	xlsxPath := filepath.Join(a.params.OutputDir, fsutil.SummaryWorkbook)
	if err := report.WriteExcel(xlsxPath, a.summary); err != nil {
		errs = append(errs, fmt.Errorf("failed to write summary workbook: %w", err))
	}
	return errors.Join(errs...)
}

// uniqueName returns the sample name of path, suffixed with its parent
// directory and then a counter while the name is already taken, and marks
// the result as taken.
func uniqueName(path string, taken map[string]bool) string {
	base := dream3d.SampleName(path)
	name := base
	if taken[name] {
		base += "_" + filepath.Base(filepath.Dir(path))
		name = base
		for i := 2; taken[name]; i++ {
			name = base + "_" + strconv.Itoa(i)
		}
	}
	taken[name] = true
	return name
}

// processSample loads one dataset under the given sample name, extracts its
// MTRs and renders its images. The dataset goes out of scope on return.
func (a *Analyzer) processSample(path, name string, reference r3.Vector) (*report.Sample, error) {
	ds, err := dream3d.Load(path)
	if err != nil {
		return nil, err
	}
	ds.Name = name

	res, err := mtr.Extract(ds, a.params.MinMTRSize, reference)
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		a.log.Warn("No MTRs above the size threshold",
			"sample", ds.Name,
			"threshold", a.params.MinMTRSize,
			"features", res.Stats.FeatureCount)
	}

	if a.params.SaveImages {
		if err := a.saveImages(ds, res, reference); err != nil {
			a.log.Error("Failed to save images", "sample", ds.Name, "error", err)
		}
	}

	return &report.Sample{
		Name:            ds.Name,
		Records:         res.Records,
		ScanAreaMM2:     res.Stats.ScanAreaMM2,
		AlteredFraction: res.Stats.AlteredFraction,
	}, nil
}

// saveImages writes the MTR id map, the IPF maps of every axis and, when
// the per-pixel c-axes are present, the misalignment and c-axis colour maps.
// Every image carries a scale bar.
func (a *Analyzer) saveImages(ds *models.ScanDataset, res *mtr.Result, reference r3.Vector) error {
	out := a.params.OutputDir
	dir := fsutil.SampleDir(out, ds.Name)

	// Step 1: individual MTRs with their boundaries
	ids, err := render.Colorize(res.IDMap.Float64(), res.IDMap.Width, res.IDMap.Height, "nipy_spectral", render.Black)
	if err != nil {
		return err
	}
	marked, err := render.OverlayBoundaries(ids, res.IDMap, render.White)
	if err != nil {
		return err
	}
	if err := a.saveWithScaleBar(filepath.Join(dir, fsutil.MTRMapImage), marked, ds.StepSize); err != nil {
		return err
	}

	// Step 2: cleaned and MTR-only IPF maps per reference direction
	for _, axis := range models.Axes {
		set := ds.IPF[axis]
		for _, v := range []struct {
			name   string
			raster models.RGBRaster
		}{{"Cleaned", set.Cleaned}, {"MTR", set.MTR}} {
			path := fsutil.IPFImagePath(out, ds.Name, v.name, axis)
			if err := a.saveWithScaleBar(path, render.RGBRasterImage(v.raster), ds.StepSize); err != nil {
				return err
			}
		}
	}

	// Step 3: per-pixel c-axis maps
	if !ds.HasRawCAxes() {
		a.log.Debug("No per-pixel c-axes, skipping c-axis maps", "sample", ds.Name)
		return nil
	}
	caxes := *ds.RawCAxes

	angles := crystal.MisalignmentMap(caxes, reference)
	misImg, err := render.Colorize(angles, caxes.Width, caxes.Height, "jet", render.Black)
	if err != nil {
		return err
	}
	misImg = render.MaskImage(misImg, ds.Mask.Valid, render.Black)
	if err := a.saveWithScaleBar(filepath.Join(dir, fsutil.MisalignmentMap), misImg, ds.StepSize); err != nil {
		return err
	}

	colors, err := crystal.CAxisColorMap(caxes, ds.Mask, a.frame, a.params.StressAxis)
	if err != nil {
		return err
	}
	return a.saveWithScaleBar(filepath.Join(dir, fsutil.CAxisColorMap), render.RGBRasterImage(colors), ds.StepSize)
}

// saveWithScaleBar writes img with a scale bar, or without one when the
// step size is not a positive finite number.
func (a *Analyzer) saveWithScaleBar(path string, img image.Image, stepSize float64) error {
	if !(stepSize > 0) || math.IsInf(stepSize, 0) {
		a.log.Warn("Invalid step size, saving without scale bar", "path", path, "step", stepSize)
		return render.SavePNG(path, img)
	}
	annotated, bar, err := render.AddScaleBar(img, stepSize)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := render.SavePNG(path, annotated); err != nil {
		return err
	}
	a.log.Debug("Saved image", "path", path, "scalebar", bar.Label)
	return nil
}

// GetSummary returns the aggregate of the processed samples, nil before
// Process has produced one.
func (a *Analyzer) GetSummary() *report.Summary {
	return a.summary
}

// GetSamples returns the per-sample results in input order.
func (a *Analyzer) GetSamples() []report.Sample {
	return a.samples
}
