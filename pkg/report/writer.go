package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"microtexture/internal/fsutil"
)

// Extra raw table columns beyond the tracked metrics.
const (
	ColumnSample             = "Sample"
	ColumnClass              = "MTR Class"
	ColumnEquivalentDiameter = "MTR Equivalent Diameter, um"
	ColumnNearestDistance    = "Nearest MTR Distance, um"
)

// Workbook sheet names other than the per-metric sheets.
const (
	SheetAreaFractions = "Area Fractions"
	SheetScanAreas     = "Scan Areas and Cleanup Summary"
)

// numberFormat shows numeric cells with four decimals.
const numberFormat = "0.0000"

// RawHeader returns the column names of the raw record table.
func RawHeader() []string {
	header := []string{ColumnSample, ColumnClass}
	header = append(header, Metrics...)
	return append(header, ColumnEquivalentDiameter, ColumnNearestDistance)
}

// WriteRawCSV writes every record of every sample to path, one row per MTR.
// Rows are not filtered: non-finite values are written as NaN, inf or -inf
// so they can be traced back to their region.
func WriteRawCSV(path string, samples []Sample) error {
	return fsutil.WriteWith(path, func(w io.Writer) error {
		return EncodeRawCSV(w, samples)
	})
}

// EncodeRawCSV is WriteRawCSV to an arbitrary writer.
func EncodeRawCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RawHeader()); err != nil {
		return err
	}
	for _, s := range samples {
		for _, r := range s.Records {
			row := []string{s.Name, string(r.Class)}
			for _, m := range Metrics {
				row = append(row, formatFloat(MetricValue(r, m)))
			}
			row = append(row, formatFloat(r.EquivalentDiameter), formatFloat(r.NearestMTRDistance))
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteExcel writes the summary workbook: one sheet per tracked metric in
// name order, the area fraction sheet and the scan area sheet.
func WriteExcel(path string, summary *Summary) error {
	return fsutil.WriteWith(path, func(w io.Writer) error {
		return EncodeExcel(w, summary)
	})
}

// EncodeExcel is WriteExcel to an arbitrary writer.
func EncodeExcel(w io.Writer, summary *Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	numFmt := numberFormat
	style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return fmt.Errorf("creating number style: %w", err)
	}
	sw := &sheetWriter{file: f, style: style}

	for _, m := range SortedMetrics() {
		sw.start(m)
		sw.row(ColumnSample, ColumnClass, "number_of_mtrs", "mean", "std", "min", "25%", "50%", "75%", "max")
		for _, g := range summary.Groups {
			s := g.Metrics[m]
			sw.row(g.Sample, string(g.Class), s.Count, s.Mean, s.Std, s.Min, s.Q25, s.Q50, s.Q75, s.Max)
		}
	}

	sw.start(SheetAreaFractions)
	sw.row(ColumnSample, ColumnClass, "Total_Area_um2", "Area Fraction", "Count", "Number Density (Qty/mm)")
	for _, g := range summary.Groups {
		sw.row(g.Sample, string(g.Class), g.TotalAreaUM2, g.AreaFraction, g.Count, g.NumberDensity)
	}

	sw.start(SheetScanAreas)
	sw.row(ColumnSample, "Scan Area, mm2", "Pixel Fraction Altered By Cleanup")
	for _, s := range summary.Scans {
		sw.row(s.Sample, s.ScanAreaMM2, s.AlteredFraction)
	}

	if sw.err != nil {
		return sw.err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("encoding workbook: %w", err)
	}
	return nil
}

// SortedMetrics returns the tracked metric names in sheet order.
func SortedMetrics() []string {
	out := append([]string(nil), Metrics...)
	sort.Strings(out)
	return out
}

// sheetWriter appends rows to the current sheet and remembers the first error.
type sheetWriter struct {
	file  *excelize.File
	style int
	sheet string
	next  int
	err   error
}

func (s *sheetWriter) start(name string) {
	if s.err != nil {
		return
	}
	if _, err := s.file.NewSheet(name); err != nil {
		s.err = fmt.Errorf("creating sheet %q: %w", name, err)
		return
	}
	s.sheet = name
	s.next = 1
}

// row writes one row. Floats are styled with the number format; NaN and
// infinite floats leave the cell blank.
func (s *sheetWriter) row(values ...interface{}) {
	if s.err != nil {
		return
	}
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, s.next)
		if err != nil {
			s.err = err
			return
		}
		if f, ok := v.(float64); ok {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				continue
			}
			if err := s.file.SetCellStyle(s.sheet, cell, cell, s.style); err != nil {
				s.err = err
				return
			}
		}
		if err := s.file.SetCellValue(s.sheet, cell, v); err != nil {
			s.err = fmt.Errorf("writing %s!%s: %w", s.sheet, cell, err)
			return
		}
	}
	s.next++
}
