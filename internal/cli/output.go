package cli

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"text/tabwriter"
	"time"

	"microtexture/internal/fsutil"
	"microtexture/pkg/pipeline"
	"microtexture/pkg/report"
)

func printParams(w io.Writer, p *pipeline.Params, template, runner string) {
	fmt.Fprintln(w, "Parsed Inputs:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]interface{}{
		{"input_file", p.InputFile},
		{"extension", p.Extension},
		{"basename", p.Basename},
		{"output_dir", p.OutputDir},
		{"json_path", p.JSONPath()},
		{"pipeline_template", template},
		{"pipeline_runner", runner},
		{"stress_axis", p.StressAxis},
		{"min_mtr_size", p.MinMTRSize},
		{"caxis_misalignment", p.CAxisMisalignment},
	}
	if p.Extension == "ang" {
		rows = append(rows,
			[2]interface{}{"ci_mask_threshold", p.CIMaskThreshold},
			[2]interface{}{"iq_mask_threshold", p.IQMaskThreshold},
			[2]interface{}{"ci_primary_threshold", p.CIPrimaryThreshold},
			[2]interface{}{"ci_secondary_threshold", p.CISecondaryThreshold})
	} else {
		rows = append(rows,
			[2]interface{}{"error_mask_threshold", p.ErrorMaskThreshold},
			[2]interface{}{"bc_primary_threshold", p.BCPrimaryThreshold},
			[2]interface{}{"bc_secondary_threshold", p.BCSecondaryThreshold})
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "\t%s:\t%v\n", r[0], r[1])
	}
	tw.Flush()
}

// printSummary prints the per-sample area fractions the way the workbook
// lists them, followed by the output locations.
func printSummary(w io.Writer, s *report.Summary, outputDir string, elapsed time.Duration) {
	fmt.Fprintf(w, "\nAnalysis completed in %.2f seconds\n", elapsed.Seconds())
	fmt.Fprintln(w, "================================")

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Sample\tClass\tCount\tArea fraction\tDensity (1/mm^2)\t")
	for _, g := range s.Groups {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t\n", g.Sample, g.Class, g.Count, num(g.AreaFraction), num(g.NumberDensity))
	}
	tw.Flush()

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Sample\tScan area (mm^2)\tAltered by cleanup\t")
	for _, sc := range s.Scans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", sc.Sample, num(sc.ScanAreaMM2), num(sc.AlteredFraction))
	}
	tw.Flush()

	if s.Dropped > 0 {
		fmt.Fprintf(w, "\n%d MTR(s) with non-finite metrics excluded from the statistics\n", s.Dropped)
	}
	fmt.Fprintf(w, "\nRaw data: %s\n", filepath.Join(outputDir, fsutil.RawDataCSV))
	fmt.Fprintf(w, "Summary:  %s\n", filepath.Join(outputDir, fsutil.SummaryWorkbook))
}

func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}
