// Package report aggregates MTR records across samples and writes the raw
// CSV table and the summary workbook.
package report

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"microtexture/internal/models"
)

// Tracked metric names. They double as CSV headers and workbook sheet names.
const (
	MetricArea           = "MTR Area, um^2"
	MetricMisalignment   = "MTR Caxis Misalignment, deg"
	MetricMisorientation = "MTR Misorientation, deg"
	MetricSolidity       = "Solidity"
	MetricIntensity      = "MTR Intensity"
	MetricAspectRatio    = "MTR Aspect Ratio"
)

// Metrics lists the tracked metrics in raw table column order.
var Metrics = []string{
	MetricArea,
	MetricMisalignment,
	MetricMisorientation,
	MetricSolidity,
	MetricIntensity,
	MetricAspectRatio,
}

// MetricValue returns the named metric of a record.
func MetricValue(r models.MTRRecord, metric string) float64 {
	switch metric {
	case MetricArea:
		return r.Size
	case MetricMisalignment:
		return r.Misalignment
	case MetricMisorientation:
		return r.Misorientation
	case MetricSolidity:
		return r.Solidity
	case MetricIntensity:
		return r.Intensity
	case MetricAspectRatio:
		return r.AspectRatio
	}
	return math.NaN()
}

// Sample is the output of one processed scan.
type Sample struct {
	// Name keys the sample's groups and scan area, and must be unique
	// within a batch.
	Name            string
	Records         []models.MTRRecord
	ScanAreaMM2     float64
	AlteredFraction float64
}

// Stats are the descriptive statistics of one metric in one group.
type Stats struct {
	Count int
	Mean  float64

	// Std is the sample standard deviation; NaN for a single value.
	Std float64

	Min float64
	Q25 float64
	Q50 float64
	Q75 float64
	Max float64
}

// GroupKey identifies one (sample, class) group.
type GroupKey struct {
	Sample string
	Class  models.Class
}

// Group is the aggregate of one (sample, class) pair.
type Group struct {
	GroupKey

	Count        int
	TotalAreaUM2 float64

	// AreaFraction is the share of the sample's scan area covered by the group.
	AreaFraction float64

	// NumberDensity is Count per mm^2 of scan area.
	NumberDensity float64

	// Metrics maps each tracked metric name to its statistics.
	Metrics map[string]Stats
}

// ScanSummary is the per-sample row of the cleanup summary.
type ScanSummary struct {
	Sample          string
	ScanAreaMM2     float64
	AlteredFraction float64
}

// Summary is the full multi-sample aggregate.
type Summary struct {
	// Groups are ordered by sample, then class.
	Groups []Group

	// Scans are ordered by sample name.
	Scans []ScanSummary

	// Dropped counts records excluded for a non-finite metric or no class.
	Dropped int
}

// Included reports whether a record takes part in the aggregated tables.
func Included(r models.MTRRecord) bool {
	return r.Finite() && r.Class != models.ClassUnknown
}

// Aggregate groups the records of all samples by (sample, class) and
// computes descriptive statistics, area fractions and number densities.
// Records with a non-finite tracked metric or without a class are excluded
// before grouping.
func Aggregate(samples []Sample) *Summary {
	summary := &Summary{}
	scanArea := make(map[string]float64, len(samples))
	grouped := make(map[GroupKey][]models.MTRRecord)

	for _, s := range samples {
		scanArea[s.Name] = s.ScanAreaMM2
		summary.Scans = append(summary.Scans, ScanSummary{
			Sample:          s.Name,
			ScanAreaMM2:     s.ScanAreaMM2,
			AlteredFraction: s.AlteredFraction,
		})
		for _, r := range s.Records {
			if !Included(r) {
				summary.Dropped++
				continue
			}
			key := GroupKey{Sample: s.Name, Class: r.Class}
			grouped[key] = append(grouped[key], r)
		}
	}

	sort.SliceStable(summary.Scans, func(i, j int) bool {
		return summary.Scans[i].Sample < summary.Scans[j].Sample
	})

	keys := make([]GroupKey, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Sample != keys[j].Sample {
			return keys[i].Sample < keys[j].Sample
		}
		return keys[i].Class < keys[j].Class
	})

	for _, k := range keys {
		records := grouped[k]
		g := Group{
			GroupKey: k,
			Count:    len(records),
			Metrics:  make(map[string]Stats, len(Metrics)),
		}
		for _, m := range Metrics {
			values := make([]float64, len(records))
			for i, r := range records {
				values[i] = MetricValue(r, m)
			}
			g.Metrics[m] = Describe(values)
			if m == MetricArea {
				g.TotalAreaUM2 = floats.Sum(values)
			}
		}

		area := scanArea[k.Sample]
		g.AreaFraction = g.TotalAreaUM2 / 1e6 / area
		g.NumberDensity = float64(g.Count) / area
		summary.Groups = append(summary.Groups, g)
	}
	return summary
}

// Describe computes count, mean, sample standard deviation, min, quartiles
// and max. Quartiles interpolate linearly between closest ranks.
func Describe(values []float64) Stats {
	s := Stats{Count: len(values)}
	if len(values) == 0 {
		nan := math.NaN()
		s.Mean, s.Std, s.Min, s.Q25, s.Q50, s.Q75, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	s.Mean = stat.Mean(sorted, nil)
	s.Std = math.NaN()
	if len(sorted) > 1 {
		s.Std = stat.StdDev(sorted, nil)
	}
	s.Min = floats.Min(sorted)
	s.Max = floats.Max(sorted)
	s.Q25 = Quantile(sorted, 0.25)
	s.Q50 = Quantile(sorted, 0.50)
	s.Q75 = Quantile(sorted, 0.75)
	return s
}

// Quantile returns the p-quantile of sorted values using linear
// interpolation at position (n-1)*p.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := float64(n-1) * p
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if hi >= n {
		hi = n - 1
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
