// Package regionprops measures shape descriptors of labelled regions in a
// feature id raster.
//
// A region is the set of all pixels sharing one positive label. Labels are
// produced upstream by the reconstruction tool and are not re-segmented here,
// so a label split into several islands is still measured as one region.
package regionprops

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"microtexture/internal/models"
)

// Property names a per-region shape descriptor.
type Property int

const (
	Solidity Property = iota
	MinorAxisLength
	MajorAxisLength
	Area
)

func (p Property) String() string {
	switch p {
	case Solidity:
		return "solidity"
	case MinorAxisLength:
		return "minor_axis_length"
	case MajorAxisLength:
		return "major_axis_length"
	case Area:
		return "area"
	}
	return fmt.Sprintf("Property(%d)", int(p))
}

// ParseProperty looks up a property by its snake_case name.
func ParseProperty(name string) (Property, error) {
	for _, p := range []Property{Solidity, MinorAxisLength, MajorAxisLength, Area} {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown region property %q", name)
}

// Region holds the descriptors of one labelled region.
type Region struct {
	Label int32

	// Area is the pixel count.
	Area int

	// CentroidX and CentroidY are in pixel coordinates.
	CentroidX, CentroidY float64

	// ConvexArea is the number of pixels whose centres lie in the convex hull.
	ConvexArea int

	Solidity float64

	// MajorAxisLength and MinorAxisLength are the axes of the ellipse with the
	// same second central moments. NaN for single-pixel regions.
	MajorAxisLength float64
	MinorAxisLength float64
}

// Value returns the named descriptor.
func (r Region) Value(p Property) float64 {
	switch p {
	case Solidity:
		return r.Solidity
	case MinorAxisLength:
		return r.MinorAxisLength
	case MajorAxisLength:
		return r.MajorAxisLength
	case Area:
		return float64(r.Area)
	}
	return math.NaN()
}

// accumulator gathers per-label pixel statistics while scanning the raster.
type accumulator struct {
	count      int
	sumX, sumY float64
	minY, maxY int
	minX, maxX int
}

// RegionProperties computes one descriptor for every positive label.
func RegionProperties(labels models.LabelMap, prop Property) map[int32]float64 {
	regions := Measure(labels)
	out := make(map[int32]float64, len(regions))
	for label, r := range regions {
		out[label] = r.Value(prop)
	}
	return out
}

// Labels returns the distinct positive labels in ascending order.
func Labels(labels models.LabelMap) []int32 {
	seen := make(map[int32]struct{})
	for _, l := range labels.Labels {
		if l > 0 {
			seen[l] = struct{}{}
		}
	}
	out := make([]int32, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Measure computes every descriptor for every positive label using two
// passes over the raster.
func Measure(labels models.LabelMap) map[int32]Region {
	acc := make(map[int32]*accumulator)
	w := labels.Width

	for i, l := range labels.Labels {
		if l <= 0 {
			continue
		}
		x, y := i%w, i/w
		a, ok := acc[l]
		if !ok {
			a = &accumulator{minX: x, maxX: x, minY: y, maxY: y}
			acc[l] = a
		}
		a.count++
		a.sumX += float64(x)
		a.sumY += float64(y)
		if x < a.minX {
			a.minX = x
		}
		if x > a.maxX {
			a.maxX = x
		}
		if y < a.minY {
			a.minY = y
		}
		if y > a.maxY {
			a.maxY = y
		}
	}

	// Second pass: central moments and the horizontal extent of each row,
	// which is all the convex hull needs.
	type rowSpan struct{ lo, hi int }
	moments := make(map[int32]*[3]float64, len(acc))
	spans := make(map[int32][]rowSpan, len(acc))
	for l, a := range acc {
		moments[l] = &[3]float64{}
		rows := make([]rowSpan, a.maxY-a.minY+1)
		for j := range rows {
			rows[j] = rowSpan{lo: math.MaxInt, hi: math.MinInt}
		}
		spans[l] = rows
	}
	for i, l := range labels.Labels {
		if l <= 0 {
			continue
		}
		a := acc[l]
		x, y := i%w, i/w
		dx := float64(x) - a.sumX/float64(a.count)
		dy := float64(y) - a.sumY/float64(a.count)
		m := moments[l]
		m[0] += dx * dx
		m[1] += dy * dy
		m[2] += dx * dy

		row := &spans[l][y-a.minY]
		if x < row.lo {
			row.lo = x
		}
		if x > row.hi {
			row.hi = x
		}
	}

	regions := make(map[int32]Region, len(acc))
	for l, a := range acc {
		n := float64(a.count)
		r := Region{
			Label:     l,
			Area:      a.count,
			CentroidX: a.sumX / n,
			CentroidY: a.sumY / n,
		}

		m := moments[l]
		r.MajorAxisLength, r.MinorAxisLength = axisLengths(m[0]/n, m[1]/n, m[2]/n)
		if a.count == 1 {
			r.MajorAxisLength, r.MinorAxisLength = math.NaN(), math.NaN()
		}

		// Each pixel contributes the midpoints of its four edges, so the hull
		// of a single pixel is a unit diamond.
		var pts []point
		for j, s := range spans[l] {
			if s.lo > s.hi {
				continue
			}
			y := float64(a.minY + j)
			lo, hi := float64(s.lo), float64(s.hi)
			pts = append(pts,
				point{lo - 0.5, y}, point{hi + 0.5, y},
				point{lo, y - 0.5}, point{lo, y + 0.5},
				point{hi, y - 0.5}, point{hi, y + 0.5},
			)
		}
		hull := convexHull(pts)
		r.ConvexArea = pixelsInHull(hull, a.minY, a.maxY)
		r.Solidity = float64(a.count) / float64(r.ConvexArea)

		regions[l] = r
	}
	return regions
}

// axisLengths returns 4*sqrt of the eigenvalues of the normalised inertia
// tensor, largest first.
func axisLengths(varX, varY, covXY float64) (major, minor float64) {
	var eig mat.EigenSym
	if ok := eig.Factorize(mat.NewSymDense(2, []float64{varX, covXY, covXY, varY}), false); !ok {
		return math.NaN(), math.NaN()
	}
	vals := eig.Values(nil)
	lo, hi := math.Max(vals[0], 0), math.Max(vals[1], 0)
	return 4 * math.Sqrt(hi), 4 * math.Sqrt(lo)
}
