package regionprops

import (
	"math"
	"sort"
)

const hullEps = 1e-9

type point struct {
	X, Y float64
}

// cross returns the z component of (a-o) x (b-o). Positive is a left turn.
func cross(o, a, b point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// convexHull returns the hull vertices in counter-clockwise order using the
// monotone chain algorithm. Collinear points are dropped.
func convexHull(points []point) []point {
	if len(points) < 3 {
		return points
	}

	pts := make([]point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	hull := make([]point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// pixelsInHull counts the integer pixel centres inside or on the hull for
// rows minY..maxY.
func pixelsInHull(hull []point, minY, maxY int) int {
	count := 0
	for y := minY; y <= maxY; y++ {
		lo, hi, ok := rowExtent(hull, float64(y))
		if !ok {
			continue
		}
		first := int(math.Ceil(lo - hullEps))
		last := int(math.Floor(hi + hullEps))
		if last >= first {
			count += last - first + 1
		}
	}
	return count
}

// rowExtent intersects the horizontal line at y with the hull boundary.
func rowExtent(hull []point, y float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	n := len(hull)
	for i := 0; i < n; i++ {
		a, b := hull[i], hull[(i+1)%n]
		if (a.Y-y)*(b.Y-y) > 0 {
			continue
		}
		if a.Y == b.Y {
			lo = math.Min(lo, math.Min(a.X, b.X))
			hi = math.Max(hi, math.Max(a.X, b.X))
			continue
		}
		x := a.X + (y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi, lo <= hi
}
