package mtr

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// centroid is a region centroid that remembers its record index so a
// nearest-neighbour query can skip the point itself.
type centroid struct {
	r3.Vector
	Index int
}

// Compare implements the kdtree.Comparable interface
func (c centroid) Compare(o kdtree.Comparable, d kdtree.Dim) float64 {
	q := o.(centroid)
	switch d {
	case 0:
		return c.X - q.X
	case 1:
		return c.Y - q.Y
	case 2:
		return c.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (c centroid) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two centroids
func (c centroid) Distance(o kdtree.Comparable) float64 {
	q := o.(centroid)
	return c.Sub(q.Vector).Norm2()
}

// centroids satisfies kdtree.Interface
type centroids []centroid

func (p centroids) Index(i int) kdtree.Comparable         { return p[i] }
func (p centroids) Len() int                              { return len(p) }
func (p centroids) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p centroids) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(centroidPlane{centroids: p, Dim: d}, kdtree.MedianOfRandoms(centroidPlane{centroids: p, Dim: d}, 100))
}

// centroidPlane implements sort.Interface and kdtree.SortSlicer for centroids
type centroidPlane struct {
	centroids
	kdtree.Dim
}

func (p centroidPlane) Less(i, j int) bool {
	return p.centroids[i].Compare(p.centroids[j], p.Dim) < 0
}

func (p centroidPlane) Slice(start, end int) kdtree.SortSlicer {
	return centroidPlane{centroids: p.centroids[start:end], Dim: p.Dim}
}

func (p centroidPlane) Swap(i, j int) {
	p.centroids[i], p.centroids[j] = p.centroids[j], p.centroids[i]
}

// NearestDistances returns, for every point, the distance to the closest
// other point. With fewer than two points every distance is NaN.
func NearestDistances(points []r3.Vector) []float64 {
	out := make([]float64, len(points))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(points) < 2 {
		return out
	}

	data := make(centroids, len(points))
	for i, p := range points {
		data[i] = centroid{Vector: p, Index: i}
	}
	query := make([]centroid, len(data))
	copy(query, data)
	tree := kdtree.New(data, false)

	for _, q := range query {
		keeper := kdtree.NewNKeeper(2)
		tree.NearestSet(keeper, q)
		for _, item := range keeper.Heap {
			if item.Comparable == nil {
				continue
			}
			if item.Comparable.(centroid).Index == q.Index {
				continue
			}
			d := math.Sqrt(item.Dist)
			if math.IsNaN(out[q.Index]) || d < out[q.Index] {
				out[q.Index] = d
			}
		}
	}
	return out
}
