package spatialdb

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/notargets/gocrust/types"
)

/*
SimpleDB is a scattered point database. A query returns the values stored at
the point nearest to the query position. With MaxDistance set, positions
farther than that from every stored point are outside the support of the
database and fail the lookup.
*/
type SimpleDB struct {
	label       string
	Names       []string
	Points      [][]float64 // [npoints][dim]
	Values      [][]float64 // [npoints][len(Names)]
	MaxDistance float64
	dim         int
	index       map[string]int
	tree        *kdtree.Tree
}

func NewSimpleDB(label string, names []string, points, values [][]float64) (db *SimpleDB, err error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("database %s: no points", label)
	}
	if len(points) != len(values) {
		return nil, fmt.Errorf("database %s: %d points with %d value rows", label, len(points), len(values))
	}
	db = &SimpleDB{
		label:  label,
		Names:  names,
		Points: points,
		Values: values,
		dim:    len(points[0]),
		index:  make(map[string]int, len(names)),
	}
	if db.dim < 1 || db.dim > 3 {
		return nil, fmt.Errorf("database %s: point dimension %d not in [1,3]", label, db.dim)
	}
	for i, name := range names {
		if _, dup := db.index[name]; dup {
			return nil, fmt.Errorf("database %s: duplicate value name %s", label, name)
		}
		db.index[name] = i
	}
	pts := make(dbPoints, len(points))
	for i, p := range points {
		if len(p) != db.dim {
			return nil, fmt.Errorf("database %s: point %d has dimension %d, want %d",
				label, i, len(p), db.dim)
		}
		if len(values[i]) != len(names) {
			return nil, fmt.Errorf("database %s: point %d has %d values, want %d",
				label, i, len(values[i]), len(names))
		}
		pts[i] = dbPoint{x: kdtree.Point(p), index: i}
	}
	db.tree = kdtree.New(pts, false)
	return
}

func (db *SimpleDB) Label() string { return db.label }

func (db *SimpleDB) Dim() int { return db.dim }

func (db *SimpleDB) Query(names []string, x []float64, t float64) (values []float64, err error) {
	if len(x) < db.dim {
		err = types.NewError(types.ErrDatabaseLookup, "database %s: query position %v has dimension %d, want %d",
			db.label, x, len(x), db.dim)
		return
	}
	cols := make([]int, len(names))
	for i, name := range names {
		var ok bool
		if cols[i], ok = db.index[name]; !ok {
			err = types.NewError(types.ErrDatabaseLookup, "database %s has no value %s", db.label, name)
			return
		}
	}
	nearest, dist2 := db.tree.Nearest(dbPoint{x: kdtree.Point(x[:db.dim])})
	if db.MaxDistance > 0 && math.Sqrt(dist2) > db.MaxDistance {
		err = types.NewError(types.ErrDatabaseLookup, "database %s: position %v is %g from the nearest point, outside support %g",
			db.label, x, math.Sqrt(dist2), db.MaxDistance)
		return
	}
	row := db.Values[nearest.(dbPoint).index]
	values = make([]float64, len(names))
	for i, c := range cols {
		values[i] = row[c]
	}
	return
}

// dbPoint is a stored position that remembers its value row
type dbPoint struct {
	x     kdtree.Point
	index int
}

func (p dbPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.x[d] - c.(dbPoint).x[d]
}

func (p dbPoint) Dims() int { return len(p.x) }

func (p dbPoint) Distance(c kdtree.Comparable) float64 {
	return p.x.Distance(c.(dbPoint).x)
}

type dbPoints []dbPoint

func (p dbPoints) Index(i int) kdtree.Comparable { return p[i] }

func (p dbPoints) Len() int { return len(p) }

func (p dbPoints) Pivot(d kdtree.Dim) int {
	return plane{Dim: d, dbPoints: p}.Pivot()
}

func (p dbPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane sorts points along one dimension for pivot selection
type plane struct {
	kdtree.Dim
	dbPoints
}

func (p plane) Less(i, j int) bool {
	return p.dbPoints[i].x[p.Dim] < p.dbPoints[j].x[p.Dim]
}

func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.dbPoints = p.dbPoints[start:end]
	return p
}

func (p plane) Swap(i, j int) {
	p.dbPoints[i], p.dbPoints[j] = p.dbPoints[j], p.dbPoints[i]
}
