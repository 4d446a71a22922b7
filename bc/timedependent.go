package bc

import (
	"github.com/notargets/gocrust/spatialdb"
)

const (
	rateStartTime   = "rate-start-time"
	changeStartTime = "change-start-time"
)

/*
TimeDependent composes a boundary value from up to three databases:

	value(x,t) = initial(x)
	           + rate(x)*(t - tRate(x))           for t > tRate(x)
	           + change(x)*A(t - tChange(x))      for t >= tChange(x)

A is the time history amplitude, 1 when History is nil. Any database may be
nil, its term is then zero.
*/
type TimeDependent struct {
	Initial spatialdb.Database
	Rate    spatialdb.Database
	Change  spatialdb.Database
	History *spatialdb.TimeHistory
}

// valueNames are the database value names for each term
type valueNames struct {
	initial, rate, change []string
}

func newValueNames(prefix string, dof []int) (vn valueNames) {
	for _, d := range dof {
		axis := axisName(d)
		vn.initial = append(vn.initial, prefix+"-"+axis)
		vn.rate = append(vn.rate, prefix+"-rate-"+axis)
		vn.change = append(vn.change, prefix+"-"+axis)
	}
	vn.rate = append(vn.rate, rateStartTime)
	vn.change = append(vn.change, changeStartTime)
	return
}

// value evaluates the composition at one position, one value per dof
func (td *TimeDependent) value(vn valueNames, x []float64, t float64) (values []float64, err error) {
	var (
		ndof = len(vn.initial)
		q    []float64
	)
	values = make([]float64, ndof)
	if td.Initial != nil {
		if q, err = td.Initial.Query(vn.initial, x, t); err != nil {
			return nil, err
		}
		for i := range values {
			values[i] += q[i]
		}
	}
	if td.Rate != nil {
		if q, err = td.Rate.Query(vn.rate, x, t); err != nil {
			return nil, err
		}
		if tStart := q[ndof]; t > tStart {
			for i := range values {
				values[i] += q[i] * (t - tStart)
			}
		}
	}
	if td.Change != nil {
		if q, err = td.Change.Query(vn.change, x, t); err != nil {
			return nil, err
		}
		if tStart := q[ndof]; t >= tStart {
			amplitude := 1.0
			if td.History != nil {
				if amplitude, err = td.History.Query(t - tStart); err != nil {
					return nil, err
				}
			}
			for i := range values {
				values[i] += q[i] * amplitude
			}
		}
	}
	return
}

// increment is value(t1) - value(t0)
func (td *TimeDependent) increment(vn valueNames, x []float64, t0, t1 float64) (incr []float64, err error) {
	var v0 []float64
	if v0, err = td.value(vn, x, t0); err != nil {
		return
	}
	if incr, err = td.value(vn, x, t1); err != nil {
		return nil, err
	}
	for i := range incr {
		incr[i] -= v0[i]
	}
	return
}
