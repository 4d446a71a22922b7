package filter

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/notargets/gocrust/field"
	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/types"
)

// Filter reduces a field before output. The input is never modified, every
// call returns a new field that the caller deallocates. Only owned points are
// computed, ghost values of the result are zero.
type Filter interface {
	Filter(f *field.Field) (*field.Field, error)
}

// VertexNorm replaces each vector of a vertex field by its Euclidean norm
type VertexNorm struct{}

var _ Filter = VertexNorm{}

func (VertexNorm) Filter(f *field.Field) (out *field.Field, err error) {
	if f.Kind != mesh.VertexPoints || f.VectorType != field.Vector {
		err = types.NewError(types.ErrTypeConflict, "vertex norm needs a vertex vector field, have %s %s",
			f.VectorType, f.Kind).WithField(f.Name).WithDomain(f.Domain().Label())
		return
	}
	var in []float64
	if in, err = f.OwnedData(); err != nil {
		return
	}
	if out, err = field.New(f.Runtime(), f.Name, f.Domain(), mesh.VertexPoints, 1,
		field.WithLabel(f.Label), field.WithVectorFieldType(field.Scalar), field.WithScale(f.Scale)); err != nil {
		return
	}
	var (
		data, _ = out.OwnedData()
		nf      = f.FiberDim
	)
	for i := range data {
		data[i] = floats.Norm(in[i*nf:(i+1)*nf], 2)
	}
	return
}

/*
CellAverage averages cell data sampled at NumPoints points per cell, as for
values at quadrature points. The samples of a cell are stored point major:
all components of the first point, then of the second and so on. Without
weights every sample counts the same; Weights gives fixed per point weights
and CellWeights, when set, per cell weights (quadrature weight times
jacobian for a true volume average).
*/
type CellAverage struct {
	NumPoints   int
	Weights     []float64
	CellWeights func(cell int) []float64
}

var _ Filter = (*CellAverage)(nil)

func (ca *CellAverage) Filter(f *field.Field) (out *field.Field, err error) {
	newError := func(format string, args ...any) error {
		return types.NewError(types.ErrTypeConflict, format, args...).
			WithField(f.Name).WithDomain(f.Domain().Label())
	}
	nq := ca.NumPoints
	if nq < 1 {
		nq = 1
	}
	if f.Kind != mesh.CellPoints {
		return nil, newError("cell average needs a cell field, have %s", f.Kind)
	}
	if f.FiberDim%nq != 0 {
		return nil, newError("fiber dimension %d is not a multiple of %d points", f.FiberDim, nq)
	}
	if ca.Weights != nil && len(ca.Weights) != nq {
		return nil, newError("%d weights for %d points", len(ca.Weights), nq)
	}
	var in []float64
	if in, err = f.OwnedData(); err != nil {
		return
	}
	var (
		ncomp = f.FiberDim / nq
		vt    = f.VectorType.SinglePoint()
	)
	switch {
	case ncomp == 1:
		vt = field.Scalar
	case vt == field.Scalar:
		vt = field.Other
	}
	if out, err = field.New(f.Runtime(), f.Name, f.Domain(), mesh.CellPoints, ncomp,
		field.WithLabel(f.Label), field.WithVectorFieldType(vt),
		field.WithScale(f.Scale)); err != nil {
		return
	}
	var (
		data, _ = out.OwnedData()
		samples = make([]float64, nq)
		weights = ca.Weights
	)
	for i, cell := range f.OwnedPoints() {
		if ca.CellWeights != nil {
			if weights = ca.CellWeights(cell); len(weights) != nq {
				out.Deallocate()
				return nil, newError("%d weights for %d points in cell %d", len(weights), nq, cell)
			}
		}
		values := in[i*f.FiberDim : (i+1)*f.FiberDim]
		for j := 0; j < ncomp; j++ {
			for q := 0; q < nq; q++ {
				samples[q] = values[q*ncomp+j]
			}
			data[i*ncomp+j] = stat.Mean(samples, weights)
		}
	}
	return
}
