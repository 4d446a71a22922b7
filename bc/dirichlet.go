package bc

import (
	"github.com/notargets/gocrust/field"
	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/spatialdb"
	"github.com/notargets/gocrust/types"
)

// Dirichlet prescribes displacement components on the vertices of a sub-mesh
type Dirichlet struct {
	base
	TimeDependent
	names valueNames
}

var _ Constraint = (*Dirichlet)(nil)

// NewDirichlet constrains the listed components, all of them when dof is
// empty
func NewDirichlet(label string, dof []int, td TimeDependent) *Dirichlet {
	return &Dirichlet{
		base:          base{label: label, kind: types.BC_Dirichlet, dof: append([]int(nil), dof...)},
		TimeDependent: td,
	}
}

// NewZeroValue holds the listed components at zero
func NewZeroValue(label string, dof []int) *Dirichlet {
	bc := NewDirichlet(label, dof, TimeDependent{Initial: spatialdb.Zero{}})
	bc.kind = types.BC_ZeroValue
	return bc
}

func (bc *Dirichlet) Initialize(f *field.Field, sub *mesh.SubMesh) (err error) {
	if err = bc.setup(f, sub); err != nil {
		return
	}
	bc.names = newValueNames("displacement", bc.dof)
	return
}

func (bc *Dirichlet) ConstrainedDOF() []int { return bc.DOF() }

// SetField overwrites the constrained components with value(t), in units of
// the field scale
func (bc *Dirichlet) SetField(f *field.Field, t float64) (err error) {
	return bc.apply(f, func(x []float64) ([]float64, error) {
		return bc.value(bc.names, x, t)
	}, t)
}

// SetFieldIncr overwrites the constrained components with value(t1) - value(t0)
func (bc *Dirichlet) SetFieldIncr(f *field.Field, t0, t1 float64) (err error) {
	return bc.apply(f, func(x []float64) ([]float64, error) {
		return bc.increment(bc.names, x, t0, t1)
	}, t1)
}

func (bc *Dirichlet) apply(f *field.Field, eval func(x []float64) ([]float64, error), t float64) (err error) {
	if err = bc.checkField(f); err != nil {
		return
	}
	var (
		dom   = f.Domain()
		scale = f.Scale
	)
	if scale == 0 {
		scale = 1
	}
	for _, pt := range bc.points {
		var vals []float64
		if vals, err = eval(dom.Coordinates(pt)); err != nil {
			return bc.wrap(err, f, t)
		}
		for i, d := range bc.dof {
			if err = f.SetComponent(pt, d, vals[i]/scale); err != nil {
				return bc.wrap(err, f, t)
			}
		}
	}
	return
}
