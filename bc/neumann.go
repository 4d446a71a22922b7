package bc

import (
	"github.com/notargets/gocrust/field"
	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/types"
)

// Neumann applies a time dependent traction on the vertices of a sub-mesh.
// The traction is kept in a buffer over the sub-mesh, one slot per field
// component, and is divided by Scale.
type Neumann struct {
	base
	TimeDependent
	Scale  float64
	names  valueNames
	buffer *field.Field
}

var _ Contributor = (*Neumann)(nil)

func NewNeumann(label string, dof []int, td TimeDependent) *Neumann {
	return &Neumann{
		base:          base{label: label, kind: types.BC_Neumann, dof: append([]int(nil), dof...)},
		TimeDependent: td,
		Scale:         1,
	}
}

func (bc *Neumann) Initialize(f *field.Field, sub *mesh.SubMesh) (err error) {
	if err = bc.setup(f, sub); err != nil {
		return
	}
	bc.names = newValueNames("traction", bc.dof)
	if bc.Scale == 0 {
		bc.Scale = 1
	}
	if bc.buffer, err = field.New(f.Runtime(), bc.label+"-traction", sub, mesh.VertexPoints, f.FiberDim,
		field.WithLabel("traction"), field.WithVectorFieldType(f.VectorType), field.WithScale(bc.Scale)); err != nil {
		return
	}
	return
}

func (bc *Neumann) Buffer() *field.Field { return bc.buffer }

// Update refreshes the traction buffer for time t
func (bc *Neumann) Update(t float64) (err error) {
	if bc.buffer == nil {
		return bc.newError(types.ErrSequence, "not initialized")
	}
	dom := bc.buffer.Domain()
	for _, pt := range bc.points {
		var vals []float64
		if vals, err = bc.value(bc.names, dom.Coordinates(pt), t); err != nil {
			return bc.wrap(err, bc.buffer, t)
		}
		for i, d := range bc.dof {
			if err = bc.buffer.SetComponent(pt, d, vals[i]/bc.Scale); err != nil {
				return bc.wrap(err, bc.buffer, t)
			}
		}
	}
	return
}

func (bc *Neumann) Deallocate() {
	if bc.buffer != nil {
		bc.buffer.Deallocate()
	}
}
