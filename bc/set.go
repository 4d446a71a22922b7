package bc

import (
	"log"

	"github.com/notargets/gocrust/field"
	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/types"
)

type entry struct {
	bc    BoundaryCondition
	group string
	sub   *mesh.SubMesh
}

// Set is the ordered list of boundary conditions of a problem. Conditions are
// applied in the order they were added, so a later constraint wins where two
// constraints overlap.
type Set struct {
	Verbose     bool
	entries     []*entry
	initialized bool
}

func NewSet() *Set { return &Set{} }

// Add attaches a condition to the vertex group of the mesh that carries the
// field given to Initialize
func (s *Set) Add(bc BoundaryCondition, group string) {
	s.entries = append(s.entries, &entry{bc: bc, group: group})
}

func (s *Set) Len() int { return len(s.entries) }

/*
Initialize builds the sub-mesh of every condition and initializes it against
f. A value constraint and a traction on the same vertex component would leave
the problem ill posed and is rejected.
*/
func (s *Set) Initialize(f *field.Field) (err error) {
	if s.initialized {
		return types.NewError(types.ErrSequence, "boundary conditions already initialized").WithField(f.Name)
	}
	m, ok := f.Domain().(*mesh.Mesh)
	if !ok {
		return types.NewError(types.ErrDomain, "boundary conditions need a field over a mesh").
			WithField(f.Name).WithDomain(f.Domain().Label())
	}
	type owner struct {
		label string
		kind  types.BCKind
	}
	var (
		constrained = make(map[[2]int]owner)
		traction    = make(map[[2]int]owner)
	)
	for _, e := range s.entries {
		if e.sub, err = m.SubMesh(e.group); err != nil {
			return types.Wrap(types.ErrDomain, err, "bc %s", e.bc.Label()).WithField(f.Name)
		}
		if err = e.bc.Initialize(f, e.sub); err != nil {
			return
		}
		var (
			kind   = e.bc.Kind()
			points = e.sub.Partition(mesh.VertexPoints).Owned
		)
		for _, pt := range points {
			for _, d := range e.bc.DOF() {
				key := [2]int{pt, d}
				switch {
				case kind.IsConstraint():
					if o, clash := traction[key]; clash {
						return conflictError(f, e, o.label, pt, d)
					}
					constrained[key] = owner{e.bc.Label(), kind}
				case kind == types.BC_Neumann:
					if o, clash := constrained[key]; clash {
						return conflictError(f, e, o.label, pt, d)
					}
					traction[key] = owner{e.bc.Label(), kind}
				}
			}
		}
		if s.Verbose {
			log.Printf("Boundary condition %s (%s) on %s: %d local vertices, components %v",
				e.bc.Label(), e.bc.Kind(), e.group, len(points), e.bc.DOF())
		}
	}
	s.initialized = true
	return
}

func conflictError(f *field.Field, e *entry, other string, pt, dof int) error {
	return types.NewError(types.ErrConflict, "bc %s and bc %s both act on component %d of vertex %d",
		other, e.bc.Label(), dof, pt).WithField(f.Name).WithDomain(e.group)
}

// Apply sets the constrained values of f and refreshes the contributor
// buffers for time t, in list order
func (s *Set) Apply(f *field.Field, t float64) (err error) {
	if !s.initialized {
		return types.NewError(types.ErrSequence, "boundary conditions not initialized").WithField(f.Name)
	}
	for _, e := range s.entries {
		switch bc := e.bc.(type) {
		case Constraint:
			err = bc.SetField(f, t)
		case Contributor:
			err = bc.Update(t)
		}
		if err != nil {
			return
		}
	}
	return
}

// ApplyIncr sets the constrained components of an increment field to the
// change of the boundary values from t0 to t1, contributors are updated to t1
func (s *Set) ApplyIncr(f *field.Field, t0, t1 float64) (err error) {
	if !s.initialized {
		return types.NewError(types.ErrSequence, "boundary conditions not initialized").WithField(f.Name)
	}
	for _, e := range s.entries {
		switch bc := e.bc.(type) {
		case Constraint:
			err = bc.SetFieldIncr(f, t0, t1)
		case Contributor:
			err = bc.Update(t1)
		}
		if err != nil {
			return
		}
	}
	return
}

func (s *Set) Conditions() (bcs []BoundaryCondition) {
	for _, e := range s.entries {
		bcs = append(bcs, e.bc)
	}
	return
}

func (s *Set) Contributors() (cs []Contributor) {
	for _, e := range s.entries {
		if c, ok := e.bc.(Contributor); ok {
			cs = append(cs, c)
		}
	}
	return
}

// Deallocate releases the buffers of every contributor
func (s *Set) Deallocate() {
	for _, c := range s.Contributors() {
		c.Deallocate()
	}
}
