package bc

import (
	"fmt"

	"github.com/notargets/gocrust/field"
	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/types"
)

// BoundaryCondition is attached to the sub-mesh of a vertex group. Once
// initialized the set of points and components it acts on is fixed.
type BoundaryCondition interface {
	Label() string
	Kind() types.BCKind
	// DOF lists the field components the condition acts on
	DOF() []int
	Initialize(f *field.Field, sub *mesh.SubMesh) error
}

// Constraint overwrites field values, as Dirichlet and ZeroValue do
type Constraint interface {
	BoundaryCondition
	ConstrainedDOF() []int
	SetField(f *field.Field, t float64) error
	SetFieldIncr(f *field.Field, t0, t1 float64) error
}

// Contributor maintains an auxiliary buffer over its sub-mesh that the solver
// reads, it never writes the solution field
type Contributor interface {
	BoundaryCondition
	Update(t float64) error
	Buffer() *field.Field
	Deallocate()
}

var axisNames = []string{"x", "y", "z"}

func axisName(dof int) string {
	if dof < len(axisNames) {
		return axisNames[dof]
	}
	return fmt.Sprintf("%d", dof)
}

// base holds what every condition knows after Initialize
type base struct {
	label    string
	kind     types.BCKind
	dof      []int
	sub      *mesh.SubMesh
	points   []int // Owned sub-mesh vertices
	fiberDim int
}

func (b *base) Label() string { return b.label }

func (b *base) Kind() types.BCKind { return b.kind }

func (b *base) DOF() []int { return append([]int(nil), b.dof...) }

func (b *base) SubMesh() *mesh.SubMesh { return b.sub }

// Points are the owned sub-mesh vertices the condition acts on
func (b *base) Points() []int { return b.points }

func (b *base) newError(kind error, format string, args ...any) *types.PipelineError {
	e := types.NewError(kind, "bc %s: %s", b.label, fmt.Sprintf(format, args...))
	if b.sub != nil {
		e.WithDomain(b.sub.Label())
	}
	return e
}

func (b *base) wrap(err error, f *field.Field, t float64) error {
	e := types.Wrap(types.ErrDatabaseLookup, err, "bc %s", b.label).WithTime(t)
	if f != nil {
		e.WithField(f.Name)
	}
	if b.sub != nil {
		e.WithDomain(b.sub.Label())
	}
	return e
}

// setup validates the field and sub-mesh pairing, dof defaults to all
// components of the field
func (b *base) setup(f *field.Field, sub *mesh.SubMesh) (err error) {
	if b.sub != nil {
		return b.newError(types.ErrSequence, "already initialized on %s", b.sub.Label())
	}
	if f == nil || sub == nil {
		return b.newError(types.ErrDomain, "missing field or sub-mesh")
	}
	if f.Kind != mesh.VertexPoints {
		return b.newError(types.ErrTypeConflict, "field %s is not a vertex field", f.Name).WithField(f.Name)
	}
	if parent, ok := f.Domain().(*mesh.Mesh); !ok || sub.Parent() != parent {
		return b.newError(types.ErrDomain, "%s is not a sub-mesh of the domain of %s", sub.Label(), f.Name).
			WithField(f.Name)
	}
	part := sub.Partition(mesh.VertexPoints)
	if part == nil {
		return b.newError(types.ErrDomain, "sub-mesh %s has no partition information", sub.Label())
	}
	if len(b.dof) == 0 {
		b.dof = make([]int, f.FiberDim)
		for i := range b.dof {
			b.dof[i] = i
		}
	}
	seen := make(map[int]bool, len(b.dof))
	for _, d := range b.dof {
		if d < 0 || d >= f.FiberDim {
			return b.newError(types.ErrDomain, "component %d out of range for %s with fiber dimension %d",
				d, f.Name, f.FiberDim).WithField(f.Name)
		}
		if seen[d] {
			return b.newError(types.ErrDomain, "component %d listed twice", d)
		}
		seen[d] = true
	}
	b.sub = sub
	b.points = part.Owned
	b.fiberDim = f.FiberDim
	return
}

func (b *base) checkField(f *field.Field) error {
	if b.sub == nil {
		return b.newError(types.ErrSequence, "not initialized")
	}
	if f.FiberDim != b.fiberDim || f.Kind != mesh.VertexPoints {
		return b.newError(types.ErrTypeConflict, "field %s does not match the initialized layout", f.Name).
			WithField(f.Name)
	}
	return nil
}
