package field

import (
	"fmt"

	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/numerics"
	"github.com/notargets/gocrust/types"
)

/*
Field is a named vector quantity over the vertices or cells of a domain. Each
local point, owned or ghost, has FiberDim value slots in one storage block
drawn from the numerics runtime. Ghost values are refreshed from their owners
by SyncGhosts and are read only through this API.
*/
type Field struct {
	Name       string
	Label      string
	VectorType VectorFieldType
	Kind       mesh.PointKind
	FiberDim   int
	Scale      float64 // Dimensional scale of the values

	rt      *numerics.Runtime
	domain  mesh.Domain
	part    *mesh.Partition
	storage *numerics.Storage
}

type Option func(f *Field)

func WithLabel(label string) Option {
	return func(f *Field) { f.Label = label }
}

func WithVectorFieldType(vt VectorFieldType) Option {
	return func(f *Field) { f.VectorType = vt }
}

func WithScale(scale float64) Option {
	return func(f *Field) { f.Scale = scale }
}

// New allocates a zero filled field
func New(rt *numerics.Runtime, name string, domain mesh.Domain, kind mesh.PointKind,
	fiberDim int, opts ...Option) (f *Field, err error) {
	if err = rt.Ready(); err != nil {
		err = types.Wrap(types.ErrRuntimeNotReady, err, "create field").WithField(name)
		return
	}
	if domain == nil {
		err = types.NewError(types.ErrAllocation, "no domain").WithField(name)
		return
	}
	if fiberDim < 1 {
		err = types.NewError(types.ErrAllocation, "fiber dimension %d", fiberDim).
			WithField(name).WithDomain(domain.Label())
		return
	}
	part := domain.Partition(kind)
	if part == nil {
		err = types.NewError(types.ErrAllocation, "domain has no partition information for %s", kind).
			WithField(name).WithDomain(domain.Label())
		return
	}
	f = &Field{
		Name:     name,
		Label:    name,
		Kind:     kind,
		FiberDim: fiberDim,
		Scale:    1,
		rt:       rt,
		domain:   domain,
		part:     part,
	}
	// Cell data of dimension SpaceDim is as often quadrature samples as a
	// vector, cell vectors are set with WithVectorFieldType
	switch {
	case fiberDim == 1:
		f.VectorType = Scalar
	case fiberDim == domain.SpaceDim() && kind == mesh.VertexPoints:
		f.VectorType = Vector
	default:
		f.VectorType = Other
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.storage, err = rt.Allocate(name, part.NumLocal()*fiberDim); err != nil {
		err = types.Wrap(types.ErrAllocation, err, "allocate").WithField(name).WithDomain(domain.Label())
		return nil, err
	}
	return
}

func (f *Field) Domain() mesh.Domain { return f.domain }

func (f *Field) Partition() *mesh.Partition { return f.part }

func (f *Field) Runtime() *numerics.Runtime { return f.rt }

func (f *Field) NumLocal() int { return f.part.NumLocal() }

func (f *Field) NumOwned() int { return f.part.NumOwned() }

// OwnedPoints are the domain ids of the points this rank owns
func (f *Field) OwnedPoints() []int { return f.part.Owned }

// LocalPoints are the owned points followed by the ghost points
func (f *Field) LocalPoints() []int { return f.part.Points() }

func (f *Field) Allocated() bool { return f.storage != nil && !f.storage.Released() }

func (f *Field) newError(kind error, format string, args ...any) *types.PipelineError {
	return types.NewError(kind, format, args...).WithField(f.Name).WithDomain(f.domain.Label())
}

// checkAllocated guards every access to the storage, which is only valid
// while the field is allocated and the runtime is inside its bracket
func (f *Field) checkAllocated() error {
	if !f.Allocated() {
		return f.newError(types.ErrAllocation, "field has been deallocated")
	}
	if err := f.rt.Ready(); err != nil {
		return types.Wrap(types.ErrRuntimeNotReady, err, "").WithField(f.Name).WithDomain(f.domain.Label())
	}
	return nil
}

func (f *Field) slot(point int, write bool) (offset int, err error) {
	if err = f.checkAllocated(); err != nil {
		return
	}
	slot, ghost, ok := f.part.Slot(point)
	if !ok {
		err = f.newError(types.ErrDomain, "%s point %d is not local to rank %d", f.Kind, point, f.part.Rank)
		return
	}
	if write && ghost {
		err = f.newError(types.ErrDomain, "%s point %d is a ghost owned by another rank", f.Kind, point)
		return
	}
	offset = slot * f.FiberDim
	return
}

// Values returns a copy of the values at a local or ghost point
func (f *Field) Values(point int) (values []float64, err error) {
	var off int
	if off, err = f.slot(point, false); err != nil {
		return
	}
	values = make([]float64, f.FiberDim)
	copy(values, f.storage.Data()[off:off+f.FiberDim])
	return
}

// Set overwrites all components at an owned point
func (f *Field) Set(point int, values []float64) (err error) {
	if len(values) != f.FiberDim {
		return f.newError(types.ErrTypeConflict, "%d values for fiber dimension %d", len(values), f.FiberDim)
	}
	var off int
	if off, err = f.slot(point, true); err != nil {
		return
	}
	copy(f.storage.Data()[off:off+f.FiberDim], values)
	return
}

// SetComponent overwrites one component at an owned point
func (f *Field) SetComponent(point, dof int, value float64) (err error) {
	if dof < 0 || dof >= f.FiberDim {
		return f.newError(types.ErrDomain, "component %d out of range [0,%d)", dof, f.FiberDim)
	}
	var off int
	if off, err = f.slot(point, true); err != nil {
		return
	}
	f.storage.Data()[off+dof] = value
	return
}

// OwnedData is the writable storage of the owned points, in partition order
func (f *Field) OwnedData() (data []float64, err error) {
	if err = f.checkAllocated(); err != nil {
		return
	}
	data = f.storage.Data()[:f.NumOwned()*f.FiberDim]
	return
}

func (f *Field) Zero() (err error) {
	if err = f.checkAllocated(); err != nil {
		return
	}
	clear(f.storage.Data())
	return
}

// CopyFrom copies all local values from a field of identical layout
func (f *Field) CopyFrom(src *Field) (err error) {
	if err = f.checkAllocated(); err != nil {
		return
	}
	if err = src.checkAllocated(); err != nil {
		return
	}
	if src.Kind != f.Kind || src.FiberDim != f.FiberDim || src.NumLocal() != f.NumLocal() {
		return f.newError(types.ErrTypeConflict, "cannot copy %s (%s, fiber %d, %d points)",
			src.Name, src.Kind, src.FiberDim, src.NumLocal())
	}
	copy(f.storage.Data(), src.storage.Data())
	return
}

// Deallocate releases the storage, calling it again does nothing
func (f *Field) Deallocate() {
	if f.storage != nil {
		f.storage.Release()
	}
}

// SyncGhosts publishes owned values and refreshes every ghost from its owner
func (f *Field) SyncGhosts(c *numerics.Comm) (err error) {
	if err = f.checkAllocated(); err != nil {
		return
	}
	owned, err := f.OwnedData()
	if err != nil {
		return
	}
	var (
		allIDs  [][]int
		allVals [][]float64
	)
	if allIDs, err = numerics.Allgather(c, f.part.Owned); err != nil {
		return fmt.Errorf("sync ghosts of %s: %w", f.Name, err)
	}
	if allVals, err = numerics.Allgather(c, owned); err != nil {
		return fmt.Errorf("sync ghosts of %s: %w", f.Name, err)
	}
	if len(f.part.Ghosts) == 0 {
		return
	}
	offsets := make([]map[int]int, c.Size())
	data := f.storage.Data()
	for i, g := range f.part.Ghosts {
		r := f.part.GhostOwners[i]
		if offsets[r] == nil {
			offsets[r] = make(map[int]int, len(allIDs[r]))
			for j, id := range allIDs[r] {
				offsets[r][id] = j
			}
		}
		j, ok := offsets[r][g]
		if !ok {
			return f.newError(types.ErrDomain, "ghost point %d not owned by rank %d", g, r)
		}
		dst := (f.NumOwned() + i) * f.FiberDim
		copy(data[dst:dst+f.FiberDim], allVals[r][j*f.FiberDim:(j+1)*f.FiberDim])
	}
	return
}

// Restrict copies a vertex field of a mesh onto a sub-mesh of that mesh
func (f *Field) Restrict(sub *mesh.SubMesh) (rf *Field, err error) {
	if err = f.checkAllocated(); err != nil {
		return
	}
	if f.Kind != mesh.VertexPoints {
		err = f.newError(types.ErrTypeConflict, "only vertex fields can be restricted")
		return
	}
	if parent, ok := f.domain.(*mesh.Mesh); !ok || sub.Parent() != parent {
		err = f.newError(types.ErrDomain, "%s is not a sub-mesh of the field domain", sub.Label())
		return
	}
	if rf, err = New(f.rt, f.Name, sub, f.Kind, f.FiberDim,
		WithLabel(f.Label), WithVectorFieldType(f.VectorType), WithScale(f.Scale)); err != nil {
		return
	}
	var (
		src = f.storage.Data()
		dst = rf.storage.Data()
	)
	for slot, pt := range rf.part.Points() {
		off, serr := f.slot(pt, false)
		if serr != nil {
			rf.Deallocate()
			return nil, serr
		}
		copy(dst[slot*f.FiberDim:(slot+1)*f.FiberDim], src[off:off+f.FiberDim])
	}
	return
}

func (f *Field) String() string {
	return fmt.Sprintf("Field[%s (%s) on %s]: %s %s, fiber %d, %d owned + %d ghost points, scale %g",
		f.Name, f.Label, f.domain.Label(), f.VectorType, f.Kind, f.FiberDim,
		f.NumOwned(), len(f.part.Ghosts), f.Scale)
}
