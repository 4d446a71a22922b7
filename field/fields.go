package field

import (
	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/numerics"
	"github.com/notargets/gocrust/types"
)

// Fields is a named collection of fields over one domain, kept in insertion
// order
type Fields struct {
	rt     *numerics.Runtime
	domain mesh.Domain
	order  []string
	fields map[string]*Field
}

func NewFields(rt *numerics.Runtime, domain mesh.Domain) *Fields {
	return &Fields{
		rt:     rt,
		domain: domain,
		fields: make(map[string]*Field),
	}
}

func (fs *Fields) Domain() mesh.Domain { return fs.domain }

func (fs *Fields) Runtime() *numerics.Runtime { return fs.rt }

// Add creates and stores a new field
func (fs *Fields) Add(name string, kind mesh.PointKind, fiberDim int, opts ...Option) (f *Field, err error) {
	if fs.Has(name) {
		err = types.NewError(types.ErrAllocation, "field already exists").
			WithField(name).WithDomain(fs.domain.Label())
		return
	}
	if f, err = New(fs.rt, name, fs.domain, kind, fiberDim, opts...); err != nil {
		return
	}
	fs.fields[name] = f
	fs.order = append(fs.order, name)
	return
}

func (fs *Fields) Has(name string) bool {
	_, ok := fs.fields[name]
	return ok
}

func (fs *Fields) Get(name string) (f *Field, err error) {
	var ok bool
	if f, ok = fs.fields[name]; !ok {
		err = types.NewError(types.ErrDomain, "no such field").WithField(name).WithDomain(fs.domain.Label())
	}
	return
}

// Delete deallocates and removes a field
func (fs *Fields) Delete(name string) (err error) {
	var f *Field
	if f, err = fs.Get(name); err != nil {
		return
	}
	f.Deallocate()
	delete(fs.fields, name)
	for i, n := range fs.order {
		if n == name {
			fs.order = append(fs.order[:i], fs.order[i+1:]...)
			break
		}
	}
	return
}

// Names returns the field names in insertion order
func (fs *Fields) Names() []string { return append([]string(nil), fs.order...) }

// CopyLayout gives every other field the point kind, fiber dimension and
// vector type of the named field. Values are reset to zero.
func (fs *Fields) CopyLayout(name string) (err error) {
	var src *Field
	if src, err = fs.Get(name); err != nil {
		return
	}
	for _, n := range fs.order {
		if n == name {
			continue
		}
		old := fs.fields[n]
		var f *Field
		if f, err = New(fs.rt, n, fs.domain, src.Kind, src.FiberDim,
			WithLabel(old.Label), WithVectorFieldType(src.VectorType), WithScale(old.Scale)); err != nil {
			return
		}
		old.Deallocate()
		fs.fields[n] = f
	}
	return
}

// Deallocate releases every field, the collection stays usable for lookups
func (fs *Fields) Deallocate() {
	for _, n := range fs.order {
		fs.fields[n].Deallocate()
	}
}

// SolutionFields adds the notion of a current solution and of a rotating
// history of fields (for example the displacement at t+dt, t and t-dt)
type SolutionFields struct {
	*Fields
	solutionName string
	history      []string
}

func NewSolutionFields(rt *numerics.Runtime, domain mesh.Domain) *SolutionFields {
	return &SolutionFields{Fields: NewFields(rt, domain)}
}

func (sf *SolutionFields) SetSolutionName(name string) (err error) {
	if _, err = sf.Get(name); err != nil {
		return
	}
	sf.solutionName = name
	return
}

func (sf *SolutionFields) Solution() (f *Field, err error) {
	if len(sf.solutionName) == 0 {
		err = types.NewError(types.ErrSequence, "solution field name has not been set").
			WithDomain(sf.domain.Label())
		return
	}
	return sf.Get(sf.solutionName)
}

// CreateHistory names the fields that form the history, most recent first
func (sf *SolutionFields) CreateHistory(names []string) (err error) {
	for _, n := range names {
		if _, err = sf.Get(n); err != nil {
			return
		}
	}
	sf.history = append([]string(nil), names...)
	return
}

func (sf *SolutionFields) History() []string { return append([]string(nil), sf.history...) }

// ShiftHistory moves every history field one slot back in time and recycles
// the oldest storage as the newest: history[i] takes the values of
// history[i-1] and history[0] the values of the last entry
func (sf *SolutionFields) ShiftHistory() (err error) {
	for i := len(sf.history) - 1; i > 0; i-- {
		var a, b *Field
		if a, err = sf.Get(sf.history[i]); err != nil {
			return
		}
		if b, err = sf.Get(sf.history[i-1]); err != nil {
			return
		}
		if err = a.checkAllocated(); err != nil {
			return
		}
		if err = b.checkAllocated(); err != nil {
			return
		}
		if a.Kind != b.Kind || a.FiberDim != b.FiberDim {
			return a.newError(types.ErrTypeConflict, "history field %s has a different layout", b.Name)
		}
		if err = a.storage.Swap(b.storage); err != nil {
			return
		}
	}
	return
}
