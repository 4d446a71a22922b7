package output

import (
	"fmt"
	"log"

	"github.com/notargets/gocrust/field"
	"github.com/notargets/gocrust/filter"
	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/numerics"
	"github.com/notargets/gocrust/types"
)

type State uint8

const (
	Uninitialized State = iota
	Configured
	Writing
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Configured:
		return "Configured"
	case Writing:
		return "Writing"
	case Closed:
		return "Closed"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// FieldSource is where the manager pulls the current fields from,
// field.Fields and field.SolutionFields satisfy it
type FieldSource interface {
	Domain() mesh.Domain
	Runtime() *numerics.Runtime
	Get(name string) (*field.Field, error)
}

// Writer persists the fields of consecutive steps
type Writer interface {
	Open(path string, domain mesh.Domain) error
	WriteField(f *field.Field, t float64, step int) error
	CloseTimeStep() error
	AbortTimeStep()
	Close() error
}

type Config struct {
	Path string
	// Domain to write, the domain of Fields when nil. A sub-mesh of the
	// field mesh writes the vertex fields restricted to that sub-mesh.
	Domain       mesh.Domain
	Fields       FieldSource
	VertexFields []string
	CellFields   []string
	VertexFilter filter.Filter
	CellFilter   filter.Filter
	Writer       Writer
	Skip         int // steps skipped between written steps
	Verbose      bool
}

type Step struct {
	Index int
	Time  float64
}

/*
Manager drives the output of one domain over a run:

	Uninitialized -> Configured   Configure
	Configured    -> Writing      WriteStep
	Writing       -> Writing      WriteStep
	any but Uninitialized -> Closed   Finalize

Step indices must increase strictly and times may not decrease. A step that
fails leaves no output behind and does not count as written.
*/
type Manager struct {
	state   State
	cfg     Config
	sub     *mesh.SubMesh
	calls   int
	last    Step
	hasLast bool
	steps   []Step
}

func NewManager() *Manager { return &Manager{} }

func (m *Manager) State() State { return m.state }

// Steps are the steps written so far
func (m *Manager) Steps() []Step { return append([]Step(nil), m.steps...) }

func (m *Manager) Configure(cfg Config) (err error) {
	if m.state != Uninitialized {
		return types.NewError(types.ErrSequence, "configure in state %s", m.state)
	}
	if cfg.Writer == nil || cfg.Fields == nil {
		return types.NewError(types.ErrSequence, "configure needs a writer and a field source")
	}
	if err = cfg.Fields.Runtime().Ready(); err != nil {
		return types.Wrap(types.ErrRuntimeNotReady, err, "configure output")
	}
	fieldDomain := cfg.Fields.Domain()
	if cfg.Domain == nil {
		cfg.Domain = fieldDomain
	}
	if cfg.Domain != fieldDomain {
		sub, ok := cfg.Domain.(*mesh.SubMesh)
		if !ok || mesh.Domain(sub.Parent()) != fieldDomain {
			return types.NewError(types.ErrDomain, "output domain is not the field domain or one of its sub-meshes").
				WithDomain(cfg.Domain.Label())
		}
		if len(cfg.CellFields) != 0 {
			return types.NewError(types.ErrTypeConflict, "cell fields %v cannot be restricted to a sub-mesh",
				cfg.CellFields).WithDomain(cfg.Domain.Label())
		}
		m.sub = sub
	}
	if err = cfg.Writer.Open(cfg.Path, cfg.Domain); err != nil {
		m.sub = nil
		return
	}
	m.cfg = cfg
	m.state = Configured
	if cfg.Verbose {
		log.Printf("Output of %s to %s: vertex fields %v, cell fields %v",
			cfg.Domain.Label(), cfg.Path, cfg.VertexFields, cfg.CellFields)
	}
	return
}

// WriteStep writes the selected fields as they are now. Any failure aborts
// the step, the writer keeps no partial output.
func (m *Manager) WriteStep(t float64, step int) (err error) {
	defer func() {
		if pe, ok := err.(*types.PipelineError); ok {
			pe.WithStep(step, t)
		}
	}()
	if m.state != Configured && m.state != Writing {
		return types.NewError(types.ErrSequence, "write step in state %s", m.state)
	}
	if err = m.cfg.Fields.Runtime().Ready(); err != nil {
		return types.Wrap(types.ErrRuntimeNotReady, err, "write step")
	}
	if m.hasLast {
		if step <= m.last.Index {
			return types.NewError(types.ErrOrdering, "step %d after step %d", step, m.last.Index)
		}
		if t < m.last.Time {
			return types.NewError(types.ErrOrdering, "time %g before time %g", t, m.last.Time)
		}
	}
	skip := m.calls%(m.cfg.Skip+1) != 0
	if !skip {
		if err = m.writeFields(t, step); err != nil {
			m.cfg.Writer.AbortTimeStep()
			return
		}
		if err = m.cfg.Writer.CloseTimeStep(); err != nil {
			return
		}
		m.steps = append(m.steps, Step{Index: step, Time: t})
		if m.cfg.Verbose {
			log.Printf("Output step %d t=%g on %s", step, t, m.cfg.Domain.Label())
		}
	}
	m.calls++
	m.last, m.hasLast = Step{Index: step, Time: t}, true
	m.state = Writing
	return
}

func (m *Manager) writeFields(t float64, step int) (err error) {
	for _, name := range m.cfg.VertexFields {
		if err = m.writeField(name, mesh.VertexPoints, m.cfg.VertexFilter, t, step); err != nil {
			return
		}
	}
	for _, name := range m.cfg.CellFields {
		if err = m.writeField(name, mesh.CellPoints, m.cfg.CellFilter, t, step); err != nil {
			return
		}
	}
	return
}

func (m *Manager) writeField(name string, kind mesh.PointKind, flt filter.Filter, t float64, step int) (err error) {
	var f *field.Field
	if f, err = m.cfg.Fields.Get(name); err != nil {
		return
	}
	if f.Kind != kind {
		return types.NewError(types.ErrTypeConflict, "selected as %s field but is a %s field", kind, f.Kind).
			WithField(name).WithDomain(f.Domain().Label())
	}
	if m.sub != nil {
		var rf *field.Field
		if rf, err = f.Restrict(m.sub); err != nil {
			return
		}
		defer rf.Deallocate()
		f = rf
	}
	if flt != nil {
		var ff *field.Field
		if ff, err = flt.Filter(f); err != nil {
			return
		}
		defer ff.Deallocate()
		f = ff
	}
	return m.cfg.Writer.WriteField(f, t, step)
}

// Finalize closes the writer. It is terminal, calling it again does nothing.
func (m *Manager) Finalize() (err error) {
	switch m.state {
	case Uninitialized:
		return types.NewError(types.ErrSequence, "finalize before configure")
	case Closed:
		return
	}
	m.state = Closed
	return m.cfg.Writer.Close()
}
