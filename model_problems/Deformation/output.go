package Deformation

import (
	"fmt"

	"github.com/notargets/gocrust/InputParameters"
	"github.com/notargets/gocrust/field"
	"github.com/notargets/gocrust/filter"
	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/meshio"
	"github.com/notargets/gocrust/numerics"
	"github.com/notargets/gocrust/output"
)

func newFilter(name string, cellPoints int) (f filter.Filter, err error) {
	switch name {
	case "":
	case "vertex_norm":
		f = filter.VertexNorm{}
	case "cell_average":
		f = &filter.CellAverage{NumPoints: cellPoints}
	default:
		err = fmt.Errorf("unknown filter %s", name)
	}
	return
}

func (c *Deformation) newOutput(spec InputParameters.OutputSpec, m *mesh.Mesh, fields output.FieldSource,
	comm *numerics.Comm) (om *output.Manager, err error) {
	var domain mesh.Domain = m
	if len(spec.Group) != 0 {
		if domain, err = m.SubMesh(spec.Group); err != nil {
			return
		}
	}
	w := meshio.NewVTKWriter()
	w.Comm = comm
	w.TimeFormat = spec.TimeFormat
	w.Compress = spec.Compress
	w.Verbose = c.Verbose
	if spec.TimeConstant != 0 {
		w.TimeConstant = spec.TimeConstant
	}
	cfg := output.Config{
		Path:         c.resolve(spec.Path),
		Domain:       domain,
		Fields:       fields,
		VertexFields: spec.VertexFields,
		CellFields:   spec.CellFields,
		Writer:       w,
		Skip:         spec.Skip,
		Verbose:      c.Verbose && comm.IsRoot(),
	}
	if cfg.VertexFilter, err = newFilter(spec.VertexFilter, 1); err != nil {
		return
	}
	if cfg.CellFilter, err = newFilter(spec.CellFilter, spec.CellPoints); err != nil {
		return
	}
	om = output.NewManager()
	if err = om.Configure(cfg); err != nil {
		return nil, err
	}
	return
}

var _ output.FieldSource = (*field.SolutionFields)(nil)
