package Deformation

import (
	"fmt"

	"github.com/notargets/gocrust/InputParameters"
	"github.com/notargets/gocrust/bc"
	"github.com/notargets/gocrust/spatialdb"
	"github.com/notargets/gocrust/types"
)

func (c *Deformation) database(name string) spatialdb.Database {
	if db, ok := c.databases[name]; ok {
		return db
	}
	return nil
}

func (c *Deformation) newBC(spec InputParameters.BCSpec) (b bc.BoundaryCondition, err error) {
	var kind types.BCKind
	if kind, err = types.NewBCKind(spec.Kind); err != nil {
		return nil, fmt.Errorf("bc %s: %w", spec.Label, err)
	}
	td := bc.TimeDependent{
		Initial: c.database(spec.Initial),
		Rate:    c.database(spec.Rate),
		Change:  c.database(spec.Change),
		History: c.histories[spec.TimeHistory],
	}
	switch kind {
	case types.BC_Dirichlet:
		b = bc.NewDirichlet(spec.Label, spec.DOF, td)
	case types.BC_ZeroValue:
		b = bc.NewZeroValue(spec.Label, spec.DOF)
	case types.BC_Neumann:
		nm := bc.NewNeumann(spec.Label, spec.DOF, td)
		if spec.Scale != 0 {
			nm.Scale = spec.Scale
		}
		b = nm
	case types.BC_AbsorbingDampers:
		material := c.database(spec.Material)
		if material == nil {
			return nil, fmt.Errorf("bc %s: absorbing dampers need a Material database", spec.Label)
		}
		b = bc.NewAbsorbingDampers(spec.Label, material)
	default:
		return nil, fmt.Errorf("bc %s: unsupported kind %s", spec.Label, kind)
	}
	return
}
