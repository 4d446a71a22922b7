package types

import (
	"fmt"
	"strings"
)

//go:generate stringer -type=BCKind

type BCKind uint8

const (
	BC_None BCKind = iota
	BC_Dirichlet
	BC_Neumann
	BC_AbsorbingDampers
	BC_ZeroValue
)

var BCNameMap = map[string]BCKind{
	"dirichlet":              BC_Dirichlet,
	"dirichlettimedependent": BC_Dirichlet,
	"neumann":                BC_Neumann,
	"neuman":                 BC_Neumann,
	"neumanntimedependent":   BC_Neumann,
	"traction":               BC_Neumann,
	"absorbingdampers":       BC_AbsorbingDampers,
	"absorbing":              BC_AbsorbingDampers,
	"damper":                 BC_AbsorbingDampers,
	"zero":                   BC_ZeroValue,
	"zerovalue":              BC_ZeroValue,
}

func (bk BCKind) String() string {
	switch bk {
	case BC_Dirichlet:
		return "Dirichlet"
	case BC_Neumann:
		return "Neumann"
	case BC_AbsorbingDampers:
		return "AbsorbingDampers"
	case BC_ZeroValue:
		return "ZeroValue"
	default:
		return "None"
	}
}

// NewBCKind parses a boundary condition kind from an input deck label, case and
// separator insensitive ("Absorbing-Dampers", "zero_value", ...)
func NewBCKind(label string) (bk BCKind, err error) {
	var (
		ok  bool
		key = strings.ToLower(strings.TrimSpace(label))
	)
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	if bk, ok = BCNameMap[key]; !ok {
		err = fmt.Errorf("unknown boundary condition kind [%s]", label)
	}
	return
}

// IsConstraint reports whether the kind overwrites field values rather than
// contributing an auxiliary term to the solver
func (bk BCKind) IsConstraint() bool {
	return bk == BC_Dirichlet || bk == BC_ZeroValue
}
