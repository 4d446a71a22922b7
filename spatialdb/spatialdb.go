package spatialdb

import (
	"github.com/notargets/gocrust/types"
)

// Database answers value queries at a position and time. Values are returned
// in the order of names.
type Database interface {
	Label() string
	Query(names []string, x []float64, t float64) (values []float64, err error)
}

// Zero returns zero for every name at every position
type Zero struct{}

func (Zero) Label() string { return "zero" }

func (Zero) Query(names []string, x []float64, t float64) (values []float64, err error) {
	return make([]float64, len(names)), nil
}

// Uniform returns the same values everywhere
type Uniform struct {
	label  string
	values map[string]float64
}

func NewUniform(label string, names []string, values []float64) (db *Uniform, err error) {
	if len(names) != len(values) {
		err = types.NewError(types.ErrDatabaseLookup, "%d names for %d values", len(names), len(values)).
			WithDomain(label)
		return
	}
	db = &Uniform{
		label:  label,
		values: make(map[string]float64, len(names)),
	}
	for i, name := range names {
		db.values[name] = values[i]
	}
	return
}

func (db *Uniform) Label() string { return db.label }

func (db *Uniform) Query(names []string, x []float64, t float64) (values []float64, err error) {
	values = make([]float64, len(names))
	for i, name := range names {
		var ok bool
		if values[i], ok = db.values[name]; !ok {
			return nil, types.NewError(types.ErrDatabaseLookup, "database %s has no value %s",
				db.label, name)
		}
	}
	return
}
