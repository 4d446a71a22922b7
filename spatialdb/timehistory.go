package spatialdb

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/notargets/gocrust/types"
)

// TimeHistory is a piecewise linear amplitude function of time
type TimeHistory struct {
	Label      string    `yaml:"label,omitempty"`
	Times      []float64 `yaml:"times"`
	Amplitudes []float64 `yaml:"amplitudes"`
}

func NewTimeHistory(label string, times, amplitudes []float64) (th *TimeHistory, err error) {
	th = &TimeHistory{Label: label, Times: times, Amplitudes: amplitudes}
	if err = th.validate(); err != nil {
		return nil, err
	}
	return
}

func LoadTimeHistory(filename string) (th *TimeHistory, err error) {
	var data []byte
	if data, err = os.ReadFile(filename); err != nil {
		return nil, fmt.Errorf("failed to read time history: %w", err)
	}
	th = &TimeHistory{}
	if err = yaml.Unmarshal(data, th); err != nil {
		return nil, fmt.Errorf("failed to parse time history %s: %w", filename, err)
	}
	if len(th.Label) == 0 {
		th.Label = labelFromFile(filename)
	}
	if err = th.validate(); err != nil {
		return nil, err
	}
	return
}

func (th *TimeHistory) validate() error {
	if len(th.Times) == 0 || len(th.Times) != len(th.Amplitudes) {
		return fmt.Errorf("time history %s: %d times with %d amplitudes",
			th.Label, len(th.Times), len(th.Amplitudes))
	}
	for i := 1; i < len(th.Times); i++ {
		if th.Times[i] <= th.Times[i-1] {
			return fmt.Errorf("time history %s: times not strictly increasing at %d", th.Label, i)
		}
	}
	return nil
}

// Query interpolates the amplitude at t, times outside the table fail
func (th *TimeHistory) Query(t float64) (amplitude float64, err error) {
	var (
		n     = len(th.Times)
		tol   = 1.0e-12 * (1 + math.Abs(th.Times[n-1]))
		first = th.Times[0]
		last  = th.Times[n-1]
	)
	if t < first-tol || t > last+tol {
		err = types.NewError(types.ErrDatabaseLookup, "time history %s: t=%g outside [%g,%g]",
			th.Label, t, first, last)
		return
	}
	if n == 1 || t <= first {
		return th.Amplitudes[0], nil
	}
	if t >= last {
		return th.Amplitudes[n-1], nil
	}
	i := sort.SearchFloat64s(th.Times, t)
	if th.Times[i] == t {
		return th.Amplitudes[i], nil
	}
	var (
		t0, t1 = th.Times[i-1], th.Times[i]
		a0, a1 = th.Amplitudes[i-1], th.Amplitudes[i]
	)
	amplitude = a0 + (a1-a0)*(t-t0)/(t1-t0)
	return
}

