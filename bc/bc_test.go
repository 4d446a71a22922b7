package bc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gocrust/field"
	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/numerics"
	"github.com/notargets/gocrust/spatialdb"
	"github.com/notargets/gocrust/types"
)

// Two constrained vertices, 1 at (0,1) and 3 at (1,0), with components
// listed in the order {1, 0}
var (
	pointsIn  = []int{1, 3}
	pointsOut = []int{0, 2}
	bcDOF     = []int{1, 0}
)

func newRuntime(t *testing.T) *numerics.Runtime {
	rt := numerics.New(1)
	require.NoError(t, rt.Initialize())
	t.Cleanup(func() { _ = rt.Finalize() })
	return rt
}

func newDisplacement(t *testing.T, rt *numerics.Runtime, m *mesh.Mesh, fill float64) *field.Field {
	f, err := field.New(rt, "displacement", m, mesh.VertexPoints, 2)
	require.NoError(t, err)
	t.Cleanup(f.Deallocate)
	for _, pt := range f.OwnedPoints() {
		require.NoError(t, f.Set(pt, []float64{fill, fill}))
	}
	return f
}

func newDB(t *testing.T, names []string, values [][]float64) *spatialdb.SimpleDB {
	db, err := spatialdb.NewSimpleDB("db", names, [][]float64{{0, 1}, {1, 0}}, values)
	require.NoError(t, err)
	return db
}

func referenceDatabases(t *testing.T) (initial, rate, change *spatialdb.SimpleDB, th *spatialdb.TimeHistory) {
	initial = newDB(t, []string{"displacement-y", "displacement-x"},
		[][]float64{{0.3, 0.4}, {0.7, 0.6}})
	rate = newDB(t, []string{"displacement-rate-y", "displacement-rate-x", "rate-start-time"},
		[][]float64{{-0.2, -0.1, 0.5}, {0.4, 0.3, 0.8}})
	change = newDB(t, []string{"displacement-y", "displacement-x", "change-start-time"},
		[][]float64{{1.3, 1.4, 2.0}, {1.7, 1.6, 2.4}})
	var err error
	th, err = spatialdb.NewTimeHistory("ramp", []float64{0, 10}, []float64{1, 0})
	require.NoError(t, err)
	return
}

// checkValues compares the constrained components, expected is laid out per
// point in bcDOF order, and checks unconstrained points kept fill
func checkValues(t *testing.T, f *field.Field, expected []float64, fill float64) {
	t.Helper()
	for ip, pt := range pointsIn {
		v, err := f.Values(pt)
		require.NoError(t, err)
		for i, d := range bcDOF {
			assert.InDelta(t, expected[ip*len(bcDOF)+i], v[d], 1e-12, "point %d dof %d", pt, d)
		}
	}
	for _, pt := range pointsOut {
		v, err := f.Values(pt)
		require.NoError(t, err)
		assert.Equal(t, []float64{fill, fill}, v, "point %d", pt)
	}
}

func TestTimeDependentValues(t *testing.T) {
	var (
		rt                          = newRuntime(t)
		m                           = mesh.MustDistribute(mesh.Tri3Mesh(), 0, 1)
		initial, rate, change, th   = referenceDatabases(t)
		tValue, tValue2, fill       = 2.2, 2.6, 99.0
	)
	sub, err := m.SubMesh("bc")
	require.NoError(t, err)
	for _, tc := range []struct {
		name          string
		td            TimeDependent
		values, incrs []float64
	}{
		{
			name:   "initial",
			td:     TimeDependent{Initial: initial},
			values: []float64{0.3, 0.4, 0.7, 0.6},
			incrs:  []float64{0, 0, 0, 0},
		},
		{
			name:   "rate",
			td:     TimeDependent{Rate: rate},
			values: []float64{-0.34, -0.17, 0.56, 0.42},
			incrs:  []float64{-0.08, -0.04, 0.16, 0.12},
		},
		{
			name:   "change",
			td:     TimeDependent{Change: change},
			values: []float64{1.3, 1.4, 0, 0},
			incrs:  []float64{0, 0, 1.7, 1.6},
		},
		{
			name:   "change with time history",
			td:     TimeDependent{Change: change, History: th},
			values: []float64{1.3 * 0.98, 1.4 * 0.98, 0, 0},
			incrs:  []float64{1.3 * -0.04, 1.4 * -0.04, 1.7 * 0.98, 1.6 * 0.98},
		},
		{
			name:   "all terms",
			td:     TimeDependent{Initial: initial, Rate: rate, Change: change, History: th},
			values: []float64{0.3 - 0.34 + 1.3*0.98, 0.4 - 0.17 + 1.4*0.98, 0.7 + 0.56, 0.6 + 0.42},
			incrs:  []float64{-0.08 + 1.3*-0.04, -0.04 + 1.4*-0.04, 0.16 + 1.7*0.98, 0.12 + 1.6*0.98},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			bc := NewDirichlet("bc", bcDOF, tc.td)
			f := newDisplacement(t, rt, m, fill)
			require.NoError(t, bc.Initialize(f, sub))
			assert.Equal(t, bcDOF, bc.ConstrainedDOF())
			assert.Equal(t, types.BC_Dirichlet, bc.Kind())

			require.NoError(t, bc.SetField(f, tValue))
			checkValues(t, f, tc.values, fill)

			require.NoError(t, bc.SetFieldIncr(f, tValue, tValue2))
			checkValues(t, f, tc.incrs, fill)
		})
	}
}

func TestDirichletScale(t *testing.T) {
	var (
		rt      = newRuntime(t)
		m       = mesh.MustDistribute(mesh.Tri3Mesh(), 0, 1)
		initial = newDB(t, []string{"displacement-y", "displacement-x"}, [][]float64{{0.3, 0.4}, {0.7, 0.6}})
	)
	sub, err := m.SubMesh("bc")
	require.NoError(t, err)
	f, err := field.New(rt, "displacement", m, mesh.VertexPoints, 2, field.WithScale(2))
	require.NoError(t, err)
	defer f.Deallocate()
	bc := NewDirichlet("bc", bcDOF, TimeDependent{Initial: initial})
	require.NoError(t, bc.Initialize(f, sub))
	require.NoError(t, bc.SetField(f, 0))
	v, _ := f.Values(3)
	assert.InDelta(t, 0.3, v[0], 1e-15)
	assert.InDelta(t, 0.35, v[1], 1e-15)
}

func TestZeroValue(t *testing.T) {
	var (
		rt = newRuntime(t)
		m  = mesh.MustDistribute(mesh.Tri3Mesh(), 0, 1)
		f  = newDisplacement(t, rt, m, 5)
	)
	sub, err := m.SubMesh("bc")
	require.NoError(t, err)
	bc := NewZeroValue("fixed", []int{0})
	assert.Equal(t, types.BC_ZeroValue, bc.Kind())
	require.NoError(t, bc.Initialize(f, sub))
	for _, tt := range []float64{0, 1.5, 100} {
		require.NoError(t, bc.SetField(f, tt))
		for _, pt := range pointsIn {
			v, _ := f.Values(pt)
			assert.Equal(t, []float64{0, 5}, v)
		}
		for _, pt := range pointsOut {
			v, _ := f.Values(pt)
			assert.Equal(t, []float64{5, 5}, v, "point %d is outside the sub-mesh", pt)
		}
	}
	require.NoError(t, bc.SetFieldIncr(f, 0, 1))
	v, _ := f.Values(1)
	assert.Equal(t, []float64{0, 5}, v)
}

func TestDirichletErrors(t *testing.T) {
	var (
		rt = newRuntime(t)
		m  = mesh.MustDistribute(mesh.Tri3Mesh(), 0, 1)
		f  = newDisplacement(t, rt, m, 0)
	)
	sub, err := m.SubMesh("bc")
	require.NoError(t, err)
	{ // Not initialized
		bc := NewZeroValue("z", nil)
		assert.True(t, errors.Is(bc.SetField(f, 0), types.ErrSequence))
	}
	{ // Component out of range, duplicated
		assert.True(t, errors.Is(NewZeroValue("z", []int{2}).Initialize(f, sub), types.ErrDomain))
		assert.True(t, errors.Is(NewZeroValue("z", []int{0, 0}).Initialize(f, sub), types.ErrDomain))
	}
	{ // Cell field, foreign sub-mesh, second initialize
		c, err := field.New(rt, "pressure", m, mesh.CellPoints, 1)
		require.NoError(t, err)
		defer c.Deallocate()
		assert.True(t, errors.Is(NewZeroValue("z", nil).Initialize(c, sub), types.ErrTypeConflict))
		other, err := mesh.MustDistribute(mesh.Tri3Mesh(), 0, 1).SubMesh("bc")
		require.NoError(t, err)
		assert.True(t, errors.Is(NewZeroValue("z", nil).Initialize(f, other), types.ErrDomain))
		bc := NewZeroValue("z", nil)
		require.NoError(t, bc.Initialize(f, sub))
		assert.True(t, errors.Is(bc.Initialize(f, sub), types.ErrSequence))
	}
	{ // Database lookup failure carries the condition context
		db, err := spatialdb.NewUniform("wrong", []string{"velocity-x"}, []float64{1})
		require.NoError(t, err)
		bc := NewDirichlet("top", []int{0}, TimeDependent{Initial: db})
		require.NoError(t, bc.Initialize(f, sub))
		err = bc.SetField(f, 1.5)
		require.True(t, errors.Is(err, types.ErrDatabaseLookup))
		var pe *types.PipelineError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "bc", pe.Domain)
		assert.Equal(t, "displacement", pe.Field)
		assert.True(t, pe.HasTime)
		assert.Equal(t, 1.5, pe.Time)
		assert.Contains(t, err.Error(), "bc top")
	}
	{ // Time history outside its range
		th, err := spatialdb.NewTimeHistory("short", []float64{0, 0.1}, []float64{1, 0})
		require.NoError(t, err)
		_, _, change, _ := referenceDatabases(t)
		bc := NewDirichlet("quake", bcDOF, TimeDependent{Change: change, History: th})
		require.NoError(t, bc.Initialize(f, sub))
		assert.NoError(t, bc.SetField(f, 1.0), "before the change starts")
		assert.True(t, errors.Is(bc.SetField(f, 2.2), types.ErrDatabaseLookup))
	}
}

func TestNeumann(t *testing.T) {
	var (
		rt = newRuntime(t)
		m  = mesh.MustDistribute(mesh.Tri3Mesh(), 0, 1)
		f  = newDisplacement(t, rt, m, 0)
	)
	sub, err := m.SubMesh("bc")
	require.NoError(t, err)
	initial, err := spatialdb.NewUniform("traction", []string{"traction-x", "traction-y"}, []float64{-4, 8})
	require.NoError(t, err)
	rate, err := spatialdb.NewUniform("traction_rate",
		[]string{"traction-rate-x", "traction-rate-y", "rate-start-time"}, []float64{1, 0, 0})
	require.NoError(t, err)
	bc := NewNeumann("load", nil, TimeDependent{Initial: initial, Rate: rate})
	bc.Scale = 4
	assert.True(t, errors.Is(bc.Update(0), types.ErrSequence))
	require.NoError(t, bc.Initialize(f, sub))
	defer bc.Deallocate()
	assert.Equal(t, []int{0, 1}, bc.DOF())
	require.NoError(t, bc.Update(2))
	buf := bc.Buffer()
	assert.Equal(t, sub, buf.Domain())
	assert.Equal(t, 4.0, buf.Scale)
	for _, pt := range pointsIn {
		v, err := buf.Values(pt)
		require.NoError(t, err)
		assert.Equal(t, []float64{-0.5, 2}, v)
	}
	// The solution field is untouched
	for _, pt := range f.OwnedPoints() {
		v, _ := f.Values(pt)
		assert.Equal(t, []float64{0, 0}, v)
	}
}

func TestAbsorbingDampers(t *testing.T) {
	var (
		rt = newRuntime(t)
		m  = mesh.MustDistribute(mesh.RectangleTri(2, 1, 0, 2, 0, 1), 0, 1)
		f  = newDisplacement(t, rt, m, 0)
	)
	mat, err := spatialdb.NewUniform("elastic", []string{"density", "vs", "vp"}, []float64{2500, 3000, 6000})
	require.NoError(t, err)
	{ // Vertical side, normal +x
		sub, err := m.SubMesh("x_pos")
		require.NoError(t, err)
		bc := NewAbsorbingDampers("right", mat)
		require.NoError(t, bc.Initialize(f, sub))
		defer bc.Deallocate()
		_, err = bc.DampingMatrix()
		assert.True(t, errors.Is(err, types.ErrSequence))
		require.NoError(t, bc.Update(0))
		for _, v := range []int{2, 5} {
			assert.InDeltaSlice(t, []float64{1, 0}, bc.Normal(v), 1e-15)
			c, err := bc.Buffer().Values(v)
			require.NoError(t, err)
			assert.InDeltaSlice(t, []float64{2500 * 6000, 2500 * 3000}, c, 1e-6)
		}
		dia, err := bc.DampingMatrix()
		require.NoError(t, err)
		r, c := dia.Dims()
		assert.Equal(t, 12, r)
		assert.Equal(t, 12, c)
		assert.InDelta(t, 0.5*2500*6000, dia.At(4, 4), 1e-6)
		assert.InDelta(t, 0.5*2500*3000, dia.At(5, 5), 1e-6)
		assert.InDelta(t, 0.5*2500*6000, dia.At(10, 10), 1e-6)
		assert.Equal(t, 0.0, dia.At(0, 0))
		assert.Equal(t, 0.0, dia.At(4, 5))
	}
	{ // Bottom side, normal -y, middle vertex gets both edges
		sub, err := m.SubMesh("y_neg")
		require.NoError(t, err)
		bc := NewAbsorbingDampers("bottom", mat)
		require.NoError(t, bc.Initialize(f, sub))
		defer bc.Deallocate()
		require.NoError(t, bc.Update(0))
		assert.InDeltaSlice(t, []float64{0, -1}, bc.Normal(1), 1e-15)
		dia, err := bc.DampingMatrix()
		require.NoError(t, err)
		assert.InDelta(t, 1.0*2500*3000, dia.At(2, 2), 1e-6)
		assert.InDelta(t, 1.0*2500*6000, dia.At(3, 3), 1e-6)
		assert.InDelta(t, 0.5*2500*6000, dia.At(1, 1), 1e-6)
	}
	{ // 3D face
		c := mesh.MustDistribute(mesh.HexCube(), 0, 1)
		u, err := field.New(rt, "displacement", c, mesh.VertexPoints, 3)
		require.NoError(t, err)
		defer u.Deallocate()
		sub, err := c.SubMesh("z_pos")
		require.NoError(t, err)
		bc := NewAbsorbingDampers("top", mat)
		require.NoError(t, bc.Initialize(u, sub))
		defer bc.Deallocate()
		require.NoError(t, bc.Update(0))
		assert.InDeltaSlice(t, []float64{0, 0, 1}, bc.Normal(6), 1e-15)
		dia, err := bc.DampingMatrix()
		require.NoError(t, err)
		assert.InDelta(t, 0.25*2500*6000, dia.At(6*3+2, 6*3+2), 1e-6)
	}
	{ // Bad material and field layout
		sub, err := m.SubMesh("x_pos")
		require.NoError(t, err)
		bad, err := spatialdb.NewUniform("bad", []string{"density", "vs", "vp"}, []float64{-1, 1, 1})
		require.NoError(t, err)
		bc := NewAbsorbingDampers("bad", bad)
		require.NoError(t, bc.Initialize(f, sub))
		defer bc.Deallocate()
		assert.True(t, errors.Is(bc.Update(0), types.ErrDatabaseLookup))
		p, err := field.New(rt, "pressure", m, mesh.VertexPoints, 1)
		require.NoError(t, err)
		defer p.Deallocate()
		assert.True(t, errors.Is(NewAbsorbingDampers("p", mat).Initialize(p, sub), types.ErrTypeConflict))
	}
}
