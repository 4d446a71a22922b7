package output

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gocrust/field"
	"github.com/notargets/gocrust/filter"
	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/meshio"
	"github.com/notargets/gocrust/numerics"
	"github.com/notargets/gocrust/types"
)

type fixture struct {
	m      *mesh.Mesh
	fields *field.Fields
	dir    string
}

func newFixture(t *testing.T) (fx *fixture) {
	rt := numerics.New(1)
	require.NoError(t, rt.Initialize())
	fx = &fixture{
		m:   mesh.MustDistribute(mesh.Tri3Mesh(), 0, 1),
		dir: t.TempDir(),
	}
	fx.fields = field.NewFields(rt, fx.m)
	t.Cleanup(func() {
		fx.fields.Deallocate()
		assert.Equal(t, 0, rt.Outstanding(), "leaked storage")
		_ = rt.Finalize()
	})
	disp, err := fx.fields.Add("displacement", mesh.VertexPoints, 2)
	require.NoError(t, err)
	for v := 0; v < 4; v++ {
		require.NoError(t, disp.Set(v, []float64{3 * float64(v), 4 * float64(v)}))
	}
	stress, err := fx.fields.Add("stress", mesh.CellPoints, 2, field.WithVectorFieldType(field.MultiScalar))
	require.NoError(t, err)
	require.NoError(t, stress.Set(0, []float64{1, 3}))
	require.NoError(t, stress.Set(1, []float64{2, 6}))
	return
}

func (fx *fixture) config(name string) Config {
	return Config{
		Path:         filepath.Join(fx.dir, name),
		Fields:       fx.fields,
		VertexFields: []string{"displacement"},
		Writer:       meshio.NewVTKWriter(),
	}
}

func (fx *fixture) read(t *testing.T, name string) string {
	b, err := os.ReadFile(filepath.Join(fx.dir, name))
	require.NoError(t, err)
	return string(b)
}

func TestManagerStates(t *testing.T) {
	fx := newFixture(t)
	{ // Nothing works before configure
		om := NewManager()
		assert.Equal(t, Uninitialized, om.State())
		assert.True(t, errors.Is(om.WriteStep(0, 0), types.ErrSequence))
		assert.True(t, errors.Is(om.Finalize(), types.ErrSequence))
		assert.True(t, errors.Is(om.Configure(Config{}), types.ErrSequence))
		assert.Equal(t, Uninitialized, om.State())
	}
	{ // Configured, writing, closed
		om := NewManager()
		require.NoError(t, om.Configure(fx.config("states")))
		assert.Equal(t, Configured, om.State())
		assert.True(t, errors.Is(om.Configure(fx.config("again")), types.ErrSequence))
		require.NoError(t, om.WriteStep(0, 0))
		assert.Equal(t, Writing, om.State())
		require.NoError(t, om.Finalize())
		assert.Equal(t, Closed, om.State())
		err := om.WriteStep(1, 1)
		assert.True(t, errors.Is(err, types.ErrSequence))
		var pe *types.PipelineError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, 1, pe.Step)
		require.NoError(t, om.Finalize())
		assert.Equal(t, "Closed", om.State().String())
	}
	{ // Finalize right after configure
		om := NewManager()
		require.NoError(t, om.Configure(fx.config("empty")))
		require.NoError(t, om.Finalize())
		assert.Empty(t, om.Steps())
	}
}

func TestManagerOrdering(t *testing.T) {
	fx := newFixture(t)
	om := NewManager()
	require.NoError(t, om.Configure(fx.config("order")))
	defer om.Finalize()
	{ // Step indices 0, 1, 1
		require.NoError(t, om.WriteStep(0, 0))
		require.NoError(t, om.WriteStep(0.5, 1))
		err := om.WriteStep(1, 1)
		assert.True(t, errors.Is(err, types.ErrOrdering))
	}
	{ // Time going backwards
		assert.True(t, errors.Is(om.WriteStep(0.25, 2), types.ErrOrdering))
		require.NoError(t, om.WriteStep(0.5, 2))
	}
	assert.Equal(t, []Step{{0, 0}, {1, 0.5}, {2, 0.5}}, om.Steps())
	for _, name := range []string{"order_000000.vtk", "order_000001.vtk", "order_000002.vtk"} {
		assert.FileExists(t, filepath.Join(fx.dir, name))
	}
}

func TestManagerFailedStep(t *testing.T) {
	fx := newFixture(t)
	om := NewManager()
	cfg := fx.config("fail")
	cfg.VertexFields = []string{"displacement", "missing"}
	require.NoError(t, om.Configure(cfg))
	defer om.Finalize()
	err := om.WriteStep(0, 0)
	assert.True(t, errors.Is(err, types.ErrDomain))
	var pe *types.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 0, pe.Step)
	assert.True(t, pe.HasTime)
	entries, err := os.ReadDir(fx.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, om.Steps())
	assert.Equal(t, Configured, om.State())
	{ // A cell field selected as vertex field
		om := NewManager()
		cfg := fx.config("kind")
		cfg.VertexFields = []string{"stress"}
		require.NoError(t, om.Configure(cfg))
		assert.True(t, errors.Is(om.WriteStep(0, 0), types.ErrTypeConflict))
		require.NoError(t, om.Finalize())
	}
}

func TestManagerFilters(t *testing.T) {
	fx := newFixture(t)
	om := NewManager()
	cfg := fx.config("filtered")
	cfg.CellFields = []string{"stress"}
	cfg.VertexFilter = filter.VertexNorm{}
	cfg.CellFilter = &filter.CellAverage{NumPoints: 2}
	require.NoError(t, om.Configure(cfg))
	require.NoError(t, om.WriteStep(1, 7))
	require.NoError(t, om.Finalize())
	content := fx.read(t, "filtered_000007.vtk")
	assert.Contains(t, content, "POINT_DATA 4\nSCALARS displacement double 1\nLOOKUP_TABLE default\n0\n5\n10\n15\n")
	assert.Contains(t, content, "CELL_DATA 2\nSCALARS stress double 1\nLOOKUP_TABLE default\n2\n4\n")
}

func TestManagerSubMesh(t *testing.T) {
	fx := newFixture(t)
	sub, err := fx.m.SubMesh("bc")
	require.NoError(t, err)
	om := NewManager()
	cfg := fx.config("bc")
	cfg.Domain = sub
	cfg.Skip = 1
	require.NoError(t, om.Configure(cfg))
	for step := 0; step < 4; step++ {
		require.NoError(t, om.WriteStep(float64(step), step))
	}
	require.NoError(t, om.Finalize())
	assert.Equal(t, []Step{{0, 0}, {2, 2}}, om.Steps())
	assert.NoFileExists(t, filepath.Join(fx.dir, "bc_000001.vtk"))
	assert.Equal(t, `# vtk DataFile Version 2.0
bc t=2 step=2
ASCII
DATASET UNSTRUCTURED_GRID
POINTS 2 double
0 1 0
1 0 0
CELLS 1 3
2 0 1
CELL_TYPES 1
3
POINT_DATA 2
VECTORS displacement double
3 4 0
9 12 0
`, fx.read(t, "bc_000002.vtk"))
	{ // Cell fields have no restriction to a sub-mesh
		om := NewManager()
		cfg := fx.config("bc_cells")
		cfg.Domain = sub
		cfg.CellFields = []string{"stress"}
		assert.True(t, errors.Is(om.Configure(cfg), types.ErrTypeConflict))
		assert.Equal(t, Uninitialized, om.State())
	}
	{ // A domain unrelated to the fields
		om := NewManager()
		cfg := fx.config("other")
		other, err := mesh.MustDistribute(mesh.Tri3Mesh(), 0, 1).SubMesh("bc")
		require.NoError(t, err)
		cfg.Domain = other
		assert.True(t, errors.Is(om.Configure(cfg), types.ErrDomain))
	}
}

func TestManagerAfterRuntimeFinalize(t *testing.T) {
	fx := newFixture(t)
	om := NewManager()
	require.NoError(t, om.Configure(fx.config("late")))
	require.NoError(t, om.WriteStep(0, 0))
	assert.True(t, errors.Is(fx.fields.Runtime().Finalize(), types.ErrAllocation))
	err := om.WriteStep(1, 1)
	assert.True(t, errors.Is(err, types.ErrRuntimeNotReady))
	var pe *types.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.Step)
	assert.Equal(t, []Step{{0, 0}}, om.Steps())
	assert.NoFileExists(t, filepath.Join(fx.dir, "late_000001.vtk"))
	require.NoError(t, om.Finalize())
	assert.True(t, errors.Is(NewManager().Configure(fx.config("after")), types.ErrRuntimeNotReady))
}
