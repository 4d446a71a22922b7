package field

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/numerics"
	"github.com/notargets/gocrust/types"
)

func newRuntime(t *testing.T, np int) *numerics.Runtime {
	rt := numerics.New(np)
	require.NoError(t, rt.Initialize())
	t.Cleanup(func() { _ = rt.Finalize() })
	return rt
}

func TestNewField(t *testing.T) {
	var (
		rt = newRuntime(t, 1)
		m  = mesh.MustDistribute(mesh.Tri3Mesh(), 0, 1)
	)
	{ // Zero filled, default vector type from the fiber dimension
		f, err := New(rt, "displacement", m, mesh.VertexPoints, 2)
		require.NoError(t, err)
		assert.Equal(t, Vector, f.VectorType)
		assert.Equal(t, "displacement", f.Label)
		assert.Equal(t, 1.0, f.Scale)
		for _, pt := range f.LocalPoints() {
			v, err := f.Values(pt)
			require.NoError(t, err)
			assert.Equal(t, []float64{0, 0}, v)
		}
		f.Deallocate()
		p, err := New(rt, "pressure", m, mesh.CellPoints, 1)
		require.NoError(t, err)
		assert.Equal(t, Scalar, p.VectorType)
		assert.Equal(t, []int{0, 1}, p.OwnedPoints())
		p.Deallocate()
		q, err := New(rt, "samples", m, mesh.CellPoints, 2)
		require.NoError(t, err)
		assert.Equal(t, Other, q.VectorType, "cell data of space dimension is not assumed to be a vector")
		q.Deallocate()
		o, err := New(rt, "stress", m, mesh.CellPoints, 3,
			WithVectorFieldType(Tensor), WithLabel("cauchy_stress"), WithScale(4))
		require.NoError(t, err)
		assert.Equal(t, Tensor, o.VectorType)
		assert.Equal(t, "cauchy_stress", o.Label)
		assert.Equal(t, 4.0, o.Scale)
		o.Deallocate()
	}
	{ // Allocation failures
		_, err := New(rt, "u", mesh.Tri3Mesh(), mesh.VertexPoints, 2)
		assert.True(t, errors.Is(err, types.ErrAllocation), "no partition information")
		_, err = New(rt, "u", m, mesh.VertexPoints, 0)
		assert.True(t, errors.Is(err, types.ErrAllocation))
		_, err = New(rt, "u", nil, mesh.VertexPoints, 1)
		assert.True(t, errors.Is(err, types.ErrAllocation))
	}
	{ // Outside the runtime bracket
		_, err := New(numerics.New(1), "u", m, mesh.VertexPoints, 2)
		assert.True(t, errors.Is(err, types.ErrRuntimeNotReady))
		var pe *types.PipelineError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "u", pe.Field)
	}
	assert.Equal(t, 0, rt.Outstanding())
}

func TestFieldAccess(t *testing.T) {
	var (
		rt = newRuntime(t, 1)
		m  = mesh.MustDistribute(mesh.Tri3Mesh(), 0, 1)
	)
	f, err := New(rt, "displacement", m, mesh.VertexPoints, 2)
	require.NoError(t, err)
	{ // Set and read back
		require.NoError(t, f.Set(3, []float64{1.5, -2}))
		require.NoError(t, f.SetComponent(0, 1, 7))
		v, err := f.Values(3)
		require.NoError(t, err)
		assert.Equal(t, []float64{1.5, -2}, v)
		v[0] = 99 // Values returns a copy
		v, _ = f.Values(3)
		assert.Equal(t, 1.5, v[0])
		v, _ = f.Values(0)
		assert.Equal(t, []float64{0, 7}, v)
		data, err := f.OwnedData()
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 7, 0, 0, 0, 0, 1.5, -2}, data)
	}
	{ // Bad points and components
		_, err := f.Values(4)
		assert.True(t, errors.Is(err, types.ErrDomain))
		assert.True(t, errors.Is(f.Set(-1, []float64{0, 0}), types.ErrDomain))
		assert.True(t, errors.Is(f.SetComponent(0, 2, 1), types.ErrDomain))
		assert.True(t, errors.Is(f.Set(0, []float64{1}), types.ErrTypeConflict))
	}
	{ // Copy and zero
		g, err := New(rt, "velocity", m, mesh.VertexPoints, 2)
		require.NoError(t, err)
		require.NoError(t, g.CopyFrom(f))
		v, _ := g.Values(3)
		assert.Equal(t, []float64{1.5, -2}, v)
		require.NoError(t, g.Zero())
		v, _ = g.Values(3)
		assert.Equal(t, []float64{0, 0}, v)
		c, err := New(rt, "pressure", m, mesh.CellPoints, 1)
		require.NoError(t, err)
		assert.True(t, errors.Is(c.CopyFrom(f), types.ErrTypeConflict))
		g.Deallocate()
		c.Deallocate()
	}
	{ // Deallocation is idempotent and ends access
		before := rt.Outstanding()
		f.Deallocate()
		assert.Equal(t, before-1, rt.Outstanding())
		f.Deallocate()
		assert.Equal(t, before-1, rt.Outstanding())
		assert.False(t, f.Allocated())
		_, err := f.Values(0)
		assert.True(t, errors.Is(err, types.ErrAllocation))
		assert.True(t, errors.Is(f.Set(0, []float64{1, 1}), types.ErrAllocation))
		assert.True(t, errors.Is(f.Zero(), types.ErrAllocation))
	}
}

func TestFieldAfterFinalize(t *testing.T) {
	rt := numerics.New(1)
	require.NoError(t, rt.Initialize())
	m := mesh.MustDistribute(mesh.Tri3Mesh(), 0, 1)
	f, err := New(rt, "displacement", m, mesh.VertexPoints, 2)
	require.NoError(t, err)
	require.NoError(t, f.Set(0, []float64{1, 2}))
	assert.True(t, errors.Is(rt.Finalize(), types.ErrAllocation), "unreleased storage is reported")
	{ // Storage is out of reach once the runtime is finalized
		assert.True(t, errors.Is(f.Set(0, []float64{7, 7}), types.ErrRuntimeNotReady))
		assert.True(t, errors.Is(f.SetComponent(0, 0, 7), types.ErrRuntimeNotReady))
		_, err := f.Values(0)
		assert.True(t, errors.Is(err, types.ErrRuntimeNotReady))
		var pe *types.PipelineError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "displacement", pe.Field)
		_, err = f.OwnedData()
		assert.True(t, errors.Is(err, types.ErrRuntimeNotReady))
		assert.True(t, errors.Is(f.Zero(), types.ErrRuntimeNotReady))
	}
	{ // Releasing late still works
		f.Deallocate()
		assert.False(t, f.Allocated())
	}
}

func TestGhostPoints(t *testing.T) {
	NP := 2
	rt := newRuntime(t, NP)
	err := rt.Run(func(c *numerics.Comm) error {
		m, err := mesh.Tri3Mesh().Distribute(c.Rank(), c.Size())
		if err != nil {
			return err
		}
		f, err := New(rt, "displacement", m, mesh.VertexPoints, 2)
		if err != nil {
			return err
		}
		defer f.Deallocate()
		for _, pt := range f.OwnedPoints() {
			if err = f.Set(pt, []float64{float64(10 * pt), float64(10*pt + 1)}); err != nil {
				return err
			}
		}
		if err = f.SyncGhosts(c); err != nil {
			return err
		}
		for _, pt := range f.LocalPoints() {
			v, err := f.Values(pt)
			if err != nil {
				return err
			}
			if v[0] != float64(10*pt) || v[1] != float64(10*pt+1) {
				return fmt.Errorf("rank %d point %d has %v", c.Rank(), pt, v)
			}
		}
		if c.Rank() == 1 {
			// Vertex 2 is a ghost on rank 1
			if err = f.Set(2, []float64{0, 0}); !errors.Is(err, types.ErrDomain) {
				return fmt.Errorf("ghost write gave %v", err)
			}
			if err = f.SetComponent(1, 0, 0); !errors.Is(err, types.ErrDomain) {
				return fmt.Errorf("ghost write gave %v", err)
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, rt.Outstanding())
}

func TestRestrict(t *testing.T) {
	var (
		rt = newRuntime(t, 1)
		m  = mesh.MustDistribute(mesh.Tri3Mesh(), 0, 1)
	)
	f, err := New(rt, "displacement", m, mesh.VertexPoints, 2, WithScale(2))
	require.NoError(t, err)
	defer f.Deallocate()
	for _, pt := range f.OwnedPoints() {
		require.NoError(t, f.Set(pt, []float64{float64(pt), -float64(pt)}))
	}
	sm, err := m.SubMesh("bc")
	require.NoError(t, err)
	rf, err := f.Restrict(sm)
	require.NoError(t, err)
	defer rf.Deallocate()
	assert.Equal(t, sm, rf.Domain())
	assert.Equal(t, 2.0, rf.Scale)
	assert.Equal(t, []int{1, 3}, rf.OwnedPoints())
	v, err := rf.Values(3)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, -3}, v)
	_, err = rf.Values(0)
	assert.True(t, errors.Is(err, types.ErrDomain))

	{ // Sub-mesh of another mesh
		other := mesh.MustDistribute(mesh.Tri3Mesh(), 0, 1)
		osm, err := other.SubMesh("bc")
		require.NoError(t, err)
		_, err = f.Restrict(osm)
		assert.True(t, errors.Is(err, types.ErrDomain))
	}
}

func TestVectorFieldType(t *testing.T) {
	assert.Equal(t, Vector, MultiVector.SinglePoint())
	assert.Equal(t, Other, MultiOther.SinglePoint())
	assert.Equal(t, Tensor, Tensor.SinglePoint())
	assert.True(t, MultiScalar.IsMulti())
	assert.False(t, Other.IsMulti())
	vt, err := ParseVectorFieldType("Multi_Tensor")
	require.NoError(t, err)
	assert.Equal(t, MultiTensor, vt)
	assert.Equal(t, "multi_tensor", vt.String())
	_, err = ParseVectorFieldType("matrix")
	assert.Error(t, err)
}
