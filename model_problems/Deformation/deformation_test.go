package Deformation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gocrust/InputParameters"
	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/spatialdb"
)

const deck = `
Title: rectangle
MeshFile: rect.yaml
StartTime: 0
TimeStep: 0.5
FinalTime: 1.5
Databases:
  rate:
    Values:
      displacement-rate-x: 1
      rate-start-time: 0
  material:
    File: material.spatialdb
BCs:
  - Label: push
    Kind: Dirichlet
    Group: y_neg
    DOF: [0]
    Rate: rate
  - Label: fixed
    Kind: ZeroValue
    Group: y_pos
    DOF: [1]
  - Label: boundary
    Kind: AbsorbingDampers
    Group: y_neg
    Material: material
Output:
  - Path: out/rect
    VertexFields: [displacement, velocity]
    CellFields: [material_id]
  - Path: out/bottom
    Group: y_neg
    VertexFields: [displacement]
    VertexFilter: vertex_norm
    TimeFormat: "%3.1f"
`

func writeProblem(t *testing.T) (dir string, ip *InputParameters.Pipeline) {
	dir = t.TempDir()
	require.NoError(t, mesh.RectangleTri(2, 1, 0, 2, 0, 1).WriteASCII(filepath.Join(dir, "rect.yaml")))
	material, err := spatialdb.NewSimpleDB("material", []string{"density", "vp", "vs"},
		[][]float64{{0, 0}, {2, 0}, {0, 1}, {2, 1}},
		[][]float64{{2, 3, 1}, {2, 3, 1}, {2, 3, 1}, {2, 3, 1}})
	require.NoError(t, err)
	require.NoError(t, material.SaveYAML(filepath.Join(dir, "material.spatialdb")))
	ip = &InputParameters.Pipeline{}
	require.NoError(t, ip.Parse([]byte(deck)))
	return
}

func run(t *testing.T, partitions int) (dir string, c *Deformation) {
	dir, ip := writeProblem(t)
	c, err := NewDeformation(context.Background(), ip, dir, "", partitions, false)
	require.NoError(t, err)
	require.NoError(t, c.Run())
	return
}

func TestDeformationSerial(t *testing.T) {
	dir, c := run(t, 1)
	// Bottom moves at unit speed in x, damped with density*vs over a length 2
	assert.InDeltaSlice(t, []float64{0, 4, 4, 4}, c.Dissipation, 1e-12)
	for _, name := range []string{
		"rect_000000.vtk", "rect_000001.vtk", "rect_000002.vtk", "rect_000003.vtk",
		"bottom_t00.vtk", "bottom_t05.vtk", "bottom_t10.vtk", "bottom_t15.vtk",
	} {
		assert.FileExists(t, filepath.Join(dir, "out", name))
	}
	b, err := os.ReadFile(filepath.Join(dir, "out", "rect_000002.vtk"))
	require.NoError(t, err)
	content := string(b)
	assert.Contains(t, content, "VECTORS displacement double\n1 0 0\n1 0 0\n1 0 0\n0 0 0\n0 0 0\n0 0 0\n")
	assert.Contains(t, content, "VECTORS velocity double\n1 0 0\n1 0 0\n1 0 0\n0 0 0\n0 0 0\n0 0 0\n")
	assert.Contains(t, content, "CELL_DATA 4\nSCALARS material_id double 1\n")
	b, err = os.ReadFile(filepath.Join(dir, "out", "bottom_t15.vtk"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "POINTS 3 double\n")
	assert.Contains(t, string(b), "SCALARS displacement double 1\nLOOKUP_TABLE default\n1.5\n1.5\n1.5\n")
}

func TestDeformationParallel(t *testing.T) {
	serialDir, serial := run(t, 1)
	parallelDir, parallel := run(t, 2)
	assert.InDeltaSlice(t, serial.Dissipation, parallel.Dissipation, 1e-12)
	entries, err := os.ReadDir(filepath.Join(serialDir, "out"))
	require.NoError(t, err)
	require.Len(t, entries, 8)
	for _, e := range entries {
		want, err := os.ReadFile(filepath.Join(serialDir, "out", e.Name()))
		require.NoError(t, err)
		have, err := os.ReadFile(filepath.Join(parallelDir, "out", e.Name()))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(have), e.Name())
	}
}

func TestDeformationErrors(t *testing.T) {
	dir, ip := writeProblem(t)
	{ // Missing mesh
		_, err := NewDeformation(context.Background(), ip, dir, filepath.Join(dir, "none.yaml"), 1, false)
		assert.Error(t, err)
	}
	{ // Unknown kind
		bad := *ip
		bad.BCs = []InputParameters.BCSpec{{Label: "x", Kind: "periodic", Group: "y_neg"}}
		c, err := NewDeformation(context.Background(), &bad, dir, "", 1, false)
		require.NoError(t, err)
		assert.Error(t, c.Run())
	}
	{ // Unknown group
		bad := *ip
		bad.BCs = []InputParameters.BCSpec{{Label: "x", Kind: "ZeroValue", Group: "nowhere"}}
		c, err := NewDeformation(context.Background(), &bad, dir, "", 2, false)
		require.NoError(t, err)
		assert.Error(t, c.Run())
	}
}
