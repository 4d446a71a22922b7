package bc

import (
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gocrust/field"
	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/spatialdb"
	"github.com/notargets/gocrust/types"
)

var materialNames = []string{"density", "vp", "vs"}

/*
AbsorbingDampers is the lumped viscous boundary that absorbs outgoing waves.
For a boundary vertex with outward unit normal n the damping coefficient of
component i is

	c_i = rho*vs + rho*(vp - vs)*n_i^2

so that the normal direction is damped with the P wave impedance and the
tangential directions with the S wave impedance. Normals are the area
weighted average over the sub-mesh cells touching the vertex.
*/
type AbsorbingDampers struct {
	base
	Material spatialdb.Database
	field    *field.Field
	buffer   *field.Field
	normals  map[int][]float64
	areas    map[int]float64 // Lumped boundary measure per vertex
	updated  bool
}

var _ Contributor = (*AbsorbingDampers)(nil)

func NewAbsorbingDampers(label string, material spatialdb.Database) *AbsorbingDampers {
	return &AbsorbingDampers{
		base:     base{label: label, kind: types.BC_AbsorbingDampers},
		Material: material,
	}
}

func (bc *AbsorbingDampers) Initialize(f *field.Field, sub *mesh.SubMesh) (err error) {
	if bc.Material == nil {
		return bc.newError(types.ErrDatabaseLookup, "no material database")
	}
	if f != nil && f.FiberDim != f.Domain().SpaceDim() {
		return bc.newError(types.ErrTypeConflict, "field %s has fiber dimension %d in a %d dimensional space",
			f.Name, f.FiberDim, f.Domain().SpaceDim()).WithField(f.Name)
	}
	bc.dof = nil
	if err = bc.setup(f, sub); err != nil {
		return
	}
	bc.field = f
	if err = bc.computeNormals(); err != nil {
		return
	}
	if bc.buffer, err = field.New(f.Runtime(), bc.label+"-damping", sub, mesh.VertexPoints, f.FiberDim,
		field.WithLabel("damping_constant")); err != nil {
		return
	}
	return
}

func (bc *AbsorbingDampers) computeNormals() (err error) {
	var (
		sub    = bc.sub
		parent = sub.Parent()
		dim    = parent.Dim
	)
	bc.normals = make(map[int][]float64, len(sub.Vertices))
	bc.areas = make(map[int]float64, len(sub.Vertices))
	var (
		faceNormals  = make([][]float64, len(sub.EToV))
		faceMeasures = make([]float64, len(sub.EToV))
	)
	for c, verts := range sub.EToV {
		faceNormals[c], faceMeasures[c] = faceNormal(parent, verts, sub.CellTypes[c], sub.CellParents[c])
	}
	for v, faces := range sub.VertexCells() {
		n := make([]float64, dim)
		for _, c := range faces {
			floats.AddScaled(n, faceMeasures[c], faceNormals[c])
			bc.areas[v] += faceMeasures[c] / float64(len(sub.EToV[c]))
		}
		bc.normals[v] = n
	}
	for _, v := range bc.points {
		n := bc.normals[v]
		if n == nil {
			return bc.newError(types.ErrDomain, "vertex %d has no boundary cell to define a normal", v)
		}
		norm := floats.Norm(n, 2)
		if norm == 0 {
			return bc.newError(types.ErrDomain, "degenerate normal at vertex %d", v)
		}
		floats.Scale(1/norm, n)
	}
	return
}

// faceNormal returns the outward unit normal and the measure of a boundary
// cell, outward is away from the centroid of the parent cell
func faceNormal(m *mesh.Mesh, verts []int, ct mesh.CellType, parentCell int) (n []float64, measure float64) {
	var (
		dim = m.Dim
		x   = func(v int) []float64 { return m.Vertices[v][:dim] }
	)
	n = make([]float64, dim)
	switch ct {
	case mesh.Point1:
		n[0], measure = 1, 1
	case mesh.Line2:
		d := make([]float64, dim)
		floats.SubTo(d, x(verts[1]), x(verts[0]))
		measure = floats.Norm(d, 2)
		if dim == 2 {
			n[0], n[1] = d[1], -d[0]
		}
	case mesh.Tri3, mesh.Quad4:
		a, b := make([]float64, dim), make([]float64, dim)
		if ct == mesh.Tri3 {
			floats.SubTo(a, x(verts[1]), x(verts[0]))
			floats.SubTo(b, x(verts[2]), x(verts[0]))
		} else {
			floats.SubTo(a, x(verts[2]), x(verts[0]))
			floats.SubTo(b, x(verts[3]), x(verts[1]))
		}
		if dim == 3 {
			n[0] = a[1]*b[2] - a[2]*b[1]
			n[1] = a[2]*b[0] - a[0]*b[2]
			n[2] = a[0]*b[1] - a[1]*b[0]
		}
		measure = 0.5 * floats.Norm(n, 2)
	}
	if norm := floats.Norm(n, 2); norm > 0 {
		floats.Scale(1/norm, n)
	}
	// Orient away from the parent cell
	var (
		faceC   = centroid(m, verts)
		parentC = centroid(m, m.EToV[parentCell])
		out     = make([]float64, dim)
	)
	floats.SubTo(out, faceC, parentC)
	if floats.Dot(n, out) < 0 {
		floats.Scale(-1, n)
	}
	return
}

func centroid(m *mesh.Mesh, verts []int) (c []float64) {
	c = make([]float64, m.Dim)
	for _, v := range verts {
		floats.Add(c, m.Vertices[v][:m.Dim])
	}
	floats.Scale(1/float64(len(verts)), c)
	return
}

// Normal is the outward unit normal at an owned boundary vertex
func (bc *AbsorbingDampers) Normal(v int) []float64 {
	return append([]float64(nil), bc.normals[v]...)
}

func (bc *AbsorbingDampers) Buffer() *field.Field { return bc.buffer }

// Update queries the material at every boundary vertex and refreshes the
// damping coefficients
func (bc *AbsorbingDampers) Update(t float64) (err error) {
	if bc.buffer == nil {
		return bc.newError(types.ErrSequence, "not initialized")
	}
	coef := make([]float64, bc.fiberDim)
	for _, v := range bc.points {
		var mat []float64
		if mat, err = bc.Material.Query(materialNames, bc.sub.Coordinates(v), t); err != nil {
			return bc.wrap(err, bc.field, t)
		}
		rho, vp, vs := mat[0], mat[1], mat[2]
		if rho <= 0 || vp <= 0 || vs < 0 || math.IsNaN(rho+vp+vs) {
			return bc.newError(types.ErrDatabaseLookup, "bad material at vertex %d: density %g, vp %g, vs %g",
				v, rho, vp, vs).WithTime(t)
		}
		n := bc.normals[v]
		for i := range coef {
			coef[i] = rho*vs + rho*(vp-vs)*n[i]*n[i]
		}
		if err = bc.buffer.Set(v, coef); err != nil {
			return
		}
	}
	bc.updated = true
	return
}

/*
DampingMatrix returns the lumped damping contribution as a diagonal matrix
over the local degrees of freedom of the field the condition was initialized
with. The entry of component i at a boundary vertex is c_i times the boundary
measure lumped to that vertex.
*/
func (bc *AbsorbingDampers) DampingMatrix() (dia *sparse.DIA, err error) {
	if !bc.updated {
		return nil, bc.newError(types.ErrSequence, "damping constants not computed, call Update first")
	}
	var (
		nDOF = bc.field.NumLocal() * bc.fiberDim
		diag = make([]float64, nDOF)
		part = bc.field.Partition()
	)
	for _, v := range bc.points {
		slot, _, ok := part.Slot(v)
		if !ok {
			return nil, bc.newError(types.ErrDomain, "vertex %d is not local to the field", v)
		}
		var c []float64
		if c, err = bc.buffer.Values(v); err != nil {
			return
		}
		for i, ci := range c {
			diag[slot*bc.fiberDim+i] += ci * bc.areas[v]
		}
	}
	dia = sparse.NewDIA(nDOF, nDOF, diag)
	return
}

func (bc *AbsorbingDampers) Deallocate() {
	if bc.buffer != nil {
		bc.buffer.Deallocate()
	}
}
