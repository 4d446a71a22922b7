package mesh

import (
	"fmt"
	"sort"

	"github.com/notargets/gocrust/types"
)

// SubMesh is the lower dimension mesh made of the faces of a parent mesh
// whose vertices all belong to one vertex group. Vertex ids are the parent's,
// cells are numbered locally and remember the parent cell they bound.
type SubMesh struct {
	label  string
	parent *Mesh

	Vertices    []int   // Parent vertex ids, ascending
	EToV        [][]int // Face to parent vertex connectivity
	CellTypes   []CellType
	CellParents []int // Parent cell of each face

	vertexIndex map[int]int
	vertexPart  *Partition
	cellPart    *Partition
}

var _ Domain = (*SubMesh)(nil)

/*
SubMesh builds the sub-mesh of a vertex group. Faces lying on the boundary of
the parent are preferred, faces shared by two cells are only used when the
group has no boundary faces at all (an interior surface). When the parent has
been distributed the sub-mesh inherits its vertex ownership, a face belongs to
the rank owning its parent cell.
*/
func (m *Mesh) SubMesh(label string) (sm *SubMesh, err error) {
	groupVerts, ok := m.Groups[label]
	if !ok {
		err = types.NewError(types.ErrDomain, "no vertex group %s", label).WithDomain(m.Name)
		return
	}
	inGroup := make(map[int]bool, len(groupVerts))
	for _, v := range groupVerts {
		inGroup[v] = true
	}
	sm = &SubMesh{
		label:       label,
		parent:      m,
		Vertices:    append([]int(nil), groupVerts...),
		vertexIndex: make(map[int]int, len(groupVerts)),
	}
	sort.Ints(sm.Vertices)
	sm.Vertices = dedupSorted(sm.Vertices)
	for i, v := range sm.Vertices {
		sm.vertexIndex[v] = i
	}

	type candidate struct {
		verts  []int
		ctype  CellType
		parent int
		count  int
	}
	var (
		faceMap = make(map[string]int)
		cands   []*candidate
	)
	for c, verts := range m.EToV {
		ftype, ferr := m.CellTypes[c].FaceType()
		if ferr != nil {
			continue
		}
		for _, faceVerts := range GetCellFaces(m.CellTypes[c], verts) {
			key := faceKey(faceVerts)
			if fid, exists := faceMap[key]; exists {
				if cands[fid] != nil {
					cands[fid].count++
				}
				continue
			}
			all := true
			for _, v := range faceVerts {
				if !inGroup[v] {
					all = false
					break
				}
			}
			faceMap[key] = len(cands)
			if !all {
				cands = append(cands, nil)
				continue
			}
			cands = append(cands, &candidate{
				verts:  faceVerts,
				ctype:  ftype,
				parent: c,
				count:  1,
			})
		}
	}
	var haveBoundary bool
	for _, cd := range cands {
		if cd != nil && cd.count == 1 {
			haveBoundary = true
			break
		}
	}
	for _, cd := range cands {
		if cd == nil || (haveBoundary && cd.count != 1) {
			continue
		}
		sm.EToV = append(sm.EToV, cd.verts)
		sm.CellTypes = append(sm.CellTypes, cd.ctype)
		sm.CellParents = append(sm.CellParents, cd.parent)
	}

	if m.vertexPart != nil {
		sm.distribute()
	}
	return
}

func (sm *SubMesh) distribute() {
	var (
		pp                         = sm.parent.vertexPart
		owned, ghosts, ghostOwners []int
	)
	for _, v := range sm.Vertices {
		slot, ghost, ok := pp.Slot(v)
		switch {
		case !ok:
		case ghost:
			ghosts = append(ghosts, v)
			ghostOwners = append(ghostOwners, pp.GhostOwners[slot-len(pp.Owned)])
		default:
			owned = append(owned, v)
		}
	}
	sm.vertexPart = NewPartition(pp.Rank, pp.Size, owned, ghosts, ghostOwners)

	var (
		cp    = sm.parent.cellPart
		cells []int
	)
	for f, pc := range sm.CellParents {
		if _, ghost, ok := cp.Slot(pc); ok && !ghost {
			cells = append(cells, f)
		}
	}
	sm.cellPart = NewPartition(cp.Rank, cp.Size, cells, nil, nil)
}

func (sm *SubMesh) Parent() *Mesh { return sm.parent }

func (sm *SubMesh) Label() string { return sm.label }

func (sm *SubMesh) SpaceDim() int { return sm.parent.Dim }

func (sm *SubMesh) CellDim() int {
	if len(sm.CellTypes) == 0 {
		d := sm.parent.CellDim() - 1
		if d < 0 {
			d = 0
		}
		return d
	}
	return sm.CellTypes[0].Dim()
}

func (sm *SubMesh) NumPoints(kind PointKind) int {
	if kind == CellPoints {
		return len(sm.EToV)
	}
	return len(sm.Vertices)
}

func (sm *SubMesh) Points(kind PointKind) (pts []int) {
	if kind == CellPoints {
		pts = make([]int, len(sm.EToV))
		for i := range pts {
			pts[i] = i
		}
		return
	}
	return append([]int(nil), sm.Vertices...)
}

func (sm *SubMesh) Index(kind PointKind, point int) (idx int, ok bool) {
	if kind == CellPoints {
		return point, point >= 0 && point < len(sm.EToV)
	}
	idx, ok = sm.vertexIndex[point]
	return
}

func (sm *SubMesh) Coordinates(vertex int) []float64 { return sm.parent.Vertices[vertex] }

func (sm *SubMesh) CellVertices(cell int) []int { return sm.EToV[cell] }

func (sm *SubMesh) CellType(cell int) CellType { return sm.CellTypes[cell] }

func (sm *SubMesh) Partition(kind PointKind) *Partition {
	if kind == CellPoints {
		return sm.cellPart
	}
	return sm.vertexPart
}

// VertexCells lists the faces incident to each sub-mesh vertex
func (sm *SubMesh) VertexCells() (vc map[int][]int) {
	vc = make(map[int][]int, len(sm.Vertices))
	for f, verts := range sm.EToV {
		for _, v := range verts {
			vc[v] = append(vc[v], f)
		}
	}
	return
}

func (sm *SubMesh) String() string {
	return fmt.Sprintf("SubMesh[%s of %s]: %d vertices, %d cells",
		sm.label, sm.parent.Name, len(sm.Vertices), len(sm.EToV))
}
