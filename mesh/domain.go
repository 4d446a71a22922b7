package mesh

import (
	"fmt"
	"log"
	"sort"

	"github.com/notargets/gocrust/utils"
)

// Domain is the view of a Mesh or SubMesh that fields, filters and writers
// work against. Points are identified by their id in the domain numbering,
// for a SubMesh vertex ids are the parent mesh vertex ids.
type Domain interface {
	Label() string
	SpaceDim() int
	CellDim() int
	NumPoints(kind PointKind) int
	// Points lists the point ids of the whole domain in output order
	Points(kind PointKind) []int
	// Index is the position of a point id within Points(kind)
	Index(kind PointKind, point int) (idx int, ok bool)
	Coordinates(vertex int) []float64
	CellVertices(cell int) []int
	CellType(cell int) CellType
	// Partition is nil when the domain has not been distributed
	Partition(kind PointKind) *Partition
}

// Partition is the set of points one rank holds: the points it owns followed
// by ghost points owned by another rank
type Partition struct {
	Rank, Size  int
	Owned       []int
	Ghosts      []int
	GhostOwners []int
	slots       map[int]int
}

func NewPartition(rank, size int, owned, ghosts, ghostOwners []int) (p *Partition) {
	p = &Partition{
		Rank:        rank,
		Size:        size,
		Owned:       owned,
		Ghosts:      ghosts,
		GhostOwners: ghostOwners,
		slots:       make(map[int]int, len(owned)+len(ghosts)),
	}
	for i, pt := range owned {
		p.slots[pt] = i
	}
	for i, pt := range ghosts {
		p.slots[pt] = len(owned) + i
	}
	return
}

// Slot returns the local storage slot of a point
func (p *Partition) Slot(point int) (slot int, ghost, ok bool) {
	if slot, ok = p.slots[point]; !ok {
		return
	}
	ghost = slot >= len(p.Owned)
	return
}

func (p *Partition) NumLocal() int { return len(p.Owned) + len(p.Ghosts) }

func (p *Partition) NumOwned() int { return len(p.Owned) }

// Points returns owned points followed by ghosts, in slot order
func (p *Partition) Points() (pts []int) {
	pts = make([]int, 0, p.NumLocal())
	pts = append(pts, p.Owned...)
	pts = append(pts, p.Ghosts...)
	return
}

// Mesh implements Domain
var _ Domain = (*Mesh)(nil)

func (m *Mesh) Label() string { return m.Name }

func (m *Mesh) SpaceDim() int { return m.Dim }

func (m *Mesh) CellDim() int {
	if len(m.CellTypes) == 0 {
		return 0
	}
	return m.CellTypes[0].Dim()
}

func (m *Mesh) NumPoints(kind PointKind) int {
	if kind == CellPoints {
		return len(m.EToV)
	}
	return len(m.Vertices)
}

func (m *Mesh) Points(kind PointKind) (pts []int) {
	pts = make([]int, m.NumPoints(kind))
	for i := range pts {
		pts[i] = i
	}
	return
}

func (m *Mesh) Index(kind PointKind, point int) (idx int, ok bool) {
	return point, point >= 0 && point < m.NumPoints(kind)
}

func (m *Mesh) Coordinates(vertex int) []float64 { return m.Vertices[vertex] }

func (m *Mesh) CellVertices(cell int) []int { return m.EToV[cell] }

func (m *Mesh) CellType(cell int) CellType { return m.CellTypes[cell] }

func (m *Mesh) Partition(kind PointKind) *Partition {
	if kind == CellPoints {
		return m.cellPart
	}
	return m.vertexPart
}

func (m *Mesh) Rank() int { return m.rank }

func (m *Mesh) Size() int { return m.size }

/*
Distribute returns the view of the mesh held by one rank of a size rank run.
Cells are split into contiguous blocks, a vertex is owned by the lowest rank
among its incident cells, and every vertex touched by a local cell that is
owned elsewhere becomes a ghost. The returned mesh shares geometry and
connectivity with the receiver.
*/
func (m *Mesh) Distribute(rank, size int) (dm *Mesh, err error) {
	if size < 1 || rank < 0 || rank >= size {
		err = fmt.Errorf("mesh %s: invalid rank %d of %d", m.Name, rank, size)
		return
	}
	if m.NumCells != len(m.EToV) || m.NumVertices != len(m.Vertices) {
		if err = m.Validate(); err != nil {
			return
		}
	}
	var (
		pm          = utils.NewPartitionMap(size, m.NumCells)
		eToP        = make([]int, m.NumCells)
		vertexOwner = make([]int, m.NumVertices)
		kMin, kMax  = pm.GetBucketRange(rank)
	)
	for c := range eToP {
		_, _, eToP[c] = pm.GetLocalK(c)
	}
	for v := range vertexOwner {
		vertexOwner[v] = size
	}
	for c, verts := range m.EToV {
		for _, v := range verts {
			if eToP[c] < vertexOwner[v] {
				vertexOwner[v] = eToP[c]
			}
		}
	}
	var (
		owned, ghosts, ghostOwners []int
		seen                       = make(map[int]bool)
	)
	for v, owner := range vertexOwner {
		// Vertices outside of any cell go to the first rank
		if owner == size {
			vertexOwner[v] = 0
			owner = 0
		}
		if owner == rank {
			owned = append(owned, v)
			seen[v] = true
		}
	}
	for c := kMin; c < kMax; c++ {
		for _, v := range m.EToV[c] {
			if !seen[v] {
				seen[v] = true
				ghosts = append(ghosts, v)
			}
		}
	}
	sort.Ints(ghosts)
	for _, v := range ghosts {
		ghostOwners = append(ghostOwners, vertexOwner[v])
	}
	cells := make([]int, pm.GetBucketDimension(rank))
	for k := range cells {
		cells[k] = pm.GetGlobalK(k, rank)
	}

	dmCopy := *m
	dm = &dmCopy
	dm.EToP = eToP
	dm.rank, dm.size = rank, size
	dm.vertexPart = NewPartition(rank, size, owned, ghosts, ghostOwners)
	dm.cellPart = NewPartition(rank, size, cells, nil, nil)
	if size > 1 {
		log.Printf("Mesh %s partition %d/%d: %d cells, %d owned vertices, %d ghost vertices",
			m.Name, rank, size, len(cells), len(owned), len(ghosts))
	}
	return
}
