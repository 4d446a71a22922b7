package mesh

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// CellType represents the supported linear cell shapes
type CellType int

const (
	Point1 CellType = iota
	Line2
	Tri3
	Quad4
	Tet4
	Hex8
)

func (ct CellType) String() string {
	return [...]string{"Point1", "Line2", "Tri3", "Quad4", "Tet4", "Hex8"}[ct]
}

// VTKType is the legacy VTK cell type id
func (ct CellType) VTKType() int {
	return [...]int{1, 3, 5, 9, 10, 12}[ct]
}

func (ct CellType) NumVertices() int {
	return [...]int{1, 2, 3, 4, 4, 8}[ct]
}

// Dim is the topological dimension of the cell
func (ct CellType) Dim() int {
	return [...]int{0, 1, 2, 2, 3, 3}[ct]
}

// FaceType is the cell type of the faces bounding this cell type
func (ct CellType) FaceType() (ft CellType, err error) {
	switch ct {
	case Line2:
		ft = Point1
	case Tri3, Quad4:
		ft = Line2
	case Tet4:
		ft = Tri3
	case Hex8:
		ft = Quad4
	default:
		err = fmt.Errorf("cell type %s has no faces", ct)
	}
	return
}

func ParseCellType(name string) (ct CellType, err error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "point", "point1", "vertex":
		ct = Point1
	case "line", "line2", "edge":
		ct = Line2
	case "tri", "tri3", "triangle":
		ct = Tri3
	case "quad", "quad4", "quadrilateral":
		ct = Quad4
	case "tet", "tet4", "tetrahedron":
		ct = Tet4
	case "hex", "hex8", "hexahedron":
		ct = Hex8
	default:
		err = fmt.Errorf("unknown cell type [%s]", name)
	}
	return
}

// PointKind selects which mesh entities carry the values of a field
type PointKind uint8

const (
	VertexPoints PointKind = iota
	CellPoints
)

func (pk PointKind) String() string {
	if pk == CellPoints {
		return "cells"
	}
	return "vertices"
}

// Mesh is an unstructured mesh of linear cells. Vertices and cells are
// identified by their index. After Distribute the mesh also knows which
// rank it is viewed from and which points that rank holds.
type Mesh struct {
	Name string
	Dim  int // Space dimension

	// Geometry
	Vertices [][]float64 // Vertex coordinates [nvertices][Dim]

	// Cell data
	EToV        [][]int    // Cell to vertex connectivity [ncells][nverts_per_cell]
	CellTypes   []CellType // Cell type for each cell
	MaterialIDs []int      // Material id for each cell

	// Named vertex groups, boundary conditions and sub-meshes are built from these
	Groups map[string][]int

	EToP []int // Cell to partition mapping, set by Distribute

	NumCells    int
	NumVertices int

	rank, size int
	vertexPart *Partition
	cellPart   *Partition
}

// NewMesh creates a new empty mesh
func NewMesh(name string, dim int) *Mesh {
	return &Mesh{
		Name:   name,
		Dim:    dim,
		Groups: make(map[string][]int),
	}
}

// ReadMeshFile reads a mesh file based on extension
func ReadMeshFile(filename string) (*Mesh, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".yaml", ".yml", ".mesh":
		return ReadASCII(filename)
	case ".su2":
		return ReadSU2(filename)
	default:
		return nil, fmt.Errorf("unsupported mesh format: %s", ext)
	}
}

// Validate checks connectivity and groups against the vertex list and fills
// in the counts
func (m *Mesh) Validate() (err error) {
	m.NumVertices = len(m.Vertices)
	m.NumCells = len(m.EToV)
	if m.Dim < 1 || m.Dim > 3 {
		return fmt.Errorf("mesh %s: space dimension %d not in [1,3]", m.Name, m.Dim)
	}
	for v, x := range m.Vertices {
		if len(x) < m.Dim {
			return fmt.Errorf("mesh %s: vertex %d has %d coordinates, need %d",
				m.Name, v, len(x), m.Dim)
		}
	}
	if len(m.CellTypes) != m.NumCells {
		return fmt.Errorf("mesh %s: %d cell types for %d cells", m.Name, len(m.CellTypes), m.NumCells)
	}
	if m.MaterialIDs == nil {
		m.MaterialIDs = make([]int, m.NumCells)
	} else if len(m.MaterialIDs) != m.NumCells {
		return fmt.Errorf("mesh %s: %d material ids for %d cells", m.Name, len(m.MaterialIDs), m.NumCells)
	}
	for c, verts := range m.EToV {
		if len(verts) != m.CellTypes[c].NumVertices() {
			return fmt.Errorf("mesh %s: cell %d of type %s has %d vertices",
				m.Name, c, m.CellTypes[c], len(verts))
		}
		for _, v := range verts {
			if v < 0 || v >= m.NumVertices {
				return fmt.Errorf("mesh %s: cell %d references vertex %d out of range", m.Name, c, v)
			}
		}
	}
	if m.Groups == nil {
		m.Groups = make(map[string][]int)
	}
	for label, verts := range m.Groups {
		for _, v := range verts {
			if v < 0 || v >= m.NumVertices {
				return fmt.Errorf("mesh %s: group %s references vertex %d out of range", m.Name, label, v)
			}
		}
		sort.Ints(verts)
		m.Groups[label] = dedupSorted(verts)
	}
	return
}

// GetCellFaces returns the face vertices for each cell type, faces of 2D
// cells are their edges
func GetCellFaces(cellType CellType, vertices []int) [][]int {
	switch cellType {
	case Line2:
		return [][]int{
			{vertices[0]},
			{vertices[1]},
		}
	case Tri3:
		return [][]int{
			{vertices[0], vertices[1]}, // Edge 0
			{vertices[1], vertices[2]}, // Edge 1
			{vertices[2], vertices[0]}, // Edge 2
		}
	case Quad4:
		return [][]int{
			{vertices[0], vertices[1]},
			{vertices[1], vertices[2]},
			{vertices[2], vertices[3]},
			{vertices[3], vertices[0]},
		}
	case Tet4:
		return [][]int{
			{vertices[0], vertices[2], vertices[1]}, // Face 0
			{vertices[0], vertices[1], vertices[3]}, // Face 1
			{vertices[1], vertices[2], vertices[3]}, // Face 2
			{vertices[0], vertices[3], vertices[2]}, // Face 3
		}
	case Hex8:
		return [][]int{
			{vertices[0], vertices[3], vertices[2], vertices[1]}, // Face 0 (bottom)
			{vertices[4], vertices[5], vertices[6], vertices[7]}, // Face 1 (top)
			{vertices[0], vertices[1], vertices[5], vertices[4]}, // Face 2
			{vertices[1], vertices[2], vertices[6], vertices[5]}, // Face 3
			{vertices[2], vertices[3], vertices[7], vertices[6]}, // Face 4
			{vertices[3], vertices[0], vertices[4], vertices[7]}, // Face 5
		}
	default:
		return [][]int{}
	}
}

func faceKey(faceVerts []int) string {
	sorted := make([]int, len(faceVerts))
	copy(sorted, faceVerts)
	sort.Ints(sorted)
	return fmt.Sprintf("%v", sorted)
}

// PrintStatistics prints mesh statistics
func (m *Mesh) PrintStatistics() {
	fmt.Printf("Mesh Statistics [%s]:\n", m.Name)
	fmt.Printf("  Dimension: %d\n", m.Dim)
	fmt.Printf("  Vertices: %d\n", m.NumVertices)
	fmt.Printf("  Cells: %d\n", m.NumCells)

	typeCounts := make(map[CellType]int)
	for _, t := range m.CellTypes {
		typeCounts[t]++
	}
	fmt.Printf("  Cell types:\n")
	for t, count := range typeCounts {
		fmt.Printf("    %s: %d\n", t, count)
	}
	labels := make([]string, 0, len(m.Groups))
	for label := range m.Groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	fmt.Printf("  Groups:\n")
	for _, label := range labels {
		fmt.Printf("    %s: %d vertices\n", label, len(m.Groups[label]))
	}
}

func dedupSorted(a []int) []int {
	if len(a) < 2 {
		return a
	}
	out := a[:1]
	for _, v := range a[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
