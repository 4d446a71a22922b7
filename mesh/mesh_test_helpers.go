package mesh

// Standard meshes shared by the tests of this and the downstream packages.
// None of them is distributed, call Distribute before building fields.

// Tri3Mesh is two triangles sharing the edge 1-2
//
//	    1
//	  / | \
//	0   |   3
//	  \ | /
//	    2
func Tri3Mesh() *Mesh {
	m := NewMesh("tri3", 2)
	m.Vertices = [][]float64{
		{-1, 0}, // 0
		{0, 1},  // 1
		{0, -1}, // 2
		{1, 0},  // 3
	}
	m.EToV = [][]int{
		{0, 1, 2}, // Tri 0
		{1, 3, 2}, // Tri 1
	}
	m.CellTypes = []CellType{Tri3, Tri3}
	m.MaterialIDs = []int{0, 1}
	m.Groups = map[string][]int{
		"bc":    {1, 3},
		"fault": {1, 2},
		"x_neg": {0},
	}
	if err := m.Validate(); err != nil {
		panic(err)
	}
	return m
}

// Line2Mesh is one segment from x=0 to x=1
func Line2Mesh() *Mesh {
	m := NewMesh("line2", 1)
	m.Vertices = [][]float64{{0}, {1}}
	m.EToV = [][]int{{0, 1}}
	m.CellTypes = []CellType{Line2}
	m.Groups = map[string][]int{
		"left":  {0},
		"right": {1},
		"ends":  {0, 1},
	}
	if err := m.Validate(); err != nil {
		panic(err)
	}
	return m
}

// RectangleTri is a structured nx by ny grid of quads each split into two
// triangles, with vertex groups on the four sides
func RectangleTri(nx, ny int, xmin, xmax, ymin, ymax float64) *Mesh {
	var (
		m      = NewMesh("rectangle", 2)
		dx     = (xmax - xmin) / float64(nx)
		dy     = (ymax - ymin) / float64(ny)
		vertex = func(i, j int) int { return j*(nx+1) + i }
	)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			m.Vertices = append(m.Vertices, []float64{xmin + float64(i)*dx, ymin + float64(j)*dy})
			if i == 0 {
				m.Groups["x_neg"] = append(m.Groups["x_neg"], vertex(i, j))
			}
			if i == nx {
				m.Groups["x_pos"] = append(m.Groups["x_pos"], vertex(i, j))
			}
			if j == 0 {
				m.Groups["y_neg"] = append(m.Groups["y_neg"], vertex(i, j))
			}
			if j == ny {
				m.Groups["y_pos"] = append(m.Groups["y_pos"], vertex(i, j))
			}
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			v0, v1, v2, v3 := vertex(i, j), vertex(i+1, j), vertex(i+1, j+1), vertex(i, j+1)
			m.EToV = append(m.EToV, []int{v0, v1, v2}, []int{v0, v2, v3})
			m.CellTypes = append(m.CellTypes, Tri3, Tri3)
		}
	}
	if err := m.Validate(); err != nil {
		panic(err)
	}
	return m
}

// HexCube is a single unit hexahedron with its top face as a group
func HexCube() *Mesh {
	m := NewMesh("cube", 3)
	m.Vertices = [][]float64{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
	}
	m.EToV = [][]int{{0, 1, 2, 3, 4, 5, 6, 7}}
	m.CellTypes = []CellType{Hex8}
	m.Groups = map[string][]int{
		"z_pos": {4, 5, 6, 7},
		"x_neg": {0, 3, 4, 7},
	}
	if err := m.Validate(); err != nil {
		panic(err)
	}
	return m
}

// MustDistribute is Distribute for test fixtures
func MustDistribute(m *Mesh, rank, size int) *Mesh {
	dm, err := m.Distribute(rank, size)
	if err != nil {
		panic(err)
	}
	return dm
}
