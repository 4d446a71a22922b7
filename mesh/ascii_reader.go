package mesh

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MeshYAML represents the ASCII mesh file structure
type MeshYAML struct {
	Name        string           `yaml:"name,omitempty"`
	Dimension   int              `yaml:"dimension"`
	Vertices    [][]float64      `yaml:"vertices"`
	CellType    string           `yaml:"cell_type"`
	Cells       [][]int          `yaml:"cells"`
	MaterialIDs []int            `yaml:"material_ids,omitempty"`
	Groups      map[string][]int `yaml:"groups,omitempty"`
}

// ReadASCII reads a mesh from a YAML file
func ReadASCII(filename string) (m *Mesh, err error) {
	var data []byte
	if data, err = os.ReadFile(filename); err != nil {
		return nil, fmt.Errorf("failed to read mesh file: %w", err)
	}
	if m, err = ParseASCII(data); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return
}

func ParseASCII(data []byte) (m *Mesh, err error) {
	var my MeshYAML
	if err = yaml.Unmarshal(data, &my); err != nil {
		return nil, fmt.Errorf("failed to parse mesh YAML: %w", err)
	}
	var ct CellType
	if ct, err = ParseCellType(my.CellType); err != nil {
		return
	}
	if len(my.Name) == 0 {
		my.Name = "domain"
	}
	m = NewMesh(my.Name, my.Dimension)
	m.Vertices = my.Vertices
	m.EToV = my.Cells
	m.CellTypes = make([]CellType, len(my.Cells))
	for c := range m.CellTypes {
		m.CellTypes[c] = ct
	}
	m.MaterialIDs = my.MaterialIDs
	for label, verts := range my.Groups {
		m.Groups[label] = verts
	}
	if err = m.Validate(); err != nil {
		return nil, err
	}
	return
}

// WriteASCII writes a mesh in the format read by ReadASCII. All cells must
// share one type.
func (m *Mesh) WriteASCII(filename string) (err error) {
	my := MeshYAML{
		Name:        m.Name,
		Dimension:   m.Dim,
		Vertices:    m.Vertices,
		Cells:       m.EToV,
		MaterialIDs: m.MaterialIDs,
		Groups:      m.Groups,
	}
	if len(m.CellTypes) != 0 {
		my.CellType = m.CellTypes[0].String()
		for _, ct := range m.CellTypes {
			if ct != m.CellTypes[0] {
				return fmt.Errorf("mesh %s: mixed cell types cannot be written as ASCII", m.Name)
			}
		}
	}
	var data []byte
	if data, err = yaml.Marshal(&my); err != nil {
		return fmt.Errorf("failed to encode mesh: %w", err)
	}
	return os.WriteFile(filename, data, 0644)
}
