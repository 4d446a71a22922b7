package mesh

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadSU2 reads an SU2 native format file. Volume elements become cells, the
// vertices of each marker's boundary elements become a vertex group named by
// the marker tag.
func ReadSU2(filename string) (*Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	mesh := NewMesh(name, 0)
	scanner := bufio.NewScanner(file)

	var ndime int

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments
		if strings.HasPrefix(line, "%") || line == "" {
			continue
		}

		if strings.HasPrefix(line, "NDIME=") {
			fmt.Sscanf(line, "NDIME=%d", &ndime)
			if ndime != 2 && ndime != 3 {
				return nil, fmt.Errorf("only 2D and 3D meshes are supported, got NDIME=%d", ndime)
			}
			mesh.Dim = ndime

		} else if strings.HasPrefix(line, "NELEM=") {
			var nelem int
			fmt.Sscanf(line, "NELEM=%d", &nelem)

			mesh.EToV = make([][]int, 0, nelem)
			mesh.CellTypes = make([]CellType, 0, nelem)

			for i := 0; i < nelem; i++ {
				if !scanner.Scan() {
					return nil, fmt.Errorf("unexpected end of file reading element %d", i)
				}
				fields := strings.Fields(scanner.Text())
				if len(fields) < 2 {
					continue
				}
				su2Type, _ := strconv.Atoi(fields[0])
				ctype, ok := su2CellType(su2Type)
				if !ok {
					return nil, fmt.Errorf("unsupported SU2 element type %d", su2Type)
				}
				// Skip elements of lower dimension than the mesh
				if ndime != 0 && ctype.Dim() != ndime {
					continue
				}
				numNodes := ctype.NumVertices()
				if len(fields) < numNodes+1 {
					return nil, fmt.Errorf("element %d has %d fields, need %d",
						i, len(fields), numNodes+1)
				}
				verts := make([]int, numNodes)
				for j := 0; j < numNodes; j++ {
					verts[j], _ = strconv.Atoi(fields[1+j])
				}
				mesh.EToV = append(mesh.EToV, verts)
				mesh.CellTypes = append(mesh.CellTypes, ctype)
			}

		} else if strings.HasPrefix(line, "NPOIN=") {
			var npoin int
			fmt.Sscanf(line, "NPOIN=%d", &npoin)

			mesh.Vertices = make([][]float64, npoin)

			for i := 0; i < npoin; i++ {
				if !scanner.Scan() {
					return nil, fmt.Errorf("unexpected end of file reading point %d", i)
				}
				fields := strings.Fields(scanner.Text())
				if len(fields) < ndime {
					return nil, fmt.Errorf("point %d has %d coordinates, need %d", i, len(fields), ndime)
				}
				coords := make([]float64, ndime)
				for j := 0; j < ndime; j++ {
					if coords[j], err = strconv.ParseFloat(fields[j], 64); err != nil {
						return nil, fmt.Errorf("point %d: %w", i, err)
					}
				}
				// Point ID is the optional last field
				ptID := i
				if len(fields) > ndime {
					ptID, _ = strconv.Atoi(fields[len(fields)-1])
				}
				if ptID < 0 || ptID >= npoin {
					return nil, fmt.Errorf("point id %d out of range", ptID)
				}
				mesh.Vertices[ptID] = coords
			}

		} else if strings.HasPrefix(line, "NMARK=") {
			var nmark int
			fmt.Sscanf(line, "NMARK=%d", &nmark)

			for i := 0; i < nmark; i++ {
				var tagName string
				for scanner.Scan() {
					markerLine := strings.TrimSpace(scanner.Text())
					if strings.HasPrefix(markerLine, "MARKER_TAG=") {
						tagName = strings.TrimSpace(strings.TrimPrefix(markerLine, "MARKER_TAG="))
						break
					}
				}
				if !scanner.Scan() {
					return nil, fmt.Errorf("marker %s: missing MARKER_ELEMS", tagName)
				}
				var nMarkerElems int
				fmt.Sscanf(strings.TrimSpace(scanner.Text()), "MARKER_ELEMS=%d", &nMarkerElems)

				group := mesh.Groups[tagName]
				for j := 0; j < nMarkerElems; j++ {
					if !scanner.Scan() {
						return nil, fmt.Errorf("marker %s: unexpected end of file", tagName)
					}
					fields := strings.Fields(scanner.Text())
					if len(fields) < 2 {
						continue
					}
					su2Type, _ := strconv.Atoi(fields[0])
					ctype, ok := su2CellType(su2Type)
					if !ok {
						return nil, fmt.Errorf("marker %s: unsupported element type %d", tagName, su2Type)
					}
					for k := 0; k < ctype.NumVertices() && 1+k < len(fields); k++ {
						v, _ := strconv.Atoi(fields[1+k])
						group = append(group, v)
					}
				}
				mesh.Groups[tagName] = group
			}
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}

	if err = mesh.Validate(); err != nil {
		return nil, err
	}
	return mesh, nil
}

// su2CellType maps SU2 element type ids, which are the VTK ids
func su2CellType(su2Type int) (ct CellType, ok bool) {
	switch su2Type {
	case 1:
		return Point1, true
	case 3:
		return Line2, true
	case 5:
		return Tri3, true
	case 9:
		return Quad4, true
	case 10:
		return Tet4, true
	case 12:
		return Hex8, true
	default:
		return 0, false
	}
}
