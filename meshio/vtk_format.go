package meshio

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/notargets/gocrust/field"
	"github.com/notargets/gocrust/mesh"
)

func writeGeometry(w *bufio.Writer, d mesh.Domain, t float64, step int) (err error) {
	var (
		verts = d.Points(mesh.VertexPoints)
		cells = d.Points(mesh.CellPoints)
		buf   []byte
	)
	fmt.Fprintf(w, "# vtk DataFile Version 2.0\n%s t=%g step=%d\nASCII\nDATASET UNSTRUCTURED_GRID\n",
		d.Label(), t, step)
	fmt.Fprintf(w, "POINTS %d double\n", len(verts))
	for _, v := range verts {
		x := d.Coordinates(v)
		buf = buf[:0]
		for i := 0; i < 3; i++ {
			if i > 0 {
				buf = append(buf, ' ')
			}
			var xi float64
			if i < len(x) {
				xi = x[i]
			}
			buf = strconv.AppendFloat(buf, xi, 'g', -1, 64)
		}
		buf = append(buf, '\n')
		if _, err = w.Write(buf); err != nil {
			return
		}
	}
	size := 0
	for _, c := range cells {
		size += 1 + len(d.CellVertices(c))
	}
	fmt.Fprintf(w, "CELLS %d %d\n", len(cells), size)
	for _, c := range cells {
		cv := d.CellVertices(c)
		buf = strconv.AppendInt(buf[:0], int64(len(cv)), 10)
		for _, v := range cv {
			idx, ok := d.Index(mesh.VertexPoints, v)
			if !ok {
				return fmt.Errorf("cell %d references vertex %d outside %s", c, v, d.Label())
			}
			buf = append(buf, ' ')
			buf = strconv.AppendInt(buf, int64(idx), 10)
		}
		buf = append(buf, '\n')
		if _, err = w.Write(buf); err != nil {
			return
		}
	}
	fmt.Fprintf(w, "CELL_TYPES %d\n", len(cells))
	for _, c := range cells {
		if _, err = fmt.Fprintf(w, "%d\n", d.CellType(c).VTKType()); err != nil {
			return
		}
	}
	return
}

type vtkSection uint8

const (
	vtkScalars vtkSection = iota
	vtkVectors
	vtkTensors
	vtkField
)

func sectionOf(f *field.Field) vtkSection {
	switch {
	case f.VectorType == field.Scalar && f.FiberDim == 1:
		return vtkScalars
	case f.VectorType == field.Vector && f.FiberDim <= 3:
		return vtkVectors
	case f.VectorType == field.Tensor && (f.FiberDim == 3 || f.FiberDim == 6 || f.FiberDim == 9):
		return vtkTensors
	}
	return vtkField
}

// tensor9 expands symmetric tensor components, ordered xx yy xy in 2D and
// xx yy zz xy yz xz in 3D, to the full 3x3 row major tensor
func tensor9(v []float64) []float64 {
	switch len(v) {
	case 3:
		return []float64{v[0], v[2], 0, v[2], v[1], 0, 0, 0, 0}
	case 6:
		return []float64{v[0], v[3], v[5], v[3], v[1], v[4], v[5], v[4], v[2]}
	}
	return v
}

func writeValues(w *bufio.Writer, f *field.Field, n int, values []float64) (err error) {
	var (
		name    = strings.ReplaceAll(f.Name, " ", "_")
		nf      = f.FiberDim
		section = sectionOf(f)
		row     = make([]float64, 9)
		buf     []byte
	)
	switch section {
	case vtkScalars:
		_, err = fmt.Fprintf(w, "SCALARS %s double 1\nLOOKUP_TABLE default\n", name)
	case vtkVectors:
		_, err = fmt.Fprintf(w, "VECTORS %s double\n", name)
	case vtkTensors:
		_, err = fmt.Fprintf(w, "TENSORS %s double\n", name)
	default:
		_, err = fmt.Fprintf(w, "FIELD FieldData 1\n%s %d %d double\n", name, nf, n)
	}
	if err != nil {
		return
	}
	for i := 0; i < n; i++ {
		v := values[i*nf : (i+1)*nf]
		switch section {
		case vtkVectors:
			clear(row[:3])
			copy(row, v)
			v = row[:3]
		case vtkTensors:
			v = tensor9(v)
		}
		buf = buf[:0]
		for j, x := range v {
			switch {
			case j == 0:
			case section == vtkTensors && j%3 == 0:
				buf = append(buf, '\n')
			default:
				buf = append(buf, ' ')
			}
			buf = strconv.AppendFloat(buf, x*f.Scale, 'g', -1, 64)
		}
		buf = append(buf, '\n')
		if _, err = w.Write(buf); err != nil {
			return
		}
	}
	return
}
