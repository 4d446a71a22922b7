package field

import (
	"fmt"
	"strings"
)

type VectorFieldType uint8

const (
	Scalar VectorFieldType = iota
	Vector
	Tensor
	Other
	MultiScalar
	MultiVector
	MultiTensor
	MultiOther
)

var vectorFieldTypeNames = map[VectorFieldType]string{
	Scalar:      "scalar",
	Vector:      "vector",
	Tensor:      "tensor",
	Other:       "other",
	MultiScalar: "multi_scalar",
	MultiVector: "multi_vector",
	MultiTensor: "multi_tensor",
	MultiOther:  "multi_other",
}

func (vt VectorFieldType) String() string {
	if name, ok := vectorFieldTypeNames[vt]; ok {
		return name
	}
	return fmt.Sprintf("VectorFieldType(%d)", uint8(vt))
}

func ParseVectorFieldType(name string) (vt VectorFieldType, err error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for k, v := range vectorFieldTypeNames {
		if v == key {
			return k, nil
		}
	}
	err = fmt.Errorf("unknown vector field type [%s]", name)
	return
}

// IsMulti reports whether the type holds several samples per point, as for
// quadrature point data
func (vt VectorFieldType) IsMulti() bool { return vt >= MultiScalar }

// SinglePoint maps a multi point type to the type of one of its samples
func (vt VectorFieldType) SinglePoint() VectorFieldType {
	if vt.IsMulti() {
		return vt - MultiScalar
	}
	return vt
}
