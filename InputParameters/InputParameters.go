package InputParameters

import (
	"fmt"
	"os"
	"sort"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input deck
type Pipeline struct {
	Title         string                  `json:"Title"`
	MeshFile      string                  `json:"MeshFile"`
	StartTime     float64                 `json:"StartTime"`
	TimeStep      float64                 `json:"TimeStep"`
	FinalTime     float64                 `json:"FinalTime"`
	LengthScale   float64                 `json:"LengthScale"` // Dimensional scale of the displacement
	Databases     map[string]DatabaseSpec `json:"Databases"`   // Key is the name referenced by the BCs
	TimeHistories map[string]string       `json:"TimeHistories"`
	BCs           []BCSpec                `json:"BCs"` // Applied in the listed order
	Output        []OutputSpec            `json:"Output"`
}

// DatabaseSpec is either a file (YAML or SQLite simple database) or a set of
// uniform values
type DatabaseSpec struct {
	File   string             `json:"File"`
	Values map[string]float64 `json:"Values"`
}

type BCSpec struct {
	Label       string  `json:"Label"`
	Kind        string  `json:"Kind"` // Dirichlet, Neumann, AbsorbingDampers, ZeroValue
	Group       string  `json:"Group"`
	DOF         []int   `json:"DOF"`
	Initial     string  `json:"Initial"`
	Rate        string  `json:"Rate"`
	Change      string  `json:"Change"`
	TimeHistory string  `json:"TimeHistory"`
	Material    string  `json:"Material"`
	Scale       float64 `json:"Scale"`
}

type OutputSpec struct {
	Path         string   `json:"Path"`
	Group        string   `json:"Group"` // Vertex group of a sub-mesh, whole mesh when empty
	VertexFields []string `json:"VertexFields"`
	CellFields   []string `json:"CellFields"`
	VertexFilter string   `json:"VertexFilter"` // vertex_norm
	CellFilter   string   `json:"CellFilter"`   // cell_average
	CellPoints   int      `json:"CellPoints"`
	TimeFormat   string   `json:"TimeFormat"`
	TimeConstant float64  `json:"TimeConstant"`
	Compress     bool     `json:"Compress"`
	Skip         int      `json:"Skip"`
}

func (ip *Pipeline) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, ip); err != nil {
		return
	}
	return ip.Validate()
}

func ReadPipeline(filename string) (ip *Pipeline, err error) {
	var data []byte
	if data, err = os.ReadFile(filename); err != nil {
		return
	}
	ip = &Pipeline{}
	if err = ip.Parse(data); err != nil {
		return nil, fmt.Errorf("input deck %s: %w", filename, err)
	}
	return
}

func (ip *Pipeline) Validate() (err error) {
	if ip.TimeStep <= 0 {
		return fmt.Errorf("TimeStep must be positive, have %g", ip.TimeStep)
	}
	if ip.FinalTime < ip.StartTime {
		return fmt.Errorf("FinalTime %g is before StartTime %g", ip.FinalTime, ip.StartTime)
	}
	if ip.LengthScale == 0 {
		ip.LengthScale = 1
	}
	for i, b := range ip.BCs {
		if len(b.Label) == 0 || len(b.Group) == 0 {
			return fmt.Errorf("BCs[%d] needs a Label and a Group", i)
		}
		for _, db := range []string{b.Initial, b.Rate, b.Change, b.Material} {
			if _, ok := ip.Databases[db]; len(db) != 0 && !ok {
				return fmt.Errorf("bc %s: unknown database %s", b.Label, db)
			}
		}
		if _, ok := ip.TimeHistories[b.TimeHistory]; len(b.TimeHistory) != 0 && !ok {
			return fmt.Errorf("bc %s: unknown time history %s", b.Label, b.TimeHistory)
		}
	}
	for i, o := range ip.Output {
		if len(o.Path) == 0 {
			return fmt.Errorf("Output[%d] needs a Path", i)
		}
	}
	return
}

// NumSteps is the number of output steps from StartTime to FinalTime
func (ip *Pipeline) NumSteps() int {
	return int((ip.FinalTime-ip.StartTime)/ip.TimeStep+1e-9) + 1
}

func (ip *Pipeline) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t\t= Mesh File\n", ip.MeshFile)
	fmt.Printf("%8.5f\t\t= StartTime\n", ip.StartTime)
	fmt.Printf("%8.5f\t\t= TimeStep\n", ip.TimeStep)
	fmt.Printf("%8.5f\t\t= FinalTime\n", ip.FinalTime)
	fmt.Printf("%8.5f\t\t= LengthScale\n", ip.LengthScale)
	keys := make([]string, 0, len(ip.Databases))
	for k := range ip.Databases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		db := ip.Databases[key]
		if len(db.File) != 0 {
			fmt.Printf("Databases[%s] = %s\n", key, db.File)
		} else {
			fmt.Printf("Databases[%s] = %v\n", key, db.Values)
		}
	}
	for _, b := range ip.BCs {
		fmt.Printf("BCs[%s] = %s on %s, DOF %v\n", b.Label, b.Kind, b.Group, b.DOF)
	}
	for _, o := range ip.Output {
		fmt.Printf("Output[%s] = vertex %v, cell %v\n", o.Path, o.VertexFields, o.CellFields)
	}
}
