package Deformation

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"github.com/notargets/gocrust/InputParameters"
	"github.com/notargets/gocrust/bc"
	"github.com/notargets/gocrust/field"
	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/numerics"
	"github.com/notargets/gocrust/output"
	"github.com/notargets/gocrust/spatialdb"
	"github.com/notargets/gocrust/types"
	"github.com/notargets/gocrust/utils"
)

/*
Deformation steps the boundary driven displacement of a mesh through the
output times of an input deck. Each step the displacement history is rotated,
the boundary conditions are applied, the velocity is differenced from the
history and the configured outputs are written. Every partition runs the same
loop on its share of the mesh.
*/
type Deformation struct {
	Input      *InputParameters.Pipeline
	Mesh       *mesh.Mesh
	Partitions int
	Verbose    bool
	baseDir    string
	databases  map[string]spatialdb.Database
	histories  map[string]*spatialdb.TimeHistory
	// Dissipation is the boundary damping power of each step, summed over the partitions
	Dissipation []float64
}

// NewDeformation reads the mesh and every database the deck refers to. File
// and output names in the deck are relative to baseDir, meshFile overrides
// the deck.
func NewDeformation(ctx context.Context, ip *InputParameters.Pipeline, baseDir, meshFile string,
	partitions int, verbose bool) (c *Deformation, err error) {
	c = &Deformation{
		Input:      ip,
		Partitions: partitions,
		Verbose:    verbose,
		baseDir:    baseDir,
		databases:  make(map[string]spatialdb.Database),
		histories:  make(map[string]*spatialdb.TimeHistory),
	}
	if len(meshFile) == 0 {
		if len(ip.MeshFile) == 0 {
			return nil, fmt.Errorf("no mesh file given")
		}
		meshFile = c.resolve(ip.MeshFile)
	}
	if c.Mesh, err = mesh.ReadMeshFile(meshFile); err != nil {
		return nil, err
	}
	for name, spec := range ip.Databases {
		var db spatialdb.Database
		if len(spec.File) != 0 {
			if db, err = spatialdb.Open(ctx, c.resolve(spec.File)); err != nil {
				return nil, fmt.Errorf("database %s: %w", name, err)
			}
		} else {
			names := make([]string, 0, len(spec.Values))
			for n := range spec.Values {
				names = append(names, n)
			}
			sort.Strings(names)
			values := make([]float64, len(names))
			for i, n := range names {
				values[i] = spec.Values[n]
			}
			if db, err = spatialdb.NewUniform(name, names, values); err != nil {
				return nil, fmt.Errorf("database %s: %w", name, err)
			}
		}
		c.databases[name] = db
	}
	for name, fn := range ip.TimeHistories {
		var th *spatialdb.TimeHistory
		if th, err = spatialdb.LoadTimeHistory(c.resolve(fn)); err != nil {
			return nil, fmt.Errorf("time history %s: %w", name, err)
		}
		c.histories[name] = th
	}
	if verbose {
		fmt.Printf("Crustal Deformation Output Pipeline\n")
		c.Mesh.PrintStatistics()
		fmt.Printf("Using %d partitions, %d boundary conditions, %d outputs\n",
			partitions, len(ip.BCs), len(ip.Output))
	}
	return
}

func (c *Deformation) resolve(fn string) string {
	if filepath.IsAbs(fn) || len(c.baseDir) == 0 {
		return fn
	}
	return filepath.Join(c.baseDir, fn)
}

func (c *Deformation) Run() (err error) {
	rt := numerics.New(c.Partitions)
	rt.Verbose = c.Verbose
	if err = rt.Initialize(); err != nil {
		return
	}
	defer func() {
		if ferr := rt.Finalize(); err == nil {
			err = ferr
		}
	}()
	c.Dissipation = make([]float64, c.Input.NumSteps())
	return rt.Run(func(comm *numerics.Comm) error {
		return c.runPartition(rt, comm)
	})
}

func (c *Deformation) runPartition(rt *numerics.Runtime, comm *numerics.Comm) (err error) {
	var (
		ip  = c.Input
		m   *mesh.Mesh
		dim int
	)
	if m, err = c.Mesh.Distribute(comm.Rank(), comm.Size()); err != nil {
		return
	}
	dim = m.SpaceDim()
	sf := field.NewSolutionFields(rt, m)
	defer sf.Deallocate()
	var disp, prev, vel, matID *field.Field
	if disp, err = sf.Add("displacement", mesh.VertexPoints, dim, field.WithScale(ip.LengthScale)); err != nil {
		return
	}
	if prev, err = sf.Add("displacement_t", mesh.VertexPoints, dim, field.WithScale(ip.LengthScale)); err != nil {
		return
	}
	if vel, err = sf.Add("velocity", mesh.VertexPoints, dim, field.WithScale(ip.LengthScale)); err != nil {
		return
	}
	if matID, err = sf.Add("material_id", mesh.CellPoints, 1); err != nil {
		return
	}
	if err = sf.SetSolutionName("displacement"); err != nil {
		return
	}
	if err = sf.CreateHistory([]string{"displacement", "displacement_t"}); err != nil {
		return
	}
	for _, cell := range matID.OwnedPoints() {
		if err = matID.Set(cell, []float64{float64(m.MaterialIDs[cell])}); err != nil {
			return
		}
	}

	bcs := bc.NewSet()
	bcs.Verbose = c.Verbose && comm.IsRoot()
	for _, spec := range ip.BCs {
		var b bc.BoundaryCondition
		if b, err = c.newBC(spec); err != nil {
			return
		}
		bcs.Add(b, spec.Group)
	}
	defer bcs.Deallocate()
	if err = bcs.Initialize(disp); err != nil {
		return
	}

	var managers []*output.Manager
	defer func() {
		for _, om := range managers {
			if ferr := om.Finalize(); err == nil {
				err = ferr
			}
		}
	}()
	for _, spec := range ip.Output {
		var om *output.Manager
		if om, err = c.newOutput(spec, m, sf, comm); err != nil {
			return
		}
		managers = append(managers, om)
	}

	for step := 0; step < ip.NumSteps(); step++ {
		t := ip.StartTime + float64(step)*ip.TimeStep
		if err = sf.ShiftHistory(); err != nil {
			return
		}
		if err = disp.CopyFrom(prev); err != nil {
			return
		}
		if err = bcs.Apply(disp, t); err != nil {
			return
		}
		if err = disp.SyncGhosts(comm); err != nil {
			return
		}
		var u []float64
		if u, err = disp.OwnedData(); err != nil {
			return
		}
		if utils.IsNan(u) {
			return types.NewError(types.ErrDomain, "NaN in displacement").WithField("displacement").WithStep(step, t)
		}
		if err = c.difference(vel, disp, prev, step); err != nil {
			return
		}
		var power float64
		if power, err = c.dissipation(bcs, vel, comm); err != nil {
			return
		}
		if comm.IsRoot() {
			c.Dissipation[step] = power
			if c.Verbose {
				log.Printf("Step %d t=%g: boundary damping power %g", step, t, power)
			}
		}
		for _, om := range managers {
			if err = om.WriteStep(t, step); err != nil {
				return
			}
		}
	}
	return
}

// difference sets the owned velocity to (u - u_prev)/dt, zero on the first step
func (c *Deformation) difference(vel, disp, prev *field.Field, step int) (err error) {
	var v, u, up []float64
	if v, err = vel.OwnedData(); err != nil {
		return
	}
	if step == 0 {
		clear(v)
		return
	}
	if u, err = disp.OwnedData(); err != nil {
		return
	}
	if up, err = prev.OwnedData(); err != nil {
		return
	}
	for i := range v {
		v[i] = (u[i] - up[i]) / c.Input.TimeStep
	}
	return
}

// dissipation is v'Cv over the owned degrees of freedom of every damping
// boundary, summed over the partitions
func (c *Deformation) dissipation(bcs *bc.Set, vel *field.Field, comm *numerics.Comm) (power float64, err error) {
	var v []float64
	if v, err = vel.OwnedData(); err != nil {
		return
	}
	for _, ct := range bcs.Contributors() {
		dampers, ok := ct.(*bc.AbsorbingDampers)
		if !ok {
			continue
		}
		dia, derr := dampers.DampingMatrix()
		if derr != nil {
			return 0, derr
		}
		for k, vk := range v {
			power += dia.At(k, k) * vk * vk
		}
	}
	var all [][]float64
	if all, err = numerics.Allgather(comm, []float64{power}); err != nil {
		return
	}
	power = 0
	for _, p := range all {
		power += p[0]
	}
	return
}
