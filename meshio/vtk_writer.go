package meshio

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/DataDog/zstd"

	"github.com/notargets/gocrust/field"
	"github.com/notargets/gocrust/mesh"
	"github.com/notargets/gocrust/numerics"
	"github.com/notargets/gocrust/types"
)

type writerState uint8

const (
	writerIdle writerState = iota
	writerOpen
	writerClosed
)

/*
VTKWriter writes a field history as legacy VTK unstructured grid files, one
file per time step holding the geometry followed by the POINT_DATA and
CELL_DATA sections. Within a step all vertex fields must be written before the
first cell field.

With a communicator every partition calls the writer in the same order, the
owned values are gathered to rank 0 which alone touches the file system.
*/
type VTKWriter struct {
	TimeFormat   string  // fmt verb for the time in file names, the step index is used when empty
	TimeConstant float64 // file name times are t / TimeConstant
	Compress     bool    // zstd compressed .vtk.zst files
	Level        int     // zstd level, default when zero
	Comm         *numerics.Comm
	Verbose      bool

	state  writerState
	base   string
	domain mesh.Domain
	step   *timeStep
	files  []string
}

type timeStep struct {
	index         int
	t             float64
	name, tmpName string
	file          *os.File
	zw            io.WriteCloser
	w             *bufio.Writer
	names         map[string]bool
	pointData     bool
	cellData      bool
}

func NewVTKWriter() *VTKWriter {
	return &VTKWriter{TimeConstant: 1}
}

func (w *VTKWriter) root() bool { return w.Comm == nil || w.Comm.IsRoot() }

func (w *VTKWriter) parallel() bool { return w.Comm != nil && w.Comm.Size() > 1 }

func (w *VTKWriter) newError(kind error, format string, args ...any) *types.PipelineError {
	err := types.NewError(kind, format, args...)
	if w.domain != nil {
		err.WithDomain(w.domain.Label())
	}
	return err
}

// Open starts a new output series, path is the file name of the series with
// or without the .vtk extension
func (w *VTKWriter) Open(path string, domain mesh.Domain) (err error) {
	if w.state == writerOpen {
		return w.newError(types.ErrSequence, "writer already open on %s", w.base)
	}
	if domain == nil {
		return types.NewError(types.ErrDomain, "no domain to write")
	}
	if len(path) == 0 {
		return types.NewError(types.ErrOutput, "empty output path").WithDomain(domain.Label())
	}
	if w.TimeConstant == 0 {
		w.TimeConstant = 1
	}
	w.base = strings.TrimSuffix(strings.TrimSuffix(path, ".zst"), ".vtk")
	w.domain = domain
	w.state = writerOpen
	w.files = nil
	if w.root() {
		if dir := filepath.Dir(w.base); len(dir) != 0 {
			if err = os.MkdirAll(dir, 0755); err != nil {
				w.state = writerIdle
				return types.Wrap(types.ErrOutput, err, "create output directory").WithDomain(domain.Label())
			}
		}
	}
	return
}

// Files lists the completed step files of the current series, root only
func (w *VTKWriter) Files() []string { return w.files }

// FileName is the name of the file holding a step
func (w *VTKWriter) FileName(t float64, step int) (name string) {
	if len(w.TimeFormat) == 0 {
		name = fmt.Sprintf("%s_%06d.vtk", w.base, step)
	} else {
		tc := w.TimeConstant
		if tc == 0 {
			tc = 1
		}
		stamp := strings.ReplaceAll(fmt.Sprintf(w.TimeFormat, t/tc), ".", "")
		name = fmt.Sprintf("%s_t%s.vtk", w.base, stamp)
	}
	if w.Compress {
		name += ".zst"
	}
	return
}

// WriteField appends a field to the file of the given step, opening the step
// file and writing the geometry on the first field of the step. A failure
// removes the partial step file.
func (w *VTKWriter) WriteField(f *field.Field, t float64, step int) (err error) {
	defer func() {
		if err != nil {
			if pe, ok := err.(*types.PipelineError); ok {
				pe.WithField(f.Name).WithStep(step, t)
			}
		}
	}()
	if w.state != writerOpen {
		return w.newError(types.ErrSequence, "write before open or after close")
	}
	if rerr := f.Runtime().Ready(); rerr != nil {
		return types.Wrap(types.ErrRuntimeNotReady, rerr, "").WithDomain(w.domain.Label())
	}
	if f.Domain() != w.domain {
		return w.newError(types.ErrDomain, "field is defined on %s", f.Domain().Label())
	}
	if w.step != nil && w.step.index != step {
		return w.newError(types.ErrSequence, "step %d still open", w.step.index)
	}
	if w.step == nil {
		if err = w.agree(w.beginStep(t, step)); err != nil {
			w.AbortTimeStep()
			return
		}
	}
	ts := w.step
	if ts.names[f.Name] {
		w.abortStep()
		return w.newError(types.ErrSequence, "field written twice in the same step")
	}
	if f.Kind == mesh.VertexPoints && ts.cellData {
		w.abortStep()
		return w.newError(types.ErrSequence, "vertex field after cell fields")
	}
	var values []float64
	values, err = w.gather(f)
	if err == nil && w.root() {
		if werr := w.writeData(f, values); werr != nil {
			err = types.Wrap(types.ErrOutput, werr, "write %s", ts.name)
		}
	}
	if err = w.agree(err); err != nil {
		w.abortStep()
		return
	}
	ts.names[f.Name] = true
	return
}

// agree combines the outcome of a step operation over all partitions, only
// the root touches files so a root failure must fail every rank alike
func (w *VTKWriter) agree(err error) error {
	if !w.parallel() {
		return err
	}
	var failed float64
	if err != nil {
		failed = 1
	}
	anyFailed, cerr := numerics.AllreduceMax(w.Comm, failed)
	switch {
	case err != nil:
		return err
	case cerr != nil:
		return types.Wrap(types.ErrOutput, cerr, "exchange step status")
	case anyFailed > 0:
		return w.newError(types.ErrOutput, "step failed on another rank")
	}
	return nil
}

func (w *VTKWriter) beginStep(t float64, step int) (err error) {
	ts := &timeStep{
		index: step,
		t:     t,
		name:  w.FileName(t, step),
		names: make(map[string]bool),
	}
	w.step = ts
	if !w.root() {
		return
	}
	if ts.file, err = os.CreateTemp(filepath.Dir(ts.name), filepath.Base(ts.name)+".*.tmp"); err != nil {
		w.step = nil
		return types.Wrap(types.ErrOutput, err, "create step file")
	}
	ts.tmpName = ts.file.Name()
	var out io.Writer = ts.file
	if w.Compress {
		level := w.Level
		if level == 0 {
			level = zstd.DefaultCompression
		}
		ts.zw = zstd.NewWriterLevel(ts.file, level)
		out = ts.zw
	}
	ts.w = bufio.NewWriter(out)
	if err = writeGeometry(ts.w, w.domain, t, step); err != nil {
		w.abortStep()
		return types.Wrap(types.ErrOutput, err, "write geometry to %s", ts.name)
	}
	return
}

// gather assembles the values of f in domain point order on the root, other
// ranks get nil
func (w *VTKWriter) gather(f *field.Field) (values []float64, err error) {
	var (
		ids   = [][]int{f.OwnedPoints()}
		owned []float64
		vals  [][]float64
	)
	if owned, err = f.OwnedData(); err != nil {
		return
	}
	vals = [][]float64{owned}
	if w.parallel() {
		if ids, err = numerics.Gather(w.Comm, 0, f.OwnedPoints()); err != nil {
			return nil, types.Wrap(types.ErrOutput, err, "gather point ids")
		}
		if vals, err = numerics.Gather(w.Comm, 0, owned); err != nil {
			return nil, types.Wrap(types.ErrOutput, err, "gather values")
		}
		if !w.root() {
			return
		}
	}
	var (
		n     = w.domain.NumPoints(f.Kind)
		nf    = f.FiberDim
		count int
	)
	values = make([]float64, n*nf)
	for r := range ids {
		for k, pt := range ids[r] {
			idx, ok := w.domain.Index(f.Kind, pt)
			if !ok {
				return nil, w.newError(types.ErrDomain, "%s point %d of rank %d not in domain", f.Kind, pt, r)
			}
			copy(values[idx*nf:(idx+1)*nf], vals[r][k*nf:(k+1)*nf])
			count++
		}
	}
	if count != n {
		return nil, w.newError(types.ErrDomain, "have values for %d of %d %s points, writer needs a communicator",
			count, n, f.Kind)
	}
	return
}

func (w *VTKWriter) writeData(f *field.Field, values []float64) (err error) {
	ts := w.step
	n := w.domain.NumPoints(f.Kind)
	switch {
	case f.Kind == mesh.VertexPoints && !ts.pointData:
		ts.pointData = true
		_, err = fmt.Fprintf(ts.w, "POINT_DATA %d\n", n)
	case f.Kind == mesh.CellPoints && !ts.cellData:
		ts.cellData = true
		_, err = fmt.Fprintf(ts.w, "CELL_DATA %d\n", n)
	}
	if err != nil {
		return
	}
	return writeValues(ts.w, f, n, values)
}

// CloseTimeStep completes the open step file and moves it to its final name
func (w *VTKWriter) CloseTimeStep() (err error) {
	if w.state != writerOpen {
		return w.newError(types.ErrSequence, "close step before open or after close")
	}
	ts := w.step
	if ts == nil {
		return
	}
	w.step = nil
	if w.root() {
		if err = ts.finish(); err == nil {
			err = os.Rename(ts.tmpName, ts.name)
		}
		if err != nil {
			_ = os.Remove(ts.tmpName)
			err = types.Wrap(types.ErrOutput, err, "close %s", ts.name)
		}
	}
	if err = w.agree(err); err != nil {
		if pe, ok := err.(*types.PipelineError); ok {
			pe.WithDomain(w.domain.Label()).WithStep(ts.index, ts.t)
		}
		return
	}
	if !w.root() {
		return
	}
	w.files = append(w.files, ts.name)
	if w.Verbose {
		log.Printf("Wrote %s", ts.name)
	}
	return
}

func (ts *timeStep) finish() (err error) {
	if err = ts.w.Flush(); err != nil {
		_ = ts.file.Close()
		return
	}
	if ts.zw != nil {
		if err = ts.zw.Close(); err != nil {
			_ = ts.file.Close()
			return
		}
	}
	return ts.file.Close()
}

// AbortTimeStep drops the open step, its partial file is removed
func (w *VTKWriter) AbortTimeStep() {
	if w.step != nil {
		w.abortStep()
	}
}

func (w *VTKWriter) abortStep() {
	ts := w.step
	w.step = nil
	if ts.file == nil {
		return
	}
	if ts.zw != nil {
		_ = ts.zw.Close()
	}
	_ = ts.file.Close()
	_ = os.Remove(ts.tmpName)
}

// Close completes any open step and ends the series, calling it on a writer
// that is not open does nothing
func (w *VTKWriter) Close() (err error) {
	if w.state != writerOpen {
		return
	}
	err = w.CloseTimeStep()
	w.state = writerClosed
	return
}
