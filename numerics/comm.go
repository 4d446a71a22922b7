package numerics

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAborted is returned from a collective when another partition failed
var ErrAborted = errors.New("collective aborted by a failed partition")

// world is the shared rendezvous for all partitions of a runtime. Every
// collective is one exchange: each rank posts a payload into the inbox of the
// current generation, the last rank to arrive advances the generation and
// wakes the others, who then read the whole inbox.
type world struct {
	size    int
	mu      sync.Mutex
	cond    *sync.Cond
	gen     uint64
	arrived int
	inbox   []any
	aborted bool
}

func newWorld(size int) (w *world) {
	w = &world{
		size:  size,
		inbox: make([]any, size),
	}
	w.cond = sync.NewCond(&w.mu)
	return
}

func (w *world) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.aborted = false
	w.arrived = 0
	w.gen++
	w.inbox = make([]any, w.size)
}

func (w *world) abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.aborted = true
	w.cond.Broadcast()
}

func (w *world) exchange(rank int, payload any) (box []any, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.aborted {
		return nil, ErrAborted
	}
	box = w.inbox
	box[rank] = payload
	w.arrived++
	gen := w.gen
	if w.arrived == w.size {
		w.arrived = 0
		w.gen++
		w.inbox = make([]any, w.size)
		w.cond.Broadcast()
		return
	}
	for gen == w.gen && !w.aborted {
		w.cond.Wait()
	}
	if gen == w.gen {
		return nil, ErrAborted
	}
	return
}

// Comm is the view a single partition has of the world
type Comm struct {
	rank  int
	world *world
}

func (c *Comm) Rank() int { return c.rank }

func (c *Comm) Size() int { return c.world.size }

func (c *Comm) IsRoot() bool { return c.rank == 0 }

// Barrier blocks until every partition has reached it
func (c *Comm) Barrier() (err error) {
	_, err = c.world.exchange(c.rank, nil)
	return
}

// Gather collects one slice from every partition on root, indexed by rank.
// Non root partitions receive nil.
func Gather[T any](c *Comm, root int, values []T) (all [][]T, err error) {
	if root < 0 || root >= c.Size() {
		err = fmt.Errorf("gather root %d out of range [0,%d)", root, c.Size())
		return
	}
	var box []any
	if box, err = c.world.exchange(c.rank, clone(values)); err != nil {
		return
	}
	if c.rank != root {
		return
	}
	all = unpack[T](box)
	return
}

// Allgather collects one slice from every partition on every partition
func Allgather[T any](c *Comm, values []T) (all [][]T, err error) {
	var box []any
	if box, err = c.world.exchange(c.rank, clone(values)); err != nil {
		return
	}
	all = unpack[T](box)
	return
}

// AllreduceMax returns the largest value posted by any partition
func AllreduceMax(c *Comm, value float64) (max float64, err error) {
	var all [][]float64
	if all, err = Allgather(c, []float64{value}); err != nil {
		return
	}
	max = all[0][0]
	for _, v := range all[1:] {
		if v[0] > max {
			max = v[0]
		}
	}
	return
}

func clone[T any](values []T) []T {
	out := make([]T, len(values))
	copy(out, values)
	return out
}

func unpack[T any](box []any) (all [][]T) {
	all = make([][]T, len(box))
	for r, p := range box {
		all[r] = p.([]T)
	}
	return
}
