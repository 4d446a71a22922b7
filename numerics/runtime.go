package numerics

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/gocrust/types"
)

type runtimeState int32

const (
	created runtimeState = iota
	ready
	finalized
)

/*
Runtime stands in for the numerics library lifecycle. It is initialized once,
finalized once, and every field operation in between draws its storage from
here. Partitions are run in-process, one goroutine per partition, and talk to
each other only through the collectives on Comm.
*/
type Runtime struct {
	NumPartitions int
	Verbose       bool
	state         atomic.Int32
	world         *world
	mu            sync.Mutex
	nextID        uint64
	handles       map[uint64]*Storage
}

func New(numPartitions int) (rt *Runtime) {
	if numPartitions < 1 {
		numPartitions = 1
	}
	rt = &Runtime{
		NumPartitions: numPartitions,
		handles:       make(map[uint64]*Storage),
	}
	return
}

func (rt *Runtime) Initialize() (err error) {
	if !rt.state.CompareAndSwap(int32(created), int32(ready)) {
		return types.NewError(types.ErrRuntimeNotReady, "runtime already initialized")
	}
	rt.world = newWorld(rt.NumPartitions)
	if rt.Verbose {
		log.Printf("numerics runtime initialized with %d partitions", rt.NumPartitions)
	}
	return
}

// Finalize closes the bracket. Storage still held by fields is reported as an
// error, the runtime is finalized regardless.
func (rt *Runtime) Finalize() (err error) {
	if !rt.state.CompareAndSwap(int32(ready), int32(finalized)) {
		return types.NewError(types.ErrRuntimeNotReady, "runtime finalized before initialization or twice")
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.handles) != 0 {
		labels := make([]string, 0, len(rt.handles))
		for _, s := range rt.handles {
			labels = append(labels, s.label)
		}
		sort.Strings(labels)
		err = types.NewError(types.ErrAllocation, "%d storage handles not released at finalize: %v",
			len(labels), labels)
	}
	if rt.Verbose {
		log.Printf("numerics runtime finalized")
	}
	return
}

// Ready returns nil when called inside the Initialize/Finalize bracket
func (rt *Runtime) Ready() error {
	if rt == nil {
		return types.NewError(types.ErrRuntimeNotReady, "nil runtime")
	}
	switch runtimeState(rt.state.Load()) {
	case ready:
		return nil
	case created:
		return types.NewError(types.ErrRuntimeNotReady, "runtime not initialized")
	default:
		return types.NewError(types.ErrRuntimeNotReady, "runtime already finalized")
	}
}

// Comm returns the communicator of one partition
func (rt *Runtime) Comm(rank int) (c *Comm, err error) {
	if err = rt.Ready(); err != nil {
		return
	}
	if rank < 0 || rank >= rt.NumPartitions {
		err = fmt.Errorf("rank %d out of range [0,%d)", rank, rt.NumPartitions)
		return
	}
	return &Comm{rank: rank, world: rt.world}, nil
}

// Run executes fn once per partition, each in its own goroutine, and waits
// for all of them. The first failure aborts the collectives so that the other
// partitions return instead of blocking forever.
func (rt *Runtime) Run(fn func(c *Comm) error) (err error) {
	if err = rt.Ready(); err != nil {
		return
	}
	rt.world.reset()
	var g errgroup.Group
	for rank := 0; rank < rt.NumPartitions; rank++ {
		c := &Comm{rank: rank, world: rt.world}
		g.Go(func() error {
			if err := fn(c); err != nil {
				rt.world.abort()
				return fmt.Errorf("partition %d: %w", c.rank, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Allocate hands out a zero filled storage handle of n values
func (rt *Runtime) Allocate(label string, n int) (s *Storage, err error) {
	if err = rt.Ready(); err != nil {
		return
	}
	if n < 0 {
		err = types.NewError(types.ErrAllocation, "negative storage size %d for %s", n, label)
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.nextID++
	s = &Storage{
		id:    rt.nextID,
		label: label,
		rt:    rt,
		data:  make([]float64, n),
	}
	rt.handles[s.id] = s
	return
}

// Outstanding is the number of storage handles not yet released
func (rt *Runtime) Outstanding() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.handles)
}

func (rt *Runtime) release(s *Storage) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	delete(rt.handles, s.id)
}

// Storage is a handle to one block of values owned by exactly one field
type Storage struct {
	id       uint64
	label    string
	rt       *Runtime
	data     []float64
	released bool
}

func (s *Storage) Label() string { return s.label }

// Data is nil once the handle is released
func (s *Storage) Data() []float64 { return s.data }

func (s *Storage) Runtime() *Runtime { return s.rt }

func (s *Storage) Released() bool { return s.released }

// Release returns the handle to the runtime, it reports false when the handle
// had already been released.
func (s *Storage) Release() bool {
	if s == nil || s.released {
		return false
	}
	s.released = true
	s.data = nil
	s.rt.release(s)
	return true
}

// Swap exchanges the values held by two handles of equal size
func (s *Storage) Swap(o *Storage) error {
	if s.released || o.released {
		return types.NewError(types.ErrAllocation, "swap of released storage %s/%s", s.label, o.label)
	}
	if len(s.data) != len(o.data) {
		return types.NewError(types.ErrAllocation, "swap of storage with different sizes %d/%d",
			len(s.data), len(o.data))
	}
	s.data, o.data = o.data, s.data
	return nil
}
