package collective

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrCollectiveTransfer = errors.New("collective transfer error")

type opKind uint8

const (
	opBarrier opKind = iota
	opGather
	opBcast
)

func (k opKind) String() string {
	switch k {
	case opBarrier:
		return "barrier"
	case opGather:
		return "gather"
	case opBcast:
		return "bcast"
	}
	return "unknown"
}

type message struct {
	from int
	seq  uint64
	op   opKind
	data []float32
}

/*
World is a fixed group of SPMD ranks running as goroutines. Ranks communicate
only through the collectives of their Comm: every rank must call the same
collectives in the same order. All traffic is routed through the root, which
collects one message per peer and releases them.

Errors are never retried. The first failure aborts the world; every pending
and later collective on every rank then returns the abort error.
*/
type World struct {
	size, root int
	inbox      []chan *message
	done       chan struct{}
	once       sync.Once
	cause      error
}

func NewWorld(size int) (w *World) {
	if size < 1 {
		panic(fmt.Errorf("world size must be positive, have %d", size))
	}
	w = &World{
		size:  size,
		root:  0,
		inbox: make([]chan *message, size),
		done:  make(chan struct{}),
	}
	for r := 0; r < size; r++ {
		if r == w.root {
			w.inbox[r] = make(chan *message, size)
		} else {
			w.inbox[r] = make(chan *message, 1)
		}
	}
	return
}

func (w *World) Size() int { return w.size }

func (w *World) Root() int { return w.root }

// Comm returns the communicator for one rank. A Comm is owned by the
// goroutine running that rank and must not be shared.
func (w *World) Comm(rank int) *Comm {
	if rank < 0 || rank >= w.size {
		panic(fmt.Errorf("rank %d out of range for world of size %d", rank, w.size))
	}
	c := &Comm{
		world: w,
		rank:  rank,
	}
	if rank == w.root {
		c.stash = make(map[uint64][]*message)
	}
	return c
}

// Abort terminates the world. Only the first cause is kept.
func (w *World) Abort(cause error) {
	w.once.Do(func() {
		if cause == nil {
			cause = errors.New("aborted")
		}
		w.cause = cause
		close(w.done)
	})
}

// Cause returns the error that aborted the world, or nil.
func (w *World) Cause() error {
	select {
	case <-w.done:
		return w.cause
	default:
		return nil
	}
}

func (w *World) abortErr() error {
	return fmt.Errorf("%w: world aborted: %v", ErrCollectiveTransfer, w.cause)
}

type Comm struct {
	world *World
	rank  int
	seq   uint64
	stash map[uint64][]*message
}

func (c *Comm) Rank() int    { return c.rank }
func (c *Comm) Size() int    { return c.world.size }
func (c *Comm) Root() int    { return c.world.root }
func (c *Comm) IsRoot() bool { return c.rank == c.world.root }
func (c *Comm) World() *World {
	return c.world
}

func (c *Comm) fail(format string, args ...interface{}) error {
	err := fmt.Errorf("%w: rank %d: %s", ErrCollectiveTransfer, c.rank, fmt.Sprintf(format, args...))
	c.world.Abort(err)
	return err
}

func (c *Comm) send(to int, m *message) error {
	select {
	case <-c.world.done:
		return c.world.abortErr()
	default:
	}
	select {
	case c.world.inbox[to] <- m:
		return nil
	case <-c.world.done:
		return c.world.abortErr()
	}
}

func (c *Comm) recv() (m *message, err error) {
	select {
	case m = <-c.world.inbox[c.rank]:
	case <-c.world.done:
		err = c.world.abortErr()
	}
	return
}

// collect gathers one message from every peer for the current sequence on the
// root. Messages belonging to later collectives are stashed.
func (c *Comm) collect(op opKind) (msgs []*message, err error) {
	var (
		want = c.world.size - 1
	)
	msgs = c.stash[c.seq]
	delete(c.stash, c.seq)
	for len(msgs) < want {
		var m *message
		if m, err = c.recv(); err != nil {
			return
		}
		if m.seq != c.seq {
			c.stash[m.seq] = append(c.stash[m.seq], m)
			continue
		}
		msgs = append(msgs, m)
	}
	for _, m := range msgs {
		if m.op != op {
			err = c.fail("rank %d called %s while root called %s", m.from, m.op, op)
			return
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].from < msgs[j].from })
	return
}

// await receives the root's message for the current sequence on a non-root.
func (c *Comm) await(op opKind) (m *message, err error) {
	if m, err = c.recv(); err != nil {
		return
	}
	if m.seq != c.seq || m.op != op {
		err = c.fail("expected %s #%d from root, received %s #%d", op, c.seq, m.op, m.seq)
	}
	return
}

// Barrier blocks until every rank has called Barrier.
func (c *Comm) Barrier() (err error) {
	c.seq++
	if !c.IsRoot() {
		if err = c.send(c.world.root, &message{from: c.rank, seq: c.seq, op: opBarrier}); err != nil {
			return
		}
		_, err = c.await(opBarrier)
		return
	}
	if _, err = c.collect(opBarrier); err != nil {
		return
	}
	for r := 0; r < c.world.size; r++ {
		if r == c.rank {
			continue
		}
		if err = c.send(r, &message{from: c.rank, seq: c.seq, op: opBarrier}); err != nil {
			return
		}
	}
	return
}

/*
Gather moves count elements of src from every rank into dst on the root,
placing rank r's elements at dst[r*count:(r+1)*count]. Only the root supplies
dst, which must hold count*Size elements. Non-roots return as soon as their
elements are handed off; src may be reused immediately.
*/
func (c *Comm) Gather(src, dst []float32, count int) (err error) {
	c.seq++
	if len(src) != count {
		return c.fail("gather source holds %d elements, expected %d", len(src), count)
	}
	if !c.IsRoot() {
		data := make([]float32, count)
		copy(data, src)
		return c.send(c.world.root, &message{from: c.rank, seq: c.seq, op: opGather, data: data})
	}
	if len(dst) != count*c.world.size {
		return c.fail("gather destination holds %d elements, expected %d x %d",
			len(dst), count, c.world.size)
	}
	copy(dst[c.rank*count:(c.rank+1)*count], src)
	var (
		msgs []*message
	)
	if msgs, err = c.collect(opGather); err != nil {
		return
	}
	for _, m := range msgs {
		if len(m.data) != count {
			return c.fail("rank %d sent %d elements, expected %d", m.from, len(m.data), count)
		}
		copy(dst[m.from*count:(m.from+1)*count], m.data)
	}
	return
}

// Bcast copies the root's buf into buf on every other rank.
func (c *Comm) Bcast(buf []float32) (err error) {
	c.seq++
	if c.IsRoot() {
		for r := 0; r < c.world.size; r++ {
			if r == c.rank {
				continue
			}
			data := make([]float32, len(buf))
			copy(data, buf)
			if err = c.send(r, &message{from: c.rank, seq: c.seq, op: opBcast, data: data}); err != nil {
				return
			}
		}
		return
	}
	var (
		m *message
	)
	if m, err = c.await(opBcast); err != nil {
		return
	}
	if len(m.data) != len(buf) {
		return c.fail("bcast carried %d elements, local buffer holds %d", len(m.data), len(buf))
	}
	copy(buf, m.data)
	return
}
