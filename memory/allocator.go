package memory

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"
)

var ErrAllocation = errors.New("allocation failure")

// Capability tags where an allocation must be visible. Exactly one rank, the
// coordinator, allocates with HostAndDevice; all others use Host.
type Capability uint8

const (
	Host Capability = iota
	HostAndDevice
)

func (c Capability) String() string {
	switch c {
	case Host:
		return "host"
	case HostAndDevice:
		return "host+device"
	}
	return fmt.Sprintf("Capability(%d)", uint8(c))
}

type Allocator interface {
	Capability() Capability
	Float32s(n int) ([]float32, error)
	Release(buf []float32)
	InUse() int64
}

// Arena hands out float32 buffers and accounts their size against an optional
// limit. A HostAndDevice arena also keeps a registry of the live buffers so a
// device-side consumer can mirror them.
type Arena struct {
	capability Capability
	limit      int64 // bytes, 0 = unlimited
	used       *atomic.Int64
	mu         sync.Mutex
	mirrored   map[*float32]int
}

func NewArena(capability Capability, limitBytes int64) (a *Arena) {
	a = &Arena{
		capability: capability,
		limit:      limitBytes,
		used:       atomic.NewInt64(0),
	}
	if capability == HostAndDevice {
		a.mirrored = make(map[*float32]int)
	}
	return
}

// ForRank selects the allocation strategy from the process role.
func ForRank(rank, root int, limitBytes int64) *Arena {
	if rank == root {
		return NewArena(HostAndDevice, limitBytes)
	}
	return NewArena(Host, limitBytes)
}

func (a *Arena) Capability() Capability { return a.capability }

func (a *Arena) InUse() int64 { return a.used.Load() }

func (a *Arena) Float32s(n int) (buf []float32, err error) {
	if n <= 0 {
		err = fmt.Errorf("%w: %s request for %d elements", ErrAllocation, a.capability, n)
		return
	}
	var (
		size = int64(n) * 4
	)
	if total := a.used.Add(size); a.limit > 0 && total > a.limit {
		a.used.Sub(size)
		err = fmt.Errorf("%w: %s request for %d bytes exceeds limit, %d of %d bytes in use",
			ErrAllocation, a.capability, size, total-size, a.limit)
		return
	}
	buf = make([]float32, n)
	if a.mirrored != nil {
		a.mu.Lock()
		a.mirrored[&buf[0]] = n
		a.mu.Unlock()
	}
	return
}

func (a *Arena) Release(buf []float32) {
	if len(buf) == 0 {
		return
	}
	var (
		n = cap(buf)
	)
	if a.mirrored != nil {
		a.mu.Lock()
		if mn, ok := a.mirrored[&buf[0]]; ok {
			n = mn
			delete(a.mirrored, &buf[0])
		}
		a.mu.Unlock()
	}
	a.used.Sub(int64(n) * 4)
}

// Mirrored reports the number of live buffers registered for device mirroring.
func (a *Arena) Mirrored() (count int) {
	if a.mirrored == nil {
		return
	}
	a.mu.Lock()
	count = len(a.mirrored)
	a.mu.Unlock()
	return
}
