package parcels

import (
	"fmt"

	"github.com/notargets/gotraj/collective"
	"github.com/notargets/gotraj/memory"
)

// Missing marks trajectory entries not yet computed. It is the netCDF default
// float fill value.
const Missing float32 = 9.9692099683868690e+36

/*
Set is the trajectory state of every parcel over one window. Each sequence
holds NParcels*NTimes entries stored parcel-major, so the samples of one parcel
are contiguous. Time index 0 holds the current position.
*/
type Set struct {
	NParcels, NTimes int
	X, Y, Z          []float32
	U, V, W          []float32
	alloc            memory.Allocator
}

func New(nParcels, nTimes int, alloc memory.Allocator) (s *Set, err error) {
	if nParcels < 1 || nTimes < 2 {
		err = fmt.Errorf("parcel set needs at least one parcel and two times, have %d and %d",
			nParcels, nTimes)
		return
	}
	s = &Set{NParcels: nParcels, NTimes: nTimes, alloc: alloc}
	for _, tgt := range []*[]float32{&s.X, &s.Y, &s.Z, &s.U, &s.V, &s.W} {
		if *tgt, err = alloc.Float32s(nParcels * nTimes); err != nil {
			s.Release()
			s = nil
			return
		}
	}
	return
}

func (s *Set) Idx(p, t int) int {
	return p*s.NTimes + t
}

// Len and Point expose the current positions to the grid planner.
func (s *Set) Len() int { return s.NParcels }

func (s *Set) Point(n int) (x, y, z float32) {
	i := s.Idx(n, 0)
	return s.X[i], s.Y[i], s.Z[i]
}

func (s *Set) Release() {
	if s == nil {
		return
	}
	for _, tgt := range []*[]float32{&s.X, &s.Y, &s.Z, &s.U, &s.V, &s.W} {
		if *tgt != nil {
			s.alloc.Release(*tgt)
			*tgt = nil
		}
	}
}

// SeedSpec is a regular lattice of seed points.
type SeedSpec struct {
	X0, Y0, Z0 float32
	NX, NY, NZ int
	DX, DY, DZ float32
}

func (sp SeedSpec) Count() int {
	return sp.NX * sp.NY * sp.NZ
}

func (sp SeedSpec) String() string {
	return fmt.Sprintf("%d x %d x %d parcels from (%g,%g,%g) spaced (%g,%g,%g)",
		sp.NX, sp.NY, sp.NZ, sp.X0, sp.Y0, sp.Z0, sp.DX, sp.DY, sp.DZ)
}

// Seed places the lattice at time index 0, Z slowest and X fastest, and marks
// every later time and every velocity sample Missing.
func Seed(s *Set, sp SeedSpec) (err error) {
	if sp.Count() != s.NParcels {
		err = fmt.Errorf("seed lattice %s does not match %d parcels", sp, s.NParcels)
		return
	}
	var (
		p int
	)
	for k := 0; k < sp.NZ; k++ {
		for j := 0; j < sp.NY; j++ {
			for i := 0; i < sp.NX; i++ {
				for t := 0; t < s.NTimes; t++ {
					n := s.Idx(p, t)
					s.U[n], s.V[n], s.W[n] = Missing, Missing, Missing
					if t == 0 {
						s.X[n] = sp.X0 + float32(i)*sp.DX
						s.Y[n] = sp.Y0 + float32(j)*sp.DY
						s.Z[n] = sp.Z0 + float32(k)*sp.DZ
						continue
					}
					s.X[n], s.Y[n], s.Z[n] = Missing, Missing, Missing
				}
				p++
			}
		}
	}
	return
}

// CarryOver makes the last position of the finished window the current
// position of the next one.
func (s *Set) CarryOver() {
	last := s.NTimes - 1
	for p := 0; p < s.NParcels; p++ {
		var (
			n0, nl = s.Idx(p, 0), s.Idx(p, last)
		)
		s.X[n0], s.Y[n0], s.Z[n0] = s.X[nl], s.Y[nl], s.Z[nl]
		s.U[n0], s.V[n0], s.W[n0] = Missing, Missing, Missing
	}
}

// Broadcast replaces the positions on every rank with the root's.
func (s *Set) Broadcast(comm *collective.Comm) (err error) {
	for _, buf := range [][]float32{s.X, s.Y, s.Z} {
		if err = comm.Bcast(buf); err != nil {
			return
		}
	}
	return
}
