package traj

import (
	"fmt"

	"github.com/notargets/gotraj/archive"
)

// State of the window loop.
type State uint8

const (
	Seeding State = iota // window 0, parcels seeded before planning
	Steady
)

func (s State) String() string {
	if s == Seeding {
		return "seeding"
	}
	return "steady"
}

// TimeIndex is the archive index rank r reads in window w. Slot r == workers
// is the instant shared with the first slot of the next window.
func TimeIndex(base, dir, r, w, workers int) int {
	return base + dir*(r+w*workers)
}

func NumWindows(totalSteps, workers int) int {
	return (totalSteps + workers - 1) / workers
}

// checkSchedule verifies every archive index a run touches exists.
func checkSchedule(st *archive.Structure, base, dir, windows, workers int) (err error) {
	for _, w := range []int{0, windows - 1} {
		for _, r := range []int{0, workers} {
			idx := TimeIndex(base, dir, r, w, workers)
			if idx < 0 || idx >= len(st.Times) {
				err = fmt.Errorf("%w: window %d slot %d needs archive index %d, archive holds %d times",
					archive.ErrTimeResolution, w, r, idx, len(st.Times))
				return
			}
		}
	}
	return
}

// windowTimes returns the archive time of every slot of window w.
func windowTimes(st *archive.Structure, base, dir, w, workers int) (times []float64) {
	times = make([]float64, workers+1)
	for r := range times {
		times[r] = st.Times[TimeIndex(base, dir, r, w, workers)]
	}
	return
}
