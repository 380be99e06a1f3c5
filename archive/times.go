package archive

import (
	"fmt"
	"math"
)

// DefaultTimeTolerance is the largest distance between a requested start time
// and an archive time that still resolves.
const DefaultTimeTolerance = 9999.

// NearestTimeIndex returns the index of the archive time closest to t.
func NearestTimeIndex(times []float64, t, tolerance float64) (nearest int, err error) {
	var (
		minDist = math.Inf(1)
	)
	nearest = -1
	for idx, at := range times {
		if d := math.Abs(t - at); d < minDist {
			minDist, nearest = d, idx
		}
	}
	if nearest < 0 || minDist > tolerance {
		err = fmt.Errorf("%w: no archive time within %g of %g (%d times available)",
			ErrTimeResolution, tolerance, t, len(times))
		nearest = -1
	}
	return
}
