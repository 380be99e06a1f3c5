package utils

import "sync"

// PartitionMap splits the index range [0, MaxIndex) into ParallelDegree
// contiguous buckets whose sizes differ by at most one.
type PartitionMap struct {
	MaxIndex       int
	ParallelDegree int
	Partitions     [][2]int // Beginning and end (exclusive) index of each bucket
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

// GetBucket returns the bucket holding index and its range, or bucket -1.
func (pm *PartitionMap) GetBucket(index int) (bucketNum, min, max int) {
	_, bucketNum, min, max = pm.probe(index)
	return
}

func (pm *PartitionMap) probe(index int) (tryCount, bucketNum, min, max int) {
	if index < 0 || index >= pm.MaxIndex {
		return 0, -1, 0, 0
	}
	bucketNum = int(float64(pm.ParallelDegree*index) / float64(pm.MaxIndex))
	for !(pm.Partitions[bucketNum][0] <= index && pm.Partitions[bucketNum][1] > index) {
		if pm.Partitions[bucketNum][0] > index {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum == -1 || bucketNum == pm.ParallelDegree {
			return 0, -1, 0, 0
		}
		tryCount++
	}
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (min, max int) {
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketDimension(bn int) (size int) {
	if bn == -1 {
		size = pm.MaxIndex
		return
	}
	var (
		i1, i2 = pm.GetBucketRange(bn)
	)
	size = i2 - i1
	return
}

func (pm *PartitionMap) Split1D(bucket int) (r [2]int) {
	var (
		Npart            = pm.MaxIndex / (pm.ParallelDegree)
		startAdd, endAdd int
		remainder        = pm.MaxIndex % pm.ParallelDegree
	)
	if remainder != 0 { // the first buckets take one extra index each
		if bucket+1 > remainder {
			startAdd = remainder
		} else {
			startAdd = bucket
			endAdd = 1
		}
	}
	r[0] = bucket*Npart + startAdd
	r[1] = r[0] + Npart + endAdd
	return
}

// Each runs fn on every non-empty bucket concurrently and waits for all of
// them.
func (pm *PartitionMap) Each(fn func(bucket, min, max int)) {
	var (
		wg sync.WaitGroup
	)
	for bn := 0; bn < pm.ParallelDegree; bn++ {
		min, max := pm.GetBucketRange(bn)
		if min == max {
			continue
		}
		wg.Add(1)
		go func(bn, min, max int) {
			defer wg.Done()
			fn(bn, min, max)
		}(bn, min, max)
	}
	wg.Wait()
}
