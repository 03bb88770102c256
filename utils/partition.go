package utils

import "fmt"

// PartitionMap splits the index range [0, MaxIndex) into ParallelDegree
// contiguous partitions, e.g. the elements handled by one assembly worker.
type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(parallelDegree, maxIndex int) (pm *PartitionMap, err error) {
	if parallelDegree < 1 || maxIndex < 0 {
		err = fmt.Errorf("cannot split %d indices into %d partitions", maxIndex, parallelDegree)
		return
	}
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: parallelDegree,
		Partitions:     make([][2]int, parallelDegree),
	}
	for n := 0; n < parallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

// GetBucketRange returns the index range [kMin, kMax) of a partition.
func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

// Split1D returns the range of partition np, the first
// MaxIndex%ParallelDegree partitions holding one index more than the others.
func (pm *PartitionMap) Split1D(np int) (bucket [2]int) {
	size, rem := pm.MaxIndex/pm.ParallelDegree, pm.MaxIndex%pm.ParallelDegree
	bucket[0] = np*size + min(np, rem)
	bucket[1] = bucket[0] + size
	if np < rem {
		bucket[1]++
	}
	return
}
