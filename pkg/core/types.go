package core

import "iter"

// Record is one input unit handed to a mapper.
type Record struct {
	Key   string
	Value string
}

// Pair is an intermediate key/value emitted by a mapper. Reducers return
// their aggregates as pairs as well.
type Pair struct {
	Key   string
	Value int
}

type MapFunc func(key, value string) iter.Seq[Pair]

type ReduceFunc func(key string, values []int) int

type PartitionFunc func(key string, numPartitions int) int
