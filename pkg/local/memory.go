package local

import (
	"github.com/nemanja-m/wordcount/pkg/core"
	"github.com/nemanja-m/wordcount/pkg/jobs"
)

// RunInMemory runs map, partition, group and reduce over records without
// touching the filesystem. Results are keyed by partition and sorted by key.
func RunInMemory(job jobs.Job, partitioner core.Partitioner, numPartitions int, records []core.Record) (map[int][]core.Pair, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	partitioned, err := runShuffle(job, partitioner, numPartitions, records)
	if err != nil {
		return nil, err
	}
	return runReduce(job, partitioned)
}

func runShuffle(job jobs.Job, partitioner core.Partitioner, numPartitions int, records []core.Record) (map[int]*MemoryGrouper, error) {
	var partitioned = make(map[int]*MemoryGrouper)
	for _, record := range records {
		for kv := range job.Map(record.Key, record.Value) {
			partition := partitioner.Partition(kv.Key, numPartitions)
			if err := core.CheckPartition(kv.Key, partition, numPartitions); err != nil {
				return nil, err
			}

			g, ok := partitioned[partition]
			if !ok {
				g = &MemoryGrouper{}
				partitioned[partition] = g
			}
			g.Add(kv)
		}
	}
	return partitioned, nil
}

func runReduce(job jobs.Job, partitioned map[int]*MemoryGrouper) (map[int][]core.Pair, error) {
	var results = make(map[int][]core.Pair)
	for part, g := range partitioned {
		err := g.Each(func(key string, values []int) error {
			results[part] = append(results[part], core.Pair{Key: key, Value: job.Reduce(key, values)})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
