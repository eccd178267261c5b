package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/wordcount/internal/shared/logging"
	"github.com/nemanja-m/wordcount/pkg/core"
	"github.com/nemanja-m/wordcount/pkg/jobs"
)

const spillBatchSize = 4096

type Config struct {
	Job         jobs.Job
	Input       string
	ShuffleDir  string
	KeepShuffle bool
	Output      string
	Format      string
	Grouping    string
	NumMappers  int
	NumReducers int
	Partition   core.PartitionConfig
}

func (c Config) Validate() error {
	if err := c.Job.Validate(); err != nil {
		return err
	}
	if c.Input == "" {
		return fmt.Errorf("input pattern must be set")
	}
	if c.Output == "" {
		return fmt.Errorf("output directory must be set")
	}
	if c.NumMappers <= 0 {
		return fmt.Errorf("number of mappers must be positive, got %d", c.NumMappers)
	}
	if c.NumReducers <= 0 {
		return fmt.Errorf("number of reducers must be positive, got %d", c.NumReducers)
	}
	return nil
}

type Engine struct {
	config Config
	logger logging.Logger
}

func NewEngine(config Config, logger logging.Logger) *Engine {
	return &Engine{config: config, logger: logger}
}

// Run executes the job: every map task finishes before any reduce task
// starts, and each reduce task sees all values of its keys.
func (e *Engine) Run(ctx context.Context) (*Manifest, error) {
	if err := e.config.Validate(); err != nil {
		return nil, err
	}

	partitioner, err := e.config.Job.NewPartitioner(e.config.Partition)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		JobID:      uuid.New().String(),
		Job:        e.config.Job.Name,
		Partition:  e.config.Partition,
		Partitions: e.config.NumReducers,
		Grouping:   e.config.Grouping,
		Format:     e.config.Format,
		Keys:       make(map[int]int),
		StartedAt:  time.Now().UTC(),
	}

	// Create temporary directory for intermediate shuffle files.
	shuffleDir := e.config.ShuffleDir
	if shuffleDir == "" {
		shuffleDir, err = os.MkdirTemp("", "wordcount-shuffle-"+manifest.JobID+"-*")
		if err != nil {
			return nil, err
		}
	} else {
		shuffleDir = filepath.Join(shuffleDir, manifest.JobID)
		if err := os.MkdirAll(shuffleDir, 0o755); err != nil {
			return nil, err
		}
	}
	if !e.config.KeepShuffle {
		defer os.RemoveAll(shuffleDir)
	}

	inputFiles, err := FindFiles(e.config.Input)
	if err != nil {
		return nil, err
	}
	if len(inputFiles) == 0 {
		return nil, fmt.Errorf("no files matched the input pattern: %s", e.config.Input)
	}
	manifest.InputFiles = inputFiles

	e.logger.Info(
		"Starting job",
		"job_id", manifest.JobID,
		"job", manifest.Job,
		"input_files", len(inputFiles),
		"mappers", e.config.NumMappers,
		"reducers", e.config.NumReducers,
		"shuffle_dir", shuffleDir,
	)

	if err := e.runMapPhase(ctx, shuffleDir, inputFiles, partitioner, manifest); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sink, err := NewSink(e.config.Format, e.config.Output)
	if err != nil {
		return nil, err
	}
	if err := e.runReducePhase(ctx, shuffleDir, sink, manifest); err != nil {
		sink.Close()
		return nil, err
	}
	if err := sink.Close(); err != nil {
		return nil, err
	}

	manifest.CompletedAt = time.Now().UTC()
	if err := WriteManifest(e.config.Output, manifest); err != nil {
		return nil, err
	}

	e.logger.Info(
		"Job completed",
		"job_id", manifest.JobID,
		"records", manifest.Records,
		"pairs", manifest.Pairs,
		"duration", manifest.Duration().String(),
	)
	return manifest, nil
}

func (e *Engine) runMapPhase(
	ctx context.Context,
	shuffleDir string,
	inputFiles []string,
	partitioner core.Partitioner,
	manifest *Manifest,
) error {
	// Partition input files so that each mapper gets a roughly equal share.
	var inputPartitions = make(map[int][]string)
	for i, file := range inputFiles {
		mapperId := i % e.config.NumMappers
		inputPartitions[mapperId] = append(inputPartitions[mapperId], file)
	}

	var (
		mu      sync.Mutex
		errs    []error
		records atomic.Int64
		pairs   atomic.Int64
	)

	mapperPool := NewPool(e.config.NumMappers)
	mapperPool.Start()
	for mapperId := 0; mapperId < e.config.NumMappers; mapperId++ {
		files := inputPartitions[mapperId]
		if len(files) == 0 {
			continue
		}
		err := mapperPool.Submit(ctx, func() {
			e.logger.Debug("Starting map task", "job_id", manifest.JobID, "mapper_id", mapperId)
			stats, err := e.runMapTask(ctx, mapperId, shuffleDir, files, partitioner)
			if err != nil {
				e.logger.Error("Map task failed", "job_id", manifest.JobID, "mapper_id", mapperId, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("map task %d: %w", mapperId, err))
				mu.Unlock()
				return
			}
			records.Add(int64(stats.records))
			pairs.Add(int64(stats.pairs))
			e.logger.Debug("Completed map task", "job_id", manifest.JobID, "mapper_id", mapperId, "pairs", stats.pairs)
		})
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
	}
	mapperPool.Close()

	manifest.Records = int(records.Load())
	manifest.Pairs = int(pairs.Load())
	return errors.Join(errs...)
}

type mapStats struct {
	records int
	pairs   int
}

func (e *Engine) runMapTask(
	ctx context.Context,
	mapperId int,
	shuffleDir string,
	filePaths []string,
	partitioner core.Partitioner,
) (stats mapStats, err error) {
	// Each mapper writes at most one spill file per reducer, and each reducer
	// reads its input from all mappers.
	mapDir := filepath.Join(shuffleDir, fmt.Sprintf("map-%04d", mapperId))
	spills := make(map[int]*SpillWriter)
	defer func() {
		for _, w := range spills {
			stats.pairs += w.Count()
			if closeErr := w.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}
	}()

	numPartitions := e.config.NumReducers
	for _, filePath := range filePaths {
		lines, err := ReadLines(filePath)
		if err != nil {
			return stats, err
		}

		for _, line := range lines {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			record := line.Record()
			stats.records++
			for kv := range e.config.Job.Map(record.Key, record.Value) {
				partition := partitioner.Partition(kv.Key, numPartitions)
				if err := core.CheckPartition(kv.Key, partition, numPartitions); err != nil {
					return stats, err
				}

				w, ok := spills[partition]
				if !ok {
					w, err = CreateSpill(filepath.Join(mapDir, PartitionFilename("part", partition, "bin")))
					if err != nil {
						return stats, err
					}
					spills[partition] = w
				}
				if err := w.Write(kv); err != nil {
					return stats, err
				}
			}
		}
	}

	return stats, nil
}

func (e *Engine) runReducePhase(ctx context.Context, shuffleDir string, sink Sink, manifest *Manifest) error {
	var (
		mu   sync.Mutex
		errs []error
	)

	reducerPool := NewPool(e.config.NumReducers)
	reducerPool.Start()
	for reducerId := 0; reducerId < e.config.NumReducers; reducerId++ {
		err := reducerPool.Submit(ctx, func() {
			e.logger.Debug("Starting reduce task", "job_id", manifest.JobID, "partition", reducerId)
			keys, err := e.runReduceTask(ctx, reducerId, shuffleDir, sink)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Error("Reduce task failed", "job_id", manifest.JobID, "partition", reducerId, "error", err)
				errs = append(errs, fmt.Errorf("reduce task %d: %w", reducerId, err))
				return
			}
			manifest.Keys[reducerId] = keys
			e.logger.Debug("Completed reduce task", "job_id", manifest.JobID, "partition", reducerId, "keys", keys)
		})
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
	}
	reducerPool.Close()

	return errors.Join(errs...)
}

func (e *Engine) runReduceTask(ctx context.Context, reducerId int, shuffleDir string, sink Sink) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	pattern := filepath.Join(shuffleDir, "map-*", PartitionFilename("part", reducerId, "bin"))
	matches, err := FindFiles(pattern)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		e.logger.Debug("No input files found, producing empty output", "partition", reducerId)
	}

	grouper, err := NewGrouper(e.config.Grouping, shuffleDir, reducerId)
	if err != nil {
		return 0, err
	}
	defer grouper.Close()

	// Merge all spill files for this reducer.
	batch := make([]core.Pair, 0, spillBatchSize)
	for _, file := range matches {
		err := ReadSpill(file, func(kv core.Pair) error {
			batch = append(batch, kv)
			if len(batch) < spillBatchSize {
				return nil
			}
			err := grouper.Add(batch...)
			batch = batch[:0]
			return err
		})
		if err != nil {
			return 0, err
		}
	}
	if err := grouper.Add(batch...); err != nil {
		return 0, err
	}

	var results []core.Pair
	err = grouper.Each(func(key string, values []int) error {
		results = append(results, core.Pair{Key: key, Value: e.config.Job.Reduce(key, values)})
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := sink.WritePartition(ctx, reducerId, results); err != nil {
		return 0, err
	}
	return len(results), nil
}
