package jobs

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/nemanja-m/wordcount/pkg/core"
)

var ErrJobNotFound = errors.New("job not found")

// Job bundles the user plugins the engine calls.
type Job struct {
	Name        string
	Description string

	Map    core.MapFunc
	Reduce core.ReduceFunc

	// Partitioner builds the job's key router from the job configuration.
	// When nil, core.NewPartitioner is used.
	Partitioner func(core.PartitionConfig) (core.Partitioner, error)
}

func (j Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("job name must be set")
	}
	if j.Map == nil {
		return fmt.Errorf("job %s: map function must be set", j.Name)
	}
	if j.Reduce == nil {
		return fmt.Errorf("job %s: reduce function must be set", j.Name)
	}
	return nil
}

func (j Job) NewPartitioner(config core.PartitionConfig) (core.Partitioner, error) {
	if j.Partitioner == nil {
		return core.NewPartitioner(config)
	}
	return j.Partitioner(config)
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Job)
)

func Register(job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[job.Name]; exists {
		return fmt.Errorf("job already registered: %s", job.Name)
	}
	registry[job.Name] = job
	return nil
}

func Get(name string) (Job, error) {
	mu.RLock()
	defer mu.RUnlock()
	job, exists := registry[name]
	if !exists {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return job, nil
}

func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
