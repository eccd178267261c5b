package local

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nemanja-m/wordcount/pkg/core"
)

const ManifestFilename = "manifest.yaml"

// Manifest describes a finished run. The partition parameters are recorded
// so another run can check it routes keys the same way.
type Manifest struct {
	JobID       string               `yaml:"job_id"`
	Job         string               `yaml:"job"`
	Partition   core.PartitionConfig `yaml:"partition"`
	Partitions  int                  `yaml:"partitions"`
	Grouping    string               `yaml:"grouping"`
	Format      string               `yaml:"format"`
	InputFiles  []string             `yaml:"input_files"`
	Records     int                  `yaml:"records"`
	Pairs       int                  `yaml:"pairs"`
	Keys        map[int]int          `yaml:"keys"`
	StartedAt   time.Time            `yaml:"started_at"`
	CompletedAt time.Time            `yaml:"completed_at"`
}

func (m *Manifest) Duration() time.Duration {
	return m.CompletedAt.Sub(m.StartedAt)
}

func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestFilename), data, 0o644)
}

func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFilename))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
