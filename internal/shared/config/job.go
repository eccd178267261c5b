package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/nemanja-m/wordcount/pkg/core"
)

// JobConfig contains all configuration for a local job run.
type JobConfig struct {
	Job       string               `mapstructure:"job"`
	Input     string               `mapstructure:"input"`
	Output    OutputConfig         `mapstructure:"output"`
	Shuffle   ShuffleConfig        `mapstructure:"shuffle"`
	Mappers   int                  `mapstructure:"mappers"`
	Reducers  int                  `mapstructure:"reducers"`
	Partition core.PartitionConfig `mapstructure:"partition"`
	Logging   LoggingConfig        `mapstructure:"logging"`
}

// OutputConfig selects where and how results are written.
type OutputConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// ShuffleConfig controls intermediate data handling.
type ShuffleConfig struct {
	Dir      string `mapstructure:"dir"`
	Keep     bool   `mapstructure:"keep"`
	Grouping string `mapstructure:"grouping"`
}

// LoadJob loads the job configuration from the given path.
// If configPath is empty, it looks for wordcount.yaml in the config/ directory.
// Environment variables with WORDCOUNT_ prefix override config file values.
func LoadJob(configPath string) (*JobConfig, error) {
	v := viper.New()

	v.SetDefault("job", "wordcount")
	v.SetDefault("input", "")
	v.SetDefault("output.path", "")
	v.SetDefault("output.format", "tsv")
	v.SetDefault("shuffle.dir", "")
	v.SetDefault("shuffle.keep", false)
	v.SetDefault("shuffle.grouping", "memory")
	v.SetDefault("mappers", 4)
	v.SetDefault("reducers", 4)
	v.SetDefault("partition.strategy", core.StrategyRolling)
	v.SetDefault("partition.base", core.DefaultBase)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("wordcount")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("WORDCOUNT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg JobConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}
