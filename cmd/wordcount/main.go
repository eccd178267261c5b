package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/nemanja-m/wordcount/internal/shared/config"
	"github.com/nemanja-m/wordcount/internal/shared/logging"
	"github.com/nemanja-m/wordcount/pkg/core"
	"github.com/nemanja-m/wordcount/pkg/jobs"
	"github.com/nemanja-m/wordcount/pkg/local"

	_ "github.com/nemanja-m/wordcount/pkg/jobs/wordcount"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "wordcount",
		Usage:     "run MapReduce jobs on the local engine",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			runCommand(),
			jobsCommand(),
			partitionCommand(),
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run a registered job",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to config file"},
			&cli.StringFlag{Name: "job", Usage: "job to run (see 'jobs')"},
			&cli.StringFlag{Name: "input", Usage: "input files glob pattern"},
			&cli.StringFlag{Name: "output", Usage: "output directory"},
			&cli.StringFlag{Name: "format", Usage: "output format (tsv, sqlite)"},
			&cli.StringFlag{Name: "shuffle", Usage: "directory for intermediate files"},
			&cli.BoolFlag{Name: "keep-shuffle", Usage: "keep intermediate files after the job"},
			&cli.StringFlag{Name: "grouping", Usage: "reduce-side grouping (memory, bbolt)"},
			&cli.IntFlag{Name: "mappers", Usage: "number of mappers"},
			&cli.IntFlag{Name: "reducers", Usage: "number of reducers (partitions)"},
			&cli.StringFlag{Name: "strategy", Usage: "partition strategy (rolling, fnv, murmur3, ordinal)"},
			&cli.Uint64Flag{Name: "base", Usage: "rolling hash base"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadJob(c.String("config"))
			if err != nil {
				return err
			}
			applyFlags(c, cfg)

			job, err := jobs.Get(cfg.Job)
			if err != nil {
				return fmt.Errorf("%w. Available jobs: %v", err, jobs.List())
			}

			logger := logging.NewLogger(cfg.Logging)
			engine := local.NewEngine(local.Config{
				Job:         job,
				Input:       cfg.Input,
				ShuffleDir:  cfg.Shuffle.Dir,
				KeepShuffle: cfg.Shuffle.Keep,
				Output:      cfg.Output.Path,
				Format:      cfg.Output.Format,
				Grouping:    cfg.Shuffle.Grouping,
				NumMappers:  cfg.Mappers,
				NumReducers: cfg.Reducers,
				Partition:   cfg.Partition,
			}, logger)

			manifest, err := engine.Run(c.Context)
			if err != nil {
				return fmt.Errorf("job %s failed: %w", cfg.Job, err)
			}

			fmt.Fprintf(c.App.Writer, "job %s completed: %d records, %d pairs, output in %s\n",
				manifest.JobID, manifest.Records, manifest.Pairs, cfg.Output.Path)
			return nil
		},
	}
}

func applyFlags(c *cli.Context, cfg *config.JobConfig) {
	if c.IsSet("job") {
		cfg.Job = c.String("job")
	}
	if c.IsSet("input") {
		cfg.Input = c.String("input")
	}
	if c.IsSet("output") {
		cfg.Output.Path = c.String("output")
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.IsSet("shuffle") {
		cfg.Shuffle.Dir = c.String("shuffle")
	}
	if c.IsSet("keep-shuffle") {
		cfg.Shuffle.Keep = c.Bool("keep-shuffle")
	}
	if c.IsSet("grouping") {
		cfg.Shuffle.Grouping = c.String("grouping")
	}
	if c.IsSet("mappers") {
		cfg.Mappers = c.Int("mappers")
	}
	if c.IsSet("reducers") {
		cfg.Reducers = c.Int("reducers")
	}
	if c.IsSet("strategy") {
		cfg.Partition.Strategy = c.String("strategy")
	}
	if c.IsSet("base") {
		cfg.Partition.Base = c.Uint64("base")
	}
}

func jobsCommand() *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "list registered jobs",
		Action: func(c *cli.Context) error {
			for _, name := range jobs.List() {
				job, err := jobs.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%s\t%s\n", job.Name, job.Description)
			}
			return nil
		},
	}
}

func partitionCommand() *cli.Command {
	return &cli.Command{
		Name:      "partition",
		Usage:     "print the partition each key routes to",
		ArgsUsage: "KEY...",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "partitions", Aliases: []string{"n"}, Value: 4, Usage: "number of partitions"},
			&cli.StringFlag{Name: "strategy", Value: core.StrategyRolling, Usage: "partition strategy"},
			&cli.Uint64Flag{Name: "base", Value: core.DefaultBase, Usage: "rolling hash base"},
		},
		Action: func(c *cli.Context) error {
			n := c.Int("partitions")
			if n <= 0 {
				return fmt.Errorf("number of partitions must be positive, got %d", n)
			}
			if c.NArg() == 0 {
				return fmt.Errorf("at least one key is required")
			}

			p, err := core.NewPartitioner(core.PartitionConfig{
				Strategy: c.String("strategy"),
				Base:     c.Uint64("base"),
			})
			if err != nil {
				return err
			}

			for _, key := range c.Args().Slice() {
				fmt.Fprintf(c.App.Writer, "%s\t%d\n", key, p.Partition(key, n))
			}
			return nil
		},
	}
}
