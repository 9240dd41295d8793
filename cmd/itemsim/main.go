// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorse-io/itemsim/cmd/version"
	"github.com/gorse-io/itemsim/common/log"
	"github.com/gorse-io/itemsim/config"
	"github.com/gorse-io/itemsim/dataset"
	"github.com/gorse-io/itemsim/neighbors"
	"github.com/gorse-io/itemsim/pipeline"
	"github.com/gorse-io/itemsim/storage/blob"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const summarySize = 5

var rootCommand = &cobra.Command{
	Use:   "itemsim",
	Short: "Offline item-item similarity index built from partitioned rating logs.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
		otel.SetErrorHandler(log.GetErrorHandler())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.CloseLogger()
	},
	SilenceUsage: true,
}

var similarityCommand = &cobra.Command{
	Use:   "similarity",
	Short: "Partition ratings and save per-partition cosine similarity tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) error {
			input, err := p.LoadInput()
			if err != nil {
				return errors.Trace(err)
			}
			_, err = p.RunSimilarity(ctx, input)
			return errors.Trace(err)
		})
	},
}

var extractCommand = &cobra.Command{
	Use:   "extract",
	Short: "Extract top-K neighbors from saved similarity tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) error {
			_, err := p.RunExtract(ctx)
			return errors.Trace(err)
		})
	},
}

var mergeCommand = &cobra.Command{
	Use:   "merge",
	Short: "Merge partition neighbors into the global top-N similar items.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) error {
			merged, err := p.RunMerge(ctx)
			if err != nil {
				return errors.Trace(err)
			}
			return printSummary(cmd, p.Config, merged)
		})
	},
}

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run similarity, extract and merge in one pass.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) error {
			input, err := p.LoadInput()
			if err != nil {
				return errors.Trace(err)
			}
			manifest, merged, err := p.Run(ctx, input)
			if err != nil {
				return errors.Trace(err)
			}
			log.Logger().Info("complete run",
				zap.String("run_id", manifest.RunId),
				zap.Int("n_partitions", manifest.Partitions),
				zap.Ints("skipped_partitions", manifest.Skipped))
			return printSummary(cmd, p.Config, merged)
		})
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print the version of itemsim.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.BuildInfo())
	},
}

func init() {
	flagSet := rootCommand.PersistentFlags()
	log.AddFlags(flagSet)
	flagSet.Bool("debug", false, "use debug log mode")
	flagSet.StringP("config", "c", "", "configuration file path")
	flagSet.Bool("progress", false, "show a progress bar")
	flagSet.String("items", "", "items file (itemId or movieId, title)")
	flagSet.String("ratings", "", "ratings file (userId, itemId or movieId, rating)")
	flagSet.StringP("output", "o", ".", "output directory of the posix storage")
	flagSet.Int("partition-size", 2000000, "number of rating rows per partition")
	flagSet.String("strategy", config.StrategyUsers, "partition strategy (rows or users)")
	flagSet.IntP("jobs", "j", 1, "number of partitions processed concurrently")
	flagSet.String("representation", config.RepresentationAuto, "matrix representation (auto, dense or sparse)")
	flagSet.IntP("top-k", "k", 100, "number of neighbors per item and partition")
	flagSet.IntP("top-n", "n", 50, "number of merged neighbors per item")
	flagSet.String("metrics-file", "", "export metrics to a textfile")
	rootCommand.AddCommand(similarityCommand, extractCommand, mergeCommand, runCommand, versionCommand)
}

// withPipeline loads the config, installs the tracer provider and runs fn on a new
// pipeline. Metrics are written after fn succeeds.
func withPipeline(cmd *cobra.Command, fn func(ctx context.Context, p *pipeline.Pipeline) error) error {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	cfg, err := config.LoadConfig(configPath, cmd.Flags())
	if err != nil {
		return errors.Trace(err)
	}
	tp, err := cfg.Tracing.NewTracerProvider(cmd.Context())
	if err != nil {
		return errors.Trace(err)
	}
	if tp != nil {
		otel.SetTracerProvider(tp)
		log.Logger().Info("enable tracing",
			zap.String("exporter", cfg.Tracing.Exporter),
			zap.String("collector_endpoint", cfg.Tracing.CollectorEndpoint))
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				log.Logger().Warn("failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}
	p, err := newPipeline(cmd, cfg)
	if err != nil {
		return errors.Trace(err)
	}
	if err = fn(cmd.Context(), p); err != nil {
		return errors.Trace(err)
	}
	return writeMetrics(cfg)
}

func newPipeline(cmd *cobra.Command, cfg *config.Config) (*pipeline.Pipeline, error) {
	store, err := blob.NewStore(cfg.Storage)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("open storage",
		zap.String("type", cfg.Storage.Type),
		zap.String("dir", cfg.Storage.Dir),
		zap.String("s3_secret_access_key", log.Redact(cfg.Storage.S3.SecretAccessKey)),
		zap.String("azure_account_key", log.Redact(cfg.Storage.Azure.AccountKey)))
	p := pipeline.NewPipeline(cfg, store)
	if progress, _ := cmd.Flags().GetBool("progress"); progress {
		p.Progress = cmd.ErrOrStderr()
	}
	return p, nil
}

func printSummary(cmd *cobra.Command, cfg *config.Config, merged neighbors.Merged) error {
	var titles map[int]string
	if cfg.Input.ItemsPath != "" {
		items, err := dataset.LoadItems(cfg.Input.ItemsPath)
		if err != nil {
			log.Logger().Warn("failed to load item titles", zap.Error(err))
		} else {
			titles = dataset.Titles(items)
		}
	}
	return pipeline.Summarize(merged, titles, summarySize).Render(cmd.OutOrStdout())
}

func writeMetrics(cfg *config.Config) error {
	if cfg.Output.MetricsFile == "" {
		return nil
	}
	return errors.Trace(pipeline.WriteMetrics(cfg.Output.MetricsFile))
}

// execute runs the root command and returns the exit code.
func execute(ctx context.Context) int {
	if err := rootCommand.ExecuteContext(ctx); err != nil {
		log.Logger().Error("failed to run itemsim", zap.Error(err))
		// post run hooks are skipped on error
		log.CloseLogger()
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx)
	stop()
	os.Exit(code)
}
