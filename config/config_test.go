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

package config

import (
	"testing"

	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	config, err := LoadConfig("config.toml.template", nil)
	require.NoError(t, err)

	// [input]
	assert.Equal(t, "archive/movie.csv", config.Input.ItemsPath)
	assert.Equal(t, "archive/rating.csv", config.Input.RatingsPath)
	assert.Equal(t, 5.0, config.Input.RatingScale)
	assert.False(t, config.Input.DropUnknownItems)
	// [partition]
	assert.Equal(t, 1000000, config.Partition.Size)
	assert.Equal(t, StrategyRows, config.Partition.Strategy)
	assert.Equal(t, 4, config.Partition.Jobs)
	assert.Equal(t, RepresentationSparse, config.Partition.Representation)
	assert.Equal(t, 100000000, config.Partition.MaxDenseCells)
	assert.False(t, config.Partition.SaveTables)
	// [extract]
	assert.Equal(t, 200, config.Extract.TopK)
	// [merge]
	assert.Equal(t, 20, config.Merge.TopN)
	assert.Equal(t, 8, config.Merge.Jobs)
	// [output]
	assert.Equal(t, "cosine_similarity_outputs", config.Output.SimilarityDir)
	assert.Equal(t, "movie_similarity_jsons", config.Output.NeighborDir)
	assert.Equal(t, "movie_file_mapping.json", config.Output.MappingFile)
	assert.Equal(t, "merged_movie_similarities.json", config.Output.MergedFile)
	assert.Equal(t, "manifest.json", config.Output.ManifestFile)
	assert.Equal(t, "metrics.prom", config.Output.MetricsFile)
	assert.Equal(t, "partitions.json", config.Output.IndexFile)
	// [storage]
	assert.Equal(t, StorageS3, config.Storage.Type)
	assert.Equal(t, "/var/lib/itemsim", config.Storage.Dir)
	assert.Equal(t, "localhost:9000", config.Storage.S3.Endpoint)
	assert.Equal(t, "minioadmin", config.Storage.S3.AccessKeyID)
	assert.Equal(t, "minioadmin", config.Storage.S3.SecretAccessKey)
	assert.Equal(t, "itemsim", config.Storage.S3.Bucket)
	assert.Equal(t, "artifacts", config.Storage.S3.Prefix)
	assert.False(t, config.Storage.S3.UseSSL)
	// [tracing]
	assert.True(t, config.Tracing.EnableTracing)
	assert.Equal(t, ExporterOTLPHTTP, config.Tracing.Exporter)
	assert.Equal(t, "localhost:4318", config.Tracing.CollectorEndpoint)
	assert.Equal(t, SamplerRatio, config.Tracing.Sampler)
	assert.Equal(t, 0.5, config.Tracing.Ratio)
}

func TestSetDefault(t *testing.T) {
	config, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), config)
	assert.Equal(t, 2000000, config.Partition.Size)
	assert.Equal(t, 100, config.Extract.TopK)
	assert.Equal(t, 50, config.Merge.TopN)
}

func TestBindEnv(t *testing.T) {
	t.Setenv("ITEMSIM_INPUT_RATINGS_PATH", "<ratings>")
	t.Setenv("ITEMSIM_PARTITION_SIZE", "123")
	t.Setenv("ITEMSIM_EXTRACT_TOP_K", "7")
	t.Setenv("ITEMSIM_MERGE_TOP_N", "3")
	t.Setenv("ITEMSIM_STORAGE_S3_SECRET_ACCESS_KEY", "<secret>")

	config, err := LoadConfig("config.toml.template", nil)
	require.NoError(t, err)
	assert.Equal(t, "<ratings>", config.Input.RatingsPath)
	assert.Equal(t, 123, config.Partition.Size)
	assert.Equal(t, 7, config.Extract.TopK)
	assert.Equal(t, 3, config.Merge.TopN)
	assert.Equal(t, "<secret>", config.Storage.S3.SecretAccessKey)
	// values from file are kept
	assert.Equal(t, 4, config.Partition.Jobs)
}

func TestBindFlags(t *testing.T) {
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flagSet.Int("top-k", 100, "")
	flagSet.Int("top-n", 50, "")
	flagSet.String("strategy", "users", "")
	require.NoError(t, flagSet.Parse([]string{"--top-k", "9"}))

	config, err := LoadConfig("config.toml.template", flagSet)
	require.NoError(t, err)
	assert.Equal(t, 9, config.Extract.TopK)
	// unchanged flags do not override the file
	assert.Equal(t, 20, config.Merge.TopN)
	assert.Equal(t, StrategyRows, config.Partition.Strategy)
}

func TestValidate(t *testing.T) {
	config := GetDefaultConfig()
	assert.NoError(t, config.Validate())

	config = GetDefaultConfig()
	config.Extract.TopK = 0
	err := config.Validate()
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.ErrorContains(t, err, "Extract.TopK must be positive")

	config = GetDefaultConfig()
	config.Merge.TopN = -1
	config.Partition.Size = 0
	err = config.Validate()
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.ErrorContains(t, err, "Merge.TopN must be positive")
	assert.ErrorContains(t, err, "Partition.Size must be positive")

	config = GetDefaultConfig()
	config.Partition.Strategy = "random"
	assert.ErrorContains(t, config.Validate(), "Partition.Strategy must be one of [rows users]")

	config = GetDefaultConfig()
	config.Storage.Type = StorageS3
	assert.True(t, errors.Is(config.Validate(), errors.NotValid))
	config.Storage.S3.Endpoint = "localhost:9000"
	config.Storage.S3.Bucket = "itemsim"
	assert.NoError(t, config.Validate())

	config = GetDefaultConfig()
	config.Tracing.EnableTracing = true
	assert.True(t, errors.Is(config.Validate(), errors.NotValid))
	config.Tracing.CollectorEndpoint = "localhost:4317"
	assert.NoError(t, config.Validate())
	config.Tracing.Exporter = "jaeger"
	assert.ErrorContains(t, config.Validate(), "Tracing.Exporter must be one of [otlp otlphttp zipkin]")
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("ITEMSIM_EXTRACT_TOP_K", "-5")
	_, err := LoadConfig("", nil)
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = LoadConfig("not_exist.toml", nil)
	assert.Error(t, err)
}
