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
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StrategyRows  = "rows"
	StrategyUsers = "users"

	RepresentationAuto   = "auto"
	RepresentationDense  = "dense"
	RepresentationSparse = "sparse"

	StoragePOSIX = "posix"
	StorageS3    = "s3"
	StorageGCS   = "gcs"
	StorageAzure = "azure"

	ExporterOTLP     = "otlp"
	ExporterOTLPHTTP = "otlphttp"
	ExporterZipkin   = "zipkin"

	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio"
)

// Config is the configuration of the similarity pipeline.
type Config struct {
	Input     InputConfig     `mapstructure:"input"`
	Partition PartitionConfig `mapstructure:"partition"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Merge     MergeConfig     `mapstructure:"merge"`
	Output    OutputConfig    `mapstructure:"output"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type InputConfig struct {
	// items file: itemId,title[,...]
	ItemsPath string `mapstructure:"items_path"`
	// ratings file: userId,itemId,rating[,timestamp]
	RatingsPath string `mapstructure:"ratings_path"`
	// ratings are divided by this value
	RatingScale float64 `mapstructure:"rating_scale" validate:"gt=0"`
	// drop ratings of items missing from the items file
	DropUnknownItems bool `mapstructure:"drop_unknown_items"`
}

type PartitionConfig struct {
	Size           int    `mapstructure:"size" validate:"gt=0"`
	Strategy       string `mapstructure:"strategy" validate:"oneof=rows users"`
	Jobs           int    `mapstructure:"jobs" validate:"gt=0"`
	Representation string `mapstructure:"representation" validate:"oneof=auto dense sparse"`
	// upper bound of cells of a dense pivot or similarity matrix
	MaxDenseCells int  `mapstructure:"max_dense_cells" validate:"gt=0"`
	SaveTables    bool `mapstructure:"save_tables"`
}

type ExtractConfig struct {
	TopK int `mapstructure:"top_k" validate:"gt=0"`
}

type MergeConfig struct {
	TopN int `mapstructure:"top_n" validate:"gt=0"`
	// number of partition files decoded concurrently
	Jobs int `mapstructure:"jobs" validate:"gt=0"`
}

type OutputConfig struct {
	SimilarityDir string `mapstructure:"similarity_dir" validate:"required"`
	NeighborDir   string `mapstructure:"neighbor_dir" validate:"required"`
	MappingFile   string `mapstructure:"mapping_file" validate:"required"`
	MergedFile    string `mapstructure:"merged_file" validate:"required"`
	IndexFile     string `mapstructure:"index_file" validate:"required"`
	ManifestFile  string `mapstructure:"manifest_file"`
	MetricsFile   string `mapstructure:"metrics_file"`
}

type StorageConfig struct {
	Type  string          `mapstructure:"type" validate:"oneof=posix s3 gcs azure"`
	Dir   string          `mapstructure:"dir"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Endpoint         string `mapstructure:"endpoint"`
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			RatingScale: 5,
		},
		Partition: PartitionConfig{
			Size:           2000000,
			Strategy:       StrategyUsers,
			Jobs:           1,
			Representation: RepresentationAuto,
			MaxDenseCells:  1 << 28,
			SaveTables:     true,
		},
		Extract: ExtractConfig{
			TopK: 100,
		},
		Merge: MergeConfig{
			TopN: 50,
			Jobs: 4,
		},
		Output: OutputConfig{
			SimilarityDir: "similarity",
			NeighborDir:   "neighbors",
			MappingFile:   "item_file_mapping.json",
			MergedFile:    "merged_similarities.json",
			IndexFile:     "partitions.json",
			ManifestFile:  "manifest.json",
		},
		Storage: StorageConfig{
			Type: StoragePOSIX,
			Dir:  ".",
		},
		Tracing: TracingConfig{
			Exporter: ExporterOTLP,
			Sampler:  SamplerAlways,
			Ratio:    1,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [input]
	v.SetDefault("input.items_path", defaultConfig.Input.ItemsPath)
	v.SetDefault("input.ratings_path", defaultConfig.Input.RatingsPath)
	v.SetDefault("input.rating_scale", defaultConfig.Input.RatingScale)
	v.SetDefault("input.drop_unknown_items", defaultConfig.Input.DropUnknownItems)
	// [partition]
	v.SetDefault("partition.size", defaultConfig.Partition.Size)
	v.SetDefault("partition.strategy", defaultConfig.Partition.Strategy)
	v.SetDefault("partition.jobs", defaultConfig.Partition.Jobs)
	v.SetDefault("partition.representation", defaultConfig.Partition.Representation)
	v.SetDefault("partition.max_dense_cells", defaultConfig.Partition.MaxDenseCells)
	v.SetDefault("partition.save_tables", defaultConfig.Partition.SaveTables)
	// [extract]
	v.SetDefault("extract.top_k", defaultConfig.Extract.TopK)
	// [merge]
	v.SetDefault("merge.top_n", defaultConfig.Merge.TopN)
	v.SetDefault("merge.jobs", defaultConfig.Merge.Jobs)
	// [output]
	v.SetDefault("output.similarity_dir", defaultConfig.Output.SimilarityDir)
	v.SetDefault("output.neighbor_dir", defaultConfig.Output.NeighborDir)
	v.SetDefault("output.mapping_file", defaultConfig.Output.MappingFile)
	v.SetDefault("output.merged_file", defaultConfig.Output.MergedFile)
	v.SetDefault("output.index_file", defaultConfig.Output.IndexFile)
	v.SetDefault("output.manifest_file", defaultConfig.Output.ManifestFile)
	v.SetDefault("output.metrics_file", defaultConfig.Output.MetricsFile)
	// [storage]
	v.SetDefault("storage.type", defaultConfig.Storage.Type)
	v.SetDefault("storage.dir", defaultConfig.Storage.Dir)
	for _, key := range []string{
		"storage.s3.endpoint", "storage.s3.access_key_id", "storage.s3.secret_access_key",
		"storage.s3.bucket", "storage.s3.prefix",
		"storage.gcs.bucket", "storage.gcs.prefix", "storage.gcs.credentials_file",
		"storage.azure.account_name", "storage.azure.account_key", "storage.azure.connection_string",
		"storage.azure.endpoint", "storage.azure.container", "storage.azure.prefix",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("storage.s3.use_ssl", false)
	// [tracing]
	v.SetDefault("tracing.enable_tracing", defaultConfig.Tracing.EnableTracing)
	v.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	v.SetDefault("tracing.collector_endpoint", defaultConfig.Tracing.CollectorEndpoint)
	v.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	v.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"items":          "input.items_path",
	"ratings":        "input.ratings_path",
	"partition-size": "partition.size",
	"strategy":       "partition.strategy",
	"jobs":           "partition.jobs",
	"representation": "partition.representation",
	"top-k":          "extract.top_k",
	"top-n":          "merge.top_n",
	"output":         "storage.dir",
	"metrics-file":   "output.metrics_file",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	setDefault(v)
	v.SetEnvPrefix("ITEMSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads configuration from a TOML file, environment variables and command line
// flags, in increasing priority. An empty path skips the file. A nil flag set skips flags.
func LoadConfig(path string, flagSet *pflag.FlagSet) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if flagSet != nil {
		for name, key := range flagKeys {
			if flag := flagSet.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, errors.Trace(err)
				}
			}
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}
