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

package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorse-io/itemsim/cmd/version"
	"github.com/gorse-io/itemsim/common/encoding"
	"github.com/gorse-io/itemsim/config"
	"github.com/gorse-io/itemsim/storage/blob"
	"github.com/juju/errors"
)

// Manifest describes a pipeline run.
type Manifest struct {
	RunId          string    `json:"run_id"`
	Version        string    `json:"version"`
	FormatVersion  string    `json:"format_version"`
	StartTime      time.Time `json:"start_time"`
	FinishTime     time.Time `json:"finish_time"`
	Partitions     int       `json:"partitions"`
	Skipped        []int     `json:"skipped_partitions"`
	Files          []string  `json:"files"`
	PartitionSize  int       `json:"partition_size"`
	Strategy       string    `json:"strategy"`
	Representation string    `json:"representation"`
	TopK           int       `json:"top_k"`
	TopN           int       `json:"top_n"`
}

func NewManifest(cfg *config.Config, partitions int) *Manifest {
	return &Manifest{
		RunId:          uuid.NewString(),
		Version:        version.Version,
		FormatVersion:  version.FormatVersion,
		StartTime:      time.Now(),
		Partitions:     partitions,
		Skipped:        []int{},
		PartitionSize:  cfg.Partition.Size,
		Strategy:       cfg.Partition.Strategy,
		Representation: cfg.Partition.Representation,
		TopK:           cfg.Extract.TopK,
		TopN:           cfg.Merge.TopN,
	}
}

func (p *Pipeline) writeManifest(ctx context.Context, manifest *Manifest) error {
	manifest.FinishTime = time.Now()
	if manifest.Skipped == nil {
		manifest.Skipped = []int{}
	}
	if p.Config.Output.ManifestFile == "" {
		return nil
	}
	return blob.WriteFile(ctx, p.Store, p.Config.Output.ManifestFile, func(w io.Writer) error {
		return encoding.WriteJSON(w, manifest)
	})
}

// ReadManifest loads the manifest of the last run.
func ReadManifest(store blob.Store, name string) (*Manifest, error) {
	var manifest Manifest
	if err := blob.ReadFile(store, name, func(r io.Reader) error {
		return encoding.ReadJSON(r, &manifest)
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return &manifest, nil
}
