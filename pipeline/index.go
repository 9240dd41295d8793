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
	"path"
	"regexp"
	"slices"
	"strconv"

	"github.com/gorse-io/itemsim/common/encoding"
	"github.com/gorse-io/itemsim/common/log"
	"github.com/gorse-io/itemsim/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// StageIndex lists the partitions a stage wrote into its directory. The next stage
// processes exactly these partitions.
type StageIndex struct {
	Partitions []int `json:"partitions"`
	Skipped    []int `json:"skipped_partitions"`
}

func (p *Pipeline) indexFile(dir string) string {
	return path.Join(dir, p.Config.Output.IndexFile)
}

// commit writes the index of dir and removes files of earlier runs that are not listed.
func (p *Pipeline) commit(ctx context.Context, dir string, pattern *regexp.Regexp, index *StageIndex) (string, error) {
	name := p.indexFile(dir)
	if index.Skipped == nil {
		index.Skipped = []int{}
	}
	if err := blob.WriteFile(ctx, p.Store, name, func(w io.Writer) error {
		return encoding.WriteJSON(w, index)
	}); err != nil {
		return "", errors.Trace(err)
	}
	files, err := blob.ListDir(p.Store, dir)
	if err != nil {
		return "", errors.Trace(err)
	}
	for _, file := range files {
		match := pattern.FindStringSubmatch(file)
		if match == nil {
			continue
		}
		if ordinal, err := strconv.Atoi(match[1]); err == nil && slices.Contains(index.Partitions, ordinal) {
			continue
		}
		log.Logger().Info("remove stale partition file", zap.String("dir", dir), zap.String("file", file))
		if err = p.Store.Remove(path.Join(dir, file)); err != nil {
			return "", errors.Trace(err)
		}
	}
	return name, nil
}

// readIndex loads the index written by the previous stage into dir.
func (p *Pipeline) readIndex(dir string) (*StageIndex, error) {
	var index StageIndex
	if err := blob.ReadFile(p.Store, p.indexFile(dir), func(r io.Reader) error {
		return encoding.ReadJSON(r, &index)
	}); err != nil {
		return nil, errors.Annotatef(err, "partition index of %q", dir)
	}
	if len(index.Partitions) == 0 {
		return nil, errors.NotFoundf("partition files in %q", dir)
	}
	slices.Sort(index.Partitions)
	return &index, nil
}
