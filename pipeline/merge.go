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

	"github.com/gorse-io/itemsim/common/log"
	"github.com/gorse-io/itemsim/neighbors"
	"github.com/gorse-io/itemsim/storage/blob"
	"github.com/juju/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const mergeTask = "merge"

// merge loads partition neighbor files concurrently and aggregates them in the given
// order, then writes the global top-n neighbors.
func (p *Pipeline) merge(ctx context.Context, files []string) (_ neighbors.Merged, err error) {
	ctx, span := p.tracer.Start(ctx, "Merge", trace.WithAttributes(attribute.Int("n_files", len(files))))
	defer func() { endSpan(span, err) }()
	startTime := time.Now()
	p.Monitor.Start(mergeTask, len(files))

	indexes := make([]neighbors.Index, len(files))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.Config.Merge.Jobs)
	for i, file := range files {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return errors.Trace(err)
			}
			err := blob.ReadFile(p.Store, file, func(r io.Reader) error {
				index, err := neighbors.ReadIndex(r)
				indexes[i] = index
				return err
			})
			return errors.Annotatef(err, "file %s", file)
		})
	}
	if err = g.Wait(); err != nil {
		p.Monitor.Fail(mergeTask, err.Error())
		log.Logger().Error("failed to load partition neighbors", zap.Error(err))
		return nil, errors.Trace(err)
	}

	merger := neighbors.NewMerger()
	for i, index := range indexes {
		merger.Add(index)
		p.Monitor.Update(mergeTask, i+1)
	}
	merged := merger.Result(p.Config.Merge.TopN)
	if err = blob.WriteFile(ctx, p.Store, p.Config.Output.MergedFile, func(w io.Writer) error {
		return neighbors.WriteMerged(w, merged)
	}); err != nil {
		p.Monitor.Fail(mergeTask, err.Error())
		return nil, errors.Trace(err)
	}
	p.Monitor.Finish(mergeTask)
	MergedItemsTotal.Set(float64(len(merged)))
	StageSecondsVec.WithLabelValues("merge").Set(time.Since(startTime).Seconds())
	log.Logger().Info("complete merge",
		zap.Int("n_files", len(files)),
		zap.Int("n_items", len(merged)),
		zap.Int("top_n", p.Config.Merge.TopN),
		zap.String("used_time", time.Since(startTime).String()))
	return merged, nil
}
