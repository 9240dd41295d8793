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
	"fmt"
	"io"
	"path"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/itemsim/common/log"
	"github.com/gorse-io/itemsim/common/monitor"
	"github.com/gorse-io/itemsim/common/parallel"
	"github.com/gorse-io/itemsim/config"
	"github.com/gorse-io/itemsim/dataset"
	"github.com/gorse-io/itemsim/matrix"
	"github.com/gorse-io/itemsim/neighbors"
	"github.com/gorse-io/itemsim/storage/blob"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	similarityPattern = regexp.MustCompile(`^cosine_similarity_partition_(\d+)\.csv$`)
	neighborPattern   = regexp.MustCompile(`^partition_(\d+)_similarities\.json$`)
)

func similarityFile(ordinal int) string {
	return fmt.Sprintf("cosine_similarity_partition_%d.csv", ordinal)
}

func neighborFile(ordinal int) string {
	return fmt.Sprintf("partition_%d_similarities.json", ordinal)
}

func taskName(ordinal int) string {
	return fmt.Sprintf("partition_%d", ordinal)
}

// endSpan marks span as failed if err is not nil and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Pipeline computes item-item similarities partition by partition and merges them.
type Pipeline struct {
	Config  *config.Config
	Store   blob.Store
	Monitor *monitor.Monitor
	// progress bar output, disabled if nil
	Progress io.Writer

	tracer trace.Tracer
}

func NewPipeline(cfg *config.Config, store blob.Store) *Pipeline {
	return &Pipeline{
		Config:  cfg,
		Store:   store,
		Monitor: monitor.NewMonitor(),
		tracer:  otel.Tracer("itemsim/pipeline"),
	}
}

// Input is the rating log sorted by user and split into partitions.
type Input struct {
	Ratings    []dataset.Rating
	Partitions []dataset.Partition
	Items      []dataset.Item
}

// LoadInput reads the rating log and the optional items file.
func (p *Pipeline) LoadInput() (*Input, error) {
	if p.Config.Input.RatingsPath == "" {
		return nil, errors.NotValidf("input.ratings_path is empty")
	}
	ratings, err := dataset.LoadRatings(p.Config.Input.RatingsPath, p.Config.Input.RatingScale)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var items []dataset.Item
	if p.Config.Input.ItemsPath != "" {
		if items, err = dataset.LoadItems(p.Config.Input.ItemsPath); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return p.Prepare(ratings, items)
}

// Prepare sorts ratings by user and splits them into partitions.
func (p *Pipeline) Prepare(ratings []dataset.Rating, items []dataset.Item) (*Input, error) {
	if p.Config.Input.DropUnknownItems {
		if items == nil {
			return nil, errors.NotValidf("input.drop_unknown_items without items")
		}
		ratings = dataset.FilterUnknownItems(ratings, items)
	}
	dataset.SortByUser(ratings)
	partitions, err := dataset.Split(ratings, p.Config.Partition.Strategy, p.Config.Partition.Size)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("split ratings",
		zap.Int("n_ratings", len(ratings)),
		zap.Int("n_partitions", len(partitions)),
		zap.String("strategy", p.Config.Partition.Strategy),
		zap.Int("partition_size", p.Config.Partition.Size))
	return &Input{Ratings: ratings, Partitions: partitions, Items: items}, nil
}

// computeSimilarity builds the similarity table of a partition. It returns
// matrix.ErrEmptyPartition if the partition has no usable rating.
func (p *Pipeline) computeSimilarity(ctx context.Context, ratings []dataset.Rating, partition dataset.Partition) (table *matrix.SimilarityTable, err error) {
	_, span := p.tracer.Start(ctx, "Compute Similarity", trace.WithAttributes(attribute.Int("partition", partition.Ordinal())))
	defer func() {
		if errors.Is(err, matrix.ErrEmptyPartition) {
			span.SetAttributes(attribute.Bool("skipped", true))
			span.End()
			return
		}
		endSpan(span, err)
	}()
	pivot, err := matrix.NewPivot(partition.Slice(ratings))
	if err != nil {
		return nil, errors.Trace(err)
	}
	users, items := pivot.Dims()
	repr, err := matrix.Representation(p.Config.Partition.Representation, users, items, p.Config.Partition.MaxDenseCells)
	if err != nil {
		return nil, errors.Trace(err)
	}
	estimate := matrix.MemoryEstimate(repr, users, items, pivot.NNZ())
	PartitionMemoryEstimateBytes.Set(float64(estimate))
	log.Logger().Debug("compute similarity",
		zap.Int("partition", partition.Ordinal()),
		zap.Int("n_users", users),
		zap.Int("n_items", items),
		zap.String("representation", repr),
		zap.Int64("memory_estimate_bytes", estimate))
	table, err = matrix.Cosine(pivot, repr)
	return table, errors.Trace(err)
}

func (p *Pipeline) writeSimilarity(ctx context.Context, ordinal int, table *matrix.SimilarityTable) (string, error) {
	name := path.Join(p.Config.Output.SimilarityDir, similarityFile(ordinal))
	err := blob.WriteFile(ctx, p.Store, name, func(w io.Writer) error {
		return matrix.WriteCSV(w, table)
	})
	return name, errors.Trace(err)
}

func (p *Pipeline) writeNeighbors(ctx context.Context, ordinal int, index neighbors.Index, acc *neighbors.Accumulator) (string, error) {
	filename := neighborFile(ordinal)
	name := path.Join(p.Config.Output.NeighborDir, filename)
	if err := blob.WriteFile(ctx, p.Store, name, func(w io.Writer) error {
		return neighbors.WriteIndex(w, index)
	}); err != nil {
		return "", errors.Trace(err)
	}
	acc.Add(ordinal, filename, index.Sources())
	NeighborListsTotal.Add(float64(len(index)))
	return name, nil
}

func (p *Pipeline) writeMapping(ctx context.Context, acc *neighbors.Accumulator) (string, error) {
	name := path.Join(p.Config.Output.NeighborDir, p.Config.Output.MappingFile)
	err := blob.WriteFile(ctx, p.Store, name, func(w io.Writer) error {
		return neighbors.WriteMapping(w, acc.Mapping())
	})
	return name, errors.Trace(err)
}

// partitionRun tracks the partitions of a stage until all of them are settled.
type partitionRun struct {
	stage    string
	monitor  *monitor.Monitor
	total    int
	mu       sync.Mutex
	settled  *bitset.BitSet
	skipped  []int
	files    []string
	complete chan struct{}
}

func (p *Pipeline) newPartitionRun(stage string, ordinals []int) *partitionRun {
	run := &partitionRun{
		stage:    stage,
		monitor:  p.Monitor,
		total:    len(ordinals),
		settled:  bitset.New(uint(len(ordinals))),
		complete: make(chan struct{}, len(ordinals)),
	}
	for _, ordinal := range ordinals {
		p.Monitor.Pending(taskName(ordinal))
	}
	// progress tracker
	go func() {
		defer func() {
			if err := recover(); err != nil {
				log.Logger().Error("panic in progress tracker", zap.Any("error", err))
			}
		}()
		var bar *progressbar.ProgressBar
		if p.Progress != nil {
			bar = progressbar.NewOptions(len(ordinals),
				progressbar.OptionSetWriter(p.Progress),
				progressbar.OptionSetDescription(stage),
				progressbar.OptionShowCount())
		}
		completedCount := 0
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case _, ok := <-run.complete:
				if !ok {
					if bar != nil {
						_ = bar.Finish()
					}
					return
				}
				completedCount++
				if bar != nil {
					_ = bar.Add(1)
				}
			case <-ticker.C:
				log.Logger().Info(stage,
					zap.Int("n_complete_partitions", completedCount),
					zap.Int("n_partitions", len(ordinals)))
			}
		}
	}()
	return run
}

func (run *partitionRun) finish(job int, files ...string) {
	run.mu.Lock()
	defer run.mu.Unlock()
	run.settled.Set(uint(job))
	run.files = append(run.files, files...)
	run.complete <- struct{}{}
	PartitionsTotal.WithLabelValues(string(monitor.StatusComplete)).Inc()
}

func (run *partitionRun) skip(job, ordinal int, reason error) {
	log.Logger().Warn("skip empty partition", zap.Int("partition", ordinal), zap.Error(reason))
	run.monitor.Skip(taskName(ordinal), reason.Error())
	run.mu.Lock()
	defer run.mu.Unlock()
	run.settled.Set(uint(job))
	run.skipped = append(run.skipped, ordinal)
	run.complete <- struct{}{}
	PartitionsTotal.WithLabelValues(string(monitor.StatusSkipped)).Inc()
}

// wait closes the run and checks that every partition settled.
func (run *partitionRun) wait(err error) error {
	close(run.complete)
	if err != nil {
		log.Logger().Error("failed to process partitions", zap.String("stage", run.stage), zap.Error(err))
		return errors.Trace(err)
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	if count := int(run.settled.Count()); count != run.total {
		return errors.Errorf("%s: %d of %d partitions settled", run.stage, count, run.total)
	}
	slices.Sort(run.skipped)
	slices.Sort(run.files)
	return nil
}

// Result summarizes a stage.
type Result struct {
	Partitions int
	Skipped    []int
	Files      []string
}

// RunSimilarity computes and saves the similarity table of every partition. The
// written partitions are listed in the index of the similarity directory.
func (p *Pipeline) RunSimilarity(ctx context.Context, input *Input) (_ *Result, err error) {
	ctx, span := p.tracer.Start(ctx, "Similarity")
	defer func() { endSpan(span, err) }()
	startTime := time.Now()
	ordinals := ordinalsOf(input.Partitions)
	run := p.newPartitionRun("similarity", ordinals)
	err = parallel.Parallel(ctx, len(input.Partitions), p.Config.Partition.Jobs, func(_, jobId int) error {
		partition := input.Partitions[jobId]
		name := taskName(partition.Ordinal())
		p.Monitor.Start(name, 1)
		table, err := p.computeSimilarity(ctx, input.Ratings, partition)
		if errors.Is(err, matrix.ErrEmptyPartition) {
			run.skip(jobId, partition.Ordinal(), err)
			return nil
		} else if err != nil {
			p.Monitor.Fail(name, err.Error())
			return errors.Trace(err)
		}
		file, err := p.writeSimilarity(ctx, partition.Ordinal(), table)
		if err != nil {
			p.Monitor.Fail(name, err.Error())
			return errors.Trace(err)
		}
		p.Monitor.Finish(name)
		run.finish(jobId, file)
		return nil
	})
	if err = run.wait(err); err != nil {
		return nil, errors.Trace(err)
	}
	indexFile, err := p.commit(ctx, p.Config.Output.SimilarityDir, similarityPattern, &StageIndex{
		Partitions: lo.Without(ordinals, run.skipped...),
		Skipped:    run.skipped,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	StageSecondsVec.WithLabelValues("similarity").Set(time.Since(startTime).Seconds())
	log.Logger().Info("complete similarity",
		zap.Int("n_partitions", len(input.Partitions)),
		zap.Int("n_skipped", len(run.skipped)),
		zap.String("used_time", time.Since(startTime).String()))
	return &Result{Partitions: len(input.Partitions), Skipped: run.skipped, Files: append(run.files, indexFile)}, nil
}

// RunExtract extracts top-k neighbors from the similarity tables listed in the index
// of the similarity directory and writes the item file mapping. A listed table missing
// from the store fails the stage.
func (p *Pipeline) RunExtract(ctx context.Context) (_ *Result, err error) {
	ctx, span := p.tracer.Start(ctx, "Extract")
	defer func() { endSpan(span, err) }()
	startTime := time.Now()
	tables, err := p.readIndex(p.Config.Output.SimilarityDir)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ordinals := tables.Partitions
	acc := neighbors.NewAccumulator()
	run := p.newPartitionRun("extract", ordinals)
	var nLists atomic.Int64
	err = parallel.Parallel(ctx, len(ordinals), p.Config.Partition.Jobs, func(_, jobId int) error {
		ordinal := ordinals[jobId]
		name := taskName(ordinal)
		p.Monitor.Start(name, 1)
		var index neighbors.Index
		if err := blob.ReadFile(p.Store, path.Join(p.Config.Output.SimilarityDir, similarityFile(ordinal)), func(r io.Reader) error {
			var err error
			index, err = neighbors.ExtractCSV(r, p.Config.Extract.TopK)
			return err
		}); err != nil {
			p.Monitor.Fail(name, err.Error())
			return errors.Annotatef(err, "partition %d", ordinal)
		}
		file, err := p.writeNeighbors(ctx, ordinal, index, acc)
		if err != nil {
			p.Monitor.Fail(name, err.Error())
			return errors.Trace(err)
		}
		nLists.Add(int64(len(index)))
		p.Monitor.Finish(name)
		run.finish(jobId, file)
		return nil
	})
	if err = run.wait(err); err != nil {
		return nil, errors.Trace(err)
	}
	mappingFile, err := p.writeMapping(ctx, acc)
	if err != nil {
		return nil, errors.Trace(err)
	}
	indexFile, err := p.commit(ctx, p.Config.Output.NeighborDir, neighborPattern, &StageIndex{
		Partitions: ordinals,
		Skipped:    tables.Skipped,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	StageSecondsVec.WithLabelValues("extract").Set(time.Since(startTime).Seconds())
	log.Logger().Info("complete extract",
		zap.Int("n_partitions", len(ordinals)),
		zap.Int64("n_neighbor_lists", nLists.Load()),
		zap.String("used_time", time.Since(startTime).String()))
	return &Result{Partitions: len(ordinals), Skipped: tables.Skipped, Files: append(run.files, mappingFile, indexFile)}, nil
}

// RunMerge merges the partition neighbor files listed in the index of the neighbor
// directory.
func (p *Pipeline) RunMerge(ctx context.Context) (neighbors.Merged, error) {
	index, err := p.readIndex(p.Config.Output.NeighborDir)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return p.merge(ctx, p.neighborFiles(index.Partitions))
}

func (p *Pipeline) neighborFiles(ordinals []int) []string {
	return lo.Map(ordinals, func(ordinal int, _ int) string {
		return path.Join(p.Config.Output.NeighborDir, neighborFile(ordinal))
	})
}

// Run executes all stages. Each partition is computed, extracted and written by one
// worker. Merging starts after every partition has settled.
func (p *Pipeline) Run(ctx context.Context, input *Input) (_ *Manifest, _ neighbors.Merged, err error) {
	ctx, span := p.tracer.Start(ctx, "Run")
	defer func() { endSpan(span, err) }()
	manifest := NewManifest(p.Config, len(input.Partitions))
	startTime := time.Now()
	acc := neighbors.NewAccumulator()
	ordinals := ordinalsOf(input.Partitions)
	run := p.newPartitionRun("run", ordinals)
	err = parallel.Parallel(ctx, len(input.Partitions), p.Config.Partition.Jobs, func(_, jobId int) error {
		partition := input.Partitions[jobId]
		name := taskName(partition.Ordinal())
		p.Monitor.Start(name, 3)
		table, err := p.computeSimilarity(ctx, input.Ratings, partition)
		if errors.Is(err, matrix.ErrEmptyPartition) {
			run.skip(jobId, partition.Ordinal(), err)
			return nil
		} else if err != nil {
			p.Monitor.Fail(name, err.Error())
			return errors.Trace(err)
		}
		p.Monitor.Update(name, 1)
		var files []string
		if p.Config.Partition.SaveTables {
			file, err := p.writeSimilarity(ctx, partition.Ordinal(), table)
			if err != nil {
				p.Monitor.Fail(name, err.Error())
				return errors.Trace(err)
			}
			files = append(files, file)
		}
		p.Monitor.Update(name, 2)
		index := neighbors.Extract(table, p.Config.Extract.TopK)
		file, err := p.writeNeighbors(ctx, partition.Ordinal(), index, acc)
		if err != nil {
			p.Monitor.Fail(name, err.Error())
			return errors.Trace(err)
		}
		p.Monitor.Finish(name)
		run.finish(jobId, append(files, file)...)
		return nil
	})
	if err = run.wait(err); err != nil {
		return nil, nil, errors.Trace(err)
	}
	StageSecondsVec.WithLabelValues("partitions").Set(time.Since(startTime).Seconds())
	files := run.files
	written := lo.Without(ordinals, run.skipped...)
	if len(written) == 0 {
		return nil, nil, errors.NotFoundf("non-empty partition")
	}
	mappingFile, err := p.writeMapping(ctx, acc)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	files = append(files, mappingFile)
	if p.Config.Partition.SaveTables {
		indexFile, err := p.commit(ctx, p.Config.Output.SimilarityDir, similarityPattern, &StageIndex{Partitions: written, Skipped: run.skipped})
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		files = append(files, indexFile)
	}
	indexFile, err := p.commit(ctx, p.Config.Output.NeighborDir, neighborPattern, &StageIndex{Partitions: written, Skipped: run.skipped})
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	files = append(files, indexFile)

	// stage barrier
	merged, err := p.merge(ctx, p.neighborFiles(written))
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	files = append(files, p.Config.Output.MergedFile)

	manifest.Skipped = run.skipped
	manifest.Files = files
	if err = p.writeManifest(ctx, manifest); err != nil {
		return nil, nil, errors.Trace(err)
	}
	return manifest, merged, nil
}

func ordinalsOf(partitions []dataset.Partition) []int {
	return lo.Map(partitions, func(partition dataset.Partition, _ int) int {
		return partition.Ordinal()
	})
}
