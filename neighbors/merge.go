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

package neighbors

import (
	"io"
	"slices"

	"github.com/gorse-io/itemsim/common/encoding"
	"github.com/gorse-io/itemsim/common/heap"
	"github.com/juju/errors"
)

// MergedNeighbor is a similar item and its score averaged over partitions.
type MergedNeighbor struct {
	ItemId   int     `json:"itemId"`
	AvgScore float64 `json:"avg_score"`
}

// Merged maps an item to its global neighbors.
type Merged map[int][]MergedNeighbor

// Merger averages neighbor scores of the same pair across partitions.
type Merger struct {
	scores map[int]map[int][]float64
}

func NewMerger() *Merger {
	return &Merger{scores: make(map[int]map[int][]float64)}
}

// Add collects the scores of a partition index.
func (m *Merger) Add(index Index) {
	for source, neighbors := range index {
		candidates, exist := m.scores[source]
		if !exist {
			candidates = make(map[int][]float64)
			m.scores[source] = candidates
		}
		for _, neighbor := range neighbors {
			if neighbor.ItemId == source {
				continue
			}
			candidates[neighbor.ItemId] = append(candidates[neighbor.ItemId], neighbor.Score)
		}
	}
}

// Len returns the number of source items.
func (m *Merger) Len() int {
	return len(m.scores)
}

// Result returns the top n neighbors of every source item ranked by average score.
// Every source item seen by Add has an entry, possibly empty.
func (m *Merger) Result(n int) Merged {
	merged := make(Merged, len(m.scores))
	for source, candidates := range m.scores {
		filter := heap.NewTopKFilter[int, float64](n)
		for candidate, scores := range candidates {
			filter.Push(candidate, mean(scores))
		}
		elems := filter.PopAll()
		neighbors := make([]MergedNeighbor, len(elems))
		for i, elem := range elems {
			neighbors[i] = MergedNeighbor{ItemId: elem.Value, AvgScore: elem.Weight}
		}
		merged[source] = neighbors
	}
	return merged
}

// mean sums in ascending order so the result does not depend on the order of partitions.
func mean(scores []float64) float64 {
	sorted := slices.Clone(scores)
	slices.Sort(sorted)
	sum := 0.0
	for _, score := range sorted {
		sum += score
	}
	return sum / float64(len(sorted))
}

func WriteMerged(w io.Writer, merged Merged) error {
	return errors.Trace(encoding.WriteJSON(w, merged))
}

func ReadMerged(r io.Reader) (Merged, error) {
	var merged Merged
	if err := encoding.ReadJSON(r, &merged); err != nil {
		return nil, errors.WithType(errors.Trace(err), ErrMalformedIntermediate)
	}
	return merged, nil
}
