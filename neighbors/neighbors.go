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
	"math"

	"github.com/gorse-io/itemsim/common/encoding"
	"github.com/gorse-io/itemsim/common/heap"
	"github.com/gorse-io/itemsim/matrix"
	"github.com/juju/errors"
)

// ErrMalformedIntermediate is returned when an intermediate artifact cannot be parsed.
const ErrMalformedIntermediate = errors.ConstError("malformed intermediate file")

// Neighbor is a similar item and its score.
type Neighbor struct {
	ItemId int     `json:"itemId"`
	Score  float64 `json:"score"`
}

// Index maps an item to its neighbors in a single partition. Neighbors are ordered by
// descending score and then ascending item id.
type Index map[int][]Neighbor

// Table is a labelled square similarity matrix.
type Table interface {
	Items() []int
	Row(i int, dst []float64) []float64
}

// ExtractRow returns the top k entries of a similarity row, excluding the source item
// itself. Self is dropped after selection, so fewer than k neighbors may be returned.
func ExtractRow(source int, items []int, row []float64, k int) []Neighbor {
	filter := heap.NewTopKFilter[int, float64](k)
	for j, score := range row {
		if !math.IsNaN(score) {
			filter.Push(items[j], score)
		}
	}
	elems := filter.PopAll()
	neighbors := make([]Neighbor, 0, len(elems))
	for _, elem := range elems {
		if elem.Value != source {
			neighbors = append(neighbors, Neighbor{ItemId: elem.Value, Score: elem.Weight})
		}
	}
	return neighbors
}

// Extract returns the top k neighbors of every item of a similarity table.
func Extract(table Table, k int) Index {
	items := table.Items()
	index := make(Index, len(items))
	var row []float64
	for i, source := range items {
		row = table.Row(i, row)
		index[source] = ExtractRow(source, items, row, k)
	}
	return index
}

// ExtractCSV streams a similarity table written by matrix.WriteCSV and returns the top k
// neighbors of every item.
func ExtractCSV(r io.Reader, k int) (Index, error) {
	reader, err := matrix.NewCSVReader(r)
	if err != nil {
		return nil, errors.WithType(errors.Trace(err), ErrMalformedIntermediate)
	}
	index := make(Index, len(reader.Items()))
	for {
		source, row, err := reader.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.WithType(errors.Trace(err), ErrMalformedIntermediate)
		}
		index[source] = ExtractRow(source, reader.Items(), row, k)
	}
	return index, nil
}

// Sources returns the items that have an entry in the index.
func (index Index) Sources() []int {
	sources := make([]int, 0, len(index))
	for source := range index {
		sources = append(sources, source)
	}
	return sources
}

func WriteIndex(w io.Writer, index Index) error {
	return errors.Trace(encoding.WriteJSON(w, index))
}

// ReadIndex decodes a partition neighbor file.
func ReadIndex(r io.Reader) (Index, error) {
	var index Index
	if err := encoding.ReadJSON(r, &index); err != nil {
		return nil, errors.WithType(errors.Trace(err), ErrMalformedIntermediate)
	}
	return index, nil
}
