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

package matrix

import (
	"github.com/gorse-io/itemsim/config"
	"github.com/juju/errors"
)

// SimilarityTable is the item×item cosine similarity of a partition. Rows and columns
// are labelled by ascending item ids.
type SimilarityTable struct {
	items  []int
	matrix Matrix
}

// NewSimilarityTable labels a square matrix with item ids.
func NewSimilarityTable(items []int, m Matrix) *SimilarityTable {
	return &SimilarityTable{items: items, matrix: m}
}

func (t *SimilarityTable) Items() []int {
	return t.items
}

func (t *SimilarityTable) Len() int {
	return len(t.items)
}

func (t *SimilarityTable) At(i, j int) float64 {
	return t.matrix.At(i, j)
}

func (t *SimilarityTable) Row(i int, dst []float64) []float64 {
	return t.matrix.Row(i, dst)
}

func (t *SimilarityTable) Representation() string {
	if _, ok := t.matrix.(*Dense); ok {
		return config.RepresentationDense
	}
	return config.RepresentationSparse
}

// Representation picks the storage of the pivot and similarity matrices. In auto mode
// the dense representation is used unless either matrix exceeds maxDenseCells.
func Representation(repr string, users, items, maxDenseCells int) (string, error) {
	fits := int64(users)*int64(items) <= int64(maxDenseCells) &&
		int64(items)*int64(items) <= int64(maxDenseCells)
	switch repr {
	case config.RepresentationAuto:
		if fits {
			return config.RepresentationDense, nil
		}
		return config.RepresentationSparse, nil
	case config.RepresentationDense:
		if !fits {
			return "", errors.NotValidf("dense matrix of %d users and %d items exceeds %d cells", users, items, maxDenseCells)
		}
		return config.RepresentationDense, nil
	case config.RepresentationSparse:
		return config.RepresentationSparse, nil
	default:
		return "", errors.NotValidf("representation %q", repr)
	}
}

// MemoryEstimate returns the approximate number of bytes held by the pivot and similarity
// matrices of a partition.
func MemoryEstimate(repr string, users, items, nnz int) int64 {
	if repr == config.RepresentationDense {
		return 8 * (int64(users)*int64(items) + int64(items)*int64(items))
	}
	// the similarity matrix is bounded by items² entries
	pivot := 16*int64(nnz) + 8*int64(users+1)
	similarity := 16*min(int64(items)*int64(items), int64(nnz)*int64(nnz)) + 8*int64(items+1)
	return 2*pivot + similarity
}

// Cosine computes the item×item cosine similarity of a pivot matrix. Columns are
// normalized to unit length first so similarity reduces to a dot product. Items without
// any rating have zero similarity with every item, including themselves.
func Cosine(pivot *Pivot, repr string) (*SimilarityTable, error) {
	var m Matrix
	switch repr {
	case config.RepresentationDense:
		m = pivot.Dense()
	case config.RepresentationSparse:
		m = pivot.Sparse()
	default:
		return nil, errors.NotValidf("representation %q", repr)
	}
	m.NormalizeColumns()
	g := m.Gram()
	g.Clamp(-1, 1)
	return NewSimilarityTable(pivot.Items, g), nil
}
