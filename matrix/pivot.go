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
	"cmp"
	"math"
	"slices"

	"github.com/gorse-io/itemsim/dataset"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrEmptyPartition is returned when a partition has no usable rating.
const ErrEmptyPartition = errors.ConstError("empty partition")

// Cell is a non-zero entry of the pivot matrix.
type Cell struct {
	Row   int
	Col   int
	Value float64
}

// Pivot is the user×item rating matrix of a partition. Rows are users in order of first
// appearance and columns are items in ascending id order. Missing ratings are zero.
type Pivot struct {
	Users *IdSet
	Items []int
	// sorted by (Row, Col) without duplicates
	Cells []Cell
}

// NewPivot builds the pivot matrix of ratings. Duplicate ratings of a user on an item are
// averaged and NaN ratings are dropped.
func NewPivot(ratings []dataset.Rating) (*Pivot, error) {
	users := NewIdSet()
	itemSet := make(map[int]struct{})
	for _, rating := range ratings {
		if math.IsNaN(rating.Rating) {
			continue
		}
		users.Add(rating.UserId)
		itemSet[rating.ItemId] = struct{}{}
	}
	if users.Len() == 0 {
		return nil, errors.WithType(errors.Errorf("no rating among %d rows", len(ratings)), ErrEmptyPartition)
	}
	items := make([]int, 0, len(itemSet))
	for itemId := range itemSet {
		items = append(items, itemId)
	}
	slices.Sort(items)
	itemIndex := make(map[int]int, len(items))
	for i, itemId := range items {
		itemIndex[itemId] = i
	}

	cells := make([]Cell, 0, len(ratings))
	for _, rating := range ratings {
		if math.IsNaN(rating.Rating) {
			continue
		}
		cells = append(cells, Cell{
			Row:   users.ToDenseId(rating.UserId),
			Col:   itemIndex[rating.ItemId],
			Value: rating.Rating,
		})
	}
	slices.SortStableFunc(cells, func(a, b Cell) int {
		if c := cmp.Compare(a.Row, b.Row); c != 0 {
			return c
		}
		return cmp.Compare(a.Col, b.Col)
	})
	// average duplicates
	merged := cells[:0]
	for i := 0; i < len(cells); {
		j, sum := i, 0.0
		for j < len(cells) && cells[j].Row == cells[i].Row && cells[j].Col == cells[i].Col {
			sum += cells[j].Value
			j++
		}
		merged = append(merged, Cell{Row: cells[i].Row, Col: cells[i].Col, Value: sum / float64(j-i)})
		i = j
	}
	return &Pivot{Users: users, Items: items, Cells: merged}, nil
}

// Dims returns the number of users and items.
func (p *Pivot) Dims() (int, int) {
	return p.Users.Len(), len(p.Items)
}

// NNZ returns the number of non-zero cells.
func (p *Pivot) NNZ() int {
	return len(p.Cells)
}

// Dense returns the pivot as a dense matrix.
func (p *Pivot) Dense() *Dense {
	r, c := p.Dims()
	m := mat.NewDense(r, c, nil)
	for _, cell := range p.Cells {
		m.Set(cell.Row, cell.Col, cell.Value)
	}
	return &Dense{m: m}
}

// Sparse returns the pivot in compressed rows.
func (p *Pivot) Sparse() *Sparse {
	r, c := p.Dims()
	s := &Sparse{
		rows:    r,
		cols:    c,
		indptr:  make([]int, r+1),
		indices: make([]int, len(p.Cells)),
		values:  make([]float64, len(p.Cells)),
	}
	for k, cell := range p.Cells {
		s.indptr[cell.Row+1]++
		s.indices[k] = cell.Col
		s.values[k] = cell.Value
	}
	for i := 0; i < r; i++ {
		s.indptr[i+1] += s.indptr[i]
	}
	return s
}
