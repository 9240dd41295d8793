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
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a real matrix stored either dense or in compressed rows.
type Matrix interface {
	Dims() (r, c int)
	At(i, j int) float64
	// Row copies the i-th row into dst, zeros included. dst is allocated if it is too short.
	Row(i int, dst []float64) []float64
	// NormalizeColumns scales every column to unit L2 norm. Zero columns stay zero.
	NormalizeColumns()
	// Gram returns the product of the transpose and the matrix itself.
	Gram() Matrix
	// Clamp limits every entry to [lo, hi].
	Clamp(lo, hi float64)
}

// Dense is backed by gonum.
type Dense struct {
	m *mat.Dense
}

func (d *Dense) Dims() (int, int) {
	return d.m.Dims()
}

func (d *Dense) At(i, j int) float64 {
	return d.m.At(i, j)
}

func (d *Dense) Row(i int, dst []float64) []float64 {
	_, c := d.m.Dims()
	return mat.Row(resize(dst, c), i, d.m)
}

func (d *Dense) NormalizeColumns() {
	r, c := d.m.Dims()
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, d.m)
		if norm := floats.Norm(col, 2); norm > 0 {
			floats.Scale(1/norm, col)
			d.m.SetCol(j, col)
		}
	}
}

func (d *Dense) Gram() Matrix {
	_, c := d.m.Dims()
	g := mat.NewDense(c, c, nil)
	g.Mul(d.m.T(), d.m)
	return &Dense{m: g}
}

func (d *Dense) Clamp(lo, hi float64) {
	d.m.Apply(func(_, _ int, v float64) float64 {
		return clamp(v, lo, hi)
	}, d.m)
}

// Sparse is a matrix in compressed sparse rows. Column indices of a row are ascending.
type Sparse struct {
	rows    int
	cols    int
	indptr  []int
	indices []int
	values  []float64
}

func (s *Sparse) Dims() (int, int) {
	return s.rows, s.cols
}

// NNZ returns the number of stored entries.
func (s *Sparse) NNZ() int {
	return len(s.values)
}

func (s *Sparse) At(i, j int) float64 {
	begin, end := s.indptr[i], s.indptr[i+1]
	if k, found := slices.BinarySearch(s.indices[begin:end], j); found {
		return s.values[begin+k]
	}
	return 0
}

func (s *Sparse) Row(i int, dst []float64) []float64 {
	dst = resize(dst, s.cols)
	clear(dst)
	for k := s.indptr[i]; k < s.indptr[i+1]; k++ {
		dst[s.indices[k]] = s.values[k]
	}
	return dst
}

func (s *Sparse) NormalizeColumns() {
	norms := make([]float64, s.cols)
	for k, j := range s.indices {
		norms[j] += s.values[k] * s.values[k]
	}
	for j := range norms {
		norms[j] = math.Sqrt(norms[j])
	}
	for k, j := range s.indices {
		if norms[j] > 0 {
			s.values[k] /= norms[j]
		}
	}
}

// T returns the transpose in compressed rows.
func (s *Sparse) T() *Sparse {
	t := &Sparse{
		rows:    s.cols,
		cols:    s.rows,
		indptr:  make([]int, s.cols+1),
		indices: make([]int, len(s.indices)),
		values:  make([]float64, len(s.values)),
	}
	for _, j := range s.indices {
		t.indptr[j+1]++
	}
	for j := 0; j < s.cols; j++ {
		t.indptr[j+1] += t.indptr[j]
	}
	next := slices.Clone(t.indptr[:s.cols])
	for i := 0; i < s.rows; i++ {
		for k := s.indptr[i]; k < s.indptr[i+1]; k++ {
			j := s.indices[k]
			t.indices[next[j]] = i
			t.values[next[j]] = s.values[k]
			next[j]++
		}
	}
	return t
}

func (s *Sparse) Gram() Matrix {
	t := s.T()
	g := &Sparse{
		rows:   s.cols,
		cols:   s.cols,
		indptr: make([]int, s.cols+1),
	}
	acc := make([]float64, s.cols)
	touched := make([]bool, s.cols)
	var cols []int
	for i := 0; i < t.rows; i++ {
		cols = cols[:0]
		for k := t.indptr[i]; k < t.indptr[i+1]; k++ {
			u, a := t.indices[k], t.values[k]
			for l := s.indptr[u]; l < s.indptr[u+1]; l++ {
				j := s.indices[l]
				if !touched[j] {
					touched[j] = true
					cols = append(cols, j)
				}
				acc[j] += a * s.values[l]
			}
		}
		slices.Sort(cols)
		for _, j := range cols {
			if acc[j] != 0 {
				g.indices = append(g.indices, j)
				g.values = append(g.values, acc[j])
			}
			acc[j], touched[j] = 0, false
		}
		g.indptr[i+1] = len(g.indices)
	}
	return g
}

func (s *Sparse) Clamp(lo, hi float64) {
	for k, v := range s.values {
		s.values[k] = clamp(v, lo, hi)
	}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

func resize(dst []float64, n int) []float64 {
	if cap(dst) < n {
		return make([]float64, n)
	}
	return dst[:n]
}
