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

// NotId represents an ID doesn't exist.
const NotId = -1

// IdSet maps sparse ids (user or item ids from the rating log) to dense indices
// in order of insertion.
type IdSet struct {
	DenseIds  map[int]int
	SparseIds []int
}

// NewIdSet creates an IdSet.
func NewIdSet() *IdSet {
	return &IdSet{
		DenseIds:  make(map[int]int),
		SparseIds: make([]int, 0),
	}
}

// Len returns the number of IDs.
func (set *IdSet) Len() int {
	return len(set.SparseIds)
}

// Add adds a new ID to the ID set and returns its dense index.
func (set *IdSet) Add(sparseId int) int {
	if denseId, exist := set.DenseIds[sparseId]; exist {
		return denseId
	}
	denseId := len(set.SparseIds)
	set.DenseIds[sparseId] = denseId
	set.SparseIds = append(set.SparseIds, sparseId)
	return denseId
}

// ToDenseId converts a sparse ID to a dense ID.
func (set *IdSet) ToDenseId(sparseId int) int {
	if set == nil {
		return NotId
	}
	if denseId, exist := set.DenseIds[sparseId]; exist {
		return denseId
	}
	return NotId
}

// ToSparseId converts a dense ID to a sparse ID.
func (set *IdSet) ToSparseId(denseId int) int {
	return set.SparseIds[denseId]
}
