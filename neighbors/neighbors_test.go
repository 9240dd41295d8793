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
	"bytes"
	"strings"
	"testing"

	"github.com/gorse-io/itemsim/config"
	"github.com/gorse-io/itemsim/dataset"
	"github.com/gorse-io/itemsim/matrix"
	"github.com/jaswdr/faker"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRow(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	row := []float64{0.4, 1, 0.9, 0.4, 0.1}
	// self is among the top 3 and is dropped afterwards
	assert.Equal(t, []Neighbor{{3, 0.9}, {1, 0.4}}, ExtractRow(2, items, row, 3))
	// ties are broken by ascending id
	assert.Equal(t, []Neighbor{{3, 0.9}, {1, 0.4}, {4, 0.4}}, ExtractRow(5, items, row, 4)[1:])
	assert.Empty(t, ExtractRow(1, []int{1}, []float64{1}, 10))
	assert.NotNil(t, ExtractRow(1, []int{1}, []float64{1}, 10))
}

func TestExtractRowTopK(t *testing.T) {
	items := make([]int, 120)
	row := make([]float64, 120)
	for i := range items {
		items[i] = i + 1
		row[i] = float64(i) / 120
	}
	neighbors := ExtractRow(1000, items, row, 100)
	assert.Len(t, neighbors, 100)
	assert.Equal(t, 120, neighbors[0].ItemId)
	for i := 1; i < len(neighbors); i++ {
		assert.GreaterOrEqual(t, neighbors[i-1].Score, neighbors[i].Score)
	}
}

func TestExtract(t *testing.T) {
	pivot, err := matrix.NewPivot([]dataset.Rating{
		{UserId: 1, ItemId: 1, Rating: 1},
		{UserId: 1, ItemId: 2, Rating: 1},
		{UserId: 2, ItemId: 1, Rating: 1},
		{UserId: 2, ItemId: 2, Rating: 1},
		{UserId: 2, ItemId: 3, Rating: 1},
		{UserId: 3, ItemId: 3, Rating: 1},
	})
	require.NoError(t, err)
	table, err := matrix.Cosine(pivot, config.RepresentationDense)
	require.NoError(t, err)
	index := Extract(table, 100)
	assert.ElementsMatch(t, []int{1, 2, 3}, index.Sources())
	assert.Len(t, index[1], 2)
	assert.Equal(t, 2, index[1][0].ItemId)
	assert.InDelta(t, 1, index[1][0].Score, 1e-12)
	assert.Equal(t, 3, index[1][1].ItemId)
	assert.InDelta(t, 0.5, index[1][1].Score, 1e-12)
	assert.Equal(t, []int{1, 2}, []int{index[3][0].ItemId, index[3][1].ItemId})
}

func TestExtractDenseEqualsSparse(t *testing.T) {
	fake := faker.New()
	ratings := make([]dataset.Rating, 400)
	for i := range ratings {
		ratings[i] = dataset.Rating{
			UserId: fake.IntBetween(1, 30),
			ItemId: fake.IntBetween(1, 50),
			Rating: float64(fake.IntBetween(1, 97)) / 97,
		}
	}
	pivot, err := matrix.NewPivot(ratings)
	require.NoError(t, err)
	dense, err := matrix.Cosine(pivot, config.RepresentationDense)
	require.NoError(t, err)
	sparse, err := matrix.Cosine(pivot, config.RepresentationSparse)
	require.NoError(t, err)
	denseIndex, sparseIndex := Extract(dense, 10), Extract(sparse, 10)
	require.Equal(t, len(denseIndex), len(sparseIndex))
	for source, neighbors := range denseIndex {
		require.Len(t, sparseIndex[source], len(neighbors))
		for i := range neighbors {
			assert.InDelta(t, neighbors[i].Score, sparseIndex[source][i].Score, 1e-12)
		}
	}
}

func TestExtractInvariants(t *testing.T) {
	fake := faker.New()
	ratings := make([]dataset.Rating, 300)
	for i := range ratings {
		ratings[i] = dataset.Rating{
			UserId: fake.IntBetween(1, 20),
			ItemId: fake.IntBetween(1, 40),
			Rating: float64(fake.IntBetween(0, 5)) / 5,
		}
	}
	pivot, err := matrix.NewPivot(ratings)
	require.NoError(t, err)
	table, err := matrix.Cosine(pivot, config.RepresentationSparse)
	require.NoError(t, err)
	k := fake.IntBetween(1, 15)
	for source, neighbors := range Extract(table, k) {
		assert.LessOrEqual(t, len(neighbors), k)
		for i, neighbor := range neighbors {
			assert.NotEqual(t, source, neighbor.ItemId)
			assert.GreaterOrEqual(t, neighbor.Score, -1.0)
			assert.LessOrEqual(t, neighbor.Score, 1.0)
			if i > 0 {
				prev := neighbors[i-1]
				assert.True(t, prev.Score > neighbor.Score ||
					(prev.Score == neighbor.Score && prev.ItemId < neighbor.ItemId))
			}
		}
	}
}

func TestExtractCSV(t *testing.T) {
	index, err := ExtractCSV(strings.NewReader(
		"itemId,1,2,3\n"+
			"1,1,0.8,0.2\n"+
			"2,0.8,1,0.5\n"+
			"3,0.2,0.5,1\n"), 1)
	require.NoError(t, err)
	assert.Equal(t, Index{1: {}, 2: {}, 3: {}}, index)

	index, err = ExtractCSV(strings.NewReader(
		"itemId,1,2,3\n"+
			"1,1,0.8,0.2\n"+
			"2,0.8,1,0.5\n"+
			"3,0.2,0.5,1\n"), 2)
	require.NoError(t, err)
	assert.Equal(t, Index{
		1: {{2, 0.8}},
		2: {{1, 0.8}},
		3: {{2, 0.5}},
	}, index)

	_, err = ExtractCSV(strings.NewReader("itemId,1\n1,abc\n"), 2)
	assert.True(t, errors.Is(err, ErrMalformedIntermediate))
	_, err = ExtractCSV(strings.NewReader(""), 2)
	assert.True(t, errors.Is(err, ErrMalformedIntermediate))
}

func TestIndexJSON(t *testing.T) {
	index := Index{10: {{2, 0.8}, {3, 0.5}}, 2: {}}
	var buf bytes.Buffer
	require.NoError(t, WriteIndex(&buf, index))
	assert.Contains(t, buf.String(), `"itemId": 2`)
	assert.Contains(t, buf.String(), `"score": 0.8`)
	assert.Contains(t, buf.String(), `"2": []`)
	loaded, err := ReadIndex(&buf)
	require.NoError(t, err)
	assert.Equal(t, index, loaded)

	_, err = ReadIndex(strings.NewReader(`{"1": [{"itemId": "x"}]}`))
	assert.True(t, errors.Is(err, ErrMalformedIntermediate))
	_, err = ReadIndex(strings.NewReader(`{"1": [`))
	assert.True(t, errors.Is(err, ErrMalformedIntermediate))
}
