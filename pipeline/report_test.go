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
	"bytes"
	"testing"

	"github.com/gorse-io/itemsim/neighbors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	merged := neighbors.Merged{
		1: {{ItemId: 2, AvgScore: 0.9}, {ItemId: 3, AvgScore: 0.5}},
		2: {{ItemId: 1, AvgScore: 0.9}},
		3: {{ItemId: 1, AvgScore: 0.5}, {ItemId: 2, AvgScore: 0.1}},
		4: {},
	}
	summary := Summarize(merged, map[int]string{1: "Toy Story (1995)", 3: "Heat (1995)"}, 2)
	assert.Equal(t, 4, summary.TotalItems)
	assert.Equal(t, []SummaryItem{
		{ItemId: 1, Title: "Toy Story (1995)", Neighbors: 2},
		{ItemId: 3, Title: "Heat (1995)", Neighbors: 2},
	}, summary.Top)
	assert.Len(t, Summarize(merged, nil, 5).Top, 4)

	var buf bytes.Buffer
	require.NoError(t, summary.Render(&buf))
	assert.Contains(t, buf.String(), "Total items: 4")
	assert.Contains(t, buf.String(), "Toy Story (1995)")
	assert.Contains(t, buf.String(), "Heat (1995)")
}
