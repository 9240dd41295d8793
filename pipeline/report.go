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
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/gorse-io/itemsim/neighbors"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
)

// Summary lists the items with the most neighbors.
type Summary struct {
	TotalItems int
	Top        []SummaryItem
}

type SummaryItem struct {
	ItemId    int
	Title     string
	Neighbors int
}

// Summarize returns the n items with the most merged neighbors, ties broken by item id.
func Summarize(merged neighbors.Merged, titles map[int]string, n int) *Summary {
	items := make([]SummaryItem, 0, len(merged))
	for itemId, list := range merged {
		items = append(items, SummaryItem{ItemId: itemId, Title: titles[itemId], Neighbors: len(list)})
	}
	slices.SortFunc(items, func(a, b SummaryItem) int {
		return cmp.Or(cmp.Compare(b.Neighbors, a.Neighbors), cmp.Compare(a.ItemId, b.ItemId))
	})
	return &Summary{TotalItems: len(merged), Top: items[:min(n, len(items))]}
}

// Render prints the summary as a table.
func (s *Summary) Render(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Total items: %d\n", s.TotalItems); err != nil {
		return errors.Trace(err)
	}
	table := tablewriter.NewWriter(w)
	table.Header("Item", "Title", "Neighbors")
	for _, item := range s.Top {
		if err := table.Append([]string{strconv.Itoa(item.ItemId), item.Title, strconv.Itoa(item.Neighbors)}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
