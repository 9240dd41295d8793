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

package dataset

import (
	"cmp"
	"slices"

	"github.com/gorse-io/itemsim/config"
	"github.com/juju/errors"
)

// Partition is a half-open row range [Start, End) of the sorted rating log.
type Partition struct {
	Index int
	Start int
	End   int
}

func (p Partition) Len() int {
	return p.End - p.Start
}

// Ordinal is the 1-based number used in artifact names.
func (p Partition) Ordinal() int {
	return p.Index + 1
}

// Slice returns the ratings of the partition.
func (p Partition) Slice(ratings []Rating) []Rating {
	return ratings[p.Start:p.End]
}

// SortByUser sorts ratings by user id. Rows of the same user keep their order.
func SortByUser(ratings []Rating) {
	slices.SortStableFunc(ratings, func(a, b Rating) int {
		return cmp.Compare(a.UserId, b.UserId)
	})
}

// PartitionRows splits total rows into contiguous windows of size rows. The last window
// may be shorter.
func PartitionRows(total, size int) []Partition {
	if total <= 0 || size <= 0 {
		return nil
	}
	partitions := make([]Partition, 0, (total+size-1)/size)
	for start := 0; start < total; start += size {
		partitions = append(partitions, Partition{
			Index: len(partitions),
			Start: start,
			End:   min(start+size, total),
		})
	}
	return partitions
}

// PartitionUsers splits ratings sorted by user into blocks of whole users. A block is
// closed when the next user would push it over size rows. A user with more than size
// rows gets a block of its own.
func PartitionUsers(sorted []Rating, size int) []Partition {
	if len(sorted) == 0 || size <= 0 {
		return nil
	}
	var partitions []Partition
	start := 0
	for i := 0; i < len(sorted); {
		// find the end of the current user
		j := i + 1
		for j < len(sorted) && sorted[j].UserId == sorted[i].UserId {
			j++
		}
		if i > start && j-start > size {
			partitions = append(partitions, Partition{Index: len(partitions), Start: start, End: i})
			start = i
		}
		i = j
	}
	partitions = append(partitions, Partition{Index: len(partitions), Start: start, End: len(sorted)})
	return partitions
}

// Split partitions ratings sorted by user with the given strategy.
func Split(sorted []Rating, strategy string, size int) ([]Partition, error) {
	if size <= 0 {
		return nil, errors.NotValidf("partition size %d", size)
	}
	switch strategy {
	case config.StrategyRows:
		return PartitionRows(len(sorted), size), nil
	case config.StrategyUsers:
		return PartitionUsers(sorted, size), nil
	default:
		return nil, errors.NotValidf("partition strategy %q", strategy)
	}
}
