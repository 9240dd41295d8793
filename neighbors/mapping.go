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
	"cmp"
	"io"
	"slices"
	"sync"

	"github.com/gorse-io/itemsim/common/encoding"
	"github.com/juju/errors"
)

// FileMapping maps an item to the partition neighbor files that contain it.
type FileMapping map[int][]string

type mappingEntry struct {
	ordinal  int
	filename string
}

// Accumulator collects the file mapping from concurrent partition workers.
type Accumulator struct {
	mu      sync.Mutex
	entries map[int][]mappingEntry
}

func NewAccumulator() *Accumulator {
	return &Accumulator{entries: make(map[int][]mappingEntry)}
}

// Add records that filename, written for the partition with the given ordinal, holds
// neighbors of items.
func (acc *Accumulator) Add(ordinal int, filename string, items []int) {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	for _, itemId := range items {
		acc.entries[itemId] = append(acc.entries[itemId], mappingEntry{ordinal: ordinal, filename: filename})
	}
}

// Mapping returns the file lists ordered by partition ordinal.
func (acc *Accumulator) Mapping() FileMapping {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	mapping := make(FileMapping, len(acc.entries))
	for itemId, entries := range acc.entries {
		sorted := slices.Clone(entries)
		slices.SortFunc(sorted, func(a, b mappingEntry) int {
			return cmp.Or(cmp.Compare(a.ordinal, b.ordinal), cmp.Compare(a.filename, b.filename))
		})
		files := make([]string, len(sorted))
		for i, entry := range sorted {
			files[i] = entry.filename
		}
		mapping[itemId] = files
	}
	return mapping
}

func WriteMapping(w io.Writer, mapping FileMapping) error {
	return errors.Trace(encoding.WriteJSON(w, mapping))
}

func ReadMapping(r io.Reader) (FileMapping, error) {
	var mapping FileMapping
	if err := encoding.ReadJSON(r, &mapping); err != nil {
		return nil, errors.WithType(errors.Trace(err), ErrMalformedIntermediate)
	}
	return mapping, nil
}
