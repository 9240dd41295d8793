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

package blob

import (
	"context"
	"io"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore runs the same checks against every backend. The store must be empty.
func testStore(t *testing.T, store Store) {
	ctx := context.Background()
	names, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	// write through WriteFile
	err = WriteFile(ctx, store, "neighbors/partition_1_similarities.json", func(w io.Writer) error {
		_, err := w.Write([]byte(`{"1":[]}`))
		return err
	})
	require.NoError(t, err)
	err = WriteFile(ctx, store, "merged_similarities.json", func(w io.Writer) error {
		_, err := w.Write([]byte(`{}`))
		return err
	})
	require.NoError(t, err)

	// a failed producer leaves nothing behind
	err = WriteFile(ctx, store, "neighbors/partition_2_similarities.json", func(w io.Writer) error {
		_, _ = w.Write([]byte(`{"2":`))
		return errors.New("encode failed")
	})
	assert.ErrorContains(t, err, "encode failed")

	names, err = store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"neighbors/partition_1_similarities.json", "merged_similarities.json"}, names)
	files, err := ListDir(store, "neighbors")
	require.NoError(t, err)
	assert.Equal(t, []string{"partition_1_similarities.json"}, files)
	files, err = ListDir(store, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"merged_similarities.json"}, files)

	// read back
	err = ReadFile(store, "neighbors/partition_1_similarities.json", func(r io.Reader) error {
		data, err := io.ReadAll(r)
		assert.Equal(t, `{"1":[]}`, string(data))
		return err
	})
	require.NoError(t, err)
	_, err = store.Open("neighbors/partition_9_similarities.json")
	assert.True(t, errors.Is(err, errors.NotFound), err)

	// remove
	require.NoError(t, store.Remove("neighbors/partition_1_similarities.json"))
	require.NoError(t, store.Remove("merged_similarities.json"))
	names, err = store.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestKeys(t *testing.T) {
	k := newKeys("/artifacts/")
	assert.Equal(t, "artifacts/neighbors/a.json", k.key("neighbors/a.json"))
	assert.Equal(t, "artifacts/", k.dir())
	name, ok := k.name("artifacts/neighbors/a.json")
	assert.True(t, ok)
	assert.Equal(t, "neighbors/a.json", name)
	_, ok = k.name("other/a.json")
	assert.False(t, ok)

	k = newKeys("")
	assert.Equal(t, "a.json", k.key("a.json"))
	assert.Empty(t, k.dir())
	name, ok = k.name("a.json")
	assert.True(t, ok)
	assert.Equal(t, "a.json", name)
}
