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
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRatings(t *testing.T) {
	ratings, err := ReadRatings(strings.NewReader(
		"userId,movieId,rating,timestamp\n"+
			"1,10,5.0,1112486027\n"+
			"1,20,2.5,1112484676\n"+
			"2,10,,1112484819\n"), 5)
	require.NoError(t, err)
	require.Len(t, ratings, 3)
	assert.Equal(t, Rating{UserId: 1, ItemId: 10, Rating: 1}, ratings[0])
	assert.Equal(t, Rating{UserId: 1, ItemId: 20, Rating: 0.5}, ratings[1])
	assert.True(t, math.IsNaN(ratings[2].Rating))

	// columns in any order
	ratings, err = ReadRatings(strings.NewReader("rating,itemId,userId\n4,7,3\n"), 4)
	require.NoError(t, err)
	assert.Equal(t, []Rating{{UserId: 3, ItemId: 7, Rating: 1}}, ratings)
}

func TestReadRatingsInvalid(t *testing.T) {
	_, err := ReadRatings(strings.NewReader(""), 5)
	assert.True(t, errors.Is(err, ErrInputRead))
	_, err = ReadRatings(strings.NewReader("userId,title\n1,a\n"), 5)
	assert.True(t, errors.Is(err, ErrInputRead))
	_, err = ReadRatings(strings.NewReader("userId,itemId,rating\n1,x,3\n"), 5)
	assert.True(t, errors.Is(err, ErrInputRead))
	assert.ErrorContains(t, err, "line 2")
	_, err = ReadRatings(strings.NewReader("userId,itemId,rating\n1,2\n"), 5)
	assert.True(t, errors.Is(err, ErrInputRead))
	for _, value := range []string{"inf", "-Inf", "NaN", "1e400"} {
		_, err = ReadRatings(strings.NewReader("userId,itemId,rating\n1,2,4\n1,3,"+value+"\n"), 5)
		assert.True(t, errors.Is(err, ErrInputRead), value)
		assert.ErrorContains(t, err, "line 3", value)
	}
}

func TestLoadRatings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rating.csv")
	require.NoError(t, os.WriteFile(path, []byte("userId,movieId,rating\n1,2,2.5\n"), 0o644))
	ratings, err := LoadRatings(path, 5)
	require.NoError(t, err)
	assert.Equal(t, []Rating{{UserId: 1, ItemId: 2, Rating: 0.5}}, ratings)

	_, err = LoadRatings(filepath.Join(t.TempDir(), "not_exist.csv"), 5)
	assert.True(t, errors.Is(err, ErrInputRead))
}

func TestLoadItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movie.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"movieId,title,genres\n"+
			"1,Toy Story (1995),Adventure|Animation\n"+
			"2,\"Jumanji, The (1995)\",Adventure\n"), 0o644))
	items, err := LoadItems(path)
	require.NoError(t, err)
	assert.Equal(t, []Item{{ItemId: 1, Title: "Toy Story (1995)"}, {ItemId: 2, Title: "Jumanji, The (1995)"}}, items)
	assert.Equal(t, map[int]string{1: "Toy Story (1995)", 2: "Jumanji, The (1995)"}, Titles(items))

	_, err = LoadItems(filepath.Join(t.TempDir(), "not_exist.csv"))
	assert.True(t, errors.Is(err, ErrInputRead))
}

func TestFilterUnknownItems(t *testing.T) {
	ratings := []Rating{{1, 1, 1}, {1, 2, 1}, {2, 3, 1}, {2, 1, 0.5}}
	filtered := FilterUnknownItems(ratings, []Item{{ItemId: 1}, {ItemId: 3}})
	assert.Equal(t, []Rating{{1, 1, 1}, {2, 3, 1}, {2, 1, 0.5}}, filtered)
}
