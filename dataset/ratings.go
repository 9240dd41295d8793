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
	"encoding/csv"
	"io"
	"math"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/itemsim/common/log"
	"github.com/gorse-io/itemsim/common/util"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ErrInputRead is returned when a source file is missing or corrupt.
const ErrInputRead = errors.ConstError("failed to read input")

// Rating is one row of the rating log.
type Rating struct {
	UserId int
	ItemId int
	Rating float64
}

type Item struct {
	ItemId int
	Title  string
}

var (
	userColumns   = []string{"userid", "user_id"}
	itemColumns   = []string{"itemid", "item_id", "movieid", "movie_id"}
	ratingColumns = []string{"rating", "score"}
	titleColumns  = []string{"title", "name"}
)

// LoadRatings loads a rating log from a CSV file. Ratings are divided by scale.
func LoadRatings(path string, scale float64) ([]Rating, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithType(errors.Trace(err), ErrInputRead)
	}
	defer f.Close()
	ratings, err := ReadRatings(f, scale)
	if err != nil {
		return nil, errors.Annotatef(err, "ratings file %s", path)
	}
	log.Logger().Info("load ratings",
		zap.String("path", path),
		zap.Int("n_ratings", len(ratings)))
	return ratings, nil
}

// ReadRatings parses a rating log with columns userId, itemId (or movieId) and rating.
// Other columns such as timestamp are ignored. An empty rating is kept as NaN.
func ReadRatings(r io.Reader, scale float64) ([]Rating, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	header, err := reader.Read()
	if err != nil {
		return nil, errors.WithType(errors.Annotate(err, "missing header"), ErrInputRead)
	}
	userIndex, itemIndex, ratingIndex := findColumn(header, userColumns), findColumn(header, itemColumns), findColumn(header, ratingColumns)
	if userIndex < 0 || itemIndex < 0 || ratingIndex < 0 {
		return nil, errors.WithType(errors.Errorf("header %v requires userId, itemId and rating", header), ErrInputRead)
	}
	var ratings []Rating
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.WithType(errors.Trace(err), ErrInputRead)
		}
		var rating Rating
		if rating.UserId, err = util.ParseInt[int](strings.TrimSpace(record[userIndex])); err != nil {
			return nil, errors.WithType(errors.Annotatef(err, "line %d", line), ErrInputRead)
		}
		if rating.ItemId, err = util.ParseInt[int](strings.TrimSpace(record[itemIndex])); err != nil {
			return nil, errors.WithType(errors.Annotatef(err, "line %d", line), ErrInputRead)
		}
		if value := strings.TrimSpace(record[ratingIndex]); value == "" {
			rating.Rating = math.NaN()
		} else if rating.Rating, err = util.ParseFloat[float64](value); err != nil {
			return nil, errors.WithType(errors.Annotatef(err, "line %d", line), ErrInputRead)
		} else if math.IsInf(rating.Rating, 0) || math.IsNaN(rating.Rating) {
			return nil, errors.WithType(errors.Errorf("line %d: rating %q is not a finite number", line, value), ErrInputRead)
		} else {
			rating.Rating /= scale
		}
		ratings = append(ratings, rating)
	}
	return ratings, nil
}

// LoadItems loads items from a CSV file with columns itemId (or movieId) and title.
func LoadItems(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithType(errors.Trace(err), ErrInputRead)
	}
	defer f.Close()
	items, err := ReadItems(f)
	if err != nil {
		return nil, errors.Annotatef(err, "items file %s", path)
	}
	log.Logger().Info("load items",
		zap.String("path", path),
		zap.Int("n_items", len(items)))
	return items, nil
}

func ReadItems(r io.Reader) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, errors.WithType(errors.Annotate(err, "missing header"), ErrInputRead)
	}
	itemIndex, titleIndex := findColumn(header, itemColumns), findColumn(header, titleColumns)
	if itemIndex < 0 {
		return nil, errors.WithType(errors.Errorf("header %v requires itemId", header), ErrInputRead)
	}
	var items []Item
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.WithType(errors.Trace(err), ErrInputRead)
		}
		if itemIndex >= len(record) {
			return nil, errors.WithType(errors.Errorf("line %d: missing itemId", line), ErrInputRead)
		}
		var item Item
		if item.ItemId, err = util.ParseInt[int](strings.TrimSpace(record[itemIndex])); err != nil {
			return nil, errors.WithType(errors.Annotatef(err, "line %d", line), ErrInputRead)
		}
		if titleIndex >= 0 && titleIndex < len(record) {
			item.Title = record[titleIndex]
		}
		items = append(items, item)
	}
	return items, nil
}

// Titles returns a lookup from item id to title.
func Titles(items []Item) map[int]string {
	return lo.SliceToMap(items, func(item Item) (int, string) {
		return item.ItemId, item.Title
	})
}

// FilterUnknownItems drops ratings of items that are not listed in items.
func FilterUnknownItems(ratings []Rating, items []Item) []Rating {
	known := mapset.NewThreadUnsafeSet[int]()
	for _, item := range items {
		known.Add(item.ItemId)
	}
	filtered := lo.Filter(ratings, func(rating Rating, _ int) bool {
		return known.Contains(rating.ItemId)
	})
	if dropped := len(ratings) - len(filtered); dropped > 0 {
		log.Logger().Warn("drop ratings of unknown items", zap.Int("n_dropped", dropped))
	}
	return filtered
}

func findColumn(header []string, names []string) int {
	for i, column := range header {
		column = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(column, "\ufeff")))
		if lo.Contains(names, column) {
			return i
		}
	}
	return -1
}
