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
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/gorse-io/itemsim/common/util"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

const csvIndexLabel = "itemId"

// WriteCSV writes a similarity table with item ids as the header and as the first column
// of each row. Floats are written with the shortest representation that reads back
// to the same value.
func WriteCSV(w io.Writer, table *SimilarityTable) error {
	writer := csv.NewWriter(w)
	record := make([]string, table.Len()+1)
	record[0] = csvIndexLabel
	for j, itemId := range table.Items() {
		record[j+1] = strconv.Itoa(itemId)
	}
	if err := writer.Write(record); err != nil {
		return errors.Trace(err)
	}
	var row []float64
	for i, itemId := range table.Items() {
		row = table.Row(i, row)
		record[0] = strconv.Itoa(itemId)
		for j, v := range row {
			record[j+1] = util.FormatFloat(v)
		}
		if err := writer.Write(record); err != nil {
			return errors.Trace(err)
		}
	}
	writer.Flush()
	return errors.Trace(writer.Error())
}

// CSVReader streams the rows of a similarity table written by WriteCSV.
type CSVReader struct {
	reader *csv.Reader
	items  []int
	line   int
	row    []float64
}

// NewCSVReader reads the header of a similarity table.
func NewCSVReader(r io.Reader) (*CSVReader, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Annotate(err, "missing header")
	}
	if len(header) < 1 {
		return nil, errors.Errorf("empty header")
	}
	items := make([]int, len(header)-1)
	for j, field := range header[1:] {
		if items[j], err = util.ParseInt[int](strings.TrimSpace(field)); err != nil {
			return nil, errors.Annotatef(err, "header column %d", j+1)
		}
	}
	return &CSVReader{reader: reader, items: items, line: 1, row: make([]float64, len(items))}, nil
}

// Items returns the column labels.
func (r *CSVReader) Items() []int {
	return r.items
}

// Next returns the source item and the scores of the next row. The returned slice is
// reused by the following call. io.EOF is returned after the last row.
func (r *CSVReader) Next() (int, []float64, error) {
	record, err := r.reader.Read()
	if err == io.EOF {
		return 0, nil, io.EOF
	} else if err != nil {
		return 0, nil, errors.Trace(err)
	}
	r.line++
	source, err := util.ParseInt[int](strings.TrimSpace(record[0]))
	if err != nil {
		return 0, nil, errors.Annotatef(err, "line %d", r.line)
	}
	for j, field := range record[1:] {
		if r.row[j], err = util.ParseFloat[float64](field); err != nil {
			return 0, nil, errors.Annotatef(err, "line %d", r.line)
		}
	}
	return source, r.row, nil
}

// ReadCSV loads a whole similarity table into a dense matrix.
func ReadCSV(r io.Reader) (*SimilarityTable, error) {
	reader, err := NewCSVReader(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	n := len(reader.Items())
	if n == 0 {
		return nil, errors.Errorf("empty similarity table")
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; ; i++ {
		source, row, err := reader.Next()
		if err == io.EOF {
			if i != n {
				return nil, errors.Errorf("expect %d rows but got %d", n, i)
			}
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if i >= n || source != reader.Items()[i] {
			return nil, errors.Errorf("unexpected row %d at line %d", source, reader.line)
		}
		m.SetRow(i, row)
	}
	return NewSimilarityTable(reader.Items(), &Dense{m: m}), nil
}
