/*
SPDX-License-Identifier: Apache-2.0

Copyright 2024 The Taxinomia Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package datasources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/pivotcore/core/records"
)

// defaultSampleSize is the number of data rows inspected for type detection.
const defaultSampleSize = 100

// CSVOptions controls CSV parsing.
type CSVOptions struct {
	HasHeader bool
	Delimiter rune
	// Typed infers number, bool and date columns; otherwise every cell is a
	// string.
	Typed      bool
	SampleSize int
}

// DefaultCSVOptions returns options for a comma separated file with a header.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		HasHeader:  true,
		Delimiter:  ',',
		Typed:      true,
		SampleSize: defaultSampleSize,
	}
}

// csvOptions reads the CSV keys of a loader config.
func csvOptions(config map[string]string) CSVOptions {
	opts := DefaultCSVOptions()
	if h := config[KeyHasHeader]; h == "false" {
		opts.HasHeader = false
	}
	if d := config[KeyDelimiter]; d != "" {
		if d == `\t` || d == "tab" {
			opts.Delimiter = '\t'
		} else {
			opts.Delimiter = rune(d[0])
		}
	}
	if t := config[KeyTyped]; t == "false" {
		opts.Typed = false
	}
	return opts
}

// CsvLoader implements DataSourceLoader for CSV files.
//
// Required config keys:
//   - file_path: Path to the CSV file, optionally .gz, .zst or .lz4 compressed
//
// Optional config keys:
//   - has_header: "true" or "false" (default: "true")
//   - delimiter: Field delimiter (default: ",")
//   - typed: "false" loads every column as strings (default: "true")
type CsvLoader struct{}

// NewCsvLoader creates a new CSV loader.
func NewCsvLoader() *CsvLoader {
	return &CsvLoader{}
}

// SourceType returns "csv".
func (l *CsvLoader) SourceType() string {
	return "csv"
}

// Load reads the CSV file named by file_path.
func (l *CsvLoader) Load(ctx context.Context, config map[string]string) ([]records.Record, error) {
	filePath := config[KeyFilePath]
	if filePath == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, KeyFilePath)
	}
	file, err := OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	recs, _, err := ParseCSV(ctx, file, csvOptions(config))
	return recs, err
}

// ParseCSV reads CSV rows into records and returns the schema in header
// order. Empty cells are null. Without a header, columns are named col_0,
// col_1, and so on.
func ParseCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]records.Record, *TableSchema, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, errors.New("CSV file is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// Determine column names
	var columnNames []string
	dataStart := 0
	if opts.HasHeader {
		for _, name := range rows[0] {
			columnNames = append(columnNames, strings.TrimSpace(name))
		}
		dataStart = 1
	} else {
		for i := range rows[0] {
			columnNames = append(columnNames, fmt.Sprintf("col_%d", i))
		}
	}
	dataRows := rows[dataStart:]

	schema := &TableSchema{Columns: make([]ColumnSchema, len(columnNames))}
	for i, name := range columnNames {
		schema.Columns[i] = ColumnSchema{Name: name, Type: TypeString}
		if opts.Typed {
			schema.Columns[i].Type = inferColumnType(i, dataRows, opts.SampleSize)
		}
	}

	out := make([]records.Record, 0, len(dataRows))
	for _, row := range dataRows {
		fields := make(map[string]records.Value, len(columnNames))
		for i, col := range schema.Columns {
			if i < len(row) {
				fields[col.Name] = convertCell(row[i], col.Type)
			} else {
				fields[col.Name] = records.Null()
			}
		}
		out = append(out, records.FromValues(fields))
	}
	return out, schema, nil
}

// convertCell converts a cell to the column type. A cell that does not fit
// the sampled type keeps its string form.
func convertCell(s string, t ColumnType) records.Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return records.Null()
	}
	switch t {
	case TypeNumber:
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return records.Number(v)
		}
	case TypeBool:
		switch strings.ToLower(s) {
		case "true", "yes":
			return records.Bool(true)
		case "false", "no":
			return records.Bool(false)
		}
	}
	return records.String(s)
}

// inferColumnType samples data to determine the column type.
func inferColumnType(colIdx int, rows [][]string, sampleSize int) ColumnType {
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}
	if sampleSize > len(rows) {
		sampleSize = len(rows)
	}

	isNumber := true
	isBool := true
	isDatetime := true
	hasNonEmpty := false

	for i := 0; i < sampleSize; i++ {
		if colIdx >= len(rows[i]) {
			continue
		}
		val := strings.TrimSpace(rows[i][colIdx])
		if val == "" {
			continue // Skip empty values
		}
		hasNonEmpty = true

		if isNumber {
			if _, err := strconv.ParseFloat(val, 64); err != nil {
				isNumber = false
			}
		}
		if isBool {
			switch strings.ToLower(val) {
			case "true", "false", "yes", "no":
			default:
				isBool = false
			}
		}
		if isDatetime && !isDate(val) {
			isDatetime = false
		}
	}

	switch {
	case !hasNonEmpty:
		return TypeString
	case isNumber:
		return TypeNumber
	case isBool:
		return TypeBool
	case isDatetime:
		return TypeDatetime
	default:
		return TypeString
	}
}
