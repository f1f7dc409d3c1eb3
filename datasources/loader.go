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

// Package datasources loads records from files, databases, remote endpoints
// and pushed streams, with support for reusable column annotations.
package datasources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/pivot"
	"github.com/google/pivotcore/core/records"
)

// Config keys understood by the built-in loaders.
const (
	KeyFilePath  = "file_path"
	KeyURL       = "url"
	KeyFormat    = "format"
	KeyHasHeader = "has_header"
	KeyDelimiter = "delimiter"
	KeyTyped     = "typed"
	KeyDriver    = "driver"
	KeyDSN       = "dsn"
	KeyQuery     = "query"
)

var (
	// ErrUnknownSource is returned for a source name that was never added.
	ErrUnknownSource = errors.New("unknown data source")
	// ErrNoLoader is returned when no loader is registered for a source type.
	ErrNoLoader = errors.New("no loader registered")
	// ErrMissingConfig is returned when a required config key is absent.
	ErrMissingConfig = errors.New("missing config key")
)

// ColumnType represents the data type of a column.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeNumber
	TypeBool
	TypeDatetime
)

// String returns the string representation of the column type.
func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "bool"
	case TypeDatetime:
		return "datetime"
	default:
		return "unknown"
	}
}

// ColumnSchema represents a single column's schema discovered from a data source.
type ColumnSchema struct {
	Name string
	Type ColumnType
}

// TableSchema represents the full table schema discovered from a data source.
type TableSchema struct {
	Columns []ColumnSchema
}

// ColumnAnnotation is reusable display metadata for a column.
type ColumnAnnotation struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	// Type overrides the discovered dimension type ("string", "number", "date").
	Type string `yaml:"type"`
}

// EnrichedColumn combines discovered schema with annotations.
type EnrichedColumn struct {
	Name        string
	Type        ColumnType
	DisplayName string
}

// ColumnAnnotations is a named, reusable set of column annotations.
type ColumnAnnotations struct {
	AnnotationsID string             `yaml:"annotations_id"`
	Columns       []ColumnAnnotation `yaml:"columns"`
}

// DataSource describes one source: its loader type and the loader config.
// Inline annotations win over those of the referenced set.
type DataSource struct {
	Name          string             `yaml:"name"`
	SourceType    string             `yaml:"type"`
	Config        map[string]string  `yaml:"config"`
	AnnotationsID string             `yaml:"annotations_id"`
	Annotations   []ColumnAnnotation `yaml:"annotations"`
}

// DataSourcesConfig is the file form of a set of sources.
type DataSourcesConfig struct {
	Annotations []ColumnAnnotations `yaml:"annotations"`
	Sources     []DataSource        `yaml:"sources"`
}

// DataSourceLoader is the interface that all data source loaders must implement.
// Users can register additional loaders for other databases, APIs, or formats.
type DataSourceLoader interface {
	// SourceType returns the type identifier used in config (e.g., "csv", "sql").
	SourceType() string

	// Load retrieves the records described by config.
	Load(ctx context.Context, config map[string]string) ([]records.Record, error)
}

// DiscoverSchema infers column names and types from loaded records. Columns
// appear in the order they are first seen, sorted by name within a record. A
// column whose non-null values all share one kind gets that type; mixed
// columns are strings.
func DiscoverSchema(recs []records.Record) *TableSchema {
	schema := &TableSchema{}
	index := make(map[string]int)
	kinds := make(map[string]records.Kind)
	mixed := make(map[string]bool)

	for _, r := range recs {
		for _, name := range r.Fields() {
			if _, ok := index[name]; !ok {
				index[name] = len(schema.Columns)
				schema.Columns = append(schema.Columns, ColumnSchema{Name: name})
			}
			v := r.Get(name)
			if v.IsNull() {
				continue
			}
			if k, seen := kinds[name]; seen && k != v.Kind() {
				mixed[name] = true
			}
			kinds[name] = v.Kind()
		}
	}

	for i, c := range schema.Columns {
		if mixed[c.Name] {
			continue
		}
		switch kinds[c.Name] {
		case records.KindNumber:
			schema.Columns[i].Type = TypeNumber
		case records.KindBool:
			schema.Columns[i].Type = TypeBool
		case records.KindString:
			if allDates(recs, c.Name) {
				schema.Columns[i].Type = TypeDatetime
			}
		}
	}
	return schema
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func isDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func allDates(recs []records.Record, field string) bool {
	seen := false
	for _, r := range recs {
		v := r.Get(field)
		if v.IsNull() {
			continue
		}
		if !isDate(v.Text()) {
			return false
		}
		seen = true
	}
	return seen
}

// EnrichSchema combines a discovered TableSchema with column annotations.
// For each column in the schema, it applies display_name from annotations.
func EnrichSchema(schema *TableSchema, annotations []ColumnAnnotation) []EnrichedColumn {
	annotationMap := make(map[string]ColumnAnnotation, len(annotations))
	for _, a := range annotations {
		annotationMap[a.Name] = a
	}

	result := make([]EnrichedColumn, len(schema.Columns))
	for i, col := range schema.Columns {
		enriched := EnrichedColumn{
			Name:        col.Name,
			Type:        col.Type,
			DisplayName: col.Name,
		}
		if ann, ok := annotationMap[col.Name]; ok {
			if ann.DisplayName != "" {
				enriched.DisplayName = ann.DisplayName
			}
			switch strings.ToLower(ann.Type) {
			case "number":
				enriched.Type = TypeNumber
			case "date", "datetime":
				enriched.Type = TypeDatetime
			case "string":
				enriched.Type = TypeString
			case "bool":
				enriched.Type = TypeBool
			}
		}
		result[i] = enriched
	}
	return result
}

// Dimensions turns enriched columns into pivot dimension metadata.
func Dimensions(columns []EnrichedColumn) []pivot.Dimension {
	dims := make([]pivot.Dimension, len(columns))
	for i, c := range columns {
		d := pivot.Dimension{Field: c.Name, Label: c.DisplayName}
		switch c.Type {
		case TypeNumber:
			d.Type = pivot.NumberDimension
		case TypeDatetime:
			d.Type = pivot.DateDimension
		}
		dims[i] = d
	}
	return dims
}

// DeriveLayout gives an engine without a layout one: numeric fields become
// measures with the default aggregation and the other fields rows.
func DeriveLayout(e *pivot.Engine) error {
	var rows []string
	var measures []aggregates.Measure
	for _, c := range DiscoverSchema(e.GetState().Records).Columns {
		if c.Type == TypeNumber {
			measures = append(measures, aggregates.Measure{UniqueName: c.Name})
		} else {
			rows = append(rows, c.Name)
		}
	}
	if err := e.SetMeasures(measures...); err != nil {
		return err
	}
	return e.SetRows(pivot.Fields(rows...)...)
}

// HasLayout reports whether cfg places any field on an axis or as a measure.
func HasLayout(cfg pivot.Configuration) bool {
	return len(cfg.Rows) > 0 || len(cfg.Columns) > 0 || len(cfg.Measures) > 0
}

// OpenFile opens path for reading and transparently decompresses .gz, .zst
// and .lz4 files.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	rc, err := decompress(f, path)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return rc, nil
}

// decompress wraps r according to the compression extension of name. The
// returned closer also closes r.
func decompress(r io.ReadCloser, name string) (io.ReadCloser, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: zr, close: func() error {
			zr.Close()
			return r.Close()
		}}, nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: zr, close: func() error {
			zr.Close()
			return r.Close()
		}}, nil
	case ".lz4":
		return &readCloser{Reader: lz4.NewReader(r), close: r.Close}, nil
	default:
		return r, nil
	}
}

// baseName strips compression extensions, so "orders.csv.gz" reads as
// "orders.csv" when guessing the format.
func baseName(name string) string {
	for {
		switch ext := strings.ToLower(filepath.Ext(name)); ext {
		case ".gz", ".gzip", ".zst", ".zstd", ".lz4":
			name = strings.TrimSuffix(name, filepath.Ext(name))
		default:
			return name
		}
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (rc *readCloser) Close() error {
	return rc.close()
}
