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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/pivotcore/core/records"
)

// JSONLoader implements DataSourceLoader for JSON files holding an array of
// flat objects, or newline delimited objects when SourceType is "ndjson".
//
// Required config keys:
//   - file_path: Path to the file, optionally compressed
type JSONLoader struct {
	delimited bool
}

// NewJSONLoader creates a loader for a JSON array of objects.
func NewJSONLoader() *JSONLoader {
	return &JSONLoader{}
}

// NewNDJSONLoader creates a loader for one JSON object per line.
func NewNDJSONLoader() *JSONLoader {
	return &JSONLoader{delimited: true}
}

// SourceType returns "json" or "ndjson".
func (l *JSONLoader) SourceType() string {
	if l.delimited {
		return "ndjson"
	}
	return "json"
}

// Load reads the file named by file_path.
func (l *JSONLoader) Load(ctx context.Context, config map[string]string) ([]records.Record, error) {
	filePath := config[KeyFilePath]
	if filePath == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, KeyFilePath)
	}
	file, err := OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if l.delimited {
		return ParseNDJSON(ctx, file)
	}
	return ParseJSON(ctx, file)
}

// ParseJSON decodes an array of flat objects. Numbers keep full precision
// until they are converted to float64; nested objects and arrays are errors.
func ParseJSON(ctx context.Context, r io.Reader) ([]records.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]records.Record, 0, len(rows))
	for i, row := range rows {
		rec, err := records.New(row)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ParseNDJSON decodes one object per line. Blank lines are skipped.
func ParseNDJSON(ctx context.Context, r io.Reader) ([]records.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var out []records.Record
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		var row map[string]any
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := records.New(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read NDJSON: %w", err)
	}
	return out, nil
}
