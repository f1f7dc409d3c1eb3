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
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/google/pivotcore/core/records"
)

// ProtoLoader implements DataSourceLoader for a google.protobuf.ListValue
// whose elements are Struct messages, one per record.
//
// Required config keys:
//   - file_path: Path to the data file (.json, .textproto or .binpb)
//
// Optional config keys:
//   - format: "json", "textproto" or "binary" (inferred from extension if not specified)
type ProtoLoader struct{}

// NewProtoLoader creates a new proto loader.
func NewProtoLoader() *ProtoLoader {
	return &ProtoLoader{}
}

// SourceType returns "proto".
func (l *ProtoLoader) SourceType() string {
	return "proto"
}

// Load reads the file named by file_path.
func (l *ProtoLoader) Load(ctx context.Context, config map[string]string) ([]records.Record, error) {
	filePath := config[KeyFilePath]
	if filePath == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, KeyFilePath)
	}

	// Determine format
	format := config[KeyFormat]
	if format == "" {
		switch strings.ToLower(filepath.Ext(baseName(filePath))) {
		case ".json":
			format = "json"
		case ".textproto", ".txtpb":
			format = "textproto"
		default:
			format = "binary"
		}
	}

	file, err := OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read proto file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ParseProto(data, format)
}

// ParseProto decodes a ListValue of Structs in the given format.
func ParseProto(data []byte, format string) ([]records.Record, error) {
	list := &structpb.ListValue{}
	var err error
	switch format {
	case "json":
		err = protojson.Unmarshal(data, list)
	case "textproto":
		err = prototext.Unmarshal(data, list)
	case "binary":
		err = proto.Unmarshal(data, list)
	default:
		return nil, fmt.Errorf("unknown format: %s (expected 'json', 'textproto' or 'binary')", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s ListValue: %w", format, err)
	}
	return RecordsFromList(list)
}

// RecordsFromList converts Struct elements to records. Nested lists and
// structs are rejected.
func RecordsFromList(list *structpb.ListValue) ([]records.Record, error) {
	out := make([]records.Record, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("element %d is not a struct", i)
		}
		fields := make(map[string]records.Value, len(s.GetFields()))
		for name, fv := range s.GetFields() {
			val, err := protoValue(fv)
			if err != nil {
				return nil, fmt.Errorf("element %d field %q: %w", i, name, err)
			}
			fields[name] = val
		}
		out = append(out, records.FromValues(fields))
	}
	return out, nil
}

func protoValue(v *structpb.Value) (records.Value, error) {
	switch k := v.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return records.Null(), nil
	case *structpb.Value_NumberValue:
		return records.Number(k.NumberValue), nil
	case *structpb.Value_StringValue:
		return records.String(k.StringValue), nil
	case *structpb.Value_BoolValue:
		return records.Bool(k.BoolValue), nil
	default:
		return records.Null(), fmt.Errorf("unsupported value kind %T", k)
	}
}

// ListFromRecords is the inverse of RecordsFromList.
func ListFromRecords(recs []records.Record) (*structpb.ListValue, error) {
	values := make([]any, len(recs))
	for i, r := range recs {
		values[i] = r.Map()
	}
	return structpb.NewList(values)
}
