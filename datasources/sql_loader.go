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
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/google/pivotcore/core/records"
)

// SQLLoader implements DataSourceLoader for SQL queries. Any registered
// database/sql driver works; "sqlite" is linked in.
//
// Required config keys:
//   - dsn: Data source name, e.g. a SQLite file path
//   - query: SELECT statement whose columns become record fields
//
// Optional config keys:
//   - driver: database/sql driver name (default: "sqlite")
type SQLLoader struct{}

// NewSQLLoader creates a new SQL loader.
func NewSQLLoader() *SQLLoader {
	return &SQLLoader{}
}

// SourceType returns "sql".
func (l *SQLLoader) SourceType() string {
	return "sql"
}

// Load runs the configured query.
func (l *SQLLoader) Load(ctx context.Context, config map[string]string) ([]records.Record, error) {
	dsn := config[KeyDSN]
	if dsn == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, KeyDSN)
	}
	query := config[KeyQuery]
	if query == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, KeyQuery)
	}
	driver := config[KeyDriver]
	if driver == "" {
		driver = "sqlite"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return QueryRecords(ctx, db, query)
}

// QueryRecords runs query on db and converts every row to a record keyed by
// column name.
func QueryRecords(ctx context.Context, db *sql.DB, query string, args ...any) ([]records.Record, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []records.Record
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		fields := make(map[string]records.Value, len(cols))
		for i, name := range cols {
			fields[name] = sqlValue(raw[i])
		}
		out = append(out, records.FromValues(fields))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// sqlValue converts a driver value. Byte slices are text; times are RFC 3339.
func sqlValue(v any) records.Value {
	switch x := v.(type) {
	case nil:
		return records.Null()
	case int64:
		return records.Number(float64(x))
	case float64:
		return records.Number(x)
	case bool:
		return records.Bool(x)
	case []byte:
		return records.String(string(x))
	case string:
		return records.String(x)
	case time.Time:
		return records.String(x.Format(time.RFC3339))
	default:
		if val, err := records.ValueOf(x); err == nil {
			return val
		}
		return records.String(fmt.Sprint(x))
	}
}

// placeholderList returns "?, ?, ..." for n arguments.
func placeholderList(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ", "
		}
		s += "?"
	}
	return s
}

// InsertRecords writes recs into table, creating it with one column per
// field. Column types follow DiscoverSchema.
func InsertRecords(ctx context.Context, db *sql.DB, table string, recs []records.Record) error {
	schema := DiscoverSchema(recs)
	if len(schema.Columns) == 0 {
		return nil
	}
	ddl := "CREATE TABLE IF NOT EXISTS " + strconv.Quote(table) + " ("
	names := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		names[i] = strconv.Quote(c.Name)
		if i > 0 {
			ddl += ", "
		}
		ddl += names[i] + " " + sqlType(c.Type)
	}
	ddl += ")"

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	insert := "INSERT INTO " + strconv.Quote(table) + " ("
	for i, n := range names {
		if i > 0 {
			insert += ", "
		}
		insert += n
	}
	insert += ") VALUES (" + placeholderList(len(names)) + ")"

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		args := make([]any, len(schema.Columns))
		for i, c := range schema.Columns {
			args[i] = r.Get(c.Name).Interface()
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}
	return tx.Commit()
}

func sqlType(t ColumnType) string {
	switch t {
	case TypeNumber:
		return "REAL"
	case TypeBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}
