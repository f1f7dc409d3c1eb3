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

package pivot

import (
	"log/slog"

	"golang.org/x/text/language"
)

const (
	DefaultPageSize           = 25
	DefaultMinRowHeight       = 20
	DefaultRowHeight          = 32
	DefaultColumnWidth        = 120
	defaultMinimumColumnWidth = 20
)

// ColumnOrder describes the columns axis after a DragColumn.
type ColumnOrder struct {
	From    int
	To      int
	Columns []AxisField
	Widths  []float64
}

// ColumnObserver is notified after a column reorder has been committed.
type ColumnObserver func(ColumnOrder)

type options struct {
	logger             *slog.Logger
	pageSize           int
	minRowHeight       float64
	defaultRowHeight   float64
	defaultColumnWidth float64
	observer           ColumnObserver
	locale             language.Tag
}

func defaultOptions() options {
	return options{
		pageSize:           DefaultPageSize,
		minRowHeight:       DefaultMinRowHeight,
		defaultRowHeight:   DefaultRowHeight,
		defaultColumnWidth: DefaultColumnWidth,
		locale:             language.English,
	}
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger. Engines log nothing by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithPageSize sets the initial page size. Values below 1 are ignored.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithMinRowHeight sets the lower bound applied by ResizeRow.
func WithMinRowHeight(h float64) Option {
	return func(o *options) {
		if h > 0 {
			o.minRowHeight = h
		}
	}
}

// WithDefaultRowHeight sets the height of rows that were never resized.
func WithDefaultRowHeight(h float64) Option {
	return func(o *options) {
		if h > 0 {
			o.defaultRowHeight = h
		}
	}
}

// WithDefaultColumnWidth sets the initial width of every column.
func WithDefaultColumnWidth(w float64) Option {
	return func(o *options) {
		if w > 0 {
			o.defaultColumnWidth = w
		}
	}
}

// WithColumnObserver registers the callback notified after DragColumn.
func WithColumnObserver(fn ColumnObserver) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithLocale sets the language used by FormatValue.
func WithLocale(tag language.Tag) Option {
	return func(o *options) {
		o.locale = tag
	}
}
