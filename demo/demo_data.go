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

// Package demo provides sample order data and a matching pivot layout.
package demo

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/google/pivotcore/config"
	"github.com/google/pivotcore/core/pivot"
	"github.com/google/pivotcore/core/records"
	"github.com/google/pivotcore/datasources"
)

//go:embed data/orders.csv
var ordersCSV string

//go:embed data/orders_layout.yaml
var ordersLayout string

// Orders returns the sample orders, one record per CSV row.
func Orders() ([]records.Record, error) {
	recs, _, err := datasources.ParseCSV(context.Background(), strings.NewReader(ordersCSV), datasources.DefaultCSVOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to import orders CSV: %w", err)
	}
	return recs, nil
}

// OrdersSchema returns the discovered column types of the sample orders.
func OrdersSchema() (*datasources.TableSchema, error) {
	_, schema, err := datasources.ParseCSV(context.Background(), strings.NewReader(ordersCSV), datasources.DefaultCSVOptions())
	return schema, err
}

// Layout returns the sample layout: revenue by region and category, with
// products and statuses across, cancelled orders filtered out.
func Layout() (*config.Layout, error) {
	return config.DecodeLayout(strings.NewReader(ordersLayout), "yaml")
}

// Configuration returns the sample layout applied to the sample orders.
func Configuration() (pivot.Configuration, error) {
	l, err := Layout()
	if err != nil {
		return pivot.Configuration{}, err
	}
	cfg, err := l.Configuration()
	if err != nil {
		return pivot.Configuration{}, err
	}
	cfg.Records, err = Orders()
	return cfg, err
}
