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

package demo

import (
	"fmt"

	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/pivot"
	"github.com/google/pivotcore/core/records"
)

// Performance test configuration - easily modifiable cardinality
const (
	PERF_NUM_TRANSACTIONS = 100_000
	PERF_NUM_USERS        = 80_000 // High cardinality: 80% unique (1.25 txns per user avg)
	PERF_NUM_PRODUCTS     = 5_000  // Medium cardinality: (20 txns per product avg)
	PERF_NUM_CATEGORIES   = 200    // Low cardinality: (500 txns per category avg)
)

// Status values for cycling
var statuses = []string{"pending", "completed", "cancelled", "processing"}

// Country values for distribution
var countries = []string{"US", "UK", "CA", "AU", "DE", "FR", "JP", "CN", "IN", "BR"}

// PerfTransactions generates n deterministic transaction records.
func PerfTransactions(n int) []records.Record {
	out := make([]records.Record, n)
	for i := 0; i < n; i++ {
		// Category ID: heavy reuse (low cardinality)
		// Use weighted distribution - some categories more popular
		categoryID := i % PERF_NUM_CATEGORIES
		if i%7 == 0 { // Make category 0 more common
			categoryID = 0
		}
		out[i] = records.FromValues(map[string]records.Value{
			"txn_id":     records.Number(float64(i)),
			"user":       records.String(fmt.Sprintf("user_%d", i%PERF_NUM_USERS)),
			"product":    records.String(fmt.Sprintf("Product_%d", i%PERF_NUM_PRODUCTS)),
			"category":   records.String(fmt.Sprintf("Category_%d", categoryID)),
			"country":    records.String(countries[i%len(countries)]),
			"amount":     records.Number(float64(10 + i%1000)),
			"status":     records.String(statuses[i%len(statuses)]),
			"signupYear": records.Number(float64(2020 + i%5)),
		})
	}
	return out
}

// PerfConfiguration groups n transactions by category and country.
func PerfConfiguration(n int) pivot.Configuration {
	return pivot.Configuration{
		Records: PerfTransactions(n),
		Rows:    pivot.Fields("category"),
		Columns: pivot.Fields("country"),
		Measures: []aggregates.Measure{
			{UniqueName: "amount", Caption: "Amount", Aggregation: aggregates.Sum},
			{UniqueName: "txn_id", Caption: "Transactions", Aggregation: aggregates.Count},
		},
		GroupConfig: pivot.GroupByAxes(),
	}
}
