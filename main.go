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

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/google/pivotcore/config"
	"github.com/google/pivotcore/datasources"
)

var (
	// settingsPath is the --settings flag value
	settingsPath string
)

var rootCmd = &cobra.Command{
	Use:   "pivotcore",
	Short: "Pivot tables over in-memory records",
	Long: `pivotcore loads records from CSV, JSON, protobuf, SQLite or HTTP sources,
applies a pivot layout (grouping, measures, sort and filters) and prints the
current page as an ASCII table, or serves the pivots as HTML pages.

Settings come from an optional --settings file and PIVOT_* environment
variables, e.g. PIVOT_PAGESIZE=50.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Settings file (yaml, json or toml)")
}

// loadSettings reads the settings and builds the logger they describe.
func loadSettings() (*config.Settings, *slog.Logger, error) {
	settings, err := config.Load(settingsPath)
	if err != nil {
		return nil, nil, err
	}
	return settings, settings.Logger(os.Stderr), nil
}

// newManager creates a data source manager with every built-in loader.
func newManager(settings *config.Settings, logger *slog.Logger) *datasources.Manager {
	m := datasources.NewManager(
		datasources.WithLogger(logger),
		datasources.WithConcurrency(settings.Load.Concurrency),
		datasources.WithTimeout(settings.Load.Timeout),
	)
	m.RegisterDefaultLoaders()
	return m
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
