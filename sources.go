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
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/google/pivotcore/core/records"
	"github.com/google/pivotcore/datasources"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources <sources.yaml> [name...]",
	Short: "Load data sources and print their schemas",
	Long: `Load the sources of a sources file concurrently and print, for each one,
the record count and the discovered columns with their annotated names.

Examples:
  # Every source
  pivotcore sources sources.yaml

  # Two sources, at most two loads at a time
  PIVOT_LOAD_CONCURRENCY=2 pivotcore sources sources.yaml orders returns`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	settings, logger, err := loadSettings()
	if err != nil {
		return err
	}
	manager := newManager(settings, logger)
	if err := manager.LoadConfig(args[0]); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	loaded, err := manager.LoadAll(ctx, args[1:]...)
	if err != nil {
		return err
	}
	return printSources(ctx, cmd.OutOrStdout(), manager, loaded)
}

func printSources(ctx context.Context, w io.Writer, m *datasources.Manager, loaded map[string][]records.Record) error {
	for _, name := range m.GetLoadedSources() {
		recs, ok := loaded[name]
		if !ok {
			continue
		}
		cols, err := m.Columns(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %d records\n", name, len(recs))
		for _, c := range cols {
			fmt.Fprintf(w, "  %-24s %-10s %s\n", c.Name, c.Type, c.DisplayName)
		}
	}
	return nil
}
