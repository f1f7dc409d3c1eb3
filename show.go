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
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/google/pivotcore/config"
	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/pivot"
	"github.com/google/pivotcore/core/query"
	"github.com/google/pivotcore/core/records"
	"github.com/google/pivotcore/datasources"
	"github.com/google/pivotcore/demo"
)

var (
	showData      string
	showURL       string
	showFormat    string
	showSources   string
	showSource    string
	showLayout    string
	showQuery     string
	showPage      int
	showPermalink string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print one page of a pivot",
	Long: `Print one page of a pivot as an ASCII table.

Without a data flag the embedded sample orders and their layout are used.

Examples:
  # Sample orders, second page
  pivotcore show --page 2

  # A local file with a layout
  pivotcore show --data sales.csv.gz --layout sales.toml

  # A source from a sources file, regrouped by a query
  pivotcore show --sources sources.yaml --source orders --query 'grouped=region&sort=-amount@sum'

  # Remote NDJSON, printing a permalink for the resulting view
  pivotcore show --url https://example.com/orders.ndjson --permalink /pivot`,
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVar(&showData, "data", "", "Data file (csv, json, ndjson, textproto, binpb; optionally .gz, .zst or .lz4)")
	showCmd.Flags().StringVar(&showURL, "url", "", "URL to fetch the data from")
	showCmd.Flags().StringVar(&showFormat, "format", "", "Data format when it cannot be inferred")
	showCmd.Flags().StringVar(&showSources, "sources", "", "Data sources file (yaml)")
	showCmd.Flags().StringVar(&showSource, "source", "", "Source name in the sources file")
	showCmd.Flags().StringVar(&showLayout, "layout", "", "Layout file (toml or yaml)")
	showCmd.Flags().StringVar(&showQuery, "query", "", "View state as a URL query, applied after the layout")
	showCmd.Flags().IntVar(&showPage, "page", 0, "Page to print (default: the layout or query page)")
	showCmd.Flags().StringVar(&showPermalink, "permalink", "", "Print a link to the resulting view under this path")

	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	settings, logger, err := loadSettings()
	if err != nil {
		return err
	}
	manager := newManager(settings, logger)

	cfg, err := showConfiguration()
	if err != nil {
		return err
	}
	if cfg.DefaultAggregation == aggregates.None {
		if cfg.DefaultAggregation, err = settings.Aggregation(); err != nil {
			return err
		}
	}
	if cfg.Source, err = showDataSource(manager); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := pivot.Open(ctx, cfg, settings.EngineOptions(logger)...)
	if err != nil {
		return err
	}

	if !datasources.HasLayout(cfg) {
		if err := datasources.DeriveLayout(e); err != nil {
			return err
		}
	}

	if showQuery != "" {
		q, err := query.NewQuery(&url.URL{RawQuery: strings.TrimPrefix(showQuery, "?")})
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		if err := q.Apply(e); err != nil {
			return fmt.Errorf("query: %w", err)
		}
	}
	if showPage > 0 {
		e.GoToPage(showPage)
	}
	return printPage(cmd.OutOrStdout(), e, showPermalink)
}

// showConfiguration reads the layout, falling back to the sample layout when
// the sample data is shown.
func showConfiguration() (pivot.Configuration, error) {
	if showLayout != "" {
		l, err := config.LoadLayout(showLayout)
		if err != nil {
			return pivot.Configuration{}, err
		}
		return l.Configuration()
	}
	if showData == "" && showURL == "" && showSources == "" {
		l, err := demo.Layout()
		if err != nil {
			return pivot.Configuration{}, err
		}
		return l.Configuration()
	}
	return pivot.Configuration{}, nil
}

// showDataSource picks the record source named by the flags.
func showDataSource(m *datasources.Manager) (pivot.Source, error) {
	switch {
	case showSources != "":
		if showSource == "" {
			return nil, errors.New("--source is required with --sources")
		}
		if err := m.LoadConfig(showSources); err != nil {
			return nil, err
		}
		return m.Source(showSource), nil
	case showURL != "":
		return m.Resolve(datasources.Descriptor{Type: datasources.Remote, URL: showURL, Format: showFormat})
	case showData != "":
		return m.Resolve(datasources.Descriptor{Type: datasources.File, Path: showData, Format: showFormat})
	default:
		return pivot.SourceFunc(func(context.Context) ([]records.Record, error) {
			return demo.Orders()
		}), nil
	}
}

// printPage writes the current page, a page summary and, when base is set,
// a link that restores the view.
func printPage(w io.Writer, e *pivot.Engine, base string) error {
	st := e.GetState()
	if _, err := io.WriteString(w, e.ToAscii()); err != nil {
		return err
	}
	fmt.Fprintf(w, "Page %d of %d (%d rows, %d records)\n", st.Page, st.TotalPages, st.TotalRows, len(st.Records))
	if base != "" {
		fmt.Fprintln(w, query.FromState(base, st).ToURL())
	}
	return nil
}
