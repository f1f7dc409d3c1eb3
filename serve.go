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
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/google/pivotcore/config"
	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/pivot"
	"github.com/google/pivotcore/core/records"
	"github.com/google/pivotcore/core/server"
	"github.com/google/pivotcore/demo"
)

var (
	serveAddr    string
	serveSources string
	serveLayouts map[string]string
	servePerf    int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve pivots as HTML pages",
	Long: `Serve every source of a sources file as an interactive pivot page. The
view state lives in the page URL, so every page can be bookmarked.

Without --sources the sample orders and a generated transactions set are
served.

Examples:
  # Sample pivots on the default address
  pivotcore serve

  # Every source of a sources file, with a layout for one of them
  pivotcore serve --sources sources.yaml --layout orders=orders.toml --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: serve.addr from the settings)")
	serveCmd.Flags().StringVar(&serveSources, "sources", "", "Data sources file (yaml)")
	serveCmd.Flags().StringToStringVar(&serveLayouts, "layout", nil, "Layout file per source, as name=path")
	serveCmd.Flags().IntVar(&servePerf, "perf-records", 100_000, "Size of the generated transactions set")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, logger, err := loadSettings()
	if err != nil {
		return err
	}
	srv, err := buildServer(settings, logger)
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = settings.Serve.Addr
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: settings.Serve.ReadHeaderTimeout,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- httpServer.ListenAndServe()
	}()
	logger.Info("serving pivots", "addr", addr, "pivots", srv.PivotNames())
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s/\n", addr)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.Serve.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildServer registers the pivots named by the flags.
func buildServer(settings *config.Settings, logger *slog.Logger) (*server.Server, error) {
	aggregation, err := settings.Aggregation()
	if err != nil {
		return nil, err
	}
	srv, err := server.NewServer("pivotcore", logger, settings.EngineOptions(logger)...)
	if err != nil {
		return nil, err
	}
	srv.SetLoadTimeout(settings.Load.Timeout)

	if serveSources == "" {
		if len(serveLayouts) > 0 {
			return nil, errors.New("--layout requires --sources")
		}
		return srv, addSamplePivots(srv, aggregation)
	}

	manager := newManager(settings, logger)
	if err := manager.LoadConfig(serveSources); err != nil {
		return nil, err
	}
	names := manager.GetSourceNames()
	for name := range serveLayouts {
		if manager.GetSource(name) == nil {
			return nil, fmt.Errorf("--layout %s: source not found", name)
		}
	}
	for _, name := range names {
		var cfg pivot.Configuration
		if path, ok := serveLayouts[name]; ok {
			l, err := config.LoadLayout(path)
			if err != nil {
				return nil, err
			}
			if cfg, err = l.Configuration(); err != nil {
				return nil, fmt.Errorf("layout %s: %w", path, err)
			}
		}
		if cfg.DefaultAggregation == aggregates.None {
			cfg.DefaultAggregation = aggregation
		}
		srv.AddPivot(server.Pivot{
			Name:          name,
			Title:         name,
			Description:   fmt.Sprintf("%s source", manager.GetSource(name).SourceType),
			Configuration: cfg,
			Source:        manager.Source(name),
		})
	}
	return srv, nil
}

func addSamplePivots(srv *server.Server, aggregation aggregates.Kind) error {
	orders, err := demo.Configuration()
	if err != nil {
		return err
	}
	orders.Records = nil
	if orders.DefaultAggregation == aggregates.None {
		orders.DefaultAggregation = aggregation
	}
	srv.AddPivot(server.Pivot{
		Name:          "orders",
		Title:         "Orders",
		Description:   "Sample orders by region and category, with revenue computed from price and quantity.",
		Configuration: orders,
		Source: pivot.SourceFunc(func(context.Context) ([]records.Record, error) {
			return demo.Orders()
		}),
	})

	perf := demo.PerfConfiguration(0)
	srv.AddPivot(server.Pivot{
		Name:          "transactions",
		Title:         "Transactions",
		Description:   fmt.Sprintf("%d generated transactions by category and country.", servePerf),
		Configuration: perf,
		Source: pivot.SourceFunc(func(context.Context) ([]records.Record, error) {
			return demo.PerfTransactions(servePerf), nil
		}),
	})
	return nil
}
