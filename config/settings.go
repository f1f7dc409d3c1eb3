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

// Package config loads engine settings and pivot layouts.
//
// Settings tune the engine (page size, row and column geometry, logging,
// loading) and come from an optional settings file plus PIVOT_* environment
// variables. Layouts describe a pivot declaratively and are written in TOML
// or YAML.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/logging"
	"github.com/google/pivotcore/core/pivot"
)

// EnvPrefix prefixes environment overrides, e.g. PIVOT_PAGESIZE or
// PIVOT_LOGGING_LEVEL.
const EnvPrefix = "PIVOT"

// Settings tune the engine and the loaders.
type Settings struct {
	PageSize           int     `mapstructure:"pageSize"`
	MinRowHeight       float64 `mapstructure:"minRowHeight"`
	DefaultRowHeight   float64 `mapstructure:"defaultRowHeight"`
	DefaultColumnWidth float64 `mapstructure:"defaultColumnWidth"`
	DefaultAggregation string  `mapstructure:"defaultAggregation"`
	Locale             string  `mapstructure:"locale"`

	Logging LoggingSettings `mapstructure:"logging"`
	Load    LoadSettings    `mapstructure:"load"`
	Serve   ServeSettings   `mapstructure:"serve"`
}

// LoggingSettings selects the log level and handler.
type LoggingSettings struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error, silent
	Format string `mapstructure:"format"` // text or json
}

// LoadSettings bound data source loading.
type LoadSettings struct {
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ServeSettings configure the HTTP server of the serve command.
type ServeSettings struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdownTimeout"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		PageSize:           pivot.DefaultPageSize,
		MinRowHeight:       pivot.DefaultMinRowHeight,
		DefaultRowHeight:   pivot.DefaultRowHeight,
		DefaultColumnWidth: pivot.DefaultColumnWidth,
		DefaultAggregation: aggregates.Sum.String(),
		Locale:             "en",
		Logging: LoggingSettings{
			Level:  "info",
			Format: "text",
		},
		Load: LoadSettings{
			Concurrency: 4,
			Timeout:     30 * time.Second,
		},
		Serve: ServeSettings{
			Addr:              "127.0.0.1:8097",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("pageSize", d.PageSize)
	v.SetDefault("minRowHeight", d.MinRowHeight)
	v.SetDefault("defaultRowHeight", d.DefaultRowHeight)
	v.SetDefault("defaultColumnWidth", d.DefaultColumnWidth)
	v.SetDefault("defaultAggregation", d.DefaultAggregation)
	v.SetDefault("locale", d.Locale)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("load.concurrency", d.Load.Concurrency)
	v.SetDefault("load.timeout", d.Load.Timeout)
	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("serve.readHeaderTimeout", d.Serve.ReadHeaderTimeout)
	v.SetDefault("serve.shutdownTimeout", d.Serve.ShutdownTimeout)
}

// Load reads settings from path, which may be empty, applies PIVOT_*
// environment overrides and validates the result. The file format follows
// the extension (json, yaml, toml, ...).
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// SettingsError reports an invalid setting.
type SettingsError struct {
	Field   string
	Message string
}

func (e *SettingsError) Error() string {
	return "settings error in field '" + e.Field + "': " + e.Message
}

// Validate checks ranges and names.
func (s *Settings) Validate() error {
	switch {
	case s.PageSize < 1:
		return &SettingsError{Field: "pageSize", Message: "must be at least 1"}
	case s.MinRowHeight <= 0:
		return &SettingsError{Field: "minRowHeight", Message: "must be positive"}
	case s.DefaultRowHeight < s.MinRowHeight:
		return &SettingsError{Field: "defaultRowHeight", Message: "must not be below minRowHeight"}
	case s.DefaultColumnWidth <= 0:
		return &SettingsError{Field: "defaultColumnWidth", Message: "must be positive"}
	case s.Load.Concurrency < 1:
		return &SettingsError{Field: "load.concurrency", Message: "must be at least 1"}
	case s.Load.Timeout < 0:
		return &SettingsError{Field: "load.timeout", Message: "must not be negative"}
	case s.Serve.Addr == "":
		return &SettingsError{Field: "serve.addr", Message: "must not be empty"}
	}
	if _, err := s.Aggregation(); err != nil {
		return &SettingsError{Field: "defaultAggregation", Message: err.Error()}
	}
	if _, err := language.Parse(s.Locale); err != nil {
		return &SettingsError{Field: "locale", Message: err.Error()}
	}
	switch strings.ToLower(s.Logging.Format) {
	case "text", "json":
	default:
		return &SettingsError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", s.Logging.Format)}
	}
	return nil
}

// Aggregation parses DefaultAggregation.
func (s *Settings) Aggregation() (aggregates.Kind, error) {
	return aggregates.ParseKind(s.DefaultAggregation)
}

// Logger builds the logger described by the logging settings.
func (s *Settings) Logger(w io.Writer) *slog.Logger {
	return logging.NewFormat(s.Logging.Format, w, logging.ParseLevel(s.Logging.Level))
}

// EngineOptions converts the settings into engine options using logger.
func (s *Settings) EngineOptions(logger *slog.Logger) []pivot.Option {
	opts := []pivot.Option{
		pivot.WithLogger(logger),
		pivot.WithPageSize(s.PageSize),
		pivot.WithMinRowHeight(s.MinRowHeight),
		pivot.WithDefaultRowHeight(s.DefaultRowHeight),
		pivot.WithDefaultColumnWidth(s.DefaultColumnWidth),
	}
	if tag, err := language.Parse(s.Locale); err == nil {
		opts = append(opts, pivot.WithLocale(tag))
	}
	return opts
}
