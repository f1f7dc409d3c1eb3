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
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/pivotcore/core/records"
)

// RemoteLoader implements DataSourceLoader for records fetched over HTTP.
//
// Required config keys:
//   - url: Address to GET
//
// Optional config keys:
//   - format: "csv", "json", "ndjson" or "proto" (inferred from the URL
//     path, then the Content-Type, when not specified)
//   - has_header, delimiter, typed: as for CSV
type RemoteLoader struct {
	client *http.Client
}

// NewRemoteLoader creates a remote loader. A nil client uses
// http.DefaultClient.
func NewRemoteLoader(client *http.Client) *RemoteLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteLoader{client: client}
}

// SourceType returns "remote".
func (l *RemoteLoader) SourceType() string {
	return "remote"
}

// Load fetches the configured URL. Non-2xx responses are errors.
func (l *RemoteLoader) Load(ctx context.Context, config map[string]string) ([]records.Record, error) {
	rawURL := config[KeyURL]
	if rawURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, KeyURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", u.Redacted(), resp.Status)
	}

	body, err := decompress(resp.Body, path.Base(u.Path))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	defer body.Close()

	format := config[KeyFormat]
	if format == "" {
		format = guessFormat(u.Path, resp.Header.Get("Content-Type"))
	}
	return parseFormat(ctx, body, format, config)
}

// guessFormat picks a format from the file extension, then the media type.
// CSV is the fallback.
func guessFormat(p, contentType string) string {
	switch strings.ToLower(path.Ext(baseName(p))) {
	case ".csv", ".tsv":
		return "csv"
	case ".json":
		return "json"
	case ".ndjson", ".jsonl":
		return "ndjson"
	case ".binpb", ".textproto":
		return "proto"
	}
	media, _, _ := mime.ParseMediaType(contentType)
	switch media {
	case "application/json":
		return "json"
	case "application/x-ndjson", "application/jsonl":
		return "ndjson"
	case "application/x-protobuf", "application/protobuf":
		return "proto"
	default:
		return "csv"
	}
}

// parseFormat decodes r according to format.
func parseFormat(ctx context.Context, r io.Reader, format string, config map[string]string) ([]records.Record, error) {
	switch format {
	case "csv":
		recs, _, err := ParseCSV(ctx, r, csvOptions(config))
		return recs, err
	case "json":
		return ParseJSON(ctx, r)
	case "ndjson":
		return ParseNDJSON(ctx, r)
	case "proto":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return ParseProto(data, "binary")
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}
