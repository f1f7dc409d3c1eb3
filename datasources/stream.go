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
	"errors"
	"sync"

	"github.com/google/pivotcore/core/records"
)

// ErrStreamClosed is returned by Push after Close.
var ErrStreamClosed = errors.New("stream closed")

// Stream collects rows pushed by an external parser. It implements
// pivot.Source: Load blocks until the producer calls Close and then returns
// every pushed record, or the error passed to Close.
type Stream struct {
	mu     sync.Mutex
	recs   []records.Record
	err    error
	closed bool
	done   chan struct{}
}

// NewStream creates an open stream.
func NewStream() *Stream {
	return &Stream{done: make(chan struct{})}
}

// Push appends rows. It fails once the stream is closed or ctx is done.
func (s *Stream) Push(ctx context.Context, rows ...records.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.recs = append(s.recs, rows...)
	return nil
}

// Close ends the stream. A non-nil err makes Load fail. Only the first
// call has an effect.
func (s *Stream) Close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.done)
}

// Len returns the number of rows pushed so far.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

// Load waits for Close and returns the collected records.
func (s *Stream) Load(ctx context.Context) ([]records.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]records.Record, len(s.recs))
	copy(out, s.recs)
	return out, nil
}
