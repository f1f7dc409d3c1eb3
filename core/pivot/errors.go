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

import "errors"

var (
	// ErrInvalidIndex is returned by drag and resize operations for indices
	// outside the current rows or columns.
	ErrInvalidIndex = errors.New("invalid index")
	// ErrUnknownMeasure is returned when a measure name is not configured.
	ErrUnknownMeasure = errors.New("unknown measure")
	// ErrDuplicateMeasure is returned when two measures share a unique name.
	ErrDuplicateMeasure = errors.New("duplicate measure")
	// ErrInvalidPageSize is returned for a page size below 1.
	ErrInvalidPageSize = errors.New("invalid page size")
	// ErrLoad wraps failures of the configured data source.
	ErrLoad = errors.New("load data")
)
