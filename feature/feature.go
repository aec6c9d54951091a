// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package feature

import (
	"errors"
	"time"
)

// Strategy selects where a feature set's data comes from. Each call site
// picks one; there are no runtime transitions between them.
type Strategy string

const (
	// FromAPI aggregates straight from the source API: freshest, slowest,
	// no storage cost.
	FromAPI Strategy = "api"

	// FromRaw aggregates from locally installed raw rows, normalizing on
	// demand.
	FromRaw Strategy = "raw"

	// FromRefined reads already-normalized rows from the refined store:
	// fastest.
	FromRefined Strategy = "refined"

	// FromOtherRefined derives the feature set entirely from sibling
	// refined tables, avoiding duplicate raw storage.
	FromOtherRefined Strategy = "other-refined"
)

var (
	// ErrNotInstalled reports that a local-read strategy found no stored
	// rows for the requested entity. It distinguishes "never installed"
	// from a source that genuinely has no data.
	ErrNotInstalled = errors.New("no rows installed for entity")

	// ErrNoData reports that the source returned zero observations for an
	// entity. During batch installs this is a skip, not a failure.
	ErrNoData = errors.New("source returned no observations")

	// ErrEmptyNormalization reports that normalization produced zero usable
	// rows, e.g. a scale-drift series with only one observation. During
	// batch installs this is a skip, not a failure.
	ErrEmptyNormalization = errors.New("normalization produced no usable rows")

	// ErrUnknownStrategy reports a strategy a feature set doesn't support.
	ErrUnknownStrategy = errors.New("unknown aggregation strategy")
)

// skippable reports whether an install error counts as a soft skip rather
// than a failure.
func skippable(err error) bool {
	return errors.Is(err, ErrNoData) || errors.Is(err, ErrEmptyNormalization)
}

// window normalizes an open-ended [start, end] request to concrete bounds.
func window(start, end time.Time) (time.Time, time.Time) {
	if start.IsZero() {
		start = time.Date(1776, 7, 4, 0, 0, 0, 0, time.UTC)
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	return start, end
}
