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
package provider

import (
	"errors"

	"golang.org/x/time/rate"
)

var (
	// ErrConfig reports a missing credential or mis-configured client. This
	// is a configuration-level failure: it aborts a whole run before any
	// entity is attempted.
	ErrConfig = errors.New("provider configuration is incomplete")

	// ErrInvalidStatusCode reports a non-2xx response from a source API. It
	// is a per-entity fetch failure, not fatal to a batch.
	ErrInvalidStatusCode = errors.New("invalid status code received")
)

// Provider describes a data source for the CLI. Clients are plain values
// constructed with their own configuration; nothing here is global state.
type Provider interface {
	Name() string
	Description() string
	ConfigDescription() map[string]string
}

// Map holds zero-valued clients keyed by provider name, used for listing
// providers and their configuration surface.
var Map = map[string]Provider{
	"fred":     &FRED{},
	"yfinance": &YFinance{},
	"sec":      &SEC{},
	"bea":      &BEA{},
}

// newLimiter builds a limiter for requestsPerMinute, falling back to a
// permissive default when the value is unset.
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 5000
	}

	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/float64(61)), 1)
}
