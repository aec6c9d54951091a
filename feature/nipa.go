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
	"context"

	"github.com/quantmill/qfdata/data"
	"github.com/quantmill/qfdata/library"
	"github.com/quantmill/qfdata/provider"
)

// DefaultNIPATables is the national accounts tables installed by default:
// GDP percent change, GDP levels, and personal income.
var DefaultNIPATables = []string{"T10101", "T10105", "T20100"}

// NIPA installs national income and product account tables as raw economic
// observations. Each (table, series code) pair stores under the series ID
// "<table>/<code>" alongside the other economic series, so the same reads,
// deletes, and cascades apply.
type NIPA struct {
	Client    *provider.BEA
	Library   *library.Library
	Tables    []string
	Frequency string
}

// NewNIPA constructs the national accounts installer over the default
// tables at quarterly frequency.
func NewNIPA(client *provider.BEA, myLibrary *library.Library) *NIPA {
	return &NIPA{
		Client:    client,
		Library:   myLibrary,
		Tables:    DefaultNIPATables,
		Frequency: "Q",
	}
}

// InstallRaw fetches each table independently and upserts its observations.
// Per-table failures are captured on the report, never raised.
func (nipa *NIPA) InstallRaw(ctx context.Context, tables []string) *data.RunReport {
	if len(tables) == 0 {
		tables = nipa.Tables
	}

	report := data.NewRunReport("BEA", "nipa-series")
	return installEach(ctx, report, tables, func(ctx context.Context, tableName string) (int, error) {
		observations, err := nipa.Client.TableObservations(ctx, tableName, nipa.Frequency, nil)
		if err != nil {
			return 0, err
		}

		if len(observations) == 0 {
			return 0, ErrNoData
		}

		return nipa.Library.UpsertEconomicObservations(ctx, observations)
	})
}
