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
	"fmt"
	"time"

	"github.com/quantmill/qfdata/data"
	"github.com/quantmill/qfdata/library"
	"github.com/quantmill/qfdata/provider"
)

// DefaultEconomicSeries is the economic series tracked by the economic
// feature set.
var DefaultEconomicSeries = []string{
	"CIVPART",
	"CPIAUCNS",
	"CSUSHPINSA",
	"FEDFUNDS",
	"GDP",
	"GDPC1",
	"GS10",
	"M2",
	"MICH",
	"PSAVERT",
	"UMCSENT",
	"UNRATE",
	"WALCL",
}

// economicScaleDrift marks series whose magnitude trends over time. They
// refine to log changes; the rest are levels already comparable across time
// (rates, ratios, survey indices) and pass through.
var economicScaleDrift = map[string]bool{
	"CPIAUCNS":   true,
	"CSUSHPINSA": true,
	"GDP":        true,
	"GDPC1":      true,
	"M2":         true,
	"WALCL":      true,
}

// Economic aggregates a fixed set of economic data series into one wide
// feature table indexed by date. Not all series are published at the same
// rate; rows for less-frequent series forward-fill when the set is served.
type Economic struct {
	Client  *provider.FRED
	Library *library.Library
	Series  []string
}

// NewEconomic constructs the economic feature set over the default series.
func NewEconomic(client *provider.FRED, myLibrary *library.Library) *Economic {
	return &Economic{
		Client:  client,
		Library: myLibrary,
		Series:  DefaultEconomicSeries,
	}
}

// refineSeries normalizes one series at its own observation dates:
// scale-drift series become log changes (dropping the first observation),
// the rest forward-fill.
func refineSeries(seriesID string, observations []*data.EconomicObservation) *data.Table {
	table := data.NewTable(seriesID)
	for _, obs := range observations {
		table.Set(data.DateKey(obs.EventDate), seriesID, obs.Value)
	}

	rule := PassThrough
	if economicScaleDrift[seriesID] {
		rule = ScaleDrift
	}

	return Normalize(table, map[string]Rule{seriesID: rule})
}

// align merges per-series refined columns into one wide table: union of
// dates, forward-filled per column, keeping only rows where every series
// has a value.
func align(tables []*data.Table) *data.Table {
	merged := data.NewTable()
	for _, table := range tables {
		for row, key := range table.Index() {
			for _, col := range table.Columns() {
				merged.Set(key, col, table.Column(col)[row])
			}
		}
	}

	merged.Sort()
	for _, col := range merged.Columns() {
		merged.SetColumn(col, ForwardFill(merged.Column(col)))
	}

	return merged.DropNaNRows()
}

// Get serves the economic feature table via the selected strategy.
func (economic *Economic) Get(ctx context.Context, strategy Strategy, start, end time.Time) (*data.Table, error) {
	switch strategy {
	case FromAPI:
		return economic.FromAPI(ctx, start, end)
	case FromRaw:
		return economic.FromRaw(ctx, start, end)
	case FromRefined:
		return economic.FromRefined(ctx, start, end)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
}

// FromAPI aggregates economic features straight from the source API with
// no persistence.
func (economic *Economic) FromAPI(ctx context.Context, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	tables := make([]*data.Table, 0, len(economic.Series))
	total := 0
	for _, seriesID := range economic.Series {
		observations, err := economic.Client.SeriesObservations(ctx, seriesID, start, end)
		if err != nil {
			return nil, err
		}
		total += len(observations)
		tables = append(tables, refineSeries(seriesID, observations))
	}

	if total == 0 {
		return nil, ErrNoData
	}

	return align(tables), nil
}

// FromRaw aggregates economic features from locally installed raw rows.
func (economic *Economic) FromRaw(ctx context.Context, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	observations, err := economic.Library.EconomicObservations(ctx, economic.Series, start, end)
	if err != nil {
		return nil, err
	}

	if len(observations) == 0 {
		return nil, fmt.Errorf("%w: economic series", ErrNotInstalled)
	}

	bySeries := make(map[string][]*data.EconomicObservation)
	for _, obs := range observations {
		bySeries[obs.SeriesID] = append(bySeries[obs.SeriesID], obs)
	}

	tables := make([]*data.Table, 0, len(bySeries))
	for _, seriesID := range economic.Series {
		if series := bySeries[seriesID]; len(series) > 0 {
			tables = append(tables, refineSeries(seriesID, series))
		}
	}

	return align(tables), nil
}

// FromRefined reads already-normalized per-series rows from the refined
// store and aligns them into the wide table.
func (economic *Economic) FromRefined(ctx context.Context, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	rows, err := economic.Library.FeaturesForEntities(ctx, library.EconomicFeatures, economic.Series, start, end)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: economic series", ErrNotInstalled)
	}

	return align([]*data.Table{data.Pivot(rows)}), nil
}

// EntitySet reports which series have data available for a strategy.
func (economic *Economic) EntitySet(ctx context.Context, strategy Strategy) (map[string]struct{}, error) {
	switch strategy {
	case FromRaw:
		return economic.Library.EconomicSeriesSet(ctx, 1)
	case FromRefined:
		return economic.Library.FeatureEntitySet(ctx, library.EconomicFeatures, 1)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
}

// InstallRaw fetches each series independently and upserts its raw rows.
// Per-series failures are captured on the report, never raised.
func (economic *Economic) InstallRaw(ctx context.Context, seriesIDs []string) *data.RunReport {
	if len(seriesIDs) == 0 {
		seriesIDs = economic.Series
	}

	report := data.NewRunReport("FRED", "economic-series")
	return installEach(ctx, report, seriesIDs, func(ctx context.Context, seriesID string) (int, error) {
		observations, err := economic.Client.SeriesObservations(ctx, seriesID, time.Time{}, time.Time{})
		if err != nil {
			return 0, err
		}

		if len(observations) == 0 {
			return 0, ErrNoData
		}

		return economic.Library.UpsertEconomicObservations(ctx, observations)
	})
}

// UpdateRaw fetches only observations newer than the latest stored date
// for each series. Series with no stored rows fall back to a full fetch.
func (economic *Economic) UpdateRaw(ctx context.Context, seriesIDs []string) *data.RunReport {
	if len(seriesIDs) == 0 {
		seriesIDs = economic.Series
	}

	report := data.NewRunReport("FRED", "economic-series-update")
	return installEach(ctx, report, seriesIDs, func(ctx context.Context, seriesID string) (int, error) {
		latest, err := economic.Library.LatestEconomicDate(ctx, seriesID)
		if err != nil {
			return 0, err
		}

		var start time.Time
		if !latest.IsZero() {
			start = latest.AddDate(0, 0, 1)
		}

		observations, err := economic.Client.SeriesObservations(ctx, seriesID, start, time.Time{})
		if err != nil {
			return 0, err
		}

		if len(observations) == 0 {
			return 0, ErrNoData
		}

		return economic.Library.UpsertEconomicObservations(ctx, observations)
	})
}

// InstallRefined normalizes each installed series from its raw rows and
// upserts the refined rows. Refinement always recomputes over the full raw
// history because log changes are not incremental.
func (economic *Economic) InstallRefined(ctx context.Context, seriesIDs []string) *data.RunReport {
	if len(seriesIDs) == 0 {
		seriesIDs = economic.Series
	}

	report := data.NewRunReport("FRED", "economic-features")
	return installEach(ctx, report, seriesIDs, func(ctx context.Context, seriesID string) (int, error) {
		start, end := window(time.Time{}, time.Time{})
		observations, err := economic.Library.EconomicObservations(ctx, []string{seriesID}, start, end)
		if err != nil {
			return 0, err
		}

		if len(observations) == 0 {
			return 0, fmt.Errorf("%w: %s", ErrNotInstalled, seriesID)
		}

		refined := refineSeries(seriesID, observations)
		if refined.Len() == 0 {
			return 0, ErrEmptyNormalization
		}

		return economic.Library.UpsertFeatures(ctx, library.EconomicFeatures, refined.Melt(seriesID))
	})
}
