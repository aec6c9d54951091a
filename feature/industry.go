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
	"math"
	"time"

	"github.com/quantmill/qfdata/data"
	"github.com/quantmill/qfdata/library"
)

// DefaultSICDigits is how many leading SIC code digits define an industry
// peer group.
const DefaultSICDigits = 2

// IndustryStats holds cross-sectional statistics of a peer group's
// quarterly features: per fiscal period and feature, the mean, sample
// standard deviation, and population count. The three tables share one
// index; a period's row date is the latest filing date in the group so the
// statistics never predate the filings they summarize.
type IndustryStats struct {
	Mean  *data.Table
	Std   *data.Table
	Count *data.Table
}

// IndustryQuarterly aggregates the quarterly features of all companies in
// one industry into cross-sectional statistics. Industries are identified
// by an SIC code prefix.
type IndustryQuarterly struct {
	Library   *library.Library
	Quarterly *Quarterly
	SICDigits int
}

// NewIndustryQuarterly constructs the industry statistics feature set at
// the default peer-group granularity.
func NewIndustryQuarterly(quarterly *Quarterly) *IndustryQuarterly {
	return &IndustryQuarterly{
		Library:   quarterly.Library,
		Quarterly: quarterly,
		SICDigits: DefaultSICDigits,
	}
}

// sicPrefix truncates an SIC code to the configured peer-group digits.
func (industry *IndustryQuarterly) sicPrefix(sic string) string {
	return truncateSIC(sic, industry.SICDigits)
}

func truncateSIC(sic string, digits int) string {
	if len(sic) > digits {
		return sic[:digits]
	}
	return sic
}

// industryAccumulator collects per-period, per-feature value populations
// across a peer group.
type industryAccumulator struct {
	values map[data.TimeKey]map[string][]float64
	filed  map[data.TimeKey]time.Time
}

func newIndustryAccumulator() *industryAccumulator {
	return &industryAccumulator{
		values: make(map[data.TimeKey]map[string][]float64),
		filed:  make(map[data.TimeKey]time.Time),
	}
}

// add records one company's value. Peers file on different dates, so values
// group by fiscal period alone and the group keeps its latest filing date.
func (acc *industryAccumulator) add(key data.TimeKey, name string, value float64) {
	period := data.TimeKey{FiscalYear: key.FiscalYear, FiscalPeriod: key.FiscalPeriod}

	if acc.values[period] == nil {
		acc.values[period] = make(map[string][]float64)
	}
	acc.values[period][name] = append(acc.values[period][name], value)

	if key.Date.After(acc.filed[period]) {
		acc.filed[period] = key.Date
	}
}

func (acc *industryAccumulator) stats() *IndustryStats {
	stats := &IndustryStats{
		Mean:  data.NewTable(),
		Std:   data.NewTable(),
		Count: data.NewTable(),
	}

	for period, cols := range acc.values {
		key := data.FiscalKey(period.FiscalYear, period.FiscalPeriod, acc.filed[period])
		for name, vals := range cols {
			mean, std, count := meanStd(vals)
			stats.Mean.Set(key, name, mean)
			stats.Std.Set(key, name, std)
			stats.Count.Set(key, name, float64(count))
		}
	}

	stats.Mean.Sort()
	stats.Std.Sort()
	stats.Count.Sort()
	return stats
}

// addTable records every cell of one company's refined table.
func (acc *industryAccumulator) addTable(table *data.Table) {
	for row, key := range table.Index() {
		for _, col := range table.Columns() {
			acc.add(key, col, table.Column(col)[row])
		}
	}
}

// addRows records melted refined rows, skipping undefined values.
func (acc *industryAccumulator) addRows(rows []*data.FeatureRow) {
	for _, row := range rows {
		if !math.IsNaN(row.Value) {
			acc.add(row.Key, row.Name, row.Value)
		}
	}
}

// Get serves an industry's statistics via the selected strategy.
func (industry *IndustryQuarterly) Get(ctx context.Context, strategy Strategy, sic string, start, end time.Time) (*IndustryStats, error) {
	switch strategy {
	case FromRaw:
		return industry.FromRaw(ctx, sic, start, end)
	case FromRefined:
		return industry.FromRefined(ctx, sic, start, end)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
}

// FromRaw aggregates industry statistics by normalizing every peer from its
// raw concept rows.
func (industry *IndustryQuarterly) FromRaw(ctx context.Context, sic string, start, end time.Time) (*IndustryStats, error) {
	start, end = window(start, end)

	ciks, err := industry.Library.CIKsForIndustry(ctx, industry.sicPrefix(sic))
	if err != nil {
		return nil, err
	}

	acc := newIndustryAccumulator()
	peers := 0
	for cik := range ciks {
		table, err := industry.Quarterly.fromRawCIK(ctx, cik, start, end)
		if err != nil {
			// peers without installed concept rows don't weaken the
			// statistics of those that have them
			continue
		}

		peers++
		acc.addTable(table)
	}

	if peers == 0 {
		return nil, fmt.Errorf("%w: industry %s", ErrNotInstalled, sic)
	}

	return acc.stats(), nil
}

// FromRefined aggregates industry statistics from the peers' refined
// quarterly rows.
func (industry *IndustryQuarterly) FromRefined(ctx context.Context, sic string, start, end time.Time) (*IndustryStats, error) {
	start, end = window(start, end)

	ciks, err := industry.Library.CIKsForIndustry(ctx, industry.sicPrefix(sic))
	if err != nil {
		return nil, err
	}

	entities := make([]string, 0, len(ciks))
	for cik := range ciks {
		entities = append(entities, cik)
	}

	rows, err := industry.Library.FeaturesForEntities(ctx, library.QuarterlyFeatures, entities, start, end)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: industry %s", ErrNotInstalled, sic)
	}

	acc := newIndustryAccumulator()
	acc.addRows(rows)
	return acc.stats(), nil
}
