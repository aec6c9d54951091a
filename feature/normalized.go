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
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quantmill/qfdata/data"
	"github.com/quantmill/qfdata/library"
)

// NormalizedQuarterly scores a company's quarterly features against its
// industry peer group: each value becomes a z-score relative to the peers'
// cross-sectional mean and standard deviation for the same fiscal period.
// The set has no raw rows of its own; it derives entirely from the refined
// quarterly table.
type NormalizedQuarterly struct {
	Library   *library.Library
	Quarterly *Quarterly
	Industry  *IndustryQuarterly
}

// NewNormalizedQuarterly constructs the industry-normalized quarterly
// feature set.
func NewNormalizedQuarterly(quarterly *Quarterly) *NormalizedQuarterly {
	return &NormalizedQuarterly{
		Library:   quarterly.Library,
		Quarterly: quarterly,
		Industry:  NewIndustryQuarterly(quarterly),
	}
}

// Get serves a company's industry-normalized features via the selected
// strategy.
func (normalized *NormalizedQuarterly) Get(ctx context.Context, strategy Strategy, ticker string, start, end time.Time) (*data.Table, error) {
	switch strategy {
	case FromOtherRefined:
		return normalized.FromOtherRefined(ctx, ticker, start, end)
	case FromRefined:
		return normalized.FromRefined(ctx, ticker, start, end)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
}

// FromOtherRefined derives industry-normalized features from the refined
// quarterly rows of the company and its peers. Periods where the peer
// population is too small for a defined standard deviation score NaN; NaN
// scores on log-change features resolve to 0 and on pass-through features
// forward-fill, mirroring how the underlying features treat gaps.
func (normalized *NormalizedQuarterly) FromOtherRefined(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	sub, err := normalized.Library.SubmissionForTicker(ctx, ticker)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, ticker)
	}
	if err != nil {
		return nil, err
	}

	company, err := normalized.Quarterly.FromRefined(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	stats, err := normalized.Industry.FromRefined(ctx, sub.SIC, start, end)
	if err != nil {
		return nil, err
	}

	return scoreAgainstIndustry(company, stats), nil
}

// scoreAgainstIndustry z-scores a company's refined fiscal rows against its
// peer group's statistics. Peers file on different dates, so statistics
// match on fiscal period alone. Undefined scores resolve to 0 on log-change
// features and forward-fill on pass-through features, mirroring how the
// underlying features treat gaps.
func scoreAgainstIndustry(company *data.Table, stats *IndustryStats) *data.Table {
	type periodKey struct {
		fy int
		fp string
	}
	statKeys := make(map[periodKey]data.TimeKey)
	for _, key := range stats.Mean.Index() {
		statKeys[periodKey{fy: key.FiscalYear, fp: key.FiscalPeriod}] = key
	}

	scored := data.NewTable(company.Columns()...)
	for _, key := range company.Index() {
		statKey, ok := statKeys[periodKey{fy: key.FiscalYear, fp: key.FiscalPeriod}]
		for _, col := range company.Columns() {
			score := math.NaN()
			if ok {
				score = ZScore(
					company.At(key, col),
					stats.Mean.At(statKey, col),
					stats.Std.At(statKey, col),
					int(stats.Count.At(statKey, col)),
				)
			}
			scored.Set(key, col, score)
		}
	}

	scored.Sort()
	for _, col := range scored.Columns() {
		if IsLogChangeCol(col) {
			vals := scored.Column(col)
			for i, v := range vals {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					vals[i] = 0.0
				}
			}
			continue
		}
		scored.SetColumn(col, ForwardFill(scored.Column(col)))
	}

	return scored.DropNaNRows()
}

// FromRefined reads a company's already-scored rows from the refined store.
func (normalized *NormalizedQuarterly) FromRefined(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	cik, err := cikForTicker(ctx, normalized.Library, ticker)
	if err != nil {
		return nil, err
	}

	rows, err := normalized.Library.Features(ctx, library.NormalizedQuarterlyFeatures, cik, start, end)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, ticker)
	}

	return data.Pivot(rows), nil
}

// CIKSet reports which companies have scored rows available. lb filters out
// companies with fewer stored rows.
func (normalized *NormalizedQuarterly) CIKSet(ctx context.Context, lb int) (map[string]struct{}, error) {
	return normalized.Library.FeatureEntitySet(ctx, library.NormalizedQuarterlyFeatures, lb)
}

// InstallRefined scores each company against its peers and upserts the
// refined rows keyed by CIK. Scores always recompute over the full history
// because the peer statistics shift as new companies install.
func (normalized *NormalizedQuarterly) InstallRefined(ctx context.Context, tickers []string) *data.RunReport {
	report := data.NewRunReport("SEC", "normalized-quarterly-features")
	return installEach(ctx, report, tickers, func(ctx context.Context, ticker string) (int, error) {
		cik, err := cikForTicker(ctx, normalized.Library, ticker)
		if err != nil {
			return 0, err
		}

		scored, err := normalized.FromOtherRefined(ctx, ticker, time.Time{}, time.Time{})
		if err != nil {
			return 0, err
		}

		if scored.Len() == 0 {
			return 0, ErrEmptyNormalization
		}

		return normalized.Library.UpsertFeatures(ctx, library.NormalizedQuarterlyFeatures, scored.Melt(cik))
	})
}
