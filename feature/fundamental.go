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

// Fundamental joins a company's daily price features with its quarterly
// fundamentals on the trading-day index. Quarterly values broadcast forward
// from their filing date onto every subsequent trading day until the next
// filing. The set has no raw rows of its own; it derives entirely from the
// refined daily and quarterly tables.
type Fundamental struct {
	Library   *library.Library
	Daily     *Daily
	Quarterly *Quarterly
}

// NewFundamental constructs the joined daily-plus-fundamentals feature set.
func NewFundamental(daily *Daily, quarterly *Quarterly) *Fundamental {
	return &Fundamental{
		Library:   daily.Library,
		Daily:     daily,
		Quarterly: quarterly,
	}
}

// joinDailyQuarterly broadcasts quarterly rows onto the daily date index.
// A quarterly row applies to trading days on or after its filing date;
// trading days before the first filing carry NaN and are dropped.
func joinDailyQuarterly(daily, quarterly *data.Table) *data.Table {
	joined := data.NewTable(daily.Columns()...)
	for row, key := range daily.Index() {
		for _, col := range daily.Columns() {
			joined.Set(key, col, daily.Column(col)[row])
		}
	}

	quarterly.Sort()
	qIndex := quarterly.Index()
	qCols := quarterly.Columns()

	for _, key := range joined.Index() {
		// latest quarterly row filed on or before this trading day
		latest := -1
		for i, qKey := range qIndex {
			if qKey.Date.After(key.Date) {
				break
			}
			latest = i
		}

		for _, col := range qCols {
			if latest >= 0 {
				joined.Set(key, col, quarterly.Column(col)[latest])
			} else {
				joined.Set(key, col, math.NaN())
			}
		}
	}

	joined.Sort()
	addPriceEarnings(joined)
	return joined.DropNaNRows()
}

// PriceEarningsCol is the derived price-to-earnings ratio column.
const PriceEarningsCol = "PriceEarningsRatio"

// addPriceEarnings derives the price-to-earnings ratio from the joined
// closing price and earnings-per-share columns. Zero earnings give an
// undefined ratio, which forward-fills like any other gap.
func addPriceEarnings(joined *data.Table) {
	if !joined.HasColumn(PriceCol) || !joined.HasColumn("EarningsPerShareBasic") {
		return
	}

	price := joined.Column(PriceCol)
	eps := joined.Column("EarningsPerShareBasic")

	ratio := make([]float64, len(price))
	for i := range price {
		r := price[i] / eps[i]
		if math.IsInf(r, 0) {
			r = math.NaN()
		}
		ratio[i] = r
	}

	joined.SetColumn(PriceEarningsCol, ForwardFill(ratio))
}

// Get serves a ticker's joined feature table via the selected strategy.
func (fundamental *Fundamental) Get(ctx context.Context, strategy Strategy, ticker string, start, end time.Time) (*data.Table, error) {
	switch strategy {
	case FromOtherRefined:
		return fundamental.FromOtherRefined(ctx, ticker, start, end)
	case FromRaw:
		return fundamental.FromRaw(ctx, ticker, start, end)
	case FromRefined:
		return fundamental.FromRefined(ctx, ticker, start, end)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
}

// FromOtherRefined derives the join from the refined daily and quarterly
// tables.
func (fundamental *Fundamental) FromOtherRefined(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	daily, err := fundamental.Daily.FromRefined(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	quarterly, err := fundamental.Quarterly.FromRefined(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	return joinDailyQuarterly(daily, quarterly), nil
}

// FromRaw derives the join by normalizing both sides from their raw rows.
func (fundamental *Fundamental) FromRaw(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	daily, err := fundamental.Daily.FromRaw(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	quarterly, err := fundamental.Quarterly.FromRaw(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	return joinDailyQuarterly(daily, quarterly), nil
}

// FromRefined reads a ticker's already-joined rows from the refined store.
func (fundamental *Fundamental) FromRefined(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	rows, err := fundamental.Library.Features(ctx, library.FundamentalFeatures, ticker, start, end)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, ticker)
	}

	return data.Pivot(rows), nil
}

// TickerSet reports which tickers have joined rows available for a
// strategy. lb filters out tickers with fewer stored rows.
func (fundamental *Fundamental) TickerSet(ctx context.Context, strategy Strategy, lb int) (map[string]struct{}, error) {
	switch strategy {
	case FromRefined:
		return fundamental.Library.FeatureEntitySet(ctx, library.FundamentalFeatures, lb)
	case FromOtherRefined:
		// only tickers refined on both sides can be joined
		daily, err := fundamental.Daily.TickerSet(ctx, FromRefined, lb)
		if err != nil {
			return nil, err
		}

		ciks, err := fundamental.Quarterly.CIKSet(ctx, FromRefined, lb)
		if err != nil {
			return nil, err
		}

		tickers := make(map[string]struct{})
		for ticker := range daily {
			sub, err := fundamental.Library.SubmissionForTicker(ctx, ticker)
			if err != nil {
				continue
			}
			if _, ok := ciks[sub.CIK]; ok {
				tickers[ticker] = struct{}{}
			}
		}
		return tickers, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
}

// InstallRefined joins each ticker's refined tables and upserts the result.
// Joins always recompute over the full history so revised quarterly rows
// re-broadcast onto the daily index.
func (fundamental *Fundamental) InstallRefined(ctx context.Context, tickers []string) *data.RunReport {
	report := data.NewRunReport("yfinance/SEC", "fundamental-features")
	return installEach(ctx, report, tickers, func(ctx context.Context, ticker string) (int, error) {
		joined, err := fundamental.FromOtherRefined(ctx, ticker, time.Time{}, time.Time{})
		if err != nil {
			return 0, err
		}

		if joined.Len() == 0 {
			return 0, ErrEmptyNormalization
		}

		return fundamental.Library.UpsertFeatures(ctx, library.FundamentalFeatures, joined.Melt(ticker))
	})
}
