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

// dailyColumns is the raw price columns in storage order.
var dailyColumns = []string{"open", "high", "low", "close", "volume"}

// PriceCol is the refined column holding the closing price level.
const PriceCol = "price"

// Daily aggregates a ticker's price history into a feature table indexed by
// trading date. Prices and volume are dollar and share quantities whose
// magnitude drifts over decades, so every raw column refines to a log
// change. A price column carries the closing level through so ratio
// features like price-to-earnings can derive from the refined rows.
type Daily struct {
	Client  *provider.YFinance
	Library *library.Library
}

// NewDaily constructs the daily price feature set.
func NewDaily(client *provider.YFinance, myLibrary *library.Library) *Daily {
	return &Daily{Client: client, Library: myLibrary}
}

func normalizeQuotes(quotes []*data.EodQuote) *data.Table {
	table := data.NewTable(dailyColumns...)
	for _, quote := range quotes {
		key := data.DateKey(quote.EventDate)
		table.Set(key, "open", quote.Open)
		table.Set(key, "high", quote.High)
		table.Set(key, "low", quote.Low)
		table.Set(key, "close", quote.Close)
		table.Set(key, "volume", quote.Volume)
		table.Set(key, PriceCol, quote.Close)
	}

	rules := make(map[string]Rule, len(dailyColumns)+1)
	for _, col := range dailyColumns {
		rules[col] = ScaleDrift
	}
	rules[PriceCol] = PassThrough

	return Normalize(table, rules)
}

// Get serves a ticker's daily feature table via the selected strategy.
func (daily *Daily) Get(ctx context.Context, strategy Strategy, ticker string, start, end time.Time) (*data.Table, error) {
	switch strategy {
	case FromAPI:
		return daily.FromAPI(ctx, ticker, start, end)
	case FromRaw:
		return daily.FromRaw(ctx, ticker, start, end)
	case FromRefined:
		return daily.FromRefined(ctx, ticker, start, end)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
}

// FromAPI aggregates daily features straight from the source API with no
// persistence.
func (daily *Daily) FromAPI(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	quotes, err := daily.Client.DailyQuotes(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	if len(quotes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}

	return normalizeQuotes(quotes), nil
}

// FromRaw aggregates daily features from locally installed raw price rows.
func (daily *Daily) FromRaw(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	quotes, err := daily.Library.EodQuotes(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	if len(quotes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, ticker)
	}

	return normalizeQuotes(quotes), nil
}

// FromRefined reads a ticker's already-normalized rows from the refined
// store.
func (daily *Daily) FromRefined(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	rows, err := daily.Library.Features(ctx, library.DailyFeatures, ticker, start, end)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, ticker)
	}

	return data.Pivot(rows), nil
}

// TickerSet reports which tickers have data available for a strategy. lb
// filters out tickers with fewer stored rows.
func (daily *Daily) TickerSet(ctx context.Context, strategy Strategy, lb int) (map[string]struct{}, error) {
	switch strategy {
	case FromRaw:
		return daily.Library.EodTickerSet(ctx, lb)
	case FromRefined:
		return daily.Library.FeatureEntitySet(ctx, library.DailyFeatures, lb)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
}

// CandidateTickerSet reports tickers that could be installed: every ticker
// associated with a known filing entity.
func (daily *Daily) CandidateTickerSet(ctx context.Context) (map[string]struct{}, error) {
	return daily.Library.SubmissionTickerSet(ctx)
}

// InstallRaw fetches each ticker's full price history independently and
// upserts its raw rows. Per-ticker failures are captured on the report,
// never raised.
func (daily *Daily) InstallRaw(ctx context.Context, tickers []string) *data.RunReport {
	report := data.NewRunReport("yfinance", "eod-prices")
	return installEach(ctx, report, tickers, func(ctx context.Context, ticker string) (int, error) {
		quotes, err := daily.Client.DailyQuotes(ctx, ticker, time.Time{}, time.Time{})
		if err != nil {
			return 0, err
		}

		if len(quotes) == 0 {
			return 0, ErrNoData
		}

		return daily.Library.UpsertEodQuotes(ctx, quotes)
	})
}

// UpdateRaw fetches only quotes newer than the latest stored date for each
// ticker. Tickers with no stored rows fall back to a full fetch.
func (daily *Daily) UpdateRaw(ctx context.Context, tickers []string) *data.RunReport {
	report := data.NewRunReport("yfinance", "eod-prices-update")
	return installEach(ctx, report, tickers, func(ctx context.Context, ticker string) (int, error) {
		latest, err := daily.Library.LatestEodDate(ctx, ticker)
		if err != nil {
			return 0, err
		}

		var start time.Time
		if !latest.IsZero() {
			start = latest.AddDate(0, 0, 1)
		}

		quotes, err := daily.Client.DailyQuotes(ctx, ticker, start, time.Time{})
		if err != nil {
			return 0, err
		}

		if len(quotes) == 0 {
			return 0, ErrNoData
		}

		return daily.Library.UpsertEodQuotes(ctx, quotes)
	})
}

// InstallRefined normalizes each ticker from its raw rows and upserts the
// refined rows. Refinement always recomputes over the full raw history
// because log changes are not incremental.
func (daily *Daily) InstallRefined(ctx context.Context, tickers []string) *data.RunReport {
	report := data.NewRunReport("yfinance", "daily-features")
	return installEach(ctx, report, tickers, func(ctx context.Context, ticker string) (int, error) {
		refined, err := daily.FromRaw(ctx, ticker, time.Time{}, time.Time{})
		if err != nil {
			return 0, err
		}

		if refined.Len() == 0 {
			return 0, ErrEmptyNormalization
		}

		return daily.Library.UpsertFeatures(ctx, library.DailyFeatures, refined.Melt(ticker))
	})
}
