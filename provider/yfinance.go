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
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/quantmill/qfdata/data"
	"golang.org/x/time/rate"
)

const yfinanceChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YFinance fetches daily stock price history from the Yahoo! Finance chart
// API. No credential is required.
type YFinance struct {
	baseURL string
	limiter *rate.Limiter
	client  *resty.Client
}

// NewYFinance constructs a Yahoo! Finance client with the given request
// rate limit.
func NewYFinance(requestsPerMinute int) *YFinance {
	return &YFinance{
		baseURL: yfinanceChartURL,
		limiter: newLimiter(requestsPerMinute),
		client:  resty.New().SetHeader("User-Agent", "Mozilla/5.0 (compatible; qfdata)"),
	}
}

func (yfinance *YFinance) Name() string {
	return "yfinance"
}

func (yfinance *YFinance) Description() string {
	return `Yahoo! Finance provides daily open, high, low, close, and volume history for stocks, ETFs, and indices traded on all major exchanges`
}

func (yfinance *YFinance) ConfigDescription() map[string]string {
	return map[string]string{
		"yfinance.rate_limit": "What is the maximum number of requests per minute?",
	}
}

// DailyQuotes fetches a ticker's daily price history over [start, end]. A
// nil error with zero rows means the ticker has no history in the window.
func (yfinance *YFinance) DailyQuotes(ctx context.Context, ticker string, start, end time.Time) ([]*data.EodQuote, error) {
	if err := yfinance.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if start.IsZero() {
		start = time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}

	resp, err := yfinance.client.R().
		SetContext(ctx).
		SetQueryParam("period1", fmt.Sprintf("%d", start.Unix())).
		SetQueryParam("period2", fmt.Sprintf("%d", end.Unix())).
		SetQueryParam("interval", "1d").
		SetQueryParam("events", "div,splits").
		Get(fmt.Sprintf("%s/%s", yfinance.baseURL, ticker))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatusCode, resp.StatusCode())
	}

	// the chart payload nests parallel arrays with nulls for non-trading
	// sessions; decode into pointer slices and skip the holes
	var chart yfinanceChartResponse
	if err := json.Unmarshal(resp.Body(), &chart); err != nil {
		return nil, err
	}

	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatusCode, chart.Chart.Error.Description)
	}

	if len(chart.Chart.Result) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}

	quote := result.Indicators.Quote[0]
	quotes := make([]*data.EodQuote, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		eventDate := time.Unix(ts, 0).UTC()
		eventDate = time.Date(eventDate.Year(), eventDate.Month(), eventDate.Day(), 0, 0, 0, 0, time.UTC)

		quotes = append(quotes, &data.EodQuote{
			Ticker:    ticker,
			EventDate: eventDate,
			Open:      deref(quote.Open, i),
			High:      deref(quote.High, i),
			Low:       deref(quote.Low, i),
			Close:     deref(quote.Close, i),
			Volume:    deref(quote.Volume, i),
		})
	}

	return quotes, nil
}

func deref(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return math.NaN()
	}
	return *vals[i]
}

type yfinanceChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency string `json:"currency"`
				Symbol   string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}
