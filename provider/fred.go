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
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/quantmill/qfdata/data"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const fredObservationsURL = "https://api.stlouisfed.org/fred/series/observations"

// FRED fetches economic data series observations from the Federal Reserve
// Economic Data API.
type FRED struct {
	apiKey  string
	baseURL string
	limiter *rate.Limiter
	client  *resty.Client
}

// NewFRED constructs a FRED client with the given API key and request rate
// limit.
func NewFRED(apiKey string, requestsPerMinute int) (*FRED, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: fred api key is required", ErrConfig)
	}

	return &FRED{
		apiKey:  apiKey,
		baseURL: fredObservationsURL,
		limiter: newLimiter(requestsPerMinute),
		client:  resty.New().SetQueryParam("api_key", apiKey),
	}, nil
}

func (fred *FRED) Name() string {
	return "FRED"
}

func (fred *FRED) Description() string {
	return `The Federal Reserve Economic Data (FRED) API provides access to over 800,000 economic indicator series`
}

func (fred *FRED) ConfigDescription() map[string]string {
	return map[string]string{
		"fred.api_key":    "What is your FRED api key?",
		"fred.rate_limit": "What is the maximum number of requests per minute?",
	}
}

// SeriesObservations fetches the raw observations for one series over
// [start, end]. A nil error with zero rows means the series genuinely has
// no data for the window; transport and HTTP failures are errors.
func (fred *FRED) SeriesObservations(ctx context.Context, seriesID string, start, end time.Time) ([]*data.EconomicObservation, error) {
	logger := zerolog.Ctx(ctx)

	if err := fred.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var result fredResponse
	req := fred.client.R().
		SetContext(ctx).
		SetQueryParam("file_type", "json").
		SetQueryParam("series_id", seriesID).
		SetQueryParam("sort_order", "asc").
		SetResult(&result)

	if !start.IsZero() {
		req.SetQueryParam("observation_start", start.Format("2006-01-02"))
	}
	if !end.IsZero() {
		req.SetQueryParam("observation_end", end.Format("2006-01-02"))
	}

	resp, err := req.Get(fred.baseURL)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatusCode, resp.StatusCode())
	}

	observations := make([]*data.EconomicObservation, 0, len(result.Observations))
	for _, obs := range result.Observations {
		// a period with no reading is reported as "."
		if obs.Value == "." {
			continue
		}

		eventDate, err := time.Parse("2006-01-02", obs.Date)
		if err != nil {
			logger.Error().Err(err).Str("DateStr", obs.Date).Msg("parsing observation date failed")
			continue
		}

		value, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			logger.Error().Err(err).Str("ValueStr", obs.Value).Msg("parsing observation value failed")
			continue
		}

		observations = append(observations, &data.EconomicObservation{
			SeriesID:  seriesID,
			EventDate: eventDate,
			Value:     value,
		})
	}

	return observations, nil
}

type fredResponse struct {
	RealTimeStart    string            `json:"realtime_start"`
	RealTimeEnd      string            `json:"realtime_end"`
	ObservationStart string            `json:"observation_start"`
	ObservationEnd   string            `json:"observation_end"`
	Units            string            `json:"units"`
	Count            int               `json:"count"`
	Observations     []fredObservation `json:"observations"`
}

type fredObservation struct {
	RealTimeStart string `json:"realtime_start"`
	RealTimeEnd   string `json:"realtime_end"`
	Date          string `json:"date"`
	Value         string `json:"value"`
}
