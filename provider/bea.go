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
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/quantmill/qfdata/data"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const beaDataURL = "https://apps.bea.gov/api/data"

// BEA fetches national accounts (NIPA) series from the Bureau of Economic
// Analysis API. Values are mapped onto economic observations keyed by a
// "<table>/<series code>" series ID.
type BEA struct {
	apiKey  string
	baseURL string
	limiter *rate.Limiter
	client  *resty.Client
}

// NewBEA constructs a BEA client with the given API key and request rate
// limit.
func NewBEA(apiKey string, requestsPerMinute int) (*BEA, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: bea api key is required", ErrConfig)
	}

	return &BEA{
		apiKey:  apiKey,
		baseURL: beaDataURL,
		limiter: newLimiter(requestsPerMinute),
		client:  resty.New().SetQueryParam("UserID", apiKey),
	}, nil
}

func (bea *BEA) Name() string {
	return "BEA"
}

func (bea *BEA) Description() string {
	return `The Bureau of Economic Analysis (BEA) API provides US national accounts data including GDP and its components from the NIPA tables`
}

func (bea *BEA) ConfigDescription() map[string]string {
	return map[string]string{
		"bea.api_key":    "What is your BEA api key?",
		"bea.rate_limit": "What is the maximum number of requests per minute?",
	}
}

// TableObservations fetches one NIPA table at the given frequency ("A" or
// "Q") for a range of years. Each (series code, period) cell becomes one
// observation.
func (bea *BEA) TableObservations(ctx context.Context, tableName, frequency string, years []int) ([]*data.EconomicObservation, error) {
	logger := zerolog.Ctx(ctx)

	if err := bea.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	yearParam := "ALL"
	if len(years) > 0 {
		parts := make([]string, len(years))
		for i, year := range years {
			parts[i] = strconv.Itoa(year)
		}
		yearParam = strings.Join(parts, ",")
	}

	var result beaResponse
	resp, err := bea.client.R().
		SetContext(ctx).
		SetQueryParam("method", "GetData").
		SetQueryParam("DataSetName", "NIPA").
		SetQueryParam("TableName", tableName).
		SetQueryParam("Frequency", frequency).
		SetQueryParam("Year", yearParam).
		SetQueryParam("ResultFormat", "json").
		SetResult(&result).
		Get(bea.baseURL)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatusCode, resp.StatusCode())
	}

	observations := make([]*data.EconomicObservation, 0, len(result.BEAAPI.Results.Data))
	for _, cell := range result.BEAAPI.Results.Data {
		eventDate, err := parseBEAPeriod(cell.TimePeriod)
		if err != nil {
			logger.Error().Err(err).Str("TimePeriod", cell.TimePeriod).Msg("parsing BEA time period failed")
			continue
		}

		value, err := strconv.ParseFloat(strings.ReplaceAll(cell.DataValue, ",", ""), 64)
		if err != nil {
			logger.Error().Err(err).Str("DataValue", cell.DataValue).Msg("parsing BEA data value failed")
			continue
		}

		observations = append(observations, &data.EconomicObservation{
			SeriesID:  fmt.Sprintf("%s/%s", tableName, cell.SeriesCode),
			EventDate: eventDate,
			Value:     value,
		})
	}

	return observations, nil
}

// parseBEAPeriod converts BEA time periods ("2023", "2023Q1", "2023M07")
// into the first date of the period.
func parseBEAPeriod(period string) (time.Time, error) {
	switch {
	case strings.Contains(period, "Q"):
		parts := strings.SplitN(period, "Q", 2)
		year, err := strconv.Atoi(parts[0])
		if err != nil {
			return time.Time{}, err
		}
		quarter, err := strconv.Atoi(parts[1])
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC), nil
	case strings.Contains(period, "M"):
		return time.Parse("2006M01", period)
	default:
		year, err := strconv.Atoi(period)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC), nil
	}
}

type beaResponse struct {
	BEAAPI struct {
		Results struct {
			Data []beaCell `json:"Data"`
		} `json:"Results"`
	} `json:"BEAAPI"`
}

type beaCell struct {
	TableName       string `json:"TableName"`
	SeriesCode      string `json:"SeriesCode"`
	LineNumber      string `json:"LineNumber"`
	LineDescription string `json:"LineDescription"`
	TimePeriod      string `json:"TimePeriod"`
	DataValue       string `json:"DataValue"`
	Unit            string `json:"UNIT_MULT"`
}
