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
	"strings"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/quantmill/qfdata/data"
	"golang.org/x/time/rate"
)

const (
	secTickersURL     = "https://www.sec.gov/files/company_tickers.json"
	secSubmissionsURL = "https://data.sec.gov/submissions"
	secConceptURL     = "https://data.sec.gov/api/xbrl/companyconcept"
)

// SEC fetches XBRL company-concept facts and filing-entity metadata from
// SEC EDGAR. EDGAR requires a descriptive User-Agent identifying the
// caller.
type SEC struct {
	userAgent      string
	tickersURL     string
	submissionsURL string
	conceptURL     string
	limiter        *rate.Limiter
	client         *resty.Client

	cikMap *haxmap.Map[string, string]
}

// NewSEC constructs an EDGAR client. userAgent must identify the caller
// per EDGAR's fair-access policy (e.g. "Jane Doe jane@example.com").
func NewSEC(userAgent string, requestsPerMinute int) (*SEC, error) {
	if userAgent == "" {
		return nil, fmt.Errorf("%w: sec user agent is required", ErrConfig)
	}

	return &SEC{
		userAgent:      userAgent,
		tickersURL:     secTickersURL,
		submissionsURL: secSubmissionsURL,
		conceptURL:     secConceptURL,
		limiter:        newLimiter(requestsPerMinute),
		client:         resty.New().SetHeader("User-Agent", userAgent),
		cikMap:         haxmap.New[string, string](),
	}, nil
}

func (sec *SEC) Name() string {
	return "SEC"
}

func (sec *SEC) Description() string {
	return `SEC EDGAR provides access to XBRL financial facts extracted from 10-K and 10-Q filings for all registered US companies`
}

func (sec *SEC) ConfigDescription() map[string]string {
	return map[string]string{
		"sec.user_agent": "What User-Agent should be sent to SEC EDGAR (name and email)?",
		"sec.rate_limit": "What is the maximum number of requests per minute?",
	}
}

// CIKForTicker resolves a ticker to its zero-padded 10 digit CIK, loading
// and caching the EDGAR ticker map on first use. The cache is safe for
// concurrent lookups.
func (sec *SEC) CIKForTicker(ctx context.Context, ticker string) (string, error) {
	ticker = strings.ToUpper(ticker)
	if cik, ok := sec.cikMap.Get(ticker); ok {
		return cik, nil
	}

	if err := sec.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := sec.client.R().SetContext(ctx).Get(sec.tickersURL)
	if err != nil {
		return "", err
	}

	if resp.StatusCode() >= 300 {
		return "", fmt.Errorf("%w: %d", ErrInvalidStatusCode, resp.StatusCode())
	}

	var tickerMap map[string]secTickerEntry
	if err := json.Unmarshal(resp.Body(), &tickerMap); err != nil {
		return "", err
	}

	for _, entry := range tickerMap {
		sec.cikMap.Set(strings.ToUpper(entry.Ticker), fmt.Sprintf("%010d", entry.CIK))
	}

	cik, ok := sec.cikMap.Get(ticker)
	if !ok {
		return "", fmt.Errorf("no CIK found for ticker %s", ticker)
	}

	return cik, nil
}

// Submission fetches the filing-entity description (name, industry code)
// for a ticker.
func (sec *SEC) Submission(ctx context.Context, ticker string) (*data.Submission, error) {
	cik, err := sec.CIKForTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if err := sec.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var result secSubmissionResponse
	resp, err := sec.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("%s/CIK%s.json", sec.submissionsURL, cik))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatusCode, resp.StatusCode())
	}

	return &data.Submission{
		CIK:        cik,
		Ticker:     strings.ToUpper(ticker),
		EntityName: result.Name,
		SIC:        result.SIC,
	}, nil
}

// CompanyConcept fetches all reported facts for one XBRL tag for a
// company. Facts are returned as reported, one row per filing; callers
// dedupe revisions. A nil error with zero rows means the company never
// reported the tag.
func (sec *SEC) CompanyConcept(ctx context.Context, cik, taxonomy, tag, units string) ([]*data.ConceptFact, error) {
	if err := sec.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := sec.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/CIK%s/%s/%s.json", sec.conceptURL, cik, taxonomy, tag))
	if err != nil {
		return nil, err
	}

	// EDGAR responds 404 for tags a company never reported
	if resp.StatusCode() == 404 {
		return nil, nil
	}

	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatusCode, resp.StatusCode())
	}

	var result secConceptResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}

	entries := result.Units[units]
	facts := make([]*data.ConceptFact, 0, len(entries))

	for _, entry := range entries {
		if entry.FY == 0 || entry.FP == "" {
			continue
		}

		filed, err := time.Parse("2006-01-02", entry.Filed)
		if err != nil {
			continue
		}

		facts = append(facts, &data.ConceptFact{
			CIK:          cik,
			Tag:          tag,
			FiscalYear:   entry.FY,
			FiscalPeriod: entry.FP,
			Filed:        filed,
			Form:         entry.Form,
			Units:        units,
			Value:        entry.Val,
		})
	}

	return facts, nil
}

type secTickerEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

type secSubmissionResponse struct {
	CIK            string   `json:"cik"`
	Name           string   `json:"name"`
	SIC            string   `json:"sic"`
	SICDescription string   `json:"sicDescription"`
	Tickers        []string `json:"tickers"`
}

type secConceptResponse struct {
	CIK         int                          `json:"cik"`
	Taxonomy    string                       `json:"taxonomy"`
	Tag         string                       `json:"tag"`
	Label       string                       `json:"label"`
	EntityName  string                       `json:"entityName"`
	Units       map[string][]secConceptEntry `json:"units"`
	Description string                       `json:"description"`
}

type secConceptEntry struct {
	End   string  `json:"end"`
	Val   float64 `json:"val"`
	Accn  string  `json:"accn"`
	FY    int     `json:"fy"`
	FP    string  `json:"fp"`
	Form  string  `json:"form"`
	Filed string  `json:"filed"`
	Frame string  `json:"frame"`
}
