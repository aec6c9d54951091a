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
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quantmill/qfdata/data"
	"github.com/quantmill/qfdata/library"
	"github.com/quantmill/qfdata/provider"
)

// Annual aggregates a company's full-year fundamental facts into a feature
// table indexed by the (fiscal year, FY, filing date) composite key. It
// parallels Quarterly but reads 10-K filings, so it sees one row per fiscal
// year. Raw concept rows are shared with the quarterly set; only the
// refined rows differ.
type Annual struct {
	Client   *provider.SEC
	Library  *library.Library
	Concepts []Concept
}

// NewAnnual constructs the annual fundamentals feature set over the popular
// concepts.
func NewAnnual(client *provider.SEC, myLibrary *library.Library) *Annual {
	return &Annual{
		Client:   client,
		Library:  myLibrary,
		Concepts: PopularConcepts,
	}
}

func (annual *Annual) normalizeFacts(facts []*data.ConceptFact) *data.Table {
	return Normalize(factsTable(uniqueFacts(facts, form10K)), conceptRules(annual.Concepts))
}

// Get serves a company's annual feature table via the selected strategy.
func (annual *Annual) Get(ctx context.Context, strategy Strategy, ticker string, start, end time.Time) (*data.Table, error) {
	switch strategy {
	case FromAPI:
		return annual.FromAPI(ctx, ticker, start, end)
	case FromRaw:
		return annual.FromRaw(ctx, ticker, start, end)
	case FromRefined:
		return annual.FromRefined(ctx, ticker, start, end)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
}

// FromAPI aggregates annual features straight from the source API with no
// persistence. start and end bound the filing date.
func (annual *Annual) FromAPI(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	cik, err := annual.Client.CIKForTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}

	var facts []*data.ConceptFact
	for _, concept := range annual.Concepts {
		conceptFacts, err := annual.Client.CompanyConcept(ctx, cik, concept.Taxonomy, concept.Tag, concept.Units)
		if err != nil {
			return nil, err
		}

		for _, fact := range conceptFacts {
			if !fact.Filed.Before(start) && !fact.Filed.After(end) {
				facts = append(facts, fact)
			}
		}
	}

	if len(facts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}

	return annual.normalizeFacts(facts), nil
}

// FromRaw aggregates annual features from locally installed raw concept
// rows. Raw rows install through the quarterly feature set.
func (annual *Annual) FromRaw(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	cik, err := cikForTicker(ctx, annual.Library, ticker)
	if err != nil {
		return nil, err
	}

	return annual.fromRawCIK(ctx, cik, start, end)
}

func (annual *Annual) fromRawCIK(ctx context.Context, cik string, start, end time.Time) (*data.Table, error) {
	facts, err := annual.Library.ConceptFacts(ctx, cik, conceptTags(annual.Concepts), start, end)
	if err != nil {
		return nil, err
	}

	if len(facts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, cik)
	}

	return annual.normalizeFacts(facts), nil
}

// FromRefined reads a company's already-normalized rows from the refined
// store.
func (annual *Annual) FromRefined(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	cik, err := cikForTicker(ctx, annual.Library, ticker)
	if err != nil {
		return nil, err
	}

	rows, err := annual.Library.Features(ctx, library.AnnualFeatures, cik, start, end)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, ticker)
	}

	return data.Pivot(rows), nil
}

// CIKSet reports which companies have data available for a strategy. lb
// filters out companies with fewer stored rows.
func (annual *Annual) CIKSet(ctx context.Context, strategy Strategy, lb int) (map[string]struct{}, error) {
	switch strategy {
	case FromRaw:
		return annual.Library.ConceptCIKSet(ctx, lb)
	case FromRefined:
		return annual.Library.FeatureEntitySet(ctx, library.AnnualFeatures, lb)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
}

// InstallRefined normalizes each company's 10-K facts from its raw rows and
// upserts the refined rows keyed by CIK. Refinement always recomputes over
// the full raw history because log changes are not incremental.
func (annual *Annual) InstallRefined(ctx context.Context, tickers []string) *data.RunReport {
	report := data.NewRunReport("SEC", "annual-features")
	return installEach(ctx, report, tickers, func(ctx context.Context, ticker string) (int, error) {
		cik, err := cikForTicker(ctx, annual.Library, ticker)
		if err != nil {
			return 0, err
		}

		start, end := window(time.Time{}, time.Time{})
		refined, err := annual.fromRawCIK(ctx, cik, start, end)
		if err != nil {
			return 0, err
		}

		if refined.Len() == 0 {
			return 0, ErrEmptyNormalization
		}

		return annual.Library.UpsertFeatures(ctx, library.AnnualFeatures, refined.Melt(cik))
	})
}

// IndustryAnnual aggregates the annual features of all companies in one
// industry into cross-sectional statistics. Industries are identified by an
// SIC code prefix.
type IndustryAnnual struct {
	Library   *library.Library
	Annual    *Annual
	SICDigits int
}

// NewIndustryAnnual constructs the industry statistics feature set at the
// default peer-group granularity.
func NewIndustryAnnual(annual *Annual) *IndustryAnnual {
	return &IndustryAnnual{
		Library:   annual.Library,
		Annual:    annual,
		SICDigits: DefaultSICDigits,
	}
}

func (industry *IndustryAnnual) sicPrefix(sic string) string {
	return truncateSIC(sic, industry.SICDigits)
}

// Get serves an industry's statistics via the selected strategy.
func (industry *IndustryAnnual) Get(ctx context.Context, strategy Strategy, sic string, start, end time.Time) (*IndustryStats, error) {
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
func (industry *IndustryAnnual) FromRaw(ctx context.Context, sic string, start, end time.Time) (*IndustryStats, error) {
	start, end = window(start, end)

	ciks, err := industry.Library.CIKsForIndustry(ctx, industry.sicPrefix(sic))
	if err != nil {
		return nil, err
	}

	acc := newIndustryAccumulator()
	peers := 0
	for cik := range ciks {
		table, err := industry.Annual.fromRawCIK(ctx, cik, start, end)
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

// FromRefined aggregates industry statistics from the peers' refined annual
// rows.
func (industry *IndustryAnnual) FromRefined(ctx context.Context, sic string, start, end time.Time) (*IndustryStats, error) {
	start, end = window(start, end)

	ciks, err := industry.Library.CIKsForIndustry(ctx, industry.sicPrefix(sic))
	if err != nil {
		return nil, err
	}

	entities := make([]string, 0, len(ciks))
	for cik := range ciks {
		entities = append(entities, cik)
	}

	rows, err := industry.Library.FeaturesForEntities(ctx, library.AnnualFeatures, entities, start, end)
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

// NormalizedAnnual scores a company's annual features against its industry
// peer group, fiscal year by fiscal year. The set has no raw rows of its
// own; it derives entirely from the refined annual table.
type NormalizedAnnual struct {
	Library  *library.Library
	Annual   *Annual
	Industry *IndustryAnnual
}

// NewNormalizedAnnual constructs the industry-normalized annual feature
// set.
func NewNormalizedAnnual(annual *Annual) *NormalizedAnnual {
	return &NormalizedAnnual{
		Library:  annual.Library,
		Annual:   annual,
		Industry: NewIndustryAnnual(annual),
	}
}

// Get serves a company's industry-normalized features via the selected
// strategy.
func (normalized *NormalizedAnnual) Get(ctx context.Context, strategy Strategy, ticker string, start, end time.Time) (*data.Table, error) {
	switch strategy {
	case FromOtherRefined:
		return normalized.FromOtherRefined(ctx, ticker, start, end)
	case FromRefined:
		return normalized.FromRefined(ctx, ticker, start, end)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
}

// FromOtherRefined derives industry-normalized features from the refined
// annual rows of the company and its peers.
func (normalized *NormalizedAnnual) FromOtherRefined(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	sub, err := normalized.Library.SubmissionForTicker(ctx, ticker)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, ticker)
	}
	if err != nil {
		return nil, err
	}

	company, err := normalized.Annual.FromRefined(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	stats, err := normalized.Industry.FromRefined(ctx, sub.SIC, start, end)
	if err != nil {
		return nil, err
	}

	return scoreAgainstIndustry(company, stats), nil
}

// FromRefined reads a company's already-scored rows from the refined store.
func (normalized *NormalizedAnnual) FromRefined(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	cik, err := cikForTicker(ctx, normalized.Library, ticker)
	if err != nil {
		return nil, err
	}

	rows, err := normalized.Library.Features(ctx, library.NormalizedAnnualFeatures, cik, start, end)
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
func (normalized *NormalizedAnnual) CIKSet(ctx context.Context, lb int) (map[string]struct{}, error) {
	return normalized.Library.FeatureEntitySet(ctx, library.NormalizedAnnualFeatures, lb)
}

// InstallRefined scores each company against its peers and upserts the
// refined rows keyed by CIK. Scores always recompute over the full history
// because the peer statistics shift as new companies install.
func (normalized *NormalizedAnnual) InstallRefined(ctx context.Context, tickers []string) *data.RunReport {
	report := data.NewRunReport("SEC", "normalized-annual-features")
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

		return normalized.Library.UpsertFeatures(ctx, library.NormalizedAnnualFeatures, scored.Melt(cik))
	})
}
