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
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quantmill/qfdata/data"
	"github.com/quantmill/qfdata/library"
	"github.com/quantmill/qfdata/provider"
)

// Concept identifies one XBRL tag tracked by the quarterly feature set and
// how its values refine.
type Concept struct {
	Taxonomy string
	Tag      string
	Units    string
	Rule     Rule
}

// PopularConcepts is the XBRL tags reported consistently enough across
// filers to build a dense quarterly table. Dollar quantities refine to log
// changes; per-share ratios are already scale-free and pass through.
var PopularConcepts = []Concept{
	{Taxonomy: "us-gaap", Tag: "AssetsCurrent", Units: "USD", Rule: ScaleDrift},
	{Taxonomy: "us-gaap", Tag: "DebtCurrent", Units: "USD", Rule: ScaleDrift},
	{Taxonomy: "us-gaap", Tag: "EarningsPerShareBasic", Units: "USD/shares", Rule: PassThrough},
	{Taxonomy: "us-gaap", Tag: "InventoryNet", Units: "USD", Rule: ScaleDrift},
	{Taxonomy: "us-gaap", Tag: "LiabilitiesCurrent", Units: "USD", Rule: ScaleDrift},
	{Taxonomy: "us-gaap", Tag: "NetIncomeLoss", Units: "USD", Rule: ScaleDrift},
	{Taxonomy: "us-gaap", Tag: "OperatingIncomeLoss", Units: "USD", Rule: ScaleDrift},
	{Taxonomy: "us-gaap", Tag: "StockholdersEquity", Units: "USD", Rule: ScaleDrift},
}

// Quarterly aggregates a company's fundamental facts into a feature table
// indexed by the (fiscal year, fiscal period, filing date) composite key.
// Companies restate facts across filings; only the earliest filing of each
// (fiscal year, fiscal period, tag) is kept.
type Quarterly struct {
	Client   *provider.SEC
	Library  *library.Library
	Concepts []Concept
}

// NewQuarterly constructs the quarterly fundamentals feature set over the
// popular concepts.
func NewQuarterly(client *provider.SEC, myLibrary *library.Library) *Quarterly {
	return &Quarterly{
		Client:   client,
		Library:  myLibrary,
		Concepts: PopularConcepts,
	}
}

// Form types whose facts feed the fiscal feature sets. Companies report
// the same tags on both; the quarterly sets read 10-Qs and the annual sets
// read 10-Ks.
const (
	form10Q = "10-Q"
	form10K = "10-K"
)

func conceptTags(concepts []Concept) []string {
	tags := make([]string, 0, len(concepts))
	for _, concept := range concepts {
		tags = append(tags, concept.Tag)
	}
	return tags
}

func conceptRules(concepts []Concept) map[string]Rule {
	rules := make(map[string]Rule, len(concepts))
	for _, concept := range concepts {
		rules[concept.Tag] = concept.Rule
	}
	return rules
}

// matchesForm reports whether a fact's fiscal period belongs to the form's
// feature set: quarters for 10-Qs, full years for 10-Ks. Mixing the two
// would difference annual dollar amounts against quarterly ones.
func matchesForm(form, fp string) bool {
	switch form {
	case form10K:
		return fp == "FY"
	case form10Q:
		return strings.HasPrefix(fp, "Q")
	}
	return false
}

// uniqueFacts keeps only the given form's facts and, of those, only the
// earliest filing of each (fiscal year, fiscal period, tag) triple,
// dropping later restatements. Output is ordered by fiscal key.
func uniqueFacts(facts []*data.ConceptFact, form string) []*data.ConceptFact {
	filtered := make([]*data.ConceptFact, 0, len(facts))
	for _, fact := range facts {
		if fact.Form != form || !matchesForm(form, fact.FiscalPeriod) {
			continue
		}
		filtered = append(filtered, fact)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Key().Compare(filtered[j].Key()) < 0
	})

	type factKey struct {
		fy  int
		fp  string
		tag string
	}

	seen := make(map[factKey]bool, len(filtered))
	unique := make([]*data.ConceptFact, 0, len(filtered))
	for _, fact := range filtered {
		key := factKey{fy: fact.FiscalYear, fp: fact.FiscalPeriod, tag: fact.Tag}
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, fact)
	}
	return unique
}

// factsTable pivots deduped facts into a wide table with one row per fiscal
// period. A period's row date is the latest filing date among its tags so
// the row never predates any value it carries.
func factsTable(facts []*data.ConceptFact) *data.Table {
	type periodKey struct {
		fy int
		fp string
	}

	filed := make(map[periodKey]time.Time)
	for _, fact := range facts {
		key := periodKey{fy: fact.FiscalYear, fp: fact.FiscalPeriod}
		if fact.Filed.After(filed[key]) {
			filed[key] = fact.Filed
		}
	}

	table := data.NewTable()
	for _, fact := range facts {
		key := periodKey{fy: fact.FiscalYear, fp: fact.FiscalPeriod}
		table.Set(data.FiscalKey(fact.FiscalYear, fact.FiscalPeriod, filed[key]), fact.Tag, fact.Value)
	}

	return table
}

func (quarterly *Quarterly) normalizeFacts(facts []*data.ConceptFact) *data.Table {
	return Normalize(factsTable(uniqueFacts(facts, form10Q)), conceptRules(quarterly.Concepts))
}

// cikForTicker resolves a ticker to the CIK stored with its filing entity.
func cikForTicker(ctx context.Context, myLibrary *library.Library, ticker string) (string, error) {
	sub, err := myLibrary.SubmissionForTicker(ctx, ticker)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotInstalled, ticker)
	}
	if err != nil {
		return "", err
	}
	return sub.CIK, nil
}

// Get serves a company's quarterly feature table via the selected strategy.
func (quarterly *Quarterly) Get(ctx context.Context, strategy Strategy, ticker string, start, end time.Time) (*data.Table, error) {
	switch strategy {
	case FromAPI:
		return quarterly.FromAPI(ctx, ticker, start, end)
	case FromRaw:
		return quarterly.FromRaw(ctx, ticker, start, end)
	case FromRefined:
		return quarterly.FromRefined(ctx, ticker, start, end)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
}

// FromAPI aggregates quarterly features straight from the source API with
// no persistence. start and end bound the filing date.
func (quarterly *Quarterly) FromAPI(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	cik, err := quarterly.Client.CIKForTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}

	var facts []*data.ConceptFact
	for _, concept := range quarterly.Concepts {
		conceptFacts, err := quarterly.Client.CompanyConcept(ctx, cik, concept.Taxonomy, concept.Tag, concept.Units)
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

	return quarterly.normalizeFacts(facts), nil
}

// FromRaw aggregates quarterly features from locally installed raw concept
// rows.
func (quarterly *Quarterly) FromRaw(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	cik, err := cikForTicker(ctx, quarterly.Library, ticker)
	if err != nil {
		return nil, err
	}

	return quarterly.fromRawCIK(ctx, cik, start, end)
}

func (quarterly *Quarterly) fromRawCIK(ctx context.Context, cik string, start, end time.Time) (*data.Table, error) {
	facts, err := quarterly.Library.ConceptFacts(ctx, cik, conceptTags(quarterly.Concepts), start, end)
	if err != nil {
		return nil, err
	}

	if len(facts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, cik)
	}

	return quarterly.normalizeFacts(facts), nil
}

// FromRefined reads a company's already-normalized rows from the refined
// store.
func (quarterly *Quarterly) FromRefined(ctx context.Context, ticker string, start, end time.Time) (*data.Table, error) {
	start, end = window(start, end)

	cik, err := cikForTicker(ctx, quarterly.Library, ticker)
	if err != nil {
		return nil, err
	}

	rows, err := quarterly.Library.Features(ctx, library.QuarterlyFeatures, cik, start, end)
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
func (quarterly *Quarterly) CIKSet(ctx context.Context, strategy Strategy, lb int) (map[string]struct{}, error) {
	switch strategy {
	case FromRaw:
		return quarterly.Library.ConceptCIKSet(ctx, lb)
	case FromRefined:
		return quarterly.Library.FeatureEntitySet(ctx, library.QuarterlyFeatures, lb)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
}

// InstallRaw fetches each ticker's filing-entity description and concept
// history independently and upserts the raw rows. Per-ticker failures are
// captured on the report, never raised.
func (quarterly *Quarterly) InstallRaw(ctx context.Context, tickers []string) *data.RunReport {
	report := data.NewRunReport("SEC", "company-concepts")
	return installEach(ctx, report, tickers, func(ctx context.Context, ticker string) (int, error) {
		return quarterly.installTicker(ctx, ticker, time.Time{})
	})
}

// UpdateRaw fetches only facts filed after the latest stored filing date
// for each company. Companies with no stored rows fall back to a full
// fetch.
func (quarterly *Quarterly) UpdateRaw(ctx context.Context, tickers []string) *data.RunReport {
	report := data.NewRunReport("SEC", "company-concepts-update")
	return installEach(ctx, report, tickers, func(ctx context.Context, ticker string) (int, error) {
		sub, err := quarterly.Library.SubmissionForTicker(ctx, ticker)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}

		var filedAfter time.Time
		if sub != nil {
			latest, err := quarterly.Library.LatestFiledDate(ctx, sub.CIK)
			if err != nil {
				return 0, err
			}
			filedAfter = latest
		}

		return quarterly.installTicker(ctx, ticker, filedAfter)
	})
}

func (quarterly *Quarterly) installTicker(ctx context.Context, ticker string, filedAfter time.Time) (int, error) {
	sub, err := quarterly.Client.Submission(ctx, ticker)
	if err != nil {
		return 0, err
	}

	if _, err := quarterly.Library.UpsertSubmissions(ctx, []*data.Submission{sub}); err != nil {
		return 0, err
	}

	var facts []*data.ConceptFact
	for _, concept := range quarterly.Concepts {
		conceptFacts, err := quarterly.Client.CompanyConcept(ctx, sub.CIK, concept.Taxonomy, concept.Tag, concept.Units)
		if err != nil {
			return 0, err
		}

		for _, fact := range conceptFacts {
			if fact.Filed.After(filedAfter) {
				facts = append(facts, fact)
			}
		}
	}

	if len(facts) == 0 {
		return 0, ErrNoData
	}

	return quarterly.Library.UpsertConceptFacts(ctx, facts)
}

// InstallRefined normalizes each company from its raw rows and upserts the
// refined rows keyed by CIK. Refinement always recomputes over the full raw
// history because log changes are not incremental.
func (quarterly *Quarterly) InstallRefined(ctx context.Context, tickers []string) *data.RunReport {
	report := data.NewRunReport("SEC", "quarterly-features")
	return installEach(ctx, report, tickers, func(ctx context.Context, ticker string) (int, error) {
		cik, err := cikForTicker(ctx, quarterly.Library, ticker)
		if err != nil {
			return 0, err
		}

		start, end := window(time.Time{}, time.Time{})
		refined, err := quarterly.fromRawCIK(ctx, cik, start, end)
		if err != nil {
			return 0, err
		}

		if refined.Len() == 0 {
			return 0, ErrEmptyNormalization
		}

		return quarterly.Library.UpsertFeatures(ctx, library.QuarterlyFeatures, refined.Melt(cik))
	})
}
