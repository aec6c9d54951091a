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
package data

import (
	"fmt"
	"strings"
	"time"
)

// TimeKey is a composite time index ordered from its coarsest component to
// its finest: fiscal year, then fiscal period, then date. Series indexed by
// calendar date alone leave FiscalYear and FiscalPeriod at their zero values
// so that comparisons fall through to the date.
type TimeKey struct {
	FiscalYear   int
	FiscalPeriod string
	Date         time.Time
}

// DateKey returns a TimeKey for a date-indexed observation.
func DateKey(date time.Time) TimeKey {
	return TimeKey{Date: date}
}

// FiscalKey returns a TimeKey for a fiscal-year/fiscal-period/filing-date
// indexed observation.
func FiscalKey(fy int, fp string, filed time.Time) TimeKey {
	return TimeKey{FiscalYear: fy, FiscalPeriod: fp, Date: filed}
}

// Compare orders time keys coarse component first. It returns -1 if k sorts
// before other, 1 if k sorts after other, and 0 if the keys are equal.
func (k TimeKey) Compare(other TimeKey) int {
	switch {
	case k.FiscalYear < other.FiscalYear:
		return -1
	case k.FiscalYear > other.FiscalYear:
		return 1
	}

	if cmp := strings.Compare(k.FiscalPeriod, other.FiscalPeriod); cmp != 0 {
		return cmp
	}

	return k.Date.Compare(other.Date)
}

// After reports whether k sorts strictly after other.
func (k TimeKey) After(other TimeKey) bool {
	return k.Compare(other) > 0
}

func (k TimeKey) String() string {
	if k.FiscalYear == 0 && k.FiscalPeriod == "" {
		return k.Date.Format("2006-01-02")
	}

	return fmt.Sprintf("%d/%s/%s", k.FiscalYear, k.FiscalPeriod, k.Date.Format("2006-01-02"))
}

// EodQuote is a single raw end-of-day price observation for one ticker.
type EodQuote struct {
	Ticker    string    `db:"ticker"`
	EventDate time.Time `db:"event_date"`
	Open      float64   `db:"open"`
	High      float64   `db:"high"`
	Low       float64   `db:"low"`
	Close     float64   `db:"close"`
	Volume    float64   `db:"volume"`
}

// EconomicObservation is a single raw economic series value, e.g. one
// reading of the federal funds rate.
type EconomicObservation struct {
	SeriesID  string    `db:"series_id"`
	EventDate time.Time `db:"event_date"`
	Value     float64   `db:"value"`
}

// ConceptFact is a single raw XBRL company-concept value from a regulatory
// filing. Facts are indexed by the (fiscal year, fiscal period, filing date)
// composite key.
type ConceptFact struct {
	CIK          string    `db:"cik"`
	Tag          string    `db:"tag"`
	FiscalYear   int       `db:"fiscal_year"`
	FiscalPeriod string    `db:"fiscal_period"`
	Filed        time.Time `db:"filed"`
	Form         string    `db:"form"`
	Units        string    `db:"units"`
	Value        float64   `db:"value"`
}

// Key returns the fact's composite time key.
func (fact *ConceptFact) Key() TimeKey {
	return FiscalKey(fact.FiscalYear, fact.FiscalPeriod, fact.Filed)
}

// Submission describes a filing entity: its regulatory ID, ticker, and
// industry classification.
type Submission struct {
	CIK        string `db:"cik"`
	Ticker     string `db:"ticker"`
	EntityName string `db:"entity_name"`
	SIC        string `db:"sic"`
}

// FeatureRow is a refined feature value in melted form: one row per entity,
// time key, and feature name.
type FeatureRow struct {
	Entity string
	Key    TimeKey
	Name   string
	Value  float64
}
