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
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/quantmill/qfdata/data"
)

func fact(tag string, fy int, fp string, filed time.Time, value float64) *data.ConceptFact {
	return &data.ConceptFact{
		CIK:          "0000320193",
		Tag:          tag,
		FiscalYear:   fy,
		FiscalPeriod: fp,
		Filed:        filed,
		Form:         "10-Q",
		Units:        "USD",
		Value:        value,
	}
}

func annualFact(tag string, fy int, filed time.Time, value float64) *data.ConceptFact {
	out := fact(tag, fy, "FY", filed, value)
	out.Form = "10-K"
	return out
}

var _ = Describe("uniqueFacts", func() {
	It("keeps the earliest filing of each fiscal period and tag", func() {
		facts := uniqueFacts([]*data.ConceptFact{
			fact("NetIncomeLoss", 2024, "Q1", day(2024, 5, 1), 110),
			fact("NetIncomeLoss", 2024, "Q1", day(2024, 2, 1), 100),
			fact("NetIncomeLoss", 2024, "Q2", day(2024, 5, 1), 120),
		}, "10-Q")

		Expect(facts).To(HaveLen(2))
		Expect(facts[0].Value).To(Equal(100.0))
		Expect(facts[0].Filed).To(Equal(day(2024, 2, 1)))
		Expect(facts[1].Value).To(Equal(120.0))
	})

	It("keeps only the requested form's periods", func() {
		mixed := []*data.ConceptFact{
			fact("NetIncomeLoss", 2024, "Q1", day(2024, 2, 1), 100),
			annualFact("NetIncomeLoss", 2024, day(2025, 1, 15), 420),
		}

		quarters := uniqueFacts(mixed, "10-Q")
		Expect(quarters).To(HaveLen(1))
		Expect(quarters[0].FiscalPeriod).To(Equal("Q1"))

		years := uniqueFacts(mixed, "10-K")
		Expect(years).To(HaveLen(1))
		Expect(years[0].FiscalPeriod).To(Equal("FY"))
	})

	It("drops facts whose period contradicts the form", func() {
		odd := fact("NetIncomeLoss", 2024, "FY", day(2025, 1, 15), 420)
		Expect(uniqueFacts([]*data.ConceptFact{odd}, "10-Q")).To(BeEmpty())
	})
})

var _ = Describe("factsTable", func() {
	It("dates each period's row at the latest filing among its tags", func() {
		table := factsTable([]*data.ConceptFact{
			fact("NetIncomeLoss", 2024, "Q1", day(2024, 2, 1), 100),
			fact("StockholdersEquity", 2024, "Q1", day(2024, 2, 15), 500),
		})

		Expect(table.Len()).To(Equal(1))
		key := data.FiscalKey(2024, "Q1", day(2024, 2, 15))
		Expect(table.At(key, "NetIncomeLoss")).To(Equal(100.0))
		Expect(table.At(key, "StockholdersEquity")).To(Equal(500.0))
	})
})

var _ = Describe("Quarterly normalization", func() {
	var quarterly *Quarterly

	BeforeEach(func() {
		quarterly = NewQuarterly(nil, nil)
	})

	It("passes per-share ratios through and log-changes dollar amounts", func() {
		out := quarterly.normalizeFacts([]*data.ConceptFact{
			fact("EarningsPerShareBasic", 2024, "Q1", day(2024, 2, 1), 1.50),
			fact("NetIncomeLoss", 2024, "Q1", day(2024, 2, 1), 100),
			fact("EarningsPerShareBasic", 2024, "Q2", day(2024, 5, 1), 1.60),
			fact("NetIncomeLoss", 2024, "Q2", day(2024, 5, 1), 110),
		})

		Expect(out.Len()).To(Equal(1))
		key := data.FiscalKey(2024, "Q2", day(2024, 5, 1))
		Expect(out.At(key, "EarningsPerShareBasic")).To(Equal(1.60))
		Expect(out.At(key, "LOG_CHANGE(NetIncomeLoss)")).
			To(BeNumerically("~", math.Log(1.1), 1e-12))
	})

	It("excludes full-year filings from the quarterly series", func() {
		// a 10-K's FY dollar amount sorts before Q1 and would corrupt the
		// quarter-over-quarter changes if it slipped in
		out := quarterly.normalizeFacts([]*data.ConceptFact{
			fact("NetIncomeLoss", 2024, "Q1", day(2024, 2, 1), 100),
			fact("NetIncomeLoss", 2024, "Q2", day(2024, 5, 1), 110),
			annualFact("NetIncomeLoss", 2024, day(2025, 1, 15), 420),
		})

		Expect(out.Len()).To(Equal(1))
		key := data.FiscalKey(2024, "Q2", day(2024, 5, 1))
		Expect(out.At(key, "LOG_CHANGE(NetIncomeLoss)")).
			To(BeNumerically("~", math.Log(1.1), 1e-12))
	})

	It("drops restatements before differencing", func() {
		out := quarterly.normalizeFacts([]*data.ConceptFact{
			fact("NetIncomeLoss", 2024, "Q1", day(2024, 2, 1), 100),
			fact("NetIncomeLoss", 2024, "Q1", day(2024, 8, 1), 105),
			fact("NetIncomeLoss", 2024, "Q2", day(2024, 5, 1), 110),
		})

		Expect(out.Len()).To(Equal(1))
		Expect(out.At(data.FiscalKey(2024, "Q2", day(2024, 5, 1)), "LOG_CHANGE(NetIncomeLoss)")).
			To(BeNumerically("~", math.Log(1.1), 1e-12))
	})
})
