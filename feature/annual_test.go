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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/quantmill/qfdata/data"
)

var _ = Describe("Annual normalization", func() {
	var annual *Annual

	BeforeEach(func() {
		annual = NewAnnual(nil, nil)
	})

	It("log-changes dollar amounts year over year", func() {
		out := annual.normalizeFacts([]*data.ConceptFact{
			annualFact("NetIncomeLoss", 2023, day(2024, 1, 15), 400),
			annualFact("NetIncomeLoss", 2024, day(2025, 1, 15), 440),
		})

		Expect(out.Len()).To(Equal(1))
		key := data.FiscalKey(2024, "FY", day(2025, 1, 15))
		Expect(out.At(key, "LOG_CHANGE(NetIncomeLoss)")).
			To(BeNumerically("~", math.Log(1.1), 1e-12))
	})

	It("excludes quarterly filings from the annual series", func() {
		out := annual.normalizeFacts([]*data.ConceptFact{
			annualFact("NetIncomeLoss", 2023, day(2024, 1, 15), 400),
			fact("NetIncomeLoss", 2024, "Q1", day(2024, 2, 1), 100),
			annualFact("NetIncomeLoss", 2024, day(2025, 1, 15), 440),
		})

		Expect(out.Len()).To(Equal(1))
		Expect(out.Index()).To(Equal([]data.TimeKey{
			data.FiscalKey(2024, "FY", day(2025, 1, 15)),
		}))
	})
})

var _ = Describe("IndustryAnnual", func() {
	It("truncates SIC codes to the peer-group prefix", func() {
		industry := NewIndustryAnnual(NewAnnual(nil, nil))
		Expect(industry.sicPrefix("7372")).To(Equal("73"))
		Expect(industry.sicPrefix("7")).To(Equal("7"))
	})
})

var _ = Describe("scoreAgainstIndustry", func() {
	It("scores a company's rows against peer statistics for the same period", func() {
		company := data.NewTable()
		company.Set(data.FiscalKey(2024, "FY", day(2025, 1, 15)), "EarningsPerShareBasic", 12)

		acc := newIndustryAccumulator()
		acc.add(data.FiscalKey(2024, "FY", day(2025, 1, 10)), "EarningsPerShareBasic", 8)
		acc.add(data.FiscalKey(2024, "FY", day(2025, 2, 1)), "EarningsPerShareBasic", 12)

		scored := scoreAgainstIndustry(company, acc.stats())

		Expect(scored.Len()).To(Equal(1))
		key := data.FiscalKey(2024, "FY", day(2025, 1, 15))
		Expect(scored.At(key, "EarningsPerShareBasic")).
			To(BeNumerically("~", 2.0/math.Sqrt(8), 1e-12))
	})

	It("resolves undefined log-change scores to no change", func() {
		company := data.NewTable()
		company.Set(data.FiscalKey(2024, "FY", day(2025, 1, 15)), "LOG_CHANGE(NetIncomeLoss)", 0.1)

		acc := newIndustryAccumulator()
		acc.add(data.FiscalKey(2024, "FY", day(2025, 1, 15)), "LOG_CHANGE(NetIncomeLoss)", 0.1)

		scored := scoreAgainstIndustry(company, acc.stats())

		Expect(scored.Len()).To(Equal(1))
		key := data.FiscalKey(2024, "FY", day(2025, 1, 15))
		Expect(scored.At(key, "LOG_CHANGE(NetIncomeLoss)")).To(Equal(0.0))
	})
})
