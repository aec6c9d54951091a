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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/quantmill/qfdata/data"
)

var _ = Describe("joinDailyQuarterly", func() {
	var daily, quarterly *data.Table

	BeforeEach(func() {
		daily = data.NewTable()
		daily.Set(data.DateKey(day(2024, 2, 1)), "LOG_CHANGE(close)", 0.01)
		daily.Set(data.DateKey(day(2024, 2, 2)), "LOG_CHANGE(close)", -0.02)
		daily.Set(data.DateKey(day(2024, 5, 2)), "LOG_CHANGE(close)", 0.03)
		daily.Sort()

		quarterly = data.NewTable()
		quarterly.Set(data.FiscalKey(2024, "Q1", day(2024, 2, 2)), "EarningsPerShareBasic", 1.50)
		quarterly.Set(data.FiscalKey(2024, "Q2", day(2024, 5, 1)), "EarningsPerShareBasic", 1.60)
	})

	It("broadcasts quarterly values forward from their filing date", func() {
		out := joinDailyQuarterly(daily, quarterly)

		Expect(out.Len()).To(Equal(2))
		Expect(out.At(data.DateKey(day(2024, 2, 2)), "EarningsPerShareBasic")).To(Equal(1.50))
		Expect(out.At(data.DateKey(day(2024, 5, 2)), "EarningsPerShareBasic")).To(Equal(1.60))
		Expect(out.At(data.DateKey(day(2024, 5, 2)), "LOG_CHANGE(close)")).To(Equal(0.03))
	})

	It("drops trading days before the first filing", func() {
		out := joinDailyQuarterly(daily, quarterly)
		Expect(out.Index()).ToNot(ContainElement(data.DateKey(day(2024, 2, 1))))
	})

	It("derives the price-to-earnings ratio when both sides are present", func() {
		daily.Set(data.DateKey(day(2024, 2, 2)), PriceCol, 150.0)
		daily.Set(data.DateKey(day(2024, 5, 2)), PriceCol, 160.0)

		out := joinDailyQuarterly(daily, quarterly)

		Expect(out.HasColumn(PriceEarningsCol)).To(BeTrue())
		Expect(out.At(data.DateKey(day(2024, 2, 2)), PriceEarningsCol)).
			To(BeNumerically("~", 150.0/1.50, 1e-12))
		Expect(out.At(data.DateKey(day(2024, 5, 2)), PriceEarningsCol)).
			To(BeNumerically("~", 160.0/1.60, 1e-12))
	})

	It("forward-fills the ratio over zero earnings", func() {
		daily.Set(data.DateKey(day(2024, 2, 2)), PriceCol, 150.0)
		daily.Set(data.DateKey(day(2024, 5, 2)), PriceCol, 160.0)
		quarterly.Set(data.FiscalKey(2024, "Q2", day(2024, 5, 1)), "EarningsPerShareBasic", 0.0)

		out := joinDailyQuarterly(daily, quarterly)

		Expect(out.At(data.DateKey(day(2024, 5, 2)), PriceEarningsCol)).
			To(BeNumerically("~", 150.0/1.50, 1e-12))
	})
})
