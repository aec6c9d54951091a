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

var _ = Describe("industryAccumulator", func() {
	It("groups peers by fiscal period regardless of filing date", func() {
		acc := newIndustryAccumulator()
		acc.add(data.FiscalKey(2024, "Q1", day(2024, 2, 1)), "x", 8)
		acc.add(data.FiscalKey(2024, "Q1", day(2024, 2, 20)), "x", 12)

		stats := acc.stats()

		Expect(stats.Mean.Len()).To(Equal(1))
		key := data.FiscalKey(2024, "Q1", day(2024, 2, 20))
		Expect(stats.Mean.At(key, "x")).To(Equal(10.0))
		Expect(stats.Std.At(key, "x")).To(BeNumerically("~", math.Sqrt(8), 1e-12))
		Expect(stats.Count.At(key, "x")).To(Equal(2.0))
	})

	It("reports an undefined spread for a lone filer", func() {
		acc := newIndustryAccumulator()
		acc.add(data.FiscalKey(2024, "Q1", day(2024, 2, 1)), "x", 8)

		stats := acc.stats()
		key := data.FiscalKey(2024, "Q1", day(2024, 2, 1))
		Expect(stats.Mean.At(key, "x")).To(Equal(8.0))
		Expect(math.IsNaN(stats.Std.At(key, "x"))).To(BeTrue())
		Expect(stats.Count.At(key, "x")).To(Equal(1.0))
	})
})

var _ = Describe("IndustryQuarterly", func() {
	It("truncates SIC codes to the peer-group prefix", func() {
		industry := NewIndustryQuarterly(NewQuarterly(nil, nil))
		Expect(industry.sicPrefix("3571")).To(Equal("35"))
		Expect(industry.sicPrefix("3")).To(Equal("3"))
	})
})
