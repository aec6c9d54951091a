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

var _ = Describe("Column naming", func() {
	It("wraps and unwraps functional column names", func() {
		Expect(LogChangeCol("close")).To(Equal("LOG_CHANGE(close)"))
		Expect(IsLogChangeCol("LOG_CHANGE(close)")).To(BeTrue())
		Expect(IsLogChangeCol("close")).To(BeFalse())
		Expect(BaseCol("LOG_CHANGE(close)")).To(Equal("close"))
		Expect(BaseCol("FEDFUNDS")).To(Equal("FEDFUNDS"))
	})

	It("splits function and argument", func() {
		fn, arg, ok := ParseFuncCol("LOG_CHANGE(GDP)")
		Expect(ok).To(BeTrue())
		Expect(fn).To(Equal("LOG_CHANGE"))
		Expect(arg).To(Equal("GDP"))

		_, _, ok = ParseFuncCol("GDP")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("LogChange", func() {
	It("computes period-over-period log changes", func() {
		out := LogChange([]float64{100, 110})
		Expect(math.IsNaN(out[0])).To(BeTrue())
		Expect(out[1]).To(BeNumerically("~", math.Log(1.1), 1e-12))
	})

	It("resolves undefined changes to no change", func() {
		// zero base gives -Inf, a gap gives NaN; both mean "no change"
		out := LogChange([]float64{100, 0, math.NaN(), 100})
		Expect(out[1]).To(Equal(0.0))
		Expect(out[2]).To(Equal(0.0))
		Expect(out[3]).To(Equal(0.0))
	})
})

var _ = Describe("ForwardFill", func() {
	It("fills gaps with the most recent value", func() {
		out := ForwardFill([]float64{5, math.NaN(), 5})
		Expect(out).To(Equal([]float64{5, 5, 5}))
	})

	It("treats infinities as missing", func() {
		out := ForwardFill([]float64{5, math.Inf(1), 6})
		Expect(out).To(Equal([]float64{5, 5, 6}))
	})

	It("leaves a leading gap unfilled", func() {
		out := ForwardFill([]float64{math.NaN(), 3})
		Expect(math.IsNaN(out[0])).To(BeTrue())
		Expect(out[1]).To(Equal(3.0))
	})
})

var _ = Describe("Normalize", func() {
	It("renames scale-drift columns and drops the first row", func() {
		table := data.NewTable()
		table.Set(data.DateKey(day(2024, 1, 1)), "close", 100)
		table.Set(data.DateKey(day(2024, 1, 2)), "close", 110)

		out := Normalize(table, map[string]Rule{"close": ScaleDrift})

		Expect(out.Len()).To(Equal(1))
		Expect(out.HasColumn("LOG_CHANGE(close)")).To(BeTrue())
		Expect(out.At(data.DateKey(day(2024, 1, 2)), "LOG_CHANGE(close)")).
			To(BeNumerically("~", math.Log(1.1), 1e-12))
	})

	It("returns an empty table for a single observation under scale drift", func() {
		table := data.NewTable()
		table.Set(data.DateKey(day(2024, 1, 1)), "close", 100)

		out := Normalize(table, map[string]Rule{"close": ScaleDrift})
		Expect(out.Len()).To(BeZero())
	})

	It("sorts rows before differencing", func() {
		table := data.NewTable()
		table.Set(data.DateKey(day(2024, 1, 3)), "close", 121)
		table.Set(data.DateKey(day(2024, 1, 1)), "close", 100)
		table.Set(data.DateKey(day(2024, 1, 2)), "close", 110)

		out := Normalize(table, map[string]Rule{"close": ScaleDrift})

		Expect(out.Len()).To(Equal(2))
		Expect(out.At(data.DateKey(day(2024, 1, 2)), "LOG_CHANGE(close)")).
			To(BeNumerically("~", math.Log(1.1), 1e-12))
		Expect(out.At(data.DateKey(day(2024, 1, 3)), "LOG_CHANGE(close)")).
			To(BeNumerically("~", math.Log(1.1), 1e-12))
	})

	It("forward-fills pass-through columns and drops unruled ones", func() {
		table := data.NewTable()
		table.Set(data.DateKey(day(2024, 1, 1)), "rate", 5)
		table.Set(data.DateKey(day(2024, 1, 2)), "junk", 1)
		table.Set(data.DateKey(day(2024, 1, 3)), "rate", 6)

		out := Normalize(table, map[string]Rule{"rate": PassThrough})

		Expect(out.HasColumn("junk")).To(BeFalse())
		Expect(out.Len()).To(Equal(3))
		Expect(out.At(data.DateKey(day(2024, 1, 2)), "rate")).To(Equal(5.0))
	})

	It("leaves the input table untouched", func() {
		table := data.NewTable()
		table.Set(data.DateKey(day(2024, 1, 2)), "close", 110)
		table.Set(data.DateKey(day(2024, 1, 1)), "close", 100)

		Normalize(table, map[string]Rule{"close": ScaleDrift})

		Expect(table.Columns()).To(Equal([]string{"close"}))
		Expect(table.At(data.DateKey(day(2024, 1, 1)), "close")).To(Equal(100.0))
		Expect(table.Index()).To(Equal([]data.TimeKey{
			data.DateKey(day(2024, 1, 2)),
			data.DateKey(day(2024, 1, 1)),
		}))
	})

	It("drops rows before a pass-through column's first value", func() {
		table := data.NewTable()
		table.Set(data.DateKey(day(2024, 1, 1)), "a", 1)
		table.Set(data.DateKey(day(2024, 1, 2)), "a", 2)
		table.Set(data.DateKey(day(2024, 1, 2)), "b", 10)

		out := Normalize(table, map[string]Rule{"a": PassThrough, "b": PassThrough})

		Expect(out.Len()).To(Equal(1))
		Expect(out.Index()).To(Equal([]data.TimeKey{data.DateKey(day(2024, 1, 2))}))
	})
})

var _ = Describe("ZScore", func() {
	It("scores against the population's mean and spread", func() {
		Expect(ZScore(12, 10, 2, 3)).To(Equal(1.0))
	})

	It("is undefined for populations below two", func() {
		Expect(math.IsNaN(ZScore(12, 12, 0, 1))).To(BeTrue())
		Expect(math.IsNaN(ZScore(12, math.NaN(), math.NaN(), 0))).To(BeTrue())
	})
})

var _ = Describe("meanStd", func() {
	It("ignores NaN values", func() {
		mean, std, count := meanStd([]float64{1, math.NaN(), 3})
		Expect(mean).To(Equal(2.0))
		Expect(std).To(BeNumerically("~", math.Sqrt(2), 1e-12))
		Expect(count).To(Equal(2))
	})

	It("reports an undefined spread for a single value", func() {
		mean, std, count := meanStd([]float64{7})
		Expect(mean).To(Equal(7.0))
		Expect(math.IsNaN(std)).To(BeTrue())
		Expect(count).To(Equal(1))
	})
})
