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
package data_test

import (
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/quantmill/qfdata/data"
)

var errTest = errors.New("fetch failed")

func day(yyyy int, mm time.Month, dd int) time.Time {
	return time.Date(yyyy, mm, dd, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("TimeKey", func() {
	It("orders date-indexed keys by date", func() {
		a := data.DateKey(day(2024, 1, 2))
		b := data.DateKey(day(2024, 1, 3))
		Expect(a.Compare(b)).To(Equal(-1))
		Expect(b.After(a)).To(BeTrue())
	})

	It("orders fiscal keys coarse component first", func() {
		// a later filing of an earlier fiscal period still sorts before a
		// later fiscal period
		a := data.FiscalKey(2023, "Q3", day(2024, 6, 1))
		b := data.FiscalKey(2024, "Q1", day(2024, 2, 1))
		Expect(a.Compare(b)).To(Equal(-1))

		c := data.FiscalKey(2024, "Q1", day(2024, 2, 15))
		Expect(b.Compare(c)).To(Equal(-1))
	})
})

var _ = Describe("Table", func() {
	var table *data.Table

	BeforeEach(func() {
		table = data.NewTable("close", "volume")
	})

	It("defaults missing cells to NaN", func() {
		table.Set(data.DateKey(day(2024, 1, 2)), "close", 10)
		Expect(math.IsNaN(table.At(data.DateKey(day(2024, 1, 2)), "volume"))).To(BeTrue())
	})

	It("overwrites values sharing a time key", func() {
		key := data.DateKey(day(2024, 1, 2))
		table.Set(key, "close", 10)
		table.Set(key, "close", 11)
		Expect(table.Len()).To(Equal(1))
		Expect(table.At(key, "close")).To(Equal(11.0))
	})

	It("sorts rows ascending by time key", func() {
		table.Set(data.DateKey(day(2024, 1, 3)), "close", 2)
		table.Set(data.DateKey(day(2024, 1, 1)), "close", 1)
		table.Set(data.DateKey(day(2024, 1, 2)), "close", 3)

		table.Sort()

		Expect(table.Index()).To(Equal([]data.TimeKey{
			data.DateKey(day(2024, 1, 1)),
			data.DateKey(day(2024, 1, 2)),
			data.DateKey(day(2024, 1, 3)),
		}))
		Expect(table.Column("close")).To(Equal([]float64{1, 3, 2}))
	})

	It("drops rows holding a NaN in any column", func() {
		table.Set(data.DateKey(day(2024, 1, 1)), "close", 1)
		table.Set(data.DateKey(day(2024, 1, 1)), "volume", 100)
		table.Set(data.DateKey(day(2024, 1, 2)), "close", 2)

		out := table.DropNaNRows()
		Expect(out.Len()).To(Equal(1))
		Expect(out.Index()).To(Equal([]data.TimeKey{data.DateKey(day(2024, 1, 1))}))
	})

	It("copies without sharing storage", func() {
		key := data.DateKey(day(2024, 1, 2))
		table.Set(key, "close", 10)

		copied := table.Copy()
		copied.Set(key, "close", 99)
		copied.Set(data.DateKey(day(2024, 1, 3)), "close", 1)

		Expect(table.Len()).To(Equal(1))
		Expect(table.At(key, "close")).To(Equal(10.0))
	})

	It("round-trips through melt and pivot", func() {
		table.Set(data.DateKey(day(2024, 1, 1)), "close", 1)
		table.Set(data.DateKey(day(2024, 1, 1)), "volume", 100)
		table.Set(data.DateKey(day(2024, 1, 2)), "close", 2)
		table.Set(data.DateKey(day(2024, 1, 2)), "volume", 200)
		table.Sort()

		rows := table.Melt("AAPL")
		Expect(rows).To(HaveLen(4))
		for _, row := range rows {
			Expect(row.Entity).To(Equal("AAPL"))
		}

		back := data.Pivot(rows)
		Expect(back.Len()).To(Equal(2))
		Expect(back.At(data.DateKey(day(2024, 1, 2)), "volume")).To(Equal(200.0))
	})
})

var _ = Describe("RunReport", func() {
	It("aggregates per-entity outcomes", func() {
		report := data.NewRunReport("FRED", "economic-series")
		report.Installed("GDP", 100)
		report.Skipped("UNRATE", "no rows to install")
		report.Failed("CPIAUCNS", errTest)
		report.Finish()

		Expect(report.TotalRows()).To(Equal(100))
		Expect(report.NumFailed()).To(Equal(1))
		Expect(report.Outcomes).To(HaveLen(3))
		Expect(report.EndTime).ToNot(BeZero())
	})
})
