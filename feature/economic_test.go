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

func obs(seriesID string, eventDate time.Time, value float64) *data.EconomicObservation {
	return &data.EconomicObservation{SeriesID: seriesID, EventDate: eventDate, Value: value}
}

var _ = Describe("refineSeries", func() {
	It("passes rate series through at their own dates", func() {
		out := refineSeries("FEDFUNDS", []*data.EconomicObservation{
			obs("FEDFUNDS", day(2024, 1, 1), 5.25),
			obs("FEDFUNDS", day(2024, 2, 1), 5.50),
		})

		Expect(out.Columns()).To(Equal([]string{"FEDFUNDS"}))
		Expect(out.Len()).To(Equal(2))
		Expect(out.At(data.DateKey(day(2024, 1, 1)), "FEDFUNDS")).To(Equal(5.25))
	})

	It("converts level series to log changes", func() {
		out := refineSeries("GDP", []*data.EconomicObservation{
			obs("GDP", day(2024, 1, 1), 100),
			obs("GDP", day(2024, 4, 1), 110),
		})

		Expect(out.Columns()).To(Equal([]string{"LOG_CHANGE(GDP)"}))
		Expect(out.Len()).To(Equal(1))
		Expect(out.At(data.DateKey(day(2024, 4, 1)), "LOG_CHANGE(GDP)")).
			To(BeNumerically("~", math.Log(1.1), 1e-12))
	})

	It("refines a single level observation to nothing", func() {
		out := refineSeries("GDP", []*data.EconomicObservation{
			obs("GDP", day(2024, 1, 1), 100),
		})
		Expect(out.Len()).To(BeZero())
	})
})

var _ = Describe("align", func() {
	It("forward-fills less frequent series onto the union of dates", func() {
		daily := refineSeries("FEDFUNDS", []*data.EconomicObservation{
			obs("FEDFUNDS", day(2024, 1, 1), 5.25),
			obs("FEDFUNDS", day(2024, 1, 2), 5.25),
			obs("FEDFUNDS", day(2024, 1, 3), 5.50),
		})
		monthly := refineSeries("UNRATE", []*data.EconomicObservation{
			obs("UNRATE", day(2024, 1, 1), 3.7),
		})

		out := align([]*data.Table{daily, monthly})

		Expect(out.Len()).To(Equal(3))
		Expect(out.At(data.DateKey(day(2024, 1, 3)), "UNRATE")).To(Equal(3.7))
		Expect(out.At(data.DateKey(day(2024, 1, 3)), "FEDFUNDS")).To(Equal(5.50))
	})

	It("drops rows before every series has a value", func() {
		a := refineSeries("FEDFUNDS", []*data.EconomicObservation{
			obs("FEDFUNDS", day(2024, 1, 1), 5.25),
			obs("FEDFUNDS", day(2024, 1, 2), 5.25),
		})
		b := refineSeries("UNRATE", []*data.EconomicObservation{
			obs("UNRATE", day(2024, 1, 2), 3.7),
		})

		out := align([]*data.Table{a, b})

		Expect(out.Len()).To(Equal(1))
		Expect(out.Index()).To(Equal([]data.TimeKey{data.DateKey(day(2024, 1, 2))}))
	})
})
