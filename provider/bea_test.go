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
package provider

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BEA", func() {
	It("requires an api key", func() {
		_, err := NewBEA("", 10)
		Expect(err).To(MatchError(ErrConfig))
	})

	Describe("parseBEAPeriod", func() {
		It("maps periods onto the first date of the period", func() {
			annual, err := parseBEAPeriod("2023")
			Expect(err).ToNot(HaveOccurred())
			Expect(annual).To(Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))

			quarterly, err := parseBEAPeriod("2023Q3")
			Expect(err).ToNot(HaveOccurred())
			Expect(quarterly).To(Equal(time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)))

			monthly, err := parseBEAPeriod("2023M07")
			Expect(err).ToNot(HaveOccurred())
			Expect(monthly).To(Equal(time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)))
		})

		It("rejects unparseable periods", func() {
			_, err := parseBEAPeriod("latest")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("TableObservations", func() {
		It("namespaces series under their table and strips thousand separators", func() {
			server := jsonServer(200, `{
				"BEAAPI": {
					"Results": {
						"Data": [
							{"TableName": "T10105", "SeriesCode": "A191RC",
							 "TimePeriod": "2023Q1", "DataValue": "26,813,601"},
							{"TableName": "T10105", "SeriesCode": "A191RC",
							 "TimePeriod": "junk", "DataValue": "1"}
						]
					}
				}
			}`)
			defer server.Close()

			bea := &BEA{
				apiKey:  "test",
				baseURL: server.URL,
				limiter: newLimiter(0),
				client:  resty.New(),
			}

			observations, err := bea.TableObservations(context.Background(), "T10105", "Q", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(observations).To(HaveLen(1))
			Expect(observations[0].SeriesID).To(Equal("T10105/A191RC"))
			Expect(observations[0].EventDate).To(Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
			Expect(observations[0].Value).To(Equal(26813601.0))
		})
	})
})
