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
	"math"
	"net/http/httptest"
	"time"

	"github.com/go-resty/resty/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("YFinance", func() {
	var server *httptest.Server

	AfterEach(func() {
		server.Close()
	})

	newClient := func() *YFinance {
		return &YFinance{
			baseURL: server.URL,
			limiter: newLimiter(0),
			client:  resty.New(),
		}
	}

	It("decodes daily quotes with nulls as missing values", func() {
		// 2024-01-02 and 2024-01-03 market opens, UTC
		server = jsonServer(200, `{
			"chart": {
				"result": [{
					"meta": {"currency": "USD", "symbol": "AAPL"},
					"timestamp": [1704207600, 1704294000],
					"indicators": {
						"quote": [{
							"open":   [185.0, 184.2],
							"high":   [186.0, 185.9],
							"low":    [183.9, 183.4],
							"close":  [185.6, null],
							"volume": [82488700, 58414500]
						}]
					}
				}],
				"error": null
			}
		}`)

		quotes, err := newClient().DailyQuotes(context.Background(), "AAPL", time.Time{}, time.Time{})
		Expect(err).ToNot(HaveOccurred())
		Expect(quotes).To(HaveLen(2))
		Expect(quotes[0].Ticker).To(Equal("AAPL"))
		Expect(quotes[0].EventDate).To(Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
		Expect(quotes[0].Close).To(Equal(185.6))
		Expect(math.IsNaN(quotes[1].Close)).To(BeTrue())
		Expect(quotes[1].Volume).To(Equal(58414500.0))
	})

	It("returns no rows for an empty chart", func() {
		server = jsonServer(200, `{"chart": {"result": [], "error": null}}`)

		quotes, err := newClient().DailyQuotes(context.Background(), "ZZZZ", time.Time{}, time.Time{})
		Expect(err).ToNot(HaveOccurred())
		Expect(quotes).To(BeEmpty())
	})

	It("surfaces chart errors as fetch failures", func() {
		server = jsonServer(200, `{
			"chart": {
				"result": null,
				"error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}
			}
		}`)

		_, err := newClient().DailyQuotes(context.Background(), "GONE", time.Time{}, time.Time{})
		Expect(err).To(MatchError(ErrInvalidStatusCode))
	})
})
