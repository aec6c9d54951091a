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
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/go-resty/resty/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SEC", func() {
	newClient := func(server *httptest.Server) *SEC {
		return &SEC{
			userAgent:      "test test@example.com",
			tickersURL:     server.URL,
			submissionsURL: server.URL,
			conceptURL:     server.URL,
			limiter:        newLimiter(0),
			client:         resty.New(),
			cikMap:         haxmap.New[string, string](),
		}
	}

	It("requires a user agent", func() {
		_, err := NewSEC("", 10)
		Expect(err).To(MatchError(ErrConfig))
	})

	Describe("CIKForTicker", func() {
		It("zero-pads CIKs and caches the ticker map", func() {
			var requests int64
			server := httptest.NewServer(countingHandler(&requests, 200,
				`{"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}}`))
			defer server.Close()

			sec := newClient(server)

			cik, err := sec.CIKForTicker(context.Background(), "aapl")
			Expect(err).ToNot(HaveOccurred())
			Expect(cik).To(Equal("0000320193"))

			// second lookup hits the cache, not EDGAR
			cik, err = sec.CIKForTicker(context.Background(), "AAPL")
			Expect(err).ToNot(HaveOccurred())
			Expect(cik).To(Equal("0000320193"))
			Expect(atomic.LoadInt64(&requests)).To(Equal(int64(1)))
		})

		It("errors on unknown tickers", func() {
			server := jsonServer(200,
				`{"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}}`)
			defer server.Close()

			_, err := newClient(server).CIKForTicker(context.Background(), "ZZZZ")
			Expect(err).To(MatchError(ContainSubstring("no CIK found")))
		})
	})

	Describe("CompanyConcept", func() {
		It("decodes facts and skips frame-only entries", func() {
			server := jsonServer(200, `{
				"cik": 320193,
				"taxonomy": "us-gaap",
				"tag": "NetIncomeLoss",
				"units": {
					"USD": [
						{"end": "2023-04-01", "val": 24160000000, "accn": "0000320193-23-000064",
						 "fy": 2023, "fp": "Q2", "form": "10-Q", "filed": "2023-05-05"},
						{"end": "2023-04-01", "val": 24160000000, "accn": "frame",
						 "fy": 0, "fp": "", "form": "", "filed": "", "frame": "CY2023Q1"}
					]
				}
			}`)
			defer server.Close()

			facts, err := newClient(server).CompanyConcept(context.Background(),
				"0000320193", "us-gaap", "NetIncomeLoss", "USD")
			Expect(err).ToNot(HaveOccurred())
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].CIK).To(Equal("0000320193"))
			Expect(facts[0].Tag).To(Equal("NetIncomeLoss"))
			Expect(facts[0].FiscalYear).To(Equal(2023))
			Expect(facts[0].FiscalPeriod).To(Equal("Q2"))
			Expect(facts[0].Filed).To(Equal(time.Date(2023, 5, 5, 0, 0, 0, 0, time.UTC)))
			Expect(facts[0].Value).To(Equal(24160000000.0))
		})

		It("treats 404 as a tag the company never reported", func() {
			server := jsonServer(404, `{}`)
			defer server.Close()

			facts, err := newClient(server).CompanyConcept(context.Background(),
				"0000320193", "us-gaap", "InventoryNet", "USD")
			Expect(err).ToNot(HaveOccurred())
			Expect(facts).To(BeEmpty())
		})
	})
})
