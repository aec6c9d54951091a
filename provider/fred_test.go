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
	"time"

	"github.com/go-resty/resty/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FRED", func() {
	var server *httptest.Server

	AfterEach(func() {
		if server != nil {
			server.Close()
			server = nil
		}
	})

	newClient := func() *FRED {
		return &FRED{
			apiKey:  "test",
			baseURL: server.URL,
			limiter: newLimiter(0),
			client:  resty.New(),
		}
	}

	It("requires an api key", func() {
		_, err := NewFRED("", 120)
		Expect(err).To(MatchError(ErrConfig))
	})

	It("decodes observations and skips empty readings", func() {
		server = jsonServer(200, `{
			"count": 3,
			"observations": [
				{"date": "2024-01-01", "value": "3.7"},
				{"date": "2024-02-01", "value": "."},
				{"date": "2024-03-01", "value": "3.8"}
			]
		}`)

		observations, err := newClient().SeriesObservations(context.Background(), "UNRATE", time.Time{}, time.Time{})
		Expect(err).ToNot(HaveOccurred())
		Expect(observations).To(HaveLen(2))
		Expect(observations[0].SeriesID).To(Equal("UNRATE"))
		Expect(observations[0].EventDate).To(Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
		Expect(observations[0].Value).To(Equal(3.7))
		Expect(observations[1].Value).To(Equal(3.8))
	})

	It("reports non-2xx responses", func() {
		server = jsonServer(429, `{}`)

		_, err := newClient().SeriesObservations(context.Background(), "UNRATE", time.Time{}, time.Time{})
		Expect(err).To(MatchError(ErrInvalidStatusCode))
	})
})
