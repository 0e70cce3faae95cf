// Copyright 2021-2023
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
	"context"
	"net/http"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/henrysouchien/portfolio-risk-engine/data"
)

var _ = Describe("Tiingo", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		httpmock.Activate()
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	It("returns the latest close on or before the requested date", func() {
		httpmock.RegisterResponder("GET", `=~^https://api\.tiingo\.com/tiingo/daily/MSFT/prices`,
			httpmock.NewStringResponder(200, `[
				{"date": "2021-03-30T00:00:00.000Z", "close": 231.85, "adjClose": 231.85},
				{"date": "2021-03-31T00:00:00.000Z", "close": 235.77, "adjClose": 235.77}
			]`))

		provider := data.NewTiingo("test-token")
		price, asOf, err := provider.CloseOnOrBefore(ctx, "MSFT", time.Date(2021, time.April, 2, 0, 0, 0, 0, time.UTC))
		Expect(err).NotTo(HaveOccurred())
		Expect(price).To(Equal(235.77))
		Expect(asOf.Format("2006-01-02")).To(Equal("2021-03-31"))
	})

	It("returns ErrNoData when the provider has no rows", func() {
		httpmock.RegisterResponder("GET", `=~^https://api\.tiingo\.com/tiingo/daily/ZZZZ/prices`,
			httpmock.NewStringResponder(200, `[]`))

		provider := data.NewTiingo("test-token")
		_, _, err := provider.CloseOnOrBefore(ctx, "ZZZZ", time.Now())
		Expect(err).To(MatchError(data.ErrNoData))
	})

	It("returns ErrProviderFailure on an http error status", func() {
		httpmock.RegisterResponder("GET", `=~^https://api\.tiingo\.com/tiingo/daily/MSFT/prices`,
			httpmock.NewStringResponder(http.StatusTooManyRequests, `{"detail": "rate limited"}`))

		provider := data.NewTiingo("test-token")
		_, _, err := provider.CloseOnOrBefore(ctx, "MSFT", time.Now())
		Expect(err).To(MatchError(data.ErrProviderFailure))
	})
})
