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

package portfolio_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/henrysouchien/portfolio-risk-engine/common"
	"github.com/henrysouchien/portfolio-risk-engine/data"
	"github.com/henrysouchien/portfolio-risk-engine/portfolio"
)

var errNoQuote = errors.New("no quote")

// stubPriceSource lets each test script the price degradation chain
type stubPriceSource struct {
	price           func(ticker string, date time.Time) (float64, error)
	priceOnOrBefore func(ticker string, date time.Time) (float64, time.Time, error)
}

func (stub *stubPriceSource) Price(_ context.Context, ticker string, _ string, date time.Time) (float64, error) {
	return stub.price(ticker, date)
}

func (stub *stubPriceSource) PriceOnOrBefore(_ context.Context, ticker string, _ string, date time.Time) (float64, time.Time, error) {
	return stub.priceOnOrBefore(ticker, date)
}

var _ = Describe("ComputeNAVSeries", func() {
	var (
		ctx       context.Context
		tz        *time.Location
		inception time.Time
		through   time.Time
		prices    *stubPriceSource
	)

	BeforeEach(func() {
		ctx = context.Background()
		tz = common.GetTimezone()
		inception = time.Date(2021, time.January, 1, 0, 0, 0, 0, tz)
		through = data.MonthEnd(time.Date(2021, time.April, 1, 0, 0, 0, 0, tz))

		prices = &stubPriceSource{
			price: func(_ string, _ time.Time) (float64, error) {
				return 100, nil
			},
			priceOnOrBefore: func(_ string, date time.Time) (float64, time.Time, error) {
				return 100, date, nil
			},
		}
	})

	buildLong := func(shares float64, tradeDate time.Time) *portfolio.Timeline {
		tl, err := portfolio.BuildTimeline(ctx, []*portfolio.Transaction{
			{
				Ticker:         "MSFT",
				Currency:       "USD",
				Kind:           portfolio.BuyTransaction,
				Date:           tradeDate,
				Shares:         shares,
				InstrumentType: portfolio.InstrumentEquity,
			},
		}, nil, nil, inception)
		Expect(err).NotTo(HaveOccurred())
		return tl
	}

	It("values each monthly boundary at quantity times price", func() {
		tl := buildLong(10, time.Date(2021, time.February, 1, 0, 0, 0, 0, tz))

		series, err := portfolio.ComputeNAVSeries(ctx, tl, nil, prices, inception, through)
		Expect(err).NotTo(HaveOccurred())
		Expect(series.Measurements).To(HaveLen(4))

		// january boundary precedes the buy
		Expect(series.Measurements[0].SecuritiesValue).To(Equal(0.0))
		Expect(series.Measurements[1].SecuritiesValue).To(Equal(1000.0))
		Expect(series.Measurements[3].Value).To(Equal(1000.0))
	})

	It("inverts the sign of short positions", func() {
		tl, err := portfolio.BuildTimeline(ctx, []*portfolio.Transaction{
			{
				Ticker:         "TSLA",
				Currency:       "USD",
				Kind:           portfolio.ShortTransaction,
				Date:           time.Date(2021, time.February, 1, 0, 0, 0, 0, tz),
				Shares:         5,
				InstrumentType: portfolio.InstrumentEquity,
			},
		}, nil, nil, inception)
		Expect(err).NotTo(HaveOccurred())

		series, err := portfolio.ComputeNAVSeries(ctx, tl, nil, prices, inception, through)
		Expect(err).NotTo(HaveOccurred())
		Expect(series.Measurements[1].SecuritiesValue).To(Equal(-500.0))
	})

	It("adds the cash ledger balance to each measurement", func() {
		tl := buildLong(10, time.Date(2021, time.February, 1, 0, 0, 0, 0, tz))
		flows := []portfolio.CashFlow{
			{Date: time.Date(2021, time.February, 15, 0, 0, 0, 0, tz), Amount: 2500},
			{Date: time.Date(2021, time.March, 15, 0, 0, 0, 0, tz), Amount: -500},
		}

		series, err := portfolio.ComputeNAVSeries(ctx, tl, flows, prices, inception, through)
		Expect(err).NotTo(HaveOccurred())

		Expect(series.Measurements[0].Cash).To(Equal(0.0))
		Expect(series.Measurements[1].Cash).To(Equal(2500.0))
		Expect(series.Measurements[2].Cash).To(Equal(2000.0))
		Expect(series.Measurements[2].Value).To(Equal(3000.0))
	})

	It("falls back to the last known price with a warning", func() {
		tl := buildLong(10, time.Date(2021, time.February, 1, 0, 0, 0, 0, tz))
		staleDate := time.Date(2021, time.February, 24, 0, 0, 0, 0, tz)
		prices.price = func(_ string, _ time.Time) (float64, error) {
			return 0, errNoQuote
		}
		prices.priceOnOrBefore = func(_ string, _ time.Time) (float64, time.Time, error) {
			return 95, staleDate, nil
		}

		series, err := portfolio.ComputeNAVSeries(ctx, tl, nil, prices, inception, through)
		Expect(err).NotTo(HaveOccurred())
		Expect(series.Measurements[1].SecuritiesValue).To(Equal(950.0))
		Expect(series.Warnings).To(ContainElement(ContainSubstring("Using stale price for MSFT")))
	})

	It("values the position at zero when no price exists at all", func() {
		tl := buildLong(10, time.Date(2021, time.February, 1, 0, 0, 0, 0, tz))
		prices.price = func(_ string, _ time.Time) (float64, error) {
			return 0, errNoQuote
		}
		prices.priceOnOrBefore = func(_ string, _ time.Time) (float64, time.Time, error) {
			return 0, time.Time{}, errNoQuote
		}

		series, err := portfolio.ComputeNAVSeries(ctx, tl, nil, prices, inception, through)
		Expect(err).NotTo(HaveOccurred())
		Expect(series.Measurements[1].SecuritiesValue).To(Equal(0.0))
		Expect(series.Warnings).To(ContainElement(ContainSubstring("No price available for MSFT")))
	})

	It("skips pricing for keys with no open quantity", func() {
		var calls int
		prices.price = func(_ string, _ time.Time) (float64, error) {
			calls++
			return 100, nil
		}

		tl, err := portfolio.BuildTimeline(ctx, []*portfolio.Transaction{
			{
				Ticker:         "MSFT",
				Currency:       "USD",
				Kind:           portfolio.BuyTransaction,
				Date:           time.Date(2021, time.January, 5, 0, 0, 0, 0, tz),
				Shares:         10,
				InstrumentType: portfolio.InstrumentEquity,
			},
			{
				Ticker:         "MSFT",
				Currency:       "USD",
				Kind:           portfolio.SellTransaction,
				Date:           time.Date(2021, time.January, 10, 0, 0, 0, 0, tz),
				Shares:         10,
				InstrumentType: portfolio.InstrumentEquity,
			},
		}, nil, nil, inception)
		Expect(err).NotTo(HaveOccurred())

		_, err = portfolio.ComputeNAVSeries(ctx, tl, nil, prices, inception, through)
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(0))
	})

	It("requires a price source", func() {
		tl := buildLong(10, time.Date(2021, time.February, 1, 0, 0, 0, 0, tz))
		_, err := portfolio.ComputeNAVSeries(ctx, tl, nil, nil, inception, through)
		Expect(err).To(MatchError(portfolio.ErrNoPriceSource))
	})

	It("rejects an inverted valuation period", func() {
		tl := buildLong(10, time.Date(2021, time.February, 1, 0, 0, 0, 0, tz))
		_, err := portfolio.ComputeNAVSeries(ctx, tl, nil, prices, through, inception)
		Expect(err).To(MatchError(portfolio.ErrTimeInverted))
	})
})
