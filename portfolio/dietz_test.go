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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/henrysouchien/portfolio-risk-engine/portfolio"
)

func measurement(dt time.Time, value float64) *portfolio.NAVMeasurement {
	return &portfolio.NAVMeasurement{
		Time:  dt,
		Value: value,
	}
}

var _ = Describe("ModifiedDietz", func() {
	var t0 time.Time

	BeforeEach(func() {
		t0 = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	})

	Context("with no external flows", func() {
		It("equals the simple return", func() {
			series := &portfolio.NAVSeries{
				Measurements: []*portfolio.NAVMeasurement{
					measurement(t0, 1000),
					measurement(t0.AddDate(0, 6, 0), 1100),
				},
			}

			r, err := series.ModifiedDietz(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(BeNumerically("~", 0.1, 1.0e-9))
		})
	})

	Context("with a mid-period deposit", func() {
		It("weights the flow by the fraction of the period invested", func() {
			// 364 day period with a 100 deposit exactly half way through
			end := t0.AddDate(0, 0, 364)
			flowDate := t0.AddDate(0, 0, 182)
			series := &portfolio.NAVSeries{
				Measurements: []*portfolio.NAVMeasurement{
					measurement(t0, 1000),
					measurement(end, 1200),
				},
			}
			flows := []portfolio.CashFlow{{Date: flowDate, Amount: 100}}

			// (1200 - 1000 - 100) / (1000 + 0.5*100)
			r, err := series.ModifiedDietz(flows)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(BeNumerically("~", 100.0/1050.0, 1.0e-9))
		})

		It("ignores flows outside the measurement period", func() {
			end := t0.AddDate(0, 6, 0)
			series := &portfolio.NAVSeries{
				Measurements: []*portfolio.NAVMeasurement{
					measurement(t0, 1000),
					measurement(end, 1100),
				},
			}
			flows := []portfolio.CashFlow{
				{Date: t0.AddDate(0, 0, -30), Amount: 500},
				{Date: end.AddDate(0, 0, 30), Amount: 500},
			}

			r, err := series.ModifiedDietz(flows)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(BeNumerically("~", 0.1, 1.0e-9))
		})
	})

	Context("annualization", func() {
		It("returns the period figure unchanged for periods up to a year", func() {
			series := &portfolio.NAVSeries{
				Measurements: []*portfolio.NAVMeasurement{
					measurement(t0, 1000),
					measurement(t0.AddDate(0, 6, 0), 1100),
				},
			}

			r, err := series.ModifiedDietzAnnualized(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(BeNumerically("~", 0.1, 1.0e-9))
		})

		It("geometrically annualizes multi-year periods", func() {
			series := &portfolio.NAVSeries{
				Measurements: []*portfolio.NAVMeasurement{
					measurement(t0, 1000),
					measurement(t0.AddDate(2, 0, 0), 1210),
				},
			}

			// two years at 21 percent total is just under 10 percent a year
			r, err := series.ModifiedDietzAnnualized(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(BeNumerically("~", 0.1, 1.0e-3))
		})
	})

	Context("degenerate series", func() {
		It("errors with fewer than two measurements", func() {
			series := &portfolio.NAVSeries{
				Measurements: []*portfolio.NAVMeasurement{measurement(t0, 1000)},
			}
			_, err := series.ModifiedDietz(nil)
			Expect(err).To(MatchError(portfolio.ErrNoMeasurements))
		})
	})
})

var _ = Describe("Summarize", func() {
	var t0 time.Time

	BeforeEach(func() {
		t0 = time.Date(2021, time.January, 31, 0, 0, 0, 0, time.UTC)
	})

	It("computes monthly distribution statistics", func() {
		series := &portfolio.NAVSeries{
			Measurements: []*portfolio.NAVMeasurement{
				measurement(t0, 1000),
				measurement(t0.AddDate(0, 1, 0), 1100),
				measurement(t0.AddDate(0, 2, 0), 1045),
			},
		}

		summary, err := series.Summarize(nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(summary.MonthlyReturns).To(HaveLen(2))
		Expect(summary.MonthlyReturns[0].Return).To(BeNumerically("~", 0.1, 1.0e-9))
		Expect(summary.MonthlyReturns[1].Return).To(BeNumerically("~", -0.05, 1.0e-9))

		Expect(summary.MeanMonthlyReturn).To(BeNumerically("~", 0.025, 1.0e-9))
		Expect(summary.StdDevMonthlyReturn).To(BeNumerically("~", 0.10606601717798213, 1.0e-9))
		Expect(summary.BestMonth.Return).To(BeNumerically("~", 0.1, 1.0e-9))
		Expect(summary.WorstMonth.Return).To(BeNumerically("~", -0.05, 1.0e-9))
	})

	It("adjusts monthly returns for external flows", func() {
		series := &portfolio.NAVSeries{
			Measurements: []*portfolio.NAVMeasurement{
				measurement(t0, 1000),
				measurement(t0.AddDate(0, 1, 0), 1600),
			},
		}
		flows := []portfolio.CashFlow{
			{Date: t0.AddDate(0, 0, 14), Amount: 500},
		}

		summary, err := series.Summarize(flows)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.MonthlyReturns).To(HaveLen(1))
		Expect(summary.MonthlyReturns[0].Return).To(BeNumerically("~", 0.1, 1.0e-9))
	})
})
