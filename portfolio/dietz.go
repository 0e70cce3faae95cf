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

package portfolio

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MonthlyReturn is one month-over-month flow-adjusted return
type MonthlyReturn struct {
	Time   time.Time `json:"time"`
	Return float64   `json:"return"`
}

// ReturnSummary aggregates the NAV series into a single time-weighted return
// figure plus monthly distribution statistics
type ReturnSummary struct {
	ModifiedDietz           float64         `json:"modifiedDietz"`
	ModifiedDietzAnnualized float64         `json:"modifiedDietzAnnualized"`
	MeanMonthlyReturn       float64         `json:"meanMonthlyReturn"`
	StdDevMonthlyReturn     float64         `json:"stdDevMonthlyReturn"`
	BestMonth               *MonthlyReturn  `json:"bestMonth"`
	WorstMonth              *MonthlyReturn  `json:"worstMonth"`
	MonthlyReturns          []MonthlyReturn `json:"monthlyReturns"`
}

// ModifiedDietz computes the time-weighted return over the full measurement
// period, weighting each external flow by the fraction of the period it was
// invested.
func (series *NAVSeries) ModifiedDietz(flows []CashFlow) (float64, error) {
	n := len(series.Measurements)
	if n < 2 {
		return math.NaN(), ErrNoMeasurements
	}

	start := series.Measurements[0].Time
	end := series.Measurements[n-1].Time
	totalDays := end.Sub(start).Hours() / 24
	if totalDays <= 0 {
		return math.NaN(), ErrZeroPeriod
	}

	bmv := series.Measurements[0].Value
	emv := series.Measurements[n-1].Value

	var netFlow, weightedFlow float64
	for _, flow := range flows {
		if !flow.Date.After(start) || flow.Date.After(end) {
			continue
		}
		weight := (totalDays - flow.Date.Sub(start).Hours()/24) / totalDays
		netFlow += flow.Amount
		weightedFlow += weight * flow.Amount
	}

	denominator := bmv + weightedFlow
	if math.Abs(denominator) < 1.0e-9 {
		return math.NaN(), ErrZeroPeriod
	}

	return (emv - bmv - netFlow) / denominator, nil
}

// ModifiedDietzAnnualized geometrically annualizes the period return when
// the period spans more than one year
func (series *NAVSeries) ModifiedDietzAnnualized(flows []CashFlow) (float64, error) {
	periodReturn, err := series.ModifiedDietz(flows)
	if err != nil {
		return math.NaN(), err
	}

	n := len(series.Measurements)
	years := series.Measurements[n-1].Time.Sub(series.Measurements[0].Time).Hours() / (24 * 365.25)
	if years <= 1 {
		return periodReturn, nil
	}

	return math.Pow(1+periodReturn, 1/years) - 1, nil
}

// MonthlyReturns computes the flow-adjusted month-over-month return series
func (series *NAVSeries) MonthlyReturns(flows []CashFlow) []MonthlyReturn {
	n := len(series.Measurements)
	if n < 2 {
		return nil
	}

	returns := make([]MonthlyReturn, 0, n-1)
	for ii, jj := 0, 1; jj < n; ii, jj = ii+1, jj+1 {
		s := series.Measurements[ii]
		e := series.Measurements[jj]

		var netFlow float64
		for _, flow := range flows {
			if flow.Date.After(s.Time) && !flow.Date.After(e.Time) {
				netFlow += flow.Amount
			}
		}

		if math.Abs(s.Value) < 1.0e-9 {
			continue
		}

		returns = append(returns, MonthlyReturn{
			Time:   e.Time,
			Return: (e.Value-netFlow)/s.Value - 1,
		})
	}

	return returns
}

// Summarize computes the Modified-Dietz figure and monthly distribution
// statistics for the series
func (series *NAVSeries) Summarize(flows []CashFlow) (*ReturnSummary, error) {
	dietz, err := series.ModifiedDietz(flows)
	if err != nil {
		return nil, err
	}
	annualized, err := series.ModifiedDietzAnnualized(flows)
	if err != nil {
		return nil, err
	}

	monthly := series.MonthlyReturns(flows)
	summary := &ReturnSummary{
		ModifiedDietz:           dietz,
		ModifiedDietzAnnualized: annualized,
		MeanMonthlyReturn:       math.NaN(),
		StdDevMonthlyReturn:     math.NaN(),
		MonthlyReturns:          monthly,
	}

	if len(monthly) == 0 {
		return summary, nil
	}

	values := make([]float64, len(monthly))
	best := &monthly[0]
	worst := &monthly[0]
	for idx := range monthly {
		values[idx] = monthly[idx].Return
		if monthly[idx].Return > best.Return {
			best = &monthly[idx]
		}
		if monthly[idx].Return < worst.Return {
			worst = &monthly[idx]
		}
	}

	summary.MeanMonthlyReturn = stat.Mean(values, nil)
	if len(values) > 1 {
		summary.StdDevMonthlyReturn = stat.StdDev(values, nil)
	}
	summary.BestMonth = best
	summary.WorstMonth = worst

	return summary, nil
}
