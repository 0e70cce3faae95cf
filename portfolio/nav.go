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
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/henrysouchien/portfolio-risk-engine/data"
	"github.com/henrysouchien/portfolio-risk-engine/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// PriceSource supplies month-end prices for valuation. data.Manager is the
// production implementation.
type PriceSource interface {
	// Price returns the close price for the security on the given date
	Price(ctx context.Context, ticker string, currency string, date time.Time) (float64, error)

	// PriceOnOrBefore returns the latest close price on or before the given
	// date along with the date it was observed
	PriceOnOrBefore(ctx context.Context, ticker string, currency string, date time.Time) (float64, time.Time, error)
}

// CashFlow is an external deposit (positive) or withdrawal (negative)
type CashFlow struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// NAVMeasurement is the value of the full portfolio at one monthly boundary
type NAVMeasurement struct {
	Time            time.Time `json:"time"`
	SecuritiesValue float64   `json:"securitiesValue"`
	Cash            float64   `json:"cash"`
	Value           float64   `json:"value"`
}

// NAVSeries is the monthly valuation walk over a reconciled timeline
type NAVSeries struct {
	Measurements []*NAVMeasurement `json:"measurements"`
	Warnings     []string          `json:"warnings"`

	inception time.Time
	through   time.Time
}

// ComputeNAVSeries walks the timeline month by month, valuing each position
// key at the monthly boundary and adding the cash ledger balance. Missing
// prices degrade to the last known price, then to zero, with warnings; the
// walk never aborts on missing data.
func ComputeNAVSeries(ctx context.Context, tl *Timeline, flows []CashFlow, prices PriceSource, inception, through time.Time) (*NAVSeries, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "ComputeNAVSeries")
	defer span.End()

	span.SetAttributes(
		attribute.String("Inception", inception.Format("2006-01-02")),
		attribute.String("Through", through.Format("2006-01-02")),
	)

	if prices == nil {
		return nil, ErrNoPriceSource
	}
	if through.Before(inception) {
		log.Error().Stack().Time("Inception", inception).Time("Through", through).Msg("valuation period is inverted")
		return nil, ErrTimeInverted
	}

	series := &NAVSeries{
		Measurements: make([]*NAVMeasurement, 0, 120),
		Warnings:     make([]string, 0, 10),
		inception:    inception,
		through:      through,
	}

	keys := make([]PositionKey, 0, len(tl.Events))
	for key := range tl.Events {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	orderedFlows := make([]CashFlow, len(flows))
	copy(orderedFlows, flows)
	sort.SliceStable(orderedFlows, func(i, j int) bool { return orderedFlows[i].Date.Before(orderedFlows[j].Date) })

	for _, boundary := range data.MonthEnds(inception, through) {
		securitiesValue := series.valueAt(ctx, tl, keys, prices, boundary)
		cash := cashBalanceAt(tl.CashSeed, orderedFlows, boundary)

		series.Measurements = append(series.Measurements, &NAVMeasurement{
			Time:            boundary,
			SecuritiesValue: securitiesValue,
			Cash:            cash,
			Value:           securitiesValue + cash,
		})
	}

	if len(series.Measurements) == 0 {
		return nil, ErrNoMeasurements
	}

	return series, nil
}

// valueAt prices every open position key at the boundary date
func (series *NAVSeries) valueAt(ctx context.Context, tl *Timeline, keys []PositionKey, prices PriceSource, boundary time.Time) float64 {
	var total float64

	for _, key := range keys {
		qty := tl.QuantityAt(key, boundary)
		if qty == 0 {
			continue
		}

		price := series.priceSafe(ctx, prices, key, boundary)

		value := qty * price
		if key.Direction == Short {
			value = -value
		}
		total += value
	}

	return total
}

// priceSafe resolves a price for the boundary date with the degradation
// chain: exact date, last known price, zero
func (series *NAVSeries) priceSafe(ctx context.Context, prices PriceSource, key PositionKey, boundary time.Time) float64 {
	subLog := log.With().Str("Ticker", key.Ticker).Str("Currency", key.Currency).Time("Date", boundary).Logger()

	price, err := prices.Price(ctx, key.Ticker, key.Currency, boundary)
	if err == nil && !math.IsNaN(price) {
		return price
	}

	price, asOf, err := prices.PriceOnOrBefore(ctx, key.Ticker, key.Currency, boundary)
	if err == nil && !math.IsNaN(price) {
		series.warnf("Using stale price for %s at %s (as of %s)", key.Ticker, boundary.Format("2006-01-02"), asOf.Format("2006-01-02"))
		subLog.Warn().Time("AsOf", asOf).Float64("Price", price).Msg("month-end price missing; using last known price")
		return price
	}

	series.warnf("No price available for %s at %s; valuing position at zero", key.Ticker, boundary.Format("2006-01-02"))
	subLog.Error().Stack().Err(err).Msg("no price available; valuing position at zero")
	return 0
}

func cashBalanceAt(seed float64, orderedFlows []CashFlow, dt time.Time) float64 {
	balance := seed
	for _, flow := range orderedFlows {
		if flow.Date.After(dt) {
			break
		}
		balance += flow.Amount
	}
	return balance
}

func (series *NAVSeries) warnf(format string, args ...interface{}) {
	series.Warnings = append(series.Warnings, fmt.Sprintf(format, args...))
}
