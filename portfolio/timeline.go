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

	"github.com/henrysouchien/portfolio-risk-engine/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// one tick separates a synthesized opening from the event it must precede
const tick = time.Second

const qtyEpsilon = 1.0e-9

// Timeline is the immutable result of one reconciliation run. Events holds
// one chronologically ordered ledger per position key; summing Quantity up to
// any date yields the quantity held at that date.
type Timeline struct {
	Events                       map[PositionKey][]PositionEvent `json:"events"`
	CashSeed                     float64                         `json:"cashSeed"`
	SyntheticEntries             []SyntheticEntry                `json:"syntheticEntries"`
	CurrentPositionSyntheticKeys map[PositionKey]bool            `json:"currentPositionSyntheticKeys"`
	Warnings                     []string                        `json:"warnings"`
}

// QuantityAt sums all deltas for key dated on or before dt
func (tl *Timeline) QuantityAt(key PositionKey, dt time.Time) float64 {
	var qty float64
	for _, event := range tl.Events[key] {
		if event.Date.After(dt) {
			break
		}
		qty += event.Quantity
	}
	if math.Abs(qty) < qtyEpsilon {
		return 0
	}
	return qty
}

// NetQuantity sums every delta for key over the full timeline
func (tl *Timeline) NetQuantity(key PositionKey) float64 {
	var qty float64
	for _, event := range tl.Events[key] {
		qty += event.Quantity
	}
	if math.Abs(qty) < qtyEpsilon {
		return 0
	}
	return qty
}

type filteredIncomplete struct {
	quantity float64
	sellDate time.Time
}

// TimelineBuilder accumulates position events for one reconciliation run. It
// holds no global state; create one per run via NewTimelineBuilder.
type TimelineBuilder struct {
	inception time.Time

	events   map[PositionKey][]PositionEvent
	exitQty  map[PositionKey]float64
	entryQty map[PositionKey]float64

	syntheticEntries    []SyntheticEntry
	currentPositionKeys map[PositionKey]bool
	filteredFutures     map[PositionKey][]filteredIncomplete
	warnings            []string
	cashSeed            float64
}

func NewTimelineBuilder(inception time.Time) *TimelineBuilder {
	return &TimelineBuilder{
		inception:           inception,
		events:              make(map[PositionKey][]PositionEvent),
		exitQty:             make(map[PositionKey]float64),
		entryQty:            make(map[PositionKey]float64),
		syntheticEntries:    make([]SyntheticEntry, 0, 10),
		currentPositionKeys: make(map[PositionKey]bool),
		filteredFutures:     make(map[PositionKey][]filteredIncomplete),
		warnings:            make([]string, 0, 10),
	}
}

// BuildTimeline reconciles transaction history, live holdings, and
// incomplete trades into one balanced ledger per position key. The result is
// a pure function of the four inputs; re-running on identical inputs yields
// identical output.
func BuildTimeline(ctx context.Context, transactions []*Transaction, currentPositions []*CurrentPosition, incompleteTrades []*IncompleteTrade, inception time.Time) (*Timeline, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "BuildTimeline")
	defer span.End()

	span.SetAttributes(
		attribute.Int("NumTransactions", len(transactions)),
		attribute.Int("NumCurrentPositions", len(currentPositions)),
		attribute.Int("NumIncompleteTrades", len(incompleteTrades)),
		attribute.String("Inception", inception.Format("2006-01-02")),
	)

	if inception.IsZero() {
		log.Error().Stack().Msg("timeline build requires an inception date")
		return nil, ErrInceptionRequired
	}

	builder := NewTimelineBuilder(inception)
	builder.ingestTransactions(transactions)
	builder.synthesizeCurrentHoldings(currentPositions)
	builder.classifyIncompleteTrades(incompleteTrades)
	builder.balanceFilteredFutures()

	return builder.snapshot(), nil
}

// ingestTransactions appends every real transaction's signed delta to its
// key's ledger and maintains the running exit/entry magnitude per key
func (b *TimelineBuilder) ingestTransactions(transactions []*Transaction) {
	ordered := make([]*Transaction, len(transactions))
	copy(ordered, transactions)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })

	for _, trx := range ordered {
		delta := trx.Delta()
		if delta == 0 {
			b.warnf("Skipped transaction with unrecognized kind %s for %s", trx.Kind, trx.Ticker)
			log.Warn().Stack().Str("Kind", trx.Kind).Str("Ticker", trx.Ticker).Time("Date", trx.Date).Msg("unrecognized transaction kind")
			continue
		}

		key := trx.Key()
		b.events[key] = append(b.events[key], PositionEvent{Date: trx.Date, Quantity: delta})
		if trx.IsClosing() {
			b.exitQty[key] += trx.Shares
		} else {
			b.entryQty[key] += trx.Shares
		}
	}
}

// synthesizeCurrentHoldings inserts a priced opening one tick before
// inception for every live holding the observed history does not fully
// account for. The opening is sized to the held quantity plus everything
// sold against the key so the ledger reproduces the live quantity at the end
// of the timeline.
func (b *TimelineBuilder) synthesizeCurrentHoldings(currentPositions []*CurrentPosition) {
	openDate := b.inception.Add(-tick)

	for _, pos := range currentPositions {
		if math.Abs(pos.Shares) < qtyEpsilon {
			continue
		}

		key := pos.Key()
		held := math.Abs(pos.Shares)

		// the observed entries may already cover the held quantity
		requiredEntryQty := held + b.exitQty[key] - b.entryQty[key]
		if requiredEntryQty < qtyEpsilon {
			continue
		}

		b.events[key] = append(b.events[key], PositionEvent{Date: openDate, Quantity: requiredEntryQty})
		b.currentPositionKeys[key] = true
		b.syntheticEntries = append(b.syntheticEntries, SyntheticEntry{
			Ticker:   pos.Ticker,
			Source:   SyntheticCurrentPosition,
			Quantity: requiredEntryQty,
			Date:     openDate,
		})

		log.Debug().Str("Ticker", pos.Ticker).Str("Key", key.String()).Float64("RequiredEntryQty", requiredEntryQty).Msg("synthesized current-holding opening")
	}
}

// classifyIncompleteTrades inserts a priced synthetic opening for non-futures
// incomplete trades and records futures incomplete trades for ledger-only
// balancing. Futures are daily-settled and carry no persistent position
// value, so an inferred futures opening must never be priced.
func (b *TimelineBuilder) classifyIncompleteTrades(incompleteTrades []*IncompleteTrade) {
	openDate := b.inception.Add(-tick)

	for _, it := range incompleteTrades {
		subLog := log.With().Str("Ticker", it.Ticker).Str("InstrumentType", it.InstrumentType).Float64("Quantity", it.Quantity).Logger()

		if it.SellDate.IsZero() {
			b.warnf("Skipped incomplete trade %s with missing sell date", it.Ticker)
			subLog.Warn().Stack().Msg("incomplete trade has no sell date")
			continue
		}
		if it.Quantity <= qtyEpsilon {
			b.warnf("Skipped incomplete trade %s with non-positive quantity", it.Ticker)
			subLog.Warn().Stack().Msg("incomplete trade has non-positive quantity")
			continue
		}

		key := it.Key()

		if it.InstrumentType == InstrumentFutures {
			if len(b.filteredFutures[key]) > 0 {
				b.warnf("Multiple incomplete trades for key %s", key.String())
			}
			b.filteredFutures[key] = append(b.filteredFutures[key], filteredIncomplete{
				quantity: it.Quantity,
				sellDate: it.SellDate,
			})
			b.warnf("Filtered futures incomplete trade %s", it.Ticker)
			subLog.Info().Msg("filtered futures incomplete trade")
			continue
		}

		b.events[key] = append(b.events[key], PositionEvent{Date: openDate, Quantity: it.Quantity})
		b.syntheticEntries = append(b.syntheticEntries, SyntheticEntry{
			Ticker:   it.Ticker,
			Source:   SyntheticIncompleteTrade,
			Quantity: it.Quantity,
			Date:     openDate,
		})

		// the synthetic lot was acquired with cash before the analysis
		// window opened; seed the cash ledger with its imputed cost
		b.cashSeed -= it.Quantity * it.SellPrice

		subLog.Debug().Time("OpenDate", openDate).Msg("synthesized incomplete-trade opening")
	}
}

// balanceFilteredFutures zeroes out the lone sell/cover left in the ledger
// for each filtered futures trade. Keys already covered by a current-position
// synthetic are skipped: that synthetic's sizing incorporates the exit
// quantity and a compensating event would double-count it.
func (b *TimelineBuilder) balanceFilteredFutures() {
	keys := make([]PositionKey, 0, len(b.filteredFutures))
	for key := range b.filteredFutures {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	for _, key := range keys {
		if b.currentPositionKeys[key] {
			log.Debug().Str("Key", key.String()).Msg("current-position synthetic already covers filtered futures exit")
			continue
		}

		for _, fi := range b.filteredFutures[key] {
			b.events[key] = append(b.events[key], PositionEvent{
				Date:     fi.sellDate.Add(-tick),
				Quantity: fi.quantity,
			})
		}
	}
}

// snapshot sorts every ledger and returns the immutable result. Entries from
// different origins are intentionally interleaved during the build, so the
// explicit sort here is load-bearing.
func (b *TimelineBuilder) snapshot() *Timeline {
	for key := range b.events {
		events := b.events[key]
		sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	}

	return &Timeline{
		Events:                       b.events,
		CashSeed:                     b.cashSeed,
		SyntheticEntries:             b.syntheticEntries,
		CurrentPositionSyntheticKeys: b.currentPositionKeys,
		Warnings:                     b.warnings,
	}
}

func (b *TimelineBuilder) warnf(format string, args ...interface{}) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}
