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
	"fmt"
	"time"
)

const (
	BuyTransaction   = "BUY"
	SellTransaction  = "SELL"
	ShortTransaction = "SHORT"
	CoverTransaction = "COVER"
)

const (
	InstrumentEquity  = "equity"
	InstrumentETF     = "etf"
	InstrumentFutures = "futures"
	InstrumentOption  = "option"
	InstrumentCash    = "cash"
)

// Direction is the side of the opening trade for a position bucket
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// SyntheticSource identifies why a priced synthetic opening was inserted
// into the timeline
type SyntheticSource string

const (
	SyntheticCurrentPosition SyntheticSource = "synthetic_current_position"
	SyntheticIncompleteTrade SyntheticSource = "synthetic_incomplete_trade"
)

// Transaction is one canonical brokerage ledger row. Instances are produced
// by the providers package and are read-only downstream.
type Transaction struct {
	Ticker         string    `json:"ticker"`
	Currency       string    `json:"currency"`
	Kind           string    `json:"kind"`
	Date           time.Time `json:"date"`
	Shares         float64   `json:"shares"`
	PricePerShare  float64   `json:"pricePerShare"`
	Commission     float64   `json:"commission"`
	TotalValue     float64   `json:"totalValue"`
	InstrumentType string    `json:"instrumentType"`
	AccountID      string    `json:"accountId"`
	AccountName    string    `json:"accountName"`
	Institution    string    `json:"institution"`
	SourceID       string    `json:"sourceId"`
}

// IncompleteTrade is the unmatched remainder of a sell/cover for which the
// lot matcher found no corresponding opening trade. Direction is the side of
// the original, unobserved opening.
type IncompleteTrade struct {
	Ticker         string    `json:"ticker"`
	Currency       string    `json:"currency"`
	Direction      Direction `json:"direction"`
	Quantity       float64   `json:"quantity"`
	SellDate       time.Time `json:"sellDate"`
	SellPrice      float64   `json:"sellPrice"`
	InstrumentType string    `json:"instrumentType"`
}

// CurrentPosition is a live holding as of now. Shares is signed; negative
// shares indicate a short position.
type CurrentPosition struct {
	Ticker         string  `json:"ticker"`
	Shares         float64 `json:"shares"`
	Currency       string  `json:"currency"`
	InstrumentType string  `json:"instrumentType"`
}

// PositionKey identifies one ledger bucket. Over the full observed history
// of a closed position the quantity deltas for a key sum to exactly zero.
type PositionKey struct {
	Ticker    string    `json:"ticker"`
	Currency  string    `json:"currency"`
	Direction Direction `json:"direction"`
}

func (k PositionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Ticker, k.Currency, k.Direction)
}

// PositionEvent is one signed quantity delta in a position's ledger
type PositionEvent struct {
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
}

// SyntheticEntry records that a priced opening was synthesized and should be
// treated as a real valuation input. Compensating events are never recorded
// here.
type SyntheticEntry struct {
	Ticker   string          `json:"ticker"`
	Source   SyntheticSource `json:"source"`
	Quantity float64         `json:"quantity"`
	Date     time.Time       `json:"date"`
}

// Key returns the position key the transaction's quantity delta applies to.
// BUY/SELL trade against the long bucket; SHORT/COVER against the short
// bucket.
func (trx *Transaction) Key() PositionKey {
	direction := Long
	if trx.Kind == ShortTransaction || trx.Kind == CoverTransaction {
		direction = Short
	}
	return PositionKey{Ticker: trx.Ticker, Currency: trx.Currency, Direction: direction}
}

// Delta returns the signed quantity delta for the transaction. Opening kinds
// (BUY, SHORT) add to the bucket; closing kinds (SELL, COVER) subtract.
func (trx *Transaction) Delta() float64 {
	switch trx.Kind {
	case BuyTransaction, ShortTransaction:
		return trx.Shares
	case SellTransaction, CoverTransaction:
		return -trx.Shares
	}
	return 0
}

// IsClosing reports whether the transaction reduces the position
func (trx *Transaction) IsClosing() bool {
	return trx.Kind == SellTransaction || trx.Kind == CoverTransaction
}

// Key returns the position key of the original, unobserved opening trade
func (it *IncompleteTrade) Key() PositionKey {
	return PositionKey{Ticker: it.Ticker, Currency: it.Currency, Direction: it.Direction}
}

// Key returns the position key the holding belongs to; short holdings map to
// the short bucket
func (pos *CurrentPosition) Key() PositionKey {
	direction := Long
	if pos.Shares < 0 {
		direction = Short
	}
	return PositionKey{Ticker: pos.Ticker, Currency: pos.Currency, Direction: direction}
}
