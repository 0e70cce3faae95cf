// Copyright 2021-2025
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
	"github.com/rs/zerolog"
)

func (trx *Transaction) MarshalZerologObject(e *zerolog.Event) {
	e.Time("Date", trx.Date).
		Str("Ticker", trx.Ticker).
		Str("Currency", trx.Currency).
		Str("Kind", trx.Kind).
		Float64("Shares", trx.Shares).
		Float64("PricePerShare", trx.PricePerShare).
		Float64("Commission", trx.Commission).
		Str("InstrumentType", trx.InstrumentType).
		Str("AccountID", trx.AccountID).
		Str("Institution", trx.Institution).
		Str("SourceID", trx.SourceID)
}

func (it *IncompleteTrade) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", it.Ticker).
		Str("Currency", it.Currency).
		Str("Direction", string(it.Direction)).
		Float64("Quantity", it.Quantity).
		Time("SellDate", it.SellDate).
		Float64("SellPrice", it.SellPrice).
		Str("InstrumentType", it.InstrumentType)
}

func (entry *SyntheticEntry) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", entry.Ticker).
		Str("Source", string(entry.Source)).
		Float64("Quantity", entry.Quantity).
		Time("Date", entry.Date)
}

func (m *NAVMeasurement) MarshalZerologObject(e *zerolog.Event) {
	e.Time("Time", m.Time).
		Float64("SecuritiesValue", m.SecuritiesValue).
		Float64("Cash", m.Cash).
		Float64("Value", m.Value)
}
