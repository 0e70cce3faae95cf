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

package providers

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/henrysouchien/portfolio-risk-engine/portfolio"
)

// SnapTradeActivity is one row of the SnapTrade account activities feed
type SnapTradeActivity struct {
	ID          string  `json:"id"`
	Symbol      string  `json:"symbol"`
	Type        string  `json:"type"`
	Units       float64 `json:"units"`
	Price       float64 `json:"price"`
	Fee         float64 `json:"fee"`
	Amount      float64 `json:"amount"`
	TradeDate   string  `json:"trade_date"`
	Currency    string  `json:"currency"`
	OptionType  string  `json:"option_type"`
	Description string  `json:"description"`
}

// ParseSnapTradeActivities unmarshals a raw activities payload
func ParseSnapTradeActivities(payload []byte) ([]SnapTradeActivity, error) {
	rows := []SnapTradeActivity{}
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func snapTradeKind(activityType string) string {
	switch activityType {
	case "BUY":
		return portfolio.BuyTransaction
	case "SELL":
		return portfolio.SellTransaction
	case "SELL_SHORT":
		return portfolio.ShortTransaction
	case "BUY_TO_COVER":
		return portfolio.CoverTransaction
	}
	return ""
}

func snapTradeInstrument(activity SnapTradeActivity) string {
	if activity.OptionType != "" {
		return portfolio.InstrumentOption
	}
	return portfolio.InstrumentEquity
}

// NormalizeSnapTrade converts snaptrade activity rows into canonical
// transactions. Activities that are not trades (dividends, contributions)
// are skipped silently; trades with bad dates are dropped with a warning.
func (n *Normalizer) NormalizeSnapTrade(rows []SnapTradeActivity, account Account) {
	for _, row := range rows {
		kind := snapTradeKind(row.Type)
		if kind == "" {
			continue
		}

		date, err := time.Parse(time.RFC3339, row.TradeDate)
		if err != nil {
			if date, err = time.Parse("2006-01-02", row.TradeDate); err != nil {
				n.warnf("Dropped snaptrade activity %s for %s: unparseable date %q", row.ID, row.Symbol, row.TradeDate)
				continue
			}
		}

		n.add(&portfolio.Transaction{
			Ticker:         row.Symbol,
			Currency:       normalizeCurrency(row.Currency),
			Kind:           kind,
			Date:           date,
			Shares:         abs(row.Units),
			PricePerShare:  row.Price,
			Commission:     row.Fee,
			TotalValue:     abs(row.Amount),
			InstrumentType: snapTradeInstrument(row),
			AccountID:      account.ID,
			AccountName:    account.Name,
			Institution:    account.Institution,
		})
	}
}
