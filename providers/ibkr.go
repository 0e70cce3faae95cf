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

// FlexTrade is one trade confirmation row from an IBKR Flex statement.
// Quantity is signed the IBKR way: negative for sells.
type FlexTrade struct {
	TradeID       string  `json:"tradeID"`
	Symbol        string  `json:"symbol"`
	BuySell       string  `json:"buySell"`
	OpenClose     string  `json:"openCloseIndicator"`
	Quantity      float64 `json:"quantity"`
	TradePrice    float64 `json:"tradePrice"`
	IBCommission  float64 `json:"ibCommission"`
	TradeMoney    float64 `json:"tradeMoney"`
	TradeDate     string  `json:"tradeDate"`
	Currency      string  `json:"currency"`
	AssetCategory string  `json:"assetCategory"`
}

// ParseFlexTrades unmarshals the trades section of a Flex query response
func ParseFlexTrades(payload []byte) ([]FlexTrade, error) {
	rows := []FlexTrade{}
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// flexKind maps the buySell + openClose indicator pair onto a canonical
// kind. IBKR reports short sales as SELL;O and cover buys as BUY;C.
func flexKind(buySell, openClose string) string {
	switch buySell {
	case "BUY":
		if openClose == "C" {
			return portfolio.CoverTransaction
		}
		return portfolio.BuyTransaction
	case "SELL":
		if openClose == "O" {
			return portfolio.ShortTransaction
		}
		return portfolio.SellTransaction
	}
	return ""
}

func flexInstrument(assetCategory string) string {
	switch assetCategory {
	case "FUT":
		return portfolio.InstrumentFutures
	case "OPT", "FOP":
		return portfolio.InstrumentOption
	case "ETF":
		return portfolio.InstrumentETF
	case "CASH":
		return portfolio.InstrumentCash
	default:
		return portfolio.InstrumentEquity
	}
}

// NormalizeFlex converts IBKR Flex trade rows into canonical transactions.
// Commission arrives negative from IBKR and is flipped to a positive fee.
func (n *Normalizer) NormalizeFlex(rows []FlexTrade, account Account) {
	for _, row := range rows {
		kind := flexKind(row.BuySell, row.OpenClose)
		if kind == "" {
			n.warnf("Dropped flex trade %s for %s: unknown buySell %q", row.TradeID, row.Symbol, row.BuySell)
			continue
		}

		date, err := time.Parse("20060102", row.TradeDate)
		if err != nil {
			n.warnf("Dropped flex trade %s for %s: unparseable date %q", row.TradeID, row.Symbol, row.TradeDate)
			continue
		}

		n.add(&portfolio.Transaction{
			Ticker:         row.Symbol,
			Currency:       normalizeCurrency(row.Currency),
			Kind:           kind,
			Date:           date,
			Shares:         abs(row.Quantity),
			PricePerShare:  row.TradePrice,
			Commission:     abs(row.IBCommission),
			TotalValue:     abs(row.TradeMoney),
			InstrumentType: flexInstrument(row.AssetCategory),
			AccountID:      account.ID,
			AccountName:    account.Name,
			Institution:    account.Institution,
		})
	}
}
