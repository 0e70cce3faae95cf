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

// PlaidTransaction is an investment transaction row as returned by the Plaid
// investments/transactions endpoint
type PlaidTransaction struct {
	InvestmentTransactionID string  `json:"investment_transaction_id"`
	Ticker                  string  `json:"ticker_symbol"`
	SecurityType            string  `json:"security_type"`
	Type                    string  `json:"type"`
	Subtype                 string  `json:"subtype"`
	Quantity                float64 `json:"quantity"`
	Price                   float64 `json:"price"`
	Fees                    float64 `json:"fees"`
	Amount                  float64 `json:"amount"`
	Date                    string  `json:"date"`
	IsoCurrencyCode         string  `json:"iso_currency_code"`
}

// ParsePlaidTransactions unmarshals a raw investments/transactions payload
func ParsePlaidTransactions(payload []byte) ([]PlaidTransaction, error) {
	rows := []PlaidTransaction{}
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func plaidKind(rowType, subtype string) string {
	switch rowType {
	case "buy":
		if subtype == "buy to cover" {
			return portfolio.CoverTransaction
		}
		return portfolio.BuyTransaction
	case "sell":
		if subtype == "sell short" {
			return portfolio.ShortTransaction
		}
		return portfolio.SellTransaction
	}
	return ""
}

func plaidInstrument(securityType string) string {
	switch securityType {
	case "etf":
		return portfolio.InstrumentETF
	case "derivative":
		return portfolio.InstrumentOption
	case "cash":
		return portfolio.InstrumentCash
	default:
		return portfolio.InstrumentEquity
	}
}

// NormalizePlaid converts plaid rows into canonical transactions, dropping
// non-trade rows (dividends, fees) and malformed trades with a warning
func (n *Normalizer) NormalizePlaid(rows []PlaidTransaction, account Account) {
	for _, row := range rows {
		kind := plaidKind(row.Type, row.Subtype)
		if kind == "" {
			// cash movement or dividend row; not a trade
			continue
		}

		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			n.warnf("Dropped plaid transaction %s for %s: unparseable date %q", row.InvestmentTransactionID, row.Ticker, row.Date)
			continue
		}

		n.add(&portfolio.Transaction{
			Ticker:         row.Ticker,
			Currency:       normalizeCurrency(row.IsoCurrencyCode),
			Kind:           kind,
			Date:           date,
			Shares:         abs(row.Quantity),
			PricePerShare:  row.Price,
			Commission:     row.Fees,
			TotalValue:     abs(row.Amount),
			InstrumentType: plaidInstrument(row.SecurityType),
			AccountID:      account.ID,
			AccountName:    account.Name,
			Institution:    account.Institution,
		})
	}
}
