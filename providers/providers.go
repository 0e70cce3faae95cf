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

// Package providers normalizes raw brokerage records from Plaid, SnapTrade
// and IBKR Flex statements into canonical portfolio transactions. Malformed
// rows are dropped with a warning; account metadata is always carried onto
// the normalized row.
package providers

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/henrysouchien/portfolio-risk-engine/portfolio"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

// Account is the brokerage account context a raw record was fetched under
type Account struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Institution string `json:"institution"`
}

// Normalizer accumulates canonical transactions and warnings across one or
// more provider payloads for a single analysis run
type Normalizer struct {
	transactions []*portfolio.Transaction
	warnings     []string
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		transactions: make([]*portfolio.Transaction, 0, 64),
		warnings:     make([]string, 0),
	}
}

// Transactions returns every transaction normalized so far
func (n *Normalizer) Transactions() []*portfolio.Transaction {
	return n.transactions
}

// Warnings returns the audit trail of dropped or suspect rows
func (n *Normalizer) Warnings() []string {
	return n.warnings
}

func (n *Normalizer) warnf(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	log.Warn().Msg(msg)
	n.warnings = append(n.warnings, msg)
}

// add validates the canonical row, computes its source id and appends it.
// Rows with a zero date or non-positive quantity never make it into the
// ledger.
func (n *Normalizer) add(trx *portfolio.Transaction) {
	if trx.Date.IsZero() {
		n.warnf("Dropped %s transaction for %s: missing date", trx.Kind, trx.Ticker)
		return
	}
	if trx.Shares <= 0 {
		n.warnf("Dropped %s transaction for %s: non-positive quantity", trx.Kind, trx.Ticker)
		return
	}
	if trx.Ticker == "" {
		n.warnf("Dropped %s transaction dated %s: missing symbol", trx.Kind, trx.Date.Format("2006-01-02"))
		return
	}
	if err := computeTransactionSourceID(trx); err != nil {
		log.Warn().Stack().Err(err).Object("Transaction", trx).Msg("couldn't compute SourceID for transaction")
	}
	n.transactions = append(n.transactions, trx)
}

// computeTransactionSourceID hashes the fields that uniquely identify a
// brokerage row so the same record fetched twice dedups to the same id
func computeTransactionSourceID(trx *portfolio.Transaction) error {
	h := blake3.New()

	d, err := trx.Date.UTC().MarshalText()
	if err != nil {
		return err
	}

	if _, err := h.Write(d); err != nil {
		log.Error().Stack().Err(err).Msg("could not write date to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(trx.AccountID)); err != nil {
		log.Error().Stack().Err(err).Msg("could not write account id to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(trx.Ticker)); err != nil {
		log.Error().Stack().Err(err).Msg("could not write ticker to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(trx.Kind)); err != nil {
		log.Error().Stack().Err(err).Msg("could not write kind to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(fmt.Sprintf("%.5f", trx.Shares))); err != nil {
		log.Error().Stack().Err(err).Msg("could not write shares to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(fmt.Sprintf("%.5f", trx.PricePerShare))); err != nil {
		log.Error().Stack().Err(err).Msg("could not write price to blake3 hasher")
		return err
	}

	digest := h.Sum(nil)
	trx.SourceID = hex.EncodeToString(digest)
	return nil
}

func normalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "USD"
	}
	return code
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
