// Copyright 2021-2022
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

package data

import (
	"context"
	"time"

	"github.com/henrysouchien/portfolio-risk-engine/data/database"
	"github.com/henrysouchien/portfolio-risk-engine/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// role used for read-only price queries
const pricingRole = "riskuser"

// EodStore reads end-of-day close prices from the eod table
type EodStore struct {
}

func NewEodStore() *EodStore {
	return &EodStore{}
}

// Close returns the close price on the exact date
func (store *EodStore) Close(ctx context.Context, security *Security, date time.Time) (float64, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "eod.Close")
	defer span.End()

	subLog := log.With().Str("Ticker", security.Ticker).Str("Currency", security.Currency).Time("Date", date).Logger()

	trx, err := database.TrxForUser(ctx, pricingRole)
	if err != nil {
		span.RecordError(err)
		msg := "failed to load eod price -- could not get a database transaction"
		span.SetStatus(codes.Error, msg)
		subLog.Warn().Stack().Err(err).Msg(msg)
		return 0, err
	}

	sql := `SELECT close FROM eod WHERE ticker=$1 AND currency=$2 AND event_date=$3`
	var price float64
	if err := trx.QueryRow(ctx, sql, security.Ticker, security.Currency, date).Scan(&price); err != nil {
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return 0, ErrNotFound
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}
	return price, nil
}

// CloseOnOrBefore returns the latest close price on or before the requested
// date along with the date it was observed
func (store *EodStore) CloseOnOrBefore(ctx context.Context, security *Security, date time.Time) (float64, time.Time, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "eod.CloseOnOrBefore")
	defer span.End()

	subLog := log.With().Str("Ticker", security.Ticker).Str("Currency", security.Currency).Time("Date", date).Logger()

	trx, err := database.TrxForUser(ctx, pricingRole)
	if err != nil {
		span.RecordError(err)
		msg := "failed to load eod price -- could not get a database transaction"
		span.SetStatus(codes.Error, msg)
		subLog.Warn().Stack().Err(err).Msg(msg)
		return 0, time.Time{}, err
	}

	sql := `SELECT event_date, close FROM eod WHERE ticker=$1 AND currency=$2 AND event_date <= $3 ORDER BY event_date DESC LIMIT 1`
	var price float64
	var forDate time.Time
	if err := trx.QueryRow(ctx, sql, security.Ticker, security.Currency, date).Scan(&forDate, &price); err != nil {
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return 0, time.Time{}, ErrNotFound
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}
	return price, forDate, nil
}
