// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/henrysouchien/portfolio-risk-engine/observability/opentelemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

type tiingo struct {
	apikey string
}

type tiingoJSONResponse struct {
	Date     string  `json:"date"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
}

var tiingoAPI = "https://api.tiingo.com"

// NewTiingo creates a new Tiingo price provider used for backfill when the
// local eod table has no coverage for a security
func NewTiingo(key string) *tiingo {
	return &tiingo{
		apikey: key,
	}
}

// CloseOnOrBefore returns the latest daily close on or before the requested
// date
func (t *tiingo) CloseOnOrBefore(ctx context.Context, symbol string, before time.Time) (float64, time.Time, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.CloseOnOrBefore")
	defer span.End()

	subLog := log.With().Str("Symbol", symbol).Time("Before", before).Logger()

	url := fmt.Sprintf("%s/tiingo/daily/%s/prices?endDate=%s&token=%s", tiingoAPI, symbol, before.Format("2006-01-02"), t.apikey)

	span.SetAttributes(
		attribute.KeyValue{
			Key:   "Url",
			Value: attribute.StringValue(fmt.Sprintf("%s/tiingo/daily/%s/prices?endDate=%s", tiingoAPI, symbol, before.Format("2006-01-02"))),
		},
		attribute.KeyValue{
			Key:   "Symbol",
			Value: attribute.StringValue(symbol),
		},
	)

	resp, err := http.Get(url)
	if err != nil {
		span.RecordError(err)
		msg := "tiingo http request failed"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Msg(msg)
		return 0, time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		span.SetAttributes(attribute.KeyValue{
			Key:   "StatusCode",
			Value: attribute.IntValue(resp.StatusCode),
		})
		msg := "tiingo returned invalid response code"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Int("HTTPResponseStatusCode", resp.StatusCode).Msg(msg)
		return 0, time.Time{}, ErrProviderFailure
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		msg := "could not read tiingo body"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Bytes("Body", body).Err(err).Msg(msg)
		return 0, time.Time{}, err
	}

	jsonResp := []tiingoJSONResponse{}
	err = json.Unmarshal(body, &jsonResp)
	if err != nil {
		span.RecordError(err)
		msg := "could not unmarshal json"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Bytes("Body", body).Msg(msg)
		return 0, time.Time{}, err
	}

	if len(jsonResp) == 0 {
		span.SetStatus(codes.Error, "no data returned")
		return 0, time.Time{}, ErrNoData
	}

	// tiingo returns rows in ascending date order; the last row is the
	// latest close on or before the requested date
	last := jsonResp[len(jsonResp)-1]
	dtParts := strings.Split(last.Date, "T")
	if len(dtParts) == 0 {
		msg := "invalid date format"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Str("DateStr", last.Date).Msg(msg)
		return 0, time.Time{}, ErrProviderFailure
	}

	tz, err := time.LoadLocation("America/New_York") // New York is the reference time
	if err != nil {
		subLog.Error().Err(err).Msg("could not load nyc timezone")
		return 0, time.Time{}, err
	}

	forDate, err := time.ParseInLocation("2006-01-02", dtParts[0], tz)
	if err != nil {
		span.RecordError(err)
		msg := "cannot parse date string"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Str("DateStr", last.Date).Msg(msg)
		return 0, time.Time{}, err
	}

	return last.Close, forDate, nil
}
