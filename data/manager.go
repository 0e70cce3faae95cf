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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/henrysouchien/portfolio-risk-engine/observability/opentelemetry"
	"go.opentelemetry.io/otel"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type cachedPrice struct {
	price float64
	asOf  time.Time
}

// Manager serves security prices from the local eod database, caching hits
// in an LRU and falling back to tiingo when the database has no coverage
type Manager struct {
	cache  *lru.TwoQueueCache
	store  *EodStore
	tiingo *tiingo
}

var (
	managerInstance *Manager
	managerOnce     sync.Once
)

// GetManagerInstance returns the process-wide price manager
func GetManagerInstance() *Manager {
	managerOnce.Do(func() {
		cacheSize := viper.GetInt("cache.metric_size")
		if cacheSize == 0 {
			cacheSize = 1024
		}
		cache, err := lru.New2Q(cacheSize)
		if err != nil {
			log.Panic().Err(err).Msg("could not create price cache")
		}
		managerInstance = &Manager{
			cache: cache,
			store: NewEodStore(),
		}
		if token := viper.GetString("tiingo.token"); token != "" {
			managerInstance.tiingo = NewTiingo(token)
		}
	})
	return managerInstance
}

// NewManager creates a standalone price manager, mostly useful in tests
func NewManager() *Manager {
	cache, err := lru.New2Q(1024)
	if err != nil {
		log.Panic().Err(err).Msg("could not create price cache")
	}
	return &Manager{
		cache: cache,
		store: NewEodStore(),
	}
}

func priceCacheKey(ticker, currency string, date time.Time, exact bool) string {
	k := fmt.Sprintf("%s:%s:%s", ticker, currency, date.Format("2006-01-02"))
	if exact {
		return "e:" + k
	}
	return "b:" + k
}

// Price returns the closing price of the security on the exact trading date
// requested. ErrNotFound is returned when no quote exists for that date.
func (m *Manager) Price(ctx context.Context, ticker string, currency string, date time.Time) (float64, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.Price")
	defer span.End()

	key := priceCacheKey(ticker, currency, date, true)
	if val, ok := m.cache.Get(key); ok {
		return val.(cachedPrice).price, nil
	}

	security := &Security{
		Ticker:   ticker,
		Currency: currency,
	}

	price, err := m.store.Close(ctx, security, date)
	if err != nil {
		return 0, err
	}

	m.cache.Add(key, cachedPrice{price: price, asOf: date})
	return price, nil
}

// PriceOnOrBefore returns the latest known close on or before the requested
// date along with the date the quote is actually for. When the database has
// no coverage at all and a tiingo token is configured the provider is
// consulted before giving up.
func (m *Manager) PriceOnOrBefore(ctx context.Context, ticker string, currency string, date time.Time) (float64, time.Time, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.PriceOnOrBefore")
	defer span.End()

	key := priceCacheKey(ticker, currency, date, false)
	if val, ok := m.cache.Get(key); ok {
		cached := val.(cachedPrice)
		return cached.price, cached.asOf, nil
	}

	security := &Security{
		Ticker:   ticker,
		Currency: currency,
	}

	price, asOf, err := m.store.CloseOnOrBefore(ctx, security, date)
	if err != nil {
		if errors.Is(err, ErrNotFound) && m.tiingo != nil {
			log.Info().Str("Ticker", ticker).Time("Date", date).Msg("falling back to tiingo for price")
			price, asOf, err = m.tiingo.CloseOnOrBefore(ctx, ticker, date)
			if err != nil {
				return 0, time.Time{}, err
			}
			m.cache.Add(key, cachedPrice{price: price, asOf: asOf})
			return price, asOf, nil
		}
		return 0, time.Time{}, err
	}

	m.cache.Add(key, cachedPrice{price: price, asOf: asOf})
	return price, asOf, nil
}
