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

package data_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/henrysouchien/portfolio-risk-engine/data"
	"github.com/henrysouchien/portfolio-risk-engine/data/database"
	"github.com/henrysouchien/portfolio-risk-engine/pgxmockhelper"
)

var _ = Describe("Manager", func() {
	var (
		ctx     context.Context
		dbPool  pgxmock.PgxConnIface
		manager *data.Manager
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)

		manager = data.NewManager()
	})

	It("serves exact-date prices from the database", func() {
		dt := time.Date(2021, time.March, 31, 0, 0, 0, 0, time.UTC)
		pgxmockhelper.MockEodClose(dbPool, "testdata/msft.csv", dt)
		dbPool.ExpectCommit()

		price, err := manager.Price(ctx, "MSFT", "USD", dt)
		Expect(err).NotTo(HaveOccurred())
		Expect(price).To(Equal(235.77))
	})

	It("caches repeated lookups", func() {
		dt := time.Date(2021, time.March, 31, 0, 0, 0, 0, time.UTC)
		pgxmockhelper.MockEodClose(dbPool, "testdata/msft.csv", dt)
		dbPool.ExpectCommit()

		_, err := manager.Price(ctx, "MSFT", "USD", dt)
		Expect(err).NotTo(HaveOccurred())

		// no further database expectations are registered; a second lookup
		// must be served from the cache
		price, err := manager.Price(ctx, "MSFT", "USD", dt)
		Expect(err).NotTo(HaveOccurred())
		Expect(price).To(Equal(235.77))
	})

	It("propagates ErrNotFound for uncovered exact dates", func() {
		dt := time.Date(2021, time.April, 1, 0, 0, 0, 0, time.UTC)
		pgxmockhelper.MockEodClose(dbPool, "testdata/msft.csv", dt)
		dbPool.ExpectRollback()

		_, err := manager.Price(ctx, "MSFT", "USD", dt)
		Expect(err).To(MatchError(data.ErrNotFound))
	})

	It("returns the latest available close with its as-of date", func() {
		dt := time.Date(2021, time.April, 30, 0, 0, 0, 0, time.UTC)
		pgxmockhelper.MockEodCloseOnOrBefore(dbPool, "testdata/msft.csv", dt)
		dbPool.ExpectCommit()

		price, asOf, err := manager.PriceOnOrBefore(ctx, "MSFT", "USD", dt)
		Expect(err).NotTo(HaveOccurred())
		Expect(price).To(Equal(235.77))
		Expect(asOf).To(Equal(time.Date(2021, time.March, 31, 0, 0, 0, 0, time.UTC)))
	})
})
