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

var _ = Describe("EodStore", func() {
	var (
		ctx      context.Context
		dbPool   pgxmock.PgxConnIface
		store    *data.EodStore
		security *data.Security
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)

		store = data.NewEodStore()
		security = &data.Security{Ticker: "MSFT", Currency: "USD"}
	})

	Describe("Close", func() {
		It("returns the close price for an exact trading date", func() {
			dt := time.Date(2021, time.February, 26, 0, 0, 0, 0, time.UTC)
			pgxmockhelper.MockEodClose(dbPool, "testdata/msft.csv", dt)
			dbPool.ExpectCommit()

			price, err := store.Close(ctx, security, dt)
			Expect(err).NotTo(HaveOccurred())
			Expect(price).To(Equal(232.38))
		})

		It("returns ErrNotFound when no quote exists for the date", func() {
			dt := time.Date(2021, time.February, 27, 0, 0, 0, 0, time.UTC)
			pgxmockhelper.MockEodClose(dbPool, "testdata/msft.csv", dt)
			dbPool.ExpectRollback()

			_, err := store.Close(ctx, security, dt)
			Expect(err).To(MatchError(data.ErrNotFound))
		})
	})

	Describe("CloseOnOrBefore", func() {
		It("returns the latest close on or before the date", func() {
			dt := time.Date(2021, time.March, 15, 0, 0, 0, 0, time.UTC)
			pgxmockhelper.MockEodCloseOnOrBefore(dbPool, "testdata/msft.csv", dt)
			dbPool.ExpectCommit()

			price, asOf, err := store.CloseOnOrBefore(ctx, security, dt)
			Expect(err).NotTo(HaveOccurred())
			Expect(price).To(Equal(232.38))
			Expect(asOf).To(Equal(time.Date(2021, time.February, 26, 0, 0, 0, 0, time.UTC)))
		})

		It("returns ErrNotFound before the first quote", func() {
			dt := time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC)
			pgxmockhelper.MockEodCloseOnOrBefore(dbPool, "testdata/msft.csv", dt)
			dbPool.ExpectRollback()

			_, _, err := store.CloseOnOrBefore(ctx, security, dt)
			Expect(err).To(MatchError(data.ErrNotFound))
		})
	})
})
