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

package pgxmockhelper

import (
	"io/ioutil"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/pashagolub/pgxmock"
	"github.com/rs/zerolog/log"
)

type CSVRows struct {
	rows    [][]any
	header  []string
	dateCol int
}

func NewCSVRows(csvFn string, typeMap map[string]string) *CSVRows {
	subLog := log.With().Str("CsvFn", csvFn).Logger()

	rows := &CSVRows{
		dateCol: -1,
		rows:    make([][]any, 0),
	}
	rawData, err := ioutil.ReadFile(csvFn)
	if err != nil {
		subLog.Panic().Err(err).Msg("could not read file")
	}

	lines := strings.Split(string(rawData), "\n")

	// need at least a header plus the trailing newline
	if len(lines) < 2 {
		subLog.Panic().Int("NumLines", len(lines)).Msg("input file does not have enough lines, need at least 2 (header + trailing new line)")
	}
	if lines[len(lines)-1] != "" {
		subLog.Panic().Msg("input file is missing a trailing new line")
	}

	headerRaw := lines[0]
	lines = lines[1 : len(lines)-1]
	rows.header = strings.Split(headerRaw, ",")

	for _, ll := range lines {
		cols := make([]any, len(rows.header))
		parts := strings.Split(ll, ",")
		for idx, val := range parts {
			colName := rows.header[idx]
			if typeConv, ok := typeMap[colName]; ok {
				switch typeConv {
				case "date":
					parsed, err := time.Parse("2006-01-02", val)
					if err != nil {
						subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to datetime of format 2006-01-02")
					}
					cols[idx] = parsed
					rows.dateCol = idx
				case "float64":
					parsed, err := strconv.ParseFloat(val, 64)
					if err != nil {
						subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to float64")
					}
					cols[idx] = parsed
				default:
					cols[idx] = val
				}
			} else {
				cols[idx] = val
			}
		}
		rows.rows = append(rows.rows, cols)
	}

	return rows
}

// OnOrBefore keeps the single latest row dated on or before dt, matching the
// LIMIT 1 shape of the close-price lookup
func (csvRows *CSVRows) OnOrBefore(dt time.Time) *CSVRows {
	if csvRows.dateCol == -1 {
		log.Panic().Time("dt", dt).Msg("no date column found")
	}
	var best []any
	for _, row := range csvRows.rows {
		t := row[csvRows.dateCol].(time.Time)
		if t.After(dt) {
			continue
		}
		if best == nil || t.After(best[csvRows.dateCol].(time.Time)) {
			best = row
		}
	}
	if best == nil {
		csvRows.rows = [][]any{}
	} else {
		csvRows.rows = [][]any{best}
	}
	return csvRows
}

// On keeps only rows dated exactly dt
func (csvRows *CSVRows) On(dt time.Time) *CSVRows {
	if csvRows.dateCol == -1 {
		log.Panic().Time("dt", dt).Msg("no date column found")
	}
	newRows := make([][]any, 0, 1)
	for _, row := range csvRows.rows {
		if row[csvRows.dateCol].(time.Time).Equal(dt) {
			newRows = append(newRows, row)
		}
	}
	csvRows.rows = newRows
	return csvRows
}

// Project keeps only the named columns, in order
func (csvRows *CSVRows) Project(cols ...string) *CSVRows {
	idxs := make([]int, 0, len(cols))
	for _, want := range cols {
		found := -1
		for idx, have := range csvRows.header {
			if have == want {
				found = idx
			}
		}
		if found == -1 {
			log.Panic().Str("Column", want).Msg("column not present in csv")
		}
		idxs = append(idxs, found)
	}

	newRows := make([][]any, 0, len(csvRows.rows))
	for _, row := range csvRows.rows {
		newRow := make([]any, 0, len(idxs))
		for _, idx := range idxs {
			newRow = append(newRow, row[idx])
		}
		newRows = append(newRows, newRow)
	}

	newDateCol := -1
	for outIdx, idx := range idxs {
		if idx == csvRows.dateCol {
			newDateCol = outIdx
		}
	}

	csvRows.rows = newRows
	csvRows.header = cols
	csvRows.dateCol = newDateCol
	return csvRows
}

func (csvRows *CSVRows) Rows() *pgxmock.Rows {
	r := pgxmock.NewRows(csvRows.header)
	for _, row := range csvRows.rows {
		r.AddRow(row...)
	}
	return r
}

// MockEodClose arranges the transaction + SET ROLE + exact-date close query
// expectations for one price lookup
func MockEodClose(db pgxmock.PgxConnIface, fn string, dt time.Time) {
	db.ExpectBegin()
	db.ExpectExec("SET ROLE").WillReturnResult(pgconn.CommandTag("SET ROLE"))
	db.ExpectQuery("SELECT close FROM eod").WillReturnRows(
		NewCSVRows(fn, map[string]string{
			"event_date": "date",
			"close":      "float64",
		}).On(dt).Project("close").Rows())
}

// MockEodCloseOnOrBefore arranges expectations for the latest-close-on-or-
// before lookup
func MockEodCloseOnOrBefore(db pgxmock.PgxConnIface, fn string, dt time.Time) {
	db.ExpectBegin()
	db.ExpectExec("SET ROLE").WillReturnResult(pgconn.CommandTag("SET ROLE"))
	db.ExpectQuery("SELECT event_date, close FROM eod").WillReturnRows(
		NewCSVRows(fn, map[string]string{
			"event_date": "date",
			"close":      "float64",
		}).OnOrBefore(dt).Project("event_date", "close").Rows())
}
