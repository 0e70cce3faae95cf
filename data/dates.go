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
	"time"

	"github.com/henrysouchien/portfolio-risk-engine/common"
)

// MonthEnd returns the last calendar day of dt's month at market close
// (4pm New York)
func MonthEnd(dt time.Time) time.Time {
	tz := common.GetTimezone()
	firstOfNext := time.Date(dt.Year(), dt.Month(), 1, 0, 0, 0, 0, tz).AddDate(0, 1, 0)
	last := firstOfNext.AddDate(0, 0, -1)
	return time.Date(last.Year(), last.Month(), last.Day(), 16, 0, 0, 0, tz)
}

// MonthEnds returns every monthly valuation boundary in [begin, through].
// The final boundary is through itself when through falls before its own
// month end, so the series always values the portfolio "as of now".
func MonthEnds(begin, through time.Time) []time.Time {
	if through.Before(begin) {
		return nil
	}

	boundaries := make([]time.Time, 0, 120)
	cursor := MonthEnd(begin)
	for cursor.Before(through) || cursor.Equal(through) {
		if !cursor.Before(begin) {
			boundaries = append(boundaries, cursor)
		}
		cursor = MonthEnd(cursor.AddDate(0, 0, 1))
	}

	if len(boundaries) == 0 || boundaries[len(boundaries)-1].Before(through) {
		boundaries = append(boundaries, through)
	}

	return boundaries
}
