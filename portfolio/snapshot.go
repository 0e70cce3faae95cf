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

package portfolio

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/henrysouchien/portfolio-risk-engine/common"
	"github.com/henrysouchien/portfolio-risk-engine/data/database"
	"github.com/jackc/pgtype"
	"github.com/rs/zerolog/log"
)

// Snapshot is one saved analysis run. Because the timeline builder is a pure
// function of its inputs, snapshots are safe to cache and recompute on
// demand.
type Snapshot struct {
	ID         []byte          `json:"id"`
	UserID     string          `json:"userId"`
	ComputedOn time.Time       `json:"computedOn"`
	Timeline   *Timeline       `json:"timeline"`
	NAVSeries  *NAVSeries      `json:"navSeries"`
	Summary    *ReturnSummary  `json:"summary"`
}

func NewSnapshot(userID string, tl *Timeline, series *NAVSeries, summary *ReturnSummary) *Snapshot {
	id, _ := uuid.New().MarshalBinary()
	return &Snapshot{
		ID:         id,
		UserID:     userID,
		ComputedOn: time.Now(),
		Timeline:   tl,
		NAVSeries:  series,
		Summary:    summary,
	}
}

func (snap *Snapshot) cacheKey() string {
	return fmt.Sprintf("analysis:%s:%s", snap.UserID, hex.EncodeToString(snap.ID))
}

// Save persists the snapshot to the database and primes the result cache
func (snap *Snapshot) Save(ctx context.Context) error {
	if snap.UserID == "" {
		log.Error().Stack().Msg("userID cannot be an empty string")
		return ErrEmptyUserID
	}

	subLog := log.With().Str("SnapshotID", hex.EncodeToString(snap.ID)).Str("UserID", snap.UserID).Logger()

	timelineJSON, err := json.Marshal(snap.Timeline)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("failed to marshal timeline")
		return ErrSerialize
	}
	seriesJSON, err := json.Marshal(snap.NAVSeries)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("failed to marshal nav series")
		return ErrSerialize
	}
	summaryJSON, err := json.Marshal(snap.Summary)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("failed to marshal return summary")
		return ErrSerialize
	}

	trx, err := database.TrxForUser(ctx, snap.UserID)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("unable to get database transaction for user")
		return err
	}

	snapshotSQL := `
	INSERT INTO analysis_snapshots (
		"id",
		"user_id",
		"computed_on",
		"timeline",
		"nav_series",
		"summary"
	) VALUES (
		$1, $2, $3, $4, $5, $6
	) ON CONFLICT ON CONSTRAINT analysis_snapshots_pkey
	DO UPDATE SET
		computed_on=$3,
		timeline=$4,
		nav_series=$5,
		summary=$6`
	if _, err := trx.Exec(ctx, snapshotSQL, snap.ID, snap.UserID, snap.ComputedOn, timelineJSON, seriesJSON, summaryJSON); err != nil {
		subLog.Error().Stack().Err(err).Str("Query", snapshotSQL).Msg("failed to save analysis snapshot")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("failed to commit analysis snapshot")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	// results are deterministic for a given input set; cache the rendered
	// snapshot so report reads skip the database
	if payload, err := json.Marshal(snap); err == nil {
		if err := common.CacheSet(snap.cacheKey(), payload); err != nil {
			subLog.Warn().Err(err).Msg("could not cache analysis snapshot")
		}
	}

	return nil
}

// LoadSnapshot reads a saved analysis run, preferring the result cache
func LoadSnapshot(ctx context.Context, userID string, snapshotID []byte) (*Snapshot, error) {
	if userID == "" {
		log.Error().Stack().Msg("userID cannot be an empty string")
		return nil, ErrEmptyUserID
	}

	subLog := log.With().Str("SnapshotID", hex.EncodeToString(snapshotID)).Str("UserID", userID).Logger()

	probe := &Snapshot{ID: snapshotID, UserID: userID}
	if payload, err := common.CacheGet(probe.cacheKey()); err == nil && len(payload) > 0 {
		snap := &Snapshot{}
		if err := json.Unmarshal(payload, snap); err == nil {
			return snap, nil
		}
		subLog.Warn().Msg("cached snapshot is corrupt; falling back to database")
	}

	trx, err := database.TrxForUser(ctx, userID)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("unable to get database transaction for user")
		return nil, err
	}

	snapshotSQL := `SELECT
		computed_on,
		timeline,
		nav_series,
		summary
	FROM analysis_snapshots
	WHERE id=$1 AND user_id=$2`

	var computedOn time.Time
	var timelineJSON, seriesJSON []byte
	var summaryJSON pgtype.Bytea

	if err := trx.QueryRow(ctx, snapshotSQL, snapshotID, userID).Scan(&computedOn, &timelineJSON, &seriesJSON, &summaryJSON); err != nil {
		subLog.Warn().Stack().Err(err).Str("Query", snapshotSQL).Msg("could not load analysis snapshot from database")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, ErrSnapshotNotFound
	}

	snap := &Snapshot{
		ID:         snapshotID,
		UserID:     userID,
		ComputedOn: computedOn,
	}
	if err := json.Unmarshal(timelineJSON, &snap.Timeline); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not unmarshal timeline")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, ErrSerialize
	}
	if err := json.Unmarshal(seriesJSON, &snap.NAVSeries); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not unmarshal nav series")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, ErrSerialize
	}
	if summaryJSON.Status == pgtype.Present {
		if err := json.Unmarshal(summaryJSON.Bytes, &snap.Summary); err != nil {
			subLog.Warn().Err(err).Msg("could not unmarshal return summary")
		}
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit transaction to database")
	}

	return snap, nil
}
