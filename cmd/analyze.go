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

package cmd

import (
	"context"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/goccy/go-json"
	"github.com/henrysouchien/portfolio-risk-engine/common"
	"github.com/henrysouchien/portfolio-risk-engine/data"
	"github.com/henrysouchien/portfolio-risk-engine/data/database"
	"github.com/henrysouchien/portfolio-risk-engine/portfolio"
	"github.com/henrysouchien/portfolio-risk-engine/providers"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
)

var (
	saveSnapshot bool
	throughStr   string
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().BoolVar(&saveSnapshot, "save", false, "persist the analysis snapshot to the database")
	analyzeCmd.Flags().StringVar(&throughStr, "through", "", "final valuation date (YYYY-MM-DD); defaults to today")
}

// providerPayload pairs one account's context with its raw rows
type providerPayload struct {
	Account providers.Account `json:"account"`
	Rows    json.RawMessage   `json:"rows"`
}

// analysisRequest is the on-disk input to the analyze command. Raw provider
// rows are normalized here; current positions and incomplete trades arrive
// already shaped by the positions feed and the lot matcher.
type analysisRequest struct {
	UserID           string                       `json:"userId"`
	Inception        string                       `json:"inception"`
	Plaid            []providerPayload            `json:"plaid"`
	SnapTrade        []providerPayload            `json:"snaptrade"`
	Flex             []providerPayload            `json:"flex"`
	CurrentPositions []*portfolio.CurrentPosition `json:"currentPositions"`
	IncompleteTrades []*portfolio.IncompleteTrade `json:"incompleteTrades"`
	CashFlows        []portfolio.CashFlow         `json:"cashFlows"`
}

var analyzeCmd = &cobra.Command{
	Use:        "analyze [flags] RequestFile",
	Short:      "Reconstruct a position timeline and compute NAV and returns",
	Args:       cobra.ExactArgs(1),
	ArgAliases: []string{"RequestFile"},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		raw, err := ioutil.ReadFile(args[0])
		if err != nil {
			log.Fatal().Err(err).Str("RequestFile", args[0]).Msg("could not read request file")
		}

		var request analysisRequest
		if err := json.Unmarshal(raw, &request); err != nil {
			log.Fatal().Err(err).Msg("could not unmarshal request file")
		}

		tz := common.GetTimezone()
		inception, err := time.ParseInLocation("2006-01-02", request.Inception, tz)
		if err != nil {
			log.Fatal().Err(err).Str("Inception", request.Inception).Msg("could not parse inception date")
		}

		through := time.Now().In(tz)
		if throughStr != "" {
			if through, err = time.ParseInLocation("2006-01-02", throughStr, tz); err != nil {
				log.Fatal().Err(err).Str("Through", throughStr).Msg("could not parse through date")
			}
		}

		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}
		common.SetupCache()

		normalizer := providers.NewNormalizer()
		for _, payload := range request.Plaid {
			rows, err := providers.ParsePlaidTransactions(payload.Rows)
			if err != nil {
				log.Fatal().Err(err).Str("AccountID", payload.Account.ID).Msg("could not parse plaid rows")
			}
			normalizer.NormalizePlaid(rows, payload.Account)
		}
		for _, payload := range request.SnapTrade {
			rows, err := providers.ParseSnapTradeActivities(payload.Rows)
			if err != nil {
				log.Fatal().Err(err).Str("AccountID", payload.Account.ID).Msg("could not parse snaptrade rows")
			}
			normalizer.NormalizeSnapTrade(rows, payload.Account)
		}
		for _, payload := range request.Flex {
			rows, err := providers.ParseFlexTrades(payload.Rows)
			if err != nil {
				log.Fatal().Err(err).Str("AccountID", payload.Account.ID).Msg("could not parse flex rows")
			}
			normalizer.NormalizeFlex(rows, payload.Account)
		}

		timeline, err := portfolio.BuildTimeline(ctx, normalizer.Transactions(), request.CurrentPositions, request.IncompleteTrades, inception)
		if err != nil {
			log.Fatal().Err(err).Msg("could not build position timeline")
		}

		series, err := portfolio.ComputeNAVSeries(ctx, timeline, request.CashFlows, data.GetManagerInstance(), inception, through)
		if err != nil {
			log.Fatal().Err(err).Msg("could not compute NAV series")
		}

		summary, err := series.Summarize(request.CashFlows)
		if err != nil {
			log.Fatal().Err(err).Msg("could not summarize returns")
		}

		for _, meas := range series.Measurements {
			fmt.Printf("%s\t%12.2f\t%12.2f\t%12.2f\n", meas.Time.Format("2006-01-02"), meas.SecuritiesValue, meas.Cash, meas.Value)
		}

		fmt.Printf("Modified Dietz:            %.4f\n", summary.ModifiedDietz)
		fmt.Printf("Modified Dietz annualized: %.4f\n", summary.ModifiedDietzAnnualized)
		fmt.Printf("Mean monthly return:       %.4f\n", summary.MeanMonthlyReturn)
		fmt.Printf("Monthly return stddev:     %.4f\n", summary.StdDevMonthlyReturn)
		if summary.BestMonth != nil {
			fmt.Printf("Best month:  %s %.4f\n", summary.BestMonth.Time.Format("2006-01"), summary.BestMonth.Return)
		}
		if summary.WorstMonth != nil {
			fmt.Printf("Worst month: %s %.4f\n", summary.WorstMonth.Time.Format("2006-01"), summary.WorstMonth.Return)
		}

		allWarnings := make([]string, 0, len(normalizer.Warnings())+len(timeline.Warnings)+len(series.Warnings))
		allWarnings = append(allWarnings, normalizer.Warnings()...)
		allWarnings = append(allWarnings, timeline.Warnings...)
		allWarnings = append(allWarnings, series.Warnings...)
		for _, warning := range allWarnings {
			fmt.Printf("WARN: %s\n", warning)
		}

		if saveSnapshot {
			snapshot := portfolio.NewSnapshot(request.UserID, timeline, series, summary)
			if err := snapshot.Save(ctx); err != nil {
				log.Fatal().Err(err).Msg("could not save analysis snapshot")
			}
			fmt.Printf("Saved snapshot %x for user %s\n", snapshot.ID, request.UserID)
		}
	},
}
