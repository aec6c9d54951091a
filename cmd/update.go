// Copyright 2024
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

	"github.com/quantmill/qfdata/data"
	"github.com/quantmill/qfdata/feature"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update <source>",
	Short: "Fetch rows newer than what the library holds and re-derive features",
	Long: `The update sub-command fetches only rows newer than the latest stored
observation for each installed entity, then re-derives the refined feature
rows over the full history. Entities that have never been installed fall back
to a full fetch.

With no entity arguments every installed entity for the source is updated.`,
}

// updateFredCmd represents `update fred`
var updateFredCmd = &cobra.Command{
	Use:   "fred [series-id...]",
	Short: "Update installed economic data series",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		// with no arguments the configured series set updates; the set
		// excludes national accounts series, which have no FRED mirror
		economic := feature.NewEconomic(newFRED(), myLibrary)

		finishRun("update fred", runPhases(
			phase{"raw", true, func() *data.RunReport {
				return economic.UpdateRaw(ctx, args)
			}},
			phase{"refined", true, func() *data.RunReport {
				return economic.InstallRefined(ctx, args)
			}},
		))
	},
}

// updateYFinanceCmd represents `update yfinance`
var updateYFinanceCmd = &cobra.Command{
	Use:   "yfinance [ticker...]",
	Short: "Update installed daily stock price history",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		daily := feature.NewDaily(newYFinance(), myLibrary)
		tickers := installedEntities(args, func() (map[string]struct{}, error) {
			return daily.TickerSet(ctx, feature.FromRaw, 1)
		})

		finishRun("update yfinance", runPhases(
			phase{"raw", true, func() *data.RunReport {
				return daily.UpdateRaw(ctx, tickers)
			}},
			phase{"refined", true, func() *data.RunReport {
				return daily.InstallRefined(ctx, tickers)
			}},
		))
	},
}

// updateSecCmd represents `update sec`
var updateSecCmd = &cobra.Command{
	Use:   "sec [ticker...]",
	Short: "Update installed company fundamentals",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		client := newSEC()
		quarterly := feature.NewQuarterly(client, myLibrary)
		normalized := feature.NewNormalizedQuarterly(quarterly)
		annual := feature.NewAnnual(client, myLibrary)
		normalizedAnnual := feature.NewNormalizedAnnual(annual)

		tickers := args
		if len(tickers) == 0 {
			// only entities with a known ticker can refresh from EDGAR
			set, err := myLibrary.SubmissionTickerSet(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("could not enumerate installed tickers")
			}
			for ticker := range set {
				tickers = append(tickers, ticker)
			}
		}

		finishRun("update sec", runPhases(
			phase{"raw", true, func() *data.RunReport {
				return quarterly.UpdateRaw(ctx, tickers)
			}},
			phase{"quarterly", true, func() *data.RunReport {
				return quarterly.InstallRefined(ctx, tickers)
			}},
			phase{"normalized-quarterly", true, func() *data.RunReport {
				return normalized.InstallRefined(ctx, tickers)
			}},
			phase{"annual", true, func() *data.RunReport {
				return annual.InstallRefined(ctx, tickers)
			}},
			phase{"normalized-annual", true, func() *data.RunReport {
				return normalizedAnnual.InstallRefined(ctx, tickers)
			}},
		))
	},
}

// installedEntities expands empty args to every installed entity.
func installedEntities(args []string, installed func() (map[string]struct{}, error)) []string {
	if len(args) > 0 {
		return args
	}

	set, err := installed()
	if err != nil {
		log.Fatal().Err(err).Msg("could not enumerate installed entities")
	}

	entities := make([]string, 0, len(set))
	for entity := range set {
		entities = append(entities, entity)
	}

	if len(entities) == 0 {
		log.Fatal().Msg("nothing is installed for this source; run `qfdata install` first")
	}

	return entities
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.AddCommand(updateFredCmd)
	updateCmd.AddCommand(updateYFinanceCmd)
	updateCmd.AddCommand(updateSecCmd)

	updateCmd.PersistentFlags().BoolVar(&installMonitor, "monitor", false, "ping a healthchecks.io check when the run completes")
}
