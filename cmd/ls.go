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

	"github.com/quantmill/qfdata/feature"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	lsStrategy string
	lsLb       int
)

// lsCmd represents the ls command
var lsCmd = &cobra.Command{
	Use:   "ls <feature-set>",
	Short: "List the entities a feature set has data for",
	Long: `The ls sub-command lists the entities (series IDs, tickers, CIKs) a
feature set has data for under the given strategy. Use --lb to require a
minimum number of stored rows per entity.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"economic", "daily", "quarterly", "normalized", "annual", "normalized-annual", "fundamental"},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		strategy := feature.Strategy(lsStrategy)

		var (
			entities map[string]struct{}
			err      error
		)

		switch args[0] {
		case "economic":
			economic := feature.NewEconomic(nil, myLibrary)
			entities, err = economic.EntitySet(ctx, strategy)
		case "daily":
			daily := feature.NewDaily(nil, myLibrary)
			entities, err = daily.TickerSet(ctx, strategy, lsLb)
		case "quarterly":
			quarterly := feature.NewQuarterly(nil, myLibrary)
			entities, err = quarterly.CIKSet(ctx, strategy, lsLb)
		case "normalized":
			normalized := feature.NewNormalizedQuarterly(feature.NewQuarterly(nil, myLibrary))
			entities, err = normalized.CIKSet(ctx, lsLb)
		case "annual":
			annual := feature.NewAnnual(nil, myLibrary)
			entities, err = annual.CIKSet(ctx, strategy, lsLb)
		case "normalized-annual":
			normalizedAnnual := feature.NewNormalizedAnnual(feature.NewAnnual(nil, myLibrary))
			entities, err = normalizedAnnual.CIKSet(ctx, lsLb)
		case "fundamental":
			fundamental := feature.NewFundamental(feature.NewDaily(nil, myLibrary), feature.NewQuarterly(nil, myLibrary))
			entities, err = fundamental.TickerSet(ctx, strategy, lsLb)
		}

		if err != nil {
			log.Fatal().Err(err).Str("FeatureSet", args[0]).Str("Strategy", lsStrategy).Msg("could not enumerate entities")
		}

		printEntitySet(entities)
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().StringVar(&lsStrategy, "strategy", string(feature.FromRefined), "data strategy to enumerate (raw, refined, other-refined)")
	lsCmd.Flags().IntVar(&lsLb, "lb", 1, "minimum number of stored rows per entity")
}
