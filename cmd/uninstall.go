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
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/jackc/pgx/v5"
	"github.com/quantmill/qfdata/library"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var uninstallYes bool

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall <source> <entity...>",
	Short: "Remove entities and their derived feature rows from the library",
	Long: `The uninstall sub-command removes an entity's raw rows from the library.
Refined feature rows derived from those raw rows are removed by the store's
cascade in the same transaction, so the library never holds features for
data it no longer has.

Sources and their entities:

	* fred: series IDs
	* yfinance: tickers
	* sec: tickers (removes the filing entity and all of its facts)`,
	Args:      cobra.MinimumNArgs(2),
	ValidArgs: []string{"fred", "yfinance", "sec"},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		source := args[0]
		entities := args[1:]

		if !uninstallYes {
			confirmed := false
			confirmForm := huh.NewForm(
				huh.NewGroup(
					huh.NewConfirm().
						Title(fmt.Sprintf("Remove %d %s entities and their derived features?", len(entities), source)).
						Value(&confirmed),
				),
			)

			if err := confirmForm.Run(); err != nil {
				log.Fatal().Err(err).Msg("failed to create wizard")
			}

			if !confirmed {
				fmt.Println("Ok, nothing removed")
				return
			}
		}

		for _, entity := range entities {
			if err := uninstallEntity(ctx, myLibrary, source, entity); err != nil {
				log.Fatal().Err(err).Str("Entity", entity).Msg("could not remove entity")
			}
			log.Info().Str("Entity", entity).Msg("entity removed")
		}
	},
}

func uninstallEntity(ctx context.Context, myLibrary *library.Library, source, entity string) error {
	switch source {
	case "fred":
		return myLibrary.DeleteEconomicSeries(ctx, entity)
	case "yfinance":
		return myLibrary.DeleteEodTicker(ctx, entity)
	case "sec":
		sub, err := myLibrary.SubmissionForTicker(ctx, entity)
		if errors.Is(err, pgx.ErrNoRows) {
			// allow passing the CIK directly for delisted tickers
			return myLibrary.DeleteCIK(ctx, entity)
		}
		if err != nil {
			return err
		}
		return myLibrary.DeleteCIK(ctx, sub.CIK)
	}

	return fmt.Errorf("unknown source: %s", source)
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
	uninstallCmd.Flags().BoolVarP(&uninstallYes, "yes", "y", false, "skip the confirmation prompt")
}
