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
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/jackc/pgx/v5"
	"github.com/pelletier/go-toml/v2"
	"github.com/quantmill/qfdata/db"
	"github.com/quantmill/qfdata/library"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// qfdataConfig is the on-disk shape of ~/.qfdata.toml.
type qfdataConfig struct {
	DB struct {
		URL string `toml:"url"`
	} `toml:"db"`
	FRED struct {
		APIKey string `toml:"api_key"`
	} `toml:"fred"`
	BEA struct {
		APIKey string `toml:"api_key"`
	} `toml:"bea"`
	SEC struct {
		UserAgent string `toml:"user_agent"`
	} `toml:"sec"`
	Healthchecks struct {
		APIKey string `toml:"apikey"`
	} `toml:"healthchecks"`
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Gather database and data source configuration and setup schema",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := &library.Library{}
		config := qfdataConfig{}

		form := huh.NewForm(
			// Gather details about the library and who owns it
			huh.NewGroup(
				huh.NewInput().
					Title("Give the library a name:").
					Value(&myLibrary.Name),

				huh.NewInput().
					Title("Who owns the library?").
					Value(&myLibrary.Owner),
			),

			// Get details about the database
			huh.NewGroup(
				huh.NewInput().
					Title("Provide the DSN for connecting to your PostgreSQL database (postgres://[user[:password]@][netloc][:port][/dbname][?param1=value1&...])").
					Value(&myLibrary.DBUrl).
					Validate(func(dsn string) error {
						_, err := pgx.ParseConfig(dsn)
						return err
					}),
			),

			// Data source credentials; all are optional and only needed when
			// installing from the corresponding source
			huh.NewGroup(
				huh.NewInput().
					Title("FRED API key (leave blank to skip FRED):").
					Value(&config.FRED.APIKey),

				huh.NewInput().
					Title("BEA API key (leave blank to skip BEA):").
					Value(&config.BEA.APIKey),

				huh.NewInput().
					Title("SEC EDGAR User-Agent, e.g. 'Jane Doe jane@example.com' (leave blank to skip EDGAR):").
					Value(&config.SEC.UserAgent),

				huh.NewInput().
					Title("healthchecks.io API key (leave blank to disable monitoring):").
					Value(&config.Healthchecks.APIKey),
			),
		)

		err := form.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("error gathering library settings")
		}

		log.Info().Msg("creating database tables")

		// run migration
		dbURL := strings.Replace(myLibrary.DBUrl, "postgres://", "pgx5://", -1)
		err = db.Migrate(dbURL)
		if err != nil {
			log.Fatal().Err(err).Msg("error running database migration")
		}

		log.Info().Msg("database tables created")
		log.Info().Msg("Saving library name and owner to database")

		// save library name and owner to database
		if err := myLibrary.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}
		defer myLibrary.Close()

		err = myLibrary.SaveDB(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("error saving library settings to database")
		}

		// save settings to config file
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal().Err(err).Msg("could not determine user home directory")
		}

		config.DB.URL = myLibrary.DBUrl

		configFN := filepath.Join(home, ".qfdata.toml")
		log.Info().Str("ConfigFile", configFN).Msg("Saving connection info to config file")
		configData, err := toml.Marshal(config)
		if err != nil {
			log.Fatal().Err(err).Msg("could not marshal configuration data")
		}

		err = os.WriteFile(configFN, configData, 0644)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", configFN).Msg("could not save configuration to file")
		}

		log.Info().Msg("Your data library has been initialized")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
