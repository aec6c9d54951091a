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
	"fmt"

	"github.com/gosimple/slug"
	"github.com/quantmill/qfdata/data"
	"github.com/quantmill/qfdata/feature"
	"github.com/quantmill/qfdata/healthcheck"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	installRawOnly     bool
	installRefinedOnly bool
	installMonitor     bool
	installTickersFile string
	installAllTickers  bool
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install <source>",
	Short: "Fetch data from a source and store it in the library",
	Long: `The install sub-command fetches data from a source and stores it in the
data library. Unless limited with --raw-only or --refined-only, installing
writes both the raw rows as reported by the source and the refined feature
rows derived from them.

Each entity (series, ticker, national accounts table) installs independently:
a failed fetch for one entity is recorded in the run report and does not
abort the rest of the batch. The command exits non-zero only for
configuration-level problems such as a missing API key.

Also see: update, uninstall, ls`,
}

// installFredCmd represents `install fred`
var installFredCmd = &cobra.Command{
	Use:   "fred [series-id...]",
	Short: "Install economic data series",
	Long: `Install economic data series. With no arguments the default series set
is installed.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		economic := feature.NewEconomic(newFRED(), myLibrary)

		finishRun("install fred", runPhases(
			phase{"raw", !installRefinedOnly, func() *data.RunReport {
				return economic.InstallRaw(ctx, args)
			}},
			phase{"refined", !installRawOnly, func() *data.RunReport {
				return economic.InstallRefined(ctx, args)
			}},
		))
	},
}

// installBeaCmd represents `install bea`
var installBeaCmd = &cobra.Command{
	Use:   "bea [table-name...]",
	Short: "Install national income and product account tables",
	Long: `Install national income and product account tables as raw economic
observations. With no arguments the default table set is installed. NIPA
observations store under series IDs of the form <table>/<series code> and
refine along with the rest of the economic series.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		nipa := feature.NewNIPA(newBEA(), myLibrary)

		finishRun("install bea", runPhases(
			phase{"raw", true, func() *data.RunReport {
				return nipa.InstallRaw(ctx, args)
			}},
		))
	},
}

// installYFinanceCmd represents `install yfinance`
var installYFinanceCmd = &cobra.Command{
	Use:   "yfinance [ticker...]",
	Short: "Install daily stock price history",
	Long: `Install daily stock price history for the given tickers. Tickers can
also be read from a CSV file with --tickers-file, or expanded to every ticker
known to the library's filing entities with --all.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		daily := feature.NewDaily(newYFinance(), myLibrary)
		tickers := resolveTickers(ctx, args, func(ctx context.Context) (map[string]struct{}, error) {
			return daily.CandidateTickerSet(ctx)
		})

		finishRun("install yfinance", runPhases(
			phase{"raw", !installRefinedOnly, func() *data.RunReport {
				return daily.InstallRaw(ctx, tickers)
			}},
			phase{"refined", !installRawOnly, func() *data.RunReport {
				return daily.InstallRefined(ctx, tickers)
			}},
		))
	},
}

// installSecCmd represents `install sec`
var installSecCmd = &cobra.Command{
	Use:   "sec <ticker...>",
	Short: "Install company fundamentals from regulatory filings",
	Long: `Install company fundamentals for the given tickers. Raw installs store
the filing entity and its reported facts; refined installs derive the
quarterly and annual feature rows and their industry-normalized scores, in
that order, since the scores read the refined rows of the whole peer
group.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		client := newSEC()
		quarterly := feature.NewQuarterly(client, myLibrary)
		normalized := feature.NewNormalizedQuarterly(quarterly)
		annual := feature.NewAnnual(client, myLibrary)
		normalizedAnnual := feature.NewNormalizedAnnual(annual)
		tickers := resolveTickers(ctx, args, nil)

		finishRun("install sec", runPhases(
			phase{"raw", !installRefinedOnly, func() *data.RunReport {
				return quarterly.InstallRaw(ctx, tickers)
			}},
			phase{"quarterly", !installRawOnly, func() *data.RunReport {
				return quarterly.InstallRefined(ctx, tickers)
			}},
			phase{"normalized-quarterly", !installRawOnly, func() *data.RunReport {
				return normalized.InstallRefined(ctx, tickers)
			}},
			phase{"annual", !installRawOnly, func() *data.RunReport {
				return annual.InstallRefined(ctx, tickers)
			}},
			phase{"normalized-annual", !installRawOnly, func() *data.RunReport {
				return normalizedAnnual.InstallRefined(ctx, tickers)
			}},
		))
	},
}

// installFundamentalCmd represents `install fundamental`
var installFundamentalCmd = &cobra.Command{
	Use:   "fundamental [ticker...]",
	Short: "Install joined daily and quarterly feature rows",
	Long: `Install the joined daily-plus-fundamentals feature rows for the given
tickers. The set derives entirely from the refined daily and quarterly
tables; install those first. With no arguments every ticker refined on both
sides is joined.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		daily := feature.NewDaily(newYFinance(), myLibrary)
		quarterly := feature.NewQuarterly(newSEC(), myLibrary)
		fundamental := feature.NewFundamental(daily, quarterly)

		tickers := resolveTickers(ctx, args, func(ctx context.Context) (map[string]struct{}, error) {
			return fundamental.TickerSet(ctx, feature.FromOtherRefined, 1)
		})

		finishRun("install fundamental", runPhases(
			phase{"refined", true, func() *data.RunReport {
				return fundamental.InstallRefined(ctx, tickers)
			}},
		))
	},
}

// phase is one stage of an install run: raw rows, then refined rows.
type phase struct {
	name    string
	enabled bool
	run     func() *data.RunReport
}

func runPhases(phases ...phase) []*data.RunReport {
	reports := make([]*data.RunReport, 0, len(phases))
	for _, p := range phases {
		if !p.enabled {
			continue
		}

		report := p.run()
		printReport(report)
		reports = append(reports, report)
	}
	return reports
}

// finishRun pings the run's health check when monitoring is requested. The
// check is created on first use from a slug of the command name.
func finishRun(runName string, reports []*data.RunReport) {
	if !installMonitor {
		return
	}

	if viper.GetString("healthchecks.apikey") == "" {
		log.Warn().Msg("--monitor requested but healthchecks.apikey is not configured")
		return
	}

	checkSlug := slug.Make(fmt.Sprintf("qfdata %s", runName))
	// runs are assumed daily; adjust the schedule on healthchecks.io if the
	// install is cron'd differently
	checkID, err := healthcheck.Create(runName, checkSlug, []string{"qfdata"}, "0 0 * * *")
	if err != nil {
		log.Warn().Err(err).Msg("could not create health check")
		return
	}

	failed := 0
	for _, report := range reports {
		failed += report.NumFailed()
	}

	if err := healthcheck.Ping(checkID, failed > 0); err != nil {
		log.Warn().Err(err).Msg("could not ping health check")
	}
}

// resolveTickers merges positional args with --tickers-file, or falls back
// to the candidate set when --all is given.
func resolveTickers(ctx context.Context, args []string, candidates func(context.Context) (map[string]struct{}, error)) []string {
	tickers := args
	if installTickersFile != "" {
		tickers = append(tickers, readTickersFile(installTickersFile)...)
	}

	if installAllTickers && candidates != nil {
		set, err := candidates(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not enumerate candidate tickers")
		}
		for ticker := range set {
			tickers = append(tickers, ticker)
		}
	}

	if len(tickers) == 0 {
		log.Fatal().Msg("no tickers given; pass tickers as arguments, --tickers-file, or --all")
	}

	return tickers
}

func init() {
	rootCmd.AddCommand(installCmd)
	installCmd.AddCommand(installFredCmd)
	installCmd.AddCommand(installBeaCmd)
	installCmd.AddCommand(installYFinanceCmd)
	installCmd.AddCommand(installSecCmd)
	installCmd.AddCommand(installFundamentalCmd)

	installCmd.PersistentFlags().BoolVar(&installRawOnly, "raw-only", false, "only install raw rows as reported by the source")
	installCmd.PersistentFlags().BoolVar(&installRefinedOnly, "refined-only", false, "only derive refined rows from already-installed raw rows")
	installCmd.PersistentFlags().BoolVar(&installMonitor, "monitor", false, "ping a healthchecks.io check when the run completes")
	installCmd.PersistentFlags().StringVar(&installTickersFile, "tickers-file", "", "CSV file with a `ticker` column")
	installCmd.PersistentFlags().BoolVar(&installAllTickers, "all", false, "expand to every candidate ticker known to the library")
}
