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
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gocarina/gocsv"
	"github.com/quantmill/qfdata/data"
	"github.com/quantmill/qfdata/library"
	"github.com/quantmill/qfdata/provider"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// openLibrary connects to the configured data library or exits. Missing
// database configuration is a configuration-level failure, never a
// per-entity one.
func openLibrary(ctx context.Context) *library.Library {
	myLibrary, err := library.NewFromDB(ctx, viper.GetString("db.url"))
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to library")
	}
	return myLibrary
}

func newFRED() *provider.FRED {
	client, err := provider.NewFRED(viper.GetString("fred.api_key"), viper.GetInt("fred.rate_limit"))
	if err != nil {
		log.Fatal().Err(err).Msg("FRED is not configured; run `qfdata init` or set fred.api_key")
	}
	return client
}

func newYFinance() *provider.YFinance {
	return provider.NewYFinance(viper.GetInt("yfinance.rate_limit"))
}

func newSEC() *provider.SEC {
	client, err := provider.NewSEC(viper.GetString("sec.user_agent"), viper.GetInt("sec.rate_limit"))
	if err != nil {
		log.Fatal().Err(err).Msg("SEC EDGAR is not configured; run `qfdata init` or set sec.user_agent")
	}
	return client
}

func newBEA() *provider.BEA {
	client, err := provider.NewBEA(viper.GetString("bea.api_key"), viper.GetInt("bea.rate_limit"))
	if err != nil {
		log.Fatal().Err(err).Msg("BEA is not configured; run `qfdata init` or set bea.api_key")
	}
	return client
}

// tickerRow is one line of a --tickers-file CSV.
type tickerRow struct {
	Ticker string `csv:"ticker"`
}

// readTickersFile loads tickers from a CSV file with a `ticker` header
// column.
func readTickersFile(fileName string) []string {
	fh, err := os.Open(fileName)
	if err != nil {
		log.Fatal().Err(err).Str("FileName", fileName).Msg("could not open tickers file")
	}
	defer fh.Close()

	var rows []*tickerRow
	if err := gocsv.UnmarshalFile(fh, &rows); err != nil {
		log.Fatal().Err(err).Str("FileName", fileName).Msg("could not parse tickers file")
	}

	tickers := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Ticker != "" {
			tickers = append(tickers, row.Ticker)
		}
	}
	return tickers
}

var (
	reportTitleStyle  = lipgloss.NewStyle().Bold(true)
	reportBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	failedStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	skippedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// printReport renders a run report as a table of per-entity outcomes plus a
// one-line summary. Failed entities color red, skipped entities orange.
func printReport(report *data.RunReport) {
	outcomes := report.Outcomes

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(reportBorderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			// row 0 is the header; data rows are 1-based
			if row <= 0 || row > len(outcomes) {
				return lipgloss.NewStyle().Padding(0, 1)
			}
			switch outcomes[row-1].Status {
			case data.StatusFailed:
				return failedStyle.Padding(0, 1)
			case data.StatusSkipped:
				return skippedStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("ENTITY", "STATUS", "ROWS", "DETAIL")

	for _, outcome := range outcomes {
		t.Row(outcome.Entity, string(outcome.Status), fmt.Sprintf("%d", outcome.Rows), outcome.Reason)
	}

	fmt.Println(reportTitleStyle.Render(fmt.Sprintf("%s / %s (run %s)",
		report.Source, report.Dataset, report.RunID.String()[:8])))
	fmt.Println(t.Render())
	fmt.Printf("%d rows across %d entities in %s; %d failed\n",
		report.TotalRows(), len(outcomes), report.EndTime.Sub(report.StartTime).Round(time.Millisecond),
		report.NumFailed())
}

// printEntitySet renders an entity set in sorted order, one per line.
func printEntitySet(entities map[string]struct{}) {
	sorted := make([]string, 0, len(entities))
	for entity := range entities {
		sorted = append(sorted, entity)
	}
	sort.Strings(sorted)

	for _, entity := range sorted {
		fmt.Println(entity)
	}
}
