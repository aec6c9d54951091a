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
package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// rawTables maps each raw table to a display label for the summary.
var rawTables = []struct {
	table string
	label string
}{
	{"eod_prices", "End-of-day prices"},
	{"economic_series", "Economic series"},
	{"company_submissions", "Filing entities"},
	{"company_concepts", "Company concepts"},
}

// refinedTableLabels maps each refined table to a display label.
var refinedTableLabels = []struct {
	table string
	label string
}{
	{DailyFeatures, "Daily features"},
	{EconomicFeatures, "Economic features"},
	{QuarterlyFeatures, "Quarterly features"},
	{NormalizedQuarterlyFeatures, "Normalized quarterly features"},
	{FundamentalFeatures, "Fundamental features"},
}

// Summary builds a markdown document describing the library: who owns it,
// when it last saw new data, and how many rows each table holds.
func (myLibrary *Library) Summary(ctx context.Context) (string, error) {
	printer := message.NewPrinter(language.English)
	builder := strings.Builder{}

	builder.WriteString(fmt.Sprintf("# %s\n\n", myLibrary.Name))
	builder.WriteString(fmt.Sprintf("Owner: %s\n\n", myLibrary.Owner))

	lastUpdated, err := myLibrary.LastUpdated(ctx)
	if err != nil {
		return "", err
	}

	if lastUpdated.Year() <= 1 {
		builder.WriteString("No data has been installed yet; run `qfdata install` to get started.\n")
		return builder.String(), nil
	}

	builder.WriteString(fmt.Sprintf("Most recent observation: %s (%s)\n",
		lastUpdated.Format("2006-01-02"), timeago.English.Format(lastUpdated)))

	builder.WriteString("\n## Raw tables\n")
	for _, entry := range rawTables {
		count, err := myLibrary.tableCount(ctx, entry.table)
		if err != nil {
			return "", err
		}
		builder.WriteString(printer.Sprintf("- %s: %d rows\n", entry.label, count))
	}

	builder.WriteString("\n## Refined tables\n")
	for _, entry := range refinedTableLabels {
		count, err := myLibrary.tableCount(ctx, entry.table)
		if err != nil {
			return "", err
		}
		builder.WriteString(printer.Sprintf("- %s: %d rows\n", entry.label, count))
	}

	totalRaw, err := myLibrary.TotalRawRecords(ctx)
	if err != nil {
		return "", err
	}

	totalRefined, err := myLibrary.TotalRefinedRecords(ctx)
	if err != nil {
		return "", err
	}

	builder.WriteString(printer.Sprintf("\n%d raw rows and %d refined rows in total\n", totalRaw, totalRefined))

	return builder.String(), nil
}

func (myLibrary *Library) tableCount(ctx context.Context, table string) (int, error) {
	count := 0
	err := myLibrary.Pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, table)).Scan(&count)
	return count, err
}
