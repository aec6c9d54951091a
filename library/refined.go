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
	"time"

	"github.com/quantmill/qfdata/data"
)

// Refined feature tables. All share the melted schema: one row per
// (entity, fiscal_year, fiscal_period, event_date, name, value), where the
// fiscal components stay at their zero values for date-indexed sets.
const (
	DailyFeatures               = "daily_features"
	EconomicFeatures            = "economic_features"
	QuarterlyFeatures           = "quarterly_features"
	NormalizedQuarterlyFeatures = "normalized_quarterly_features"
	AnnualFeatures              = "annual_features"
	NormalizedAnnualFeatures    = "normalized_annual_features"
	FundamentalFeatures         = "fundamental_features"
)

var refinedTables = map[string]bool{
	DailyFeatures:               true,
	EconomicFeatures:            true,
	QuarterlyFeatures:           true,
	NormalizedQuarterlyFeatures: true,
	AnnualFeatures:              true,
	NormalizedAnnualFeatures:    true,
	FundamentalFeatures:         true,
}

// UpsertFeatures writes melted refined rows into one of the feature tables,
// overwriting prior values sharing the same composite key. Every refined
// row's raw counterpart must already exist; the store's foreign keys reject
// orphans and cascade raw deletions into these tables.
func (myLibrary *Library) UpsertFeatures(ctx context.Context, table string, rows []*data.FeatureRow) (int, error) {
	if !refinedTables[table] {
		return 0, fmt.Errorf("unknown refined feature table %q", table)
	}

	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, err
	}

	sql := fmt.Sprintf(`INSERT INTO %[1]s (
	"entity",
	"fiscal_year",
	"fiscal_period",
	"event_date",
	"name",
	"value"
) VALUES (
	$1, $2, $3, $4, $5, $6
) ON CONFLICT ON CONSTRAINT %[1]s_pkey
DO UPDATE SET
	event_date = EXCLUDED.event_date,
	value = EXCLUDED.value;`, table)

	for _, row := range rows {
		_, err = tx.Exec(ctx, sql, row.Entity, row.Key.FiscalYear,
			row.Key.FiscalPeriod, row.Key.Date, row.Name, row.Value)
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				return 0, rollbackErr
			}
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return len(rows), nil
}

// Features reads an entity's melted refined rows from one of the feature
// tables over [start, end], sorted ascending by the composite time key.
func (myLibrary *Library) Features(ctx context.Context, table, entity string, start, end time.Time) ([]*data.FeatureRow, error) {
	if !refinedTables[table] {
		return nil, fmt.Errorf("unknown refined feature table %q", table)
	}

	sql := fmt.Sprintf(`SELECT entity, fiscal_year, fiscal_period, event_date, name, value
FROM %s
WHERE entity = $1 AND event_date >= $2 AND event_date <= $3
ORDER BY fiscal_year ASC, fiscal_period ASC, event_date ASC, name ASC`, table)

	rows, err := myLibrary.Pool.Query(ctx, sql, entity, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// FeaturesForEntities reads melted refined rows for several entities at
// once, e.g. an industry's reference population.
func (myLibrary *Library) FeaturesForEntities(ctx context.Context, table string, entities []string, start, end time.Time) ([]*data.FeatureRow, error) {
	if !refinedTables[table] {
		return nil, fmt.Errorf("unknown refined feature table %q", table)
	}

	sql := fmt.Sprintf(`SELECT entity, fiscal_year, fiscal_period, event_date, name, value
FROM %s
WHERE entity = ANY($1) AND event_date >= $2 AND event_date <= $3
ORDER BY fiscal_year ASC, fiscal_period ASC, event_date ASC, name ASC`, table)

	rows, err := myLibrary.Pool.Query(ctx, sql, entities, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// FeatureEntitySet returns every entity with at least lb rows in the given
// feature table.
func (myLibrary *Library) FeatureEntitySet(ctx context.Context, table string, lb int) (map[string]struct{}, error) {
	if !refinedTables[table] {
		return nil, fmt.Errorf("unknown refined feature table %q", table)
	}

	return myLibrary.idSet(ctx, fmt.Sprintf(
		`SELECT entity FROM %s GROUP BY entity HAVING count(*) >= $1`, table), lb)
}

type featureRowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanFeatureRows(rows featureRowScanner) ([]*data.FeatureRow, error) {
	var out []*data.FeatureRow

	for rows.Next() {
		row := &data.FeatureRow{}
		var fiscalYear int
		var fiscalPeriod string
		var eventDate time.Time
		if err := rows.Scan(&row.Entity, &fiscalYear, &fiscalPeriod, &eventDate, &row.Name, &row.Value); err != nil {
			return nil, err
		}
		row.Key = data.TimeKey{FiscalYear: fiscalYear, FiscalPeriod: fiscalPeriod, Date: eventDate}
		out = append(out, row)
	}

	return out, rows.Err()
}
