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
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/quantmill/qfdata/data"
)

// UpsertEodQuotes writes raw end-of-day price rows, overwriting any prior
// row sharing the same (ticker, event_date) key. Re-running an install with
// identical upstream data is a storage no-op.
func (myLibrary *Library) UpsertEodQuotes(ctx context.Context, quotes []*data.EodQuote) (int, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, err
	}

	for _, quote := range quotes {
		_, err = tx.Exec(ctx, `INSERT INTO eod_prices (
	"ticker",
	"event_date",
	"open",
	"high",
	"low",
	"close",
	"volume"
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
) ON CONFLICT ON CONSTRAINT eod_prices_pkey
DO UPDATE SET
	open = EXCLUDED.open,
	high = EXCLUDED.high,
	low = EXCLUDED.low,
	close = EXCLUDED.close,
	volume = EXCLUDED.volume;`, quote.Ticker, quote.EventDate, quote.Open,
			quote.High, quote.Low, quote.Close, quote.Volume)
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

	return len(quotes), nil
}

// EodQuotes returns the raw price rows for a ticker over [start, end],
// sorted ascending by date.
func (myLibrary *Library) EodQuotes(ctx context.Context, ticker string, start, end time.Time) ([]*data.EodQuote, error) {
	var quotes []*data.EodQuote
	err := pgxscan.Select(ctx, myLibrary.Pool, &quotes,
		`SELECT ticker, event_date, open, high, low, close, volume
FROM eod_prices
WHERE ticker = $1 AND event_date >= $2 AND event_date <= $3
ORDER BY event_date ASC`, ticker, start, end)
	return quotes, err
}

// EodTickerSet returns every ticker with at least lb raw price rows.
func (myLibrary *Library) EodTickerSet(ctx context.Context, lb int) (map[string]struct{}, error) {
	return myLibrary.idSet(ctx,
		`SELECT ticker FROM eod_prices GROUP BY ticker HAVING count(event_date) >= $1`, lb)
}

// LatestEodDate returns the most recent stored price date for a ticker, or
// the zero time when the ticker has no rows.
func (myLibrary *Library) LatestEodDate(ctx context.Context, ticker string) (time.Time, error) {
	return myLibrary.latestDate(ctx,
		`SELECT coalesce(max(event_date), '0001-01-01'::date) FROM eod_prices WHERE ticker = $1`, ticker)
}

// DeleteEodTicker removes all raw price rows for a ticker along with their
// dependent refined rows.
func (myLibrary *Library) DeleteEodTicker(ctx context.Context, ticker string) error {
	_, err := myLibrary.Pool.Exec(ctx, `DELETE FROM eod_prices WHERE ticker = $1`, ticker)
	return err
}

// UpsertEconomicObservations writes raw economic series rows, overwriting
// revisions that share the same (series_id, event_date) key.
func (myLibrary *Library) UpsertEconomicObservations(ctx context.Context, observations []*data.EconomicObservation) (int, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, err
	}

	for _, obs := range observations {
		_, err = tx.Exec(ctx, `INSERT INTO economic_series (
	"series_id",
	"event_date",
	"value"
) VALUES (
	$1, $2, $3
) ON CONFLICT ON CONSTRAINT economic_series_pkey
DO UPDATE SET
	value = EXCLUDED.value;`, obs.SeriesID, obs.EventDate, obs.Value)
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

	return len(observations), nil
}

// EconomicObservations returns the raw rows for the given series IDs over
// [start, end], sorted ascending by date.
func (myLibrary *Library) EconomicObservations(ctx context.Context, seriesIDs []string, start, end time.Time) ([]*data.EconomicObservation, error) {
	var observations []*data.EconomicObservation
	err := pgxscan.Select(ctx, myLibrary.Pool, &observations,
		`SELECT series_id, event_date, value
FROM economic_series
WHERE series_id = ANY($1) AND event_date >= $2 AND event_date <= $3
ORDER BY event_date ASC`, seriesIDs, start, end)
	return observations, err
}

// EconomicSeriesSet returns every series ID with at least lb raw rows.
func (myLibrary *Library) EconomicSeriesSet(ctx context.Context, lb int) (map[string]struct{}, error) {
	return myLibrary.idSet(ctx,
		`SELECT series_id FROM economic_series GROUP BY series_id HAVING count(event_date) >= $1`, lb)
}

// LatestEconomicDate returns the most recent stored date for a series, or
// the zero time when the series has no rows.
func (myLibrary *Library) LatestEconomicDate(ctx context.Context, seriesID string) (time.Time, error) {
	return myLibrary.latestDate(ctx,
		`SELECT coalesce(max(event_date), '0001-01-01'::date) FROM economic_series WHERE series_id = $1`, seriesID)
}

// DeleteEconomicSeries removes all raw rows for a series along with their
// dependent refined rows.
func (myLibrary *Library) DeleteEconomicSeries(ctx context.Context, seriesID string) error {
	_, err := myLibrary.Pool.Exec(ctx, `DELETE FROM economic_series WHERE series_id = $1`, seriesID)
	return err
}

// UpsertSubmissions writes filing-entity descriptions keyed by CIK.
func (myLibrary *Library) UpsertSubmissions(ctx context.Context, submissions []*data.Submission) (int, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, err
	}

	for _, sub := range submissions {
		_, err = tx.Exec(ctx, `INSERT INTO company_submissions (
	"cik",
	"ticker",
	"entity_name",
	"sic"
) VALUES (
	$1, $2, $3, $4
) ON CONFLICT ON CONSTRAINT company_submissions_pkey
DO UPDATE SET
	ticker = EXCLUDED.ticker,
	entity_name = EXCLUDED.entity_name,
	sic = EXCLUDED.sic;`, sub.CIK, sub.Ticker, sub.EntityName, sub.SIC)
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

	return len(submissions), nil
}

// SubmissionForTicker looks up the filing entity associated with a ticker.
// pgx.ErrNoRows is returned when the ticker is unknown.
func (myLibrary *Library) SubmissionForTicker(ctx context.Context, ticker string) (*data.Submission, error) {
	sub := &data.Submission{}
	err := pgxscan.Get(ctx, myLibrary.Pool, sub,
		`SELECT cik, ticker, entity_name, sic FROM company_submissions WHERE ticker = $1`, ticker)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// SubmissionTickerSet returns every ticker known to the filing-entity
// table. These are the candidates for a price history install.
func (myLibrary *Library) SubmissionTickerSet(ctx context.Context) (map[string]struct{}, error) {
	return myLibrary.idSet(ctx,
		`SELECT ticker FROM company_submissions WHERE ticker <> ''`)
}

// CIKsForIndustry returns the CIKs of every filing entity whose SIC code
// starts with the given prefix.
func (myLibrary *Library) CIKsForIndustry(ctx context.Context, sicPrefix string) (map[string]struct{}, error) {
	return myLibrary.idSet(ctx,
		`SELECT cik FROM company_submissions WHERE sic LIKE $1 || '%'`, sicPrefix)
}

// UpsertConceptFacts writes raw company-concept rows, overwriting revisions
// of the same (cik, tag, fiscal year, fiscal period) key.
func (myLibrary *Library) UpsertConceptFacts(ctx context.Context, facts []*data.ConceptFact) (int, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, err
	}

	for _, fact := range facts {
		_, err = tx.Exec(ctx, `INSERT INTO company_concepts (
	"cik",
	"tag",
	"fiscal_year",
	"fiscal_period",
	"filed",
	"form",
	"units",
	"value"
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
) ON CONFLICT ON CONSTRAINT company_concepts_pkey
DO UPDATE SET
	filed = EXCLUDED.filed,
	form = EXCLUDED.form,
	units = EXCLUDED.units,
	value = EXCLUDED.value;`, fact.CIK, fact.Tag, fact.FiscalYear, fact.FiscalPeriod,
			fact.Filed, fact.Form, fact.Units, fact.Value)
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

	return len(facts), nil
}

// ConceptFacts returns a company's raw concept rows for the given tags with
// filing dates in [start, end], sorted by the composite fiscal index.
func (myLibrary *Library) ConceptFacts(ctx context.Context, cik string, tags []string, start, end time.Time) ([]*data.ConceptFact, error) {
	var facts []*data.ConceptFact
	err := pgxscan.Select(ctx, myLibrary.Pool, &facts,
		`SELECT cik, tag, fiscal_year, fiscal_period, filed, form, units, value
FROM company_concepts
WHERE cik = $1 AND tag = ANY($2) AND filed >= $3 AND filed <= $4
ORDER BY fiscal_year ASC, fiscal_period ASC, filed ASC`, cik, tags, start, end)
	return facts, err
}

// ConceptCIKSet returns every CIK with at least lb raw concept rows.
func (myLibrary *Library) ConceptCIKSet(ctx context.Context, lb int) (map[string]struct{}, error) {
	return myLibrary.idSet(ctx,
		`SELECT cik FROM company_concepts GROUP BY cik HAVING count(filed) >= $1`, lb)
}

// LatestFiledDate returns the most recent filing date stored for a company,
// or the zero time when the company has no rows.
func (myLibrary *Library) LatestFiledDate(ctx context.Context, cik string) (time.Time, error) {
	return myLibrary.latestDate(ctx,
		`SELECT coalesce(max(filed), '0001-01-01'::date) FROM company_concepts WHERE cik = $1`, cik)
}

// DeleteCIK removes a filing entity, its raw concept rows, and all
// dependent refined rows.
func (myLibrary *Library) DeleteCIK(ctx context.Context, cik string) error {
	_, err := myLibrary.Pool.Exec(ctx, `DELETE FROM company_submissions WHERE cik = $1`, cik)
	return err
}

func (myLibrary *Library) idSet(ctx context.Context, sql string, args ...any) (map[string]struct{}, error) {
	rows, err := myLibrary.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}

	return ids, rows.Err()
}

func (myLibrary *Library) latestDate(ctx context.Context, sql string, args ...any) (time.Time, error) {
	var latest time.Time
	if err := myLibrary.Pool.QueryRow(ctx, sql, args...).Scan(&latest); err != nil {
		return time.Time{}, err
	}

	// the coalesce sentinel means no rows exist
	if latest.Year() <= 1 {
		return time.Time{}, nil
	}

	return latest, nil
}
