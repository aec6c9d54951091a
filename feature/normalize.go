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
package feature

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/quantmill/qfdata/data"
)

// Rule describes how a raw column is refined.
type Rule int

const (
	// PassThrough keeps values as-is, forward-filling gaps with the most
	// recent preceding value.
	PassThrough Rule = iota

	// ScaleDrift converts values whose magnitude trends over time (price
	// levels, GDP, money supply) into period-over-period log changes so
	// they're comparable across entities and time.
	ScaleDrift
)

var funcColRe = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// LogChangeCol returns the refined column name for a scale-drift column,
// e.g. LOG_CHANGE(close).
func LogChangeCol(name string) string {
	return fmt.Sprintf("LOG_CHANGE(%s)", name)
}

// ParseFuncCol splits a functional column name like LOG_CHANGE(close) into
// its function name and argument. It returns ok=false for plain column
// names.
func ParseFuncCol(name string) (fn string, arg string, ok bool) {
	match := funcColRe.FindStringSubmatch(name)
	if match == nil {
		return "", "", false
	}
	return match[1], strings.TrimSpace(match[2]), true
}

// IsLogChangeCol reports whether a refined column holds log-change values.
func IsLogChangeCol(name string) bool {
	fn, _, ok := ParseFuncCol(name)
	return ok && fn == "LOG_CHANGE"
}

// BaseCol returns the raw column a refined column was derived from: the
// function argument for functional columns, the name itself otherwise.
func BaseCol(name string) string {
	if _, arg, ok := ParseFuncCol(name); ok {
		return arg
	}
	return name
}

// LogChange converts a level series into period-over-period log changes:
// out[t] = ln(v_t) - ln(v_{t-1}). The first position has no predecessor and
// is left NaN; Normalize drops that row from the output. Any remaining NaN
// or ±Inf (a zero or negative base, or a raw gap) resolves to 0, meaning
// "no change".
func LogChange(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(out) == 0 {
		return out
	}

	out[0] = math.NaN()
	for t := 1; t < len(xs); t++ {
		change := math.Log(xs[t]) - math.Log(xs[t-1])
		if math.IsNaN(change) || math.IsInf(change, 0) {
			change = 0.0
		}
		out[t] = change
	}

	return out
}

// ForwardFill replaces each NaN with the most recent preceding non-NaN
// value. ±Inf values are treated as missing before filling. A leading NaN
// has no prior value and remains NaN.
func ForwardFill(xs []float64) []float64 {
	out := make([]float64, len(xs))
	last := math.NaN()

	for i, x := range xs {
		if math.IsInf(x, 0) {
			x = math.NaN()
		}
		if math.IsNaN(x) {
			x = last
		} else {
			last = x
		}
		out[i] = x
	}

	return out
}

// Normalize applies the refinement rules to a raw wide table and returns
// the refined table:
//
//  1. columns marked ScaleDrift become log-change columns, renamed with the
//     LOG_CHANGE(...) convention; the first row of a log-change series is
//     undefined and dropped
//  2. gaps in pass-through columns forward-fill; gaps in log-change columns
//     become 0
//  3. ±Inf values are treated as missing before filling
//  4. output rows sort ascending by time key
//
// Columns without a rule are dropped. A table left with zero usable rows is
// returned empty; callers treat that as a skip, not an error. The input
// table is left untouched.
func Normalize(table *data.Table, rules map[string]Rule) *data.Table {
	refined := table.Copy()
	refined.Sort()

	for _, col := range refined.Columns() {
		rule, ok := rules[col]
		if !ok {
			refined.DropColumn(col)
			continue
		}

		switch rule {
		case ScaleDrift:
			refined.SetColumn(col, LogChange(refined.Column(col)))
			refined.RenameColumn(col, LogChangeCol(col))
		case PassThrough:
			refined.SetColumn(col, ForwardFill(refined.Column(col)))
		}
	}

	return refined.DropNaNRows()
}

// ZScore normalizes a value against a reference population's mean and
// sample standard deviation. Populations with fewer than 2 observations
// have no defined variance and yield NaN.
func ZScore(value, mean, std float64, count int) float64 {
	if count < 2 {
		return math.NaN()
	}
	return (value - mean) / std
}

// meanStd returns the mean, sample standard deviation, and count of the
// non-NaN values in xs.
func meanStd(xs []float64) (mean float64, std float64, count int) {
	sum := 0.0
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		count++
	}

	if count == 0 {
		return math.NaN(), math.NaN(), 0
	}
	mean = sum / float64(count)

	if count < 2 {
		return mean, math.NaN(), count
	}

	ss := 0.0
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		ss += (x - mean) * (x - mean)
	}
	std = math.Sqrt(ss / float64(count-1))

	return mean, std, count
}
