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
package data

import (
	"math"
	"slices"
)

// Table is an in-memory wide table of float64 values indexed by TimeKey.
// Missing cells hold NaN. Rows are unique by time key; Set on an existing
// (key, column) pair overwrites the prior value.
type Table struct {
	index   []TimeKey
	columns []string
	cells   map[string][]float64
	rowIdx  map[TimeKey]int
}

// NewTable creates an empty table with the given column order.
func NewTable(columns ...string) *Table {
	table := &Table{
		columns: slices.Clone(columns),
		cells:   make(map[string][]float64, len(columns)),
		rowIdx:  make(map[TimeKey]int),
	}

	for _, col := range columns {
		table.cells[col] = nil
	}

	return table
}

// Len returns the number of rows in the table.
func (table *Table) Len() int {
	return len(table.index)
}

// Columns returns the table's column names in order.
func (table *Table) Columns() []string {
	return slices.Clone(table.columns)
}

// Index returns the table's time keys in row order.
func (table *Table) Index() []TimeKey {
	return slices.Clone(table.index)
}

// Copy returns a deep copy sharing no storage with the original.
func (table *Table) Copy() *Table {
	out := &Table{
		index:   slices.Clone(table.index),
		columns: slices.Clone(table.columns),
		cells:   make(map[string][]float64, len(table.columns)),
		rowIdx:  make(map[TimeKey]int, len(table.rowIdx)),
	}

	for col, vals := range table.cells {
		out.cells[col] = slices.Clone(vals)
	}
	for key, row := range table.rowIdx {
		out.rowIdx[key] = row
	}

	return out
}

// HasColumn reports whether the named column exists.
func (table *Table) HasColumn(name string) bool {
	_, ok := table.cells[name]
	return ok
}

// Column returns the values of the named column in row order. The returned
// slice aliases table storage.
func (table *Table) Column(name string) []float64 {
	return table.cells[name]
}

// Set stores a value at (key, column), creating the row and/or column if
// they don't exist yet. New cells on existing rows default to NaN.
func (table *Table) Set(key TimeKey, column string, value float64) {
	if _, ok := table.cells[column]; !ok {
		table.columns = append(table.columns, column)
		vals := make([]float64, len(table.index))
		for i := range vals {
			vals[i] = math.NaN()
		}
		table.cells[column] = vals
	}

	row, ok := table.rowIdx[key]
	if !ok {
		row = len(table.index)
		table.index = append(table.index, key)
		table.rowIdx[key] = row
		for col := range table.cells {
			table.cells[col] = append(table.cells[col], math.NaN())
		}
	}

	table.cells[column][row] = value
}

// At returns the value at (key, column). NaN is returned for cells that
// don't exist.
func (table *Table) At(key TimeKey, column string) float64 {
	row, ok := table.rowIdx[key]
	if !ok {
		return math.NaN()
	}

	vals, ok := table.cells[column]
	if !ok {
		return math.NaN()
	}

	return vals[row]
}

// SetColumn replaces the named column's values. The slice length must match
// the table's row count.
func (table *Table) SetColumn(name string, vals []float64) {
	if _, ok := table.cells[name]; !ok {
		table.columns = append(table.columns, name)
	}

	table.cells[name] = vals
}

// RenameColumn renames a column in place, keeping its position in the
// column order.
func (table *Table) RenameColumn(oldName, newName string) {
	vals, ok := table.cells[oldName]
	if !ok {
		return
	}

	delete(table.cells, oldName)
	table.cells[newName] = vals
	for i, col := range table.columns {
		if col == oldName {
			table.columns[i] = newName
		}
	}
}

// DropColumn removes the named column.
func (table *Table) DropColumn(name string) {
	if _, ok := table.cells[name]; !ok {
		return
	}

	delete(table.cells, name)
	table.columns = slices.DeleteFunc(table.columns, func(col string) bool {
		return col == name
	})
}

// Sort orders rows ascending by time key; composite keys order by their
// coarsest component first, breaking ties with progressively finer
// components.
func (table *Table) Sort() {
	order := make([]int, len(table.index))
	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		return table.index[a].Compare(table.index[b])
	})

	index := make([]TimeKey, len(table.index))
	for i, from := range order {
		index[i] = table.index[from]
	}
	table.index = index

	for col, vals := range table.cells {
		sorted := make([]float64, len(vals))
		for i, from := range order {
			sorted[i] = vals[from]
		}
		table.cells[col] = sorted
	}

	for i, key := range table.index {
		table.rowIdx[key] = i
	}
}

// DropNaNRows returns a copy of the table without any row that holds a NaN
// in any column.
func (table *Table) DropNaNRows() *Table {
	out := NewTable(table.columns...)

	for row, key := range table.index {
		keep := true
		for _, col := range table.columns {
			if math.IsNaN(table.cells[col][row]) {
				keep = false
				break
			}
		}

		if keep {
			for _, col := range table.columns {
				out.Set(key, col, table.cells[col][row])
			}
		}
	}

	return out
}

// Melt converts the wide table into refined feature rows for the given
// entity: one row per (entity, time key, column name, value).
func (table *Table) Melt(entity string) []*FeatureRow {
	rows := make([]*FeatureRow, 0, len(table.index)*len(table.columns))

	for row, key := range table.index {
		for _, col := range table.columns {
			rows = append(rows, &FeatureRow{
				Entity: entity,
				Key:    key,
				Name:   col,
				Value:  table.cells[col][row],
			})
		}
	}

	return rows
}

// Pivot materializes melted feature rows back into wide form, sorted
// ascending by time key.
func Pivot(rows []*FeatureRow) *Table {
	table := NewTable()
	for _, row := range rows {
		table.Set(row.Key, row.Name, row.Value)
	}
	table.Sort()
	return table
}
