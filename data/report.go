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
	"time"

	"github.com/google/uuid"
)

type OutcomeStatus string

const (
	StatusInstalled OutcomeStatus = "installed"
	StatusSkipped   OutcomeStatus = "skipped"
	StatusFailed    OutcomeStatus = "failed"
)

// EntityOutcome records what happened for a single entity during a batch
// install: either the number of rows written, or the reason it was skipped
// or failed.
type EntityOutcome struct {
	Entity string
	Status OutcomeStatus
	Rows   int
	Reason string
}

// RunReport aggregates per-entity outcomes for one install or update run.
// Individual entity failures are recorded here rather than raised; only
// configuration-level problems abort a run.
type RunReport struct {
	RunID     uuid.UUID
	Source    string
	Dataset   string
	StartTime time.Time
	EndTime   time.Time
	Outcomes  []EntityOutcome
}

// NewRunReport starts a report for one source/dataset run.
func NewRunReport(source, dataset string) *RunReport {
	return &RunReport{
		RunID:     uuid.New(),
		Source:    source,
		Dataset:   dataset,
		StartTime: time.Now(),
	}
}

// Installed records a successful install of rows for an entity.
func (report *RunReport) Installed(entity string, rows int) {
	report.Outcomes = append(report.Outcomes, EntityOutcome{
		Entity: entity,
		Status: StatusInstalled,
		Rows:   rows,
	})
}

// Skipped records a soft skip (empty fetch or empty normalization).
func (report *RunReport) Skipped(entity, reason string) {
	report.Outcomes = append(report.Outcomes, EntityOutcome{
		Entity: entity,
		Status: StatusSkipped,
		Reason: reason,
	})
}

// Failed records a per-entity fetch or storage failure.
func (report *RunReport) Failed(entity string, err error) {
	report.Outcomes = append(report.Outcomes, EntityOutcome{
		Entity: entity,
		Status: StatusFailed,
		Reason: err.Error(),
	})
}

// Finish stamps the report's end time and returns the report.
func (report *RunReport) Finish() *RunReport {
	report.EndTime = time.Now()
	return report
}

// TotalRows returns the total number of rows written across all entities.
func (report *RunReport) TotalRows() int {
	total := 0
	for _, outcome := range report.Outcomes {
		total += outcome.Rows
	}
	return total
}

// NumFailed returns the count of entities that failed.
func (report *RunReport) NumFailed() int {
	count := 0
	for _, outcome := range report.Outcomes {
		if outcome.Status == StatusFailed {
			count++
		}
	}
	return count
}
