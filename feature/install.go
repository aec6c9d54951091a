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
	"context"

	"github.com/quantmill/qfdata/data"
	"github.com/rs/zerolog"
)

// installFn installs one entity and returns the number of rows written.
type installFn func(ctx context.Context, entity string) (int, error)

// installEach runs fn for each entity independently, recording per-entity
// outcomes on the report. One entity's fetch failure, empty result, or
// empty normalization never aborts the rest of the batch; callers re-invoke
// the install for failed entities if desired.
func installEach(ctx context.Context, report *data.RunReport, entities []string, fn installFn) *data.RunReport {
	logger := zerolog.Ctx(ctx)

	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			// interrupted between entities; everything committed so far
			// stays committed
			report.Failed(entity, err)
			continue
		}

		rows, err := fn(ctx, entity)
		switch {
		case err != nil && skippable(err):
			logger.Debug().Str("Entity", entity).Str("Reason", err.Error()).Msg("skipping entity")
			report.Skipped(entity, err.Error())
		case err != nil:
			logger.Error().Err(err).Str("Entity", entity).Msg("installing entity failed")
			report.Failed(entity, err)
		case rows == 0:
			logger.Debug().Str("Entity", entity).Msg("skipping entity due to missing data")
			report.Skipped(entity, "no rows to install")
		default:
			logger.Debug().Str("Entity", entity).Int("Rows", rows).Msg("rows inserted")
			report.Installed(entity, rows)
		}
	}

	return report.Finish()
}
