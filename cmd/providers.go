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
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/quantmill/qfdata/provider"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// providersCmd represents the providers command
var providersCmd = &cobra.Command{
	Use:   "providers <name>",
	Short: "List all data providers available or get details about a specific provider",
	Run: func(cmd *cobra.Command, args []string) {

		r, _ := glamour.NewTermRenderer(
			// detect background color and pick either the default dark or light theme
			glamour.WithAutoStyle(),
			// wrap output at specific width (default is 80)
			glamour.WithWordWrap(80),
		)

		builder := strings.Builder{}

		if len(args) > 0 {
			if dataProvider, ok := provider.Map[args[0]]; ok {
				builder.WriteString(fmt.Sprintf("# %s\n", dataProvider.Name()))
				builder.WriteString(dataProvider.Description())
				builder.WriteString("\n\n## Configuration\n")

				configKeys := make([]string, 0, len(dataProvider.ConfigDescription()))
				for key := range dataProvider.ConfigDescription() {
					configKeys = append(configKeys, key)
				}
				sort.Strings(configKeys)

				for _, key := range configKeys {
					builder.WriteString(fmt.Sprintf("- `%s`: %s\n", key, dataProvider.ConfigDescription()[key]))
				}
			}
		} else {
			builder.WriteString("# Available Providers\n")
			for _, dataProvider := range provider.Map {
				builder.WriteString(fmt.Sprintf("\n## %s\n", dataProvider.Name()))
				builder.WriteString(dataProvider.Description())
			}
		}

		out, err := r.Render(builder.String())
		if err != nil {
			log.Fatal().Err(err).Msg("could not render provider document")
		}

		fmt.Print(out)
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
