//
// Copyright © 2017 Solus Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/revship/revship/internal/gen"
)

var lgHistory string

var listGenerationsCmd = &cobra.Command{
	Use:   "list-generations",
	Short: "List recorded generations",
	Long:  "List recorded generations, oldest first",
	Run:   runListGenerations,
}

func init() {
	listGenerationsCmd.Flags().StringVar(&lgHistory, "history", "/var/lib/revship/generations.db", "Path to the generation history database")
	RootCmd.AddCommand(listGenerationsCmd)
}

func runListGenerations(cmd *cobra.Command, args []string) {
	store, err := gen.OpenHistoryStore(lgHistory)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer store.Close()

	recs, err := store.List()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if len(recs) == 0 {
		fmt.Println("No generations have been recorded yet.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Generation", "Hostname", "Mode", "Item", "When"})
	table.SetBorder(false)

	for _, r := range recs {
		table.Append([]string{
			strconv.FormatUint(r.Number, 10),
			r.Hostname,
			r.Mode,
			string(r.Item.NixPath),
			r.Timestamp.Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
}
