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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/revship/revship/internal/execute"
	"github.com/revship/revship/internal/gen"
	"github.com/revship/revship/internal/storeio"
	"github.com/revship/revship/internal/storepath"
)

var (
	aiInstruction string
	aiStore       string
	aiClientState string
	aiTool        string
	aiHistory     string
)

var applyInstructionCmd = &cobra.Command{
	Use:   "apply-instruction",
	Short: "Apply a system update instruction against a target store",
	Long:  "Decompress, validate and execute a system update instruction",
	Run:   runApplyInstruction,
}

func init() {
	applyInstructionCmd.Flags().StringVar(&aiInstruction, "instruction", "", "Path to the instruction file")
	applyInstructionCmd.Flags().StringVar(&aiStore, "store", "/", "Target store root")
	applyInstructionCmd.Flags().StringVar(&aiClientState, "client-state", "/var/lib/revship/client-state", "Path to the client metadata cache")
	applyInstructionCmd.Flags().StringVar(&aiTool, "tool", "nix", "External store tool to invoke")
	applyInstructionCmd.Flags().StringVar(&aiHistory, "history", "", "Optional path to a generation history database")

	applyInstructionCmd.MarkFlagRequired("instruction")

	RootCmd.AddCommand(applyInstructionCmd)
}

func runApplyInstruction(cmd *cobra.Command, args []string) {
	adapter := storeio.NewCLIAdapter(aiTool)

	result, err := execute.ExecuteInstruction(context.Background(), adapter, aiInstruction, aiStore, aiClientState)
	if err != nil {
		printError(err)
		os.Exit(exitCodeFor(err))
	}

	if aiHistory != "" && result.Switched != nil {
		recordAppliedGeneration(aiHistory, result.Switched.Item, string(result.Switched.Mode))
	}

	fmt.Println("Instruction applied successfully")
}

// recordAppliedGeneration best-effort appends the instruction's Switch
// target to the generation history, purely for "list-generations"
// reporting. A failure here is logged, not fatal — the activation itself
// already succeeded.
func recordAppliedGeneration(historyPath string, item storepath.StoreRoot, mode string) {
	store, err := gen.OpenHistoryStore(historyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not open generation history: %v\n", err)
		return
	}
	defer store.Close()

	hostname, _ := os.Hostname()
	if _, err := store.Append(item, mode, hostname, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not record generation history: %v\n", err)
	}
}
