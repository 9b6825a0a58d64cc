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

	"github.com/spf13/cobra"

	"github.com/revship/revship/internal/build"
	"github.com/revship/revship/internal/gen"
	"github.com/revship/revship/internal/storeio"
)

var (
	biFlakeURI   string
	biHostname   string
	biPastRevs   []string
	biNewRev     string
	biOut        string
	biFull       bool
	biMode       string
	biTool       string
	biBuildCache string
)

var buildInstructionCmd = &cobra.Command{
	Use:   "build-instruction",
	Short: "Build a system update instruction from a flake revision",
	Long:  "Build a system update instruction file containing a Load and a Switch command",
	Run:   runBuildInstruction,
}

func init() {
	buildInstructionCmd.Flags().StringVar(&biFlakeURI, "flake", "", "Flake URI to build from")
	buildInstructionCmd.Flags().StringVar(&biHostname, "hostname", "", "nixosConfigurations attribute to build")
	buildInstructionCmd.Flags().StringArrayVar(&biPastRevs, "past-rev", nil, "A revision the target is assumed to already hold (repeatable)")
	buildInstructionCmd.Flags().StringVar(&biNewRev, "new-rev", "", "Revision to build and ship")
	buildInstructionCmd.Flags().StringVar(&biOut, "out", "", "Destination path for the instruction file")
	buildInstructionCmd.Flags().BoolVar(&biFull, "full", false, "Ship full narinfo metadata instead of incremental")
	buildInstructionCmd.Flags().StringVar(&biMode, "mode", "immediate", "Activation mode: immediate or next-reboot")
	buildInstructionCmd.Flags().StringVar(&biTool, "tool", "nix", "External store tool to invoke")
	buildInstructionCmd.Flags().StringVar(&biBuildCache, "build-cache", "", "Optional path to a revision build cache")

	for _, name := range []string{"flake", "hostname", "new-rev", "out"} {
		buildInstructionCmd.MarkFlagRequired(name)
	}

	RootCmd.AddCommand(buildInstructionCmd)
}

func runBuildInstruction(cmd *cobra.Command, args []string) {
	adapter := storeio.NewCLIAdapter(biTool)

	var cache *gen.BuildCache
	if biBuildCache != "" {
		c, err := gen.OpenBuildCache(biBuildCache)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		defer c.Close()
		cache = c
	}

	mode := storeio.ActivateImmediate
	if biMode == string(storeio.ActivateNextReboot) {
		mode = storeio.ActivateNextReboot
	}

	req := build.Request{
		FlakeURI:        biFlakeURI,
		Hostname:        biHostname,
		PastRevs:        biPastRevs,
		NewRev:          biNewRev,
		PartialNarinfos: !biFull,
		DestinationPath: biOut,
		Cache:           cache,
	}

	if err := build.BuildInstruction(context.Background(), adapter, req, mode); err != nil {
		printError(err)
		os.Exit(exitCodeFor(err))
	}

	fmt.Printf("Wrote instruction to %s\n", biOut)
}
