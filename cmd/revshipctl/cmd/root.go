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

// Package cmd implements the revshipctl command-line subcommands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/revship/revship/internal/rerr"
)

// RootCmd is the main entry point into revshipctl.
var RootCmd = &cobra.Command{
	Use:   "revshipctl",
	Short: "revshipctl builds and applies system update instructions",
}

// Execute runs the command tree, printing structured errors the way the
// rest of revship reports them.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(exitCodeFor(err))
	}
}

func printError(err error) {
	if rerrErr, ok := err.(*rerr.Error); ok {
		fmt.Fprintf(os.Stderr, "error: %s (%s): %s\n", rerrErr.Kind, rerrErr.Op, rerrErr.Detail)
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

// exitCodeFor maps an error's kind category onto a process exit code, so
// scripts driving revshipctl can branch without parsing error text.
func exitCodeFor(err error) int {
	rerrErr, ok := err.(*rerr.Error)
	if !ok {
		return 1
	}
	switch rerrErr.Kind {
	case rerr.KindInvalidInstruction, rerr.KindUnknownCommandKind:
		return 2
	case rerr.KindUnknownHostname, rerr.KindMissingDependencyMetadata:
		return 3
	case rerr.KindExternalToolFailure, rerr.KindExternalOutputMalformed:
		return 4
	case rerr.KindClosureCycle, rerr.KindArchiveIncomplete:
		return 5
	case rerr.KindImportFailed, rerr.KindActivationFailed:
		return 6
	default:
		return 1
	}
}
