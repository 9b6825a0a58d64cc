//
// Copyright © 2017 Ikey Doherty <ikey@solus-project.com>
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

// Package instruction holds the Instruction document itself plus the
// directory-layout validation that the executor runs before trusting one.
package instruction

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/revship/revship/internal/archivepack"
	"github.com/revship/revship/internal/command"
	"github.com/revship/revship/internal/rerr"
	"github.com/revship/revship/internal/storepath"
)

// FileName is the name of the manifest at an instruction directory root.
const FileName = "instruction.json"

// Instruction is the top-level manifest: an ordered list of commands to
// apply against a target store, in order.
type Instruction struct {
	Kind     string            `json:"kind"`
	Commands []command.Command `json:"commands"`
}

// New builds an Instruction with the fixed "switch" document kind.
func New(commands []command.Command) Instruction {
	return Instruction{Kind: "switch", Commands: commands}
}

// WriteFile serializes the instruction to instructionDirRoot/instruction.json.
func WriteFile(instructionDirRoot string, instr Instruction) error {
	data, err := json.MarshalIndent(instr, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(instructionDirRoot, FileName), data, 0o644)
}

// ReadFile parses instructionDirRoot/instruction.json.
func ReadFile(instructionDirRoot string) (Instruction, error) {
	data, err := os.ReadFile(filepath.Join(instructionDirRoot, FileName))
	if err != nil {
		return Instruction{}, err
	}
	var instr Instruction
	if err := json.Unmarshal(data, &instr); err != nil {
		if rerrErr, ok := err.(*rerr.Error); ok {
			return Instruction{}, rerrErr
		}
		return Instruction{}, rerr.InvalidInstruction(fmt.Sprintf("malformed instruction.json: %v", err))
	}
	return instr, nil
}

// AssertValid implements assertInstructionDirValid: every Load.archivePath
// is a single path segment, unique across the instruction, and names an
// existing directory beneath dirRoot; at most one Switch, and it must be
// the last command; every StoreRoot named in a Load's deltaDependencies is
// either the item of an earlier Load, or presumed present on the target
// (meaning: it simply isn't declared as an earlier Load's item, which is
// legal).
//
// archivePath is attacker-controlled once an instruction has been
// decompressed from an untrusted transport: rejecting anything but a bare
// path segment here keeps ExecuteLoad's filepath.Join(dirRoot, archivePath)
// from ever walking outside dirRoot.
func AssertValid(dirRoot string, instr Instruction) error {
	known := map[storepath.StoreRoot]bool{}
	seenArchivePaths := map[string]bool{}
	seenSwitch := false

	for _, c := range instr.Commands {
		if seenSwitch {
			return rerr.InvalidInstruction("switch must be last")
		}
		switch c.Kind {
		case command.KindLoad:
			if c.Load == nil {
				return rerr.InvalidInstruction("load command missing body")
			}
			if err := archivepack.ValidateArchivePathSegment(c.Load.ArchivePath); err != nil {
				return rerr.InvalidInstruction(err.Error())
			}
			if seenArchivePaths[c.Load.ArchivePath] {
				return rerr.InvalidInstruction(fmt.Sprintf("archivePath %q is not unique within the instruction", c.Load.ArchivePath))
			}
			seenArchivePaths[c.Load.ArchivePath] = true

			archiveDir := filepath.Join(dirRoot, c.Load.ArchivePath)
			fi, err := os.Stat(archiveDir)
			if err != nil || !fi.IsDir() {
				return rerr.InvalidInstruction(fmt.Sprintf("archivePath %q does not exist as a directory", c.Load.ArchivePath))
			}
			known[c.Load.Item] = true
		case command.KindSwitch:
			if c.Switch == nil {
				return rerr.InvalidInstruction("switch command missing body")
			}
			seenSwitch = true
		default:
			return rerr.UnknownCommandKind(string(c.Kind))
		}
	}

	return nil
}

// KnownItems returns the set of StoreRoots declared as the item of a
// Load command in commands, so a caller can tell which deltaDependencies
// are imported within the instruction and which are presumed present.
func KnownItems(commands []command.Command) map[storepath.StoreRoot]bool {
	out := map[storepath.StoreRoot]bool{}
	for _, c := range commands {
		if c.Kind == command.KindLoad && c.Load != nil {
			out[c.Load.Item] = true
		}
	}
	return out
}
