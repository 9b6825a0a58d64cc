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

package instruction

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/revship/revship/internal/command"
	"github.com/revship/revship/internal/rerr"
	"github.com/revship/revship/internal/storeio"
	"github.com/revship/revship/internal/storepath"
)

func TestRoundTrip(t *testing.T) {
	newItem := storepath.StoreRoot{NixPath: "/nix/store/aaa-system", GitRevision: "deadbeef"}
	instr := New([]command.Command{
		command.NewLoad("archive", newItem, nil, false),
		command.NewSwitch(newItem, storeio.ActivateImmediate),
	})

	data, err := json.Marshal(instr)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var got Instruction
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Kind != "switch" || len(got.Commands) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestAssertValidRejectsSwitchNotLast(t *testing.T) {
	item := storepath.StoreRoot{NixPath: "/nix/store/aaa-system"}
	instr := New([]command.Command{
		command.NewSwitch(item, storeio.ActivateImmediate),
		command.NewLoad("archive", item, nil, false),
	})

	err := AssertValid(t.TempDir(), instr)
	if err == nil {
		t.Fatalf("expected an error")
	}
	rerrErr, ok := err.(*rerr.Error)
	if !ok || rerrErr.Kind != rerr.KindInvalidInstruction {
		t.Fatalf("expected InvalidInstruction, got %v", err)
	}
}

func TestAssertValidRejectsMissingArchiveDir(t *testing.T) {
	item := storepath.StoreRoot{NixPath: "/nix/store/aaa-system"}
	instr := New([]command.Command{command.NewLoad("archive", item, nil, false)})

	err := AssertValid(t.TempDir(), instr)
	if err == nil {
		t.Fatalf("expected an error for a missing archive directory")
	}
}

func TestAssertValidRejectsArchivePathTraversal(t *testing.T) {
	item := storepath.StoreRoot{NixPath: "/nix/store/aaa-system"}
	instr := New([]command.Command{command.NewLoad("../../etc", item, nil, false)})

	err := AssertValid(t.TempDir(), instr)
	if err == nil {
		t.Fatalf("expected an error for an archivePath escaping the instruction directory")
	}
	rerrErr, ok := err.(*rerr.Error)
	if !ok || rerrErr.Kind != rerr.KindInvalidInstruction {
		t.Fatalf("expected InvalidInstruction, got %v", err)
	}
}

func TestAssertValidRejectsDuplicateArchivePath(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "archive"), 0o755); err != nil {
		t.Fatalf("failed to seed archive dir: %v", err)
	}
	itemA := storepath.StoreRoot{NixPath: "/nix/store/aaa-system"}
	itemB := storepath.StoreRoot{NixPath: "/nix/store/bbb-system"}
	instr := New([]command.Command{
		command.NewLoad("archive", itemA, nil, false),
		command.NewLoad("archive", itemB, nil, false),
	})

	err := AssertValid(dir, instr)
	if err == nil {
		t.Fatalf("expected an error for a duplicate archivePath")
	}
	rerrErr, ok := err.(*rerr.Error)
	if !ok || rerrErr.Kind != rerr.KindInvalidInstruction {
		t.Fatalf("expected InvalidInstruction, got %v", err)
	}
}

func TestAssertValidAcceptsWellFormedInstruction(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "archive"), 0o755); err != nil {
		t.Fatalf("failed to seed archive dir: %v", err)
	}
	item := storepath.StoreRoot{NixPath: "/nix/store/aaa-system"}
	instr := New([]command.Command{
		command.NewLoad("archive", item, nil, false),
		command.NewSwitch(item, storeio.ActivateImmediate),
	})
	if err := AssertValid(dir, instr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWriteAndReadFile(t *testing.T) {
	dir := t.TempDir()
	item := storepath.StoreRoot{NixPath: "/nix/store/aaa-system"}
	instr := New([]command.Command{command.NewSwitch(item, storeio.ActivateImmediate)})

	if err := WriteFile(dir, instr); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := ReadFile(dir)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(got.Commands) != 1 || got.Commands[0].Kind != command.KindSwitch {
		t.Fatalf("unexpected round trip: %+v", got)
	}
}
