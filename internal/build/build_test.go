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

package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/revship/revship/internal/storeio"
	"github.com/revship/revship/internal/storepath"
)

func seedArchiveFile(t *testing.T, dir, hash, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, hash), []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to seed archive data file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, hash+".narinfo"), []byte("narinfo-"+hash), 0o644); err != nil {
		t.Fatalf("failed to seed archive info file: %v", err)
	}
}

func TestBuildLoadProducesDeltaSubset(t *testing.T) {
	fake := storeio.NewFakeAdapter()
	fake.Hostnames = []string{"host1"}
	fake.AddBuild("host1", "rev1", "/nix/store/aaa-old", map[storepath.StorePath]storepath.PathInfo{
		"/nix/store/aaa-old": {Path: "/nix/store/aaa-old"},
	})
	fake.AddBuild("host1", "rev2", "/nix/store/bbb-new", map[storepath.StorePath]storepath.PathInfo{
		"/nix/store/bbb-new":    {Path: "/nix/store/bbb-new", References: storepath.NewSet("/nix/store/ccc-common")},
		"/nix/store/ccc-common": {Path: "/nix/store/ccc-common"},
	})

	workdir := t.TempDir()
	bc := Context{
		Adapter:        fake,
		WorkdirStore:   filepath.Join(workdir, "store"),
		WorkdirArchive: filepath.Join(workdir, "archive"),
		InstructionDir: workdir,
	}
	if err := os.MkdirAll(bc.WorkdirArchive, 0o755); err != nil {
		t.Fatalf("failed to make workdir archive: %v", err)
	}
	seedArchiveFile(t, bc.WorkdirArchive, "bbb", "payload-bbb")
	seedArchiveFile(t, bc.WorkdirArchive, "ccc", "payload-ccc")

	cmd, err := BuildLoad(context.Background(), bc, "github:example/flake", "host1", "rev2", []string{"rev1"}, "archive", true)
	if err != nil {
		t.Fatalf("BuildLoad failed: %v", err)
	}
	if cmd.Load.Item.NixPath != "/nix/store/bbb-new" {
		t.Errorf("unexpected item: %+v", cmd.Load.Item)
	}
	if len(cmd.Load.DeltaDependencies) != 1 || cmd.Load.DeltaDependencies[0].NixPath != "/nix/store/aaa-old" {
		t.Errorf("unexpected deltaDependencies: %+v", cmd.Load.DeltaDependencies)
	}

	archiveDir := filepath.Join(workdir, "archive")
	for _, want := range []string{"bbb", "bbb.narinfo", "ccc", "ccc.narinfo"} {
		if _, err := os.Stat(filepath.Join(archiveDir, want)); err != nil {
			t.Errorf("expected %s in instruction archive: %v", want, err)
		}
	}
}

func TestBuildSwitchEmitsItemAndMode(t *testing.T) {
	fake := storeio.NewFakeAdapter()
	fake.Hostnames = []string{"host1"}
	fake.AddBuild("host1", "rev2", "/nix/store/bbb-new", map[storepath.StorePath]storepath.PathInfo{
		"/nix/store/bbb-new": {Path: "/nix/store/bbb-new"},
	})

	bc := Context{Adapter: fake, WorkdirStore: t.TempDir()}
	cmd, err := BuildSwitch(context.Background(), bc, "github:example/flake", "host1", "rev2", storeio.ActivateImmediate)
	if err != nil {
		t.Fatalf("BuildSwitch failed: %v", err)
	}
	if cmd.Switch.Item.NixPath != "/nix/store/bbb-new" || cmd.Switch.Mode != storeio.ActivateImmediate {
		t.Errorf("unexpected switch command: %+v", cmd.Switch)
	}
}
