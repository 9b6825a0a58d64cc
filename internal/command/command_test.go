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

package command

import (
	"encoding/json"
	"testing"

	"github.com/revship/revship/internal/rerr"
	"github.com/revship/revship/internal/storeio"
	"github.com/revship/revship/internal/storepath"
)

func TestLoadRoundTrip(t *testing.T) {
	c := NewLoad("archive-0", storepath.StoreRoot{NixPath: "/nix/store/aaa-system", GitRevision: "deadbeef"},
		[]storepath.StoreRoot{{NixPath: "/nix/store/bbb-system", GitRevision: "c0ffee"}}, true)

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var got Command
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Kind != KindLoad {
		t.Fatalf("expected KindLoad, got %v", got.Kind)
	}
	if got.Load.ArchivePath != "archive-0" {
		t.Errorf("archivePath mismatch: %v", got.Load.ArchivePath)
	}
	if got.Load.Item != c.Load.Item {
		t.Errorf("item mismatch: %+v", got.Load.Item)
	}
	if len(got.Load.DeltaDependencies) != 1 || got.Load.DeltaDependencies[0] != c.Load.DeltaDependencies[0] {
		t.Errorf("deltaDependencies mismatch: %+v", got.Load.DeltaDependencies)
	}
	if !got.Load.PartialNarinfos {
		t.Errorf("expected partialNarinfos true")
	}
}

func TestSwitchRoundTrip(t *testing.T) {
	c := NewSwitch(storepath.StoreRoot{NixPath: "/nix/store/aaa-system"}, storeio.ActivateNextReboot)

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var got Command
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Kind != KindSwitch {
		t.Fatalf("expected KindSwitch, got %v", got.Kind)
	}
	if got.Switch.Mode != storeio.ActivateNextReboot {
		t.Errorf("mode mismatch: %v", got.Switch.Mode)
	}
}

func TestUnmarshalUnknownKind(t *testing.T) {
	var c Command
	err := json.Unmarshal([]byte(`{"kind":"reboot"}`), &c)
	if err == nil {
		t.Fatalf("expected an error for an unknown command kind")
	}
	rerrErr, ok := err.(*rerr.Error)
	if !ok || rerrErr.Kind != rerr.KindUnknownCommandKind {
		t.Fatalf("expected UnknownCommandKind, got %v", err)
	}
}
