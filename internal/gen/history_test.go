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

package gen

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/revship/revship/internal/storepath"
)

func TestHistoryStoreAppendAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := OpenHistoryStore(path)
	if err != nil {
		t.Fatalf("OpenHistoryStore failed: %v", err)
	}
	defer store.Close()

	item1 := storepath.StoreRoot{NixPath: "/nix/store/aaa-system", GitRevision: "rev1"}
	item2 := storepath.StoreRoot{NixPath: "/nix/store/bbb-system", GitRevision: "rev2"}

	if _, err := store.Append(item1, "immediate", "host1", time.Unix(1000, 0)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := store.Append(item2, "next-reboot", "host1", time.Unix(2000, 0)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	recs, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Number >= recs[1].Number {
		t.Errorf("expected monotonically increasing generation numbers: %+v", recs)
	}
	if recs[0].Item != item1 || recs[1].Item != item2 {
		t.Errorf("unexpected record contents: %+v", recs)
	}
}

func TestBuildCacheStoreAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildcache")
	cache, err := OpenBuildCache(path)
	if err != nil {
		t.Fatalf("OpenBuildCache failed: %v", err)
	}
	defer cache.Close()

	root := storepath.StoreRoot{NixPath: "/nix/store/aaa-system", GitRevision: "rev1"}
	if _, found, err := cache.Lookup("github:example/flake", "host1", "rev1"); err != nil || found {
		t.Fatalf("expected a cache miss, got found=%v err=%v", found, err)
	}

	if err := cache.Store("github:example/flake", "host1", "rev1", root); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, found, err := cache.Lookup("github:example/flake", "host1", "rev1")
	if err != nil || !found {
		t.Fatalf("expected a cache hit, got found=%v err=%v", found, err)
	}
	if got != root {
		t.Errorf("unexpected cached root: %+v", got)
	}
}
