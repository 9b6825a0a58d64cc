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

package delta

import (
	"testing"

	"github.com/revship/revship/internal/rerr"
	"github.com/revship/revship/internal/storepath"
)

func pi(path storepath.StorePath, refs ...storepath.StorePath) storepath.PathInfo {
	return storepath.PathInfo{
		Path:       path,
		NarHash:    "sha256:" + string(path),
		References: storepath.NewSet(refs...),
	}
}

// fakeStore builds a CloserQuery over an in-memory closure table: root ->
// its own references (transitively expanded here for test simplicity).
func fakeStore(all map[storepath.StorePath]storepath.PathInfo) CloserQuery {
	return func(roots []storepath.StorePath) (map[storepath.StorePath]storepath.PathInfo, error) {
		seen := map[storepath.StorePath]storepath.PathInfo{}
		var walk func(p storepath.StorePath)
		walk = func(p storepath.StorePath) {
			if _, ok := seen[p]; ok {
				return
			}
			info, ok := all[p]
			if !ok {
				return
			}
			seen[p] = info
			for r := range info.References {
				walk(r)
			}
		}
		for _, r := range roots {
			walk(r)
		}
		return seen, nil
	}
}

func TestComputeEmptyFromRoots(t *testing.T) {
	all := map[storepath.StorePath]storepath.PathInfo{
		"/store/a": pi("/store/a"),
		"/store/b": pi("/store/b", "/store/a"),
	}
	d, err := Compute(fakeStore(all), nil, "/store/b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Added) != len(d.AllResultingItems) {
		t.Fatalf("expected added == allResultingItems with no from roots, got %d vs %d", len(d.Added), len(d.AllResultingItems))
	}
}

func TestComputeSameRootAsFromAndTo(t *testing.T) {
	all := map[storepath.StorePath]storepath.PathInfo{
		"/store/a": pi("/store/a"),
		"/store/b": pi("/store/b", "/store/a"),
	}
	d, err := Compute(fakeStore(all), []storepath.StorePath{"/store/b"}, "/store/b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Added) != 0 {
		t.Fatalf("expected no added paths when from == to, got %d", len(d.Added))
	}
	if len(d.AllResultingItems) != 2 {
		t.Fatalf("expected closure of 2, got %d", len(d.AllResultingItems))
	}
}

func TestComputeAddedDisjointFromFromClosure(t *testing.T) {
	all := map[storepath.StorePath]storepath.PathInfo{
		"/store/a": pi("/store/a"),
		"/store/b": pi("/store/b", "/store/a"),
		"/store/c": pi("/store/c", "/store/b"),
	}
	d, err := Compute(fakeStore(all), []storepath.StorePath{"/store/b"}, "/store/c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Added) != 1 || d.Added[0].Path != "/store/c" {
		t.Fatalf("expected only /store/c to be added, got %+v", d.Added)
	}
}

func TestComputeTopologicalOrder(t *testing.T) {
	all := map[storepath.StorePath]storepath.PathInfo{
		"/store/a": pi("/store/a"),
		"/store/b": pi("/store/b", "/store/a"),
		"/store/c": pi("/store/c", "/store/b", "/store/a"),
	}
	d, err := Compute(fakeStore(all), nil, "/store/c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := map[storepath.StorePath]int{}
	for i, p := range d.AllResultingItems {
		pos[p.Path] = i
	}
	if pos["/store/a"] > pos["/store/b"] || pos["/store/b"] > pos["/store/c"] {
		t.Fatalf("expected topological order a, b, c; got %v", d.AllResultingItems)
	}
}

func TestComputeClosureCycle(t *testing.T) {
	all := map[storepath.StorePath]storepath.PathInfo{
		"/store/a": pi("/store/a", "/store/b"),
		"/store/b": pi("/store/b", "/store/a"),
	}
	_, err := Compute(fakeStore(all), nil, "/store/a")
	if err == nil {
		t.Fatalf("expected a closure cycle error")
	}
	rerrErr, ok := err.(*rerr.Error)
	if !ok || rerrErr.Kind != rerr.KindClosureCycle {
		t.Fatalf("expected ClosureCycle error, got %v", err)
	}
}
