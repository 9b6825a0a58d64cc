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

package storeio

import (
	"context"
	"fmt"

	"github.com/revship/revship/internal/rerr"
	"github.com/revship/revship/internal/storepath"
)

// FakeHost describes one revision's built closure in the FakeAdapter.
type FakeHost struct {
	Output     storepath.StorePath
	PathInfos  map[storepath.StorePath]storepath.PathInfo
}

// FakeAdapter is an in-memory Adapter used by the build/execute pipeline
// tests, so the core build and execute logic can be exercised without a
// real store toolchain.
type FakeAdapter struct {
	// Hostnames lists the flake's declared configurations.
	Hostnames []string

	// Builds maps "hostname@revision" to its prebuilt closure.
	Builds map[string]FakeHost

	// Store is the full universe of path infos known to the fake store,
	// shared across every build.
	Store map[storepath.StorePath]storepath.PathInfo

	// Imported tracks, per target store dir, which paths have been
	// imported, so ImportFromArchive can be asserted idempotent.
	Imported map[string]map[storepath.StorePath]bool

	// Activated tracks the current/next-reboot generation per target root.
	Activated map[string]storepath.StorePath

	// Archives is populated by ExportToArchive with the set of data
	// paths written for each archive directory.
	Archives map[string]map[storepath.StorePath]bool
}

// NewFakeAdapter returns an empty, ready-to-populate FakeAdapter.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{
		Builds:    map[string]FakeHost{},
		Store:     map[storepath.StorePath]storepath.PathInfo{},
		Imported:  map[string]map[storepath.StorePath]bool{},
		Activated: map[string]storepath.StorePath{},
		Archives:  map[string]map[storepath.StorePath]bool{},
	}
}

func key(hostname, revision string) string {
	return hostname + "@" + revision
}

// AddBuild registers a prebuilt closure for hostname@revision and merges
// its path infos into the shared store universe.
func (f *FakeAdapter) AddBuild(hostname, revision string, output storepath.StorePath, infos map[storepath.StorePath]storepath.PathInfo) {
	f.Builds[key(hostname, revision)] = FakeHost{Output: output, PathInfos: infos}
	for p, pi := range infos {
		f.Store[p] = pi
	}
}

// ResolveRevision implements Adapter.
func (f *FakeAdapter) ResolveRevision(ctx context.Context, flakeURI, ref string) (string, error) {
	return "0000000000000000000000000000000000000f", nil
}

// BuildToplevel implements Adapter.
func (f *FakeAdapter) BuildToplevel(ctx context.Context, flakeURI, revision, hostname, storeDir string) (BuildResult, error) {
	found := false
	for _, h := range f.Hostnames {
		if h == hostname {
			found = true
			break
		}
	}
	if !found {
		return BuildResult{}, rerr.UnknownHostname(hostname, f.Hostnames)
	}
	build, ok := f.Builds[key(hostname, revision)]
	if !ok {
		return BuildResult{}, fmt.Errorf("fake adapter: no build registered for %s@%s", hostname, revision)
	}
	return BuildResult{
		Derivation: string(build.Output) + ".drv",
		Output:     build.Output,
		Revision:   revision,
	}, nil
}

// QueryPathInfo implements Adapter: walks references from each root over
// the shared store universe.
func (f *FakeAdapter) QueryPathInfo(ctx context.Context, storeDir string, roots []storepath.StorePath) (map[storepath.StorePath]storepath.PathInfo, error) {
	seen := map[storepath.StorePath]storepath.PathInfo{}
	var walk func(p storepath.StorePath)
	walk = func(p storepath.StorePath) {
		if _, ok := seen[p]; ok {
			return
		}
		pi, ok := f.Store[p]
		if !ok {
			return
		}
		seen[p] = pi
		for r := range pi.References {
			walk(r)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return seen, nil
}

// ExportToArchive implements Adapter: records the closure of root as
// present in the named archive directory.
func (f *FakeAdapter) ExportToArchive(ctx context.Context, storeDir, archiveDir string, root storepath.StorePath) error {
	closure, err := f.QueryPathInfo(ctx, storeDir, []storepath.StorePath{root})
	if err != nil {
		return err
	}
	set, ok := f.Archives[archiveDir]
	if !ok {
		set = map[storepath.StorePath]bool{}
		f.Archives[archiveDir] = set
	}
	for p := range closure {
		set[p] = true
	}
	return nil
}

// ImportFromArchive implements Adapter: marks the closure of root as
// present in the target store, failing if the archive lacks any member.
func (f *FakeAdapter) ImportFromArchive(ctx context.Context, archiveDir string, root storepath.StorePath, targetStoreDir string) error {
	closure, err := f.QueryPathInfo(ctx, archiveDir, []storepath.StorePath{root})
	if err != nil {
		return err
	}
	set, ok := f.Archives[archiveDir]
	if !ok {
		set = map[storepath.StorePath]bool{}
	}
	for p := range closure {
		if !set[p] {
			return rerr.ImportFailed(fmt.Sprintf("missing data object for %s", p), nil)
		}
	}
	target, ok := f.Imported[targetStoreDir]
	if !ok {
		target = map[storepath.StorePath]bool{}
		f.Imported[targetStoreDir] = target
	}
	for p := range closure {
		target[p] = true
	}
	return nil
}

// ActivateGeneration implements Adapter.
func (f *FakeAdapter) ActivateGeneration(ctx context.Context, targetStoreRoot string, item storepath.StorePath, mode ActivationMode) error {
	target, ok := f.Imported[targetStoreRoot]
	_ = target
	if !ok {
		f.Imported[targetStoreRoot] = map[storepath.StorePath]bool{}
	}
	f.Activated[targetStoreRoot] = item
	return nil
}
