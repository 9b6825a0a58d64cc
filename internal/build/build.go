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

// Package build is the instruction builder pipeline: it drives the store
// adapter and the delta engine on the build host and writes out a
// transportable instruction file.
package build

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/revship/revship/internal/archivepack"
	"github.com/revship/revship/internal/command"
	"github.com/revship/revship/internal/delta"
	"github.com/revship/revship/internal/gen"
	"github.com/revship/revship/internal/instruction"
	"github.com/revship/revship/internal/storeio"
	"github.com/revship/revship/internal/storepath"
)

// Context carries the shared build-host state threaded through every
// command's build step.
type Context struct {
	Adapter        storeio.Adapter
	WorkdirStore   string
	WorkdirArchive string
	InstructionDir string

	// BuildCache memoizes buildToplevel results across revision builds;
	// nil disables memoization, which is always safe since a miss simply
	// falls back to a real build.
	BuildCache *gen.BuildCache
}

// buildToplevelCached wraps Adapter.BuildToplevel with an optional lookup
// against bc.BuildCache, so a revision already built earlier in the same
// run (or a prior run sharing the cache file) isn't rebuilt.
func buildToplevelCached(ctx context.Context, bc Context, flakeURI, revision, hostname string) (storeio.BuildResult, error) {
	if bc.BuildCache != nil {
		if root, found, err := bc.BuildCache.Lookup(flakeURI, hostname, revision); err == nil && found {
			return storeio.BuildResult{Output: root.NixPath, Revision: revision}, nil
		}
	}
	res, err := bc.Adapter.BuildToplevel(ctx, flakeURI, revision, hostname, bc.WorkdirStore)
	if err != nil {
		return storeio.BuildResult{}, err
	}
	if bc.BuildCache != nil {
		_ = bc.BuildCache.Store(flakeURI, hostname, revision, storepath.StoreRoot{NixPath: res.Output, GitRevision: revision})
	}
	return res, nil
}

// buildOldRootsConcurrently builds every deltaDepRevs entry in its own
// goroutine, since the revisions are independent of one another and each
// build already serializes through the external store tool. Results land
// back in input order so the emitted Load command's deltaDependencies
// stay deterministic regardless of which goroutine finishes first.
func buildOldRootsConcurrently(ctx context.Context, bc Context, flakeURI, hostname string, revs []string) ([]storepath.StoreRoot, error) {
	roots := make([]storepath.StoreRoot, len(revs))
	errs := make(chan error, len(revs))

	var wg sync.WaitGroup
	for i, rev := range revs {
		wg.Add(1)
		go func(i int, rev string) {
			defer wg.Done()
			res, err := buildToplevelCached(ctx, bc, flakeURI, rev, hostname)
			if err != nil {
				errs <- err
				return
			}
			roots[i] = storepath.StoreRoot{NixPath: res.Output, GitRevision: rev}
		}(i, rev)
	}
	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}
	return roots, nil
}

// Request is the builder's top-level input.
type Request struct {
	FlakeURI        string
	Hostname        string
	PastRevs        []string
	NewRev          string
	PartialNarinfos bool
	DestinationPath string

	// Cache, if non-nil, memoizes buildToplevel results across commands.
	Cache *gen.BuildCache
}

// BuildLoad builds a Load command: the independent deltaDepRevs plus the
// new revision, the archive export, and the delta against the prior
// revisions' closures.
func BuildLoad(ctx context.Context, bc Context, flakeURI, hostname, newRev string, deltaDepRevs []string, archiveFolderName string, partialNarinfos bool) (command.Command, error) {
	oldRoots, err := buildOldRootsConcurrently(ctx, bc, flakeURI, hostname, deltaDepRevs)
	if err != nil {
		return command.Command{}, err
	}

	newRes, err := buildToplevelCached(ctx, bc, flakeURI, newRev, hostname)
	if err != nil {
		return command.Command{}, err
	}
	newRoot := storepath.StoreRoot{NixPath: newRes.Output, GitRevision: newRev}

	if err := bc.Adapter.ExportToArchive(ctx, bc.WorkdirStore, bc.WorkdirArchive, newRes.Output); err != nil {
		return command.Command{}, err
	}

	query := func(roots []storepath.StorePath) (map[storepath.StorePath]storepath.PathInfo, error) {
		return bc.Adapter.QueryPathInfo(ctx, bc.WorkdirStore, roots)
	}
	fromRoots := make([]storepath.StorePath, len(oldRoots))
	for i, r := range oldRoots {
		fromRoots[i] = r.NixPath
	}
	d, err := delta.Compute(query, fromRoots, newRes.Output)
	if err != nil {
		return command.Command{}, err
	}

	archiveDir := filepath.Join(bc.InstructionDir, archiveFolderName)
	dataPaths := archivepack.ListDataPaths(d.Added)
	var infoPaths []storepath.StorePath
	if partialNarinfos {
		infoPaths = dataPaths
	} else {
		infoPaths = archivepack.ListDataPaths(d.AllResultingItems)
	}
	if err := archivepack.MakeSubset(bc.WorkdirArchive, archiveDir, infoPaths, dataPaths); err != nil {
		return command.Command{}, err
	}

	log.WithFields(log.Fields{
		"hostname":  hostname,
		"newRev":    newRev,
		"added":     len(d.Added),
		"fromRoots": len(oldRoots),
	}).Info("built load command")

	return command.NewLoad(archiveFolderName, newRoot, oldRoots, partialNarinfos), nil
}

// BuildSwitch builds a Switch command targeting newRev.
func BuildSwitch(ctx context.Context, bc Context, flakeURI, hostname, newRev string, mode storeio.ActivationMode) (command.Command, error) {
	res, err := buildToplevelCached(ctx, bc, flakeURI, newRev, hostname)
	if err != nil {
		return command.Command{}, err
	}
	item := storepath.StoreRoot{NixPath: res.Output, GitRevision: newRev}
	return command.NewSwitch(item, mode), nil
}

// BuildInstruction runs the full builder pipeline: a temporary workdir,
// one Load plus one Switch command, instruction.json, packed into
// req.DestinationPath, cleaned up on the way out regardless of outcome.
func BuildInstruction(ctx context.Context, adapter storeio.Adapter, req Request, mode storeio.ActivationMode) (err error) {
	workdir, err := os.MkdirTemp("", "revship-build-")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.RemoveAll(workdir); rmErr != nil && err == nil {
			err = rmErr
		}
	}()

	bc := Context{
		Adapter:        adapter,
		WorkdirStore:   filepath.Join(workdir, "store"),
		WorkdirArchive: filepath.Join(workdir, "archive"),
		InstructionDir: filepath.Join(workdir, "instruction"),
		BuildCache:     req.Cache,
	}
	for _, dir := range []string{bc.WorkdirStore, bc.WorkdirArchive, bc.InstructionDir} {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	loadCmd, err := BuildLoad(ctx, bc, req.FlakeURI, req.Hostname, req.NewRev, req.PastRevs, "archive", req.PartialNarinfos)
	if err != nil {
		return err
	}
	switchCmd, err := BuildSwitch(ctx, bc, req.FlakeURI, req.Hostname, req.NewRev, mode)
	if err != nil {
		return err
	}

	instr := instruction.New([]command.Command{loadCmd, switchCmd})
	if err = instruction.WriteFile(bc.InstructionDir, instr); err != nil {
		return err
	}

	if err = archivepack.Pack(bc.InstructionDir, req.DestinationPath); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"hostname":    req.Hostname,
		"newRev":      req.NewRev,
		"destination": req.DestinationPath,
	}).Info("instruction built")

	return nil
}
