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

// Package execute is the instruction executor pipeline: it runs on the
// target host, consuming the serialized commands a build host produced.
package execute

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/revship/revship/internal/archivepack"
	"github.com/revship/revship/internal/cache"
	"github.com/revship/revship/internal/command"
	"github.com/revship/revship/internal/instruction"
	"github.com/revship/revship/internal/rerr"
	"github.com/revship/revship/internal/storeio"
	"github.com/revship/revship/internal/storepath"
)

// Context carries the shared target-host state threaded through every
// command's execute step.
type Context struct {
	Adapter             storeio.Adapter
	TargetStoreRoot     string
	ClientStateStoreDir string
	InstructionDir      string
}

// snapshotInfoFiles lists the "*.narinfo" files currently present in dir,
// by absolute path, captured before enrichment adds any more.
func snapshotInfoFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".narinfo" {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

// enrichDependencyInfo materializes, into archiveDir, the info file for
// every path in the closures of deltaDependencies, sourced first from the
// client-state cache and otherwise from the target store itself.
func enrichDependencyInfo(ctx context.Context, ec Context, deps []storepath.StoreRoot, partialNarinfos bool, archiveDir string) error {
	if len(deps) == 0 {
		return nil
	}
	roots := make([]storepath.StorePath, len(deps))
	for i, d := range deps {
		roots[i] = d.NixPath
	}

	closure, queryErr := ec.Adapter.QueryPathInfo(ctx, ec.TargetStoreRoot, roots)
	if queryErr != nil {
		closure = map[storepath.StorePath]storepath.PathInfo{}
	}

	// A dependency root absent from the target's own closure query is the
	// genuinely-missing case: nothing downstream of it was even walked.
	for _, root := range roots {
		if _, ok := closure[root]; ok {
			continue
		}
		cached, err := cache.ListInfoFiles(ec.ClientStateStoreDir, []storepath.StorePath{root})
		if err != nil {
			return err
		}
		if len(cached) > 0 {
			continue
		}
		if partialNarinfos {
			return rerr.MissingDependencyMetadata(string(root))
		}
	}

	paths := make([]storepath.StorePath, 0, len(closure))
	for p := range closure {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	for _, p := range paths {
		name := archivepack.InfoFileName(p)
		dst := filepath.Join(archiveDir, name)

		cached, err := cache.ListInfoFiles(ec.ClientStateStoreDir, []storepath.StorePath{p})
		if err != nil {
			return err
		}
		if len(cached) > 0 {
			if err := copyFile(cached[0], dst); err != nil {
				return err
			}
			continue
		}

		data, err := json.Marshal(closure[p])
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return err
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// ExecuteLoad imports a Load command's archive subset into the target
// store, enriching dependency metadata along the way.
func ExecuteLoad(ctx context.Context, ec Context, l *command.Load) error {
	absoluteArchive := filepath.Join(ec.InstructionDir, l.ArchivePath)

	before, err := snapshotInfoFiles(absoluteArchive)
	if err != nil {
		return err
	}

	if err := enrichDependencyInfo(ctx, ec, l.DeltaDependencies, l.PartialNarinfos, absoluteArchive); err != nil {
		return err
	}

	if err := ec.Adapter.ImportFromArchive(ctx, absoluteArchive, l.Item.NixPath, ec.TargetStoreRoot); err != nil {
		return err
	}

	if err := cache.ImportInfoFiles(ec.ClientStateStoreDir, before); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"archivePath": l.ArchivePath,
		"item":        l.Item.NixPath,
	}).Info("load executed")
	return nil
}

// ExecuteSwitch activates a Switch command's item as a new generation.
func ExecuteSwitch(ctx context.Context, ec Context, s *command.Switch) error {
	if err := ec.Adapter.ActivateGeneration(ctx, "/", s.Item.NixPath, s.Mode); err != nil {
		return err
	}
	log.WithFields(log.Fields{"item": s.Item.NixPath, "mode": s.Mode}).Info("switch executed")
	return nil
}

// Result reports what an executed instruction actually did, for callers
// that want to record it (e.g. generation history) without re-reading
// the instruction directory, which is removed on success.
type Result struct {
	// Switched is the Switch command's target, if the instruction carried
	// one; nil otherwise.
	Switched *command.Switch
}

// ExecuteInstruction runs the full executor pipeline: decompress,
// validate, execute commands in order aborting on first failure. The
// temporary directory is removed only on success, left for diagnosis on
// failure.
func ExecuteInstruction(ctx context.Context, adapter storeio.Adapter, instructionFile, targetStoreRoot, clientStateStoreDir string) (Result, error) {
	workdir, err := os.MkdirTemp("", "revship-execute-")
	if err != nil {
		return Result{}, err
	}

	if err := archivepack.Unpack(instructionFile, workdir); err != nil {
		return Result{}, err
	}

	instr, err := instruction.ReadFile(workdir)
	if err != nil {
		return Result{}, err
	}
	if err := instruction.AssertValid(workdir, instr); err != nil {
		return Result{}, err
	}

	ec := Context{
		Adapter:             adapter,
		TargetStoreRoot:     targetStoreRoot,
		ClientStateStoreDir: clientStateStoreDir,
		InstructionDir:      workdir,
	}

	var result Result
	for _, c := range instr.Commands {
		switch c.Kind {
		case command.KindLoad:
			if err := ExecuteLoad(ctx, ec, c.Load); err != nil {
				return Result{}, err
			}
		case command.KindSwitch:
			if err := ExecuteSwitch(ctx, ec, c.Switch); err != nil {
				return Result{}, err
			}
			result.Switched = c.Switch
		default:
			return Result{}, rerr.UnknownCommandKind(string(c.Kind))
		}
	}

	return result, os.RemoveAll(workdir)
}
