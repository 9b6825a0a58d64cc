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

// Package archivepack materializes directory subsets of a store archive
// and packs/unpacks the instruction directory into a single transportable
// xz-compressed tarball.
package archivepack

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/revship/revship/internal/rerr"
	"github.com/revship/revship/internal/storepath"
)

// hashPrefix extracts the store-hash component of a store path, which is
// also the basename used for data objects and "<hash>.narinfo" info files.
func hashPrefix(p storepath.StorePath) string {
	base := filepath.Base(string(p))
	if i := strings.IndexByte(base, '-'); i >= 0 {
		return base[:i]
	}
	return base
}

// InfoFileName is the on-disk name of the info entry for a store path.
func InfoFileName(p storepath.StorePath) string {
	return hashPrefix(p) + ".narinfo"
}

// MakeSubset copies into destDir exactly the info entries for
// infoItemPaths and the data entries for dataItemPaths, found in
// sourceArchive. Any prior contents of destDir are removed first. Neither
// list need be a subset of the other.
func MakeSubset(sourceArchive, destDir string, infoItemPaths, dataItemPaths []storepath.StorePath) error {
	if err := os.RemoveAll(destDir); err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	for _, p := range infoItemPaths {
		name := InfoFileName(p)
		src := filepath.Join(sourceArchive, name)
		if _, err := os.Stat(src); err != nil {
			return rerr.ArchiveIncomplete("info", string(p))
		}
		if err := copyFile(src, filepath.Join(destDir, name)); err != nil {
			return err
		}
	}

	for _, p := range dataItemPaths {
		name := hashPrefix(p)
		src := filepath.Join(sourceArchive, name)
		fi, err := os.Stat(src)
		if err != nil {
			return rerr.ArchiveIncomplete("data", string(p))
		}
		dst := filepath.Join(destDir, name)
		if fi.IsDir() {
			if err := copyDir(src, dst); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(src, dst); err != nil {
			return err
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, st.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return nil
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

// ListDataPaths returns the dataItemPaths convenience for a Delta-shaped
// set of PathInfo, mostly to avoid repeating the same extraction at every
// call site in internal/build.
func ListDataPaths(infos []storepath.PathInfo) []storepath.StorePath {
	out := make([]storepath.StorePath, len(infos))
	for i, pi := range infos {
		out[i] = pi.Path
	}
	return out
}

// ValidateArchivePathSegment rejects anything but a single path segment:
// no separators, and not "." or "..". archivePath values travel inside an
// untrusted, decompressed instruction and are joined directly onto a
// filesystem path, so this is the one thing standing between a crafted
// archivePath and a directory traversal out of the instruction workdir.
func ValidateArchivePathSegment(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid archive path segment: %q", name)
	}
	if filepath.Base(name) != name {
		return fmt.Errorf("archive path must be a single segment: %q", name)
	}
	return nil
}
