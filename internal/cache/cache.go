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

// Package cache is the target-local client metadata cache: a flat
// directory of "*.narinfo" files keyed by store-hash prefix. No locking
// is implemented; exclusive access to the cache directory during one
// instruction's execution is assumed.
package cache

import (
	"io"
	"os"
	"path/filepath"

	"github.com/revship/revship/internal/archivepack"
	"github.com/revship/revship/internal/storepath"
)

// ListInfoFiles returns the absolute paths, under cacheDir, of the info
// files whose store-hash prefix matches one of nixPaths. Missing entries
// are simply omitted from the result.
func ListInfoFiles(cacheDir string, nixPaths []storepath.StorePath) ([]string, error) {
	var out []string
	for _, p := range nixPaths {
		name := archivepack.InfoFileName(p)
		full := filepath.Join(cacheDir, name)
		if _, err := os.Stat(full); err == nil {
			out = append(out, full)
		}
	}
	return out, nil
}

// ImportInfoFiles copies files into cacheDir by basename, overwriting any
// existing entry with the same name.
func ImportInfoFiles(cacheDir string, files []string) error {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}
	for _, f := range files {
		if err := copyFile(f, filepath.Join(cacheDir, filepath.Base(f))); err != nil {
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

	_, err = io.Copy(out, in)
	return err
}
