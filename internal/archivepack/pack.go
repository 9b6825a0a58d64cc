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

package archivepack

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"

	"github.com/solus-project/xzed"
)

// Pack collapses workDir into a single xz-compressed tar file at
// destinationPath. revship owns this step itself, as a thin wrapper over
// a standard streaming archive format — no store toolchain verb covers
// packing an instruction directory for transport.
func Pack(workDir, destinationPath string) error {
	out, err := os.Create(destinationPath)
	if err != nil {
		return err
	}
	defer out.Close()

	xzw, err := xzed.NewWriter(out)
	if err != nil {
		return err
	}
	defer xzw.Close()

	tw := tar.NewWriter(xzw)
	defer tw.Close()

	err = filepath.Walk(workDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(workDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return err
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	return nil
}

// Unpack decompresses an instruction file produced by Pack into destDir,
// which must already exist and be empty.
func Unpack(sourcePath, destDir string) error {
	in, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer in.Close()

	xzr, err := xzed.NewReader(in)
	if err != nil {
		return err
	}
	defer xzr.Close()

	tr := tar.NewReader(xzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		target := filepath.Join(destDir, header.Name)
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg, tar.TypeRegA:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(header.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			f.Close()
		}
	}
	return nil
}
