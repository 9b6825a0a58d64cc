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
	"os"
	"path/filepath"
	"testing"

	"github.com/revship/revship/internal/rerr"
	"github.com/revship/revship/internal/storepath"
)

func writeArchiveFixture(t *testing.T, dir string, hashes []string) {
	t.Helper()
	for _, h := range hashes {
		if err := os.WriteFile(filepath.Join(dir, h), []byte("data-"+h), 0o644); err != nil {
			t.Fatalf("failed to write fixture data file: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, h+".narinfo"), []byte("narinfo-"+h), 0o644); err != nil {
			t.Fatalf("failed to write fixture info file: %v", err)
		}
	}
}

func TestMakeSubsetCopiesOnlyRequested(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "subset")
	writeArchiveFixture(t, src, []string{"aaa", "bbb", "ccc"})

	err := MakeSubset(src, dst,
		[]storepath.StorePath{"/nix/store/aaa-pkg", "/nix/store/bbb-pkg"},
		[]storepath.StorePath{"/nix/store/aaa-pkg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"aaa", "aaa.narinfo", "bbb.narinfo"} {
		if _, err := os.Stat(filepath.Join(dst, want)); err != nil {
			t.Errorf("expected %s to be copied: %v", want, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dst, "ccc")); err == nil {
		t.Errorf("did not expect ccc to be copied")
	}
	if _, err := os.Stat(filepath.Join(dst, "bbb")); err == nil {
		t.Errorf("did not expect bbb data to be copied (only its info was requested)")
	}
}

func TestMakeSubsetClearsPriorContents(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeArchiveFixture(t, src, []string{"aaa"})
	if err := os.WriteFile(filepath.Join(dst, "stale"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to seed stale file: %v", err)
	}

	if err := MakeSubset(src, dst, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "stale")); err == nil {
		t.Errorf("expected stale contents to be removed")
	}
}

func TestMakeSubsetMissingEntryFails(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	err := MakeSubset(src, dst, nil, []storepath.StorePath{"/nix/store/missing-pkg"})
	if err == nil {
		t.Fatalf("expected an error for a missing data entry")
	}
	rerrErr, ok := err.(*rerr.Error)
	if !ok || rerrErr.Kind != rerr.KindArchiveIncomplete {
		t.Fatalf("expected ArchiveIncomplete, got %v", err)
	}
}

func TestValidateArchivePathSegment(t *testing.T) {
	cases := map[string]bool{
		"archive":    true,
		"":           false,
		".":          false,
		"..":         false,
		"a/b":        false,
		"../escape":  false,
	}
	for input, wantOK := range cases {
		err := ValidateArchivePathSegment(input)
		if (err == nil) != wantOK {
			t.Errorf("ValidateArchivePathSegment(%q): got err=%v, want ok=%v", input, err, wantOK)
		}
	}
}
