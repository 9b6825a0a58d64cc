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
)

func TestPackUnpackRoundTrip(t *testing.T) {
	workDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(workDir, "archive"), 0o755); err != nil {
		t.Fatalf("failed to seed workdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, "instruction.json"), []byte(`{"kind":"switch"}`), 0o644); err != nil {
		t.Fatalf("failed to write instruction.json: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, "archive", "aaa-pkg"), []byte("payload"), 0o644); err != nil {
		t.Fatalf("failed to write data object: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "instruction.revinstr")
	if err := Pack(workDir, dest); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	outDir := t.TempDir()
	if err := Unpack(dest, outDir); err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(outDir, "instruction.json"))
	if err != nil {
		t.Fatalf("expected instruction.json to round-trip: %v", err)
	}
	if string(got) != `{"kind":"switch"}` {
		t.Errorf("instruction.json mismatch: %s", got)
	}

	payload, err := os.ReadFile(filepath.Join(outDir, "archive", "aaa-pkg"))
	if err != nil {
		t.Fatalf("expected archive/aaa-pkg to round-trip: %v", err)
	}
	if string(payload) != "payload" {
		t.Errorf("payload mismatch: %s", payload)
	}
}
