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

package agent

import (
	"fmt"
	"os"
)

// LockFile asserts single-instance ownership of baseDir via an exclusive
// PID file, so two revshipd processes never watch the same incoming
// directory at once.
type LockFile struct {
	path string
	file *os.File
}

// NewLockFile prepares (without acquiring) a lock at path.
func NewLockFile(path string) (*LockFile, error) {
	return &LockFile{path: path}, nil
}

// Lock acquires the lock, failing if another process already holds it.
func (l *LockFile) Lock() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("revshipd already running (lock file %s exists)", l.path)
		}
		return err
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()
		return err
	}
	l.file = f
	return nil
}

// Unlock releases the in-memory handle. The lock file itself is removed
// by Clean.
func (l *LockFile) Unlock() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Clean removes the lock file from disk.
func (l *LockFile) Clean() error {
	return os.Remove(l.path)
}
