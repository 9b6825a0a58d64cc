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

package gen

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/revship/revship/internal/storepath"
)

// BuildCache memoizes (flakeUri, hostname, revision) -> StoreRoot so that
// independent revision builds across Load commands in the same
// instruction don't re-invoke buildToplevel for a revision already
// resolved. It is purely an optimization: a miss always falls back to a
// real build, so the cache is never load-bearing for correctness.
type BuildCache struct {
	db *leveldb.DB
}

// OpenBuildCache opens (creating if absent) the build cache at path.
func OpenBuildCache(path string) (*BuildCache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &BuildCache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *BuildCache) Close() error {
	return c.db.Close()
}

func cacheKey(flakeURI, hostname, revision string) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s", flakeURI, hostname, revision))
}

// Lookup returns the cached StoreRoot for (flakeUri, hostname, revision),
// and whether one was found.
func (c *BuildCache) Lookup(flakeURI, hostname, revision string) (storepath.StoreRoot, bool, error) {
	val, err := c.db.Get(cacheKey(flakeURI, hostname, revision), nil)
	if err == leveldb.ErrNotFound {
		return storepath.StoreRoot{}, false, nil
	}
	if err != nil {
		return storepath.StoreRoot{}, false, err
	}
	dec := newGobDecoder()
	var root storepath.StoreRoot
	if err := dec.DecodeType(val, &root); err != nil {
		return storepath.StoreRoot{}, false, err
	}
	return root, true, nil
}

// Store records the StoreRoot a revision built to.
func (c *BuildCache) Store(flakeURI, hostname, revision string, root storepath.StoreRoot) error {
	enc := newGobEncoder()
	data, err := enc.EncodeType(root)
	if err != nil {
		return err
	}
	return c.db.Put(cacheKey(flakeURI, hostname, revision), data, nil)
}
