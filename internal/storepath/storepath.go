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

// Package storepath holds the immutable value types of the store data
// model: store paths, store roots and path metadata.
package storepath

import (
	"encoding/json"
	"sort"
)

// StorePath is an absolute path string identifying one object in a
// content-addressed store. It is opaque to the rest of revship; equality
// is plain string equality.
type StorePath string

// StoreRoot is the top-level system-configuration output built from one
// git revision of a flake.
type StoreRoot struct {
	NixPath     StorePath `json:"nixPath"`
	GitRevision string    `json:"gitRevision"`
}

// PathInfo is the metadata record for one store path: its content hash,
// its size, and the set of other paths it references.
type PathInfo struct {
	Path       StorePath          `json:"path"`
	NarHash    string             `json:"narHash"`
	NarSize    int64              `json:"narSize"`
	References map[StorePath]bool `json:"-"`
}

// ReferenceList returns the references of a PathInfo in no particular
// order; callers that need a stable order sort it (see MarshalJSON).
func (p PathInfo) ReferenceList() []StorePath {
	out := make([]StorePath, 0, len(p.References))
	for r := range p.References {
		out = append(out, r)
	}
	return out
}

// pathInfoWire is the JSON-friendly shape of PathInfo: References is
// serialized as a sorted list rather than a map.
type pathInfoWire struct {
	Path       StorePath   `json:"path"`
	NarHash    string      `json:"narHash"`
	NarSize    int64       `json:"narSize"`
	References []StorePath `json:"references"`
}

// MarshalJSON renders References as a deterministically sorted list.
func (p PathInfo) MarshalJSON() ([]byte, error) {
	refs := p.ReferenceList()
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return json.Marshal(pathInfoWire{
		Path:       p.Path,
		NarHash:    p.NarHash,
		NarSize:    p.NarSize,
		References: refs,
	})
}

// UnmarshalJSON restores References from the wire's sorted list.
func (p *PathInfo) UnmarshalJSON(data []byte) error {
	var wire pathInfoWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.Path = wire.Path
	p.NarHash = wire.NarHash
	p.NarSize = wire.NarSize
	p.References = make(map[StorePath]bool, len(wire.References))
	for _, r := range wire.References {
		p.References[r] = true
	}
	return nil
}

// Set is a small helper for closures: a deduplicated collection of store
// paths with deterministic iteration via Sorted.
type Set map[StorePath]bool

// NewSet builds a Set from a slice of paths.
func NewSet(paths ...StorePath) Set {
	s := make(Set, len(paths))
	for _, p := range paths {
		s[p] = true
	}
	return s
}

// Sorted returns the set's members in lexicographic order.
func (s Set) Sorted() []StorePath {
	out := make([]StorePath, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
