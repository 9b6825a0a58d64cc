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

// Package delta implements the pure store-delta algorithm: given the
// closures reachable from a set of "from" roots and a single "to" root,
// it decides exactly which paths are new.
package delta

import (
	"sort"

	"github.com/revship/revship/internal/rerr"
	"github.com/revship/revship/internal/storepath"
)

// Delta is the result of computeDelta: the store paths newly reachable
// from "to" that are absent from the union of the "from" closures, and
// the full closure of "to" for reference.
type Delta struct {
	Added             []storepath.PathInfo
	AllResultingItems []storepath.PathInfo
}

// CloserQuery abstracts the store I/O adapter's queryPathInfo, giving the
// engine the union closure of a set of roots as a map keyed by path.
type CloserQuery func(roots []storepath.StorePath) (map[storepath.StorePath]storepath.PathInfo, error)

// Compute diffs the closure reachable from fromRoots against the closure
// reachable from toRoot, returning everything new in toRoot's closure.
//
// fromRoots may be empty, in which case Added equals AllResultingItems.
// Both returned lists are topologically ordered (a path appears after
// everything it references), ties broken lexicographically on Path, so
// that the output is fully deterministic.
func Compute(query CloserQuery, fromRoots []storepath.StorePath, toRoot storepath.StorePath) (Delta, error) {
	fromClosure, err := query(fromRoots)
	if err != nil {
		return Delta{}, err
	}
	toClosure, err := query([]storepath.StorePath{toRoot})
	if err != nil {
		return Delta{}, err
	}

	allResultingItems, err := topoSort(toClosure)
	if err != nil {
		return Delta{}, err
	}

	added := make([]storepath.PathInfo, 0, len(allResultingItems))
	for _, pi := range allResultingItems {
		if _, present := fromClosure[pi.Path]; !present {
			added = append(added, pi)
		}
	}

	return Delta{Added: added, AllResultingItems: allResultingItems}, nil
}

// topoSort orders a closure so that every path appears after all of the
// paths it references (a "references depend on me" ordering would be the
// reverse; we want the producer-before-consumer order: a path appears
// after everything it references). Ties are broken lexicographically on
// Path for determinism.
func topoSort(closure map[storepath.StorePath]storepath.PathInfo) ([]storepath.PathInfo, error) {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[storepath.StorePath]int, len(closure))
	order := make([]storepath.PathInfo, 0, len(closure))

	keys := make([]storepath.StorePath, 0, len(closure))
	for p := range closure {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var visit func(p storepath.StorePath) error
	visit = func(p storepath.StorePath) error {
		switch state[p] {
		case visited:
			return nil
		case visiting:
			return rerr.ClosureCycle(string(p))
		}
		state[p] = visiting

		pi, ok := closure[p]
		if ok {
			refs := pi.ReferenceList()
			sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
			for _, r := range refs {
				if r == p {
					continue
				}
				if _, inClosure := closure[r]; !inClosure {
					continue
				}
				if err := visit(r); err != nil {
					return err
				}
			}
			order = append(order, pi)
		}
		state[p] = visited
		return nil
	}

	for _, p := range keys {
		if err := visit(p); err != nil {
			return nil, err
		}
	}
	return order, nil
}
