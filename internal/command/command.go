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

// Package command defines the two tagged-variant commands an instruction
// is built from: Load (import a delta archive) and Switch (activate a
// generation). Each variant keeps its serialized form free of anything
// that only makes sense on the build host.
package command

import (
	"encoding/json"
	"fmt"

	"github.com/revship/revship/internal/rerr"
	"github.com/revship/revship/internal/storeio"
	"github.com/revship/revship/internal/storepath"
)

// Kind discriminates the two command variants.
type Kind string

const (
	// KindLoad imports a delta archive into the target store.
	KindLoad Kind = "load"

	// KindSwitch activates an already-present store path as a generation.
	KindSwitch Kind = "switch"
)

// Load imports a delta archive into the store.
type Load struct {
	ArchivePath       string                `json:"archivePath"`
	Item              storepath.StoreRoot   `json:"item"`
	DeltaDependencies []storepath.StoreRoot `json:"deltaDependencies"`
	PartialNarinfos   bool                  `json:"partialNarinfos"`
}

// Switch activates an already-present store path as a generation.
type Switch struct {
	Item storepath.StoreRoot    `json:"item"`
	Mode storeio.ActivationMode `json:"mode"`
}

// Command is one entry in an Instruction's command list: exactly one of
// Load or Switch is non-nil, mirroring the discriminated wire shape.
type Command struct {
	Kind   Kind
	Load   *Load
	Switch *Switch
}

// wire is the JSON shape with the discriminator folded into the same
// object as the variant's own fields.
type wire struct {
	Kind Kind `json:"kind"`

	// Load fields
	ArchivePath       string                `json:"archivePath,omitempty"`
	Item              *storepath.StoreRoot  `json:"item,omitempty"`
	DeltaDependencies []storepath.StoreRoot `json:"deltaDependencies,omitempty"`
	PartialNarinfos   bool                  `json:"partialNarinfos,omitempty"`

	// Switch fields
	Mode storeio.ActivationMode `json:"mode,omitempty"`
}

// MarshalJSON renders the command with its discriminator.
func (c Command) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindLoad:
		if c.Load == nil {
			return nil, fmt.Errorf("command: kind load with nil Load")
		}
		item := c.Load.Item
		return json.Marshal(wire{
			Kind:              KindLoad,
			ArchivePath:       c.Load.ArchivePath,
			Item:              &item,
			DeltaDependencies: c.Load.DeltaDependencies,
			PartialNarinfos:   c.Load.PartialNarinfos,
		})
	case KindSwitch:
		if c.Switch == nil {
			return nil, fmt.Errorf("command: kind switch with nil Switch")
		}
		item := c.Switch.Item
		return json.Marshal(wire{
			Kind: KindSwitch,
			Item: &item,
			Mode: c.Switch.Mode,
		})
	default:
		return nil, fmt.Errorf("command: unknown kind %q", c.Kind)
	}
}

// UnmarshalJSON parses the discriminator first, then the variant's own
// fields; an unrecognized discriminator is rejected as UnknownCommandKind.
func (c *Command) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case KindLoad:
		if w.Item == nil {
			return rerr.InvalidInstruction("load command missing item")
		}
		c.Kind = KindLoad
		c.Load = &Load{
			ArchivePath:       w.ArchivePath,
			Item:              *w.Item,
			DeltaDependencies: w.DeltaDependencies,
			PartialNarinfos:   w.PartialNarinfos,
		}
		return nil
	case KindSwitch:
		if w.Item == nil {
			return rerr.InvalidInstruction("switch command missing item")
		}
		c.Kind = KindSwitch
		c.Switch = &Switch{Item: *w.Item, Mode: w.Mode}
		return nil
	default:
		return rerr.UnknownCommandKind(string(w.Kind))
	}
}

// NewLoad constructs a Load command from its build-time result.
func NewLoad(archivePath string, item storepath.StoreRoot, deps []storepath.StoreRoot, partial bool) Command {
	return Command{
		Kind: KindLoad,
		Load: &Load{
			ArchivePath:       archivePath,
			Item:              item,
			DeltaDependencies: deps,
			PartialNarinfos:   partial,
		},
	}
}

// NewSwitch constructs a Switch command.
func NewSwitch(item storepath.StoreRoot, mode storeio.ActivationMode) Command {
	return Command{Kind: KindSwitch, Switch: &Switch{Item: item, Mode: mode}}
}
