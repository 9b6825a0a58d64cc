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

// Package storeio is the one place in revship that shells out to the
// external store toolchain. It is defined as a small capability interface
// (Adapter) so the rest of the core can be tested against an in-memory
// fake instead of a real store binary.
package storeio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/revship/revship/internal/rerr"
	"github.com/revship/revship/internal/storepath"
)

// ActivationMode selects when a switch command takes effect.
type ActivationMode string

const (
	// ActivateImmediate switches the running system right away.
	ActivateImmediate ActivationMode = "immediate"

	// ActivateNextReboot only creates the generation; it becomes current
	// on the next boot.
	ActivateNextReboot ActivationMode = "next-reboot"
)

// BuildResult is what buildToplevel returns for one flake attribute.
type BuildResult struct {
	Derivation string
	Output     storepath.StorePath
	Revision   string
}

// Adapter is the capability interface over the external store toolchain.
// A production Adapter shells out to the binary named by Tool; tests use
// an in-memory fake that satisfies the same interface.
type Adapter interface {
	ResolveRevision(ctx context.Context, flakeURI, ref string) (string, error)
	BuildToplevel(ctx context.Context, flakeURI, revision, hostname, storeDir string) (BuildResult, error)
	QueryPathInfo(ctx context.Context, storeDir string, roots []storepath.StorePath) (map[storepath.StorePath]storepath.PathInfo, error)
	ExportToArchive(ctx context.Context, storeDir, archiveDir string, root storepath.StorePath) error
	ImportFromArchive(ctx context.Context, archiveDir string, root storepath.StorePath, targetStoreDir string) error
	ActivateGeneration(ctx context.Context, targetStoreRoot string, item storepath.StorePath, mode ActivationMode) error
}

// CLIAdapter is the production Adapter, invoking the external store tool
// named by Tool (commonly "nix").
type CLIAdapter struct {
	Tool string
}

// NewCLIAdapter constructs an Adapter that shells out to the named tool.
func NewCLIAdapter(tool string) *CLIAdapter {
	if tool == "" {
		tool = "nix"
	}
	return &CLIAdapter{Tool: tool}
}

func (a *CLIAdapter) run(ctx context.Context, op string, args ...string) ([]byte, error) {
	log.WithFields(log.Fields{"op": op, "args": args}).Debug("invoking store tool")
	cmd := exec.CommandContext(ctx, a.Tool, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, rerr.ExternalToolFailure(op, stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

// ResolveRevision implements Adapter.
func (a *CLIAdapter) ResolveRevision(ctx context.Context, flakeURI, ref string) (string, error) {
	target := flakeURI
	if ref != "" {
		target = fmt.Sprintf("%s?ref=%s", flakeURI, ref)
	}
	out, err := a.run(ctx, "resolveRevision", "flake", "info", "--json", target)
	if err != nil {
		return "", err
	}
	var payload struct {
		Revision string `json:"revision"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return "", rerr.ExternalOutputMalformed("resolveRevision", string(out), err)
	}
	return payload.Revision, nil
}

// availableHostnames asks the flake which nixosConfigurations it declares.
func (a *CLIAdapter) availableHostnames(ctx context.Context, flakeURI, revision string) ([]string, error) {
	target := fmt.Sprintf("%s?rev=%s", flakeURI, revision)
	out, err := a.run(ctx, "buildToplevel", "flake", "show", "--json", target)
	if err != nil {
		return nil, err
	}
	var payload struct {
		NixosConfigurations map[string]json.RawMessage `json:"nixosConfigurations"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, rerr.ExternalOutputMalformed("buildToplevel", string(out), err)
	}
	hosts := make([]string, 0, len(payload.NixosConfigurations))
	for h := range payload.NixosConfigurations {
		hosts = append(hosts, h)
	}
	return hosts, nil
}

// BuildToplevel implements Adapter, validating the hostname against the
// flake's declared configurations before invoking the build verb.
func (a *CLIAdapter) BuildToplevel(ctx context.Context, flakeURI, revision, hostname, storeDir string) (BuildResult, error) {
	hosts, err := a.availableHostnames(ctx, flakeURI, revision)
	if err != nil {
		return BuildResult{}, err
	}
	found := false
	for _, h := range hosts {
		if h == hostname {
			found = true
			break
		}
	}
	if !found {
		return BuildResult{}, rerr.UnknownHostname(hostname, hosts)
	}

	attr := fmt.Sprintf("%s?rev=%s#nixosConfigurations.%s.config.system.build.toplevel", flakeURI, revision, hostname)
	out, err := a.run(ctx, "buildToplevel", "build", "--json", "--no-link", "--store", storeDir, attr)
	if err != nil {
		return BuildResult{}, err
	}
	var results []struct {
		DrvPath string `json:"drvPath"`
		Outputs struct {
			Out string `json:"out"`
		} `json:"outputs"`
	}
	if err := json.Unmarshal(out, &results); err != nil || len(results) != 1 {
		return BuildResult{}, rerr.ExternalOutputMalformed("buildToplevel", string(out), err)
	}
	return BuildResult{
		Derivation: results[0].DrvPath,
		Output:     storepath.StorePath(results[0].Outputs.Out),
		Revision:   revision,
	}, nil
}

// QueryPathInfo implements Adapter, returning the union closure of roots.
func (a *CLIAdapter) QueryPathInfo(ctx context.Context, storeDir string, roots []storepath.StorePath) (map[storepath.StorePath]storepath.PathInfo, error) {
	result := make(map[storepath.StorePath]storepath.PathInfo)
	if len(roots) == 0 {
		return result, nil
	}
	args := []string{"path-info", "--json", "--recursive", "--store", storeDir}
	for _, r := range roots {
		args = append(args, string(r))
	}
	out, err := a.run(ctx, "queryPathInfo", args...)
	if err != nil {
		return nil, err
	}
	var entries []struct {
		Path       string   `json:"path"`
		NarHash    string   `json:"narHash"`
		NarSize    int64    `json:"narSize"`
		References []string `json:"references"`
	}
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, rerr.ExternalOutputMalformed("queryPathInfo", string(out), err)
	}
	for _, e := range entries {
		refs := storepath.NewSet()
		for _, r := range e.References {
			refs[storepath.StorePath(r)] = true
		}
		p := storepath.StorePath(e.Path)
		result[p] = storepath.PathInfo{
			Path:       p,
			NarHash:    e.NarHash,
			NarSize:    e.NarSize,
			References: refs,
		}
	}
	return result, nil
}

// ExportToArchive implements Adapter.
func (a *CLIAdapter) ExportToArchive(ctx context.Context, storeDir, archiveDir string, root storepath.StorePath) error {
	_, err := a.run(ctx, "exportToArchive", "copy", "--to", "file://"+archiveDir, "--store", storeDir, string(root))
	return err
}

// ImportFromArchive implements Adapter.
func (a *CLIAdapter) ImportFromArchive(ctx context.Context, archiveDir string, root storepath.StorePath, targetStoreDir string) error {
	_, err := a.run(ctx, "importFromArchive", "copy", "--from", "file://"+archiveDir, "--to", targetStoreDir, string(root))
	if err != nil {
		if rerrErr, ok := err.(*rerr.Error); ok {
			return rerr.ImportFailed(rerrErr.Detail, rerrErr.Err)
		}
		return err
	}
	return nil
}

// ActivateGeneration implements Adapter.
func (a *CLIAdapter) ActivateGeneration(ctx context.Context, targetStoreRoot string, item storepath.StorePath, mode ActivationMode) error {
	verb := "switch"
	if mode == ActivateNextReboot {
		verb = "boot"
	}
	script := string(item) + "/bin/switch-to-configuration"
	args := []string{verb}
	if targetStoreRoot != "" && targetStoreRoot != "/" {
		args = append(args, "--install-bootloader=false")
	}
	_, err := a.run(ctx, "activateGeneration", append([]string{script}, args...)...)
	if err != nil {
		if rerrErr, ok := err.(*rerr.Error); ok {
			return rerr.ActivationFailed(rerrErr.Detail, rerrErr.Err)
		}
		return err
	}
	return nil
}

// SplitRoots converts store paths to plain strings, in the same order,
// e.g. for the args list of a queryPathInfo-shaped verb.
func SplitRoots(roots []storepath.StorePath) []string {
	out := make([]string, len(roots))
	for i, r := range roots {
		out[i] = string(r)
	}
	return out
}

// JoinRoots renders roots as one comma-separated string, mostly useful in
// logging.
func JoinRoots(roots []storepath.StorePath) string {
	return strings.Join(SplitRoots(roots), ",")
}
