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

// Package config loads the revshipd agent's on-disk configuration. The
// build and execute pipelines never read this package directly; only
// cmd/revshipd wires it in, keeping the core pipelines free of ambient
// configuration.
package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the revshipd agent's on-disk configuration file.
type Config struct {
	// BaseDir is where revshipd keeps its lock file, client-state cache,
	// generation history and build cache.
	BaseDir string `yaml:"baseDir"`

	// SocketPath is the unix socket the status/metrics API binds.
	SocketPath string `yaml:"socketPath"`

	// IncomingDir is watched for dropped ".revinstr" files.
	IncomingDir string `yaml:"incomingDir"`

	// Store is the target store root ("/" for the live system).
	Store string `yaml:"store"`

	// Tool is the external store toolchain binary name (commonly "nix").
	Tool string `yaml:"tool"`

	// MetricsPath is the HTTP path Prometheus scrapes.
	MetricsPath string `yaml:"metricsPath"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		BaseDir:     "/var/lib/revshipd",
		SocketPath:  "/run/revshipd.sock",
		IncomingDir: "/var/lib/revshipd/incoming",
		Store:       "/",
		Tool:        "nix",
		MetricsPath: "/metrics",
	}
}

// Load reads and parses a YAML configuration file at path, overlaying it
// onto Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
