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

package main

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/revship/revship/internal/agent"
	"github.com/revship/revship/internal/config"
	"github.com/revship/revship/internal/storeio"
)

var (
	configPath = ""
	baseDir    = "/var/lib/revshipd"
	socketPath = "/run/revshipd.sock"
	storeTool  = "nix"
)

func mainLoop() {
	pflag.StringVarP(&configPath, "config", "c", "", "Path to a YAML configuration file")
	pflag.StringVarP(&baseDir, "base", "d", "/var/lib/revshipd", "Set the base directory for revshipd")
	pflag.StringVarP(&socketPath, "socket", "s", "/run/revshipd.sock", "Set the socket path for revshipd")
	pflag.StringVar(&storeTool, "tool", "nix", "External store tool to invoke")
	pflag.Parse()

	form := &log.TextFormatter{DisableColors: true}
	form.FullTimestamp = true
	form.TimestampFormat = "15:04:05"
	log.SetFormatter(form)

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot load configuration %s: %v\n", configPath, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if configPath == "" || pflag.CommandLine.Changed("base") {
		cfg.BaseDir = baseDir
	}
	if configPath == "" || pflag.CommandLine.Changed("socket") {
		cfg.SocketPath = socketPath
	}
	if configPath == "" || pflag.CommandLine.Changed("tool") {
		cfg.Tool = storeTool
	}

	b, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot resolve directory %v: %v\n", cfg.BaseDir, err)
		os.Exit(1)
	}
	cfg.BaseDir = b

	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot create base directory %s: %v\n", cfg.BaseDir, err)
		os.Exit(1)
	}

	adapter := storeio.NewCLIAdapter(cfg.Tool)

	srv, err := agent.NewServer(cfg, adapter)
	if err != nil {
		lockPath := filepath.Join(cfg.BaseDir, agent.LockFileName)
		fmt.Fprintf(os.Stderr, "Failed to start revshipd: %v (lockfile: %v)\n", err, lockPath)
		os.Exit(1)
	}
	defer srv.Close()

	logPath := filepath.Join(cfg.BaseDir, "revshipd.log")
	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %s %v\n", logPath, err)
		os.Exit(1)
	}
	defer logFile.Close()
	log.SetOutput(logFile)

	log.Info("Initialising revshipd")

	if err := srv.Bind(); err != nil {
		log.WithFields(log.Fields{"socket": cfg.SocketPath, "error": err}).Error("Error in binding server socket")
		fmt.Fprintf(os.Stderr, "Fatal error in socket bind, check logs: %v\n", err)
		return
	}
	if err := srv.Serve(); err != nil {
		log.WithFields(log.Fields{"socket": cfg.SocketPath, "error": err}).Error("Error in serving on socket")
		fmt.Fprintf(os.Stderr, "Fatal error in runtime execution, check logs: %v\n", err)
		return
	}
}

func main() {
	mainLoop()
}
