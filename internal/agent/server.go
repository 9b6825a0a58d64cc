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

// Package agent is revshipd: a long-running daemon that watches an
// incoming directory for dropped instruction files and runs the
// executor pipeline automatically, exposing status/metrics over a unix
// socket. It introduces no new instruction semantics of its own, only an
// automated way to invoke the same executor the CLI drives.
package agent

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/activation"
	"github.com/coreos/go-systemd/daemon"
	"github.com/julienschmidt/httprouter"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/radu-munteanu/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/revship/revship/internal/config"
	"github.com/revship/revship/internal/execute"
	"github.com/revship/revship/internal/gen"
	"github.com/revship/revship/internal/storeio"
)

// InstructionSuffix names the files the watcher reacts to in the
// incoming directory.
const InstructionSuffix = ".revinstr"

// LockFileName is created within cfg.BaseDir to assert sole ownership.
const LockFileName = "revshipd.lock"

// Server watches an incoming directory for instruction files and serves
// a status/metrics API on a unix socket.
type Server struct {
	cfg     config.Config
	adapter storeio.Adapter

	srv    *http.Server
	router *httprouter.Router
	socket net.Listener

	registry *prom.Registry
	metrics  *metrics

	history    *gen.HistoryStore
	buildCache *gen.BuildCache

	lockFile *LockFile

	timeStarted time.Time
	running     bool

	watcher    *fsnotify.Watcher
	watchChan  chan bool
	watchGroup *sync.WaitGroup

	systemdEnabled bool
}

// NewServer constructs an unbound Server for cfg.
func NewServer(cfg config.Config, adapter storeio.Adapter) (*Server, error) {
	router := httprouter.New()
	reg := prom.NewRegistry()

	s := &Server{
		cfg:         cfg,
		adapter:     adapter,
		srv:         &http.Server{Handler: router},
		router:      router,
		registry:    reg,
		metrics:     newMetrics(reg),
		timeStarted: time.Now().UTC(),
		watchGroup:  &sync.WaitGroup{},
	}

	lockPath := filepath.Join(cfg.BaseDir, LockFileName)
	lf, err := NewLockFile(lockPath)
	if err != nil {
		return nil, err
	}
	s.lockFile = lf
	if err := s.lockFile.Lock(); err != nil {
		return nil, err
	}

	history, err := gen.OpenHistoryStore(filepath.Join(cfg.BaseDir, "generations.db"))
	if err != nil {
		return nil, err
	}
	s.history = history

	buildCache, err := gen.OpenBuildCache(filepath.Join(cfg.BaseDir, "buildcache"))
	if err != nil {
		return nil, err
	}
	s.buildCache = buildCache

	router.GET("/status", s.handleStatus)
	router.GET("/generations", s.handleGenerations)
	router.GET(cfg.MetricsPath, s.handleMetrics)

	return s, nil
}

// handleMetrics delegates to the standard promhttp handler.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// killHandler ensures a clean teardown on SIGINT/SIGTERM.
func (s *Server) killHandler() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		log.Warning("revshipd shutting down")
		s.Close()
		os.Exit(1)
	}()
}

// Bind sets up the listener, either inheriting a systemd-activated
// socket or creating one at cfg.SocketPath.
func (s *Server) Bind() error {
	var listener net.Listener

	if _, ok := os.LookupEnv("LISTEN_FDS"); ok {
		listeners, err := activation.Listeners(true)
		if err != nil {
			return err
		}
		if len(listeners) != 1 {
			return errors.New("expected a single unix socket from systemd activation")
		}
		listener = listeners[0]
		if unix, ok := listener.(*net.UnixListener); ok {
			unix.SetUnlinkOnClose(false)
		} else {
			return errors.New("expected a unix socket from systemd activation")
		}
		s.systemdEnabled = true
	} else {
		l, err := net.Listen("unix", s.cfg.SocketPath)
		if err != nil {
			return err
		}
		listener = l
	}

	if err := os.MkdirAll(s.cfg.IncomingDir, 0o755); err != nil {
		return err
	}
	if err := s.initWatcher(); err != nil {
		return err
	}

	if !s.systemdEnabled {
		uid := os.Getuid()
		gid := os.Getgid()
		if err := os.Chown(s.cfg.SocketPath, uid, gid); err != nil {
			return err
		}
		if err := os.Chmod(s.cfg.SocketPath, 0o660); err != nil {
			return err
		}
	}
	s.socket = listener
	return nil
}

// Serve blocks, serving the status API and processing incoming
// instructions until the process is signalled to stop.
func (s *Server) Serve() error {
	if s.socket == nil {
		return errors.New("cannot serve without a bound socket")
	}
	s.running = true
	s.killHandler()
	defer func() { s.running = false }()

	s.watchIncoming()

	if s.systemdEnabled {
		daemon.SdNotify(false, "READY=1")
	}

	if err := s.srv.Serve(s.socket); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close tears the server down, releasing the lock file and closing the
// databases.
func (s *Server) Close() {
	if !s.running {
		return
	}
	if s.lockFile != nil {
		s.lockFile.Unlock()
		s.lockFile.Clean()
		s.lockFile = nil
	}
	s.stopWatching()
	if s.history != nil {
		s.history.Close()
	}
	if s.buildCache != nil {
		s.buildCache.Close()
	}
	s.running = false
	s.srv.Shutdown(context.Background())
	if !s.systemdEnabled {
		os.Remove(s.cfg.SocketPath)
	}
}

// ApplyInstruction runs the executor pipeline against an instruction
// file and records a successful Switch into the generation history.
func (s *Server) ApplyInstruction(instructionFile string) error {
	start := time.Now()
	result, err := execute.ExecuteInstruction(context.Background(), s.adapter, instructionFile, s.cfg.Store, filepath.Join(s.cfg.BaseDir, "client-state"))

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.metrics.applyDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	s.metrics.instructionsApplied.WithLabelValues(outcome).Inc()

	if err != nil {
		log.WithFields(log.Fields{"instruction": instructionFile, "error": err}).Error("failed to apply instruction")
		return err
	}

	if result.Switched != nil && s.history != nil {
		hostname, _ := os.Hostname()
		if _, err := s.history.Append(result.Switched.Item, string(result.Switched.Mode), hostname, time.Now()); err != nil {
			log.WithFields(log.Fields{"error": err}).Warn("failed to record generation history")
		}
	}

	log.WithFields(log.Fields{"instruction": instructionFile}).Info("applied instruction")
	return nil
}
