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
	"strings"

	"github.com/radu-munteanu/fsnotify"
)

// initWatcher sets up the fsnotify watch on cfg.IncomingDir.
func (s *Server) initWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.cfg.IncomingDir); err != nil {
		return err
	}
	s.watcher = watcher
	s.watchChan = make(chan bool)
	return nil
}

// watchIncoming reacts to files closed in the incoming directory whose
// name ends in InstructionSuffix by running the executor pipeline.
func (s *Server) watchIncoming() {
	s.watchGroup.Add(1)
	go func() {
		defer s.watchGroup.Done()
		for {
			select {
			case event := <-s.watcher.Events:
				if event.Op&fsnotify.Close == fsnotify.Close && strings.HasSuffix(event.Name, InstructionSuffix) {
					s.ApplyInstruction(event.Name)
				}
			case <-s.watchChan:
				return
			}
		}
	}()
}

// stopWatching shuts down the fsnotify watch goroutine.
func (s *Server) stopWatching() {
	s.watchChan <- true
	s.watchGroup.Wait()
}
