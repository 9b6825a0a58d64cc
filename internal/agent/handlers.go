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
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

type statusResponse struct {
	TimeStarted time.Time `json:"timeStarted"`
	IncomingDir string    `json:"incomingDir"`
	Store       string    `json:"store"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, statusResponse{
		TimeStarted: s.timeStarted,
		IncomingDir: s.cfg.IncomingDir,
		Store:       s.cfg.Store,
	})
}

func (s *Server) handleGenerations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	recs, err := s.history.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.metrics.generationsActive.Set(float64(len(recs)))
	writeJSON(w, recs)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
