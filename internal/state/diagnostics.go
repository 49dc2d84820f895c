/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package state holds diagnostics shared between the reconcilers and the HTTP endpoints.
package state

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Reporter is the component name events are recorded under
const Reporter = "console.tjo.cloud"

// Diagnostics is what the /diagnostics endpoint reports
type Diagnostics struct {
	LastEvent time.Time `json:"last_event"`
	Reporter  string    `json:"reporter"`
}

// DiagnosticsState is safe for concurrent use by reconcilers and readers
type DiagnosticsState struct {
	mu        sync.RWMutex
	lastEvent time.Time
	now       func() time.Time
}

// NewDiagnosticsState starts with lastEvent set to the current time
func NewDiagnosticsState() *DiagnosticsState {
	return &DiagnosticsState{lastEvent: time.Now().UTC(), now: time.Now}
}

// Touch records that a reconciliation just started
func (s *DiagnosticsState) Touch() {
	t := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEvent = t
}

// Snapshot returns a copy of the current diagnostics
func (s *DiagnosticsState) Snapshot() Diagnostics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Diagnostics{LastEvent: s.lastEvent, Reporter: Reporter}
}

// ServeHTTP writes the diagnostics as JSON
func (s *DiagnosticsState) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Snapshot())
}
