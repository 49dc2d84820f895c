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

package postgresql

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

// HealthStatus is the last known state of a backend connection
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "Unknown"
	HealthHealthy   HealthStatus = "Healthy"
	HealthUnhealthy HealthStatus = "Unhealthy"
)

// DefaultFailureThreshold is the number of consecutive failed pings that count as a lost backend
const DefaultFailureThreshold = 3

// BackendHealth is the health record of one backend
type BackendHealth struct {
	Status              HealthStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	LastError           string       `json:"lastError,omitempty"`
	LastCheck           time.Time    `json:"lastCheck,omitempty"`
}

// HealthWatcher pings every registered backend on an interval. With Fatal set, a backend
// that stays unreachable for FailureThreshold pings stops the manager.
type HealthWatcher struct {
	Registry         *Registry
	Interval         time.Duration
	Fatal            bool
	FailureThreshold int
	Log              *zap.SugaredLogger

	mu     sync.RWMutex
	health map[string]BackendHealth
	now    func() time.Time
}

// NewHealthWatcher returns a watcher with every backend in HealthUnknown
func NewHealthWatcher(registry *Registry, interval time.Duration, fatal bool, log *zap.SugaredLogger) *HealthWatcher {
	w := &HealthWatcher{
		Registry:         registry,
		Interval:         interval,
		Fatal:            fatal,
		FailureThreshold: DefaultFailureThreshold,
		Log:              log,
		health:           make(map[string]BackendHealth, registry.Len()),
		now:              time.Now,
	}
	for _, key := range registry.Keys() {
		w.health[key] = BackendHealth{Status: HealthUnknown}
	}
	return w
}

// Start implements manager.Runnable
func (w *HealthWatcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Check(ctx); err != nil && w.Fatal {
				w.Log.Errorw("Lost connection to PostgreSQL backend, stopping", "error", err)
				return err
			}
		}
	}
}

// NeedLeaderElection implements manager.LeaderElectionRunnable
func (w *HealthWatcher) NeedLeaderElection() bool {
	return false
}

// Check pings every backend once and returns an error naming the first backend whose
// connection has been lost for FailureThreshold checks
func (w *HealthWatcher) Check(ctx context.Context) error {
	var lost error
	for _, key := range w.Registry.Keys() {
		if ctx.Err() != nil {
			return nil
		}
		backend, err := w.Registry.Get(key)
		if err != nil {
			continue
		}

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		pingErr := backend.Ping(pingCtx)
		cancel()

		record := w.record(key, pingErr)
		if pingErr != nil {
			w.Log.Warnw("PostgreSQL backend ping failed",
				"backend", key, "consecutiveFailures", record.ConsecutiveFailures, "error", pingErr)
			// A server that answers with an error is still reachable
			if lost == nil && operrors.IsConnectionError(pingErr) && record.ConsecutiveFailures >= w.FailureThreshold {
				lost = operrors.Wrapf(operrors.ErrPostgresqlConnectionFailed, pingErr,
					"backend %s unreachable for %d checks", key, record.ConsecutiveFailures)
			}
		}
	}
	return lost
}

func (w *HealthWatcher) record(key string, pingErr error) BackendHealth {
	w.mu.Lock()
	defer w.mu.Unlock()

	h := w.health[key]
	h.LastCheck = w.now()
	if pingErr == nil {
		h.Status = HealthHealthy
		h.ConsecutiveFailures = 0
		h.LastError = ""
	} else {
		h.Status = HealthUnhealthy
		h.ConsecutiveFailures++
		h.LastError = pingErr.Error()
	}
	w.health[key] = h
	return h
}

// Status returns a copy of the health records
func (w *HealthWatcher) Status() map[string]BackendHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[string]BackendHealth, len(w.health))
	for k, v := range w.health {
		out[k] = v
	}
	return out
}

// ReadyCheck is a healthz.Checker failing while any backend is unhealthy
func (w *HealthWatcher) ReadyCheck(_ *http.Request) error {
	for key, h := range w.Status() {
		if h.Status == HealthUnhealthy {
			return operrors.ErrPostgresqlConnectionFailed.WithDetail("backend %s: %s", key, h.LastError)
		}
	}
	return nil
}
