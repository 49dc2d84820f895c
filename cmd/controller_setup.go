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

package main

import (
	"fmt"

	"go.uber.org/zap"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"github.com/tjo-space/tjo-cloud-console/internal/config"
	"github.com/tjo-space/tjo-cloud-console/internal/metrics"
	"github.com/tjo-space/tjo-cloud-console/internal/postgresql"
)

// setupRunnables adds the background loops that run next to the controllers
func setupRunnables(mgr ctrl.Manager, cfg *config.Config, watcher *postgresql.HealthWatcher, lg *zap.SugaredLogger) error {
	type runnableSetup struct {
		name     string
		runnable manager.Runnable
	}

	runnables := []runnableSetup{
		{
			name:     "BackendHealthWatcher",
			runnable: watcher,
		},
		{
			name: "ObjectCollector",
			runnable: metrics.NewCollector(mgr.GetClient(), lg.With("runnable", "collector"),
				cfg.CollectorInterval.Duration, cfg.StorageEnabled()),
		},
	}

	for _, r := range runnables {
		if err := mgr.Add(r.runnable); err != nil {
			lg.Errorw("unable to add runnable", "runnable", r.name, "error", err)
			return fmt.Errorf("unable to add runnable %s: %w", r.name, err)
		}
	}

	return nil
}
