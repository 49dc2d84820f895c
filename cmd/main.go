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
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/go-logr/zapr"
	"github.com/spf13/afero"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	postgresqlv1 "github.com/tjo-space/tjo-cloud-console/api/postgresql/v1"
	s3v1 "github.com/tjo-space/tjo-cloud-console/api/s3/v1"
	"github.com/tjo-space/tjo-cloud-console/internal/config"
	"github.com/tjo-space/tjo-cloud-console/internal/controller"
	"github.com/tjo-space/tjo-cloud-console/internal/garage"
	"github.com/tjo-space/tjo-cloud-console/internal/k8s"
	"github.com/tjo-space/tjo-cloud-console/internal/logging"
	"github.com/tjo-space/tjo-cloud-console/internal/postgresql"
	"github.com/tjo-space/tjo-cloud-console/internal/state"
	"github.com/tjo-space/tjo-cloud-console/internal/tracing"
	"github.com/tjo-space/tjo-cloud-console/internal/vault"
	// +kubebuilder:scaffold:imports
)

var (
	scheme = runtime.NewScheme()
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	utilruntime.Must(postgresqlv1.AddToScheme(scheme))
	utilruntime.Must(s3v1.AddToScheme(scheme))
	// +kubebuilder:scaffold:scheme
}

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// nolint:gocyclo
func run() error {
	cfg := config.New()
	if err := ConfigParser(cfg, afero.NewOsFs(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return err
	}

	lg := logging.NewLogging(logging.ParseLevel(cfg.LogLevel))
	ctrl.SetLogger(zapr.NewLogger(lg.Desugar()))
	lg.Infow("Console controller starting",
		"backends", len(cfg.Postgresql), "storage", cfg.StorageEnabled(), "requeueInterval", cfg.RequeueInterval.String())

	ctx := ctrl.SetupSignalHandler()

	tp := tracing.NewProvider()
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			lg.Warnw("Failed to shut down tracer provider", "error", err)
		}
	}()

	var vaultClient *vault.Client
	if cfg.Vault.Address != "" {
		vc, err := vault.NewClient(ctx, cfg.Vault)
		if err != nil {
			lg.Errorw("unable to create Vault client", "error", err)
			return err
		}
		vaultClient = vc
		lg.Infow("Vault client initialized successfully")
	} else {
		lg.Infow("Vault address not set, Vault integration disabled")
	}

	if err := resolveBackendCredentials(ctx, cfg, vaultClient); err != nil {
		lg.Errorw("unable to read backend credentials", "error", err)
		return err
	}

	connectOpts := postgresql.ConnectOptions{Attempts: cfg.ConnectAttempts, RetryDelay: cfg.ConnectRetryDelay.Duration}
	registry, err := postgresql.ConnectAll(ctx, cfg.Postgresql,
		func(ctx context.Context, backend config.Backend) (postgresql.Backend, error) {
			c, err := postgresql.Connect(ctx, backend, connectOpts, lg)
			if err != nil {
				return nil, err
			}
			return c, nil
		})
	if err != nil {
		lg.Errorw("unable to connect PostgreSQL backends", "error", err)
		return err
	}
	defer func() {
		if err := registry.Close(); err != nil {
			lg.Warnw("Failed to close PostgreSQL backends", "error", err)
		}
	}()

	diagnostics := state.NewDiagnosticsState()
	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme: scheme,
		Metrics: metricsserver.Options{
			BindAddress:   cfg.MetricsAddr,
			ExtraHandlers: map[string]http.Handler{"/diagnostics": diagnostics},
		},
		HealthProbeBindAddress: cfg.ProbeAddr,
	})
	if err != nil {
		lg.Errorw("unable to start manager", "error", err)
		return err
	}

	if err := k8s.VerifyCRDs(ctx, mgr.GetAPIReader(), k8s.RequiredLists(cfg.StorageEnabled())); err != nil {
		lg.Errorw("custom resource definitions are missing", "error", err)
		return err
	}

	deps := controller.Dependencies{Backends: registry, Diagnostics: diagnostics}
	if cfg.StorageEnabled() {
		deps.Garage = garage.NewClient(cfg.S3.Address, cfg.S3.Token, cfg.S3.Timeout.Duration)
	}
	if vaultClient != nil && cfg.Vault.MirrorCredentials {
		deps.Mirror = vaultClient
	}

	if err := controller.SetupControllers(mgr, cfg, deps, lg); err != nil {
		return err
	}
	// +kubebuilder:scaffold:builder

	watcher := postgresql.NewHealthWatcher(registry, cfg.HealthCheckInterval.Duration, cfg.FatalOnDisconnect, lg)
	if err := setupRunnables(mgr, cfg, watcher, lg); err != nil {
		return err
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		lg.Errorw("unable to set up health check", "error", err)
		return err
	}
	if err := mgr.AddReadyzCheck("backends", watcher.ReadyCheck); err != nil {
		lg.Errorw("unable to set up ready check", "error", err)
		return err
	}
	if vaultClient != nil {
		err := mgr.AddReadyzCheck("vault", func(req *http.Request) error {
			return vaultClient.CheckHealth(req.Context())
		})
		if err != nil {
			lg.Errorw("unable to set up vault ready check", "error", err)
			return err
		}
	}

	lg.Infow("starting console controller")
	if err := mgr.Start(ctx); err != nil {
		lg.Errorw("problem running console controller", "error", err)
		return err
	}
	return nil
}

// resolveBackendCredentials fills in the admin credentials of backends that keep them in Vault
func resolveBackendCredentials(ctx context.Context, cfg *config.Config, vaultClient *vault.Client) error {
	for i := range cfg.Postgresql {
		backend := &cfg.Postgresql[i]
		if !backend.PasswordFromVault {
			continue
		}
		if vaultClient == nil {
			return fmt.Errorf("backend %s reads its password from vault but vault is disabled", backend.Name)
		}
		username, password, err := vaultClient.GetBackendCredentials(ctx, backend.Name)
		if err != nil {
			return err
		}
		backend.Username = username
		backend.Password = password
	}
	return nil
}
