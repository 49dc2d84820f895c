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

package controller

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client/apiutil"
	"sigs.k8s.io/controller-runtime/pkg/controller"

	postgresqlv1 "github.com/tjo-space/tjo-cloud-console/api/postgresql/v1"
	s3v1 "github.com/tjo-space/tjo-cloud-console/api/s3/v1"
	"github.com/tjo-space/tjo-cloud-console/internal/config"
	"github.com/tjo-space/tjo-cloud-console/internal/controller/helpers"
	"github.com/tjo-space/tjo-cloud-console/internal/credentials"
	"github.com/tjo-space/tjo-cloud-console/internal/garage"
	"github.com/tjo-space/tjo-cloud-console/internal/postgresql"
	"github.com/tjo-space/tjo-cloud-console/internal/state"
)

// +kubebuilder:rbac:groups=postgresql.tjo.cloud,resources=databases;users,verbs=get;list;watch;update;patch
// +kubebuilder:rbac:groups=postgresql.tjo.cloud,resources=databases/status;users/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=postgresql.tjo.cloud,resources=databases/finalizers;users/finalizers,verbs=update
// +kubebuilder:rbac:groups=s3.tjo.cloud,resources=buckets;tokens,verbs=get;list;watch;update;patch
// +kubebuilder:rbac:groups=s3.tjo.cloud,resources=buckets/status;tokens/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=s3.tjo.cloud,resources=buckets/finalizers;tokens/finalizers,verbs=update
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch;create;delete
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch

// Dependencies are the adapters shared by all controllers
type Dependencies struct {
	Backends *postgresql.Registry
	// Garage is nil when object storage is not configured
	Garage      garage.API
	Mirror      credentials.Mirror
	Diagnostics *state.DiagnosticsState
}

type controllerSetup struct {
	name  string
	setup func() error
}

type registration[T Object] struct {
	name      string
	newObject func() T
	handler   Handler[T]
	// ownsSecrets re-triggers reconciliation when an issued Secret goes away
	ownsSecrets bool
}

func register[T Object](
	mgr ctrl.Manager, reg registration[T], deps Dependencies, interval time.Duration, concurrency int,
	lg *zap.SugaredLogger,
) error {
	obj := reg.newObject()
	gvk, err := apiutil.GVKForObject(obj, mgr.GetScheme())
	if err != nil {
		return err
	}

	driver := &Driver[T]{
		Client:          mgr.GetClient(),
		Recorder:        mgr.GetEventRecorderFor(state.Reporter),
		Log:             lg.With("controller", reg.name),
		Diagnostics:     deps.Diagnostics,
		Handler:         reg.handler,
		NewObject:       reg.newObject,
		GVK:             gvk,
		RequeueInterval: interval,
	}

	b := ctrl.NewControllerManagedBy(mgr).
		For(obj, builder.WithPredicates(helpers.SpecOrDeletionChangedPredicate())).
		Named(reg.name).
		WithOptions(controller.Options{MaxConcurrentReconciles: concurrency})
	if reg.ownsSecrets {
		b = b.Owns(&corev1.Secret{}, builder.WithPredicates(helpers.ManagedSecretPredicate()))
	}
	return b.Complete(driver)
}

// SetupControllers registers the Database and User controllers, and the Bucket and Token
// controllers when object storage is configured
func SetupControllers(mgr ctrl.Manager, cfg *config.Config, deps Dependencies, lg *zap.SugaredLogger) error {
	client := mgr.GetClient()
	recorder := mgr.GetEventRecorderFor(state.Reporter)
	resolver := &Resolver{Reader: client}
	issuer := &credentials.Issuer{Client: client, Scheme: mgr.GetScheme(), Mirror: deps.Mirror, Log: lg}
	interval := cfg.RequeueInterval.Duration
	concurrency := cfg.MaxConcurrentReconciles

	controllerSetups := []controllerSetup{
		{
			name: "User",
			setup: func() error {
				return register(mgr, registration[*postgresqlv1.User]{
					name:      "user",
					newObject: func() *postgresqlv1.User { return &postgresqlv1.User{} },
					handler: &UserHandler{
						Client: client, Recorder: recorder, Backends: deps.Backends, Issuer: issuer,
						DeleteSecrets: cfg.DeleteSecretsOnCleanup, Log: lg.With("controller", "user"),
					},
					ownsSecrets: true,
				}, deps, interval, concurrency, lg)
			},
		},
		{
			name: "Database",
			setup: func() error {
				return register(mgr, registration[*postgresqlv1.Database]{
					name:      "database",
					newObject: func() *postgresqlv1.Database { return &postgresqlv1.Database{} },
					handler: &DatabaseHandler{
						Client: client, Recorder: recorder, Backends: deps.Backends, Resolver: resolver,
						Log: lg.With("controller", "database"),
					},
				}, deps, interval, concurrency, lg)
			},
		},
	}

	if deps.Garage != nil {
		controllerSetups = append(controllerSetups,
			controllerSetup{
				name: "Bucket",
				setup: func() error {
					return register(mgr, registration[*s3v1.Bucket]{
						name:      "bucket",
						newObject: func() *s3v1.Bucket { return &s3v1.Bucket{} },
						handler: &BucketHandler{
							Client: client, Recorder: recorder, Garage: deps.Garage,
							Log: lg.With("controller", "bucket"),
						},
					}, deps, interval, concurrency, lg)
				},
			},
			controllerSetup{
				name: "Token",
				setup: func() error {
					return register(mgr, registration[*s3v1.Token]{
						name:      "token",
						newObject: func() *s3v1.Token { return &s3v1.Token{} },
						handler: &TokenHandler{
							Client: client, Recorder: recorder, Garage: deps.Garage, Resolver: resolver,
							Issuer: issuer, DeleteSecrets: cfg.DeleteSecretsOnCleanup,
							Log: lg.With("controller", "token"),
						},
						ownsSecrets: true,
					}, deps, interval, concurrency, lg)
				},
			},
		)
	} else {
		lg.Infow("Object storage is not configured, Bucket and Token controllers are disabled")
	}

	for _, ctrlSetup := range controllerSetups {
		if err := ctrlSetup.setup(); err != nil {
			lg.Errorw("unable to create controller", "controller", ctrlSetup.name, "error", err)
			return fmt.Errorf("unable to create controller %s: %w", ctrlSetup.name, err)
		}
	}

	return nil
}
