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
	"context"
	"fmt"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"

	postgresqlv1 "github.com/tjo-space/tjo-cloud-console/api/postgresql/v1"
	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
	"github.com/tjo-space/tjo-cloud-console/internal/k8s"
	"github.com/tjo-space/tjo-cloud-console/internal/postgresql"
)

// DatabaseHandler creates and drops the database of a Database resource
type DatabaseHandler struct {
	Client   client.Client
	Recorder record.EventRecorder
	Backends *postgresql.Registry
	Resolver *Resolver
	Log      *zap.SugaredLogger
}

// Apply creates the database once its owner exists on the same server
func (h *DatabaseHandler) Apply(ctx context.Context, db *postgresqlv1.Database) (Outcome, error) {
	if db.WasCreated() {
		return Converged, nil
	}
	h.Recorder.Event(db, corev1.EventTypeNormal, ReasonCreationRequested, "Creating database")

	identifier := DatabaseIdentifier(db)
	if err := postgresql.ValidateIdentifier(db.Name, identifier); err != nil {
		return Converged, err
	}

	backend, err := h.Backends.Get(db.Spec.Server)
	if err != nil {
		return Converged, err
	}

	owner, err := h.Resolver.Owner(ctx, db)
	if err != nil {
		return Converged, err
	}
	if owner.Spec.Server != db.Spec.Server {
		return Converged, operrors.ErrBackendMismatch.WithDetail(
			"database server %q differs from owner %s server %q", db.Spec.Server, owner.Name, owner.Spec.Server)
	}

	duplicate, err := k8s.CheckDuplicateDatabase(ctx, h.Client, db, DatabaseIdentifier)
	if err != nil {
		return Converged, err
	}
	if err := duplicate.Err(); err != nil {
		return Converged, err
	}

	statement := postgresql.CreateDatabaseStatement(identifier, RoleName(owner), db.Spec.ConnectionLimit)
	if _, err := backend.Execute(ctx, statement); err != nil {
		return Converged, err
	}
	h.Recorder.Event(db, corev1.EventTypeNormal, ReasonCreationCompleted,
		fmt.Sprintf("Database %s created on %s", identifier, backend.Name()))
	h.Log.Infow("Database created", "namespace", db.Namespace, "name", db.Name,
		"database", identifier, "backend", backend.Name())

	status := postgresqlv1.DatabaseStatus{Created: true, Name: identifier}
	if err := applyStatus(ctx, h.Client, postgresqlv1.GroupVersion.WithKind("Database"), db, &status); err != nil {
		return Converged, err
	}
	db.Status = status
	return Changed, nil
}

// Cleanup drops the database. The drop also runs for a database whose status was never
// recorded, since a failed pass may have created it before erroring out.
func (h *DatabaseHandler) Cleanup(ctx context.Context, db *postgresqlv1.Database) (Outcome, error) {
	h.Recorder.Event(db, corev1.EventTypeNormal, ReasonDeleteRequested, "Dropping database")

	identifier := db.Status.Name
	if identifier == "" {
		identifier = DatabaseIdentifier(db)
	}

	if !db.WasCreated() {
		claimed, err := h.mayHaveCreated(ctx, db, identifier)
		if err != nil || !claimed {
			return Converged, err
		}
	}

	backend, err := h.Backends.Get(db.Spec.Server)
	if err != nil {
		return Converged, err
	}

	if _, err := backend.Execute(ctx, postgresql.DropDatabaseStatement(identifier)); err != nil {
		return Converged, err
	}
	h.Log.Infow("Database dropped", "namespace", db.Namespace, "name", db.Name,
		"database", identifier, "backend", backend.Name())
	return Changed, nil
}

// mayHaveCreated reports whether an earlier Apply of db could have reached CREATE DATABASE.
// A database held by another resource is never dropped on behalf of db.
func (h *DatabaseHandler) mayHaveCreated(ctx context.Context, db *postgresqlv1.Database, identifier string) (bool, error) {
	if postgresql.ValidateIdentifier(db.Name, identifier) != nil {
		return false, nil
	}
	if _, err := h.Backends.Get(db.Spec.Server); err != nil {
		return false, nil
	}

	duplicate, err := k8s.CheckDuplicateDatabase(ctx, h.Client, db, DatabaseIdentifier)
	if err != nil {
		return false, err
	}
	if duplicate.Found {
		h.Log.Infow("Database is held by another resource, leaving it in place", "namespace", db.Namespace,
			"name", db.Name, "database", identifier, "holder", duplicate.Existing.GetName())
		return false, nil
	}
	return true, nil
}
