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
	"github.com/tjo-space/tjo-cloud-console/internal/credentials"
	"github.com/tjo-space/tjo-cloud-console/internal/postgresql"
)

// Keys of the Secret issued for a User
const (
	SecretKeyPassword = "password"
	SecretKeyUsername = "username"
	SecretKeyHost     = "host"
	SecretKeyPort     = "port"
)

// UserHandler creates and drops the role of a User resource
type UserHandler struct {
	Client   client.Client
	Recorder record.EventRecorder
	Backends *postgresql.Registry
	Issuer   *credentials.Issuer
	// DeleteSecrets revokes the credential Secret on cleanup instead of leaving it to garbage collection
	DeleteSecrets bool
	Log           *zap.SugaredLogger
}

// Apply creates the role with a generated password and hands the password out in a Secret
func (h *UserHandler) Apply(ctx context.Context, user *postgresqlv1.User) (Outcome, error) {
	if user.WasCreated() {
		return Converged, nil
	}
	h.Recorder.Event(user, corev1.EventTypeNormal, ReasonCreationRequested, "Creating role")

	role := RoleName(user)
	if err := postgresql.ValidateIdentifier(user.Name, role); err != nil {
		return Converged, err
	}

	backend, err := h.Backends.Get(user.Spec.Server)
	if err != nil {
		return Converged, err
	}

	// The Secret is checked first so a taken name never leaves a role without credentials
	issued, err := h.Issuer.Lookup(ctx, user, user.Spec.PasswordSecretName)
	if err != nil {
		return Converged, err
	}

	if issued != nil {
		// An earlier pass created the role and its Secret but did not record the status
		if err := h.Issuer.Issue(ctx, user, user.Spec.PasswordSecretName, issued); err != nil {
			return Converged, err
		}
	} else if err := h.createRole(ctx, user, backend, role); err != nil {
		return Converged, err
	}
	h.Recorder.Event(user, corev1.EventTypeNormal, ReasonCreationCompleted,
		fmt.Sprintf("Role %s created on %s", role, backend.Name()))
	h.Log.Infow("Role created", "namespace", user.Namespace, "name", user.Name,
		"role", role, "backend", backend.Name())

	status := postgresqlv1.UserStatus{Created: true, Name: role}
	if err := applyStatus(ctx, h.Client, postgresqlv1.GroupVersion.WithKind("User"), user, &status); err != nil {
		return Converged, err
	}
	user.Status = status
	return Changed, nil
}

func (h *UserHandler) createRole(ctx context.Context, user *postgresqlv1.User, backend postgresql.Backend, role string) error {
	password, err := credentials.GeneratePassword(credentials.PasswordLength)
	if err != nil {
		return err
	}

	statement := postgresql.CreateUserStatement(role, password, user.Spec.ConnectionLimit)
	if _, err := backend.Execute(ctx, statement); err != nil {
		return err
	}

	return h.Issuer.Issue(ctx, user, user.Spec.PasswordSecretName, map[string]string{
		SecretKeyPassword: password,
		SecretKeyUsername: role,
		SecretKeyHost:     backend.Host(),
		SecretKeyPort:     backend.Port(),
	})
}

// Cleanup drops the role. Roles are named after their resource, so the drop also runs
// when the status was never recorded.
func (h *UserHandler) Cleanup(ctx context.Context, user *postgresqlv1.User) (Outcome, error) {
	h.Recorder.Event(user, corev1.EventTypeNormal, ReasonDeleteRequested, "Dropping role")

	role := user.Status.Name
	if role == "" {
		role = RoleName(user)
	}

	if !user.WasCreated() {
		if postgresql.ValidateIdentifier(user.Name, role) != nil {
			return Converged, h.revoke(ctx, user)
		}
		if _, err := h.Backends.Get(user.Spec.Server); err != nil {
			return Converged, h.revoke(ctx, user)
		}
	}

	backend, err := h.Backends.Get(user.Spec.Server)
	if err != nil {
		return Converged, err
	}

	if _, err := backend.Execute(ctx, postgresql.DropUserStatement(role)); err != nil {
		return Converged, err
	}
	h.Log.Infow("Role dropped", "namespace", user.Namespace, "name", user.Name,
		"role", role, "backend", backend.Name())

	if err := h.revoke(ctx, user); err != nil {
		return Converged, err
	}
	return Changed, nil
}

func (h *UserHandler) revoke(ctx context.Context, user *postgresqlv1.User) error {
	if !h.DeleteSecrets {
		return nil
	}
	return h.Issuer.Revoke(ctx, user, user.Spec.PasswordSecretName)
}
