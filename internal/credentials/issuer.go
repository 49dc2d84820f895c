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

// Package credentials issues the Secrets that hand generated credentials to workloads.
package credentials

import (
	"context"
	"crypto/rand"
	"math/big"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

const (
	// PasswordLength is the length of generated role passwords
	PasswordLength = 16

	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	ManagedByLabel = "app.kubernetes.io/managed-by"
	ManagedByValue = "console.tjo.cloud"
)

// Mirror receives a copy of every issued credential
type Mirror interface {
	StoreCredentials(ctx context.Context, namespace, name string, data map[string]string) error
	DeleteCredentials(ctx context.Context, namespace, name string) error
}

// GeneratePassword returns an alphanumeric password drawn from crypto/rand
func GeneratePassword(length int) (string, error) {
	password := make([]byte, length)
	for i := range password {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphanumeric))))
		if err != nil {
			return "", operrors.Wrapf(nil, err, "failed to generate random number")
		}
		password[i] = alphanumeric[num.Int64()]
	}
	return string(password), nil
}

// Issuer creates immutable credential Secrets owned by the resource they belong to
type Issuer struct {
	Client client.Client
	Scheme *runtime.Scheme
	// Mirror is optional
	Mirror Mirror
	Log    *zap.SugaredLogger
}

// Issue creates the Secret name in the owner's namespace holding data. Secrets are never
// updated: an existing Secret controlled by another resource is a CredentialConflict.
// The mirror is written once the Secret exists, so it always holds the handed out values.
func (i *Issuer) Issue(ctx context.Context, owner client.Object, name string, data map[string]string) error {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: owner.GetNamespace(),
			Labels:    map[string]string{ManagedByLabel: ManagedByValue},
		},
		Immutable:  ptr.To(true),
		Type:       corev1.SecretTypeOpaque,
		StringData: data,
	}

	if err := controllerutil.SetControllerReference(owner, secret, i.Scheme); err != nil {
		return operrors.KubernetesError("SetControllerReference", err)
	}

	if err := i.Client.Create(ctx, secret); err != nil {
		if !apierrors.IsAlreadyExists(err) {
			return operrors.KubernetesError("CreateSecret", err)
		}
		// A Secret left by an earlier pass of the same owner keeps its values
		existing, lookupErr := i.Lookup(ctx, owner, name)
		if lookupErr != nil {
			return lookupErr
		}
		if existing == nil {
			return operrors.Wrap(operrors.ErrCredentialConflict, err).WithOp("IssueSecret")
		}
		data = existing
	} else {
		i.Log.Infow("Credential secret issued", "namespace", secret.Namespace, "name", name,
			"owner", owner.GetName())
	}

	if i.Mirror != nil {
		return i.Mirror.StoreCredentials(ctx, secret.Namespace, name, data)
	}
	return nil
}

// Lookup returns the data of the Secret name when owner controls it and nil when it does
// not exist. A Secret controlled by anything else is a CredentialConflict.
func (i *Issuer) Lookup(ctx context.Context, owner client.Object, name string) (map[string]string, error) {
	secret, err := i.get(ctx, owner.GetNamespace(), name)
	if err != nil || secret == nil {
		return nil, err
	}
	if !controlledBy(secret, owner) {
		return nil, operrors.ErrCredentialConflict.WithDetail("secret %s/%s belongs to another resource",
			secret.Namespace, secret.Name).WithOp("LookupSecret")
	}

	data := make(map[string]string, len(secret.Data)+len(secret.StringData))
	for k, v := range secret.Data {
		data[k] = string(v)
	}
	for k, v := range secret.StringData {
		data[k] = v
	}
	return data, nil
}

// Revoke deletes the Secret and its mirrored copy when owner controls the Secret.
// Missing Secrets and Secrets of other resources are left alone.
func (i *Issuer) Revoke(ctx context.Context, owner client.Object, name string) error {
	secret, err := i.get(ctx, owner.GetNamespace(), name)
	if err != nil || secret == nil {
		return err
	}
	if !controlledBy(secret, owner) {
		i.Log.Infow("Credential secret belongs to another resource, not revoking",
			"namespace", secret.Namespace, "name", name, "owner", owner.GetName())
		return nil
	}

	if err := i.Client.Delete(ctx, secret); client.IgnoreNotFound(err) != nil {
		return operrors.KubernetesError("DeleteSecret", err)
	}

	if i.Mirror != nil {
		if err := i.Mirror.DeleteCredentials(ctx, secret.Namespace, name); err != nil {
			return err
		}
	}

	i.Log.Infow("Credential secret revoked", "namespace", secret.Namespace, "name", name)
	return nil
}

func (i *Issuer) get(ctx context.Context, namespace, name string) (*corev1.Secret, error) {
	secret := &corev1.Secret{}
	if err := i.Client.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, secret); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, operrors.KubernetesError("GetSecret", err)
	}
	return secret, nil
}

// controlledBy compares the controller reference by uid and name
func controlledBy(secret *corev1.Secret, owner client.Object) bool {
	ref := metav1.GetControllerOfNoCopy(secret)
	return ref != nil && ref.UID == owner.GetUID() && ref.Name == owner.GetName()
}
