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

	s3v1 "github.com/tjo-space/tjo-cloud-console/api/s3/v1"
	"github.com/tjo-space/tjo-cloud-console/internal/credentials"
	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
	"github.com/tjo-space/tjo-cloud-console/internal/garage"
)

// Keys of the Secret issued for a Token
const (
	SecretKeyAccessKeyID     = "access-key-id"
	SecretKeySecretAccessKey = "secret-access-key"
)

var tokenGVK = s3v1.GroupVersion.WithKind("Token")

// TokenHandler creates and deletes the access key of a Token resource
type TokenHandler struct {
	Client        client.Client
	Recorder      record.EventRecorder
	Garage        garage.API
	Resolver      *Resolver
	Issuer        *credentials.Issuer
	DeleteSecrets bool
	Log           *zap.SugaredLogger
}

// Apply creates the key, hands it out in a Secret and grants it access to the bucket
func (h *TokenHandler) Apply(ctx context.Context, token *s3v1.Token) (Outcome, error) {
	if token.WasCreated() {
		return Converged, nil
	}
	h.Recorder.Event(token, corev1.EventTypeNormal, ReasonCreationRequested, "Creating access key")

	// Resolved first so a missing bucket never leaves an orphaned key behind
	bucket, err := h.Resolver.Bucket(ctx, token)
	if err != nil {
		return Converged, err
	}

	issued, err := h.Issuer.Lookup(ctx, token, token.Spec.SecretName)
	if err != nil {
		return Converged, err
	}

	var keyID string
	if issued != nil {
		// An earlier pass handed the key out but did not get to record the status
		keyID = issued[SecretKeyAccessKeyID]
		if keyID == "" {
			return Converged, operrors.ErrCredentialConflict.WithDetail("secret %s/%s holds no %s",
				token.Namespace, token.Spec.SecretName, SecretKeyAccessKeyID)
		}
		if err := h.Issuer.Issue(ctx, token, token.Spec.SecretName, issued); err != nil {
			return Converged, err
		}
	} else if keyID, err = h.createKey(ctx, token); err != nil {
		return Converged, err
	}

	permissions := garage.BucketPermissions{Owner: token.Spec.Owner, Read: token.Spec.Read, Write: token.Spec.Write}
	if err := h.Garage.SetBucketPermissions(ctx, bucket.Status.ID, keyID, permissions); err != nil {
		return Converged, err
	}
	h.Recorder.Event(token, corev1.EventTypeNormal, ReasonCreationCompleted,
		fmt.Sprintf("Access key %s created for bucket %s", keyID, bucket.Spec.Name))
	h.Log.Infow("Access key created", "namespace", token.Namespace, "name", token.Name,
		"key", keyID, "bucket", bucket.Status.ID)

	status := s3v1.TokenStatus{Created: true, ID: keyID}
	if err := applyStatus(ctx, h.Client, tokenGVK, token, &status); err != nil {
		return Converged, err
	}
	token.Status = status
	return Changed, nil
}

// createKey creates the access key and records its id before the Secret is issued, so
// cleanup can find a key whose Secret never made it
func (h *TokenHandler) createKey(ctx context.Context, token *s3v1.Token) (string, error) {
	if stale := token.Status.ID; stale != "" {
		// never handed out
		if err := h.Garage.DeleteKey(ctx, stale); err != nil && !garage.IsNotFound(err) {
			return "", err
		}
	}

	key, err := h.Garage.CreateKey(ctx, KeyName(token))
	if err != nil {
		return "", err
	}

	status := s3v1.TokenStatus{ID: key.ID}
	if err := applyStatus(ctx, h.Client, tokenGVK, token, &status); err != nil {
		if deleteErr := h.Garage.DeleteKey(ctx, key.ID); deleteErr != nil {
			h.Log.Warnw("Failed to delete unrecorded access key", "namespace", token.Namespace,
				"name", token.Name, "key", key.ID, "error", deleteErr)
		}
		return "", err
	}
	token.Status = status

	err = h.Issuer.Issue(ctx, token, token.Spec.SecretName, map[string]string{
		SecretKeyAccessKeyID:     key.ID,
		SecretKeySecretAccessKey: key.Secret,
	})
	if err != nil {
		return "", err
	}
	return key.ID, nil
}

// Cleanup deletes the access key recorded in status
func (h *TokenHandler) Cleanup(ctx context.Context, token *s3v1.Token) (Outcome, error) {
	h.Recorder.Event(token, corev1.EventTypeNormal, ReasonDeleteRequested, "Deleting access key")
	if token.Status.ID == "" {
		return Converged, h.revoke(ctx, token)
	}

	if err := h.Garage.DeleteKey(ctx, token.Status.ID); err != nil && !garage.IsNotFound(err) {
		return Converged, err
	}
	h.Log.Infow("Access key deleted", "namespace", token.Namespace, "name", token.Name, "key", token.Status.ID)

	if err := h.revoke(ctx, token); err != nil {
		return Converged, err
	}
	return Changed, nil
}

func (h *TokenHandler) revoke(ctx context.Context, token *s3v1.Token) error {
	if !h.DeleteSecrets {
		return nil
	}
	return h.Issuer.Revoke(ctx, token, token.Spec.SecretName)
}
