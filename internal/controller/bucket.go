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
	"github.com/tjo-space/tjo-cloud-console/internal/garage"
	"github.com/tjo-space/tjo-cloud-console/internal/k8s"
)

// BucketHandler creates and deletes the bucket of a Bucket resource
type BucketHandler struct {
	Client   client.Client
	Recorder record.EventRecorder
	Garage   garage.API
	Log      *zap.SugaredLogger
}

// Apply creates the bucket under its global alias
func (h *BucketHandler) Apply(ctx context.Context, bucket *s3v1.Bucket) (Outcome, error) {
	if bucket.WasCreated() {
		return Converged, nil
	}
	h.Recorder.Event(bucket, corev1.EventTypeNormal, ReasonCreationRequested, "Creating bucket")

	duplicate, err := k8s.CheckDuplicateBucket(ctx, h.Client, bucket)
	if err != nil {
		return Converged, err
	}
	if err := duplicate.Err(); err != nil {
		return Converged, err
	}

	created, err := h.Garage.CreateBucket(ctx, bucket.Spec.Name)
	if err != nil {
		return Converged, err
	}
	h.Recorder.Event(bucket, corev1.EventTypeNormal, ReasonCreationCompleted,
		fmt.Sprintf("Bucket %s created with id %s", bucket.Spec.Name, created.ID))
	h.Log.Infow("Bucket created", "namespace", bucket.Namespace, "name", bucket.Name,
		"alias", bucket.Spec.Name, "id", created.ID)

	status := s3v1.BucketStatus{Created: true, ID: created.ID}
	if err := applyStatus(ctx, h.Client, s3v1.GroupVersion.WithKind("Bucket"), bucket, &status); err != nil {
		return Converged, err
	}
	bucket.Status = status
	return Changed, nil
}

// Cleanup deletes the bucket by id
func (h *BucketHandler) Cleanup(ctx context.Context, bucket *s3v1.Bucket) (Outcome, error) {
	h.Recorder.Event(bucket, corev1.EventTypeNormal, ReasonDeleteRequested, "Deleting bucket")
	if !bucket.WasCreated() {
		return Converged, nil
	}

	if err := h.Garage.DeleteBucket(ctx, bucket.Status.ID); err != nil {
		return Converged, err
	}
	h.Log.Infow("Bucket deleted", "namespace", bucket.Namespace, "name", bucket.Name, "id", bucket.Status.ID)
	return Changed, nil
}
