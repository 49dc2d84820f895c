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

package k8s

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	postgresqlv1 "github.com/tjo-space/tjo-cloud-console/api/postgresql/v1"
	s3v1 "github.com/tjo-space/tjo-cloud-console/api/s3/v1"
	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

// DuplicateCheckResult contains information about a duplicate check
type DuplicateCheckResult struct {
	Found    bool
	Existing metav1.Object
	Resource string
	Fields   map[string]string
	Message  string
}

// Err returns a DuplicateResource error for a found duplicate, nil otherwise
func (r *DuplicateCheckResult) Err() error {
	if r == nil || !r.Found {
		return nil
	}
	return operrors.ErrDuplicateResource.WithDetail("%s", r.Message)
}

// claimedBefore reports whether existing holds the external name ahead of current.
// A created object always wins; otherwise the older object does, and name breaks ties.
func claimedBefore(existing, current metav1.Object, existingCreated bool) bool {
	if existingCreated {
		return true
	}
	et, ct := existing.GetCreationTimestamp(), current.GetCreationTimestamp()
	if !et.Equal(&ct) {
		return et.Before(&ct)
	}
	return existing.GetName() < current.GetName()
}

// CheckDuplicateDatabase looks for another Database in the same namespace that resolves
// to the same identifier on the same server
func CheckDuplicateDatabase(
	ctx context.Context, reader client.Reader, current *postgresqlv1.Database,
	identifier func(*postgresqlv1.Database) string) (*DuplicateCheckResult, error) {
	databaseList := &postgresqlv1.DatabaseList{}
	if err := reader.List(ctx, databaseList, client.InNamespace(current.Namespace)); err != nil {
		return nil, operrors.KubernetesError("ListDatabases", err)
	}

	want := identifier(current)
	for i := range databaseList.Items {
		existing := &databaseList.Items[i]
		if existing.Name == current.Name {
			continue
		}
		if existing.Spec.Server != current.Spec.Server || identifier(existing) != want {
			continue
		}
		if !claimedBefore(existing, current, existing.WasCreated()) {
			continue
		}
		return &DuplicateCheckResult{
			Found:    true,
			Existing: existing,
			Resource: "Database",
			Fields: map[string]string{
				"server":     current.Spec.Server,
				"identifier": want,
			},
			Message: fmt.Sprintf("database %s on server %s is already claimed by %s/%s",
				want, current.Spec.Server, existing.Namespace, existing.Name),
		}, nil
	}

	return &DuplicateCheckResult{Found: false}, nil
}

// CheckDuplicateBucket looks for another Bucket in any namespace with the same global alias
func CheckDuplicateBucket(
	ctx context.Context, reader client.Reader, current *s3v1.Bucket) (*DuplicateCheckResult, error) {
	bucketList := &s3v1.BucketList{}
	if err := reader.List(ctx, bucketList); err != nil {
		return nil, operrors.KubernetesError("ListBuckets", err)
	}

	for i := range bucketList.Items {
		existing := &bucketList.Items[i]
		if existing.Name == current.Name && existing.Namespace == current.Namespace {
			continue
		}
		if existing.Spec.Name != current.Spec.Name {
			continue
		}
		if !claimedBefore(existing, current, existing.WasCreated()) {
			continue
		}
		return &DuplicateCheckResult{
			Found:    true,
			Existing: existing,
			Resource: "Bucket",
			Fields: map[string]string{
				"alias": current.Spec.Name,
			},
			Message: fmt.Sprintf("bucket alias %s is already claimed by %s/%s",
				current.Spec.Name, existing.Namespace, existing.Name),
		}, nil
	}

	return &DuplicateCheckResult{Found: false}, nil
}
