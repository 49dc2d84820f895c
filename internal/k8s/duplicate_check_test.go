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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	postgresqlv1 "github.com/tjo-space/tjo-cloud-console/api/postgresql/v1"
	s3v1 "github.com/tjo-space/tjo-cloud-console/api/s3/v1"
	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

var (
	older = metav1.NewTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	newer = metav1.NewTime(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
)

func identifier(db *postgresqlv1.Database) string {
	return strings.ToLower(db.Namespace + "_" + db.LogicalName())
}

func database(name, logical, server string, created bool, ts metav1.Time) *postgresqlv1.Database {
	return &postgresqlv1.Database{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "team-a", CreationTimestamp: ts},
		Spec:       postgresqlv1.DatabaseSpec{Name: logical, Server: server},
		Status:     postgresqlv1.DatabaseStatus{Created: created},
	}
}

func TestCheckDuplicateDatabase(t *testing.T) {
	tests := []struct {
		name     string
		existing []client.Object
		current  *postgresqlv1.Database
		found    bool
	}{
		{
			name:    "no other databases",
			current: database("app", "app", "primary", false, newer),
		},
		{
			name:     "created database with same identifier",
			existing: []client.Object{database("other", "app", "primary", true, newer)},
			current:  database("app", "app", "primary", false, older),
			found:    true,
		},
		{
			name:     "older pending database wins",
			existing: []client.Object{database("other", "app", "primary", false, older)},
			current:  database("app", "app", "primary", false, newer),
			found:    true,
		},
		{
			name:     "newer pending database loses",
			existing: []client.Object{database("other", "app", "primary", false, newer)},
			current:  database("app", "app", "primary", false, older),
		},
		{
			name:     "same identifier on another server",
			existing: []client.Object{database("other", "app", "analytics", true, older)},
			current:  database("app", "app", "primary", false, newer),
		},
		{
			name:     "metadata name fallback collides",
			existing: []client.Object{database("app", "", "primary", true, older)},
			current:  database("renamed", "app", "primary", false, newer),
			found:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objects := append([]client.Object{tt.current}, tt.existing...)
			k8sClient := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(objects...).Build()

			result, err := CheckDuplicateDatabase(context.Background(), k8sClient, tt.current, identifier)

			require.NoError(t, err)
			assert.Equal(t, tt.found, result.Found)
			if tt.found {
				assert.ErrorIs(t, result.Err(), operrors.ErrDuplicateResource)
				assert.Equal(t, "Database", result.Resource)
				assert.Contains(t, result.Message, "team-a_app")
			} else {
				assert.NoError(t, result.Err())
			}
		})
	}
}

func bucket(namespace, name, alias string, created bool, ts metav1.Time) *s3v1.Bucket {
	return &s3v1.Bucket{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, CreationTimestamp: ts},
		Spec:       s3v1.BucketSpec{Name: alias},
		Status:     s3v1.BucketStatus{Created: created},
	}
}

func TestCheckDuplicateBucket(t *testing.T) {
	tests := []struct {
		name     string
		existing []client.Object
		current  *s3v1.Bucket
		found    bool
	}{
		{
			name:    "unique alias",
			current: bucket("team-a", "b", "b1", false, newer),
		},
		{
			name:     "alias taken in another namespace",
			existing: []client.Object{bucket("team-b", "b", "b1", true, newer)},
			current:  bucket("team-a", "b", "b1", false, older),
			found:    true,
		},
		{
			name:     "same name in another namespace with different alias",
			existing: []client.Object{bucket("team-b", "b", "b2", true, older)},
			current:  bucket("team-a", "b", "b1", false, newer),
		},
		{
			name:     "tie broken by name",
			existing: []client.Object{bucket("team-b", "a", "b1", false, older)},
			current:  bucket("team-a", "b", "b1", false, older),
			found:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objects := append([]client.Object{tt.current}, tt.existing...)
			k8sClient := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(objects...).Build()

			result, err := CheckDuplicateBucket(context.Background(), k8sClient, tt.current)

			require.NoError(t, err)
			assert.Equal(t, tt.found, result.Found)
			if tt.found {
				assert.ErrorIs(t, result.Err(), operrors.ErrDuplicateResource)
			}
		})
	}
}

func TestCheckDuplicate_ListError(t *testing.T) {
	k8sClient := fake.NewClientBuilder().WithScheme(newScheme(t)).
		WithInterceptorFuncs(interceptor.Funcs{
			List: func(context.Context, client.WithWatch, client.ObjectList, ...client.ListOption) error {
				return errors.New("apiserver unavailable")
			},
		}).Build()

	_, err := CheckDuplicateDatabase(context.Background(), k8sClient,
		database("app", "app", "primary", false, older), identifier)
	assert.ErrorIs(t, err, operrors.ErrKubernetesOperationFailed)

	_, err = CheckDuplicateBucket(context.Background(), k8sClient, bucket("team-a", "b", "b1", false, older))
	assert.ErrorIs(t, err, operrors.ErrKubernetesOperationFailed)
}
