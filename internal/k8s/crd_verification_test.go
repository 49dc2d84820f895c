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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	postgresqlv1 "github.com/tjo-space/tjo-cloud-console/api/postgresql/v1"
	s3v1 "github.com/tjo-space/tjo-cloud-console/api/s3/v1"
	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, postgresqlv1.AddToScheme(scheme))
	require.NoError(t, s3v1.AddToScheme(scheme))
	return scheme
}

func TestRequiredLists(t *testing.T) {
	assert.Len(t, RequiredLists(false), 2)
	assert.Len(t, RequiredLists(true), 4)
	assert.Contains(t, RequiredLists(true), "tokens.s3.tjo.cloud")
}

func TestVerifyCRDs(t *testing.T) {
	noMatch := func(list client.ObjectList) bool {
		switch list.(type) {
		case *s3v1.BucketList, *s3v1.TokenList:
			return true
		}
		return false
	}

	tests := []struct {
		name      string
		storage   bool
		listErr   error
		expectErr error
		missing   []string
	}{
		{name: "postgresql kinds installed", storage: false},
		{
			name:      "storage kinds missing",
			storage:   true,
			expectErr: operrors.ErrMissingCRDs,
			missing:   []string{"buckets.s3.tjo.cloud", "tokens.s3.tjo.cloud"},
		},
		{
			name:      "api server failure",
			storage:   false,
			listErr:   errors.New("connection refused"),
			expectErr: operrors.ErrKubernetesOperationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k8sClient := fake.NewClientBuilder().WithScheme(newScheme(t)).
				WithInterceptorFuncs(interceptor.Funcs{
					List: func(ctx context.Context, c client.WithWatch, list client.ObjectList, opts ...client.ListOption) error {
						if tt.listErr != nil {
							return tt.listErr
						}
						if noMatch(list) {
							return &meta.NoKindMatchError{
								GroupKind:        schema.GroupKind{Group: "s3.tjo.cloud", Kind: "Bucket"},
								SearchedVersions: []string{"v1"},
							}
						}
						return c.List(ctx, list, opts...)
					},
				}).Build()

			err := VerifyCRDs(context.Background(), k8sClient, RequiredLists(tt.storage))

			if tt.expectErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expectErr)
			for _, name := range tt.missing {
				assert.Contains(t, err.Error(), name)
			}
		})
	}
}
