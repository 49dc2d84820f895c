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

// Package k8s holds lookups against the Kubernetes API shared by the reconcilers and
// the entrypoint.
package k8s

import (
	"context"
	"fmt"
	"sort"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"sigs.k8s.io/controller-runtime/pkg/client"

	postgresqlv1 "github.com/tjo-space/tjo-cloud-console/api/postgresql/v1"
	s3v1 "github.com/tjo-space/tjo-cloud-console/api/s3/v1"
	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

// RequiredLists returns an empty list per managed kind. Storage kinds are only
// required when the storage controllers run.
func RequiredLists(storage bool) map[string]client.ObjectList {
	lists := map[string]client.ObjectList{
		"databases.postgresql.tjo.cloud": &postgresqlv1.DatabaseList{},
		"users.postgresql.tjo.cloud":     &postgresqlv1.UserList{},
	}
	if storage {
		lists["buckets.s3.tjo.cloud"] = &s3v1.BucketList{}
		lists["tokens.s3.tjo.cloud"] = &s3v1.TokenList{}
	}
	return lists
}

// VerifyCRDs lists one object of every kind and reports the CRDs the API server does not know
func VerifyCRDs(ctx context.Context, reader client.Reader, lists map[string]client.ObjectList) error {
	var missing []string
	for _, name := range sortedKeys(lists) {
		err := reader.List(ctx, lists[name], client.Limit(1))
		switch {
		case err == nil:
		case meta.IsNoMatchError(err) || apierrors.IsNotFound(err):
			missing = append(missing, name)
		default:
			return operrors.KubernetesError("VerifyCRDs", fmt.Errorf("listing %s: %w", name, err))
		}
	}

	if len(missing) > 0 {
		return operrors.ErrMissingCRDs.WithDetail("%v", missing)
	}
	return nil
}

func sortedKeys(lists map[string]client.ObjectList) []string {
	keys := make([]string, 0, len(lists))
	for k := range lists {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
