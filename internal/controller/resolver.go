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

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	postgresqlv1 "github.com/tjo-space/tjo-cloud-console/api/postgresql/v1"
	s3v1 "github.com/tjo-space/tjo-cloud-console/api/s3/v1"
	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
	"github.com/tjo-space/tjo-cloud-console/internal/postgresql"
)

// RoleName is the role a User resolves to on its server
func RoleName(user *postgresqlv1.User) string {
	return postgresql.QualifiedName(user.Namespace, user.Name)
}

// DatabaseIdentifier is the database name a Database resolves to on its server
func DatabaseIdentifier(db *postgresqlv1.Database) string {
	return postgresql.QualifiedName(db.Namespace, db.LogicalName())
}

// KeyName is the name of the access key a Token resolves to
func KeyName(token *s3v1.Token) string {
	return token.Namespace + "_" + token.Name
}

// Resolver looks up the resources a dependent resource refers to. A referenced
// resource that is missing or not created yet is reported as NotFound.
type Resolver struct {
	Reader client.Reader
}

// Owner returns the created User that owns db
func (r *Resolver) Owner(ctx context.Context, db *postgresqlv1.Database) (*postgresqlv1.User, error) {
	user := &postgresqlv1.User{}
	key := client.ObjectKey{Namespace: db.Namespace, Name: db.Spec.OwnerRef.Name}
	if err := r.Reader.Get(ctx, key, user); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, operrors.ErrNotFound.WithDetail("user %s", key)
		}
		return nil, operrors.KubernetesError("GetUser", err)
	}
	if !user.WasCreated() {
		return nil, operrors.ErrNotFound.WithDetail("user %s is not created yet", key)
	}
	return user, nil
}

// Bucket returns the created Bucket token grants access to
func (r *Resolver) Bucket(ctx context.Context, token *s3v1.Token) (*s3v1.Bucket, error) {
	bucket := &s3v1.Bucket{}
	key := client.ObjectKey{Namespace: token.Namespace, Name: token.Spec.BucketRef.Name}
	if err := r.Reader.Get(ctx, key, bucket); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, operrors.ErrNotFound.WithDetail("bucket %s", key)
		}
		return nil, operrors.KubernetesError("GetBucket", err)
	}
	if !bucket.WasCreated() {
		return nil, operrors.ErrNotFound.WithDetail("bucket %s is not created yet", key)
	}
	return bucket, nil
}
