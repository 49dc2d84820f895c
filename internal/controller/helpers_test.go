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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/record"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	postgresqlv1 "github.com/tjo-space/tjo-cloud-console/api/postgresql/v1"
	s3v1 "github.com/tjo-space/tjo-cloud-console/api/s3/v1"
	"github.com/tjo-space/tjo-cloud-console/internal/credentials"
	"github.com/tjo-space/tjo-cloud-console/internal/garage"
	"github.com/tjo-space/tjo-cloud-console/internal/postgresql"
)

const (
	testNamespace = "default"
	testInterval  = 5 * time.Minute
)

// recordingBackend is a postgresql.Backend that records every statement
type recordingBackend struct {
	name string
	host string

	mu         sync.Mutex
	statements []string
	execErr    error
}

func (b *recordingBackend) Name() string               { return b.name }
func (b *recordingBackend) Host() string               { return b.host }
func (b *recordingBackend) Port() string               { return "5432" }
func (b *recordingBackend) Ping(context.Context) error { return nil }
func (b *recordingBackend) Close() error               { return nil }

func (b *recordingBackend) Execute(_ context.Context, statement string, _ ...any) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statements = append(b.statements, statement)
	if b.execErr != nil {
		return 0, b.execErr
	}
	return 0, nil
}

func (b *recordingBackend) executed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.statements...)
}

// MockGarage is a testify mock of the storage admin API
type MockGarage struct {
	mock.Mock
}

func (m *MockGarage) CreateBucket(ctx context.Context, globalAlias string) (*garage.Bucket, error) {
	args := m.Called(ctx, globalAlias)
	if b, ok := args.Get(0).(*garage.Bucket); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGarage) DeleteBucket(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockGarage) CreateKey(ctx context.Context, name string) (*garage.Key, error) {
	args := m.Called(ctx, name)
	if k, ok := args.Get(0).(*garage.Key); ok {
		return k, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGarage) DeleteKey(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockGarage) SetBucketPermissions(
	ctx context.Context, bucketID, keyID string, permissions garage.BucketPermissions) error {
	return m.Called(ctx, bucketID, keyID, permissions).Error(0)
}

// statusApplies records the options every server-side status apply was sent with
type statusApplies struct {
	mu      sync.Mutex
	options []client.SubResourcePatchOptions
}

func (s *statusApplies) all() []client.SubResourcePatchOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]client.SubResourcePatchOptions(nil), s.options...)
}

// applyStatusFunc emulates a server-side status apply on the fake client, which has no
// field management, by merging the applied status into the stored object
func applyStatusFunc(applies *statusApplies) func(
	context.Context, client.Client, string, client.Object, client.Patch, ...client.SubResourcePatchOption) error {
	return func(ctx context.Context, c client.Client, subResource string, obj client.Object,
		patch client.Patch, opts ...client.SubResourcePatchOption) error {
		u, ok := obj.(*unstructured.Unstructured)
		if !ok || patch.Type() != types.ApplyPatchType {
			return c.SubResource(subResource).Patch(ctx, obj, patch, opts...)
		}

		options := client.SubResourcePatchOptions{}
		options.ApplyOptions(opts)
		applies.mu.Lock()
		applies.options = append(applies.options, options)
		applies.mu.Unlock()

		typed, err := c.Scheme().New(u.GroupVersionKind())
		if err != nil {
			return err
		}
		current := typed.(client.Object)
		if err := c.Get(ctx, client.ObjectKeyFromObject(u), current); err != nil {
			return err
		}

		merged, err := runtime.DefaultUnstructuredConverter.ToUnstructured(current)
		if err != nil {
			return err
		}
		merged["status"] = u.Object["status"]
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(merged, current); err != nil {
			return err
		}
		return c.Status().Update(ctx, current)
	}
}

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, clientgoscheme.AddToScheme(scheme))
	require.NoError(t, postgresqlv1.AddToScheme(scheme))
	require.NoError(t, s3v1.AddToScheme(scheme))
	return scheme
}

// newFakeClient returns a fake client holding objs and the recorder of its status applies
func newFakeClient(t *testing.T, funcs interceptor.Funcs, objs ...client.Object) (client.Client, *statusApplies) {
	t.Helper()
	applies := &statusApplies{}
	if funcs.SubResourcePatch == nil {
		funcs.SubResourcePatch = applyStatusFunc(applies)
	}
	c := fake.NewClientBuilder().
		WithScheme(newScheme(t)).
		WithObjects(objs...).
		WithStatusSubresource(&postgresqlv1.Database{}, &postgresqlv1.User{}, &s3v1.Bucket{}, &s3v1.Token{}).
		WithInterceptorFuncs(funcs).
		Build()
	return c, applies
}

func newIssuer(c client.Client) *credentials.Issuer {
	return &credentials.Issuer{Client: c, Scheme: c.Scheme(), Log: zap.NewNop().Sugar()}
}

func newRegistry(backends ...*recordingBackend) *postgresql.Registry {
	bs := make([]postgresql.Backend, 0, len(backends))
	for _, b := range backends {
		bs = append(bs, b)
	}
	return postgresql.NewRegistry(bs...)
}

// drainEvents returns the events buffered in recorder as "Type Reason" strings
func drainEvents(recorder *record.FakeRecorder) []string {
	var events []string
	for {
		select {
		case e := <-recorder.Events:
			fields := strings.SplitN(e, " ", 3)
			events = append(events, strings.Join(fields[:2], " "))
		default:
			return events
		}
	}
}

func createTestUser(name, server string, created bool) *postgresqlv1.User {
	user := &postgresqlv1.User{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: testNamespace,
			UID:       types.UID(name + "-uid"),
		},
		Spec: postgresqlv1.UserSpec{
			Server:             server,
			PasswordSecretName: name + "-credentials",
			ConnectionLimit:    -1,
		},
	}
	if created {
		user.Finalizers = []string{Finalizer}
		user.Status = postgresqlv1.UserStatus{Created: true, Name: RoleName(user)}
	}
	return user
}

func createTestDatabase(name, server, owner string) *postgresqlv1.Database {
	return &postgresqlv1.Database{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: testNamespace,
		},
		Spec: postgresqlv1.DatabaseSpec{
			Server:          server,
			ConnectionLimit: -1,
			OwnerRef:        postgresqlv1.UserRef{Name: owner},
		},
	}
}

func createTestBucket(name, alias string, created bool) *s3v1.Bucket {
	bucket := &s3v1.Bucket{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: testNamespace,
		},
		Spec: s3v1.BucketSpec{Name: alias},
	}
	if created {
		bucket.Finalizers = []string{Finalizer}
		bucket.Status = s3v1.BucketStatus{Created: true, ID: "bucket-" + alias}
	}
	return bucket
}

func createTestToken(name, bucket string) *s3v1.Token {
	return &s3v1.Token{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: testNamespace,
			UID:       types.UID(name + "-uid"),
		},
		Spec: s3v1.TokenSpec{
			BucketRef:  s3v1.BucketRef{Name: bucket},
			SecretName: name + "-credentials",
			Read:       true,
			Write:      true,
		},
	}
}

// ownedSecret is a credential Secret controlled by the resource ownerName of kind
func ownedSecret(name, kind, ownerName string, data map[string]string) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: testNamespace,
			Labels:    map[string]string{credentials.ManagedByLabel: credentials.ManagedByValue},
			OwnerReferences: []metav1.OwnerReference{{
				Kind:       kind,
				Name:       ownerName,
				UID:        types.UID(ownerName + "-uid"),
				Controller: ptr.To(true),
			}},
		},
		StringData: data,
	}
}

// markDeleted flags obj as being deleted while the finalizer is still present
func markDeleted(obj client.Object) {
	now := metav1.NewTime(time.Now())
	obj.SetDeletionTimestamp(&now)
	if len(obj.GetFinalizers()) == 0 {
		obj.SetFinalizers([]string{Finalizer})
	}
}
