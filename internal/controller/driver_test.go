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
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	postgresqlv1 "github.com/tjo-space/tjo-cloud-console/api/postgresql/v1"
	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
	"github.com/tjo-space/tjo-cloud-console/internal/metrics"
	"github.com/tjo-space/tjo-cloud-console/internal/state"
)

type stubHandler struct {
	applyOutcome Outcome
	applyErr     error
	cleanupErr   error
	applied      int
	cleaned      int
}

func (h *stubHandler) Apply(context.Context, *postgresqlv1.Database) (Outcome, error) {
	h.applied++
	return h.applyOutcome, h.applyErr
}

func (h *stubHandler) Cleanup(context.Context, *postgresqlv1.Database) (Outcome, error) {
	h.cleaned++
	return Changed, h.cleanupErr
}

func newTestDriver[T Object](
	c client.Client, recorder record.EventRecorder, handler Handler[T], newObject func() T,
	gvk schema.GroupVersionKind,
) *Driver[T] {
	return &Driver[T]{
		Client:          c,
		Recorder:        recorder,
		Log:             zap.NewNop().Sugar(),
		Diagnostics:     state.NewDiagnosticsState(),
		Handler:         handler,
		NewObject:       newObject,
		GVK:             gvk,
		RequeueInterval: testInterval,
	}
}

func newDatabaseDriver(
	c client.Client, recorder record.EventRecorder, handler Handler[*postgresqlv1.Database],
) *Driver[*postgresqlv1.Database] {
	return newTestDriver(c, recorder, handler, func() *postgresqlv1.Database { return &postgresqlv1.Database{} },
		postgresqlv1.GroupVersion.WithKind("Database"))
}

func request(name string) ctrl.Request {
	return ctrl.Request{NamespacedName: types.NamespacedName{Namespace: testNamespace, Name: name}}
}

func failures(name, label string) float64 {
	return testutil.ToFloat64(metrics.ReconcileFailures.WithLabelValues(
		postgresqlv1.GroupVersion.String(), "Database", testNamespace+"/"+name, label))
}

func TestDriver_Reconcile_NotFound(t *testing.T) {
	c, _ := newFakeClient(t, interceptor.Funcs{})
	recorder := record.NewFakeRecorder(10)
	handler := &stubHandler{}

	result, err := newDatabaseDriver(c, recorder, handler).Reconcile(context.Background(), request("missing"))

	require.NoError(t, err)
	assert.Equal(t, ctrl.Result{}, result)
	assert.Zero(t, handler.applied)
	assert.Zero(t, handler.cleaned)
	assert.Empty(t, drainEvents(recorder))
}

func TestDriver_Reconcile_Apply(t *testing.T) {
	tests := []struct {
		name     string
		outcome  Outcome
		expected []string
	}{
		{name: "changed", outcome: Changed, expected: []string{"Normal ReconcileCompleted"}},
		{name: "converged", outcome: Converged, expected: []string{"Normal ReconcileCompleted"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newFakeClient(t, interceptor.Funcs{}, createTestDatabase("app", "primary", "owner"))
			recorder := record.NewFakeRecorder(10)
			handler := &stubHandler{applyOutcome: tt.outcome}
			driver := newDatabaseDriver(c, recorder, handler)

			result, err := driver.Reconcile(context.Background(), request("app"))

			require.NoError(t, err)
			assert.Equal(t, ctrl.Result{RequeueAfter: testInterval}, result)
			assert.Equal(t, 1, handler.applied)
			assert.Equal(t, tt.expected, drainEvents(recorder))
			assert.False(t, driver.Diagnostics.Snapshot().LastEvent.IsZero())

			stored := &postgresqlv1.Database{}
			require.NoError(t, c.Get(context.Background(), client.ObjectKey{Namespace: testNamespace, Name: "app"}, stored))
			assert.Equal(t, []string{Finalizer}, stored.Finalizers)
		})
	}
}

func TestDriver_Reconcile_ApplyError(t *testing.T) {
	c, _ := newFakeClient(t, interceptor.Funcs{}, createTestDatabase("broken", "primary", "owner"))
	recorder := record.NewFakeRecorder(10)
	handler := &stubHandler{applyErr: operrors.ErrUnknownBackend.WithDetail("primary")}
	before := failures("broken", "unknownbackend")

	result, err := newDatabaseDriver(c, recorder, handler).Reconcile(context.Background(), request("broken"))

	require.NoError(t, err)
	assert.Equal(t, ctrl.Result{RequeueAfter: testInterval}, result)
	assert.Equal(t, []string{"Warning ReconcileFailed"}, drainEvents(recorder))
	assert.Equal(t, before+1, failures("broken", "unknownbackend"))
}

func TestDriver_Reconcile_FinalizerAddFails(t *testing.T) {
	funcs := interceptor.Funcs{
		Update: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.UpdateOption) error {
			return apierrors.NewConflict(postgresqlv1.GroupVersion.WithResource("databases").GroupResource(),
				obj.GetName(), errors.New("stale"))
		},
	}
	c, _ := newFakeClient(t, funcs, createTestDatabase("stale", "primary", "owner"))
	recorder := record.NewFakeRecorder(10)
	handler := &stubHandler{}
	before := failures("stale", "finalizererror")

	result, err := newDatabaseDriver(c, recorder, handler).Reconcile(context.Background(), request("stale"))

	require.NoError(t, err)
	assert.Equal(t, ctrl.Result{RequeueAfter: testInterval}, result)
	assert.Zero(t, handler.applied)
	assert.Equal(t, []string{"Warning ReconcileFailed"}, drainEvents(recorder))
	assert.Equal(t, before+1, failures("stale", "finalizererror"))
}

func TestDriver_Reconcile_Deleting(t *testing.T) {
	db := createTestDatabase("gone", "primary", "owner")
	db.Status = postgresqlv1.DatabaseStatus{Created: true, Name: "default_gone"}
	markDeleted(db)
	c, _ := newFakeClient(t, interceptor.Funcs{}, db)
	recorder := record.NewFakeRecorder(10)
	handler := &stubHandler{}

	result, err := newDatabaseDriver(c, recorder, handler).Reconcile(context.Background(), request("gone"))

	require.NoError(t, err)
	assert.Equal(t, ctrl.Result{}, result)
	assert.Equal(t, 1, handler.cleaned)
	assert.Zero(t, handler.applied)
	assert.Equal(t, []string{"Normal CleanupCompleted"}, drainEvents(recorder))

	err = c.Get(context.Background(), client.ObjectKey{Namespace: testNamespace, Name: "gone"}, &postgresqlv1.Database{})
	assert.True(t, apierrors.IsNotFound(err))
}

func TestDriver_Reconcile_CleanupErrorKeepsFinalizer(t *testing.T) {
	db := createTestDatabase("stuck", "primary", "owner")
	markDeleted(db)
	c, _ := newFakeClient(t, interceptor.Funcs{}, db)
	recorder := record.NewFakeRecorder(10)
	handler := &stubHandler{cleanupErr: operrors.Wrap(operrors.ErrPostgresqlOperationFailed, errors.New("boom"))}

	result, err := newDatabaseDriver(c, recorder, handler).Reconcile(context.Background(), request("stuck"))

	require.NoError(t, err)
	assert.Equal(t, ctrl.Result{RequeueAfter: testInterval}, result)
	assert.Equal(t, []string{"Warning ReconcileFailed"}, drainEvents(recorder))

	stored := &postgresqlv1.Database{}
	require.NoError(t, c.Get(context.Background(), client.ObjectKey{Namespace: testNamespace, Name: "stuck"}, stored))
	assert.Equal(t, []string{Finalizer}, stored.Finalizers)
}

func TestDriver_Reconcile_GetError(t *testing.T) {
	funcs := interceptor.Funcs{
		Get: func(ctx context.Context, c client.WithWatch, key client.ObjectKey, obj client.Object,
			opts ...client.GetOption) error {
			return apierrors.NewServiceUnavailable("api server down")
		},
	}
	c, _ := newFakeClient(t, funcs)
	recorder := record.NewFakeRecorder(10)
	handler := &stubHandler{}

	result, err := newDatabaseDriver(c, recorder, handler).Reconcile(context.Background(), request("any"))

	require.NoError(t, err)
	assert.Equal(t, ctrl.Result{RequeueAfter: testInterval}, result)
	assert.Zero(t, handler.applied)
	assert.Empty(t, drainEvents(recorder))
}
