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
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
	"github.com/tjo-space/tjo-cloud-console/internal/metrics"
	"github.com/tjo-space/tjo-cloud-console/internal/state"
	"github.com/tjo-space/tjo-cloud-console/internal/tracing"
)

// Handler holds the kind-specific create and delete logic driven by Driver
type Handler[T Object] interface {
	// Apply creates the external counterpart of obj. It must not call out when obj was created.
	Apply(ctx context.Context, obj T) (Outcome, error)
	// Cleanup removes the external counterpart of obj
	Cleanup(ctx context.Context, obj T) (Outcome, error)
}

// Driver reconciles one kind: it keeps the finalizer in place, dispatches on the
// lifecycle phase and applies the error policy
type Driver[T Object] struct {
	Client          client.Client
	Recorder        record.EventRecorder
	Log             *zap.SugaredLogger
	Diagnostics     *state.DiagnosticsState
	Handler         Handler[T]
	NewObject       func() T
	GVK             schema.GroupVersionKind
	RequeueInterval time.Duration
}

// Reconcile is part of the main kubernetes reconciliation loop
func (d *Driver[T]) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	kind := d.GVK.Kind
	ctx, span := tracing.StartReconcileSpan(ctx, kind+".Reconcile", req.Name, req.Namespace, kind)
	defer span.End()

	measurer := metrics.CountAndMeasure(d.GVK.GroupVersion().String(), kind)
	defer measurer.Done(tracing.TraceID(ctx))
	if d.Diagnostics != nil {
		d.Diagnostics.Touch()
	}

	obj := d.NewObject()
	if err := d.Client.Get(ctx, req.NamespacedName, obj); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return d.errorPolicy(ctx, req, nil, operrors.KubernetesError("Get", err))
	}

	result, err := d.reconcile(ctx, obj)
	if err != nil {
		return d.errorPolicy(ctx, req, obj, err)
	}
	return result, nil
}

func (d *Driver[T]) reconcile(ctx context.Context, obj T) (ctrl.Result, error) {
	phase := ClassifyPhase(obj)
	d.Log.Debugw("Reconciling", "kind", d.GVK.Kind, "namespace", obj.GetNamespace(), "name", obj.GetName(),
		"phase", phase.String())

	switch phase {
	case PhaseRemoved:
		return ctrl.Result{}, nil

	case PhaseDeleting:
		if _, err := d.Handler.Cleanup(ctx, obj); err != nil {
			return ctrl.Result{}, err
		}
		controllerutil.RemoveFinalizer(obj, Finalizer)
		if err := d.Client.Update(ctx, obj); err != nil {
			return ctrl.Result{}, operrors.Wrapf(operrors.ErrFinalizer, err, "can't remove finalizer")
		}
		d.Recorder.Event(obj, corev1.EventTypeNormal, ReasonCleanupCompleted, "External state removed")
		d.Log.Infow("Cleanup completed", "kind", d.GVK.Kind, "namespace", obj.GetNamespace(), "name", obj.GetName())
		return ctrl.Result{}, nil

	default:
		if controllerutil.AddFinalizer(obj, Finalizer) {
			if err := d.Client.Update(ctx, obj); err != nil {
				return ctrl.Result{}, operrors.Wrapf(operrors.ErrFinalizer, err, "can't add finalizer")
			}
		}

		outcome, err := d.Handler.Apply(ctx, obj)
		if err != nil {
			return ctrl.Result{}, err
		}
		message := "External state in sync"
		if outcome == Changed {
			message = "External state created"
			d.Log.Infow("Reconcile completed", "kind", d.GVK.Kind, "namespace", obj.GetNamespace(), "name", obj.GetName())
		}
		d.Recorder.Event(obj, corev1.EventTypeNormal, ReasonReconcileCompleted, message)
		return ctrl.Result{RequeueAfter: d.RequeueInterval}, nil
	}
}

// errorPolicy reports err and schedules a retry after the fixed interval. A nil error is
// returned so the work queue never applies its exponential back-off.
func (d *Driver[T]) errorPolicy(ctx context.Context, req ctrl.Request, obj client.Object, err error) (ctrl.Result, error) {
	d.Log.Errorw("Reconcile failed", "kind", d.GVK.Kind, "namespace", req.Namespace, "name", req.Name,
		"error", err)
	if obj != nil {
		d.Recorder.Event(obj, corev1.EventTypeWarning, ReasonReconcileFailed, err.Error())
	}
	metrics.RecordFailure(d.GVK.GroupVersion().String(), d.GVK.Kind, req.String(), err)

	tracing.RecordSpanError(trace.SpanFromContext(ctx), err)

	return ctrl.Result{RequeueAfter: d.RequeueInterval}, nil
}
