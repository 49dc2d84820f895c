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
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
)

// Finalizer guards every managed object until its external state is removed
const Finalizer = "console.tjo.cloud"

// Event reasons
const (
	ReasonCreationRequested  = "CreationRequested"
	ReasonCreationCompleted  = "CreationCompleted"
	ReasonDeleteRequested    = "DeleteRequested"
	ReasonReconcileFailed    = "ReconcileFailed"
	ReasonReconcileCompleted = "ReconcileCompleted"
	ReasonCleanupCompleted   = "CleanupCompleted"
)

// Object is a managed resource that records whether its external counterpart exists
type Object interface {
	client.Object
	WasCreated() bool
}

// Phase is where an object is in its lifecycle
type Phase int

const (
	// PhasePending objects have not been created externally yet
	PhasePending Phase = iota
	// PhaseCreated objects exist externally and are never re-applied
	PhaseCreated
	// PhaseDeleting objects are being deleted and still hold the finalizer
	PhaseDeleting
	// PhaseRemoved objects are being deleted and no longer hold the finalizer
	PhaseRemoved
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "Pending"
	case PhaseCreated:
		return "Created"
	case PhaseDeleting:
		return "Deleting"
	case PhaseRemoved:
		return "Removed"
	default:
		return "Unknown"
	}
}

// ClassifyPhase derives the phase from the deletion timestamp, the finalizer and status.created
func ClassifyPhase(obj Object) Phase {
	if !obj.GetDeletionTimestamp().IsZero() {
		if controllerutil.ContainsFinalizer(obj, Finalizer) {
			return PhaseDeleting
		}
		return PhaseRemoved
	}
	if obj.WasCreated() {
		return PhaseCreated
	}
	return PhasePending
}

// Outcome reports whether a handler pass touched external state
type Outcome int

const (
	// Converged means nothing had to be done
	Converged Outcome = iota
	// Changed means external state was created or removed
	Changed
)
