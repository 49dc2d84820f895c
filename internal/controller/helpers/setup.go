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

// Package helpers holds the event filters shared by the controllers.
package helpers

import (
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	"github.com/tjo-space/tjo-cloud-console/internal/credentials"
)

// deletionChanged fires when a deletion timestamp appears or disappears
func deletionChanged() predicate.Predicate {
	return predicate.Funcs{
		UpdateFunc: func(e event.UpdateEvent) bool {
			oldDel := e.ObjectOld.GetDeletionTimestamp()
			newDel := e.ObjectNew.GetDeletionTimestamp()
			return (oldDel == nil) != (newDel == nil)
		},
	}
}

// SpecOrDeletionChangedPredicate drops status-only updates, which the controllers
// produce themselves. Create, delete and generic events always pass.
func SpecOrDeletionChangedPredicate() predicate.Predicate {
	return predicate.Or[client.Object](predicate.GenerationChangedPredicate{}, deletionChanged())
}

// ManagedSecretPredicate passes only Secrets issued by the controllers
func ManagedSecretPredicate() predicate.Predicate {
	return predicate.NewPredicateFuncs(func(obj client.Object) bool {
		return obj.GetLabels()[credentials.ManagedByLabel] == credentials.ManagedByValue
	})
}
