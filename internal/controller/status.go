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

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"

	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

// FieldOwner is the field manager of every status the controllers apply
const FieldOwner = "cntrlr"

// applyStatus server-side applies status onto the status subresource of obj. Only the
// identity of obj is sent, so spec and metadata are never touched.
func applyStatus(ctx context.Context, c client.Client, gvk schema.GroupVersionKind, obj client.Object, status any) error {
	content, err := runtime.DefaultUnstructuredConverter.ToUnstructured(status)
	if err != nil {
		return operrors.KubernetesError("ConvertStatus", err)
	}

	patch := &unstructured.Unstructured{Object: map[string]interface{}{"status": content}}
	patch.SetGroupVersionKind(gvk)
	patch.SetName(obj.GetName())
	patch.SetNamespace(obj.GetNamespace())

	if err := c.Status().Patch(ctx, patch, client.Apply,
		client.FieldOwner(FieldOwner), client.ForceOwnership); err != nil {
		return operrors.KubernetesError("ApplyStatus", err)
	}
	return nil
}
