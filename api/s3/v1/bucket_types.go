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

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// BucketRef points at a Bucket in the same namespace
type BucketRef struct {
	// +required
	Name string `json:"name"`
}

// BucketSpec defines the desired state of Bucket
type BucketSpec struct {
	// Name is the global alias of the bucket. It must be unique in the cluster.
	// +kubebuilder:validation:MinLength=3
	// +kubebuilder:validation:MaxLength=63
	// +kubebuilder:validation:Pattern=`^[a-z0-9.\-_]+$`
	// +required
	Name string `json:"name"`
}

// BucketStatus defines the observed state of Bucket
type BucketStatus struct {
	// Created is true once the bucket exists in the object store
	// +optional
	Created bool `json:"created,omitempty"`

	// ID is the bucket id assigned by the object store
	// +optional
	ID string `json:"id,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=buc
// +kubebuilder:printcolumn:name="Alias",type=string,JSONPath=`.spec.name`
// +kubebuilder:printcolumn:name="Created",type=boolean,JSONPath=`.status.created`

// Bucket is the Schema for the buckets API
type Bucket struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   BucketSpec   `json:"spec,omitempty"`
	Status BucketStatus `json:"status,omitempty"`
}

// WasCreated reports whether the bucket has been created in the object store
func (b *Bucket) WasCreated() bool {
	return b.Status.Created
}

// +kubebuilder:object:root=true

// BucketList contains a list of Bucket
type BucketList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Bucket `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Bucket{}, &BucketList{})
}
