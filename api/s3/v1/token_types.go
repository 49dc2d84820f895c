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

// TokenSpec defines the desired state of Token
type TokenSpec struct {
	// BucketRef is the Bucket the token grants access to
	// +required
	BucketRef BucketRef `json:"bucketRef"`

	// SecretName is the name of the secret that will be created and contain the
	// access key id and secret access key
	// +required
	SecretName string `json:"secretName"`

	// +optional
	Read bool `json:"read,omitempty"`

	// +optional
	Write bool `json:"write,omitempty"`

	// +optional
	Owner bool `json:"owner,omitempty"`
}

// TokenStatus defines the observed state of Token
type TokenStatus struct {
	// Created is true once the key exists and its permissions were applied
	// +optional
	Created bool `json:"created,omitempty"`

	// ID is the access key id assigned by the object store
	// +optional
	ID string `json:"id,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=tok
// +kubebuilder:printcolumn:name="Bucket",type=string,JSONPath=`.spec.bucketRef.name`
// +kubebuilder:printcolumn:name="Read",type=boolean,JSONPath=`.spec.read`
// +kubebuilder:printcolumn:name="Write",type=boolean,JSONPath=`.spec.write`
// +kubebuilder:printcolumn:name="Created",type=boolean,JSONPath=`.status.created`

// Token is the Schema for the tokens API
type Token struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   TokenSpec   `json:"spec,omitempty"`
	Status TokenStatus `json:"status,omitempty"`
}

// WasCreated reports whether the key has been created in the object store
func (t *Token) WasCreated() bool {
	return t.Status.Created
}

// +kubebuilder:object:root=true

// TokenList contains a list of Token
type TokenList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Token `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Token{}, &TokenList{})
}
