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

// UserSpec defines the desired state of User
type UserSpec struct {
	// Server is the key of the PostgreSQL backend the role is created on
	// +required
	Server string `json:"server"`

	// PasswordSecretName is the name of the secret that will be created and
	// contain the generated password
	// +required
	PasswordSecretName string `json:"passwordSecretName"`

	// ConnectionLimit is the maximum number of concurrent connections, -1 for no limit
	// +kubebuilder:default=-1
	// +optional
	ConnectionLimit int32 `json:"connectionLimit,omitempty"`
}

// UserStatus defines the observed state of User
type UserStatus struct {
	// Created is true once the role exists on the server
	// +optional
	Created bool `json:"created,omitempty"`

	// Name is the role name on the server
	// +optional
	Name string `json:"name,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Server",type=string,JSONPath=`.spec.server`
// +kubebuilder:printcolumn:name="Role",type=string,JSONPath=`.status.name`
// +kubebuilder:printcolumn:name="Created",type=boolean,JSONPath=`.status.created`

// User is the Schema for the users API
type User struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   UserSpec   `json:"spec,omitempty"`
	Status UserStatus `json:"status,omitempty"`
}

// WasCreated reports whether the role has been created on the server
func (u *User) WasCreated() bool {
	return u.Status.Created
}

// +kubebuilder:object:root=true

// UserList contains a list of User
type UserList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []User `json:"items"`
}

func init() {
	SchemeBuilder.Register(&User{}, &UserList{})
}
