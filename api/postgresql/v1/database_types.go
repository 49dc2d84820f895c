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

// UserRef points at a User in the same namespace
type UserRef struct {
	// Name of the referenced User
	// +required
	Name string `json:"name"`
}

// DatabaseSpec defines the desired state of Database
type DatabaseSpec struct {
	// Name is the logical database name, metadata.name when empty. The namespace is
	// prepended to build the identifier created on the server.
	// +kubebuilder:validation:MinLength=3
	// +kubebuilder:validation:MaxLength=63
	// +kubebuilder:validation:Pattern=`^[a-z0-9._]+$`
	// +optional
	Name string `json:"name,omitempty"`

	// Server is the key of the PostgreSQL backend the database is created on
	// +required
	Server string `json:"server"`

	// ConnectionLimit is the maximum number of concurrent connections, -1 for no limit
	// +kubebuilder:default=-1
	// +optional
	ConnectionLimit int32 `json:"connectionLimit,omitempty"`

	// OwnerRef is the User owning the database. It must live on the same server.
	// +required
	OwnerRef UserRef `json:"ownerRef"`
}

// DatabaseStatus defines the observed state of Database
type DatabaseStatus struct {
	// Created is true once the database exists on the server
	// +optional
	Created bool `json:"created,omitempty"`

	// Name is the identifier of the database on the server
	// +optional
	Name string `json:"name,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=dat
// +kubebuilder:printcolumn:name="Server",type=string,JSONPath=`.spec.server`
// +kubebuilder:printcolumn:name="Database",type=string,JSONPath=`.status.name`
// +kubebuilder:printcolumn:name="Created",type=boolean,JSONPath=`.status.created`

// Database is the Schema for the databases API
type Database struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   DatabaseSpec   `json:"spec,omitempty"`
	Status DatabaseStatus `json:"status,omitempty"`
}

// WasCreated reports whether the database has been created on the server
func (d *Database) WasCreated() bool {
	return d.Status.Created
}

// LogicalName is spec.name, falling back to metadata.name
func (d *Database) LogicalName() string {
	if d.Spec.Name != "" {
		return d.Spec.Name
	}
	return d.Name
}

// +kubebuilder:object:root=true

// DatabaseList contains a list of Database
type DatabaseList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Database `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Database{}, &DatabaseList{})
}
