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

package postgresql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, "team-a_app", QualifiedName("team-a", "app"))
	assert.Equal(t, "team-a_app", QualifiedName("Team-A", "App"))
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		resource   string
		identifier string
		expectErr  bool
	}{
		{name: "valid", resource: "app", identifier: "ns_app"},
		{name: "reserved name", resource: "illegal", identifier: "ns_illegal", expectErr: true},
		{name: "empty identifier", resource: "app", identifier: "", expectErr: true},
		{name: "exactly max length", resource: "app", identifier: strings.Repeat("a", MaxIdentifierLength)},
		{name: "too long", resource: "app", identifier: strings.Repeat("a", MaxIdentifierLength+1), expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.resource, tt.identifier)
			if tt.expectErr {
				assert.ErrorIs(t, err, operrors.ErrIllegalIdentifier)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStatements(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name:     "create user",
			got:      CreateUserStatement("ns_app", "s3cr3t", 10),
			expected: `CREATE USER "ns_app" WITH PASSWORD 's3cr3t' CONNECTION LIMIT 10`,
		},
		{
			name:     "create user escapes password",
			got:      CreateUserStatement("ns_app", "it's", -1),
			expected: `CREATE USER "ns_app" WITH PASSWORD 'it''s' CONNECTION LIMIT -1`,
		},
		{
			name:     "drop user",
			got:      DropUserStatement("ns_app"),
			expected: `DROP USER IF EXISTS "ns_app"`,
		},
		{
			name:     "create database",
			got:      CreateDatabaseStatement("ns_db", "ns_app", 5),
			expected: `CREATE DATABASE "ns_db" WITH OWNER "ns_app" CONNECTION LIMIT 5`,
		},
		{
			name:     "drop database quotes identifier",
			got:      DropDatabaseStatement(`we"ird`),
			expected: `DROP DATABASE IF EXISTS "we""ird"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}
