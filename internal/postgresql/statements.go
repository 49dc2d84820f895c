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
	"fmt"
	"strings"

	"github.com/lib/pq"

	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

const (
	// MaxIdentifierLength is NAMEDATALEN-1 of a stock PostgreSQL build
	MaxIdentifierLength = 63

	// reservedName can never be provisioned
	reservedName = "illegal"
)

// QualifiedName scopes name to its namespace so two namespaces never collide on a backend
func QualifiedName(namespace, name string) string {
	return strings.ToLower(namespace + "_" + name)
}

// ValidateIdentifier rejects the reserved resource name and identifiers PostgreSQL would truncate
func ValidateIdentifier(name, identifier string) error {
	if name == reservedName {
		return operrors.ErrIllegalIdentifier.WithDetail("name %q is reserved", name)
	}
	if identifier == "" {
		return operrors.ErrIllegalIdentifier.WithDetail("empty identifier")
	}
	if len(identifier) > MaxIdentifierLength {
		return operrors.ErrIllegalIdentifier.WithDetail("identifier %q is longer than %d bytes",
			identifier, MaxIdentifierLength)
	}
	return nil
}

// CreateUserStatement builds the statement creating a login role
func CreateUserStatement(role, password string, connectionLimit int32) string {
	return fmt.Sprintf("CREATE USER %s WITH PASSWORD %s CONNECTION LIMIT %d",
		pq.QuoteIdentifier(role), pq.QuoteLiteral(password), connectionLimit)
}

// DropUserStatement builds the statement removing a role. A missing role is not an error.
func DropUserStatement(role string) string {
	return "DROP USER IF EXISTS " + pq.QuoteIdentifier(role)
}

// CreateDatabaseStatement builds the statement creating a database owned by owner
func CreateDatabaseStatement(database, owner string, connectionLimit int32) string {
	return fmt.Sprintf("CREATE DATABASE %s WITH OWNER %s CONNECTION LIMIT %d",
		pq.QuoteIdentifier(database), pq.QuoteIdentifier(owner), connectionLimit)
}

// DropDatabaseStatement builds the statement removing a database. A missing database is not an error.
func DropDatabaseStatement(database string) string {
	return "DROP DATABASE IF EXISTS " + pq.QuoteIdentifier(database)
}
