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

// Package postgresql is the adapter to the PostgreSQL servers roles and databases are
// provisioned on.
package postgresql

import (
	"context"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tjo-space/tjo-cloud-console/internal/config"
	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
	"github.com/tjo-space/tjo-cloud-console/internal/tracing"
)

// Executor runs a single statement and reports the affected row count
type Executor interface {
	Execute(ctx context.Context, statement string, args ...any) (int64, error)
}

// Backend is a connected PostgreSQL server as seen by the reconcilers
type Backend interface {
	Executor
	Name() string
	Host() string
	Port() string
	Ping(ctx context.Context) error
	Close() error
}

// Client is a Backend over a single-connection pool
type Client struct {
	backend config.Backend
	db      *sqlx.DB
}

// NewClient wraps an opened pool for backend
func NewClient(backend config.Backend, db *sqlx.DB) *Client {
	return &Client{backend: backend, db: db}
}

// Name returns the backend key resources reference in spec.server
func (c *Client) Name() string {
	return c.backend.Name
}

// Host returns the address clients should use to reach the server
func (c *Client) Host() string {
	return c.backend.Host
}

// Port returns the server port as handed out in credential secrets
func (c *Client) Port() string {
	if c.backend.Port == 0 {
		return strconv.Itoa(config.DefaultPostgresqlPort)
	}
	return strconv.Itoa(int(c.backend.Port))
}

// Execute runs statement. Statements may carry secrets so they are never logged or traced.
func (c *Client) Execute(ctx context.Context, statement string, args ...any) (int64, error) {
	ctx, span := tracing.StartChildSpan(ctx, "postgresql.Execute",
		attribute.String("db.system", "postgresql"),
		attribute.String("db.backend", c.backend.Name),
	)
	defer span.End()

	result, err := c.db.ExecContext(ctx, statement, args...)
	if err != nil {
		wrapped := operrors.PostgreSQLError("Execute", err)
		tracing.RecordSpanError(span, wrapped)
		return 0, wrapped
	}

	// DDL reports no rows on some drivers
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

// Ping checks the connection is alive
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return operrors.PostgreSQLError("Ping", err)
	}
	return nil
}

// Close releases the pool
func (c *Client) Close() error {
	return c.db.Close()
}

var _ Backend = (*Client)(nil)
