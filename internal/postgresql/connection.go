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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/tjo-space/tjo-cloud-console/internal/config"
	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

const (
	driverName      = "postgres"
	applicationName = "console-tjo-cloud"
	pingTimeout     = 5 * time.Second
)

// ConnectOptions bound the startup ping loop
type ConnectOptions struct {
	Attempts   int
	RetryDelay time.Duration
}

// EffectiveSSLMode returns the sslmode handed to lib/pq. Accepting invalid certificates
// keeps the connection encrypted but skips verification, which lib/pq calls "require".
func EffectiveSSLMode(backend config.Backend) string {
	mode := backend.SSLMode
	if mode == "" {
		mode = config.DefaultPostgresqlSSLMode
	}
	if backend.SSLAcceptInvalidCert && (mode == "verify-ca" || mode == "verify-full") {
		return "require"
	}
	return mode
}

// ConnectionString renders backend as a libpq keyword/value string
func ConnectionString(backend config.Backend) string {
	port := backend.Port
	if port == 0 {
		port = config.DefaultPostgresqlPort
	}
	database := backend.Database
	if database == "" {
		database = config.DefaultPostgresqlDatabase
	}

	pairs := []string{
		"application_name=" + quoteValue(applicationName),
		"host=" + quoteValue(backend.Host),
		fmt.Sprintf("port=%d", port),
		"user=" + quoteValue(backend.Username),
		"password=" + quoteValue(backend.Password),
		"dbname=" + quoteValue(database),
		"sslmode=" + quoteValue(EffectiveSSLMode(backend)),
	}
	return strings.Join(pairs, " ")
}

// quoteValue quotes a keyword value when it is empty or has characters libpq would split on
func quoteValue(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	return "'" + value + "'"
}

// Connect opens the pool for backend and pings it until it answers or the attempts run out
func Connect(ctx context.Context, backend config.Backend, opts ConnectOptions, log *zap.SugaredLogger) (*Client, error) {
	db, err := sqlx.Open(driverName, ConnectionString(backend))
	if err != nil {
		return nil, operrors.Wrapf(operrors.ErrPostgresqlConnectionFailed, err,
			"can't open connection to backend %s", backend.Name)
	}
	return connectDB(ctx, backend, db, opts, log)
}

func connectDB(
	ctx context.Context, backend config.Backend, db *sqlx.DB, opts ConnectOptions, log *zap.SugaredLogger,
) (*Client, error) {
	// A single connection keeps DDL strictly serialized per backend
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ping := func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return db.PingContext(pingCtx)
	}

	err := ExecuteOperationWithRetry(ctx, ping, log.With("backend", backend.Name, "host", backend.Host),
		opts.Attempts, opts.RetryDelay, "ping")
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Warnw("Failed to close database connection", "backend", backend.Name, "error", closeErr)
		}
		return nil, operrors.Wrapf(operrors.ErrPostgresqlConnectionFailed, err,
			"can't connect to backend %s", backend.Name)
	}

	log.Infow("PostgreSQL backend connected", "backend", backend.Name, "host", backend.Host)
	return NewClient(backend, db), nil
}
