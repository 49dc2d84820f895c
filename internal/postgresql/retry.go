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
	"time"

	"go.uber.org/zap"

	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

// ExecuteOperationWithRetry runs operation up to retries times, waiting retryDelay between
// attempts. It gives up early when ctx is done.
func ExecuteOperationWithRetry(
	ctx context.Context, operation func(context.Context) error, log *zap.SugaredLogger,
	retries int, retryDelay time.Duration, operationName string) error {
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		log.Debugw("Attempting PostgreSQL operation", "operation", operationName, "attempt", attempt, "maxRetries", retries)

		err := operation(ctx)
		if err == nil {
			log.Debugw("PostgreSQL operation successful", "operation", operationName, "attempt", attempt)
			return nil
		}

		lastErr = err
		log.Warnw("PostgreSQL operation failed", "operation", operationName, "attempt", attempt, "error", err)
		if attempt == retries {
			break
		}

		select {
		case <-ctx.Done():
			return operrors.Wrapf(operrors.ErrTimeout, ctx.Err(),
				"postgresql operation %s cancelled after %d attempts", operationName, attempt)
		case <-time.After(retryDelay):
		}
	}

	return operrors.Wrapf(operrors.ErrRetryExhausted, lastErr,
		"postgresql operation %s failed after %d attempts", operationName, retries)
}
