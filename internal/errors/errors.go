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

package errors

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

const codeUnknown = "UNKNOWN"

// Common error types that can be checked with errors.Is()
var (
	// ErrNotFound indicates a referenced object does not exist (yet)
	ErrNotFound = New("referenced object not found").WithCode("NOT_FOUND")

	// ErrInvalidConfiguration indicates invalid configuration
	ErrInvalidConfiguration = New("invalid configuration").WithCode("INVALID_CONFIGURATION")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out").WithCode("TIMEOUT")

	// ErrRetryExhausted indicates all retries were exhausted
	ErrRetryExhausted = New("retry attempts exhausted").WithCode("RETRY_EXHAUSTED")
)

// Error represents a structured error with context
type Error struct {
	// Code is a machine-readable error code
	Code string
	// Message is a human-readable error message
	Message string
	// Op is the operation that failed
	Op string
	// Err is the underlying error
	Err error
}

// New creates a new error with the given message
func New(message string) *Error {
	return &Error{
		Code:    codeUnknown,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for error unwrapping
func (e *Error) Unwrap() error {
	return e.Err
}

// WithOp adds an operation context to the error
func (e *Error) WithOp(op string) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Op:      op,
		Err:     e.Err,
	}
}

// WithCode sets the error code
func (e *Error) WithCode(code string) *Error {
	return &Error{
		Code:    code,
		Message: e.Message,
		Op:      e.Op,
		Err:     e.Err,
	}
}

// WithDetail appends a formatted detail to the message, keeping the code
func (e *Error) WithDetail(format string, args ...interface{}) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message + ": " + fmt.Sprintf(format, args...),
		Op:      e.Op,
		Err:     e.Err,
	}
}

// Wrap wraps an error with additional context
func Wrap(baseErr *Error, underlyingErr error) *Error {
	if baseErr == nil {
		if underlyingErr == nil {
			return nil
		}
		return &Error{
			Code:    codeUnknown,
			Message: underlyingErr.Error(),
			Err:     underlyingErr,
		}
	}
	if underlyingErr == nil {
		return baseErr
	}
	return &Error{
		Code:    baseErr.Code,
		Message: baseErr.Message,
		Op:      baseErr.Op,
		Err:     underlyingErr,
	}
}

// Wrapf wraps an error with a formatted message
func Wrapf(baseErr *Error, underlyingErr error, format string, args ...interface{}) *Error {
	if baseErr == nil {
		if underlyingErr == nil {
			return nil
		}
		return &Error{
			Code:    codeUnknown,
			Message: fmt.Sprintf(format, args...),
			Err:     underlyingErr,
		}
	}
	if underlyingErr == nil {
		return baseErr
	}
	return &Error{
		Code:    baseErr.Code,
		Message: fmt.Sprintf(format, args...),
		Op:      baseErr.Op,
		Err:     underlyingErr,
	}
}

// Is checks if the error matches the target error. Errors carrying a code match
// any error with the same code; uncoded errors fall back to comparing messages.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if e.Code != codeUnknown || t.Code != codeUnknown {
			return e.Code == t.Code
		}
		return e.Message == t.Message
	}
	return errors.Is(e.Err, target)
}

// Reconciliation errors
var (
	// ErrUnknownBackend indicates a resource references a backend key that is not configured
	ErrUnknownBackend = New("unknown backend").WithCode("UNKNOWN_BACKEND")

	// ErrBackendMismatch indicates dependent resources live on different backends
	ErrBackendMismatch = New("backend mismatch between dependent resources").WithCode("BACKEND_MISMATCH")

	// ErrIllegalIdentifier indicates a name that may not be used on a backend
	ErrIllegalIdentifier = New("illegal identifier").WithCode("ILLEGAL_IDENTIFIER")

	// ErrDuplicateResource indicates another resource already claims the same external name
	ErrDuplicateResource = New("duplicate resource").WithCode("DUPLICATE_RESOURCE")

	// ErrFinalizer indicates adding or removing the finalizer failed
	ErrFinalizer = New("finalizer bookkeeping failed").WithCode("FINALIZER_ERROR")

	// ErrCredentialConflict indicates a credential secret with the same name already exists
	ErrCredentialConflict = New("credential secret already exists").WithCode("CREDENTIAL_CONFLICT")
)

// PostgreSQL errors
var (
	// ErrPostgresqlConnectionFailed indicates a PostgreSQL connection failed
	ErrPostgresqlConnectionFailed = New("postgresql connection failed").WithCode("POSTGRESQL_CONNECTION_FAILED")

	// ErrPostgresqlOperationFailed indicates a statement failed on the server
	ErrPostgresqlOperationFailed = New("postgresql operation failed").WithCode("SQL_ERROR")
)

// PostgreSQLError wraps a driver error of op. A broken or unreachable connection becomes
// ErrPostgresqlConnectionFailed, anything the server rejected ErrPostgresqlOperationFailed.
func PostgreSQLError(op string, err error) *Error {
	if err == nil {
		return nil
	}
	if connectionLost(err) {
		return Wrap(ErrPostgresqlConnectionFailed, err).WithOp(op)
	}
	return Wrap(ErrPostgresqlOperationFailed, err).WithOp(op)
}

// connectionLost matches transport failures and SQLSTATE class 08 (connection exception)
func connectionLost(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var state interface{ SQLState() string }
	if errors.As(err, &state) {
		return strings.HasPrefix(state.SQLState(), "08")
	}
	return false
}

// Storage errors
var (
	// ErrStorageHTTP indicates the storage admin API answered with a non-success status
	// or could not be reached
	ErrStorageHTTP = New("storage admin api request failed").WithCode("STORAGE_HTTP_ERROR")
)

// StatusError is the underlying error of ErrStorageHTTP when the API answered
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}

// Vault errors
var (
	// ErrVaultSecretNotFound indicates a secret was not found in Vault
	ErrVaultSecretNotFound = New("vault secret not found").WithCode("VAULT_SECRET_NOT_FOUND")

	// ErrVaultAuthenticationFailed indicates Vault authentication failed
	ErrVaultAuthenticationFailed = New("vault authentication failed").WithCode("VAULT_AUTH_FAILED")

	// ErrVaultOperationFailed indicates a Vault operation failed
	ErrVaultOperationFailed = New("vault operation failed").WithCode("VAULT_OPERATION_FAILED")
)

// Kubernetes errors
var (
	// ErrKubernetesOperationFailed indicates a Kubernetes API call failed
	ErrKubernetesOperationFailed = New("kubernetes operation failed").WithCode("K8S_OPERATION_FAILED")

	// ErrMissingCRDs indicates the custom resource definitions are not installed
	ErrMissingCRDs = New("custom resource definitions are not installed in cluster").WithCode("MISSING_CRDS")
)

// KubernetesError wraps Kubernetes-related errors
func KubernetesError(op string, underlyingErr error) *Error {
	return Wrap(ErrKubernetesOperationFailed, underlyingErr).WithOp(op)
}

// Helper functions for common error patterns

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrVaultSecretNotFound)
}

// IsConnectionError checks if an error is a lost or refused PostgreSQL connection
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrPostgresqlConnectionFailed)
}

// AsError extracts the structured Error from an error chain
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Code returns the code of the outermost structured error in the chain
func Code(err error) string {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return codeUnknown
}

// MetricLabel returns a low-cardinality label for err, e.g. "unknownbackend"
func MetricLabel(err error) string {
	return strings.ToLower(strings.ReplaceAll(Code(err), "_", ""))
}
