// Package errs defines the sentinel errors shared across the service.
// Callers classify failures with errors.Is; wrapped context travels via
// fmt.Errorf's %w verb.
package errs

import "errors"

var (
	// ErrConfiguration marks startup-time catalog or environment problems.
	// Always fatal at load, never produced per request.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound marks a missing datasource, feature type or feature.
	ErrNotFound = errors.New("not found")

	// ErrInvalidParameter marks a malformed or unrecognized request
	// parameter.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrTransport marks an upstream service or database failure.
	ErrTransport = errors.New("transport error")
)
