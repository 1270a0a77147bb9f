// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist or is not visible
// to the caller (inactive tenant, unpublished content, rejected path).
var ErrNotFound = errors.New("not found")

// ErrStorage indicates the underlying data store failed (timeout, connection,
// corrupt record). It is distinct from ErrNotFound so operators can alert on it.
var ErrStorage = errors.New("storage failure")

// ErrValidation indicates invalid input data.
var ErrValidation = errors.New("validation failed")
