// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates the caller supplied invalid or incomplete input.
var ErrValidation = errors.New("validation failed")

// ErrUnauthorized indicates the caller does not own the requested resource.
var ErrUnauthorized = errors.New("unauthorized")

// ErrModuleNotFound indicates no industry module is registered for a business type.
var ErrModuleNotFound = errors.New("industry module not found")

// ErrDataAccess indicates a failure reading business data from a backing store.
var ErrDataAccess = errors.New("data access failed")
