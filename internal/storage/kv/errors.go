package kv

import "errors"

var (
	// ErrDBClosed is returned when operating on a closed backend.
	ErrDBClosed = errors.New("kv: database is closed")

	// ErrKeyNotFound is returned when a key doesn't exist.
	ErrKeyNotFound = errors.New("kv: key not found")

	// ErrNilKey is returned for operations on a nil or empty key.
	ErrNilKey = errors.New("kv: nil key")

	// ErrUnknownBackend is returned when opening an unregistered backend.
	ErrUnknownBackend = errors.New("kv: unknown backend")
)
