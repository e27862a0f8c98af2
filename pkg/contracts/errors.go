// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

package contracts

import "errors"

// Sentinel errors returned (wrapped) by connection and table operations.
// Match them with errors.Is.
var (
	// ErrInvalidURI reports a database URI that is malformed or names an
	// unsupported backend.
	ErrInvalidURI = errors.New("invalid database uri")

	// ErrConnectionClosed reports an operation on a closed connection, or on
	// a table handle whose connection was closed.
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrTableClosed reports an operation on a closed table handle.
	ErrTableClosed = errors.New("table is closed")

	// ErrTableExists reports a create in "create" mode against a name that
	// is already taken.
	ErrTableExists = errors.New("table already exists")

	// ErrTableNotFound reports an open or drop of a table that does not
	// exist, or one that was dropped out-of-band.
	ErrTableNotFound = errors.New("table not found")

	// ErrSchemaMismatch reports data whose schema differs from the table's,
	// or an exist_ok create against a table with a different schema.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrInvalidCreateMode reports an unknown create table mode.
	ErrInvalidCreateMode = errors.New("invalid create table mode")
)
