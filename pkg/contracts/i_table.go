// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

package contracts

import (
	"context"

	"github.com/apache/arrow/go/v17/arrow"
)

// ITable is a handle to one named table, owned by the connection that
// created or opened it. It abstracts the Table struct methods to enable
// testing, mocking, and decoupling in applications using Vortex.
type ITable interface {
	// Name returns the name of the table.
	Name() string

	// String returns a human-readable representation of the table handle.
	String() string

	// IsOpen returns true if the table is currently open and available for
	// operations.
	IsOpen() bool

	// Close closes the table handle. The underlying table is untouched.
	Close() error

	// Schema returns the Arrow schema of the table. The result may be served
	// from cache subject to the connection's read consistency interval. It
	// fails if the underlying table has been dropped out-of-band.
	Schema(ctx context.Context) (*arrow.Schema, error)

	// Add appends a single record to the table.
	Add(ctx context.Context, record arrow.Record, options *AddDataOptions) error

	// AddRecords writes a batch of records in one table version.
	AddRecords(ctx context.Context, records []arrow.Record, options *AddDataOptions) error

	// Count returns the total number of rows in the table.
	Count(ctx context.Context) (int64, error)

	// Version returns the current version number of the table. Versions
	// start at 1 and increment on every mutation.
	Version(ctx context.Context) (int, error)

	// Update modifies the rows matching filter. updates maps column names to
	// their new values.
	Update(ctx context.Context, filter string, updates map[string]interface{}) error

	// Delete removes the rows matching filter.
	Delete(ctx context.Context, filter string) error

	// Select scans the table with optional projection, filter, limit and
	// offset, and returns the matching rows.
	Select(ctx context.Context, config QueryConfig) ([]map[string]interface{}, error)

	// SelectWithColumns returns all rows with only the given columns.
	SelectWithColumns(ctx context.Context, columns []string) ([]map[string]interface{}, error)

	// SelectWithFilter returns the rows matching the given filter.
	SelectWithFilter(ctx context.Context, filter string) ([]map[string]interface{}, error)

	// SelectWithLimit returns at most limit rows, skipping offset rows.
	SelectWithLimit(ctx context.Context, limit int, offset int) ([]map[string]interface{}, error)
}

// AddDataOptions configures how data is added to a Table.
type AddDataOptions struct {
	Mode WriteMode
}

// WriteMode specifies how data should be written to a Table.
type WriteMode int

const (
	// WriteModeAppend adds the records to the existing table data.
	WriteModeAppend WriteMode = iota

	// WriteModeOverwrite replaces the existing table data with the records.
	WriteModeOverwrite
)
