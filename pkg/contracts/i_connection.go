package contracts

import (
	"context"
	"time"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/sirupsen/logrus"
)

// IConnection is a session handle to a database location. Read operations
// may be issued concurrently; create and drop operations are serialized by
// the implementation.
type IConnection interface {
	// URI returns the database location this connection was opened with.
	URI() string

	// String returns a human-readable representation of the connection.
	String() string

	IsClosed() bool
	Close() error

	// TableNames returns table names in lexicographic order. opts may be nil.
	TableNames(ctx context.Context, opts *TableNamesOptions) ([]string, error)

	// OpenTable opens an existing table by name.
	OpenTable(ctx context.Context, name string) (ITable, error)

	// CreateTable creates a table from a streamed record batch source. The
	// reader is fully consumed and released before CreateTable returns.
	CreateTable(ctx context.Context, name string, mode CreateTableMode, data array.RecordReader) (ITable, error)

	// CreateEmptyTable creates a zero-row table with the given schema.
	CreateEmptyTable(ctx context.Context, name string, mode CreateTableMode, schema ISchema) (ITable, error)

	DropTable(ctx context.Context, name string) error

	// DropDatabase removes every table under the connection's URI.
	DropDatabase(ctx context.Context) error
}

// TableNamesOptions paginates TableNames. StartAfter excludes every name
// lexicographically less than or equal to it; Limit caps the result count.
type TableNamesOptions struct {
	StartAfter *string
	Limit      *int
}

// ConnectionOptions holds options for establishing a database connection.
// All fields are optional; nil means default behavior.
type ConnectionOptions struct {
	// APIKey authenticates against managed cloud endpoints (db:// URIs).
	// It has no effect on local or s3:// databases.
	APIKey *string

	// Region selects the cloud region for remote and S3 databases.
	Region *string

	// HostOverride points the client at a self-hosted endpoint instead of
	// the standard one for the URI's scheme.
	HostOverride *string

	// ReadConsistencyInterval bounds the staleness of cached table listings
	// and schemas: entries older than the interval are fetched again, and a
	// zero interval forces a fetch on every read. Nil gives no freshness
	// guarantee; cached views are reused until this connection mutates them.
	ReadConsistencyInterval *time.Duration

	StorageOptions *StorageOptions

	// Logger receives connection-level diagnostics. Nil means no logging.
	Logger logrus.FieldLogger
}
