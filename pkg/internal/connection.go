// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

package internal

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vortexdata/vortex-go/pkg/contracts"
)

// deleteConcurrency caps parallel object deletes during drop operations.
const deleteConcurrency = 8

// Connection is a session handle to a database rooted at one ObjectStore.
// Reads may run concurrently; table mutations are serialized on writeMu.
type Connection struct {
	uri             string
	store           ObjectStore
	readConsistency *time.Duration
	log             logrus.FieldLogger

	mu     sync.RWMutex
	closed bool

	// writeMu serializes create/drop/write operations issued through this
	// connection. Concurrent writers on separate connections are undefined
	// behavior, as in the storage layout there is no cross-process lock.
	writeMu sync.Mutex

	namesMu sync.Mutex
	names   []string
	namesAt time.Time
}

var _ contracts.IConnection = (*Connection)(nil)

// NewConnection wraps an open ObjectStore as a database connection.
func NewConnection(uri string, store ObjectStore, options *contracts.ConnectionOptions) *Connection {
	conn := &Connection{
		uri:   uri,
		store: store,
	}
	if options != nil {
		conn.readConsistency = options.ReadConsistencyInterval
		if options.Logger != nil {
			conn.log = options.Logger
		}
	}
	if conn.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		conn.log = discard
	}
	return conn
}

func (c *Connection) URI() string {
	return c.uri
}

func (c *Connection) String() string {
	if c.IsClosed() {
		return "ClosedConnection"
	}
	return fmt.Sprintf("Connection(uri=%s)", c.uri)
}

func (c *Connection) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Close releases the connection. Table handles obtained from it stop
// working; the stored data is untouched.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Connection) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return contracts.ErrConnectionClosed
	}
	return nil
}

// TableNames returns table names in lexicographic order, paginated by opts.
func (c *Connection) TableNames(ctx context.Context, opts *contracts.TableNamesOptions) ([]string, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	names, err := c.listTables(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(names))
	for _, name := range names {
		if opts != nil && opts.StartAfter != nil && name <= *opts.StartAfter {
			continue
		}
		if opts != nil && opts.Limit != nil && len(result) >= *opts.Limit {
			break
		}
		result = append(result, name)
	}
	return result, nil
}

// listTables lists table names from storage, serving a cached view within
// the connection's read consistency interval. Without an interval the cache
// is reused until a mutation through this connection invalidates it.
func (c *Connection) listTables(ctx context.Context) ([]string, error) {
	c.namesMu.Lock()
	defer c.namesMu.Unlock()

	if c.names != nil {
		if c.readConsistency == nil || time.Since(c.namesAt) < *c.readConsistency {
			return c.names, nil
		}
	}

	keys, err := c.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	seen := make(map[string]struct{})
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		if !strings.HasSuffix(key, "/"+manifestFile) {
			continue
		}
		name := tableNameFromKey(key)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)

	c.names = names
	c.namesAt = time.Now()
	return names, nil
}

func (c *Connection) invalidateNames() {
	c.namesMu.Lock()
	c.names = nil
	c.namesMu.Unlock()
}

// OpenTable opens an existing table by name.
func (c *Connection) OpenTable(ctx context.Context, name string) (contracts.ITable, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if err := validateTableName(name); err != nil {
		return nil, err
	}

	if _, err := loadManifest(ctx, c.store, name); err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", name, err)
	}
	return newTable(c, name), nil
}

// CreateTable creates a table from a streamed record batch source. The
// reader is drained and released before the table is committed, so a
// returned handle always refers to durably written data.
func (c *Connection) CreateTable(ctx context.Context, name string, mode contracts.CreateTableMode, data array.RecordReader) (contracts.ITable, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if err := validateTableName(name); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("create table %s: data is nil", name)
	}
	defer data.Release()

	schema := data.Schema()
	var records []arrow.Record
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()

	for data.Next() {
		rec := data.Record()
		if !rec.Schema().Equal(schema) {
			return nil, fmt.Errorf("create table %s: batch schema diverges from stream schema: %w",
				name, contracts.ErrSchemaMismatch)
		}
		rec.Retain()
		records = append(records, rec)
	}
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("create table %s: failed to read data: %w", name, err)
	}

	return c.createTable(ctx, name, mode, schema, records)
}

// CreateEmptyTable creates a zero-row table with the given schema.
func (c *Connection) CreateEmptyTable(ctx context.Context, name string, mode contracts.CreateTableMode, schema contracts.ISchema) (contracts.ITable, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if err := validateTableName(name); err != nil {
		return nil, err
	}
	if schema == nil || schema.ToArrowSchema() == nil {
		return nil, fmt.Errorf("create table %s: schema is nil", name)
	}

	return c.createTable(ctx, name, mode, schema.ToArrowSchema(), nil)
}

func (c *Connection) createTable(ctx context.Context, name string, mode contracts.CreateTableMode, schema *arrow.Schema, records []arrow.Record) (contracts.ITable, error) {
	switch mode {
	case contracts.CreateModeCreate, contracts.CreateModeOverwrite, contracts.CreateModeExistOk:
	default:
		return nil, fmt.Errorf("create table %s: %w", name, contracts.ErrInvalidCreateMode)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	exists, err := tableExists(ctx, c.store, name)
	if err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}

	if exists {
		switch mode {
		case contracts.CreateModeCreate:
			return nil, fmt.Errorf("create table %s: %w", name, contracts.ErrTableExists)
		case contracts.CreateModeExistOk:
			stored, err := c.store.Get(ctx, tableKey(name, schemaFile))
			if err != nil {
				return nil, fmt.Errorf("create table %s: %w", name, err)
			}
			storedSchema, err := decodeSchemaIPC(stored)
			if err != nil {
				return nil, fmt.Errorf("create table %s: %w", name, err)
			}
			if !storedSchema.Equal(schema) {
				return nil, fmt.Errorf("create table %s (exist_ok): existing schema differs: %w",
					name, contracts.ErrSchemaMismatch)
			}
			return newTable(c, name), nil
		case contracts.CreateModeOverwrite:
			if err := c.dropTableObjects(ctx, name); err != nil {
				return nil, fmt.Errorf("create table %s: %w", name, err)
			}
		}
	}

	schemaIPC, err := encodeSchemaIPC(schema)
	if err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}
	if err := c.store.Put(ctx, tableKey(name, schemaFile), schemaIPC); err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}

	manifest := &tableManifest{
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}

	if len(records) > 0 {
		fragment, rows, err := encodeFragment(schema, records)
		if err != nil {
			return nil, fmt.Errorf("create table %s: %w", name, err)
		}
		fragName := newFragmentName(manifest.Version)
		if err := c.store.Put(ctx, tableKey(name, fragName), fragment); err != nil {
			return nil, fmt.Errorf("create table %s: %w", name, err)
		}
		manifest.Fragments = []fragmentRef{{Path: fragName, Rows: rows}}
	}

	// The manifest goes last: a table is visible only once fully written.
	if err := saveManifest(ctx, c.store, name, manifest); err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}

	c.invalidateNames()
	c.log.WithFields(logrus.Fields{
		"table": name,
		"mode":  mode.String(),
		"rows":  manifest.totalRows(),
	}).Debug("created table")

	return newTable(c, name), nil
}

// DropTable removes the named table and all of its data.
func (c *Connection) DropTable(ctx context.Context, name string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := validateTableName(name); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	exists, err := tableExists(ctx, c.store, name)
	if err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("drop table %s: %w", name, contracts.ErrTableNotFound)
	}

	if err := c.dropTableObjects(ctx, name); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}

	c.invalidateNames()
	c.log.WithField("table", name).Debug("dropped table")
	return nil
}

// dropTableObjects deletes everything under the table's directory. The
// manifest goes first so the table vanishes from listings before its data.
func (c *Connection) dropTableObjects(ctx context.Context, name string) error {
	if err := c.store.Delete(ctx, tableKey(name, manifestFile)); err != nil {
		return err
	}

	keys, err := c.store.List(ctx, tableKey(name)+"/")
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			return c.store.Delete(ctx, key)
		})
	}
	return g.Wait()
}

// DropDatabase removes every table under the connection's URI.
func (c *Connection) DropDatabase(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	names, err := c.listTables(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := c.dropTableObjects(ctx, name); err != nil {
			return fmt.Errorf("drop database: %w", err)
		}
	}

	c.invalidateNames()
	c.log.WithField("tables", len(names)).Debug("dropped database")
	return nil
}

func validateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("table name is empty")
	}
	if strings.ContainsAny(name, "/\\") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}
