// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vortexdata/vortex-go/pkg/contracts"
)

// scanConcurrency caps parallel fragment reads during table scans.
const scanConcurrency = 4

// Table is a handle to one named table, owned by the connection that
// created or opened it.
type Table struct {
	name string
	conn *Connection

	mu       sync.RWMutex
	closed   bool
	schema   *arrow.Schema
	schemaAt time.Time
}

var _ contracts.ITable = (*Table)(nil)

func newTable(conn *Connection, name string) *Table {
	return &Table{
		name: name,
		conn: conn,
	}
}

func (t *Table) Name() string {
	return t.name
}

func (t *Table) String() string {
	if !t.IsOpen() {
		return fmt.Sprintf("ClosedTable(name=%s)", t.name)
	}
	return fmt.Sprintf("Table(name=%s, uri=%s)", t.name, t.conn.uri)
}

func (t *Table) IsOpen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.closed && !t.conn.IsClosed()
}

// Close closes the handle. The underlying table is untouched.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *Table) checkOpen() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return fmt.Errorf("table %s: %w", t.name, contracts.ErrTableClosed)
	}
	if t.conn.IsClosed() {
		return contracts.ErrConnectionClosed
	}
	return nil
}

// Schema returns the table's schema. Once fetched it is served from cache,
// refreshed after the connection's read consistency interval elapses. It
// fails if the table was dropped out-of-band and a fetch is needed.
func (t *Table) Schema(ctx context.Context) (*arrow.Schema, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}

	t.mu.RLock()
	cached, cachedAt := t.schema, t.schemaAt
	t.mu.RUnlock()

	if cached != nil {
		interval := t.conn.readConsistency
		if interval == nil || time.Since(cachedAt) < *interval {
			return cached, nil
		}
	}

	schema, err := t.fetchSchema(ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.schema = schema
	t.schemaAt = time.Now()
	t.mu.Unlock()
	return schema, nil
}

func (t *Table) fetchSchema(ctx context.Context) (*arrow.Schema, error) {
	data, err := t.conn.store.Get(ctx, tableKey(t.name, schemaFile))
	if err != nil {
		if exists, existsErr := tableExists(ctx, t.conn.store, t.name); existsErr == nil && !exists {
			return nil, fmt.Errorf("table %s: %w", t.name, contracts.ErrTableNotFound)
		}
		return nil, fmt.Errorf("failed to get schema of %s: %w", t.name, err)
	}

	schema, err := decodeSchemaIPC(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode schema of %s: %w", t.name, err)
	}
	return schema, nil
}

// Add appends a single record to the table.
func (t *Table) Add(ctx context.Context, record arrow.Record, options *contracts.AddDataOptions) error {
	if record == nil {
		return nil
	}
	return t.AddRecords(ctx, []arrow.Record{record}, options)
}

// AddRecords writes a batch of records as one new fragment and one new
// table version. WriteModeOverwrite replaces the existing data instead of
// appending.
func (t *Table) AddRecords(ctx context.Context, records []arrow.Record, options *contracts.AddDataOptions) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	t.conn.writeMu.Lock()
	defer t.conn.writeMu.Unlock()

	manifest, err := loadManifest(ctx, t.conn.store, t.name)
	if err != nil {
		return err
	}
	schema, err := t.fetchSchema(ctx)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if !rec.Schema().Equal(schema) {
			return fmt.Errorf("add to table %s: %w", t.name, contracts.ErrSchemaMismatch)
		}
	}

	fragment, rows, err := encodeFragment(schema, records)
	if err != nil {
		return fmt.Errorf("add to table %s: %w", t.name, err)
	}

	fragName := newFragmentName(manifest.Version + 1)
	if err := t.conn.store.Put(ctx, tableKey(t.name, fragName), fragment); err != nil {
		return fmt.Errorf("add to table %s: %w", t.name, err)
	}

	var replaced []fragmentRef
	if options != nil && options.Mode == contracts.WriteModeOverwrite {
		replaced = manifest.Fragments
		manifest.Fragments = nil
	}
	manifest.Fragments = append(manifest.Fragments, fragmentRef{Path: fragName, Rows: rows})
	manifest.Version++

	if err := saveManifest(ctx, t.conn.store, t.name, manifest); err != nil {
		return fmt.Errorf("add to table %s: %w", t.name, err)
	}
	t.removeFragments(ctx, replaced)

	t.conn.log.WithFields(logrus.Fields{
		"table":   t.name,
		"rows":    rows,
		"version": manifest.Version,
	}).Debug("added records")
	return nil
}

// Count returns the total number of rows, from fragment row counts in the
// manifest; no data files are opened.
func (t *Table) Count(ctx context.Context) (int64, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}

	manifest, err := loadManifest(ctx, t.conn.store, t.name)
	if err != nil {
		return 0, err
	}
	return manifest.totalRows(), nil
}

// Version returns the current version number of the table.
func (t *Table) Version(ctx context.Context) (int, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}

	manifest, err := loadManifest(ctx, t.conn.store, t.name)
	if err != nil {
		return 0, err
	}
	return manifest.Version, nil
}

// Delete removes the rows matching filter. A filter matching nothing leaves
// the table (and its version) unchanged.
func (t *Table) Delete(ctx context.Context, filter string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}

	pred, err := compileFilter(filter)
	if err != nil {
		return fmt.Errorf("delete from table %s: %w", t.name, err)
	}

	t.conn.writeMu.Lock()
	defer t.conn.writeMu.Unlock()

	manifest, err := loadManifest(ctx, t.conn.store, t.name)
	if err != nil {
		return err
	}
	rows, err := t.scan(ctx, manifest)
	if err != nil {
		return err
	}

	kept := rows[:0]
	for _, row := range rows {
		if !pred(row) {
			kept = append(kept, row)
		}
	}
	deleted := len(rows) - len(kept)
	if deleted == 0 {
		return nil
	}

	if err := t.rewrite(ctx, manifest, kept); err != nil {
		return fmt.Errorf("delete from table %s: %w", t.name, err)
	}

	t.conn.log.WithFields(logrus.Fields{
		"table": t.name,
		"rows":  deleted,
	}).Debug("deleted rows")
	return nil
}

// Update sets the given columns on every row matching filter.
func (t *Table) Update(ctx context.Context, filter string, updates map[string]interface{}) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if len(updates) == 0 {
		return fmt.Errorf("update table %s: no updates given", t.name)
	}

	pred, err := compileFilter(filter)
	if err != nil {
		return fmt.Errorf("update table %s: %w", t.name, err)
	}

	t.conn.writeMu.Lock()
	defer t.conn.writeMu.Unlock()

	schema, err := t.fetchSchema(ctx)
	if err != nil {
		return err
	}
	if err := validateUpdateColumns(schema, updates); err != nil {
		return fmt.Errorf("update table %s: %w", t.name, err)
	}

	manifest, err := loadManifest(ctx, t.conn.store, t.name)
	if err != nil {
		return err
	}
	rows, err := t.scan(ctx, manifest)
	if err != nil {
		return err
	}

	updated := 0
	for _, row := range rows {
		if !pred(row) {
			continue
		}
		for name, value := range updates {
			row[name] = value
		}
		updated++
	}
	if updated == 0 {
		return nil
	}

	if err := t.rewrite(ctx, manifest, rows); err != nil {
		return fmt.Errorf("update table %s: %w", t.name, err)
	}

	t.conn.log.WithFields(logrus.Fields{
		"table": t.name,
		"rows":  updated,
	}).Debug("updated rows")
	return nil
}

// Select scans the table with optional projection, filter, limit and offset.
func (t *Table) Select(ctx context.Context, config contracts.QueryConfig) ([]map[string]interface{}, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}

	pred, err := compileFilter(config.Where)
	if err != nil {
		return nil, fmt.Errorf("select from table %s: %w", t.name, err)
	}

	if len(config.Columns) > 0 {
		schema, err := t.Schema(ctx)
		if err != nil {
			return nil, err
		}
		for _, col := range config.Columns {
			if !schema.HasField(col) {
				return nil, fmt.Errorf("select from table %s: unknown column %s", t.name, col)
			}
		}
	}

	manifest, err := loadManifest(ctx, t.conn.store, t.name)
	if err != nil {
		return nil, err
	}
	rows, err := t.scan(ctx, manifest)
	if err != nil {
		return nil, err
	}

	offset := 0
	if config.Offset != nil {
		offset = *config.Offset
	}
	limit := -1
	if config.Limit != nil {
		limit = *config.Limit
	}

	result := make([]map[string]interface{}, 0)
	for _, row := range rows {
		if !pred(row) {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		if limit >= 0 && len(result) >= limit {
			break
		}
		result = append(result, projectRow(row, config.Columns))
	}
	return result, nil
}

func (t *Table) SelectWithColumns(ctx context.Context, columns []string) ([]map[string]interface{}, error) {
	return t.Select(ctx, contracts.QueryConfig{Columns: columns})
}

func (t *Table) SelectWithFilter(ctx context.Context, filter string) ([]map[string]interface{}, error) {
	return t.Select(ctx, contracts.QueryConfig{Where: filter})
}

func (t *Table) SelectWithLimit(ctx context.Context, limit int, offset int) ([]map[string]interface{}, error) {
	return t.Select(ctx, contracts.QueryConfig{Limit: &limit, Offset: &offset})
}

// scan reads every fragment into row maps, preserving fragment order.
// Fragments are fetched concurrently.
func (t *Table) scan(ctx context.Context, manifest *tableManifest) ([]map[string]interface{}, error) {
	parts := make([][]map[string]interface{}, len(manifest.Fragments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for i, frag := range manifest.Fragments {
		i, frag := i, frag
		g.Go(func() error {
			data, err := t.conn.store.Get(gctx, tableKey(t.name, frag.Path))
			if err != nil {
				return fmt.Errorf("failed to read fragment %s: %w", frag.Path, err)
			}
			rows, err := decodeFragmentRows(data)
			if err != nil {
				return fmt.Errorf("failed to decode fragment %s: %w", frag.Path, err)
			}
			parts[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan table %s: %w", t.name, err)
	}

	var rows []map[string]interface{}
	for _, part := range parts {
		rows = append(rows, part...)
	}
	return rows, nil
}

// rewrite replaces the table's fragments with a single fragment holding
// rows, bumping the version. Old fragments are removed after the new
// manifest is committed.
func (t *Table) rewrite(ctx context.Context, manifest *tableManifest, rows []map[string]interface{}) error {
	schema, err := t.fetchSchema(ctx)
	if err != nil {
		return err
	}

	replaced := manifest.Fragments
	manifest.Fragments = nil
	manifest.Version++

	if len(rows) > 0 {
		record, err := rowsToRecord(schema, rows)
		if err != nil {
			return err
		}
		defer record.Release()

		fragment, count, err := encodeFragment(schema, []arrow.Record{record})
		if err != nil {
			return err
		}
		fragName := newFragmentName(manifest.Version)
		if err := t.conn.store.Put(ctx, tableKey(t.name, fragName), fragment); err != nil {
			return err
		}
		manifest.Fragments = []fragmentRef{{Path: fragName, Rows: count}}
	}

	if err := saveManifest(ctx, t.conn.store, t.name, manifest); err != nil {
		return err
	}
	t.removeFragments(ctx, replaced)
	return nil
}

// removeFragments deletes superseded data files. Failures are logged, not
// returned: the manifest no longer references them, so they are garbage,
// not corruption.
func (t *Table) removeFragments(ctx context.Context, fragments []fragmentRef) {
	for _, frag := range fragments {
		if err := t.conn.store.Delete(ctx, tableKey(t.name, frag.Path)); err != nil {
			t.conn.log.WithFields(logrus.Fields{
				"table":    t.name,
				"fragment": frag.Path,
			}).WithError(err).Warn("failed to remove stale fragment")
		}
	}
}

func projectRow(row map[string]interface{}, columns []string) map[string]interface{} {
	if len(columns) == 0 {
		out := make(map[string]interface{}, len(row))
		for k, v := range row {
			out[k] = v
		}
		return out
	}
	out := make(map[string]interface{}, len(columns))
	for _, col := range columns {
		out[col] = row[col]
	}
	return out
}
