// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

package tests

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	vortex "github.com/vortexdata/vortex-go/pkg"
	"github.com/vortexdata/vortex-go/pkg/contracts"
)

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (contracts.IConnection, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "vortex_connection_test")
	if err != nil {
		t.Fatalf("❌Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.vortex")
	conn, err := vortex.Connect(context.Background(), dbPath, nil)
	if err != nil {
		t.Fatalf("❌Failed to connect to database: %v", err)
	}

	cleanup := func() {
		conn.Close()
		os.RemoveAll(tmpDir)
	}

	return conn, cleanup
}

// testSchema builds the schema shared by the connection tests
func testSchema(t *testing.T) contracts.ISchema {
	t.Helper()

	schema, err := vortex.NewSchemaBuilder().
		AddInt32Field("id", false).
		AddStringField("name", true).
		AddFloat64Field("score", true).
		Build()
	if err != nil {
		t.Fatalf("❌Failed to build schema: %v", err)
	}
	return schema
}

// testRecord builds a record matching testSchema with the given ids
func testRecord(t *testing.T, schema contracts.ISchema, ids ...int32) arrow.Record {
	t.Helper()

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema.ToArrowSchema())
	defer builder.Release()

	for _, id := range ids {
		builder.Field(0).(*array.Int32Builder).Append(id)
		builder.Field(1).(*array.StringBuilder).Append(fmt.Sprintf("row_%d", id))
		builder.Field(2).(*array.Float64Builder).Append(float64(id) / 10.0)
	}

	return builder.NewRecord()
}

// testReader wraps records in a streamed record batch source
func testReader(t *testing.T, schema contracts.ISchema, records ...arrow.Record) array.RecordReader {
	t.Helper()

	reader, err := array.NewRecordReader(schema.ToArrowSchema(), records)
	if err != nil {
		t.Fatalf("❌Failed to create record reader: %v", err)
	}
	return reader
}

func TestConnectInvalidURI(t *testing.T) {
	t.Run("Empty URI", func(t *testing.T) {
		_, err := vortex.Connect(context.Background(), "", nil)
		if !errors.Is(err, contracts.ErrInvalidURI) {
			t.Fatalf("❌Expected ErrInvalidURI for empty uri, got %v", err)
		}
		t.Log("✅ Empty URI rejected")
	})

	t.Run("Unsupported scheme", func(t *testing.T) {
		_, err := vortex.Connect(context.Background(), "ftp://somewhere/db", nil)
		if !errors.Is(err, contracts.ErrInvalidURI) {
			t.Fatalf("❌Expected ErrInvalidURI for ftp scheme, got %v", err)
		}
		t.Log("✅ Unsupported scheme rejected")
	})

	t.Run("Managed cloud URI", func(t *testing.T) {
		apiKey := "sk-test"
		_, err := vortex.Connect(context.Background(), "db://my-project", &contracts.ConnectionOptions{
			APIKey: &apiKey,
		})
		if !errors.Is(err, contracts.ErrInvalidURI) {
			t.Fatalf("❌Expected ErrInvalidURI for db scheme, got %v", err)
		}
		t.Log("✅ Managed cloud URI rejected")
	})
}

func TestConnectionLifecycle(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	if conn.IsClosed() {
		t.Fatal("❌Connection should be open after Connect")
	}

	if conn.URI() == "" {
		t.Fatal("❌Connection URI should not be empty")
	}

	repr := conn.String()
	if repr != fmt.Sprintf("Connection(uri=%s)", conn.URI()) {
		t.Fatalf("❌Unexpected connection representation: %s", repr)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("❌Failed to close connection: %v", err)
	}

	if !conn.IsClosed() {
		t.Fatal("❌Connection should report closed after Close")
	}

	if conn.String() != "ClosedConnection" {
		t.Fatalf("❌Unexpected closed representation: %s", conn.String())
	}

	// Closing twice is a no-op
	if err := conn.Close(); err != nil {
		t.Fatalf("❌Second Close should succeed: %v", err)
	}

	// Operations after close fail
	_, err := conn.TableNames(context.Background(), nil)
	if !errors.Is(err, contracts.ErrConnectionClosed) {
		t.Fatalf("❌Expected ErrConnectionClosed, got %v", err)
	}
}

func TestTableNamesEmptyDatabase(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	names, err := conn.TableNames(context.Background(), nil)
	if err != nil {
		t.Fatalf("❌Failed to list tables: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("❌Expected empty database to have no tables, got %v", names)
	}
	t.Log("✅ Fresh database lists no tables")
}

func TestCreateTableVisibleInListing(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	schema := testSchema(t)
	table, err := conn.CreateEmptyTable(context.Background(), "events", contracts.CreateModeCreate, schema)
	if err != nil {
		t.Fatalf("❌Failed to create table: %v", err)
	}
	defer table.Close()

	names, err := conn.TableNames(context.Background(), nil)
	if err != nil {
		t.Fatalf("❌Failed to list tables: %v", err)
	}
	if len(names) != 1 || names[0] != "events" {
		t.Fatalf("❌Expected [events], got %v", names)
	}
	t.Log("✅ Created table shows up in TableNames")
}

func TestCreateTableConflict(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	schema := testSchema(t)
	ctx := context.Background()

	table, err := conn.CreateEmptyTable(ctx, "dup", contracts.CreateModeCreate, schema)
	if err != nil {
		t.Fatalf("❌Failed to create table: %v", err)
	}
	table.Close()

	_, err = conn.CreateEmptyTable(ctx, "dup", contracts.CreateModeCreate, schema)
	if !errors.Is(err, contracts.ErrTableExists) {
		t.Fatalf("❌Expected ErrTableExists on duplicate create, got %v", err)
	}
	t.Log("✅ Duplicate create mode fails with ErrTableExists")
}

func TestCreateTableOverwrite(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	schema := testSchema(t)
	ctx := context.Background()

	rec := testRecord(t, schema, 1, 2, 3)
	first, err := conn.CreateTable(ctx, "logs", contracts.CreateModeOverwrite, testReader(t, schema, rec))
	if err != nil {
		t.Fatalf("❌Failed to create table: %v", err)
	}
	first.Close()

	rec2 := testRecord(t, schema, 10)
	second, err := conn.CreateTable(ctx, "logs", contracts.CreateModeOverwrite, testReader(t, schema, rec2))
	if err != nil {
		t.Fatalf("❌Overwrite mode should replace the table: %v", err)
	}
	defer second.Close()

	count, err := second.Count(ctx)
	if err != nil {
		t.Fatalf("❌Failed to count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("❌Expected 1 row after overwrite, got %d", count)
	}

	names, err := conn.TableNames(ctx, nil)
	if err != nil {
		t.Fatalf("❌Failed to list tables: %v", err)
	}
	if len(names) != 1 || names[0] != "logs" {
		t.Fatalf("❌Expected [logs] after overwrite, got %v", names)
	}
	t.Log("✅ Overwrite mode replaces the existing table")
}

func TestCreateTableExistOk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	schema := testSchema(t)
	ctx := context.Background()

	first, err := conn.CreateEmptyTable(ctx, "settings", contracts.CreateModeCreate, schema)
	if err != nil {
		t.Fatalf("❌Failed to create table: %v", err)
	}
	first.Close()

	t.Run("Matching schema opens existing table", func(t *testing.T) {
		table, err := conn.CreateEmptyTable(ctx, "settings", contracts.CreateModeExistOk, schema)
		if err != nil {
			t.Fatalf("❌exist_ok with matching schema should succeed: %v", err)
		}
		defer table.Close()
		t.Log("✅ exist_ok opened the existing table")
	})

	t.Run("Mismatched schema fails", func(t *testing.T) {
		other, err := vortex.NewSchemaBuilder().
			AddInt64Field("key", false).
			Build()
		if err != nil {
			t.Fatalf("❌Failed to build schema: %v", err)
		}

		_, err = conn.CreateEmptyTable(ctx, "settings", contracts.CreateModeExistOk, other)
		if !errors.Is(err, contracts.ErrSchemaMismatch) {
			t.Fatalf("❌Expected ErrSchemaMismatch, got %v", err)
		}
		t.Log("✅ exist_ok with a different schema fails")
	})
}

func TestCreateEmptyTableSchemaRoundTrip(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	schema, err := vortex.NewSchemaBuilder().
		AddInt32Field("id", false).
		AddVectorField("embedding", 64, contracts.VectorDataTypeFloat32, false).
		AddStringField("text", true).
		Build()
	if err != nil {
		t.Fatalf("❌Failed to build schema: %v", err)
	}

	ctx := context.Background()
	table, err := conn.CreateEmptyTable(ctx, "docs", contracts.CreateModeCreate, schema)
	if err != nil {
		t.Fatalf("❌Failed to create empty table: %v", err)
	}
	defer table.Close()

	got, err := table.Schema(ctx)
	if err != nil {
		t.Fatalf("❌Failed to fetch schema: %v", err)
	}
	if !got.Equal(schema.ToArrowSchema()) {
		t.Fatalf("❌Fetched schema does not match created schema:\ngot:  %s\nwant: %s", got, schema)
	}

	count, err := table.Count(ctx)
	if err != nil {
		t.Fatalf("❌Failed to count rows: %v", err)
	}
	if count != 0 {
		t.Fatalf("❌Expected empty table to have 0 rows, got %d", count)
	}
	t.Log("✅ Empty table reports the created schema and zero rows")
}

func TestTableNamesPagination(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	schema := testSchema(t)
	for _, name := range []string{"d", "b", "a", "c"} {
		table, err := conn.CreateEmptyTable(ctx, name, contracts.CreateModeCreate, schema)
		if err != nil {
			t.Fatalf("❌Failed to create table %s: %v", name, err)
		}
		table.Close()
	}

	t.Run("Sorted without options", func(t *testing.T) {
		names, err := conn.TableNames(ctx, nil)
		if err != nil {
			t.Fatalf("❌Failed to list tables: %v", err)
		}
		want := []string{"a", "b", "c", "d"}
		if len(names) != len(want) {
			t.Fatalf("❌Expected %v, got %v", want, names)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Fatalf("❌Expected %v, got %v", want, names)
			}
		}
		t.Log("✅ Names come back in lexicographic order")
	})

	t.Run("StartAfter and Limit", func(t *testing.T) {
		after := "b"
		limit := 1
		names, err := conn.TableNames(ctx, &contracts.TableNamesOptions{
			StartAfter: &after,
			Limit:      &limit,
		})
		if err != nil {
			t.Fatalf("❌Failed to list tables: %v", err)
		}
		if len(names) != 1 || names[0] != "c" {
			t.Fatalf("❌Expected [c], got %v", names)
		}
		t.Log("✅ StartAfter excludes the cursor name itself")
	})

	t.Run("StartAfter past the end", func(t *testing.T) {
		after := "z"
		names, err := conn.TableNames(ctx, &contracts.TableNamesOptions{StartAfter: &after})
		if err != nil {
			t.Fatalf("❌Failed to list tables: %v", err)
		}
		if len(names) != 0 {
			t.Fatalf("❌Expected no names after z, got %v", names)
		}
	})

	t.Run("Zero limit", func(t *testing.T) {
		limit := 0
		names, err := conn.TableNames(ctx, &contracts.TableNamesOptions{Limit: &limit})
		if err != nil {
			t.Fatalf("❌Failed to list tables: %v", err)
		}
		if len(names) != 0 {
			t.Fatalf("❌Expected no names with limit 0, got %v", names)
		}
	})
}

func TestCreateTableFromData(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	schema := testSchema(t)

	rec1 := testRecord(t, schema, 1, 2)
	rec2 := testRecord(t, schema, 3, 4, 5)
	table, err := conn.CreateTable(ctx, "batched", contracts.CreateModeCreate, testReader(t, schema, rec1, rec2))
	if err != nil {
		t.Fatalf("❌Failed to create table from data: %v", err)
	}
	defer table.Close()

	count, err := table.Count(ctx)
	if err != nil {
		t.Fatalf("❌Failed to count rows: %v", err)
	}
	if count != 5 {
		t.Fatalf("❌Expected 5 rows, got %d", count)
	}

	rows, err := table.SelectWithFilter(ctx, "id = 3")
	if err != nil {
		t.Fatalf("❌Failed to select: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "row_3" {
		t.Fatalf("❌Expected one row named row_3, got %v", rows)
	}
	t.Log("✅ All streamed batches landed in the new table")
}

func TestOpenTable(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("Missing table", func(t *testing.T) {
		_, err := conn.OpenTable(ctx, "nope")
		if !errors.Is(err, contracts.ErrTableNotFound) {
			t.Fatalf("❌Expected ErrTableNotFound, got %v", err)
		}
	})

	t.Run("Existing table", func(t *testing.T) {
		schema := testSchema(t)
		created, err := conn.CreateEmptyTable(ctx, "present", contracts.CreateModeCreate, schema)
		if err != nil {
			t.Fatalf("❌Failed to create table: %v", err)
		}
		created.Close()

		table, err := conn.OpenTable(ctx, "present")
		if err != nil {
			t.Fatalf("❌Failed to open table: %v", err)
		}
		defer table.Close()

		if table.Name() != "present" {
			t.Fatalf("❌Expected table name 'present', got '%s'", table.Name())
		}
	})
}

func TestDropTable(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	schema := testSchema(t)

	table, err := conn.CreateEmptyTable(ctx, "short_lived", contracts.CreateModeCreate, schema)
	if err != nil {
		t.Fatalf("❌Failed to create table: %v", err)
	}
	table.Close()

	if err := conn.DropTable(ctx, "short_lived"); err != nil {
		t.Fatalf("❌Failed to drop table: %v", err)
	}

	names, err := conn.TableNames(ctx, nil)
	if err != nil {
		t.Fatalf("❌Failed to list tables: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("❌Expected no tables after drop, got %v", names)
	}

	if err := conn.DropTable(ctx, "short_lived"); !errors.Is(err, contracts.ErrTableNotFound) {
		t.Fatalf("❌Expected ErrTableNotFound for second drop, got %v", err)
	}
	t.Log("✅ Dropped table disappears from listings")
}

func TestDropTableKeepsSiblingWithDottedName(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	schema := testSchema(t)

	// "t.vtxold" lives in a directory whose name starts with t's directory
	// name; dropping "t" must not touch it.
	for _, name := range []string{"t", "t.vtxold"} {
		table, err := conn.CreateEmptyTable(ctx, name, contracts.CreateModeCreate, schema)
		if err != nil {
			t.Fatalf("❌Failed to create table %s: %v", name, err)
		}
		table.Close()
	}

	if err := conn.DropTable(ctx, "t"); err != nil {
		t.Fatalf("❌Failed to drop table: %v", err)
	}

	names, err := conn.TableNames(ctx, nil)
	if err != nil {
		t.Fatalf("❌Failed to list tables: %v", err)
	}
	if len(names) != 1 || names[0] != "t.vtxold" {
		t.Fatalf("❌Expected [t.vtxold] to survive, got %v", names)
	}

	table, err := conn.OpenTable(ctx, "t.vtxold")
	if err != nil {
		t.Fatalf("❌Sibling table should still open: %v", err)
	}
	defer table.Close()

	if _, err := table.Schema(ctx); err != nil {
		t.Fatalf("❌Sibling table lost its schema: %v", err)
	}
	t.Log("✅ Dropping a table leaves dotted-name siblings intact")
}

func TestDropDatabase(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	schema := testSchema(t)
	for _, name := range []string{"one", "two", "three"} {
		table, err := conn.CreateEmptyTable(ctx, name, contracts.CreateModeCreate, schema)
		if err != nil {
			t.Fatalf("❌Failed to create table %s: %v", name, err)
		}
		table.Close()
	}

	if err := conn.DropDatabase(ctx); err != nil {
		t.Fatalf("❌Failed to drop database: %v", err)
	}

	names, err := conn.TableNames(ctx, nil)
	if err != nil {
		t.Fatalf("❌Failed to list tables: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("❌Expected empty database after DropDatabase, got %v", names)
	}
}

func TestInvalidCreateMode(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	schema := testSchema(t)

	_, err := conn.CreateEmptyTable(ctx, "untouched", contracts.CreateTableMode(42), schema)
	if !errors.Is(err, contracts.ErrInvalidCreateMode) {
		t.Fatalf("❌Expected ErrInvalidCreateMode, got %v", err)
	}

	// The failed create must not leave a table behind
	names, err := conn.TableNames(ctx, nil)
	if err != nil {
		t.Fatalf("❌Failed to list tables: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("❌Expected no tables after rejected mode, got %v", names)
	}
	t.Log("✅ Unknown create modes are rejected up front")
}

func TestInvalidTableNames(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	schema := testSchema(t)

	for _, name := range []string{"", "a/b", "a\\b", ".hidden"} {
		if _, err := conn.CreateEmptyTable(ctx, name, contracts.CreateModeCreate, schema); err == nil {
			t.Fatalf("❌Expected table name %q to be rejected", name)
		}
	}
	t.Log("✅ Unsafe table names are rejected")
}

func TestReadConsistencyInterval(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "vortex_consistency_test")
	if err != nil {
		t.Fatalf("❌Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()
	zero := time.Duration(0)

	writer, err := vortex.Connect(ctx, tmpDir, nil)
	if err != nil {
		t.Fatalf("❌Failed to connect writer: %v", err)
	}
	defer writer.Close()

	reader, err := vortex.Connect(ctx, tmpDir, &contracts.ConnectionOptions{
		ReadConsistencyInterval: &zero,
	})
	if err != nil {
		t.Fatalf("❌Failed to connect reader: %v", err)
	}
	defer reader.Close()

	// Prime the reader's cache while the database is still empty.
	names, err := reader.TableNames(ctx, nil)
	if err != nil {
		t.Fatalf("❌Failed to list tables: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("❌Expected empty database, got %v", names)
	}

	schema := testSchema(t)
	table, err := writer.CreateEmptyTable(ctx, "fresh", contracts.CreateModeCreate, schema)
	if err != nil {
		t.Fatalf("❌Failed to create table: %v", err)
	}
	table.Close()

	// A zero interval means the second connection sees the write immediately.
	names, err = reader.TableNames(ctx, nil)
	if err != nil {
		t.Fatalf("❌Failed to list tables: %v", err)
	}
	if len(names) != 1 || names[0] != "fresh" {
		t.Fatalf("❌Expected reader to see [fresh], got %v", names)
	}
	t.Log("✅ Zero read consistency interval always refetches")
}
