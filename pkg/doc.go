// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

/*
Package vortex implements an embedded columnar table store with a thin
database/table client API.

A Vortex database is a collection of named tables rooted at a URI. Tables
hold Apache Arrow data: their schemas are Arrow schemas, writes take Arrow
records, and data files are Arrow IPC files, so table contents move in and
out of analytics tooling without row-by-row conversion. Databases live on
the local file system or on any S3-compatible object store.

# Basic Usage

Connect to a database and perform basic operations:

	db, err := vortex.Connect(context.Background(), "./my_database", nil)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Create schema
	schema, err := vortex.NewSchemaBuilder().
		AddInt32Field("id", false).
		AddVectorField("embedding", 128, contracts.VectorDataTypeFloat32, false).
		AddStringField("text", true).
		Build()
	if err != nil {
		log.Fatal(err)
	}

	// Create an empty table
	table, err := db.CreateEmptyTable(context.Background(), "documents", contracts.CreateModeCreate, schema)
	if err != nil {
		log.Fatal(err)
	}
	defer table.Close()

# Creating Tables From Data

CreateTable consumes a streamed record batch source and writes it durably
before returning:

	reader, err := array.NewRecordReader(arrowSchema, records)
	if err != nil {
		log.Fatal(err)
	}
	table, err := db.CreateTable(context.Background(), "documents", contracts.CreateModeCreate, reader)

The mode governs name collisions: CreateModeCreate fails if the table
exists, CreateModeOverwrite replaces it, and CreateModeExistOk opens the
existing table when its schema matches.

# Listing Tables

TableNames returns names in lexicographic order and paginates with
StartAfter/Limit:

	after := "events_2024"
	limit := 100
	names, err := db.TableNames(context.Background(), &contracts.TableNamesOptions{
		StartAfter: &after,
		Limit:      &limit,
	})

# Connection Types

The Connect function supports multiple storage backends through URI schemes:

Local database:

	db, err := vortex.Connect(context.Background(), "/path/to/database", nil)

S3-based database:

	endpoint := "http://localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	opts := &contracts.ConnectionOptions{
		StorageOptions: &contracts.StorageOptions{
			S3Config: &contracts.S3Config{
				Endpoint:        &endpoint,
				AccessKeyID:     &accessKey,
				SecretAccessKey: &secretKey,
			},
		},
	}
	db, err := vortex.Connect(context.Background(), "s3://my-bucket/db-prefix", opts)

# Read Consistency

Connections cache table listings and schemas. ReadConsistencyInterval
bounds how stale those caches may get before a fresh fetch is forced:

	interval := 5 * time.Second
	db, err := vortex.Connect(context.Background(), uri, &contracts.ConnectionOptions{
		ReadConsistencyInterval: &interval,
	})

A zero interval forces a fetch on every read. Without the option, cached
views are reused until the connection itself mutates them, so other writers
may not become visible.

# Table Operations

	name := table.Name()
	count, err := table.Count(ctx)
	version, err := table.Version(ctx)
	schema, err := table.Schema(ctx)

	// Append records
	err = table.AddRecords(ctx, records, nil)

	// Update rows
	err = table.Update(ctx, "id = 123", map[string]interface{}{"score": 0.95})

	// Delete rows
	err = table.Delete(ctx, "score < 0.1")

	// Scan with filter and projection
	rows, err := table.Select(ctx, contracts.QueryConfig{
		Columns: []string{"id", "text"},
		Where:   "score > 0.8",
	})

Filters are a small subset of SQL WHERE syntax: comparisons between a
column and a literal, IS NULL / IS NOT NULL, and AND/OR conjunctions.

# Error Handling

Failures wrap sentinel errors from the contracts package, so callers branch
with errors.Is:

	_, err := db.CreateTable(ctx, "t", contracts.CreateModeCreate, data)
	if errors.Is(err, contracts.ErrTableExists) {
		// name collision
	}

# Thread Safety

Connection and Table handles are safe for concurrent use. Reads (listing,
schema fetch, scans) run concurrently; mutations issued through one
connection are serialized. Concurrent writers on separate connections are
not coordinated and must be avoided.
*/
package vortex
