// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/vortexdata/vortex-go/pkg/contracts"
)

// On-store layout, relative to the database root:
//
//	<name>.vtx/manifest.json        table manifest (this file)
//	<name>.vtx/schema.arrow         zero-record Arrow IPC file carrying the schema
//	<name>.vtx/data/<seq>-<id>.arrow  fragment files, one per committed write
const (
	tableDirSuffix = ".vtx"
	manifestFile   = "manifest.json"
	schemaFile     = "schema.arrow"
	dataDir        = "data"
)

// fragmentRef points at one immutable data file and caches its row count so
// Count never has to open fragments.
type fragmentRef struct {
	Path string `json:"path"`
	Rows int64  `json:"rows"`
}

// tableManifest is the versioned description of a table's contents. Version
// starts at 1 on create and increments on every mutation.
type tableManifest struct {
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Fragments []fragmentRef `json:"fragments"`
}

func (m *tableManifest) totalRows() int64 {
	var rows int64
	for _, f := range m.Fragments {
		rows += f.Rows
	}
	return rows
}

// tableKey builds a store key inside the named table's directory.
func tableKey(name string, parts ...string) string {
	return path.Join(append([]string{name + tableDirSuffix}, parts...)...)
}

// tableNameFromKey extracts the table name from a store key, or "" if the
// key does not belong to a table directory.
func tableNameFromKey(key string) string {
	dir, _, ok := strings.Cut(key, "/")
	if !ok || !strings.HasSuffix(dir, tableDirSuffix) {
		return ""
	}
	return strings.TrimSuffix(dir, tableDirSuffix)
}

func loadManifest(ctx context.Context, store ObjectStore, name string) (*tableManifest, error) {
	data, err := store.Get(ctx, tableKey(name, manifestFile))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, fmt.Errorf("table %s: %w", name, contracts.ErrTableNotFound)
		}
		return nil, fmt.Errorf("failed to load manifest for %s: %w", name, err)
	}

	var m tableManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("corrupt manifest for %s: %w", name, err)
	}
	return &m, nil
}

func saveManifest(ctx context.Context, store ObjectStore, name string, m *tableManifest) error {
	m.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest for %s: %w", name, err)
	}
	if err := store.Put(ctx, tableKey(name, manifestFile), data); err != nil {
		return fmt.Errorf("failed to save manifest for %s: %w", name, err)
	}
	return nil
}

func tableExists(ctx context.Context, store ObjectStore, name string) (bool, error) {
	return store.Exists(ctx, tableKey(name, manifestFile))
}
