// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

package vortex

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/vortexdata/vortex-go/pkg/contracts"
	"github.com/vortexdata/vortex-go/pkg/internal"
)

// Connect establishes a connection to a Vortex database.
//
// The URI selects the storage backend:
//
//   - a plain directory path or file:// URI opens a local database,
//     creating the directory if needed;
//   - s3://bucket/prefix opens a database on an S3-compatible object store,
//     configured through ConnectionOptions.
//
// Connect returns once the backend is reachable; a malformed URI or an
// unreachable endpoint fails with an error wrapping contracts.ErrInvalidURI
// or the transport failure.
func Connect(ctx context.Context, uri string, options *contracts.ConnectionOptions) (contracts.IConnection, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("%w: uri is empty", contracts.ErrInvalidURI)
	}

	store, err := openStore(ctx, uri, options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", uri, err)
	}

	return internal.NewConnection(uri, store, options), nil
}

func openStore(ctx context.Context, uri string, options *contracts.ConnectionOptions) (internal.ObjectStore, error) {
	if !strings.Contains(uri, "://") {
		return openLocalStore(uri, options)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrInvalidURI, err)
	}

	switch u.Scheme {
	case "file":
		return openLocalStore(u.Path, options)
	case "s3":
		return internal.NewS3Store(ctx, u, options)
	case "db":
		// Managed cloud endpoints (db:// with APIKey/Region) need the remote
		// protocol client, which this library does not ship.
		return nil, fmt.Errorf("%w: managed cloud uris (db://) are not supported", contracts.ErrInvalidURI)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", contracts.ErrInvalidURI, u.Scheme)
	}
}

func openLocalStore(path string, options *contracts.ConnectionOptions) (internal.ObjectStore, error) {
	createDir := true
	syncWrites := false
	if options != nil && options.StorageOptions != nil && options.StorageOptions.LocalConfig != nil {
		cfg := options.StorageOptions.LocalConfig
		if cfg.CreateDirIfNotExists != nil {
			createDir = *cfg.CreateDirIfNotExists
		}
		if cfg.SyncWrites != nil {
			syncWrites = *cfg.SyncWrites
		}
	}
	return internal.NewLocalStore(path, createDir, syncWrites)
}
