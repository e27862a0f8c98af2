// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

package internal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vortexdata/vortex-go/pkg/contracts"
)

const defaultS3Endpoint = "s3.amazonaws.com"

// S3Store is an ObjectStore over an S3-compatible bucket, addressed as
// s3://bucket/prefix.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store connects to the bucket named by u and verifies it is reachable.
// Credentials, region and endpoint come from the connection options; a
// HostOverride or S3Config.Endpoint selects a self-hosted endpoint such as
// MinIO.
func NewS3Store(ctx context.Context, u *url.URL, options *contracts.ConnectionOptions) (*S3Store, error) {
	bucket := u.Host
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 uri %q has no bucket", contracts.ErrInvalidURI, u.String())
	}

	var cfg contracts.S3Config
	if options != nil && options.StorageOptions != nil && options.StorageOptions.S3Config != nil {
		cfg = *options.StorageOptions.S3Config
	}

	endpoint := defaultS3Endpoint
	secure := true
	if options != nil && options.HostOverride != nil {
		endpoint = *options.HostOverride
	}
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	if eu, err := url.Parse(endpoint); err == nil && eu.Host != "" {
		secure = eu.Scheme != "http"
		endpoint = eu.Host
	}
	if cfg.UseSSL != nil {
		secure = *cfg.UseSSL
	}

	region := ""
	if options != nil && options.Region != nil {
		region = *options.Region
	}
	if cfg.Region != nil {
		region = *cfg.Region
	}

	creds := credentials.NewIAM("")
	if cfg.AccessKeyID != nil && cfg.SecretAccessKey != nil {
		token := ""
		if cfg.SessionToken != nil {
			token = *cfg.SessionToken
		}
		creds = credentials.NewStaticV4(*cfg.AccessKeyID, *cfg.SecretAccessKey, token)
	}

	opts := &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: region,
	}
	if cfg.ForcePathStyle != nil && *cfg.ForcePathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client for %s: %w", endpoint, err)
	}

	ok, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to reach s3 endpoint %s: %w", endpoint, err)
	}
	if !ok {
		return nil, fmt.Errorf("s3 bucket %s does not exist", bucket)
	}

	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(u.Path, "/"),
	}, nil
}

func (s *S3Store) key(key string) string {
	return path.Join(s.prefix, key)
}

// listPrefix builds the bucket-level listing prefix. path.Join strips a
// trailing slash, which would let "t.vtx/" match a sibling directory such as
// "t.vtxold.vtx/"; the slash is restored so listings stay inside the
// directory they name.
func (s *S3Store) listPrefix(prefix string) string {
	full := path.Join(s.prefix, prefix)
	if full != "" && !strings.HasSuffix(full, "/") && (prefix == "" || strings.HasSuffix(prefix, "/")) {
		full += "/"
	}
	return full
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := s.listPrefix(prefix)

	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    full,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, obj.Err)
		}
		key := obj.Key
		if s.prefix != "" {
			key = strings.TrimPrefix(key, s.prefix+"/")
		}
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys, nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s: %w", key, ErrKeyNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(key), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(key), minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.key(key), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", key, err)
}
