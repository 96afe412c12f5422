// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"google.golang.org/api/option"

	"github.com/AleutianAI/usegraph/services/usegraph/config"
)

// ErrInvalidDestination is returned when an output destination cannot be parsed.
var ErrInvalidDestination = errors.New("invalid output destination")

// Sink stores rendered artifacts.
type Sink interface {
	// Put stores data under name, replacing any existing object.
	Put(ctx context.Context, name, contentType string, data []byte) error

	// Location returns a human-readable address for name.
	Location(name string) string
}

// Destination is a parsed output location.
type Destination struct {
	// Scheme is "" for a local directory, "s3" or "gs".
	Scheme string

	// Bucket is empty for a local directory.
	Bucket string

	// Prefix is the directory or object key prefix.
	Prefix string
}

// ParseDestination parses a local directory, "s3://bucket/prefix" or
// "gs://bucket/prefix".
func ParseDestination(output string) (Destination, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return Destination{}, fmt.Errorf("%w: empty", ErrInvalidDestination)
	}
	for _, scheme := range []string{"s3", "gs"} {
		rest, ok := strings.CutPrefix(output, scheme+"://")
		if !ok {
			continue
		}
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Destination{}, fmt.Errorf("%w: missing bucket in %q", ErrInvalidDestination, output)
		}
		return Destination{Scheme: scheme, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
	}
	if strings.Contains(output, "://") {
		return Destination{}, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidDestination, output)
	}
	return Destination{Prefix: output}, nil
}

// OpenSink opens the sink for output.
//
// Inputs:
//
//	ctx - Used to create cloud clients.
//	output - Local directory, s3:// or gs:// URL.
//	s3 - Credentials for s3:// outputs; ignored otherwise.
func OpenSink(ctx context.Context, output string, s3 config.S3Settings, logger *slog.Logger) (Sink, error) {
	dest, err := ParseDestination(output)
	if err != nil {
		return nil, err
	}
	switch dest.Scheme {
	case "s3":
		return NewS3Sink(dest, s3, logger)
	case "gs":
		return NewGCSSink(ctx, dest, config.GCSFromEnv(), logger)
	}
	return NewDirSink(dest.Prefix)
}

// WriteAll stores every artifact and returns their locations.
func WriteAll(ctx context.Context, sink Sink, artifacts []Artifact) ([]string, error) {
	locations := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return locations, err
		}
		if err := sink.Put(ctx, a.Name, a.ContentType, a.Data); err != nil {
			return locations, fmt.Errorf("writing %s: %w", a.Name, err)
		}
		locations = append(locations, sink.Location(a.Name))
	}
	return locations, nil
}

// DirSink writes artifacts into a local directory.
type DirSink struct {
	dir string
}

// NewDirSink creates dir if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &DirSink{dir: dir}, nil
}

// Put implements Sink.
func (s *DirSink) Put(_ context.Context, name, _ string, data []byte) error {
	target := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}

// Location implements Sink.
func (s *DirSink) Location(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}

// S3Sink writes artifacts to an S3-compatible bucket.
type S3Sink struct {
	client   *minio.Client
	bucket   string
	prefix   string
	region   string
	logger   *slog.Logger
	initOnce sync.Once
	initErr  error
}

// NewS3Sink creates a client for dest. The bucket is created on first Put
// if it does not exist.
func NewS3Sink(dest Destination, s3 config.S3Settings, logger *slog.Logger) (*S3Sink, error) {
	if s3.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required (set %s)", config.EnvS3Endpoint)
	}
	if s3.AccessKey == "" || s3.SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(s3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s3.AccessKey, s3.SecretKey, ""),
		Secure: s3.UseSSL,
		Region: s3.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Sink{
		client: client,
		bucket: dest.Bucket,
		prefix: dest.Prefix,
		region: s3.Region,
		logger: logger,
	}, nil
}

func (s *S3Sink) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.logger.Info("creating bucket", slog.String("bucket", s.bucket))
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Put implements Sink.
func (s *S3Sink) Put(ctx context.Context, name, contentType string, data []byte) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(s.prefix, name),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: contentType})
	return err
}

// Location implements Sink.
func (s *S3Sink) Location(name string) string {
	return "s3://" + s.bucket + "/" + objectKey(s.prefix, name)
}

// GCSSink writes artifacts to a Google Cloud Storage bucket.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewGCSSink creates a client for dest. Without an endpoint override,
// application default credentials are used.
func NewGCSSink(ctx context.Context, dest Destination, gcs config.GCSSettings, logger *slog.Logger) (*GCSSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var opts []option.ClientOption
	if gcs.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(gcs.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init gcs client: %w", err)
	}
	return &GCSSink{client: client, bucket: dest.Bucket, prefix: dest.Prefix, logger: logger}, nil
}

// Put implements Sink.
func (s *GCSSink) Put(ctx context.Context, name, contentType string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(objectKey(s.prefix, name)).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Location implements Sink.
func (s *GCSSink) Location(name string) string {
	return "gs://" + s.bucket + "/" + objectKey(s.prefix, name)
}

// Close releases the client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}

func objectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
