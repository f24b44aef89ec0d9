// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package mirror copies a cache snapshot to and from an S3 bucket so several
// machines can share one cache. There is no merge: the last push wins.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"
)

// DefaultKey is the object key used when none is configured.
const DefaultKey = "rulecache/contenthash.bin"

// ErrRemoteNotFound means the bucket has no snapshot under the key.
var ErrRemoteNotFound = errors.New("no snapshot in remote")

// ObjectAPI is the slice of the S3 client the mirror needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ ObjectAPI = (*s3.Client)(nil)

// Mirror is one bucket/key location.
type Mirror struct {
	Client ObjectAPI
	Bucket string
	Key    string
}

func (m *Mirror) key() string {
	if m.Key != "" {
		return m.Key
	}
	return DefaultKey
}

// URL is the s3:// form of the location, for messages.
func (m *Mirror) URL() string {
	return fmt.Sprintf("s3://%s/%s", m.Bucket, m.key())
}

// Push uploads the file at localPath and returns its size.
func (m *Mirror) Push(ctx context.Context, localPath string) (int64, error) {
	if m.Bucket == "" {
		return 0, errors.New("no bucket configured")
	}

	f, err := os.Open(localPath) //nolint:gosec // snapshot path
	if err != nil {
		return 0, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	_, err = m.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.Bucket),
		Key:           aws.String(m.key()),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put %s: %w", m.URL(), err)
	}

	log.Debugf("pushed %s to %s", humanize.Bytes(uint64(info.Size())), m.URL()) //nolint:gosec // size is never negative
	return info.Size(), nil
}

// Pull downloads the snapshot and atomically replaces localPath with it,
// creating parent directories as needed. It returns the number of bytes
// written.
func (m *Mirror) Pull(ctx context.Context, localPath string) (int64, error) {
	if m.Bucket == "" {
		return 0, errors.New("no bucket configured")
	}

	result, err := m.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    aws.String(m.key()),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return 0, fmt.Errorf("%s: %w", m.URL(), ErrRemoteNotFound)
		}
		return 0, fmt.Errorf("failed to get %s: %w", m.URL(), err)
	}
	defer result.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil { //nolint:mnd
		return 0, fmt.Errorf("failed to create cache directory: %w", err)
	}

	counter := &countingReader{r: result.Body}
	if err := atomic.WriteFile(localPath, counter); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", localPath, err)
	}

	log.Debugf("pulled %s from %s", humanize.Bytes(uint64(counter.n)), m.URL()) //nolint:gosec // size is never negative
	return counter.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
