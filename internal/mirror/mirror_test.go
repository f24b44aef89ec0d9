// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	objects map[string][]byte
	err     error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestPushPull(t *testing.T) {
	client := newFakeS3()
	m := &Mirror{Client: client, Bucket: "ci-cache"}
	ctx := context.Background()

	content := "RULECACHE\x00\x01snapshot"
	src := filepath.Join(t.TempDir(), "contenthash.bin")
	require.NoError(t, os.WriteFile(src, []byte(content), 0o600))

	n, err := m.Push(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Contains(t, client.objects, "ci-cache/"+DefaultKey)

	dst := filepath.Join(t.TempDir(), "v1", "contenthash.bin")
	n, err = m.Pull(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestPull_ReplacesLocalFile(t *testing.T) {
	client := newFakeS3()
	client.objects["b/k"] = []byte("remote")
	m := &Mirror{Client: client, Bucket: "b", Key: "k"}

	dst := filepath.Join(t.TempDir(), "snap")
	require.NoError(t, os.WriteFile(dst, []byte("local and longer"), 0o600))

	_, err := m.Pull(context.Background(), dst)
	require.NoError(t, err)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "remote", string(got))
}

func TestPull_RemoteNotFound(t *testing.T) {
	m := &Mirror{Client: newFakeS3(), Bucket: "b", Key: "missing"}
	dst := filepath.Join(t.TempDir(), "snap")
	require.NoError(t, os.WriteFile(dst, []byte("keep me"), 0o600))

	_, err := m.Pull(context.Background(), dst)
	assert.ErrorIs(t, err, ErrRemoteNotFound)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(got))
}

func TestMirror_Errors(t *testing.T) {
	ctx := context.Background()
	denied := errors.New("access denied")

	_, err := (&Mirror{Client: newFakeS3()}).Push(ctx, "x")
	assert.Error(t, err, "bucket required")

	_, err = (&Mirror{Client: newFakeS3()}).Pull(ctx, "x")
	assert.Error(t, err, "bucket required")

	_, err = (&Mirror{Client: newFakeS3(), Bucket: "b"}).Push(ctx, filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	src := filepath.Join(t.TempDir(), "snap")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))
	failing := &Mirror{Client: &fakeS3{err: denied}, Bucket: "b"}

	_, err = failing.Push(ctx, src)
	assert.ErrorIs(t, err, denied)
	_, err = failing.Pull(ctx, filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, denied)
	assert.NotErrorIs(t, err, ErrRemoteNotFound)
}

func TestMirror_URL(t *testing.T) {
	assert.Equal(t, "s3://b/"+DefaultKey, (&Mirror{Bucket: "b"}).URL())
	assert.Equal(t, "s3://b/team/cache.bin", (&Mirror{Bucket: "b", Key: "team/cache.bin"}).URL())
}
