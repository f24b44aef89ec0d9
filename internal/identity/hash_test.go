// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{in: "", want: SHA256},
		{in: "sha256", want: SHA256},
		{in: " SHA256 ", want: SHA256},
		{in: "blake2b", want: BLAKE2b},
		{in: "md5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHashReader_KnownVector(t *testing.T) {
	got, err := HashReader(strings.NewReader("abc"), SHA256)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
}

func TestHashFile(t *testing.T) {
	// Several chunks plus a partial one.
	content := bytes.Repeat([]byte("0123456789abcdef"), 1000)
	content = append(content, "tail"...)

	path := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	shaSum := sha256.Sum256(content)
	blakeSum := blake2b.Sum256(content)

	tests := []struct {
		alg  Algorithm
		want string
	}{
		{alg: SHA256, want: hex.EncodeToString(shaSum[:])},
		{alg: BLAKE2b, want: hex.EncodeToString(blakeSum[:])},
	}
	for _, tt := range tests {
		t.Run(string(tt.alg), func(t *testing.T) {
			got, err := HashFile(path, tt.alg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHashFile_IdenticalContentSameID(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "nested", "b.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(b), 0o755))
	require.NoError(t, os.WriteFile(a, []byte("package a\n"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("package a\n"), 0o600))

	ha, err := HashFile(a, SHA256)
	require.NoError(t, err)
	hb, err := HashFile(b, SHA256)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestHashFile_Errors(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "missing"), SHA256)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = HashFile(t.TempDir(), SHA256)
	assert.Error(t, err, "directories have no content hash")

	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	_, err = HashFile(path, Algorithm("crc32"))
	assert.Error(t, err)
}
