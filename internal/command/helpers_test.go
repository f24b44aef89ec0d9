// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolate points the cache at a fresh directory and clears the environment
// the flags read from.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RULECACHE_CACHE_DIR", dir)
	for _, env := range []string{
		"RULECACHE_CACHE", "RULECACHE_PATTERNS", "RULECACHE_RULES", "RULECACHE_REV",
		"RULECACHE_HASH", "RULECACHE_EXEC", "RULECACHE_JOBS",
	} {
		// Setenv registers the restore; the flags must not see an empty value.
		t.Setenv(env, "")
		require.NoError(t, os.Unsetenv(env))
	}
	return dir
}

// runApp builds a fresh app and runs args against it, returning stdout.
func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	argv := append([]string{"rulecache"}, args...)

	app, err := InitApp(context.Background(), argv)
	require.NoError(t, err)

	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(stdin)

	err = app.Run(context.Background(), argv)
	return out.String(), err
}

// runJSON runs a listing command with -o json and decodes the rows.
func runJSON(t *testing.T, stdin string, args ...string) []map[string]any {
	t.Helper()
	argv := append([]string{args[0], "-o", "json"}, args[1:]...)
	out, err := runApp(t, stdin, argv...)
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows), out)
	return rows
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}
