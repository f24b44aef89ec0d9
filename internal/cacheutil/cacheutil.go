// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cacheutil

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirEnv overrides the base cache directory.
	DirEnv = "RULECACHE_CACHE_DIR"
	// EnabledEnv disables caching when set to "0" or "false".
	EnabledEnv = "RULECACHE_CACHE"

	appName = "rulecache"
)

// Dir resolves the base cache directory.
// Precedence:
//  1. RULECACHE_CACHE_DIR, if set and non-empty
//  2. os.UserCacheDir()/rulecache
//  3. os.TempDir()/rulecache
func Dir() string {
	if c, ok := os.LookupEnv(DirEnv); ok && c != "" {
		return c
	}
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(os.TempDir(), appName)
}

// Enabled returns true unless RULECACHE_CACHE explicitly disables it ("0"/"false").
func Enabled() bool {
	enabled, _ := os.LookupEnv(EnabledEnv)
	return enabled == "" || (enabled != "0" && enabled != "false")
}

// VersionedDir returns the directory holding images of the given format
// version beneath base. Bumping the version orphans every older image.
func VersionedDir(base string, version int) string {
	return filepath.Join(base, fmt.Sprintf("v%d", version))
}

// EnsureDir creates dir, including parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return nil
}
