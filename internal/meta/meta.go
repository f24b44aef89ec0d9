// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package meta carries the per-invocation state shared by every command.
package meta

import (
	"context"

	"github.com/staranto/rulecache/internal/config"
)

// Meta are the meta-options that are available on all or most commands.
type Meta struct {
	Args    []string
	Config  config.Type
	Context context.Context
	// StartingDir is the working directory at startup. Git runs here and
	// relative paths are resolved against it.
	StartingDir string
	// CacheDir is the base cache directory, before the format version.
	CacheDir string
	// CacheEnabled is false when RULECACHE_CACHE disables the store.
	CacheEnabled bool
}
