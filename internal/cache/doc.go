// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package cache holds analysis results keyed by (pattern set, file identity)
// in memory and persists them as a single snapshot file beneath the cache
// directory. The snapshot lives in a format-versioned subdirectory, so a
// format change starts every user from an empty cache.
package cache
