// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package version holds the build version, stamped via -ldflags.
package version

// Version is overwritten at link time with -X.
var Version = "dev"
