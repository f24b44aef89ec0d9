// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package identity maps file paths to content identities. It prefers the
// object id git already has for a committed file and falls back, per file, to
// a streamed content digest when git does not track the path.
package identity
