// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/staranto/rulecache/internal/cache"
	"github.com/staranto/rulecache/internal/meta"
	"github.com/staranto/rulecache/internal/output"
)

// InfoCommandAction describes the cache location and contents.
func InfoCommandAction(_ context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	store := cache.New(m.CacheDir)

	rows := []map[string]any{
		{"key": "dir", "value": store.Dir()},
		{"key": "file", "value": store.Path()},
		{"key": "format", "value": cache.FormatVersion},
		{"key": "enabled", "value": m.CacheEnabled},
	}

	info, err := os.Stat(store.Path())
	switch {
	case err == nil:
		if err := store.Load(); err != nil {
			return err
		}
		rows = append(rows,
			map[string]any{"key": "size", "value": humanize.Bytes(uint64(info.Size()))}, //nolint:gosec // size is never negative
			map[string]any{"key": "modified", "value": humanize.Time(info.ModTime())},
			map[string]any{"key": "pattern_sets", "value": len(store.PatternSets())},
			map[string]any{"key": "entries", "value": humanize.Comma(int64(store.Len()))},
		)
	case errors.Is(err, fs.ErrNotExist):
		rows = append(rows, map[string]any{"key": "entries", "value": 0})
	default:
		return err
	}

	opts := spitOptions(cmd)
	opts.Sort = ""
	return output.Spit(stdout(cmd), rows, []string{"key", "value"}, opts)
}

// InfoCommandBuilder constructs the cli.Command definition for "info".
func InfoCommandBuilder(meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "info",
		Usage:     "show cache location and size",
		UsageText: `rulecache info [options]`,
		Listing:   true,
		Action:    InfoCommandAction,
		Meta:      meta,
	}).Build()
}
