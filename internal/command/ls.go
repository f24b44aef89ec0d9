// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/staranto/rulecache/internal/meta"
	"github.com/staranto/rulecache/internal/output"
)

// LsCommandAction lists every cached entry.
func LsCommandAction(_ context.Context, cmd *cli.Command) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("caching is disabled")
	}

	rows, err := entryRows(store)
	if err != nil {
		return err
	}

	return output.Spit(stdout(cmd), rows, []string{"patterns", "file_id", "bytes"}, spitOptions(cmd))
}

// walker is the part of cache.Store ls reads.
type walker interface {
	Walk(fn func(patternsID, fileID string, payload []byte) error) error
}

// entryRows returns one row per entry; a Walk error is returned as is.
func entryRows(w walker) ([]map[string]any, error) {
	var rows []map[string]any
	err := w.Walk(func(patternsID, fileID string, payload []byte) error {
		rows = append(rows, map[string]any{
			"patterns": patternsID,
			"file_id":  fileID,
			"bytes":    len(payload),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}

// LsCommandBuilder constructs the cli.Command definition for "ls".
func LsCommandBuilder(meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "ls",
		Usage:     "list cached entries",
		UsageText: `rulecache ls [options]`,
		Listing:   true,
		Action:    LsCommandAction,
		Meta:      meta,
	}).Build()
}
