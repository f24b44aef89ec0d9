// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/staranto/rulecache/internal/meta"
	"github.com/staranto/rulecache/internal/output"
)

// HashCommandAction resolves the identity of every target path and lists
// path, id and the strategy that produced it.
func HashCommandAction(ctx context.Context, cmd *cli.Command) error {
	paths, err := targetPaths(cmd)
	if err != nil {
		return err
	}

	resolver, err := newResolver(cmd)
	if err != nil {
		return err
	}

	ids, err := resolver.Resolve(ctx, paths)
	if err != nil {
		return err
	}

	rows := make([]map[string]any, 0, len(ids))
	for _, fi := range ids {
		rows = append(rows, map[string]any{
			"path":   fi.Path,
			"id":     fi.ID,
			"source": fi.Source.String(),
		})
	}

	return output.Spit(stdout(cmd), rows, []string{"path", "id", "source"}, spitOptions(cmd))
}

// HashCommandBuilder constructs the cli.Command definition for "hash".
func HashCommandBuilder(meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "hash",
		Usage:     "resolve file identities",
		UsageText: `rulecache hash [options] [path ...]`,
		ArgsUsage: "[path ...]",
		Flags:     NewIdentityFlags("hash"),
		Listing:   true,
		Action:    HashCommandAction,
		Meta:      meta,
	}).Build()
}
