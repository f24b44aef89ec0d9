// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/rulecache/internal/meta"
)

// PutCommandAction stores a payload for one file and flushes the cache.
func PutCommandAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("exactly one path is required")
	}
	path := cmd.Args().First()

	patterns, err := patternSet(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("caching is disabled")
	}

	var payload []byte
	if src := cmd.String("payload"); src != "" && src != "-" {
		payload, err = os.ReadFile(resolvePath(cmd, src))
	} else {
		payload, err = io.ReadAll(stdin(cmd))
	}
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	resolver, err := newResolver(cmd)
	if err != nil {
		return err
	}
	fi, err := resolver.ResolveOne(ctx, path)
	if err != nil {
		return err
	}

	store.SaveEntry(fi.ID, patterns, payload)
	log.WithField("path", path).Debugf("stored %d bytes under %s", len(payload), fi.ID)
	return store.Flush()
}

// PutCommandBuilder constructs the cli.Command definition for "put".
func PutCommandBuilder(meta meta.Meta) *cli.Command {
	flags := append(NewPatternsFlags("put"), NewIdentityFlags("put")...)
	flags = append(flags, &cli.StringFlag{
		Name:  "payload",
		Usage: "file holding the result to store; stdin when absent or -",
	})

	return (&CommandBuilder{
		Name:      "put",
		Usage:     "store a result for a file",
		UsageText: `rulecache put --patterns ID [--payload FILE] path`,
		ArgsUsage: "path",
		Flags:     flags,
		Action:    PutCommandAction,
		Meta:      meta,
	}).Build()
}
