// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"

	"github.com/staranto/rulecache/internal/meta"
)

// GetCommandAction writes the cached payload for one file to stdout, or
// returns ErrMiss.
func GetCommandAction(ctx context.Context, cmd *cli.Command) error {
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
		return ErrMiss
	}

	resolver, err := newResolver(cmd)
	if err != nil {
		return err
	}
	fi, err := resolver.ResolveOne(ctx, path)
	if err != nil {
		return err
	}

	payload, ok := store.LoadEntry(fi.ID, patterns)
	if !ok {
		log.WithField("path", path).Debug("cache miss")
		return fmt.Errorf("%s: %w", path, ErrMiss)
	}

	if q := cmd.String("query"); q != "" {
		if !gjson.ValidBytes(payload) {
			return errors.New("--query needs a JSON payload")
		}
		payload = []byte(gjson.GetBytes(payload, q).Raw)
	}

	w := stdout(cmd)
	if _, err := w.Write(payload); err != nil {
		return err
	}
	if len(payload) == 0 || payload[len(payload)-1] != '\n' {
		_, err = fmt.Fprintln(w)
	}
	return err
}

// GetCommandBuilder constructs the cli.Command definition for "get".
func GetCommandBuilder(meta meta.Meta) *cli.Command {
	flags := append(NewPatternsFlags("get"), NewIdentityFlags("get")...)
	flags = append(flags, &cli.StringFlag{
		Name:    "query",
		Aliases: []string{"q"},
		Usage:   "gjson path applied to a JSON payload",
	})

	return (&CommandBuilder{
		Name:      "get",
		Usage:     "print the cached result for a file",
		UsageText: `rulecache get --patterns ID [options] path`,
		ArgsUsage: "path",
		Flags:     flags,
		Action:    GetCommandAction,
		Meta:      meta,
	}).Build()
}
