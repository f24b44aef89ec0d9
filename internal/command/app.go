// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/rulecache/internal/cacheutil"
	"github.com/staranto/rulecache/internal/config"
	"github.com/staranto/rulecache/internal/meta"
)

// InitApp builds the root command. args are the process arguments; args[1],
// when it is not a flag, names the subcommand and becomes the config
// namespace.
func InitApp(ctx context.Context, args []string) (*cli.Command, error) {
	sd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	var ns string
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		ns = args[1]
	}

	cfg, err := config.Load(ns)
	if err != nil {
		log.WithError(err).Debug("no config file")
	}

	meta := meta.Meta{
		Args:         args,
		Config:       cfg,
		Context:      ctx,
		StartingDir:  sd,
		CacheDir:     cacheutil.Dir(),
		CacheEnabled: cacheutil.Enabled(),
	}

	app := &cli.Command{
		Name:  "rulecache",
		Usage: "content-addressed cache for static analysis results",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "rulecache version info",
				HideDefault: true,
			},
		},
	}

	app.Commands = append(app.Commands,
		HashCommandBuilder(meta),
		GetCommandBuilder(meta),
		PutCommandBuilder(meta),
		RunCommandBuilder(meta),
		LsCommandBuilder(meta),
		InfoCommandBuilder(meta),
		StatsCommandBuilder(meta),
		PushCommandBuilder(meta),
		PullCommandBuilder(meta),
		CompletionCommandBuilder(meta),
	)

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sort.Slice(cmd.Flags, func(i, j int) bool {
			return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
		})
	}

	return app, nil
}
