// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/rulecache/internal/meta"
	"github.com/staranto/rulecache/internal/output"
	"github.com/staranto/rulecache/internal/timing"
)

// StatsCommandAction aggregates analyzer timing reports. Each argument is
// [repo=]report.json; without a repo name the file name is used.
func StatsCommandAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return errors.New("at least one timing report is required")
	}

	var agg timing.Aggregator
	for _, arg := range cmd.Args().Slice() {
		repo, path := splitReportArg(arg)
		data, err := os.ReadFile(resolvePath(cmd, path))
		if err != nil {
			return fmt.Errorf("failed to read report: %w", err)
		}
		if err := agg.Add(repo, data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	report := agg.Report()
	if out := cmd.String("out"); out != "" {
		if err := report.WriteFile(resolvePath(cmd, out)); err != nil {
			return err
		}
	}

	rows := make([]map[string]any, 0, len(report.Averages))
	for _, rt := range report.Averages {
		rows = append(rows, map[string]any{"rule": rt.Rule, "seconds": rt.Seconds})
	}
	return output.Spit(stdout(cmd), rows, []string{"rule", "seconds"}, spitOptions(cmd))
}

func splitReportArg(arg string) (repo, path string) {
	if name, p, ok := strings.Cut(arg, "="); ok && name != "" {
		return name, p
	}
	base := filepath.Base(arg)
	return strings.TrimSuffix(base, filepath.Ext(base)), arg
}

// StatsCommandBuilder constructs the cli.Command definition for "stats".
func StatsCommandBuilder(meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "stats",
		Usage:     "aggregate per-rule timing reports",
		UsageText: `rulecache stats [--out FILE] [repo=]report.json ...`,
		ArgsUsage: "[repo=]report.json ...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Usage: "write the full aggregate as JSON to this file",
			},
		},
		Listing: true,
		Action:  StatsCommandAction,
		Meta:    meta,
	}).Build()
}
