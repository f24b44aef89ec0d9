// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/apex/log"
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/rulecache/internal/config"
	"github.com/staranto/rulecache/internal/memo"
	"github.com/staranto/rulecache/internal/meta"
	"github.com/staranto/rulecache/internal/output"
)

// placeholder in --exec is replaced by the target path.
const placeholder = "{}"

// RunCommandAction analyzes every target with the --exec command, serving
// unchanged files from the cache.
func RunCommandAction(ctx context.Context, cmd *cli.Command) error {
	argv, err := execArgv(cmd)
	if err != nil {
		return err
	}

	patterns, err := patternSet(cmd)
	if err != nil {
		return err
	}

	paths, err := targetPaths(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	resolver, err := newResolver(cmd)
	if err != nil {
		return err
	}

	m := &memo.Memo{
		Resolver:   resolver,
		Store:      store,
		PatternSet: patterns,
		Jobs:       cmd.Int("jobs"),
	}

	results, err := m.Run(ctx, paths, execAnalyzer(argv, GetMeta(cmd).StartingDir))
	if err != nil {
		return err
	}

	if store != nil && store.HasChanges() {
		if err := store.Flush(); err != nil {
			return err
		}
	}

	w := stdout(cmd)
	if cmd.Bool("emit") {
		for _, r := range results {
			if _, err := w.Write(r.Payload); err != nil {
				return err
			}
			if len(r.Payload) == 0 || r.Payload[len(r.Payload)-1] != '\n' {
				fmt.Fprintln(w)
			}
		}
		return nil
	}

	rows := make([]map[string]any, 0, len(results))
	hits := 0
	for _, r := range results {
		if r.Hit {
			hits++
		}
		rows = append(rows, map[string]any{
			"path":  r.Path,
			"id":    r.FileID,
			"hit":   r.Hit,
			"bytes": len(r.Payload),
		})
	}
	log.Infof("%d files, %d cached, %d analyzed", len(results), hits, len(results)-hits)

	return output.Spit(w, rows, []string{"path", "id", "hit", "bytes"}, spitOptions(cmd))
}

// execArgv returns --exec split on whitespace, or the exec list from the
// config file.
func execArgv(cmd *cli.Command) ([]string, error) {
	if v := cmd.String("exec"); v != "" {
		return strings.Fields(v), nil
	}
	if argv, err := config.GetStringSlice("exec"); err == nil && len(argv) > 0 {
		return argv, nil
	}
	return nil, errors.New("an analyzer command is required (--exec)")
}

// expandArgv substitutes path for every placeholder, or appends it when
// there is none.
func expandArgv(argv []string, path string) []string {
	out := make([]string, 0, len(argv)+1)
	found := false
	for _, a := range argv {
		if strings.Contains(a, placeholder) {
			found = true
			a = strings.ReplaceAll(a, placeholder, path)
		}
		out = append(out, a)
	}
	if !found {
		out = append(out, path)
	}
	return out
}

// execAnalyzer runs argv for each path; stdout is the payload. A non-zero
// exit is a failure.
func execAnalyzer(argv []string, dir string) memo.Analyzer {
	return func(ctx context.Context, path string) ([]byte, error) {
		args := expandArgv(argv, path)
		c := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // user supplied analyzer
		c.Dir = dir

		var out, errOut bytes.Buffer
		c.Stdout = &out
		c.Stderr = &errOut

		log.Debugf("exec: %v", args)
		if err := c.Run(); err != nil {
			if msg := strings.TrimSpace(errOut.String()); msg != "" {
				return nil, fmt.Errorf("%s: %w: %s", args[0], err, msg)
			}
			return nil, fmt.Errorf("%s: %w", args[0], err)
		}
		return out.Bytes(), nil
	}
}

// RunCommandBuilder constructs the cli.Command definition for "run".
func RunCommandBuilder(meta meta.Meta) *cli.Command {
	flags := append(NewPatternsFlags("run"), NewIdentityFlags("run")...)
	flags = append(flags,
		&cli.StringFlag{
			Name:    "exec",
			Aliases: []string{"x"},
			Usage:   "analyzer command; {} is replaced by the path, else the path is appended",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RULECACHE_EXEC")),
		},
		&cli.IntFlag{
			Name:    "jobs",
			Aliases: []string{"j"},
			Usage:   "concurrent analyzer processes (0 means one per CPU)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("RULECACHE_JOBS"),
				yaml.YAML("run.jobs", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("jobs", altsrc.StringSourcer(cfg.Source)),
			),
			Validator: func(value int) error {
				return FlagValidators(value, NonNegativeIntValidator)
			},
		},
		&cli.BoolFlag{
			Name:  "emit",
			Usage: "print payloads instead of the summary table",
		},
	)

	return (&CommandBuilder{
		Name:      "run",
		Usage:     "run an analyzer over files, reusing cached results",
		UsageText: `rulecache run --patterns ID --exec "CMD ARGS {}" [options] [path ...]`,
		ArgsUsage: "[path ...]",
		Flags:     flags,
		Listing:   true,
		Action:    RunCommandAction,
		Meta:      meta,
	}).Build()
}
