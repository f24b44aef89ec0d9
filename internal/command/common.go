// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/rulecache/internal/cache"
	"github.com/staranto/rulecache/internal/identity"
	"github.com/staranto/rulecache/internal/meta"
	"github.com/staranto/rulecache/internal/output"
)

// ErrMiss is returned by get when the cache has no entry. main maps it to
// exit status 1.
var ErrMiss = errors.New("cache miss")

// ShortCircuitTLDR checks the --tldr flag and, if present and available,
// runs `tldr rulecache <subcmd>` and returns true so the caller can exit early.
func ShortCircuitTLDR(ctx context.Context, cmd *cli.Command, subcmd string) bool {
	if cmd.Bool("tldr") {
		if _, err := exec.LookPath("tldr"); err == nil {
			c := exec.CommandContext(ctx, "tldr", "rulecache", subcmd)
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			_ = c.Run()
		}
		return true
	}
	return false
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// CommandBuilder constructs a cli.Command for a subcommand using a consistent
// pattern: metadata wiring, the tldr flag, optional global presentation flags
// and the global validator.
type CommandBuilder struct {
	Name      string
	Usage     string
	UsageText string
	ArgsUsage string
	Flags     []cli.Flag
	// Listing adds the output/sort/filter/titles/color flags.
	Listing bool
	Action  func(context.Context, *cli.Command) error
	Meta    meta.Meta
}

// Build returns a configured cli.Command from the builder.
func (b *CommandBuilder) Build() *cli.Command {
	flags := append([]cli.Flag{newTLDRFlag()}, b.Flags...)
	if b.Listing {
		flags = append(flags, NewGlobalFlags(b.Name)...)
	}

	action := b.Action
	name := b.Name
	return &cli.Command{
		Name:      b.Name,
		Usage:     b.Usage,
		UsageText: b.UsageText,
		ArgsUsage: b.ArgsUsage,
		Metadata: map[string]any{
			"meta": b.Meta,
		},
		Flags: flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if !b.Listing {
				return ctx, nil
			}
			return ctx, GlobalFlagsValidator(ctx, c)
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if ShortCircuitTLDR(ctx, c, name) {
				return nil
			}
			return action(ctx, c)
		},
	}
}

// spitOptions collects the presentation flags.
func spitOptions(cmd *cli.Command) output.Options {
	return output.Options{
		Format: cmd.String("output"),
		Titles: cmd.Bool("titles"),
		Color:  cmd.Bool("color"),
		Sort:   cmd.String("sort"),
		Filter: cmd.String("filter"),
	}
}

// stdout and stdin honor the writers set on the root command so tests can
// capture them.
func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func stdin(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

// newResolver builds the identity resolver from the identity flags.
func newResolver(cmd *cli.Command) (*identity.Resolver, error) {
	m := GetMeta(cmd)

	alg, err := identity.ParseAlgorithm(cmd.String("hash"))
	if err != nil {
		return nil, err
	}

	var source identity.ObjectSource
	if cmd.Bool("git") {
		source = identity.NewGit(m.StartingDir)
	}

	return identity.NewResolver(source,
		identity.WithRev(cmd.String("rev")),
		identity.WithBatchSize(cmd.Int("batch")),
		identity.WithAlgorithm(alg),
		identity.WithDir(m.StartingDir),
	), nil
}

// patternSet returns --patterns, or the content hash of --rules.
func patternSet(cmd *cli.Command) (string, error) {
	patterns := cmd.String("patterns")
	rules := cmd.String("rules")

	switch {
	case patterns != "" && rules != "":
		return "", errors.New("--patterns and --rules are mutually exclusive")
	case patterns != "":
		return patterns, nil
	case rules != "":
		id, err := identity.HashFile(resolvePath(cmd, rules), identity.SHA256)
		if err != nil {
			return "", err
		}
		log.Debugf("pattern set %s from %s", id, rules)
		return id, nil
	default:
		return "", errors.New("a pattern set is required (--patterns or --rules)")
	}
}

// resolvePath anchors a relative path at the starting directory.
func resolvePath(cmd *cli.Command, p string) string {
	m := GetMeta(cmd)
	if m.StartingDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.StartingDir, p)
}

// openStore returns the loaded store, or nil when caching is disabled.
func openStore(cmd *cli.Command) (*cache.Store, error) {
	m := GetMeta(cmd)
	if !m.CacheEnabled {
		log.Debug("cache disabled")
		return nil, nil
	}

	store := cache.New(m.CacheDir)
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

// targetPaths returns the positional args, or newline separated paths read
// from stdin when there are none.
func targetPaths(cmd *cli.Command) ([]string, error) {
	if cmd.Args().Len() > 0 {
		return cmd.Args().Slice(), nil
	}

	var paths []string
	scanner := bufio.NewScanner(stdin(cmd))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read paths from stdin: %w", err)
	}
	return paths, nil
}
