// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	awsx "github.com/staranto/rulecache/internal/aws"
	"github.com/staranto/rulecache/internal/cache"
	"github.com/staranto/rulecache/internal/meta"
	"github.com/staranto/rulecache/internal/mirror"
)

// newMirror is swapped out in tests.
var newMirror = func(ctx context.Context, cmd *cli.Command) (*mirror.Mirror, error) {
	opts := []awsx.Option{
		awsx.WithProfile(cmd.String("profile")),
		awsx.WithRegion(cmd.String("region")),
		awsx.WithEndpoint(cmd.String("endpoint")),
	}

	awsCfg, err := awsx.LoadAWSConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &mirror.Mirror{
		Client: awsx.NewS3(awsCfg, opts...),
		Bucket: cmd.String("bucket"),
		Key:    cmd.String("key"),
	}, nil
}

// PushCommandAction uploads the local snapshot.
func PushCommandAction(ctx context.Context, cmd *cli.Command) error {
	m, err := newMirror(ctx, cmd)
	if err != nil {
		return err
	}

	store := cache.New(GetMeta(cmd).CacheDir)
	n, err := m.Push(ctx, store.Path())
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(stdout(cmd), "pushed %s to %s\n", humanize.Bytes(uint64(n)), m.URL()) //nolint:gosec // size is never negative
	return err
}

// PullCommandAction replaces the local snapshot with the remote one and
// checks that it loads.
func PullCommandAction(ctx context.Context, cmd *cli.Command) error {
	m, err := newMirror(ctx, cmd)
	if err != nil {
		return err
	}

	store := cache.New(GetMeta(cmd).CacheDir)
	n, err := m.Pull(ctx, store.Path())
	if err != nil {
		return err
	}
	if err := store.Load(); err != nil {
		return err
	}

	_, err = fmt.Fprintf(stdout(cmd), "pulled %s from %s (%d entries)\n",
		humanize.Bytes(uint64(n)), m.URL(), store.Len()) //nolint:gosec // size is never negative
	return err
}

// PushCommandBuilder constructs the cli.Command definition for "push".
func PushCommandBuilder(meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "push",
		Usage:     "upload the cache snapshot to S3",
		UsageText: `rulecache push --bucket NAME [options]`,
		Flags:     NewS3Flags("push"),
		Action:    PushCommandAction,
		Meta:      meta,
	}).Build()
}

// PullCommandBuilder constructs the cli.Command definition for "pull".
func PullCommandBuilder(meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "pull",
		Usage:     "replace the cache snapshot with the copy in S3",
		UsageText: `rulecache pull --bucket NAME [options]`,
		Flags:     NewS3Flags("pull"),
		Action:    PullCommandAction,
		Meta:      meta,
	}).Build()
}
