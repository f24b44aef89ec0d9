// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/apex/log"
)

// DefaultBatchSize bounds the number of paths handed to the identity source in
// one query. It only affects process overhead, never results.
const DefaultBatchSize = 1000

// Resolver turns paths into FileIdentities.
type Resolver struct {
	source    ObjectSource
	rev       string
	batchSize int
	algorithm Algorithm
	dir       string
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithRev sets the revision object ids are read from. Defaults to HEAD.
func WithRev(rev string) Option {
	return func(r *Resolver) { r.rev = rev }
}

// WithBatchSize sets the batch size. Values below 1 are treated as 1.
func WithBatchSize(n int) Option {
	return func(r *Resolver) { r.batchSize = n }
}

// WithAlgorithm sets the fallback digest.
func WithAlgorithm(alg Algorithm) Option {
	return func(r *Resolver) { r.algorithm = alg }
}

// WithDir sets the directory relative paths are hashed from. It should match
// the identity source's notion of a relative path (Git.Dir).
func WithDir(dir string) Option {
	return func(r *Resolver) { r.dir = dir }
}

// NewResolver returns a Resolver that queries source first. A nil source means
// every path is content hashed.
func NewResolver(source ObjectSource, opts ...Option) *Resolver {
	r := &Resolver{
		source:    source,
		rev:       DefaultRev,
		batchSize: DefaultBatchSize,
		algorithm: SHA256,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.batchSize < 1 {
		r.batchSize = 1
	}
	return r
}

// Resolve returns one FileIdentity per input path, in input order.
func (r *Resolver) Resolve(ctx context.Context, paths []string) ([]FileIdentity, error) {
	results := make([]FileIdentity, 0, len(paths))

	for start := 0; start < len(paths); start += r.batchSize {
		end := min(start+r.batchSize, len(paths))

		batch, err := r.resolveBatch(ctx, paths[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}

	return results, nil
}

// ResolveOne is Resolve for a single path.
func (r *Resolver) ResolveOne(ctx context.Context, path string) (FileIdentity, error) {
	ids, err := r.Resolve(ctx, []string{path})
	if err != nil {
		return FileIdentity{}, err
	}
	return ids[0], nil
}

func (r *Resolver) resolveBatch(ctx context.Context, batch []string) ([]FileIdentity, error) {
	lookups := make([]Lookup, len(batch))
	if r.source != nil {
		var err error
		lookups, err = r.source.ObjectIDs(ctx, r.rev, batch)
		if err != nil {
			return nil, err
		}
		if len(lookups) != len(batch) {
			return nil, fmt.Errorf("identity source returned %d ids for %d paths", len(lookups), len(batch))
		}
	}

	results := make([]FileIdentity, len(batch))
	for i, p := range batch {
		if lookups[i].Tracked {
			results[i] = FileIdentity{Path: p, ID: lookups[i].ID, Source: SourceObject}
			continue
		}

		fp := p
		if r.dir != "" && !filepath.IsAbs(fp) {
			fp = filepath.Join(r.dir, fp)
		}
		sum, err := HashFile(fp, r.algorithm)
		if err != nil {
			return nil, err
		}
		log.WithField("path", p).Debug("not tracked, using content hash")
		results[i] = FileIdentity{Path: p, ID: sum, Source: SourceContent}
	}

	return results, nil
}
