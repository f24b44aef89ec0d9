// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package memo runs an analysis over a set of files, skipping every file whose
// (pattern set, content identity) pair already has a cached result.
package memo

import (
	"context"
	"fmt"
	"runtime"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"github.com/staranto/rulecache/internal/cache"
	"github.com/staranto/rulecache/internal/identity"
)

// Analyzer produces the payload for one file.
type Analyzer func(ctx context.Context, path string) ([]byte, error)

// Result is the outcome for one input path.
type Result struct {
	Path    string
	FileID  string
	Source  identity.Source
	Payload []byte
	// Hit is true when Payload came from the store.
	Hit bool
}

// Memo ties a resolver and a store to one pattern set. A nil Store disables
// caching: every file is analyzed and nothing is saved.
type Memo struct {
	Resolver   *identity.Resolver
	Store      *cache.Store
	PatternSet string
	// Jobs caps concurrent Analyzer calls. Zero means GOMAXPROCS.
	Jobs int
}

// Run returns one Result per path, in input order. Analyzer runs once per
// distinct missing identity; the store is only touched from the calling
// goroutine after every worker has finished. An analyzer error aborts the run
// and nothing is saved.
func (m *Memo) Run(ctx context.Context, paths []string, analyze Analyzer) ([]Result, error) {
	ids, err := m.Resolver.Resolve(ctx, paths)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(ids))
	pending := map[string][]int{}
	var order []string

	for i, fi := range ids {
		results[i] = Result{Path: fi.Path, FileID: fi.ID, Source: fi.Source}

		if m.Store != nil {
			if payload, ok := m.Store.LoadEntry(fi.ID, m.PatternSet); ok {
				log.WithField("path", fi.Path).Debug("cache hit")
				results[i].Payload = payload
				results[i].Hit = true
				continue
			}
		}

		if _, seen := pending[fi.ID]; !seen {
			order = append(order, fi.ID)
		}
		pending[fi.ID] = append(pending[fi.ID], i)
	}

	log.Debugf("%d of %d files need analysis (%d distinct)", countMisses(pending), len(paths), len(order))

	payloads := make([][]byte, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.jobs())
	for n, id := range order {
		path := results[pending[id][0]].Path
		g.Go(func() error {
			out, err := analyze(gctx, path)
			if err != nil {
				return fmt.Errorf("failed to analyze %s: %w", path, err)
			}
			payloads[n] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for n, id := range order {
		for _, i := range pending[id] {
			results[i].Payload = payloads[n]
		}
		if m.Store != nil {
			m.Store.SaveEntry(id, m.PatternSet, payloads[n])
		}
	}

	return results, nil
}

func (m *Memo) jobs() int {
	if m.Jobs > 0 {
		return m.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

func countMisses(pending map[string][]int) int {
	n := 0
	for _, idx := range pending {
		n += len(idx)
	}
	return n
}
