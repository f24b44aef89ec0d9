// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/apex/log"
)

// DefaultRev is the tree object ids are looked up in.
const DefaultRev = "HEAD"

// batchCheckFormat asks cat-file for exactly the two fields we parse.
const batchCheckFormat = "--batch-check=%(objectname) %(objecttype)"

// diffChunk bounds the pathspecs handed to one diff-index process.
const diffChunk = 256

// Git is an ObjectSource backed by the git object database of the worktree
// containing Dir.
type Git struct {
	// Dir is the directory git runs in and relative paths are resolved
	// against. Empty means the process working directory.
	Dir string
	// Binary is the git executable. Empty means "git" from PATH.
	Binary string

	toplevel string
}

// NewGit returns a Git rooted at dir.
func NewGit(dir string) *Git {
	return &Git{Dir: dir}
}

func (g *Git) binary() string {
	if g.Binary != "" {
		return g.Binary
	}
	return "git"
}

// run executes git and returns stdout. Failures come back as *CommandError.
func (g *Git) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, g.binary(), args...)
	cmd.Dir = g.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	if err := cmd.Run(); err != nil {
		return nil, &CommandError{
			Args:   append([]string{g.binary()}, args...),
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}

// Toplevel returns the worktree root, asking git once.
func (g *Git) Toplevel(ctx context.Context) (string, error) {
	if g.toplevel != "" {
		return g.toplevel, nil
	}

	out, err := g.run(ctx, nil, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}

	top := filepath.Clean(filepath.FromSlash(strings.TrimSpace(string(out))))
	if resolved, err := filepath.EvalSymlinks(top); err == nil {
		top = resolved
	}
	g.toplevel = top
	log.Debugf("git toplevel: %s", top)
	return top, nil
}

// relPath maps p onto a slash separated path relative to top. ok is false
// when p lies outside the worktree.
func (g *Git) relPath(top, p string) (string, bool, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		base := g.Dir
		if base == "" {
			wd, err := os.Getwd()
			if err != nil {
				return "", false, err
			}
			base = wd
		}
		abs = filepath.Join(base, p)
	}
	abs, err := filepath.Abs(abs)
	if err != nil {
		return "", false, err
	}

	// git reports the toplevel with symlinks resolved, so resolve our side
	// too. The file itself may be gone; its directory usually is not.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	} else if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}

	rel, err := filepath.Rel(top, abs)
	if err != nil {
		return "", false, nil
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false, nil
	}
	return filepath.ToSlash(rel), true, nil
}

// ObjectIDs implements ObjectSource. All paths of the batch go to a single
// `git cat-file --batch-check` process on stdin; unresolvable names come back
// as "<name> missing" lines, which keeps "not tracked" out of the error path.
// A blob id only names the bytes on disk when the worktree file matches rev,
// so paths `git diff-index` reports as changed are answered as not tracked.
func (g *Git) ObjectIDs(ctx context.Context, rev string, paths []string) ([]Lookup, error) {
	if rev == "" {
		rev = DefaultRev
	}

	top, err := g.Toplevel(ctx)
	if err != nil {
		return nil, err
	}

	lookups := make([]Lookup, len(paths))
	rels := make([]string, len(paths))
	queried := make([]int, 0, len(paths))

	var stdin bytes.Buffer
	for i, p := range paths {
		rel, ok, err := g.relPath(top, p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		// cat-file reads one name per line.
		if !ok || strings.ContainsAny(rel, "\n\r") {
			continue
		}
		fmt.Fprintf(&stdin, "%s:%s\n", rev, rel)
		rels[i] = rel
		queried = append(queried, i)
	}

	if len(queried) == 0 {
		return lookups, nil
	}

	out, err := g.run(ctx, stdin.Bytes(), "cat-file", batchCheckFormat)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(queried))
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cat-file output: %w", err)
	}
	if len(lines) != len(queried) {
		return nil, fmt.Errorf("cat-file answered %d of %d names", len(lines), len(queried))
	}

	for n, line := range lines {
		i := queried[n]
		if strings.HasSuffix(line, " missing") || strings.HasSuffix(line, " ambiguous") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: unexpected cat-file line %q", ErrMalformedID, line)
		}
		// Directories and submodules have ids too, but not file content.
		if fields[1] != "blob" {
			continue
		}
		if err := validObjectID(fields[0]); err != nil {
			return nil, err
		}
		lookups[i] = Lookup{ID: fields[0], Tracked: true}
	}

	var tracked []string
	for _, i := range queried {
		if lookups[i].Tracked {
			tracked = append(tracked, rels[i])
		}
	}

	changed, err := g.changedPaths(ctx, top, rev, tracked)
	if err != nil {
		return nil, err
	}
	for _, i := range queried {
		if lookups[i].Tracked && changed[rels[i]] {
			log.WithField("path", paths[i]).Debugf("differs from %s", rev)
			lookups[i] = Lookup{}
		}
	}

	return lookups, nil
}

// changedPaths returns the toplevel relative paths among rels whose worktree
// content differs from rev, deleted files included. Paths are passed as
// literal pathspecs from the toplevel so g.Dir may be any subdirectory.
func (g *Git) changedPaths(ctx context.Context, top, rev string, rels []string) (map[string]bool, error) {
	changed := map[string]bool{}

	for start := 0; start < len(rels); start += diffChunk {
		end := min(start+diffChunk, len(rels))

		args := []string{"-C", top, "--literal-pathspecs", "diff-index", "--name-only", "-z", rev, "--"}
		args = append(args, rels[start:end]...)

		out, err := g.run(ctx, nil, args...)
		if err != nil {
			return nil, err
		}
		for _, name := range bytes.Split(out, []byte{0}) {
			if len(name) > 0 {
				changed[string(name)] = true
			}
		}
	}

	return changed, nil
}

// ObjectID looks up a single path with `git rev-parse --verify --quiet`, which
// signals an unknown name with exit status 1. That maps to ErrNotTracked, as
// does a worktree file that differs from rev; any other failure is returned
// as a *CommandError.
func (g *Git) ObjectID(ctx context.Context, rev, path string) (string, error) {
	if rev == "" {
		rev = DefaultRev
	}

	top, err := g.Toplevel(ctx)
	if err != nil {
		return "", err
	}

	rel, ok, err := g.relPath(top, path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ErrNotTracked)
	}

	out, err := g.run(ctx, nil, "rev-parse", "--verify", "--quiet", rev+":"+rel)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", fmt.Errorf("%s: %w", path, ErrNotTracked)
		}
		return "", err
	}

	id := strings.TrimSpace(string(out))
	if err := validObjectID(id); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	changed, err := g.changedPaths(ctx, top, rev, []string{rel})
	if err != nil {
		return "", err
	}
	if changed[rel] {
		return "", fmt.Errorf("%s: differs from %s: %w", path, rev, ErrNotTracked)
	}
	return id, nil
}

var _ ObjectSource = (*Git)(nil)
