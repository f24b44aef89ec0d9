// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package memo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/rulecache/internal/cache"
	"github.com/staranto/rulecache/internal/identity"
)

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

// committedRepo returns a repository with a.py and b.py committed.
func committedRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("HOME", dir)

	writeFiles(t, dir, map[string]string{"a.py": "v1\n", "b.py": "print(1)\n"})
	gitCmd(t, dir, "init", "-q")
	gitCmd(t, dir, "add", "a.py", "b.py")
	gitCmd(t, dir, "-c", "user.name=test", "-c", "user.email=test@example.com",
		"-c", "commit.gpgsign=false", "commit", "-q", "-m", "init")
	return dir
}

func gitMemo(dir string, store *cache.Store) *Memo {
	return &Memo{
		Resolver:   identity.NewResolver(identity.NewGit(dir), identity.WithDir(dir)),
		Store:      store,
		PatternSet: "p",
		Jobs:       2,
	}
}

// reopen flushes store and loads it back as a later process would.
func reopen(t *testing.T, store *cache.Store) *cache.Store {
	t.Helper()
	require.NoError(t, store.Flush())
	next := cache.New(store.Dir())
	require.NoError(t, next.Load())
	return next
}

func TestRun_GitEditedFileIsReanalyzed(t *testing.T) {
	dir := committedRepo(t)
	paths := []string{"a.py", "b.py"}
	ctx := context.Background()
	store := cache.New(t.TempDir())

	abs := func(name string) string { return filepath.Join(dir, name) }
	analyze := func(ctx context.Context, p string) ([]byte, error) {
		return (&recorder{}).analyze(ctx, abs(p))
	}

	// Cold: both files come from the object database.
	rec := &recorder{}
	cold, err := gitMemo(dir, store).Run(ctx, paths, func(ctx context.Context, p string) ([]byte, error) {
		return rec.analyze(ctx, abs(p))
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.py", "b.py"}, rec.calls)
	for _, r := range cold {
		assert.Equal(t, identity.SourceObject, r.Source)
		assert.False(t, r.Hit)
	}
	assert.Equal(t, gitCmd(t, dir, "rev-parse", "HEAD:a.py"), cold[0].FileID)
	store = reopen(t, store)

	// Edit a tracked file without committing it.
	require.NoError(t, os.WriteFile(abs("a.py"), []byte("v2 totally different\n"), 0o600))

	rec = &recorder{}
	edited, err := gitMemo(dir, store).Run(ctx, paths, func(ctx context.Context, p string) ([]byte, error) {
		return rec.analyze(ctx, abs(p))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, rec.calls)
	assert.Equal(t, identity.SourceContent, edited[0].Source)
	assert.NotEqual(t, cold[0].FileID, edited[0].FileID)
	assert.False(t, edited[0].Hit)
	assert.Contains(t, string(edited[0].Payload), "v2 totally different")
	assert.True(t, edited[1].Hit)
	store = reopen(t, store)

	// Warm: both served from the cache, each with its own content.
	rec = &recorder{}
	warm, err := gitMemo(dir, store).Run(ctx, paths, func(ctx context.Context, p string) ([]byte, error) {
		return rec.analyze(ctx, abs(p))
	})
	require.NoError(t, err)
	assert.Empty(t, rec.calls)
	assert.True(t, warm[0].Hit)
	assert.True(t, warm[1].Hit)
	assert.Equal(t, edited[0].Payload, warm[0].Payload)
	assert.Equal(t, cold[1].Payload, warm[1].Payload)

	// Reverting restores the committed identity and its original result.
	gitCmd(t, dir, "checkout", "--", "a.py")
	reverted, err := gitMemo(dir, store).Run(ctx, paths, analyze)
	require.NoError(t, err)
	assert.True(t, reverted[0].Hit)
	assert.Equal(t, cold[0].FileID, reverted[0].FileID)
	assert.Equal(t, cold[0].Payload, reverted[0].Payload)
}

func TestRun_GitEditBeforeFirstRun(t *testing.T) {
	dir := committedRepo(t)
	ctx := context.Background()
	store := cache.New(t.TempDir())
	abs := func(name string) string { return filepath.Join(dir, name) }

	require.NoError(t, os.WriteFile(abs("a.py"), []byte("dirty\n"), 0o600))

	rec := &recorder{}
	analyze := func(ctx context.Context, p string) ([]byte, error) { return rec.analyze(ctx, abs(p)) }

	first, err := gitMemo(dir, store).Run(ctx, []string{"a.py"}, analyze)
	require.NoError(t, err)
	assert.Equal(t, identity.SourceContent, first[0].Source)
	assert.Contains(t, string(first[0].Payload), "dirty")

	// The committed content must not be answered with the dirty result.
	gitCmd(t, dir, "checkout", "--", "a.py")
	second, err := gitMemo(dir, store).Run(ctx, []string{"a.py"}, analyze)
	require.NoError(t, err)
	assert.False(t, second[0].Hit)
	assert.Equal(t, identity.SourceObject, second[0].Source)
	assert.Contains(t, string(second[0].Payload), "v1")
	assert.Equal(t, []string{"a.py", "a.py"}, rec.calls)
}
