// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gitRepo builds a throwaway repository with a.txt and sub/b.txt committed
// and c.txt left untracked.
func gitRepo(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("HOME", dir)

	writeRepoFile(t, dir, "a.txt", "alpha\n")
	writeRepoFile(t, dir, "sub/b.txt", "bravo\n")

	gitCmd(t, dir, "init", "-q")
	gitCmd(t, dir, "add", "a.txt", "sub/b.txt")
	gitCmd(t, dir, "-c", "user.name=test", "-c", "user.email=test@example.com",
		"-c", "commit.gpgsign=false", "commit", "-q", "-m", "init")

	writeRepoFile(t, dir, "c.txt", "charlie\n")
	return dir
}

func writeRepoFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

func TestGitObjectIDs(t *testing.T) {
	dir := gitRepo(t)
	g := NewGit(dir)

	paths := []string{
		"a.txt",
		filepath.Join(dir, "sub", "b.txt"),
		"c.txt",
		"sub",
		"does-not-exist.txt",
		filepath.Join(t.TempDir(), "elsewhere.txt"),
	}
	got, err := g.ObjectIDs(context.Background(), "", paths)
	require.NoError(t, err)
	require.Len(t, got, len(paths))

	assert.Equal(t, Lookup{ID: gitCmd(t, dir, "hash-object", "a.txt"), Tracked: true}, got[0])
	assert.Equal(t, Lookup{ID: gitCmd(t, dir, "hash-object", "sub/b.txt"), Tracked: true}, got[1])
	for i := 2; i < len(paths); i++ {
		assert.False(t, got[i].Tracked, paths[i])
		assert.Empty(t, got[i].ID, paths[i])
	}
}

func TestGitObjectIDs_WorktreeChanges(t *testing.T) {
	dir := gitRepo(t)
	ctx := context.Background()
	bID := gitCmd(t, dir, "hash-object", "sub/b.txt")

	t.Run("edited", func(t *testing.T) {
		writeRepoFile(t, dir, "a.txt", "edited\n")
		t.Cleanup(func() { gitCmd(t, dir, "checkout", "--", "a.txt") })

		got, err := NewGit(dir).ObjectIDs(ctx, DefaultRev, []string{"a.txt", "sub/b.txt"})
		require.NoError(t, err)
		assert.Equal(t, Lookup{}, got[0])
		assert.Equal(t, Lookup{ID: bID, Tracked: true}, got[1])
	})

	t.Run("staged", func(t *testing.T) {
		writeRepoFile(t, dir, "a.txt", "staged\n")
		gitCmd(t, dir, "add", "a.txt")
		t.Cleanup(func() { gitCmd(t, dir, "reset", "-q", "--hard") })

		got, err := NewGit(dir).ObjectIDs(ctx, DefaultRev, []string{"a.txt"})
		require.NoError(t, err)
		assert.False(t, got[0].Tracked)
	})

	t.Run("deleted", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(dir, "a.txt")))
		t.Cleanup(func() { gitCmd(t, dir, "checkout", "--", "a.txt") })

		got, err := NewGit(dir).ObjectIDs(ctx, DefaultRev, []string{"a.txt"})
		require.NoError(t, err)
		assert.False(t, got[0].Tracked)
	})

	t.Run("from a subdirectory", func(t *testing.T) {
		writeRepoFile(t, dir, "sub/b.txt", "bravo two\n")
		t.Cleanup(func() { gitCmd(t, dir, "checkout", "--", "sub/b.txt") })

		got, err := NewGit(filepath.Join(dir, "sub")).ObjectIDs(ctx, DefaultRev, []string{"b.txt", "../a.txt"})
		require.NoError(t, err)
		assert.False(t, got[0].Tracked)
		assert.True(t, got[1].Tracked)
	})

	t.Run("single path", func(t *testing.T) {
		writeRepoFile(t, dir, "a.txt", "edited\n")
		t.Cleanup(func() { gitCmd(t, dir, "checkout", "--", "a.txt") })

		_, err := NewGit(dir).ObjectID(ctx, DefaultRev, "a.txt")
		assert.ErrorIs(t, err, ErrNotTracked)

		id, err := NewGit(dir).ObjectID(ctx, DefaultRev, "sub/b.txt")
		require.NoError(t, err)
		assert.Equal(t, bID, id)
	})

	t.Run("resolver hashes the edited content", func(t *testing.T) {
		writeRepoFile(t, dir, "a.txt", "edited\n")
		t.Cleanup(func() { gitCmd(t, dir, "checkout", "--", "a.txt") })

		got, err := NewResolver(NewGit(dir), WithDir(dir)).ResolveOne(ctx, "a.txt")
		require.NoError(t, err)
		want, err := HashFile(filepath.Join(dir, "a.txt"), SHA256)
		require.NoError(t, err)
		assert.Equal(t, FileIdentity{Path: "a.txt", ID: want, Source: SourceContent}, got)
	})
}

func TestGitObjectIDs_NoCommitsYet(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))
	gitCmd(t, dir, "init", "-q")
	writeRepoFile(t, dir, "new.txt", "n\n")

	got, err := NewGit(dir).ObjectIDs(context.Background(), "", []string{"new.txt"})
	require.NoError(t, err)
	assert.False(t, got[0].Tracked)
}

func TestGitObjectIDs_NotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))

	_, err := NewGit(dir).ObjectIDs(context.Background(), "", []string{"x"})
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Contains(t, cmdErr.Args, "rev-parse")
}

func TestGitObjectIDs_MissingBinary(t *testing.T) {
	g := &Git{Dir: t.TempDir(), Binary: filepath.Join(t.TempDir(), "no-such-git")}
	_, err := g.ObjectIDs(context.Background(), "", []string{"x"})
	var cmdErr *CommandError
	assert.ErrorAs(t, err, &cmdErr)
}

func TestGitObjectID(t *testing.T) {
	dir := gitRepo(t)
	g := NewGit(dir)
	ctx := context.Background()

	id, err := g.ObjectID(ctx, "", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, gitCmd(t, dir, "hash-object", "a.txt"), id)

	_, err = g.ObjectID(ctx, "", "c.txt")
	assert.ErrorIs(t, err, ErrNotTracked)

	_, err = g.ObjectID(ctx, "", filepath.Join(t.TempDir(), "outside.txt"))
	assert.ErrorIs(t, err, ErrNotTracked)

	_, err = g.ObjectID(ctx, "no-such-branch", "a.txt")
	assert.ErrorIs(t, err, ErrNotTracked)
}

func TestResolveWithGit(t *testing.T) {
	dir := gitRepo(t)
	g := NewGit(dir)

	var paths []string
	for i := range 5 {
		name := fmt.Sprintf("extra%d.txt", i)
		writeRepoFile(t, dir, name, fmt.Sprintf("extra %d\n", i))
		paths = append(paths, name)
	}
	gitCmd(t, dir, "add", "extra0.txt", "extra2.txt", "extra4.txt")
	gitCmd(t, dir, "-c", "user.name=test", "-c", "user.email=test@example.com",
		"-c", "commit.gpgsign=false", "commit", "-q", "-m", "extras")
	paths = append(paths, "a.txt", "c.txt")

	reference, err := NewResolver(g, WithDir(dir)).Resolve(context.Background(), paths)
	require.NoError(t, err)

	for i, want := range []Source{SourceObject, SourceContent, SourceObject, SourceContent, SourceObject, SourceObject, SourceContent} {
		assert.Equal(t, want, reference[i].Source, paths[i])
		assert.Equal(t, paths[i], reference[i].Path)
	}

	cHash, err := HashFile(filepath.Join(dir, "c.txt"), SHA256)
	require.NoError(t, err)
	assert.Equal(t, cHash, reference[6].ID)

	for _, size := range []int{1, 2, 3} {
		got, err := NewResolver(g, WithDir(dir), WithBatchSize(size)).Resolve(context.Background(), paths)
		require.NoError(t, err)
		assert.Equal(t, reference, got, "batch size %d", size)
	}
}
