// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/rulecache/internal/cache"
)

type failingWalker struct{ err error }

func (f failingWalker) Walk(fn func(string, string, []byte) error) error {
	if err := fn("p", "f", []byte("x")); err != nil {
		return err
	}
	return f.err
}

func TestEntryRows(t *testing.T) {
	t.Run("store", func(t *testing.T) {
		s := cache.New(t.TempDir())
		s.SaveEntry("f2", "p", []byte("22"))
		s.SaveEntry("f1", "p", []byte("1"))

		rows, err := entryRows(s)
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{
			{"patterns": "p", "file_id": "f1", "bytes": 1},
			{"patterns": "p", "file_id": "f2", "bytes": 2},
		}, rows)
	})

	t.Run("empty", func(t *testing.T) {
		rows, err := entryRows(cache.New(t.TempDir()))
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.NotNil(t, rows)
	})

	t.Run("walk error", func(t *testing.T) {
		boom := errors.New("snapshot vanished")
		rows, err := entryRows(failingWalker{err: boom})
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, rows)
	})
}
