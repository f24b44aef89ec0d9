// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"

	"github.com/staranto/rulecache/internal/cacheutil"
)

const (
	// FormatVersion is baked into the snapshot directory name and header.
	FormatVersion = 1
	// FileName is the snapshot file inside the versioned directory.
	FileName = "contenthash.bin"

	lockTimeout = 5 * time.Second
)

var magic = []byte("RULECACHE")

var (
	errCorrupt         = errors.New("corrupt cache snapshot")
	errVersionMismatch = errors.New("cache snapshot version mismatch")
)

// record is the on-disk form of one entry.
type record struct {
	Patterns string
	File     string
	Payload  []byte
}

type snapshot struct {
	Records []record
}

// entries maps pattern set id to file id to payload.
type entries map[string]map[string][]byte

// Store maps (pattern set, file id) to an opaque payload. It is not safe for
// concurrent mutation.
type Store struct {
	dir     string
	entries entries
	count   int
	dirty   bool
}

// New returns an empty Store persisting beneath dir.
func New(dir string) *Store {
	return &Store{
		dir:     dir,
		entries: entries{},
	}
}

// NewFromEnv returns an empty Store in the directory chosen by cacheutil.Dir.
func NewFromEnv() *Store {
	return New(cacheutil.Dir())
}

// Dir is the base cache directory.
func (s *Store) Dir() string { return s.dir }

// Path is the snapshot file Load reads and Flush writes.
func (s *Store) Path() string {
	return filepath.Join(cacheutil.VersionedDir(s.dir, FormatVersion), FileName)
}

// Contains reports whether an entry exists for the pair.
func (s *Store) Contains(fileID, patternsID string) bool {
	_, ok := s.entries[patternsID][fileID]
	return ok
}

// LoadEntry returns a copy of the stored payload, or (nil, false) on a miss.
func (s *Store) LoadEntry(fileID, patternsID string) ([]byte, bool) {
	payload, ok := s.entries[patternsID][fileID]
	if !ok {
		return nil, false
	}
	return append([]byte{}, payload...), true
}

// SaveEntry stores a copy of payload, replacing any previous value. Nothing
// reaches disk until Flush.
func (s *Store) SaveEntry(fileID, patternsID string, payload []byte) {
	files, ok := s.entries[patternsID]
	if !ok {
		files = map[string][]byte{}
		s.entries[patternsID] = files
	}
	if _, ok := files[fileID]; !ok {
		s.count++
	}
	files[fileID] = append([]byte{}, payload...)
	s.dirty = true
}

// Len is the number of entries across all pattern sets.
func (s *Store) Len() int { return s.count }

// HasChanges reports whether SaveEntry was called since the last Load or
// Flush.
func (s *Store) HasChanges() bool { return s.dirty }

// PatternSets returns the distinct pattern-set ids, sorted.
func (s *Store) PatternSets() []string {
	sets := make([]string, 0, len(s.entries))
	for p := range s.entries {
		sets = append(sets, p)
	}
	sort.Strings(sets)
	return sets
}

// Walk calls fn for every entry ordered by pattern set, then file id. fn must
// not modify payload. A non-nil error from fn stops the walk and is returned.
func (s *Store) Walk(fn func(patternsID, fileID string, payload []byte) error) error {
	for _, r := range s.records() {
		if err := fn(r.Patterns, r.File, r.Payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) records() []record {
	recs := make([]record, 0, s.count)
	for patterns, files := range s.entries {
		for file, payload := range files {
			recs = append(recs, record{Patterns: patterns, File: file, Payload: payload})
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Patterns != recs[j].Patterns {
			return recs[i].Patterns < recs[j].Patterns
		}
		return recs[i].File < recs[j].File
	})
	return recs
}

// Load replaces the in-memory state with the snapshot on disk. A missing,
// corrupt or foreign-version snapshot leaves the store empty and is not an
// error. Other read failures are returned.
func (s *Store) Load() error {
	path := s.Path()
	s.entries = entries{}
	s.count = 0
	s.dirty = false

	data, err := os.ReadFile(path) //nolint:gosec // path is built from the cache dir
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debugf("no cache snapshot at %s", path)
			return nil
		}
		return fmt.Errorf("failed to read cache %s: %w", path, err)
	}

	loaded, n, err := decode(data)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("discarding cache snapshot")
		return nil
	}

	s.entries, s.count = loaded, n
	log.Debugf("loaded %d cache entries from %s", n, path)
	return nil
}

// Flush writes the whole store to disk. The snapshot is replaced atomically
// under an advisory lock; concurrent flushers do not merge, the last rename
// wins.
func (s *Store) Flush() error {
	path := s.Path()
	if err := cacheutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	data, err := encode(s.records())
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	unlock, err := lockFile(path+".lock", lockTimeout)
	if err != nil {
		return fmt.Errorf("failed to lock cache %s: %w", path, err)
	}
	defer func() {
		if err := unlock(); err != nil {
			log.WithError(err).Warn("failed to release cache lock")
		}
	}()

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write cache %s: %w", path, err)
	}

	s.dirty = false
	log.Debugf("flushed %d cache entries (%s) to %s",
		s.count, humanize.Bytes(uint64(len(data))), path) //nolint:gosec // len is never negative
	return nil
}

func encode(recs []record) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic)
	if err := binary.Write(&buf, binary.BigEndian, uint16(FormatVersion)); err != nil {
		return nil, err
	}
	if err := gob.NewEncoder(&buf).Encode(snapshot{Records: recs}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode returns the entries of a snapshot and how many there are.
func decode(data []byte) (entries, int, error) {
	if !bytes.HasPrefix(data, magic) {
		return nil, 0, fmt.Errorf("%w: bad magic", errCorrupt)
	}
	rest := data[len(magic):]
	if len(rest) < 2 { //nolint:mnd
		return nil, 0, fmt.Errorf("%w: truncated header", errCorrupt)
	}
	if v := binary.BigEndian.Uint16(rest); v != FormatVersion {
		return nil, 0, fmt.Errorf("%w: have %d, want %d", errVersionMismatch, v, FormatVersion)
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(rest[2:])).Decode(&snap); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", errCorrupt, err)
	}

	out := entries{}
	n := 0
	for _, r := range snap.Records {
		// gob drops empty slices on the wire.
		if r.Payload == nil {
			r.Payload = []byte{}
		}
		files, ok := out[r.Patterns]
		if !ok {
			files = map[string][]byte{}
			out[r.Patterns] = files
		}
		if _, dup := files[r.File]; !dup {
			n++
		}
		files[r.File] = r.Payload
	}
	return out, n, nil
}
