// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Source records which strategy produced a FileIdentity.
type Source int

const (
	// SourceObject is an object id reported by the identity source (git).
	SourceObject Source = iota
	// SourceContent is a digest of the file bytes.
	SourceContent
)

func (s Source) String() string {
	switch s {
	case SourceObject:
		return "object"
	case SourceContent:
		return "content"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// FileIdentity pairs a path with the identity of its content.
type FileIdentity struct {
	Path   string
	ID     string
	Source Source
}

// Lookup is the per-path answer of an ObjectSource. Tracked is false when the
// source does not know the path; ID is empty in that case.
type Lookup struct {
	ID      string
	Tracked bool
}

// ObjectSource answers object-id queries for a batch of paths. It must return
// exactly one Lookup per path, in order. A non-nil error is fatal for the whole
// batch; "not tracked" is never reported as an error.
type ObjectSource interface {
	ObjectIDs(ctx context.Context, rev string, paths []string) ([]Lookup, error)
}

var (
	// ErrNotTracked is returned by single-path lookups when the identity source
	// has no object for the path.
	ErrNotTracked = errors.New("path is not tracked by the identity source")
	// ErrMalformedID means the identity source returned something that is not a
	// canonical object id.
	ErrMalformedID = errors.New("malformed object id")
)

// CommandError describes a failed external command.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// validObjectID accepts the 40 (or 41) hex character ids git reports.
func validObjectID(id string) error {
	if len(id) != 40 && len(id) != 41 {
		return fmt.Errorf("%w: %q has length %d", ErrMalformedID, id, len(id))
	}
	for _, c := range id {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return fmt.Errorf("%w: %q is not hex", ErrMalformedID, id)
		}
	}
	return nil
}
