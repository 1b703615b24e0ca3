// Package store persists per-project artifacts keyed by user, project and kind.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Kind names one artifact of a project.
type Kind string

const (
	KindRaw     Kind = "raw.json"
	KindResults Kind = "results.json"
	KindMeta    Kind = "meta.json"
	KindWAV     Kind = "wav"
)

// ErrNotFound is returned by Get when no artifact exists.
var ErrNotFound = errors.New("artifact not found")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidID reports whether s may be used as a user or project id.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}

// Key addresses one project.
type Key struct {
	User    string `json:"userId"`
	Project string `json:"projectId"`
}

// Validate rejects ids that could escape the storage namespace.
func (k Key) Validate() error {
	if !ValidID(k.User) {
		return fmt.Errorf("invalid user id %q", k.User)
	}
	if !ValidID(k.Project) {
		return fmt.Errorf("invalid project id %q", k.Project)
	}
	return nil
}

// Store is the persisted project store.
type Store interface {
	Get(ctx context.Context, key Key, kind Kind) ([]byte, error)
	Put(ctx context.Context, key Key, kind Kind, data []byte) error
	ListKeys(ctx context.Context, kind Kind) ([]Key, error)
}

// Error is a storage failure for one artifact.
type Error struct {
	Op   string
	Key  Key
	Kind Kind
	Err  error
}

// Error formats the failure with its address.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("store %s %s/%s/%s: %v", e.Op, e.Key.User, e.Key.Project, e.Kind, e.Err)
}

// Unwrap exposes the cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
