// Package source provides the byte sources assets are loaded from.
//
// A Source returns the complete contents of a named asset. Names are
// slash-separated and relative to the source's root.
package source

import (
	"context"
	"errors"
	"os"
)

// ErrNotFound is returned when an asset does not exist. It matches
// os.ErrNotExist with errors.Is.
var ErrNotFound = os.ErrNotExist

// ErrInvalidName is returned for names that escape the source root.
var ErrInvalidName = errors.New("source: invalid asset name")

// Source reads whole assets.
type Source interface {
	Read(ctx context.Context, name string) ([]byte, error)
}

// Lister is implemented by sources that can enumerate their assets.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}
