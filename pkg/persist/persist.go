// Package persist defines the payload storage interface used by prcache.
package persist

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no payload exists at the location.
var ErrNotFound = errors.New("payload not found")

// Store holds serialized cache payloads. Locations are opaque strings chosen
// by the store and recorded in the cache index; they are stable for a key.
type Store interface {
	// Location returns the storage location for a key.
	Location(key string) string

	// Read returns the payload stored at loc, or ErrNotFound.
	Read(ctx context.Context, loc string) ([]byte, error)

	// Exists reports whether a payload is stored at loc.
	Exists(ctx context.Context, loc string) (bool, error)

	// Write replaces the payload stored at loc.
	Write(ctx context.Context, loc string, data []byte) error

	// Delete removes the payload at loc. Deleting a missing payload succeeds.
	Delete(ctx context.Context, loc string) error

	// Close releases any resources held by the store.
	Close() error
}

// Lister is implemented by stores that can enumerate every stored payload,
// including partial writes. Cache.Prune uses it to find orphans.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}
