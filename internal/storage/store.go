// Package storage persists shipments, drivers, admin users, branding settings
// and refresh tokens as JSON documents keyed by a string ID.
//
// Two DocumentStore implementations exist: a Postgres one (cloud mode) and a
// file-backed local one. The choice is made once at startup through Backend.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Collection names. Each maps to one Postgres table in cloud mode.
const (
	CollectionShipments     = "shipments"
	CollectionDrivers       = "drivers"
	CollectionUsers         = "users"
	CollectionSettings      = "settings"
	CollectionRefreshTokens = "refresh_tokens"
)

// Document is a raw stored record.
type Document struct {
	Key       string
	Data      []byte
	UpdatedAt time.Time
}

// DocumentStore is the get/put/delete-by-key capability every repository is
// built on. Implementations must be safe for concurrent use.
type DocumentStore interface {
	// Get returns the document stored under key, or (nil, nil) if absent.
	Get(ctx context.Context, collection, key string) ([]byte, error)

	// Put inserts or replaces the document stored under key.
	Put(ctx context.Context, collection, key string, data []byte) error

	// Delete removes the document stored under key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, collection, key string) error

	// List returns every document in collection ordered by key.
	List(ctx context.Context, collection string) ([]Document, error)

	// Close releases resources held by the store.
	Close() error
}

// BackendKind identifies which persistence mode the process runs in.
type BackendKind int

const (
	// BackendLocal keeps documents in a JSON file on local disk.
	BackendLocal BackendKind = iota
	// BackendCloud keeps documents in Postgres.
	BackendCloud
)

// String implements fmt.Stringer.
func (k BackendKind) String() string {
	switch k {
	case BackendCloud:
		return "cloud"
	case BackendLocal:
		return "local"
	default:
		return fmt.Sprintf("BackendKind(%d)", int(k))
	}
}

// Backend is the persistence mode resolved at startup together with the
// store that serves it. Call sites never re-check which mode is active.
type Backend struct {
	Kind  BackendKind
	Store DocumentStore
}

// Close releases the underlying store.
func (b *Backend) Close() error {
	if b == nil || b.Store == nil {
		return nil
	}
	return b.Store.Close()
}

// errUnknownCollection is returned for collection names outside the fixed set.
func errUnknownCollection(collection string) error {
	return fmt.Errorf("storage: unknown collection %q", collection)
}
