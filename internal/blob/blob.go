// Package blob is the entry point for backup object stores. Callers depend on
// the Store interface; concrete backends live under internal/infra/blob.
package blob

import (
	"gymledger/internal/blob/core"
	fsstore "gymledger/internal/infra/blob/fs"
	memorystore "gymledger/internal/infra/blob/memory"
)

type (
	// Driver identifies a backup store backend.
	Driver = core.Driver
	// PutOptions configures an object write.
	PutOptions = core.PutOptions
	// Info describes stored object metadata.
	Info = core.Info
	// Store is the interface for backup store backends.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrNotFound   = core.ErrNotFound
	ErrExists     = core.ErrExists
	ErrInvalidKey = core.ErrInvalidKey
)

// NewFilesystem returns a directory-backed Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return fsstore.New(root)
}

// NewMemory returns an in-process Store.
func NewMemory() Store { return memorystore.New() }
