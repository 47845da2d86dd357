package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get, Update, and Remove when the requested
// organization does not exist.
var ErrNotFound = errors.New("organization not found")

// ErrDuplicateID is returned by Add when an organization with the same ID
// already exists.
var ErrDuplicateID = errors.New("organization with that ID already exists")

// Store manages the organization directory.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Add creates a new organization. Returns the organization with a
	// generated ID if the provided organization's ID is empty.
	// Returns [ErrDuplicateID] if an organization with the same non-empty ID
	// exists.
	Add(ctx context.Context, org Organization) (Organization, error)

	// Get retrieves an organization by ID.
	// Returns [ErrNotFound] when no organization with that ID exists.
	Get(ctx context.Context, id string) (Organization, error)

	// List returns a snapshot of all organizations. Results order is not
	// guaranteed.
	List(ctx context.Context) ([]Organization, error)

	// Update replaces an existing organization record.
	// The organization's ID must be non-empty.
	// Returns [ErrNotFound] when no organization with that ID exists.
	Update(ctx context.Context, org Organization) error

	// Remove deletes an organization by ID.
	// Returns [ErrNotFound] when no organization with that ID exists.
	Remove(ctx context.Context, id string) error

	// BulkImport adds multiple organizations. Returns the number of
	// organizations successfully imported and any error that caused the
	// import to abort early.
	BulkImport(ctx context.Context, orgs []Organization) (int, error)
}
