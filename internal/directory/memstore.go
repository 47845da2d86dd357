package directory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It backs deployments that load the directory from a YAML file.
// The zero value is ready to use.
type MemStore struct {
	mu   sync.RWMutex
	orgs map[string]Organization
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		orgs: make(map[string]Organization),
	}
}

// Add implements [Store.Add].
func (s *MemStore) Add(ctx context.Context, org Organization) (Organization, error) {
	if err := org.Validate(); err != nil {
		return Organization{}, err
	}
	if org.ID == "" {
		id, err := generateID()
		if err != nil {
			return Organization{}, fmt.Errorf("directory: generate id: %w", err)
		}
		org.ID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orgs == nil {
		s.orgs = make(map[string]Organization)
	}

	if _, exists := s.orgs[org.ID]; exists {
		return Organization{}, ErrDuplicateID
	}

	s.orgs[org.ID] = org
	return org, nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, id string) (Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return o, nil
}

// List implements [Store.List].
func (s *MemStore) List(ctx context.Context) ([]Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Organization, 0, len(s.orgs))
	for _, o := range s.orgs {
		result = append(result, o)
	}
	return result, nil
}

// Update implements [Store.Update].
func (s *MemStore) Update(ctx context.Context, org Organization) error {
	if err := org.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[org.ID]; !ok {
		return ErrNotFound
	}

	s.orgs[org.ID] = org
	return nil
}

// Remove implements [Store.Remove].
func (s *MemStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[id]; !ok {
		return ErrNotFound
	}

	delete(s.orgs, id)
	return nil
}

// BulkImport implements [Store.BulkImport].
// The import is best-effort: organizations are added one at a time and the
// count of successfully added records is returned along with the first error
// encountered.
func (s *MemStore) BulkImport(ctx context.Context, orgs []Organization) (int, error) {
	count := 0
	for _, o := range orgs {
		if _, err := s.Add(ctx, o); err != nil {
			return count, fmt.Errorf("directory: bulk import at index %d (name %q): %w", count, o.Name, err)
		}
		count++
	}
	return count, nil
}

// generateID produces a random 16-byte hex string using crypto/rand.
// The resulting string is 32 hex characters and is statistically unique.
func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
