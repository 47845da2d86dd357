package directory

import (
	"context"
	"errors"
	"testing"
)

func TestMemStore_AddAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	added, err := store.Add(ctx, validOrg())
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if added.ID != "org-1" {
		t.Errorf("Add() kept ID = %q, want org-1", added.ID)
	}

	got, err := store.Get(ctx, "org-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Dim Dobra" {
		t.Errorf("Get() name = %q, want Dim Dobra", got.Name)
	}
}

func TestMemStore_AddGeneratesID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	o := validOrg()
	o.ID = ""
	added, err := store.Add(ctx, o)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if len(added.ID) != 32 {
		t.Errorf("generated ID length = %d, want 32 hex chars", len(added.ID))
	}
}

func TestMemStore_AddDuplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	if _, err := store.Add(ctx, validOrg()); err != nil {
		t.Fatalf("first Add() error = %v", err)
	}
	if _, err := store.Add(ctx, validOrg()); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("second Add() error = %v, want ErrDuplicateID", err)
	}
}

func TestMemStore_AddInvalid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	o := validOrg()
	o.Name = ""
	if _, err := store.Add(ctx, o); err == nil {
		t.Error("Add() with empty name succeeded, want validation error")
	}
}

func TestMemStore_GetNotFound(t *testing.T) {
	t.Parallel()

	_, err := NewMemStore().Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemStore_Update(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	if _, err := store.Add(ctx, validOrg()); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	o := validOrg()
	o.Status = StatusLimited
	if err := store.Update(ctx, o); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := store.Get(ctx, "org-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusLimited {
		t.Errorf("status after update = %q, want limited", got.Status)
	}
}

func TestMemStore_UpdateNotFound(t *testing.T) {
	t.Parallel()

	err := NewMemStore().Update(context.Background(), validOrg())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestMemStore_Remove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	if _, err := store.Add(ctx, validOrg()); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := store.Remove(ctx, "org-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := store.Remove(ctx, "org-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
}

func TestMemStore_List(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	for i, name := range []string{"Alpha", "Beta", "Gamma"} {
		o := validOrg()
		o.ID = ""
		o.Name = name
		if _, err := store.Add(ctx, o); err != nil {
			t.Fatalf("Add() #%d error = %v", i, err)
		}
	}

	orgs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(orgs) != 3 {
		t.Errorf("List() returned %d organizations, want 3", len(orgs))
	}
}

func TestMemStore_BulkImport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	a := validOrg()
	a.ID = "a"
	b := validOrg()
	b.ID = "b"

	n, err := store.BulkImport(ctx, []Organization{a, b})
	if err != nil {
		t.Fatalf("BulkImport() error = %v", err)
	}
	if n != 2 {
		t.Errorf("BulkImport() count = %d, want 2", n)
	}
}

func TestMemStore_BulkImportAbortsOnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	a := validOrg()
	a.ID = "a"
	bad := validOrg()
	bad.ID = "a" // duplicate
	c := validOrg()
	c.ID = "c"

	n, err := store.BulkImport(ctx, []Organization{a, bad, c})
	if err == nil {
		t.Fatal("BulkImport() succeeded, want duplicate error")
	}
	if n != 1 {
		t.Errorf("BulkImport() count = %d, want 1", n)
	}
	if _, getErr := store.Get(ctx, "c"); !errors.Is(getErr, ErrNotFound) {
		t.Error("organization after the failing record was imported, want abort")
	}
}

func TestMemStore_ZeroValueUsable(t *testing.T) {
	t.Parallel()

	var store MemStore
	if _, err := store.Add(context.Background(), validOrg()); err != nil {
		t.Fatalf("Add() on zero-value store error = %v", err)
	}
}
