package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the organizations table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS organizations (
    id        TEXT PRIMARY KEY,
    name      TEXT NOT NULL,
    address   TEXT NOT NULL DEFAULT '',
    category  TEXT NOT NULL,
    services  TEXT NOT NULL DEFAULT '',
    phone     TEXT NOT NULL DEFAULT '',
    budget    BOOLEAN NOT NULL DEFAULT FALSE,
    status    TEXT NOT NULL DEFAULT 'active',
    region    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_organizations_region ON organizations(region);
CREATE INDEX IF NOT EXISTS idx_organizations_category ON organizations(category);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// organizations table and indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("directory: migrate: %w", err)
	}
	return nil
}

// Add implements [Store.Add].
func (s *PostgresStore) Add(ctx context.Context, org Organization) (Organization, error) {
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

	const query = `
		INSERT INTO organizations (id, name, address, category, services, phone, budget, status, region)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err := s.db.Exec(ctx, query,
		org.ID, org.Name, org.Address, string(org.Category), org.Services,
		org.Phone, org.Budget, string(org.Status), org.Region,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return Organization{}, ErrDuplicateID
		}
		return Organization{}, fmt.Errorf("directory: add: %w", err)
	}
	return org, nil
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, id string) (Organization, error) {
	const query = `
		SELECT id, name, address, category, services, phone, budget, status, region
		FROM organizations
		WHERE id = $1`

	var o Organization
	err := s.db.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.Name, &o.Address, &o.Category, &o.Services,
		&o.Phone, &o.Budget, &o.Status, &o.Region,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, fmt.Errorf("directory: get %q: %w", id, err)
	}
	return o, nil
}

// List implements [Store.List]. Results are ordered by name.
func (s *PostgresStore) List(ctx context.Context) ([]Organization, error) {
	const query = `
		SELECT id, name, address, category, services, phone, budget, status, region
		FROM organizations
		ORDER BY name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("directory: list: %w", err)
	}

	orgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Organization, error) {
		var o Organization
		err := row.Scan(
			&o.ID, &o.Name, &o.Address, &o.Category, &o.Services,
			&o.Phone, &o.Budget, &o.Status, &o.Region,
		)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("directory: list scan: %w", err)
	}
	return orgs, nil
}

// Update implements [Store.Update].
func (s *PostgresStore) Update(ctx context.Context, org Organization) error {
	if err := org.Validate(); err != nil {
		return err
	}

	const query = `
		UPDATE organizations SET
			name = $2, address = $3, category = $4, services = $5,
			phone = $6, budget = $7, status = $8, region = $9
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query,
		org.ID, org.Name, org.Address, string(org.Category), org.Services,
		org.Phone, org.Budget, string(org.Status), org.Region,
	)
	if err != nil {
		return fmt.Errorf("directory: update %q: %w", org.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove implements [Store.Remove].
func (s *PostgresStore) Remove(ctx context.Context, id string) error {
	const query = `DELETE FROM organizations WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("directory: remove %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkImport implements [Store.BulkImport].
func (s *PostgresStore) BulkImport(ctx context.Context, orgs []Organization) (int, error) {
	count := 0
	for _, o := range orgs {
		if _, err := s.Add(ctx, o); err != nil {
			return count, fmt.Errorf("directory: bulk import at index %d (name %q): %w", count, o.Name, err)
		}
		count++
	}
	return count, nil
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
