package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
)

// SemanticSchema is the SQL DDL for the organization embeddings table.
// The vector dimension must match the embedding model in use; the placeholder
// is filled in by [SemanticIndex.Migrate].
const SemanticSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS organization_embeddings (
    organization_id TEXT PRIMARY KEY REFERENCES organizations(id) ON DELETE CASCADE,
    embedding       vector(%d) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_organization_embeddings_hnsw
    ON organization_embeddings USING hnsw (embedding vector_cosine_ops);
`

// SemanticResult is one semantic search hit: an organization ID with its
// cosine distance to the query (smaller is more similar).
type SemanticResult struct {
	OrganizationID string
	Distance       float64
}

// SemanticIndex stores organization embeddings in a pgvector column and
// answers nearest-neighbour queries over them. Embedding text is the caller's
// concern; the index only deals in vectors.
//
// All methods are safe for concurrent use.
type SemanticIndex struct {
	db         DB
	dimensions int
}

// NewSemanticIndex creates a [SemanticIndex] with the given embedding
// dimension (e.g. 1536 for text-embedding-3-small).
func NewSemanticIndex(db DB, dimensions int) *SemanticIndex {
	return &SemanticIndex{db: db, dimensions: dimensions}
}

// Migrate executes the [SemanticSchema] DDL against the database.
func (s *SemanticIndex) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(SemanticSchema, s.dimensions))
	if err != nil {
		return fmt.Errorf("directory: migrate semantic index: %w", err)
	}
	return nil
}

// Index upserts the embedding for one organization. An existing embedding for
// the same organization is replaced.
func (s *SemanticIndex) Index(ctx context.Context, organizationID string, embedding []float32) error {
	if len(embedding) != s.dimensions {
		return fmt.Errorf("directory: embedding has %d dimensions, index expects %d", len(embedding), s.dimensions)
	}

	const q = `
		INSERT INTO organization_embeddings (organization_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (organization_id) DO UPDATE SET
		    embedding = EXCLUDED.embedding`

	_, err := s.db.Exec(ctx, q, organizationID, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("directory: index organization %q: %w", organizationID, err)
	}
	return nil
}

// Remove deletes the embedding for one organization. Removing a missing
// embedding is not an error.
func (s *SemanticIndex) Remove(ctx context.Context, organizationID string) error {
	const q = `DELETE FROM organization_embeddings WHERE organization_id = $1`
	_, err := s.db.Exec(ctx, q, organizationID)
	if err != nil {
		return fmt.Errorf("directory: remove embedding %q: %w", organizationID, err)
	}
	return nil
}

// Search finds the topK organizations whose embeddings are closest (cosine
// distance) to the supplied query embedding.
//
// Results are ordered by ascending distance (most similar first).
func (s *SemanticIndex) Search(ctx context.Context, embedding []float32, topK int) ([]SemanticResult, error) {
	const q = `
		SELECT organization_id, embedding <=> $1 AS distance
		FROM   organization_embeddings
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.db.Query(ctx, q, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("directory: semantic search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SemanticResult, error) {
		var r SemanticResult
		err := row.Scan(&r.OrganizationID, &r.Distance)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("directory: scan semantic results: %w", err)
	}
	if results == nil {
		results = []SemanticResult{}
	}
	return results, nil
}

// EmbeddingText renders the canonical text that should be embedded for an
// organization. Keeping this in one place guarantees the indexed text and any
// re-embedding stay consistent.
func EmbeddingText(o Organization) string {
	return fmt.Sprintf("%s. Category: %s. Region: %s. Services: %s", o.Name, o.Category, o.Region, o.Services)
}
