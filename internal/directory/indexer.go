package directory

import (
	"context"
	"fmt"

	"github.com/opora-ua/opora/pkg/provider/embeddings"
)

// Reindex embeds every organization in store and upserts the vectors into
// index. All texts are embedded in one batch call. Returns the number of
// organizations indexed.
//
// Run this after imports or data updates; semantic search only sees
// organizations that have been indexed.
func Reindex(ctx context.Context, store Store, index *SemanticIndex, embedder embeddings.Provider) (int, error) {
	orgs, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("directory: reindex: %w", err)
	}
	if len(orgs) == 0 {
		return 0, nil
	}

	texts := make([]string, len(orgs))
	for i, o := range orgs {
		texts[i] = EmbeddingText(o)
	}

	vecs, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("directory: reindex: embed: %w", err)
	}

	for i, o := range orgs {
		if err := index.Index(ctx, o.ID, vecs[i]); err != nil {
			return i, fmt.Errorf("directory: reindex: %w", err)
		}
	}
	return len(orgs), nil
}
