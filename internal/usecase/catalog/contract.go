package catalog

import (
	"context"

	"github.com/archivio/semsearch/internal/domain"
	"github.com/archivio/semsearch/internal/index"
)

// Index is the storage contract for catalog writes.
type Index interface {
	Upsert(ctx context.Context, collection string, doc *index.Document) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (*index.Record, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Invalidator drops a cached embedding by its source text.
type Invalidator interface {
	Invalidate(text string) bool
}
