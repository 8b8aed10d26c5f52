package similarity

import (
	"context"

	"github.com/archivio/semsearch/internal/domain"
	"github.com/archivio/semsearch/internal/index"
)

// Index is the vector index contract for one collection's searches.
type Index interface {
	QueryByVector(ctx context.Context, collection string, vector []float32, k int) (*index.Result, error)
	Get(ctx context.Context, collection, id string) (*index.Record, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
