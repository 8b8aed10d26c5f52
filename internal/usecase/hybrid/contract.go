package hybrid

import (
	"context"

	"github.com/archivio/semsearch/internal/domain/search/request"
	"github.com/archivio/semsearch/internal/domain/search/result"
)

// CollectionSearcher searches a single collection. Results come back
// normalized and ranked; the coordinator only merges.
type CollectionSearcher interface {
	Collection() string
	Search(ctx context.Context, req *request.Request) ([]result.Result, error)
}
