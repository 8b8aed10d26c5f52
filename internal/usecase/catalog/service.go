// Package catalog maintains the indexed items: the archive pipeline pushes
// extracted content here and the search side reads what it wrote.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/archivio/semsearch/internal/domain"
	"github.com/archivio/semsearch/internal/index"
)

// Service writes items into their collection index.
type Service struct {
	collections map[domain.Kind]string
	index       Index
	embed       Embedder
	invalidator Invalidator
	logger      *zap.Logger
}

// New creates a catalog service. collections maps each kind to its index
// collection name. invalidator may be nil when no embedding cache is wired.
func New(
	collections map[domain.Kind]string,
	idx Index,
	embed Embedder,
	invalidator Invalidator,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		collections: collections,
		index:       idx,
		embed:       embed,
		invalidator: invalidator,
		logger:      logger,
	}
}

// UpsertItem embeds an item's content and stores it in its collection.
// Items without extracted text get a synthetic embedding text built from
// metadata and are tagged accordingly. Replacing an item whose text changed
// drops the stale cached embedding.
func (s *Service) UpsertItem(
	ctx context.Context, kind domain.Kind, id, text string, metadata map[string]string,
) (domain.Item, error) {
	collection, err := s.collectionFor(kind)
	if err != nil {
		return domain.Item{}, err
	}

	item, err := domain.NewItem(id, kind, text, metadata)
	if err != nil {
		return domain.Item{}, err
	}

	s.invalidateStale(ctx, collection, &item)

	embResult, err := s.embed.Embed(ctx, item.EmbeddingText())
	if err != nil {
		return domain.Item{}, fmt.Errorf("vectorize item: %w", err)
	}

	doc := index.Document{
		ID:       item.ID(),
		Vector:   embResult.Embedding,
		Text:     item.EmbeddingText(),
		Origin:   string(item.Origin()),
		Metadata: item.Metadata(),
	}
	if err := s.index.Upsert(ctx, collection, &doc); err != nil {
		return domain.Item{}, fmt.Errorf("upsert item: %w", err)
	}

	s.logger.Info("Upserted item",
		zap.String("collection", collection),
		zap.String("id", item.ID()),
		zap.String("origin", string(item.Origin())),
	)
	return item, nil
}

// DeleteItem removes an item from its collection. Deleting an absent item
// returns ErrItemNotFound.
func (s *Service) DeleteItem(ctx context.Context, kind domain.Kind, id string) error {
	collection, err := s.collectionFor(kind)
	if err != nil {
		return err
	}

	rec, err := s.index.Get(ctx, collection, id)
	if err != nil {
		if errors.Is(err, index.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s/%s", domain.ErrItemNotFound, collection, id)
		}
		return fmt.Errorf("get item: %w", err)
	}

	if err := s.index.Delete(ctx, collection, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(rec.Text)
	}

	s.logger.Info("Deleted item", zap.String("collection", collection), zap.String("id", id))
	return nil
}

// invalidateStale drops the cached embedding of the previous version when the
// embedding text changed. A missing previous record is the common insert path.
func (s *Service) invalidateStale(ctx context.Context, collection string, item *domain.Item) {
	if s.invalidator == nil {
		return
	}
	prev, err := s.index.Get(ctx, collection, item.ID())
	if err != nil {
		return
	}
	if prev.Text != "" && prev.Text != item.EmbeddingText() {
		s.invalidator.Invalidate(prev.Text)
	}
}

func (s *Service) collectionFor(kind domain.Kind) (string, error) {
	collection, ok := s.collections[kind]
	if !ok {
		return "", fmt.Errorf("%w: no collection for kind %q", domain.ErrCollectionNotFound, kind)
	}
	return collection, nil
}
