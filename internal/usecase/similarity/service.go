// Package similarity ranks one collection's items against a query vector.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/archivio/semsearch/internal/domain"
	"github.com/archivio/semsearch/internal/domain/search/request"
	"github.com/archivio/semsearch/internal/domain/search/result"
	"github.com/archivio/semsearch/internal/domain/search/scale"
	"github.com/archivio/semsearch/internal/index"
)

// Service searches a single collection. One instance per collection; the
// hybrid coordinator fans out across them.
type Service struct {
	collection       string
	kind             domain.Kind
	scale            scale.Scale
	filterable       map[string]struct{}
	defaultThreshold float64
	index            Index
	embed            Embedder
	logger           *zap.Logger
}

// Config wires one collection's search service.
type Config struct {
	// Collection is the index collection name, e.g. "documents".
	Collection string
	// Kind is the item kind stored in the collection.
	Kind domain.Kind
	// Scale is the native score scale of the collection's index.
	Scale scale.Scale
	// Filterable lists the metadata keys filters may address. Filters on
	// other keys are dropped, not rejected.
	Filterable []string
	// DefaultThreshold applies when a request carries no threshold.
	// Zero means no cutoff.
	DefaultThreshold float64
}

// New creates a collection search service.
func New(cfg Config, idx Index, embed Embedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	filterable := make(map[string]struct{}, len(cfg.Filterable))
	for _, k := range cfg.Filterable {
		filterable[k] = struct{}{}
	}
	return &Service{
		collection:       cfg.Collection,
		kind:             cfg.Kind,
		scale:            cfg.Scale,
		filterable:       filterable,
		defaultThreshold: cfg.DefaultThreshold,
		index:            idx,
		embed:            embed,
		logger:           logger,
	}
}

// Collection returns the collection name this service searches.
func (s *Service) Collection() string { return s.collection }

// Kind returns the item kind stored in this collection.
func (s *Service) Kind() domain.Kind { return s.kind }

// Search embeds the query and returns the collection's ranked matches:
// normalized score descending, item id ascending on ties, at most
// req.Limit() entries. The returned slice is never nil.
func (s *Service) Search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	embResult, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	return s.rank(ctx, embResult.Embedding, req.CandidateK(), rankParams{
		limit:     req.Limit(),
		threshold: req.Threshold(),
		filters:   req.Filters(),
	})
}

// FindSimilar returns items most similar to a stored item, excluding the
// item itself. The stored vector is reused when present; otherwise the
// stored text is re-embedded.
func (s *Service) FindSimilar(
	ctx context.Context, itemID string, req *request.SimilarRequest,
) ([]result.Result, error) {
	rec, err := s.index.Get(ctx, s.collection, itemID)
	if err != nil {
		if errors.Is(err, index.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrItemNotFound, s.collection, itemID)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	vector := rec.Vector
	if len(vector) == 0 {
		embResult, err := s.embed.Embed(ctx, rec.Text)
		if err != nil {
			return nil, fmt.Errorf("vectorize item text: %w", err)
		}
		vector = embResult.Embedding
	}

	return s.rank(ctx, vector, req.CandidateK(), rankParams{
		limit:     req.Limit(),
		threshold: req.Threshold(),
		filters:   req.Filters(),
		excludeID: itemID,
	})
}

type rankParams struct {
	limit     int
	threshold float64
	filters   map[string]string
	excludeID string
}

func (s *Service) rank(
	ctx context.Context, vector []float32, k int, p rankParams,
) ([]result.Result, error) {
	res, err := s.index.QueryByVector(ctx, s.collection, vector, k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	threshold := p.threshold
	if threshold == request.ThresholdUnset {
		threshold = s.defaultThreshold
	}

	results := make([]result.Result, 0, len(res.Entries))
	for i := range res.Entries {
		e := &res.Entries[i]
		if e.ID == p.excludeID {
			continue
		}
		if !s.matchesFilters(e.Metadata, p.filters) {
			continue
		}

		norm := s.scale.Normalize(e.RawScore)
		if norm < threshold {
			continue
		}

		meta := make(map[string]string, len(e.Metadata)+1)
		for mk, mv := range e.Metadata {
			meta[mk] = mv
		}
		origin := domain.ContentOrigin(e.Origin)
		if origin == "" {
			origin = domain.OriginReal
		}
		meta[domain.MetadataOriginKey] = string(origin)

		results = append(results, result.New(
			e.ID, s.kind, e.RawScore, norm,
			result.Excerpt(e.Text, result.ExcerptLength),
			meta, origin,
		))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Before(&results[j])
	})

	if len(results) > p.limit {
		results = results[:p.limit]
	}

	return results, nil
}

// matchesFilters applies exact-match metadata filters. Keys outside the
// collection's filterable set are ignored rather than rejected, so stale
// UI filters from another collection don't break the query.
func (s *Service) matchesFilters(meta, filters map[string]string) bool {
	for k, want := range filters {
		if _, ok := s.filterable[k]; !ok {
			s.logger.Debug("Ignoring non-filterable key",
				zap.String("collection", s.collection), zap.String("key", k))
			continue
		}
		if meta[k] != want {
			return false
		}
	}
	return true
}
