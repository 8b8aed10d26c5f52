// Package hybrid fans a search query out across collections and merges the
// ranked results onto one comparable list.
package hybrid

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/archivio/semsearch/internal/domain"
	"github.com/archivio/semsearch/internal/domain/search/request"
	"github.com/archivio/semsearch/internal/domain/search/result"
	"github.com/archivio/semsearch/internal/metrics"
)

// DefaultCollectionTimeout bounds each collection's query when no timeout is
// configured.
const DefaultCollectionTimeout = 300 * time.Millisecond

// Service coordinates hybrid search across collection searchers.
type Service struct {
	searchers map[domain.Kind]CollectionSearcher
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a hybrid search coordinator over the given per-kind searchers.
func New(searchers map[domain.Kind]CollectionSearcher, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultCollectionTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{searchers: searchers, timeout: timeout, logger: logger}
}

// Response is a merged hybrid search outcome. Facets count matches per kind
// before truncation, so the caller sees how many hits each collection had
// even when the merged page is shorter.
type Response struct {
	Query    string
	Results  []result.Result
	Facets   map[domain.Kind]int
	Total    int
	Failed   []domain.Kind
	TimingMS int64
}

type collectionOutcome struct {
	kind    domain.Kind
	results []result.Result
	err     error
}

// Search queries the requested collections in parallel and merges the
// results by normalized score. A failing or slow collection is dropped from
// the merge and reported in Failed; only when every queried collection fails
// does Search return ErrAllCollectionsUnavailable.
func (s *Service) Search(ctx context.Context, req *request.Request) (*Response, error) {
	kinds := req.Kinds()
	if len(kinds) == 0 {
		kinds = domain.AllKinds()
	}

	targets := make([]CollectionSearcher, 0, len(kinds))
	targetKinds := make([]domain.Kind, 0, len(kinds))
	for _, k := range kinds {
		searcher, ok := s.searchers[k]
		if !ok {
			return nil, fmt.Errorf("%w: no collection for kind %q", domain.ErrCollectionNotFound, k)
		}
		targets = append(targets, searcher)
		targetKinds = append(targetKinds, k)
	}

	start := time.Now()
	outcomes := make([]collectionOutcome, len(targets))

	// Plain WaitGroup rather than errgroup: one collection failing must not
	// cancel its siblings.
	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = s.searchOne(ctx, targetKinds[i], targets[i], req)
		}(i)
	}
	wg.Wait()

	merged := make([]result.Result, 0, len(targets)*req.Limit())
	facets := make(map[domain.Kind]int, len(targets))
	var failed []domain.Kind

	for _, out := range outcomes {
		if out.err != nil {
			failed = append(failed, out.kind)
			facets[out.kind] = 0
			continue
		}
		facets[out.kind] = len(out.results)
		merged = append(merged, out.results...)
	}

	if len(failed) == len(targets) {
		return nil, fmt.Errorf("%w: %d collections queried", domain.ErrAllCollectionsUnavailable, len(targets))
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].BeforeMerged(&merged[j])
	})

	total := len(merged)
	if len(merged) > req.Limit() {
		merged = merged[:req.Limit()]
	}

	elapsed := time.Since(start)
	metrics.HybridSearchDuration.Observe(elapsed.Seconds())
	metrics.HybridSearchResults.Observe(float64(total))

	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })

	return &Response{
		Query:    req.Query(),
		Results:  merged,
		Facets:   facets,
		Total:    total,
		Failed:   failed,
		TimingMS: elapsed.Milliseconds(),
	}, nil
}

func (s *Service) searchOne(
	ctx context.Context, kind domain.Kind, searcher CollectionSearcher, req *request.Request,
) collectionOutcome {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	collection := searcher.Collection()
	start := time.Now()
	results, err := searcher.Search(cctx, req)
	metrics.SearchCollectionDuration.WithLabelValues(collection).Observe(time.Since(start).Seconds())

	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.SearchCollectionFailures.WithLabelValues(collection, reason).Inc()
		s.logger.Warn("Collection search failed",
			zap.String("collection", collection),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return collectionOutcome{kind: kind, err: fmt.Errorf("%w: %s: %w", domain.ErrCollectionUnavailable, collection, err)}
	}

	return collectionOutcome{kind: kind, results: results}
}
