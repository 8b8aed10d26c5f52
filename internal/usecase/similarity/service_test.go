package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/archivio/semsearch/internal/domain"
	"github.com/archivio/semsearch/internal/domain/search/request"
	"github.com/archivio/semsearch/internal/domain/search/result"
	"github.com/archivio/semsearch/internal/domain/search/scale"
	"github.com/archivio/semsearch/internal/index"
)

type stubIndex struct {
	entries  []index.Entry
	queryK   int
	queryErr error

	record *index.Record
	getErr error
}

func (s *stubIndex) QueryByVector(
	_ context.Context, _ string, _ []float32, k int,
) (*index.Result, error) {
	s.queryK = k
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	entries := s.entries
	if len(entries) > k {
		entries = entries[:k]
	}
	return &index.Result{Total: len(entries), Entries: entries}, nil
}

func (s *stubIndex) Get(_ context.Context, _, _ string) (*index.Record, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.record, nil
}

type stubEmbedder struct {
	calls int
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	s.calls++
	if s.err != nil {
		return domain.EmbeddingResult{}, s.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}, TotalTokens: 3}, nil
}

func newService(idx *stubIndex, embed Embedder) *Service {
	return New(Config{
		Collection: "documents",
		Kind:       domain.KindDocument,
		Scale:      scale.CosineDistance,
		Filterable: []string{"source", "year"},
	}, idx, embed, nil)
}

func mustRequest(t *testing.T, query string, limit int, threshold float64, filters map[string]string) *request.Request {
	t.Helper()
	req, err := request.New(query, limit, threshold, nil, filters)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &req
}

func entry(id string, raw float64) index.Entry {
	return index.Entry{ID: id, RawScore: raw, Text: "text of " + id, Origin: "real"}
}

func TestSearch_RanksByNormalizedScore(t *testing.T) {
	// cosine distances; smaller distance = more similar = higher rank.
	idx := &stubIndex{entries: []index.Entry{
		entry("doc-far", 1.2),
		entry("doc-near", 0.1),
		entry("doc-mid", 0.6),
	}}
	svc := newService(idx, &stubEmbedder{})

	results, err := svc.Search(context.Background(), mustRequest(t, "flight logs", 10, request.ThresholdUnset, nil))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	wantOrder := []string{"doc-near", "doc-mid", "doc-far"}
	if len(results) != len(wantOrder) {
		t.Fatalf("got %d results, want %d", len(results), len(wantOrder))
	}
	for i, want := range wantOrder {
		if results[i].ItemID() != want {
			t.Errorf("results[%d] = %s, want %s", i, results[i].ItemID(), want)
		}
	}

	if got := results[0].NormalizedScore(); got < 0.9499 || got > 0.9501 {
		t.Errorf("top normalized score = %v, want 0.95", got)
	}
	if got := results[0].RawScore(); got != 0.1 {
		t.Errorf("top raw score = %v, want 0.1", got)
	}
}

func TestSearch_Deterministic(t *testing.T) {
	idx := &stubIndex{entries: []index.Entry{
		entry("doc-b", 0.4),
		entry("doc-a", 0.4),
		entry("doc-c", 0.2),
	}}
	svc := newService(idx, &stubEmbedder{})
	req := mustRequest(t, "ledger", 10, request.ThresholdUnset, nil)

	first, err := svc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := svc.Search(context.Background(), req)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		for j := range first {
			if again[j].ItemID() != first[j].ItemID() {
				t.Fatalf("run %d diverged at position %d", i, j)
			}
		}
	}

	// Equal scores break ties by item id ascending.
	if first[1].ItemID() != "doc-a" || first[2].ItemID() != "doc-b" {
		t.Errorf("tie order = %s, %s; want doc-a, doc-b", first[1].ItemID(), first[2].ItemID())
	}
}

func TestSearch_ThresholdFiltersLowScores(t *testing.T) {
	idx := &stubIndex{entries: []index.Entry{
		entry("doc-near", 0.2), // norm 0.9
		entry("doc-far", 1.0),  // norm 0.5
	}}
	svc := newService(idx, &stubEmbedder{})

	results, err := svc.Search(context.Background(), mustRequest(t, "memo", 10, 0.8, nil))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ItemID() != "doc-near" {
		t.Fatalf("results = %v, want only doc-near", ids(results))
	}
}

func TestSearch_ThresholdMonotone(t *testing.T) {
	idx := &stubIndex{entries: []index.Entry{
		entry("a", 0.1), entry("b", 0.5), entry("c", 0.9), entry("d", 1.3),
	}}
	svc := newService(idx, &stubEmbedder{})

	prev := -1
	for _, th := range []float64{0, 0.4, 0.6, 0.8, 0.99} {
		results, err := svc.Search(context.Background(), mustRequest(t, "q", 10, th, nil))
		if err != nil {
			t.Fatalf("Search(threshold=%v): %v", th, err)
		}
		if prev >= 0 && len(results) > prev {
			t.Fatalf("raising threshold to %v grew the result set", th)
		}
		prev = len(results)
	}
}

func TestSearch_DefaultThresholdFromConfig(t *testing.T) {
	idx := &stubIndex{entries: []index.Entry{
		entry("doc-near", 0.2), // norm 0.9
		entry("doc-far", 1.0),  // norm 0.5
	}}
	svc := New(Config{
		Collection:       "documents",
		Kind:             domain.KindDocument,
		Scale:            scale.CosineDistance,
		DefaultThreshold: 0.7,
	}, idx, &stubEmbedder{}, nil)

	results, err := svc.Search(context.Background(), mustRequest(t, "memo", 10, request.ThresholdUnset, nil))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ItemID() != "doc-near" {
		t.Fatalf("results = %v, want only doc-near (config threshold 0.7)", ids(results))
	}

	// An explicit threshold overrides the configured default.
	results, err = svc.Search(context.Background(), mustRequest(t, "memo", 10, 0.3, nil))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("explicit threshold 0.3: got %d results, want 2", len(results))
	}
}

func TestSearch_MetadataFilters(t *testing.T) {
	e1 := entry("doc-court", 0.2)
	e1.Metadata = map[string]string{"source": "court", "year": "2019"}
	e2 := entry("doc-press", 0.3)
	e2.Metadata = map[string]string{"source": "press", "year": "2019"}
	idx := &stubIndex{entries: []index.Entry{e1, e2}}
	svc := newService(idx, &stubEmbedder{})

	results, err := svc.Search(context.Background(),
		mustRequest(t, "deposition", 10, request.ThresholdUnset, map[string]string{"source": "court"}))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ItemID() != "doc-court" {
		t.Fatalf("results = %v, want only doc-court", ids(results))
	}

	// Non-filterable keys are dropped, not rejected.
	results, err = svc.Search(context.Background(),
		mustRequest(t, "deposition", 10, request.ThresholdUnset, map[string]string{"unknown_key": "x"}))
	if err != nil {
		t.Fatalf("Search with unknown filter key: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("unknown filter key dropped %d results", 2-len(results))
	}
}

func TestSearch_EmptyResultIsNotNil(t *testing.T) {
	svc := newService(&stubIndex{}, &stubEmbedder{})

	results, err := svc.Search(context.Background(), mustRequest(t, "nothing here", 10, request.ThresholdUnset, nil))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results == nil {
		t.Fatal("results = nil, want empty slice")
	}
	if len(results) != 0 {
		t.Fatalf("results = %v, want empty", ids(results))
	}
}

func TestSearch_FetchesCandidateK(t *testing.T) {
	idx := &stubIndex{}
	svc := newService(idx, &stubEmbedder{})

	if _, err := svc.Search(context.Background(), mustRequest(t, "q", 10, request.ThresholdUnset, nil)); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if idx.queryK != 40 {
		t.Fatalf("queried k = %d, want 40 (limit 10 times 4)", idx.queryK)
	}
}

func TestSearch_OriginInMetadata(t *testing.T) {
	e := entry("ent-1", 0.2)
	e.Origin = "synthetic"
	idx := &stubIndex{entries: []index.Entry{e}}
	svc := newService(idx, &stubEmbedder{})

	results, err := svc.Search(context.Background(), mustRequest(t, "q", 10, request.ThresholdUnset, nil))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := results[0].Metadata()[domain.MetadataOriginKey]; got != "synthetic" {
		t.Fatalf("content_origin = %q, want synthetic", got)
	}
	if results[0].Origin() != domain.OriginSynthetic {
		t.Fatalf("Origin() = %q, want synthetic", results[0].Origin())
	}
}

func TestSearch_EmbedFailure(t *testing.T) {
	svc := newService(&stubIndex{}, &stubEmbedder{err: domain.ErrEmbeddingUnavailable})

	_, err := svc.Search(context.Background(), mustRequest(t, "q", 10, request.ThresholdUnset, nil))
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("err = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestFindSimilar_ExcludesSourceItem(t *testing.T) {
	idx := &stubIndex{
		record: &index.Record{ID: "doc-1", Vector: []float32{1, 0, 0}, Text: "source"},
		entries: []index.Entry{
			entry("doc-1", 0.0), // the item is its own nearest neighbor
			entry("doc-2", 0.2),
			entry("doc-3", 0.4),
		},
	}
	embed := &stubEmbedder{}
	svc := newService(idx, embed)

	req := request.NewSimilar(10, request.ThresholdUnset, nil)
	results, err := svc.FindSimilar(context.Background(), "doc-1", &req)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	for _, r := range results {
		if r.ItemID() == "doc-1" {
			t.Fatal("source item leaked into its own similar list")
		}
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if embed.calls != 0 {
		t.Fatalf("embedder called %d times, want 0 (stored vector reused)", embed.calls)
	}
	// One extra candidate is fetched to cover the excluded source item.
	if idx.queryK != 41 {
		t.Fatalf("queried k = %d, want 41", idx.queryK)
	}
}

func TestFindSimilar_ReembedsWhenVectorMissing(t *testing.T) {
	idx := &stubIndex{
		record:  &index.Record{ID: "doc-1", Text: "recovered text"},
		entries: []index.Entry{entry("doc-2", 0.2)},
	}
	embed := &stubEmbedder{}
	svc := newService(idx, embed)

	req := request.NewSimilar(5, request.ThresholdUnset, nil)
	if _, err := svc.FindSimilar(context.Background(), "doc-1", &req); err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if embed.calls != 1 {
		t.Fatalf("embedder called %d times, want 1", embed.calls)
	}
}

func TestFindSimilar_ItemNotFound(t *testing.T) {
	idx := &stubIndex{getErr: index.ErrKeyNotFound}
	svc := newService(idx, &stubEmbedder{})

	req := request.NewSimilar(10, request.ThresholdUnset, nil)
	_, err := svc.FindSimilar(context.Background(), "ghost", &req)
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
}

func ids(results []result.Result) []string {
	out := make([]string, len(results))
	for i := range results {
		out[i] = results[i].ItemID()
	}
	return out
}
