package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"

	"github.com/archivio/semsearch/internal/domain"
	"github.com/archivio/semsearch/internal/domain/search/request"
	"github.com/archivio/semsearch/internal/domain/search/result"
	healthuc "github.com/archivio/semsearch/internal/usecase/health"
	hybriduc "github.com/archivio/semsearch/internal/usecase/hybrid"
)

// --- Mocks ---

type mockSimilar struct {
	gotItemID string
	gotReq    *request.SimilarRequest
	results   []result.Result
	err       error
}

func (m *mockSimilar) FindSimilar(
	_ context.Context, itemID string, req *request.SimilarRequest,
) ([]result.Result, error) {
	m.gotItemID = itemID
	m.gotReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

type mockHybrid struct {
	gotReq *request.Request
	resp   *hybriduc.Response
	err    error
}

func (m *mockHybrid) Search(_ context.Context, req *request.Request) (*hybriduc.Response, error) {
	m.gotReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

type mockCatalog struct {
	upserted  map[string]string
	deleted   []string
	upsertErr error
	deleteErr error
}

func (m *mockCatalog) UpsertItem(
	_ context.Context, kind domain.Kind, id, text string, metadata map[string]string,
) (domain.Item, error) {
	if m.upsertErr != nil {
		return domain.Item{}, m.upsertErr
	}
	if m.upserted == nil {
		m.upserted = make(map[string]string)
	}
	m.upserted[string(kind)+"/"+id] = text
	return domain.NewItem(id, kind, text, metadata)
}

func (m *mockCatalog) DeleteItem(_ context.Context, kind domain.Kind, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, string(kind)+"/"+id)
	return nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

// --- Helpers ---

func newTestServer(t *testing.T, sim *mockSimilar, hyb *mockHybrid, cat *mockCatalog, hc *mockHealth) *httptest.Server {
	t.Helper()
	if sim == nil {
		sim = &mockSimilar{}
	}
	if hyb == nil {
		hyb = &mockHybrid{resp: &hybriduc.Response{Facets: map[domain.Kind]int{}}}
	}
	if cat == nil {
		cat = &mockCatalog{}
	}
	if hc == nil {
		hc = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}

	srv := NewServer(map[string]SimilarSearcher{"documents": sim}, hyb, cat, hc, nil)
	r := chirouter.NewRouter()
	srv.Routes(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func doGet(t *testing.T, ts *httptest.Server, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp, body
}

func hit(id string, kind domain.Kind, score float64) result.Result {
	return result.New(id, kind, score, score, "excerpt of "+id,
		map[string]string{domain.MetadataOriginKey: "real"}, domain.OriginReal)
}

// --- Tests ---

func TestGetSimilar(t *testing.T) {
	sim := &mockSimilar{results: []result.Result{
		hit("doc-2", domain.KindDocument, 0.91),
		hit("doc-3", domain.KindDocument, 0.84),
	}}
	ts := newTestServer(t, sim, nil, nil, nil)

	resp, body := doGet(t, ts, "/similar/documents/doc-1?limit=5&similarity_threshold=0.8")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["source_item_id"] != "doc-1" {
		t.Errorf("source_item_id = %v", body["source_item_id"])
	}
	if body["total_found"] != float64(2) {
		t.Errorf("total_found = %v, want 2", body["total_found"])
	}
	items := body["similar_items"].([]any)
	first := items[0].(map[string]any)
	if first["id"] != "doc-2" || first["score"] != 0.91 {
		t.Errorf("first item = %v", first)
	}
	if first["metadata"].(map[string]any)["content_origin"] != "real" {
		t.Errorf("metadata = %v", first["metadata"])
	}

	if sim.gotItemID != "doc-1" {
		t.Errorf("searcher got item id %q", sim.gotItemID)
	}
	if sim.gotReq.Limit() != 5 {
		t.Errorf("limit = %d, want 5", sim.gotReq.Limit())
	}
	if sim.gotReq.Threshold() != 0.8 {
		t.Errorf("threshold = %v, want 0.8", sim.gotReq.Threshold())
	}
}

func TestGetSimilar_ClampsLimit(t *testing.T) {
	sim := &mockSimilar{}
	ts := newTestServer(t, sim, nil, nil, nil)

	resp, _ := doGet(t, ts, "/similar/documents/doc-1?limit=500")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (out-of-range limit clamps)", resp.StatusCode)
	}
	if sim.gotReq.Limit() != request.MaxSimilarLimit {
		t.Errorf("limit = %d, want %d", sim.gotReq.Limit(), request.MaxSimilarLimit)
	}
}

func TestGetSimilar_MalformedLimit(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil, nil)

	resp, body := doGet(t, ts, "/similar/documents/doc-1?limit=abc")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != codeInvalidParameter {
		t.Errorf("code = %v, want %s", body["code"], codeInvalidParameter)
	}
}

func TestGetSimilar_UnknownCollection(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil, nil)

	resp, body := doGet(t, ts, "/similar/paintings/doc-1")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body["code"] != codeCollectionNotFound {
		t.Errorf("code = %v, want %s", body["code"], codeCollectionNotFound)
	}
}

func TestGetSimilar_ItemNotFound(t *testing.T) {
	sim := &mockSimilar{err: domain.ErrItemNotFound}
	ts := newTestServer(t, sim, nil, nil, nil)

	resp, body := doGet(t, ts, "/similar/documents/ghost")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body["code"] != codeItemNotFound {
		t.Errorf("code = %v, want %s", body["code"], codeItemNotFound)
	}
}

func TestGetSimilar_PassesFilters(t *testing.T) {
	sim := &mockSimilar{}
	ts := newTestServer(t, sim, nil, nil, nil)

	if resp, _ := doGet(t, ts, "/similar/documents/doc-1?source=court&limit=5"); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := sim.gotReq.Filters()["source"]; got != "court" {
		t.Errorf("filters[source] = %q, want court", got)
	}
	if _, ok := sim.gotReq.Filters()["limit"]; ok {
		t.Error("reserved parameter leaked into filters")
	}
}

func TestHybridSearch(t *testing.T) {
	hyb := &mockHybrid{resp: &hybriduc.Response{
		Query: "island flights",
		Results: []result.Result{
			hit("doc-1", domain.KindDocument, 0.9),
			hit("ent-1", domain.KindEntity, 0.7),
		},
		Facets:   map[domain.Kind]int{domain.KindDocument: 1, domain.KindEntity: 1},
		Total:    2,
		TimingMS: 12,
	}}
	ts := newTestServer(t, nil, hyb, nil, nil)

	resp, body := doGet(t, ts, "/search/hybrid?query=island+flights&type=document,entity&limit=10&source=court")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if body["query"] != "island flights" {
		t.Errorf("query = %v", body["query"])
	}
	if body["total"] != float64(2) {
		t.Errorf("total = %v, want 2", body["total"])
	}
	facets := body["facets"].(map[string]any)
	if facets["document"] != float64(1) || facets["entity"] != float64(1) {
		t.Errorf("facets = %v", facets)
	}
	applied := body["filters_applied"].(map[string]any)
	if applied["filters"].(map[string]any)["source"] != "court" {
		t.Errorf("filters_applied = %v", applied)
	}

	if hyb.gotReq.Query() != "island flights" {
		t.Errorf("usecase got query %q", hyb.gotReq.Query())
	}
	if len(hyb.gotReq.Kinds()) != 2 {
		t.Errorf("usecase got kinds %v", hyb.gotReq.Kinds())
	}
}

func TestHybridSearch_MissingQuery(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil, nil)

	resp, body := doGet(t, ts, "/search/hybrid")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != codeInvalidParameter {
		t.Errorf("code = %v, want %s", body["code"], codeInvalidParameter)
	}
}

func TestHybridSearch_UnknownType(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil, nil)

	resp, body := doGet(t, ts, "/search/hybrid?query=x&type=paintings")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != codeInvalidParameter {
		t.Errorf("code = %v", body["code"])
	}
}

func TestHybridSearch_FailedCollectionsReported(t *testing.T) {
	hyb := &mockHybrid{resp: &hybriduc.Response{
		Query:   "x",
		Results: []result.Result{hit("doc-1", domain.KindDocument, 0.9)},
		Facets:  map[domain.Kind]int{domain.KindDocument: 1, domain.KindEntity: 0},
		Total:   1,
		Failed:  []domain.Kind{domain.KindEntity},
	}}
	ts := newTestServer(t, nil, hyb, nil, nil)

	resp, body := doGet(t, ts, "/search/hybrid?query=x")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (partial failure is not an error)", resp.StatusCode)
	}
	applied := body["filters_applied"].(map[string]any)
	failed := applied["failed_collections"].([]any)
	if len(failed) != 1 || failed[0] != "entity" {
		t.Errorf("failed_collections = %v, want [entity]", failed)
	}
}

func TestHybridSearch_AllCollectionsUnavailable(t *testing.T) {
	hyb := &mockHybrid{err: domain.ErrAllCollectionsUnavailable}
	ts := newTestServer(t, nil, hyb, nil, nil)

	resp, body := doGet(t, ts, "/search/hybrid?query=x")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if body["code"] != codeSearchUnavailable {
		t.Errorf("code = %v, want %s", body["code"], codeSearchUnavailable)
	}
}

func TestHybridSearch_EmbeddingUnavailable(t *testing.T) {
	hyb := &mockHybrid{err: domain.ErrEmbeddingUnavailable}
	ts := newTestServer(t, nil, hyb, nil, nil)

	resp, body := doGet(t, ts, "/search/hybrid?query=x")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if body["code"] != codeEmbeddingUnavailable {
		t.Errorf("code = %v, want %s", body["code"], codeEmbeddingUnavailable)
	}
}

func TestPutItem(t *testing.T) {
	cat := &mockCatalog{}
	ts := newTestServer(t, nil, nil, cat, nil)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/items/documents/doc-1",
		strings.NewReader(`{"text":"deposition transcript","metadata":{"source":"court"}}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["id"] != "doc-1" || body["kind"] != "document" || body["origin"] != "real" {
		t.Errorf("body = %v", body)
	}
	if cat.upserted["document/doc-1"] != "deposition transcript" {
		t.Errorf("upserted = %v", cat.upserted)
	}
}

func TestPutItem_BadBody(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil, nil)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/items/documents/doc-1", strings.NewReader("{"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDeleteItem(t *testing.T) {
	cat := &mockCatalog{}
	ts := newTestServer(t, nil, nil, cat, nil)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/items/entities/ent-1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if len(cat.deleted) != 1 || cat.deleted[0] != "entity/ent-1" {
		t.Errorf("deleted = %v", cat.deleted)
	}
}

func TestDeleteItem_NotFound(t *testing.T) {
	cat := &mockCatalog{deleteErr: domain.ErrItemNotFound}
	ts := newTestServer(t, nil, nil, cat, nil)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/items/documents/ghost", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHealthCheck(t *testing.T) {
	hc := &mockHealth{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{
			"index":     healthuc.CheckOK,
			"embedding": healthuc.CheckError,
		},
	}}
	ts := newTestServer(t, nil, nil, nil, hc)

	resp, body := doGet(t, ts, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (degraded still serves)", resp.StatusCode)
	}
	if body["status"] != "degraded" {
		t.Errorf("status = %v", body["status"])
	}
	checks := body["checks"].(map[string]any)
	if checks["embedding"] != "error" {
		t.Errorf("checks = %v", checks)
	}
}

func TestHealthCheck_Unhealthy(t *testing.T) {
	hc := &mockHealth{report: healthuc.Report{
		Status: healthuc.Unhealthy,
		Checks: map[string]healthuc.CheckResult{"index": healthuc.CheckError},
	}}
	ts := newTestServer(t, nil, nil, nil, hc)

	resp, _ := doGet(t, ts, "/health")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}
