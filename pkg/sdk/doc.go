// Package semsearch provides a Go client for the semsearch similarity
// search service.
//
//	client, _ := semsearch.New("http://localhost:8080",
//	    semsearch.WithAPIKey(os.Getenv("SEMSEARCH_API_KEY")),
//	)
//
//	similar, _ := client.Similar(ctx, "documents", "doc-42", semsearch.SimilarParams{
//	    Limit:     5,
//	    Threshold: 0.8,
//	})
//
//	res, _ := client.HybridSearch(ctx, "flight manifests", semsearch.HybridParams{
//	    Types:   []string{"document", "entity"},
//	    Filters: map[string]string{"source": "court"},
//	})
//
// Failures map to sentinel errors (ErrItemNotFound, ErrSearchUnavailable, ...)
// checkable with errors.Is.
package semsearch
