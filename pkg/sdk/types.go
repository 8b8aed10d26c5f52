package semsearch

// SimilarItem is one ranked search hit.
type SimilarItem struct {
	ID       string            `json:"id"`
	Kind     string            `json:"kind"`
	Score    float64           `json:"score"`
	Excerpt  string            `json:"excerpt,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SimilarResponse is the result of a find-similar query.
type SimilarResponse struct {
	SourceItemID string        `json:"source_item_id"`
	SimilarItems []SimilarItem `json:"similar_items"`
	TotalFound   int           `json:"total_found"`
	SearchTimeMS int64         `json:"search_time_ms"`
}

// FiltersApplied echoes the constraints the server actually applied,
// including collections that failed and were skipped.
type FiltersApplied struct {
	Types             []string          `json:"types,omitempty"`
	Filters           map[string]string `json:"filters,omitempty"`
	Threshold         *float64          `json:"similarity_threshold,omitempty"`
	FailedCollections []string          `json:"failed_collections,omitempty"`
}

// HybridResponse is the result of a hybrid search across collections.
type HybridResponse struct {
	Query          string         `json:"query"`
	Results        []SimilarItem  `json:"results"`
	Total          int            `json:"total"`
	Facets         map[string]int `json:"facets"`
	FiltersApplied FiltersApplied `json:"filters_applied"`
	SearchTimeMS   int64          `json:"search_time_ms"`
}

// Item is a stored catalog item.
type Item struct {
	ID       string            `json:"id"`
	Kind     string            `json:"kind"`
	Origin   string            `json:"origin"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HealthReport is the service health summary.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// SimilarParams are optional find-similar parameters. Zero values mean
// server defaults.
type SimilarParams struct {
	Limit     int
	Threshold float64 // ignored unless > 0
	Filters   map[string]string
}

// HybridParams are optional hybrid search parameters.
type HybridParams struct {
	Limit     int
	Threshold float64 // ignored unless > 0
	Types     []string
	Filters   map[string]string
}
