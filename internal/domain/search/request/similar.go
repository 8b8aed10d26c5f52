package request

// Similar-search parameter limits. "Find similar" pages show short lists,
// so the ceiling is tighter than for hybrid search.
const (
	DefaultSimilarLimit = 10
	MaxSimilarLimit     = 20
)

// SimilarRequest is a validated "find similar to item" query.
type SimilarRequest struct {
	limit     int
	threshold float64
	filters   map[string]string
}

// NewSimilar validates and normalizes similar-search parameters.
// limit is clamped to [1,MaxSimilarLimit]; threshold as in New.
func NewSimilar(limit int, threshold float64, filters map[string]string) SimilarRequest {
	l := limit
	if l <= 0 {
		l = DefaultSimilarLimit
	}
	if l > MaxSimilarLimit {
		l = MaxSimilarLimit
	}
	return SimilarRequest{
		limit:     l,
		threshold: clampThreshold(threshold),
		filters:   filters,
	}
}

// Limit returns the maximum results to return.
func (r *SimilarRequest) Limit() int { return r.limit }

// Threshold returns the minimum normalized similarity, or ThresholdUnset.
func (r *SimilarRequest) Threshold() float64 { return r.threshold }

// Filters returns the metadata filters (exact match per key).
func (r *SimilarRequest) Filters() map[string]string { return r.filters }

// CandidateK returns how many nearest neighbors to fetch. One extra slot is
// reserved because the source item is its own nearest neighbor and gets
// excluded from the results.
func (r *SimilarRequest) CandidateK() int {
	return candidateK(r.limit) + 1
}
