// Package request holds validated, clamped search query parameters.
package request

import (
	"fmt"

	"github.com/archivio/semsearch/internal/domain"
)

// Search parameter limits. Out-of-range limit and threshold values are
// clamped rather than rejected: the parameters have sane defaults and a
// forgiving contract keeps UI-driven callers working.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultLimit   = 10
	MaxLimit       = 100

	// CandidateMultiplier is how many candidates per requested result are
	// fetched from the index to leave room for post-filtering.
	CandidateMultiplier = 4
	// MaxCandidates caps the KNN fetch to bound index latency.
	MaxCandidates = 200
)

// ThresholdUnset marks an absent similarity_threshold parameter;
// the per-collection configured default applies.
const ThresholdUnset = -1.0

// Request is a validated hybrid search query.
type Request struct {
	query     string
	limit     int
	threshold float64
	kinds     []domain.Kind
	filters   map[string]string
}

// New validates and normalizes search parameters.
// limit is clamped to [1,MaxLimit] (non-positive means DefaultLimit);
// threshold is clamped to [0,1], with any negative value treated as unset.
// kinds nil means all collections.
func New(
	query string,
	limit int,
	threshold float64,
	kinds []domain.Kind,
	filters map[string]string,
) (Request, error) {
	if query == "" {
		return Request{}, fmt.Errorf("%w: query is required", domain.ErrInvalidParameter)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidParameter, MaxQueryLength)
	}
	for _, k := range kinds {
		if !k.IsValid() {
			return Request{}, fmt.Errorf("%w: invalid collection kind %q", domain.ErrInvalidParameter, k)
		}
	}

	return Request{
		query:     query,
		limit:     clampLimit(limit, MaxLimit),
		threshold: clampThreshold(threshold),
		kinds:     kinds,
		filters:   filters,
	}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }

// Threshold returns the minimum normalized similarity, or ThresholdUnset.
func (r *Request) Threshold() float64 { return r.threshold }

// Kinds returns the requested collection kinds (nil = all).
func (r *Request) Kinds() []domain.Kind { return r.kinds }

// Filters returns the metadata filters (exact match per key).
func (r *Request) Filters() map[string]string { return r.filters }

// CandidateK returns how many nearest neighbors to fetch from the index:
// limit times CandidateMultiplier, capped at MaxCandidates.
func (r *Request) CandidateK() int {
	return candidateK(r.limit)
}

func candidateK(limit int) int {
	k := limit * CandidateMultiplier
	if k > MaxCandidates {
		k = MaxCandidates
	}
	if k < limit {
		k = limit
	}
	return k
}

func clampLimit(limit, maxLimit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func clampThreshold(t float64) float64 {
	if t < 0 {
		return ThresholdUnset
	}
	if t > 1 {
		return 1
	}
	return t
}
