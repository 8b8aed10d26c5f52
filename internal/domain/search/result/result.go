// Package result holds search hit value objects.
package result

import (
	"strings"
	"unicode/utf8"

	"github.com/archivio/semsearch/internal/domain"
)

// ExcerptLength is how many runes of the matched item's text are carried
// into a result.
const ExcerptLength = 200

// Result is a single ranked search hit. Created fresh per query, never
// persisted.
type Result struct {
	itemID    string
	kind      domain.Kind
	rawScore  float64
	normScore float64
	excerpt   string
	metadata  map[string]string
	origin    domain.ContentOrigin
}

// New creates a search result. normScore must already be on the common
// [0,1] scale.
func New(
	itemID string,
	kind domain.Kind,
	rawScore, normScore float64,
	excerpt string,
	metadata map[string]string,
	origin domain.ContentOrigin,
) Result {
	return Result{
		itemID:    itemID,
		kind:      kind,
		rawScore:  rawScore,
		normScore: normScore,
		excerpt:   excerpt,
		metadata:  metadata,
		origin:    origin,
	}
}

// ItemID returns the matched item's identifier.
func (r *Result) ItemID() string { return r.itemID }

// Kind returns the collection kind the hit came from.
func (r *Result) Kind() domain.Kind { return r.kind }

// RawScore returns the backend-native score (scale depends on the index).
func (r *Result) RawScore() float64 { return r.rawScore }

// NormalizedScore returns the similarity on the common [0,1] scale.
func (r *Result) NormalizedScore() float64 { return r.normScore }

// Excerpt returns a short snippet of the matched item's text.
func (r *Result) Excerpt() string { return r.excerpt }

// Metadata returns the passthrough item metadata.
func (r *Result) Metadata() map[string]string { return r.metadata }

// Origin reports whether the match came from real or synthetic content.
func (r *Result) Origin() domain.ContentOrigin { return r.origin }

// Before reports the per-collection ranking order: normalized score
// descending, item id ascending on ties. Deterministic for reproducible
// result pages.
func (r *Result) Before(other *Result) bool {
	if r.normScore != other.normScore {
		return r.normScore > other.normScore
	}
	return r.itemID < other.itemID
}

// BeforeMerged reports the cross-collection merge order: normalized score
// descending, then kind, then item id.
func (r *Result) BeforeMerged(other *Result) bool {
	if r.normScore != other.normScore {
		return r.normScore > other.normScore
	}
	if r.kind != other.kind {
		return r.kind < other.kind
	}
	return r.itemID < other.itemID
}

// Excerpt trims text to at most n runes, collapsing the cut on a rune
// boundary and appending an ellipsis when truncated.
func Excerpt(text string, n int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "…"
}
