// Package scale converts backend-native similarity scores to a common
// [0,1] range so results from different collections are comparable on one
// merged list.
package scale

import "fmt"

// Scale identifies the native score scale of a collection index.
type Scale string

// Supported score scales.
const (
	// CosineSimilarity is cosine similarity in [-1,1] (1 = identical).
	CosineSimilarity Scale = "cosine"
	// CosineDistance is cosine distance in [0,2] (0 = identical), the
	// native FT.SEARCH KNN score for a COSINE metric.
	CosineDistance Scale = "cosine_distance"
	// L2Distance is Euclidean distance in [0,inf) (0 = identical).
	L2Distance Scale = "l2"
	// Unit is an already-normalized similarity in [0,1], passed through.
	Unit Scale = "unit"
)

// IsValid checks if the scale is one of the supported values.
func (s Scale) IsValid() bool {
	return s == CosineSimilarity || s == CosineDistance || s == L2Distance || s == Unit
}

// Parse resolves a scale name from configuration.
func Parse(s string) (Scale, error) {
	sc := Scale(s)
	if !sc.IsValid() {
		return "", fmt.Errorf("unknown score scale %q", s)
	}
	return sc, nil
}

// Normalize converts a raw backend score to [0,1], 1 = most similar.
// Formulas per scale:
//
//	cosine:          (raw + 1) / 2
//	cosine_distance: 1 - raw/2
//	l2:              1 / (1 + raw)
//	unit:            raw
//
// The output is clamped to [0,1] to absorb backend rounding noise.
func (s Scale) Normalize(raw float64) float64 {
	var v float64
	switch s {
	case CosineSimilarity:
		v = (raw + 1) / 2
	case CosineDistance:
		v = 1 - raw/2
	case L2Distance:
		v = 1 / (1 + raw)
	case Unit:
		v = raw
	default:
		v = raw
	}
	return clamp01(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
