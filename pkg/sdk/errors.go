package semsearch

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped from API error codes. Use errors.Is() to check.
var (
	ErrItemNotFound         = errors.New("semsearch: item not found")
	ErrCollectionNotFound   = errors.New("semsearch: collection not found")
	ErrInvalidParameter     = errors.New("semsearch: invalid parameter")
	ErrEmbeddingUnavailable = errors.New("semsearch: embedding unavailable")
	ErrSearchUnavailable    = errors.New("semsearch: search temporarily unavailable")
	ErrUnauthorized         = errors.New("semsearch: unauthorized")
)

// APIError carries the raw error body of a failed request. It wraps the
// matching sentinel, so errors.Is works on both.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("semsearch: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "item_not_found":
		return ErrItemNotFound
	case "collection_not_found":
		return ErrCollectionNotFound
	case "invalid_parameter":
		return ErrInvalidParameter
	case "embedding_unavailable":
		return ErrEmbeddingUnavailable
	case "search_unavailable":
		return ErrSearchUnavailable
	default:
		if e.StatusCode == 401 {
			return ErrUnauthorized
		}
		return nil
	}
}
