package domain

import "errors"

var (
	// ErrItemNotFound signals a missing source item in its collection.
	ErrItemNotFound = errors.New("item not found")
	// ErrCollectionNotFound signals an unknown collection name.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrInvalidParameter signals a malformed request parameter.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrEmbeddingUnavailable signals that the embedding provider could not be
	// loaded or reached.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrCollectionUnavailable signals that one collection's index is
	// unreachable or timed out. Recovered locally by the hybrid coordinator.
	ErrCollectionUnavailable = errors.New("collection unavailable")
	// ErrAllCollectionsUnavailable signals that every queried collection failed.
	ErrAllCollectionsUnavailable = errors.New("all collections unavailable")
)
