// Package index defines the nearest-neighbor index contract the search core
// consumes. The index itself is an external capability: this package only
// describes how to insert, query by vector and fetch stored records, never
// how vectors are stored or searched.
package index

import (
	"context"
	"time"
)

// Client is the per-backend collection index facade.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Client interface {
	Writer
	Querier
	Reader
	Pinger
	EnsureIndex(ctx context.Context, def *Definition) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// Writer inserts and removes items.
type Writer interface {
	Upsert(ctx context.Context, collection string, doc *Document) error
	Delete(ctx context.Context, collection, id string) error
}

// Querier runs nearest-neighbor queries.
type Querier interface {
	QueryByVector(ctx context.Context, collection string, vector []float32, k int) (*Result, error)
}

// Reader fetches stored records by id.
type Reader interface {
	Get(ctx context.Context, collection, id string) (*Record, error)
}

// Pinger checks index backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Definition describes one collection's index.
type Definition struct {
	Collection  string
	VectorDim   int
	HNSWM       int
	EFConstruct int
}

// Document is the insert payload for one item.
type Document struct {
	ID       string
	Vector   []float32
	Text     string
	Origin   string
	Metadata map[string]string
}

// Record is a stored item as returned by Get.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Origin   string
	Metadata map[string]string
}

// Entry is a single hit from a vector query. RawScore is on the backend's
// native scale; interpreting it is the caller's job.
type Entry struct {
	ID       string
	RawScore float64
	Text     string
	Origin   string
	Metadata map[string]string
}

// Result is the output of a vector query.
type Result struct {
	Total   int
	Entries []Entry
}
