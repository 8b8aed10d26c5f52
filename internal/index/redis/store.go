package redis

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/archivio/semsearch/internal/index"
)

// Hash field names for stored items. The vector lives in its own binary
// field; metadata is a single JSON blob so arbitrary keys survive without
// schema changes.
const (
	fieldVector = "embedding"
	fieldText   = "text"
	fieldOrigin = "origin"
	fieldMeta   = "meta"
)

// scoreField is the KNN score alias FT.SEARCH derives from the vector field name.
const scoreField = "__" + fieldVector + "_score"

// Upsert stores one item hash: vector blob, text, origin tag and metadata JSON.
func (s *Store) Upsert(ctx context.Context, collection string, doc *index.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if len(doc.Vector) == 0 {
		return fmt.Errorf("document vector is required")
	}

	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	cmd := s.b().Hset().Key(s.docKey(collection, doc.ID)).FieldValue().
		FieldValue(fieldVector, vectorToBlob(doc.Vector)).
		FieldValue(fieldText, doc.Text).
		FieldValue(fieldOrigin, doc.Origin).
		FieldValue(fieldMeta, string(meta)).
		Build()

	if err := s.do(ctx, cmd).Error(); err != nil {
		return &index.Error{Op: index.OpHSet, Err: err}
	}
	return nil
}

// Get fetches one stored item. Returns index.ErrKeyNotFound when absent.
func (s *Store) Get(ctx context.Context, collection, id string) (*index.Record, error) {
	cmd := s.b().Hgetall().Key(s.docKey(collection, id)).Build()
	fields, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &index.Error{Op: index.OpHGetAll, Err: err}
	}
	if len(fields) == 0 {
		return nil, index.ErrKeyNotFound
	}

	rec := &index.Record{
		ID:     id,
		Text:   fields[fieldText],
		Origin: fields[fieldOrigin],
	}

	if blob, ok := fields[fieldVector]; ok && blob != "" {
		vec, err := blobToVector(blob)
		if err != nil {
			return nil, fmt.Errorf("parse stored vector for %s: %w", id, err)
		}
		rec.Vector = vec
	}

	if meta := fields[fieldMeta]; meta != "" {
		if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("parse stored metadata for %s: %w", id, err)
		}
	}

	return rec, nil
}

// Delete removes a stored item. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	cmd := s.b().Del().Key(s.docKey(collection, id)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &index.Error{Op: index.OpDel, Err: err}
	}
	return nil
}

// vectorToBlob encodes a vector as little-endian float32 bytes for HSET.
func vectorToBlob(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// blobToVector decodes a little-endian float32 blob.
func blobToVector(data string) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(data[i*4 : i*4+4])))
	}
	return vec, nil
}
