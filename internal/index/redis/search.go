package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/archivio/semsearch/internal/index"
)

// EnsureIndex creates the collection's FT index if it does not exist yet.
// HNSW with COSINE metric; FT.SEARCH then reports the KNN score as cosine
// distance in [0,2].
func (s *Store) EnsureIndex(ctx context.Context, def *index.Definition) error {
	if def.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if def.VectorDim <= 0 {
		return fmt.Errorf("vector dimension must be positive")
	}

	args := []string{
		s.indexName(def.Collection),
		"ON", "HASH",
		"PREFIX", "1", s.docPrefix(def.Collection),
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW",
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(def.VectorDim),
		"DISTANCE_METRIC", "COSINE",
	}
	if def.HNSWM > 0 {
		attrs = append(attrs, "M", strconv.Itoa(def.HNSWM))
	}
	if def.EFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(def.EFConstruct))
	}
	args = append(args, strconv.Itoa(len(attrs)))
	args = append(args, attrs...)

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return &index.Error{Op: index.OpCreateIndex, Err: err}
	}
	return nil
}

// QueryByVector runs a KNN search via FT.SEARCH and returns hits with their
// raw backend scores.
func (s *Store) QueryByVector(
	ctx context.Context, collection string, vector []float32, k int,
) (*index.Result, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @%s $BLOB]", k, fieldVector)

	args := []string{
		s.indexName(collection), queryStr,
		"RETURN", "4", scoreField, fieldText, fieldOrigin, fieldMeta,
		"LIMIT", "0", strconv.Itoa(k),
		"PARAMS", "2", "BLOB", vectorToBlob(vector),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &index.Error{Op: index.OpSearch, Err: err}
	}

	return parseKNNResult(raw, s.docPrefix(collection))
}

// parseKNNResult decodes the RESP2 FT.SEARCH reply:
// [total, key1, fields1, key2, fields2, ...] (2-stride).
func parseKNNResult(raw []rueidis.RedisMessage, keyPrefix string) (*index.Result, error) {
	if len(raw) == 0 {
		return &index.Result{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &index.Result{}, nil
	}

	entries := make([]index.Entry, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fieldMsgs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(fieldMsgs)

		entry := index.Entry{
			ID:     trimPrefix(key, keyPrefix),
			Text:   fields[fieldText],
			Origin: fields[fieldOrigin],
		}

		if scoreStr, ok := fields[scoreField]; ok {
			if sc, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				entry.RawScore = sc
			}
		}

		if meta := fields[fieldMeta]; meta != "" {
			if err := json.Unmarshal([]byte(meta), &entry.Metadata); err != nil {
				// Corrupt metadata is not worth losing the hit over.
				entry.Metadata = nil
			}
		}

		entries = append(entries, entry)
	}

	return &index.Result{Total: int(total), Entries: entries}, nil
}

// parseFieldPairs converts a flat [k1, v1, k2, v2, ...] reply into a map.
func parseFieldPairs(msgs []rueidis.RedisMessage) map[string]string {
	fields := make(map[string]string, len(msgs)/2)
	for i := 0; i+1 < len(msgs); i += 2 {
		k, err := msgs[i].ToString()
		if err != nil {
			continue
		}
		v, err := msgs[i+1].ToString()
		if err != nil {
			continue
		}
		fields[k] = v
	}
	return fields
}

func trimPrefix(key, prefix string) string {
	if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}
