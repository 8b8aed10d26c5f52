package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ContentOrigin tags whether an item's embedding text came from real
// extracted content or was synthesized from metadata. Synthetic matches are
// metadata-only and carry lower precision; callers see the tag in result
// metadata so they can tell the two apart.
type ContentOrigin string

// Content origins.
const (
	OriginReal      ContentOrigin = "real"
	OriginSynthetic ContentOrigin = "synthetic"
)

// MetadataOriginKey is the result metadata key carrying the content origin.
const MetadataOriginKey = "content_origin"

// Item is a unit of content belonging to exactly one collection.
type Item struct {
	id       string
	kind     Kind
	text     string
	origin   ContentOrigin
	metadata map[string]string
}

// NewItem validates and creates an Item. When text is empty the embedding
// text falls back to a deterministic placeholder built from the metadata and
// the item is tagged OriginSynthetic.
func NewItem(id string, kind Kind, text string, metadata map[string]string) (Item, error) {
	if id == "" {
		return Item{}, fmt.Errorf("%w: item id is required", ErrInvalidParameter)
	}
	if !kind.IsValid() {
		return Item{}, fmt.Errorf("%w: invalid kind %q", ErrInvalidParameter, kind)
	}

	origin := OriginReal
	if strings.TrimSpace(text) == "" {
		text = SyntheticText(id, kind, metadata)
		origin = OriginSynthetic
	}

	return Item{id: id, kind: kind, text: text, origin: origin, metadata: metadata}, nil
}

// ID returns the item identifier, unique within its collection.
func (i *Item) ID() string { return i.id }

// Kind returns the collection kind.
func (i *Item) Kind() Kind { return i.kind }

// EmbeddingText returns the text the item is embedded from. Never empty.
func (i *Item) EmbeddingText() string { return i.text }

// Origin reports whether the embedding text is real or synthetic.
func (i *Item) Origin() ContentOrigin { return i.origin }

// Metadata returns the open key-value metadata map.
func (i *Item) Metadata() map[string]string { return i.metadata }

// wellKnownTextKeys are metadata fields that carry human-meaningful content,
// tried first when synthesizing embedding text.
var wellKnownTextKeys = []string{"title", "name", "filename", "type", "source", "description"}

// SyntheticText builds a deterministic embedding-text placeholder for items
// with no extracted content. Well-known metadata fields come first, then the
// remaining fields in sorted key order so the output is stable.
func SyntheticText(id string, kind Kind, metadata map[string]string) string {
	parts := []string{string(kind), id}

	used := make(map[string]struct{}, len(metadata))
	for _, key := range wellKnownTextKeys {
		if v := metadata[key]; v != "" {
			parts = append(parts, v)
			used[key] = struct{}{}
		}
	}

	rest := make([]string, 0, len(metadata))
	for k := range metadata {
		if _, ok := used[k]; ok {
			continue
		}
		rest = append(rest, k)
	}
	sort.Strings(rest)
	for _, k := range rest {
		if v := metadata[k]; v != "" {
			parts = append(parts, k+" "+v)
		}
	}

	return strings.Join(parts, " ")
}
