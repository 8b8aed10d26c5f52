package domain

import (
	"fmt"
	"strings"
)

// Kind identifies the collection an item belongs to.
type Kind string

// Collection kinds.
const (
	KindDocument     Kind = "document"
	KindEntity       Kind = "entity"
	KindRelationship Kind = "relationship"
)

// AllKinds returns every known collection kind in canonical order.
func AllKinds() []Kind {
	return []Kind{KindDocument, KindEntity, KindRelationship}
}

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	return k == KindDocument || k == KindEntity || k == KindRelationship
}

// ParseKind resolves a kind name. Short forms (doc, rel) used by the web UI
// are accepted alongside canonical names.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "document", "doc", "documents":
		return KindDocument, nil
	case "entity", "entities":
		return KindEntity, nil
	case "relationship", "rel", "relationships":
		return KindRelationship, nil
	default:
		return "", fmt.Errorf("%w: unknown collection kind %q", ErrInvalidParameter, s)
	}
}

// ParseKinds parses a comma-separated kind list (the "type" query parameter).
// An empty input means no restriction and returns nil. Duplicates collapse.
func ParseKinds(s string) ([]Kind, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	seen := make(map[Kind]struct{})
	var kinds []Kind
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := ParseKind(part)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
