package domain

import (
	"errors"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"document", KindDocument},
		{"doc", KindDocument},
		{"documents", KindDocument},
		{"Entity", KindEntity},
		{"entities", KindEntity},
		{"relationship", KindRelationship},
		{"rel", KindRelationship},
		{" doc ", KindDocument},
	}
	for _, tc := range tests {
		got, err := ParseKind(tc.in)
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseKind_Unknown(t *testing.T) {
	_, err := ParseKind("flight")
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds("doc,entity,doc")
	if err != nil {
		t.Fatalf("ParseKinds: %v", err)
	}
	if len(kinds) != 2 {
		t.Fatalf("expected duplicates collapsed to 2 kinds, got %d", len(kinds))
	}
	if kinds[0] != KindDocument || kinds[1] != KindEntity {
		t.Errorf("unexpected kinds: %v", kinds)
	}
}

func TestParseKinds_Empty(t *testing.T) {
	kinds, err := ParseKinds("  ")
	if err != nil {
		t.Fatalf("ParseKinds: %v", err)
	}
	if kinds != nil {
		t.Errorf("expected nil for empty input, got %v", kinds)
	}
}

func TestParseKinds_Invalid(t *testing.T) {
	if _, err := ParseKinds("doc,banana"); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}
