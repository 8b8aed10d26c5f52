package result

import (
	"strings"
	"testing"

	"github.com/archivio/semsearch/internal/domain"
)

func TestBefore_TieBreakByID(t *testing.T) {
	a := New("a", domain.KindDocument, 0.1, 0.8, "", nil, domain.OriginReal)
	b := New("b", domain.KindDocument, 0.1, 0.8, "", nil, domain.OriginReal)
	c := New("c", domain.KindDocument, 0.3, 0.9, "", nil, domain.OriginReal)

	if !c.Before(&a) {
		t.Error("higher score must rank first")
	}
	if !a.Before(&b) {
		t.Error("equal scores must break by item id ascending")
	}
	if b.Before(&a) {
		t.Error("tie-break must be asymmetric")
	}
}

func TestBeforeMerged_KindThenID(t *testing.T) {
	doc := New("x", domain.KindDocument, 0, 0.7, "", nil, domain.OriginReal)
	ent := New("x", domain.KindEntity, 0, 0.7, "", nil, domain.OriginReal)

	if !doc.BeforeMerged(&ent) {
		t.Error("equal scores must break by kind ascending (document < entity)")
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt("  short text ", 50); got != "short text" {
		t.Errorf("Excerpt = %q", got)
	}

	long := strings.Repeat("й", 300)
	got := Excerpt(long, 200)
	if len([]rune(got)) != 201 { // 200 runes + ellipsis
		t.Errorf("truncated excerpt rune length = %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("truncated excerpt must end with ellipsis")
	}
}
