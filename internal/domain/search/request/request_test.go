package request

import (
	"errors"
	"strings"
	"testing"

	"github.com/archivio/semsearch/internal/domain"
)

func TestNew_Defaults(t *testing.T) {
	r, err := New("epstein flight logs", 0, ThresholdUnset, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Limit() != DefaultLimit {
		t.Errorf("limit = %d, want default %d", r.Limit(), DefaultLimit)
	}
	if r.Threshold() != ThresholdUnset {
		t.Errorf("threshold = %v, want unset", r.Threshold())
	}
	if r.Kinds() != nil {
		t.Errorf("kinds = %v, want nil", r.Kinds())
	}
}

func TestNew_Clamping(t *testing.T) {
	tests := []struct {
		name          string
		limit         int
		threshold     float64
		wantLimit     int
		wantThreshold float64
	}{
		{"limit over max", 500, 0.5, MaxLimit, 0.5},
		{"limit zero", 0, 0.5, DefaultLimit, 0.5},
		{"limit negative", -3, 0.5, DefaultLimit, 0.5},
		{"threshold over one", 10, 1.7, 10, 1},
		{"threshold negative means unset", 10, -0.2, 10, ThresholdUnset},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := New("q", tc.limit, tc.threshold, nil, nil)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if r.Limit() != tc.wantLimit {
				t.Errorf("limit = %d, want %d", r.Limit(), tc.wantLimit)
			}
			if r.Threshold() != tc.wantThreshold {
				t.Errorf("threshold = %v, want %v", r.Threshold(), tc.wantThreshold)
			}
		})
	}
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New("", 10, 0, nil, nil); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("empty query: expected ErrInvalidParameter, got %v", err)
	}
	long := strings.Repeat("x", MaxQueryLength+1)
	if _, err := New(long, 10, 0, nil, nil); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("long query: expected ErrInvalidParameter, got %v", err)
	}
	if _, err := New("q", 10, 0, []domain.Kind{"flight"}, nil); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("bad kind: expected ErrInvalidParameter, got %v", err)
	}
}

func TestCandidateK(t *testing.T) {
	tests := []struct {
		limit, want int
	}{
		{5, 20},
		{10, 40},
		{50, 200},
		{100, 200}, // capped
	}
	for _, tc := range tests {
		r, err := New("q", tc.limit, 0, nil, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if got := r.CandidateK(); got != tc.want {
			t.Errorf("CandidateK(limit=%d) = %d, want %d", tc.limit, got, tc.want)
		}
	}
}

func TestNewSimilar_Clamping(t *testing.T) {
	r := NewSimilar(100, 0.3, nil)
	if r.Limit() != MaxSimilarLimit {
		t.Errorf("limit = %d, want %d", r.Limit(), MaxSimilarLimit)
	}

	r = NewSimilar(0, -1, nil)
	if r.Limit() != DefaultSimilarLimit {
		t.Errorf("limit = %d, want %d", r.Limit(), DefaultSimilarLimit)
	}
	if r.Threshold() != ThresholdUnset {
		t.Errorf("threshold = %v, want unset", r.Threshold())
	}
}

func TestNewSimilar_CandidateKReservesSourceSlot(t *testing.T) {
	r := NewSimilar(5, 0, nil)
	if got := r.CandidateK(); got != 21 {
		t.Errorf("CandidateK = %d, want 21", got)
	}
}
