package round

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/planning-poker/internal/apperr"
	"github.com/foxseedlab/planning-poker/internal/repository"
)

func TestParseCard(t *testing.T) {
	tests := []struct {
		in      string
		want    Card
		numeric bool
		invalid bool
	}{
		{in: "5", want: "5", numeric: true},
		{in: " 0.5 ", want: "0.5", numeric: true},
		{in: "13", want: "13", numeric: true},
		{in: "?", want: "?"},
		{in: "coffee", want: "coffee"},
		{in: "", invalid: true},
		{in: "   ", invalid: true},
		{in: "NaN", invalid: true},
		{in: "+Inf", invalid: true},
		{in: "infinity", invalid: true},
		{in: "1e3", want: "1e3", numeric: true},
		{in: "1.5e-11", want: "1.5e-11", numeric: true},
		{in: "1e-200000000", invalid: true},
		{in: "1e999999999", invalid: true},
		{in: "0.0000000000000001", invalid: true},
		{in: strings.Repeat("9", 33), invalid: true},
		{in: "1e99999999999", want: "1e99999999999"},
	}
	for _, tt := range tests {
		got, err := ParseCard(tt.in)
		if tt.invalid {
			if !errors.Is(err, apperr.ErrInvalidInput) {
				t.Fatalf("ParseCard(%q) error = %v, want invalid input", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseCard(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want || got.IsNumeric() != tt.numeric {
			t.Fatalf("ParseCard(%q) = %q numeric=%v, want %q numeric=%v", tt.in, got, got.IsNumeric(), tt.want, tt.numeric)
		}
	}
}

func entries(values ...string) []TallyEntry {
	out := make([]TallyEntry, 0, len(values))
	for _, v := range values {
		out = append(out, TallyEntry{Value: v})
	}
	return out
}

func TestPolicySummarize_Mean(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		values []string
		mean   string
	}{
		{"two votes", DefaultPolicy(), []string{"3", "8"}, "5.5"},
		{"rounds half up", DefaultPolicy(), []string{"1", "2", "2"}, "1.7"},
		{"zero places", Policy{RoundingPlaces: 0, ExcludeNonNumeric: true}, []string{"2", "3"}, "3"},
		{"markers excluded", DefaultPolicy(), []string{"5", "coffee", "8", "?"}, "6.5"},
		{"markers poison mean", Policy{RoundingPlaces: 1}, []string{"5", "coffee"}, ""},
		{"no numeric votes", DefaultPolicy(), []string{"?"}, ""},
		{"no votes", DefaultPolicy(), nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.policy.Summarize(repository.EstimationModeMean, entries(tt.values...))
			if s.Result() != tt.mean {
				t.Fatalf("mean = %q, want %q", s.Result(), tt.mean)
			}
			if s.VoteCount != len(tt.values) || s.NumericCount+s.NonNumericCount != len(tt.values) {
				t.Fatalf("unexpected counts: %+v", s)
			}
		})
	}
}

func TestPolicySummarize_Unanimity(t *testing.T) {
	p := DefaultPolicy()

	s := p.Summarize(repository.EstimationModeUnanimity, entries("5", "5.0", "5"))
	if !s.Consensus || s.Result() != "5" {
		t.Fatalf("expected consensus on 5, got %+v", s)
	}
	s = p.Summarize(repository.EstimationModeUnanimity, entries("5", "8"))
	if s.Consensus || s.Result() != "" {
		t.Fatalf("expected no consensus, got %+v", s)
	}
	s = p.Summarize(repository.EstimationModeUnanimity, entries("coffee", "coffee"))
	if !s.Consensus || s.Agreed != "coffee" {
		t.Fatalf("expected consensus on coffee, got %+v", s)
	}
	s = p.Summarize(repository.EstimationModeUnanimity, nil)
	if s.Consensus {
		t.Fatal("an empty round has no consensus")
	}
}

func TestPolicySummarize_OutOfRangeFacesAreMarkers(t *testing.T) {
	done := make(chan Summary, 1)
	go func() {
		done <- DefaultPolicy().Summarize(repository.EstimationModeMean, entries("5", "1e-200000000", "1e999999999"))
	}()

	select {
	case s := <-done:
		if s.NumericCount != 1 || s.NonNumericCount != 2 || s.Result() != "5" {
			t.Fatalf("unexpected summary: %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("summarizing out-of-range faces did not finish")
	}

	s := DefaultPolicy().Summarize(repository.EstimationModeUnanimity, entries("5", "5e-200000000"))
	if s.Consensus {
		t.Fatalf("expected no consensus, got %+v", s)
	}
}
