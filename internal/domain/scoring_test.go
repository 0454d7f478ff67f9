package domain

import (
	"math"
	"testing"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name           string
		signals        Signals
		expectPositive bool
	}{
		{
			name:           "all zero",
			signals:        Signals{},
			expectPositive: false,
		},
		{
			name:           "sales only",
			signals:        Signals{Sales: 120},
			expectPositive: true,
		},
		{
			name:           "rating only",
			signals:        Signals{Rating: 4.5},
			expectPositive: true,
		},
		{
			name:           "negative inputs clamp to zero",
			signals:        Signals{Sales: -10, Rating: -3, Trend: -1},
			expectPositive: false,
		},
		{
			name:           "nan rating",
			signals:        Signals{Rating: math.NaN()},
			expectPositive: false,
		},
		{
			name:           "infinite trend",
			signals:        Signals{Trend: math.Inf(1)},
			expectPositive: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := Score(tt.signals)

			if math.IsNaN(score) || math.IsInf(score, 0) {
				t.Fatalf("Score() = %v, want finite", score)
			}
			if score < 0 {
				t.Errorf("Score() = %v, want >= 0", score)
			}
			if tt.expectPositive && score <= 0 {
				t.Errorf("Expected positive score, got %f", score)
			}
			if !tt.expectPositive && score != 0 {
				t.Errorf("Expected zero score, got %f", score)
			}
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	s := Signals{Sales: 120, Rating: 4.5, Trend: 3}
	if Score(s) != Score(s) {
		t.Error("Score() returned different values for the same input")
	}
}

func TestScoreIsMonotonic(t *testing.T) {
	base := Signals{Sales: 100, Rating: 3, Trend: 10}
	baseScore := Score(base)

	bumps := map[string]Signals{
		"sales":  {Sales: 101, Rating: 3, Trend: 10},
		"rating": {Sales: 100, Rating: 3.5, Trend: 10},
		"trend":  {Sales: 100, Rating: 3, Trend: 11},
	}
	for name, s := range bumps {
		if Score(s) < baseScore {
			t.Errorf("raising %s lowered the score: %f < %f", name, Score(s), baseScore)
		}
	}

	// Rating above the scale is capped, not rewarded.
	if Score(Signals{Rating: 50}) != Score(Signals{Rating: MaxRating}) {
		t.Error("rating above MaxRating should be clamped")
	}
}

func TestScoreSalesAreCompressed(t *testing.T) {
	small := Score(Signals{Sales: 1_000})
	huge := Score(Signals{Sales: 1_000_000})
	if huge > small*3 {
		t.Errorf("sales weighting is not logarithmic: 1k=%f 1M=%f", small, huge)
	}
}

func TestRank(t *testing.T) {
	candidates := []Candidate{
		{ExternalID: "b", Signals: Signals{Sales: 10}},
		{ExternalID: "a", Signals: Signals{Sales: 10}},
		{ExternalID: "top", Signals: Signals{Sales: 5000, Rating: 5}},
		{ExternalID: "zero"},
	}

	ranked := Rank(candidates)

	want := []string{"top", "a", "b", "zero"}
	if len(ranked) != len(want) {
		t.Fatalf("Rank() returned %d items, want %d", len(ranked), len(want))
	}
	for i, id := range want {
		if ranked[i].Candidate.ExternalID != id {
			t.Errorf("rank %d = %s, want %s", i, ranked[i].Candidate.ExternalID, id)
		}
	}
}

func TestRankIsReproducible(t *testing.T) {
	candidates := []Candidate{
		{ExternalID: "x", Signals: Signals{Sales: 3}},
		{ExternalID: "y", Signals: Signals{Sales: 3}},
		{ExternalID: "w", Signals: Signals{Sales: 7, Rating: 1}},
	}
	first := Rank(candidates)
	reversed := []Candidate{candidates[2], candidates[1], candidates[0]}
	second := Rank(reversed)

	for i := range first {
		if first[i].Candidate.ExternalID != second[i].Candidate.ExternalID {
			t.Errorf("position %d differs: %s vs %s", i, first[i].Candidate.ExternalID, second[i].Candidate.ExternalID)
		}
	}
}

func TestTopK(t *testing.T) {
	ranked := Rank([]Candidate{{ExternalID: "1"}, {ExternalID: "2"}, {ExternalID: "3"}})

	if got := len(TopK(ranked, 2)); got != 2 {
		t.Errorf("TopK(2) = %d items, want 2", got)
	}
	if got := len(TopK(ranked, 0)); got != 3 {
		t.Errorf("TopK(0) = %d items, want 3", got)
	}
	if got := len(TopK(ranked, 10)); got != 3 {
		t.Errorf("TopK(10) = %d items, want 3", got)
	}
}
