package domain

import (
	"math"
	"sort"
)

const (
	// Scoring weights. Sales dominate through a log10 transform so a single
	// high-volume outlier does not swamp the ranking.
	ScoreSalesWeight  = 10.0
	ScoreRatingWeight = 2.0
	ScoreTrendWeight  = 1.0

	// MaxRating is the upper bound of the rating scale.
	MaxRating = 5.0
)

// Scored pairs a candidate with its score.
type Scored struct {
	Candidate Candidate
	Score     float64
}

// Score computes the desirability of a product. It is pure, never negative
// and always finite.
func Score(s Signals) float64 {
	sales := clamp(float64(s.Sales), 0, math.MaxFloat64)
	rating := clamp(s.Rating, 0, MaxRating)
	trend := clamp(s.Trend, 0, math.MaxFloat64)

	total := math.Log10(sales+1)*ScoreSalesWeight +
		rating*ScoreRatingWeight +
		math.Log10(trend+1)*ScoreTrendWeight

	return SanitizeScore(total)
}

// SanitizeScore maps NaN, infinities and negatives to 0.
func SanitizeScore(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, -1) || v < lo {
		return lo
	}
	if math.IsInf(v, 1) || v > hi {
		return hi
	}
	return v
}

// Rank scores every candidate and orders them by score desc, then sales desc,
// then external id asc.
func Rank(candidates []Candidate) []Scored {
	ranked := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, Scored{Candidate: c, Score: Score(c.Signals)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Candidate.Signals.Sales != b.Candidate.Signals.Sales {
			return a.Candidate.Signals.Sales > b.Candidate.Signals.Sales
		}
		return a.Candidate.ExternalID < b.Candidate.ExternalID
	})

	return ranked
}

// TopK truncates a ranked slice. k <= 0 keeps everything.
func TopK(ranked []Scored, k int) []Scored {
	if k <= 0 || len(ranked) <= k {
		return ranked
	}
	return ranked[:k]
}
