// Package eval scores predicted segmentations against gold ones at the
// span level. A predicted span counts as exact when both endpoints agree
// with a gold span, and as a prefix match when one span is a prefix of the
// other starting at the same position.
package eval

import "fmt"

// Span is one predicted or gold word occurrence, with inclusive endpoints.
type Span struct {
	Word  string
	Start int
	End   int
}

// Segmentation is the set of spans found in one sequence.
type Segmentation []Span

func (s Span) SameSpan(o Span) bool {
	return s.Start == o.Start && s.End == o.End
}

func (s Span) PrefixSpanOf(o Span) bool {
	return s.Start == o.Start && s.End <= o.End
}

func (s Span) String() string {
	return fmt.Sprintf("%s@[%d, %d]", s.Word, s.Start, s.End)
}

// MatchingStats are raw span-match counts over a prediction/gold corpus
// pair.
type MatchingStats struct {
	ExactSpanMatches  int
	PrefixSpanMatches int
	TotalPredicted    int
	TotalGold         int
}

// PRFScores are the derived precision/recall/F1 values.
type PRFScores struct {
	ExactPrecision  float64
	ExactRecall     float64
	ExactF1         float64
	PrefixPrecision float64
	PrefixRecall    float64
	PrefixF1        float64
}

// smoothing keeps the ratios defined on empty corpora.
const smoothing = 1e-8

// GetMatchingStats counts exact and prefix span matches between parallel
// lists of predicted and gold segmentations.
func GetMatchingStats(predictions, goldSegmentations []Segmentation) MatchingStats {
	var stats MatchingStats
	for i := range predictions {
		pred := predictions[i]
		gold := goldSegmentations[i]
		for _, p := range pred {
			for _, g := range gold {
				if p.SameSpan(g) {
					stats.ExactSpanMatches++
					stats.PrefixSpanMatches++
				} else if p.PrefixSpanOf(g) || g.PrefixSpanOf(p) {
					stats.PrefixSpanMatches++
				}
			}
		}
		stats.TotalPredicted += len(pred)
		stats.TotalGold += len(gold)
	}
	return stats
}

// GetPRFScores derives precision, recall and F1 from raw matching stats.
func GetPRFScores(stats MatchingStats) PRFScores {
	f1 := func(p, r float64) float64 {
		return 2 * p * r / (p + r + smoothing)
	}

	exactP := float64(stats.ExactSpanMatches) / (float64(stats.TotalPredicted) + smoothing)
	exactR := float64(stats.ExactSpanMatches) / (float64(stats.TotalGold) + smoothing)
	prefixP := float64(stats.PrefixSpanMatches) / (float64(stats.TotalPredicted) + smoothing)
	prefixR := float64(stats.PrefixSpanMatches) / (float64(stats.TotalGold) + smoothing)

	return PRFScores{
		ExactPrecision:  exactP,
		ExactRecall:     exactR,
		ExactF1:         f1(exactP, exactR),
		PrefixPrecision: prefixP,
		PrefixRecall:    prefixR,
		PrefixF1:        f1(prefixP, prefixR),
	}
}
