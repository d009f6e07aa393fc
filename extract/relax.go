package extract

import (
	"github.com/wordseek/wordseek/options"
	"github.com/wordseek/wordseek/vocab"
)

// MatchResult is the per-viable-span outcome of vocabulary selection. It is
// a single variant tagged by Level; only the fields that level computes are
// populated:
//
//	Level 0: MatchedEdDist, MatchedVocab, MatchedLength, MatchedThresh, MatchedScore (all hard)
//	Level 1: as level 0, but MatchedEdDist is the temperature-weighted soft
//	         minimum while MatchedVocab stays the hard arg-min index
//	Level 2: MatchedThresh is the soft maximum of per-pair thresholds,
//	         MatchedVocab its hard arg-max; MatchedScore = length * thresh
//	Level 3: per-pair scores length * thresh are soft-maxed directly into
//	         MatchedScore; no separate MatchedThresh
//	Level 4: no vocabulary reduction; the full Thresh and Score tables are
//	         kept and selection happens jointly with span selection
//
// EdDist and Matched are populated at every level.
type MatchResult struct {
	Level     options.RelaxationLevel
	NumViable int
	VocabSize int

	// EdDist is the flat (viable, vocab) terminal edit distance table.
	EdDist []float32

	MatchedEdDist []float32
	MatchedVocab  []int
	MatchedLength []float32
	MatchedThresh []float32
	MatchedScore  []float32

	// Full (viable, vocab) tables, level 4 only.
	Thresh []float32
	Score  []float32

	// Matched marks viable spans whose best hard edit distance clears the
	// annealed threshold.
	Matched []bool
}

// Reduced reports whether the vocabulary axis has been reduced away. Only
// level 4 defers the vocabulary selection to the span-selection step.
func (m *MatchResult) Reduced() bool {
	return m.Level != options.RelaxationJoint
}

// SelectMatches converts the raw edit-distance table into matching scores
// under the configured relaxation level. The schedule's threshold scales the
// soft threshold so that its transition point sits at
// edDist = sched.Threshold; its temperature drives the soft min/max
// surrogates. edDist is the flat (viable, vocab) table from AlignSpans.
func SelectMatches(edDist []float32, nv int, voc *vocab.Vocabulary, level options.RelaxationLevel, sched options.Schedule) *MatchResult {
	nt := voc.Size()
	m := &MatchResult{
		Level:     level,
		NumViable: nv,
		VocabSize: nt,
		EdDist:    edDist,
		Matched:   make([]bool, nv),
	}

	entryLength := func(t int) float32 { return float32(voc.Entries[t].Length) }
	thresholdAt := func(d float32) float32 { return SoftThreshold(d / (2 * sched.Threshold)) }

	for v := 0; v < nv; v++ {
		row := edDist[v*nt : (v+1)*nt]
		m.Matched[v] = row[argMin(row)] < sched.Threshold
	}

	switch level {
	case options.RelaxationHard, options.RelaxationSoftValue:
		m.MatchedEdDist = make([]float32, nv)
		m.MatchedVocab = make([]int, nv)
		m.MatchedLength = make([]float32, nv)
		m.MatchedThresh = make([]float32, nv)
		m.MatchedScore = make([]float32, nv)
		for v := 0; v < nv; v++ {
			row := edDist[v*nt : (v+1)*nt]
			var value float32
			var idx int
			if level == options.RelaxationHard {
				idx = argMin(row)
				value = row[idx]
			} else {
				value, idx = softMin(row, sched.Temperature)
			}
			m.MatchedEdDist[v] = value
			m.MatchedVocab[v] = idx
			m.MatchedLength[v] = entryLength(idx)
			m.MatchedThresh[v] = thresholdAt(value)
			m.MatchedScore[v] = m.MatchedLength[v] * m.MatchedThresh[v]
		}

	case options.RelaxationSoftThreshold:
		m.MatchedVocab = make([]int, nv)
		m.MatchedLength = make([]float32, nv)
		m.MatchedThresh = make([]float32, nv)
		m.MatchedScore = make([]float32, nv)
		thresh := make([]float32, nt)
		for v := 0; v < nv; v++ {
			row := edDist[v*nt : (v+1)*nt]
			for t := 0; t < nt; t++ {
				thresh[t] = thresholdAt(row[t])
			}
			value, idx := softMax(thresh, sched.Temperature)
			m.MatchedThresh[v] = value
			m.MatchedVocab[v] = idx
			m.MatchedLength[v] = entryLength(idx)
			m.MatchedScore[v] = m.MatchedLength[v] * value
		}

	case options.RelaxationSoftScore:
		m.MatchedVocab = make([]int, nv)
		m.MatchedLength = make([]float32, nv)
		m.MatchedScore = make([]float32, nv)
		score := make([]float32, nt)
		for v := 0; v < nv; v++ {
			row := edDist[v*nt : (v+1)*nt]
			for t := 0; t < nt; t++ {
				score[t] = entryLength(t) * thresholdAt(row[t])
			}
			value, idx := softMax(score, sched.Temperature)
			m.MatchedScore[v] = value
			m.MatchedVocab[v] = idx
			m.MatchedLength[v] = entryLength(idx)
		}

	case options.RelaxationJoint:
		m.Thresh = make([]float32, nv*nt)
		m.Score = make([]float32, nv*nt)
		for v := 0; v < nv; v++ {
			for t := 0; t < nt; t++ {
				th := thresholdAt(edDist[v*nt+t])
				m.Thresh[v*nt+t] = th
				m.Score[v*nt+t] = entryLength(t) * th
			}
		}
	}

	return m
}
