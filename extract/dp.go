package extract

import "github.com/wordseek/wordseek/vocab"

// noPathSentinel marks DP cells outside the band. Any (span, entry) pair
// whose lengths differ by more than the band width terminates on such a
// cell and scores as "no match".
const noPathSentinel float32 = 99.9

// AlignSpans runs the edit-distance dynamic program between every viable
// span and every vocabulary entry simultaneously.
//
// The DP grid per (span, entry) pair is indexed by source offset
// ls in [0, maxWordLength] and target offset lt in [0, entryMaxLength].
// Base cases are f(i, 0) = i (delete i source characters) and f(0, j) = j
// (insert j target characters). The recurrence takes the minimum of an
// insertion step, a deletion step, and a substitution step whose cost is
// the precomputed embedding distance between the span's character at ls-1
// and the entry's unit at lt-1.
//
// Only cells with |ls - lt| <= bandWidth are filled in; everything outside
// the band keeps the sentinel. This bounds compute to the diagonal band but
// forecloses alignments between spans and entries whose lengths differ by
// more than the band width - a known accuracy ceiling, kept intact.
//
// dist is the flat (viable, position, unit) table from DistanceMatrix. The
// result is the flat (viable, vocabEntry) terminal edit distance, read for
// each pair at its own (spanLength, entryLength) grid cell.
func AlignSpans(dist []float32, vs *ViableSet, voc *vocab.Vocabulary, maxWordLength int, numUnits int, insDelCost float32, bandWidth int) []float32 {
	nv := vs.NumViable()
	nt := voc.Size()
	msl := maxWordLength
	mtl := voc.MaxLength

	srcStride := mtl + 1
	gridSize := (msl + 1) * srcStride

	f := make([]float32, nv*nt*gridSize)
	for i := range f {
		f[i] = noPathSentinel
	}
	for p := 0; p < nv*nt; p++ {
		base := p * gridSize
		for i := 0; i <= msl; i++ {
			f[base+i*srcStride] = float32(i)
		}
		for j := 0; j <= mtl; j++ {
			f[base+j] = float32(j)
		}
	}

	for v := 0; v < nv; v++ {
		for t := 0; t < nt; t++ {
			entry := voc.Entries[t]
			base := (v*nt + t) * gridSize
			for ls := 1; ls <= msl; ls++ {
				row := base + ls*srcStride
				prevRow := row - srcStride
				distRow := (v*msl + ls - 1) * numUnits

				minLt := ls - bandWidth
				if minLt < 1 {
					minLt = 1
				}
				maxLt := ls + bandWidth
				if maxLt > mtl {
					maxLt = mtl
				}
				for lt := minLt; lt <= maxLt; lt++ {
					diff := dist[distRow+entry.Units[lt-1]]

					ins := f[prevRow+lt] + insDelCost
					del := f[row+lt-1] + insDelCost
					sub := f[prevRow+lt-1] + diff

					best := ins
					if del < best {
						best = del
					}
					if sub < best {
						best = sub
					}
					f[row+lt] = best
				}
			}
		}
	}

	// Terminal gather: each pair reads its own (spanLength, entryLength).
	edDist := make([]float32, nv*nt)
	for v := 0; v < nv; v++ {
		spanLen := vs.Lengths[v]
		for t := 0; t < nt; t++ {
			base := (v*nt + t) * gridSize
			edDist[v*nt+t] = f[base+spanLen*srcStride+voc.Entries[t].Length]
		}
	}
	return edDist
}
