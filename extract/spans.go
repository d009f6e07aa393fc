package extract

// ViableSet is the sparse bookkeeping for candidate spans. The dense
// candidate grid is (batch, lenS, lenE): lenS indexes the span start offset
// and lenE the length offset, where the absolute span length is
// minWordLength + lengthOffset. Mask marks the grid cells whose span lies
// fully inside its sequence; the per-viable index slices map each compacted
// viable index back to its grid cell, and DenseToViable is the inverse map
// (-1 for non-viable cells). Every sparse tensor downstream is indexed by
// viable and scatter-restored through this table.
type ViableSet struct {
	BatchSize int
	LenS      int
	LenE      int

	Mask []bool

	// Per viable index.
	BatchIdx []int
	StartIdx []int
	LenIdx   []int
	// Absolute starts and lengths, same order as BatchIdx.
	Starts  []int
	Lengths []int

	DenseToViable []int
}

// EnumerateSpans proposes every (start, length) candidate within the length
// window and keeps those whose inclusive end fits inside the sequence:
// end = start + length - 1 < sequenceLength. Candidates are enumerated for
// all start offsets in [0, maxLength) and all lengths in
// [minWordLength, maxWordLength], so invalid combinations are never scored.
func EnumerateSpans(lengths []int, maxLength, minWordLength, maxWordLength int) *ViableSet {
	batchSize := len(lengths)
	lenS := maxLength
	lenE := maxWordLength - minWordLength + 1

	vs := &ViableSet{
		BatchSize:     batchSize,
		LenS:          lenS,
		LenE:          lenE,
		Mask:          make([]bool, batchSize*lenS*lenE),
		DenseToViable: make([]int, batchSize*lenS*lenE),
	}

	cell := 0
	for b := 0; b < batchSize; b++ {
		for s := 0; s < lenS; s++ {
			for e := 0; e < lenE; e++ {
				length := minWordLength + e
				end := s + length - 1
				if end < lengths[b] {
					vs.Mask[cell] = true
					vs.DenseToViable[cell] = len(vs.BatchIdx)
					vs.BatchIdx = append(vs.BatchIdx, b)
					vs.StartIdx = append(vs.StartIdx, s)
					vs.LenIdx = append(vs.LenIdx, e)
					vs.Starts = append(vs.Starts, s)
					vs.Lengths = append(vs.Lengths, length)
				} else {
					vs.DenseToViable[cell] = -1
				}
				cell++
			}
		}
	}
	return vs
}

// NumViable returns the size of the compacted viable set.
func (vs *ViableSet) NumViable() int {
	return len(vs.BatchIdx)
}

// Cell returns the flat dense-grid index of (batch, startOffset, lenOffset).
func (vs *ViableSet) Cell(b, s, e int) int {
	return (b*vs.LenS+s)*vs.LenE + e
}

// ViableAt returns the viable index for a dense grid cell, or -1.
func (vs *ViableSet) ViableAt(b, s, e int) int {
	return vs.DenseToViable[vs.Cell(b, s, e)]
}

// CountPerSequence returns how many viable spans each sequence contributes.
// A sequence shorter than the minimum word length contributes none.
func (vs *ViableSet) CountPerSequence() []int {
	counts := make([]int, vs.BatchSize)
	for _, b := range vs.BatchIdx {
		counts[b]++
	}
	return counts
}
