package extract

// GatherSpans collects, for each viable span, the embedding vectors at
// offsets start .. start+maxWordLength-1 into a dense
// (viable, maxWordLength, dim) block. Positions past the batch max length
// are clamp-padded with the last position's vector; they are never scored
// because the DP terminal gather stops at the span's true length.
//
// embeddings is the flat backing of the (batch, maxLength, dim) batch
// representation.
func GatherSpans(vs *ViableSet, embeddings []float32, maxLength, dim, maxWordLength int) []float32 {
	nv := vs.NumViable()
	out := make([]float32, nv*maxWordLength*dim)

	for v := 0; v < nv; v++ {
		b := vs.BatchIdx[v]
		start := vs.Starts[v]
		for w := 0; w < maxWordLength; w++ {
			pos := start + w
			if pos > maxLength-1 {
				pos = maxLength - 1
			}
			src := (b*maxLength + pos) * dim
			dst := (v*maxWordLength + w) * dim
			copy(out[dst:dst+dim], embeddings[src:src+dim])
		}
	}
	return out
}
