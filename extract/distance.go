package extract

import "github.com/wordseek/wordseek/options"

// hammingGroups is the number of feature groups the Hamming-style distance
// averages over.
const hammingGroups float32 = 4

// DistanceMatrix computes the pairwise distance between every span-position
// embedding and every vocabulary-unit embedding. spanRepr is the flat
// (viable, maxWordLength, dim) block from GatherSpans; unitRepr is the flat
// (numUnits, dim) unit embedding table. The result is the flat
// (viable, position, unit) substitution-cost table.
//
// Cosine distance is (1 - cos(x, y)) / 2 with an epsilon added to both norms
// before dividing; Hamming distance is the mean absolute feature difference
// scaled down by the number of feature groups. Both are pure functions of
// the embeddings.
func DistanceMatrix(spanRepr, unitRepr []float32, nv, maxWordLength, dim, numUnits int, metric options.DistanceMetric) []float32 {
	rows := nv * maxWordLength
	out := make([]float32, rows*numUnits)

	if metric == options.MetricHamming {
		for r := 0; r < rows; r++ {
			x := spanRepr[r*dim : (r+1)*dim]
			for u := 0; u < numUnits; u++ {
				y := unitRepr[u*dim : (u+1)*dim]
				var sum float32
				for i := range x {
					d := x[i] - y[i]
					if d < 0 {
						d = -d
					}
					sum += d
				}
				out[r*numUnits+u] = sum / float32(dim) / hammingGroups
			}
		}
		return out
	}

	unitNorms := make([]float32, numUnits)
	for u := 0; u < numUnits; u++ {
		unitNorms[u] = norm(unitRepr[u*dim:(u+1)*dim]) + normEpsilon
	}
	for r := 0; r < rows; r++ {
		x := spanRepr[r*dim : (r+1)*dim]
		nx := norm(x) + normEpsilon
		for u := 0; u < numUnits; u++ {
			y := unitRepr[u*dim : (u+1)*dim]
			cos := dot(x, y) / nx / unitNorms[u]
			out[r*numUnits+u] = (1 - cos) / 2
		}
	}
	return out
}
