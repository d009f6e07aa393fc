package extract

import "gorgonia.org/tensor"

// RestoreDense scatters a per-viable float field back into the dense
// (batch, lenS, lenE) grid, zero-filling non-viable cells. extra is the
// size of a trailing axis (1 for scalar fields, vocabSize for full tables),
// in which case the result has shape (batch, lenS, lenE, extra).
func RestoreDense(vs *ViableSet, values []float32, extra int) *tensor.Dense {
	backing := make([]float32, vs.BatchSize*vs.LenS*vs.LenE*extra)
	for v := 0; v < vs.NumViable(); v++ {
		cell := vs.Cell(vs.BatchIdx[v], vs.StartIdx[v], vs.LenIdx[v])
		copy(backing[cell*extra:(cell+1)*extra], values[v*extra:(v+1)*extra])
	}

	shape := []int{vs.BatchSize, vs.LenS, vs.LenE}
	if extra > 1 {
		shape = append(shape, extra)
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(shape...),
		tensor.WithBacking(backing),
	)
}

// RestoreDenseInt is RestoreDense for integer fields such as the matched
// vocabulary ids. Non-viable cells are zero.
func RestoreDenseInt(vs *ViableSet, values []int) *tensor.Dense {
	backing := make([]int, vs.BatchSize*vs.LenS*vs.LenE)
	for v := 0; v < vs.NumViable(); v++ {
		backing[vs.Cell(vs.BatchIdx[v], vs.StartIdx[v], vs.LenIdx[v])] = values[v]
	}
	return tensor.New(
		tensor.Of(tensor.Int),
		tensor.WithShape(vs.BatchSize, vs.LenS, vs.LenE),
		tensor.WithBacking(backing),
	)
}

// RestoreDenseBool scatters a per-viable boolean field, false-filling
// non-viable cells.
func RestoreDenseBool(vs *ViableSet, values []bool) *tensor.Dense {
	backing := make([]bool, vs.BatchSize*vs.LenS*vs.LenE)
	for v := 0; v < vs.NumViable(); v++ {
		backing[vs.Cell(vs.BatchIdx[v], vs.StartIdx[v], vs.LenIdx[v])] = values[v]
	}
	return tensor.New(
		tensor.Of(tensor.Bool),
		tensor.WithShape(vs.BatchSize, vs.LenS, vs.LenE),
		tensor.WithBacking(backing),
	)
}
