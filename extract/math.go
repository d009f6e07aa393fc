package extract

import "github.com/chewxy/math32"

// normEpsilon stabilizes cosine distance against zero-norm embeddings.
const normEpsilon float32 = 1e-8

func dot(x, y []float32) float32 {
	var sum float32
	for i := range x {
		sum += x[i] * y[i]
	}
	return sum
}

func norm(x []float32) float32 {
	return math32.Sqrt(dot(x, x))
}

func celu(z float32) float32 {
	if z > 0 {
		return z
	}
	return math32.Exp(z) - 1
}

// SoftThreshold is a smooth approximation to a unit step at x = 0.5: it
// saturates to 1 for very negative x and to 0 for large x, and equals 0.5
// at x = 0.5.
func SoftThreshold(x float32) float32 {
	v := (celu(1-2*x) + 1) / 2
	if v > 1 {
		return 1
	}
	return v
}

func argMin(values []float32) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] < values[best] {
			best = i
		}
	}
	return best
}

func argMax(values []float32) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

// softMin returns the temperature-weighted soft minimum of values together
// with the hard arg-min index (straight-through selection: soft value, hard
// index). As temperature approaches 0 the soft value converges to the hard
// minimum.
func softMin(values []float32, temperature float32) (float32, int) {
	return softSelect(values, temperature, true)
}

// softMax is the soft-maximum counterpart of softMin.
func softMax(values []float32, temperature float32) (float32, int) {
	return softSelect(values, temperature, false)
}

func softSelect(values []float32, temperature float32, minimize bool) (float32, int) {
	sign := float32(1)
	hard := argMax(values)
	if minimize {
		sign = -1
		hard = argMin(values)
	}

	// Stable softmax over sign*values/temperature.
	peak := sign * values[hard] / temperature
	var weightSum, valueSum float32
	for _, v := range values {
		w := math32.Exp(sign*v/temperature - peak)
		weightSum += w
		valueSum += w * v
	}
	return valueSum / weightSum, hard
}
