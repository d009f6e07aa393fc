package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSoftThreshold(t *testing.T) {
	assert.InDelta(t, 0.5, SoftThreshold(0.5), 1e-6)

	// Saturates to 1 for very negative inputs and 0 for large ones.
	assert.InDelta(t, 1.0, SoftThreshold(-20), 1e-4)
	assert.InDelta(t, 0.0, SoftThreshold(20), 1e-4)

	// Monotonically decreasing across the transition, never above 1.
	prev := SoftThreshold(-10)
	for x := float32(-10); x <= 10; x += 0.1 {
		cur := SoftThreshold(x)
		assert.LessOrEqual(t, cur, prev+1e-6)
		assert.LessOrEqual(t, cur, float32(1))
		prev = cur
	}
}

func TestCelu(t *testing.T) {
	assert.Equal(t, float32(2), celu(2))
	assert.InDelta(t, 0.0, celu(0), 1e-6)
	assert.InDelta(t, -0.6321, celu(-1), 1e-3)
}

func TestSoftMinConvergesToHardMin(t *testing.T) {
	values := []float32{0.9, 0.2, 0.7, 0.5}

	_, idx := softMin(values, 1.0)
	assert.Equal(t, 1, idx, "the selected index is always the hard arg-min")

	// As the temperature shrinks, the soft value converges to the minimum.
	for _, temperature := range []float32{1.0, 0.1, 0.01} {
		value, _ := softMin(values, temperature)
		assert.GreaterOrEqual(t, value, float32(0.2))
	}
	value, _ := softMin(values, 0.01)
	assert.InDelta(t, 0.2, value, 1e-4)
}

func TestSoftMaxConvergesToHardMax(t *testing.T) {
	values := []float32{0.1, 0.8, 0.3}

	value, idx := softMax(values, 0.01)
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 0.8, value, 1e-4)

	// At higher temperature the value is pulled towards the mean but the
	// index selection stays hard.
	warm, warmIdx := softMax(values, 10)
	assert.Equal(t, 1, warmIdx)
	assert.Less(t, warm, float32(0.8))
}
