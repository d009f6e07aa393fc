package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordseek/wordseek/options"
	"github.com/wordseek/wordseek/vocab"
)

func relaxVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	voc, err := vocab.FromWords([]string{"ab", "abc", "abcd"}, 2, 4)
	require.NoError(t, err)
	return voc
}

func relaxSchedule() options.Schedule {
	return options.NewSchedule(options.Defaults())
}

func TestSelectMatchesHard(t *testing.T) {
	voc := relaxVocab(t)
	// Two viable spans; entry 1 is closest for the first span, entry 0 for
	// the second.
	edDist := []float32{
		0.8, 0.1, 0.9,
		0.2, 0.5, 0.7,
	}
	m := SelectMatches(edDist, 2, voc, options.RelaxationHard, relaxSchedule())

	assert.True(t, m.Reduced())
	assert.Equal(t, []int{1, 0}, m.MatchedVocab)
	assert.InDelta(t, 0.1, float64(m.MatchedEdDist[0]), 1e-6)
	assert.InDelta(t, 0.2, float64(m.MatchedEdDist[1]), 1e-6)
	assert.Equal(t, float32(3), m.MatchedLength[0])
	assert.Equal(t, float32(2), m.MatchedLength[1])

	// score = length * thresholded distance.
	for v := 0; v < 2; v++ {
		expected := m.MatchedLength[v] * m.MatchedThresh[v]
		assert.InDelta(t, float64(expected), float64(m.MatchedScore[v]), 1e-6)
	}

	// Both best distances clear the initial threshold of 0.5.
	assert.Equal(t, []bool{true, true}, m.Matched)
}

func TestSelectMatchesSoftValueKeepsHardIndex(t *testing.T) {
	voc := relaxVocab(t)
	edDist := []float32{0.8, 0.1, 0.9}
	hard := SelectMatches(edDist, 1, voc, options.RelaxationHard, relaxSchedule())
	soft := SelectMatches(edDist, 1, voc, options.RelaxationSoftValue, relaxSchedule())

	// Straight-through: the index is the hard arg-min, the value is soft
	// and therefore at least the hard minimum.
	assert.Equal(t, hard.MatchedVocab, soft.MatchedVocab)
	assert.Greater(t, soft.MatchedEdDist[0], hard.MatchedEdDist[0])
	assert.Equal(t, hard.MatchedLength[0], soft.MatchedLength[0])

	// A cold schedule collapses the soft value onto the hard one.
	cold := relaxSchedule()
	cold.Temperature = 1e-3
	frozen := SelectMatches(edDist, 1, voc, options.RelaxationSoftValue, cold)
	assert.InDelta(t, float64(hard.MatchedEdDist[0]), float64(frozen.MatchedEdDist[0]), 1e-4)
}

func TestSelectMatchesSoftThreshold(t *testing.T) {
	voc := relaxVocab(t)
	edDist := []float32{0.8, 0.1, 0.9}
	m := SelectMatches(edDist, 1, voc, options.RelaxationSoftThreshold, relaxSchedule())

	// The threshold table is soft-maxed over the vocabulary; the best
	// thresholded entry is the one with the smallest distance.
	assert.Equal(t, []int{1}, m.MatchedVocab)
	assert.Equal(t, float32(3), m.MatchedLength[0])
	assert.InDelta(t, float64(m.MatchedLength[0]*m.MatchedThresh[0]), float64(m.MatchedScore[0]), 1e-6)
	assert.Nil(t, m.MatchedEdDist)
}

func TestSelectMatchesSoftScore(t *testing.T) {
	voc := relaxVocab(t)
	// Entry 2 is slightly further but much longer; scoring by
	// length * thresh lets it win over the closer entry 0.
	edDist := []float32{0.1, 0.9, 0.15}
	m := SelectMatches(edDist, 1, voc, options.RelaxationSoftScore, relaxSchedule())

	assert.Equal(t, []int{2}, m.MatchedVocab)
	assert.Equal(t, float32(4), m.MatchedLength[0])
	assert.Nil(t, m.MatchedThresh)
	assert.Positive(t, m.MatchedScore[0])
}

func TestSelectMatchesJointKeepsFullTables(t *testing.T) {
	voc := relaxVocab(t)
	edDist := []float32{
		0.8, 0.1, 0.9,
		0.2, 0.5, 0.7,
	}
	m := SelectMatches(edDist, 2, voc, options.RelaxationJoint, relaxSchedule())

	assert.False(t, m.Reduced())
	assert.Nil(t, m.MatchedVocab)
	assert.Nil(t, m.MatchedScore)
	require.Len(t, m.Thresh, 6)
	require.Len(t, m.Score, 6)
	for i := range m.Thresh {
		entryLength := float32(voc.Entries[i%3].Length)
		assert.InDelta(t, float64(entryLength*m.Thresh[i]), float64(m.Score[i]), 1e-6)
	}
}
