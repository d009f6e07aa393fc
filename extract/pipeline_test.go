package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/wordseek/wordseek/options"
	"github.com/wordseek/wordseek/vocab"
)

// testFixture wires the end-to-end scenario: a single sequence "abcde"
// whose "b" and "c" embed identically to the vocabulary units, while "d"
// and "e" embed orthogonally to everything the vocabulary knows.
type testFixture struct {
	voc      *vocab.Vocabulary
	pipeline *Pipeline
	sched    options.Schedule
	units    *tensor.Dense
}

const fixtureDim = 8

// fixtureCharVector embeds sequence characters a..e as one-hot vectors.
func fixtureCharVector(c rune) []float32 {
	vec := make([]float32, fixtureDim)
	vec[int(c-'a')] = 1
	return vec
}

func newTestFixture(t *testing.T, withOptions ...options.WithOption) *testFixture {
	t.Helper()
	voc, err := vocab.FromWords([]string{"bc", "cde"}, 2, 4)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c", "d", "e"}, voc.IDToUnit)

	opts := options.Defaults()
	require.NoError(t, options.WithWordLengths(2, 4)(opts))
	for _, option := range withOptions {
		require.NoError(t, option(opts))
	}
	pipeline, err := NewPipeline(voc, opts)
	require.NoError(t, err)

	// Units "b" and "c" coincide with the sequence embeddings; "d" and "e"
	// live in dimensions no sequence character occupies.
	unitBacking := make([]float32, 4*fixtureDim)
	copy(unitBacking[0*fixtureDim:], fixtureCharVector('b'))
	copy(unitBacking[1*fixtureDim:], fixtureCharVector('c'))
	unitBacking[2*fixtureDim+6] = 1
	unitBacking[3*fixtureDim+7] = 1

	return &testFixture{
		voc:      voc,
		pipeline: pipeline,
		sched:    options.NewSchedule(opts),
		units: tensor.New(
			tensor.Of(tensor.Float32),
			tensor.WithShape(4, fixtureDim),
			tensor.WithBacking(unitBacking),
		),
	}
}

func (f *testFixture) batch(t *testing.T, sequences ...string) *Batch {
	t.Helper()
	maxLength := 0
	lengths := make([]int, len(sequences))
	for i, seq := range sequences {
		lengths[i] = len(seq)
		if lengths[i] > maxLength {
			maxLength = lengths[i]
		}
	}
	backing := make([]float32, len(sequences)*maxLength*fixtureDim)
	for i, seq := range sequences {
		for j, c := range seq {
			copy(backing[(i*maxLength+j)*fixtureDim:], fixtureCharVector(c))
		}
	}
	embeddings := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(sequences), maxLength, fixtureDim),
		tensor.WithBacking(backing),
	)
	batch, err := NewBatch(embeddings, lengths)
	require.NoError(t, err)
	return batch
}

func TestPipelineExtractsExactMatch(t *testing.T) {
	f := newTestFixture(t)
	batch := f.batch(t, "abcde")

	result, err := f.pipeline.RunEval(batch, f.units, f.sched)
	require.NoError(t, err)

	// The span (start=1, length=2) is exactly "bc".
	assert.Equal(t, 1, result.BestStart[0])
	assert.Equal(t, 2, result.BestEnd[0])
	assert.Equal(t, 0, result.BestVocab[0])
	assert.True(t, result.Matched[0])
	assert.InDelta(t, 2.0, float64(result.BestScore[0]), 1e-4)
	assert.InDelta(t, 0.0, float64(result.BestEdDist[0]), 1e-4)

	// ed_dist of "bc" against vocabulary "bc" is ~0, and strictly larger
	// against "cde".
	edDist := result.EdDist.Data().([]float32)
	lenE := result.Viable.LenE
	nt := f.voc.Size()
	cell := (1*lenE + 0) * nt // batch 0, start 1, length offset 0
	assert.InDelta(t, 0.0, float64(edDist[cell]), 1e-4)
	assert.Greater(t, edDist[cell+1], float32(0.5))
}

func TestPipelineIdempotent(t *testing.T) {
	f := newTestFixture(t)

	first, err := f.pipeline.RunEval(f.batch(t, "abcde", "cdeab"), f.units, f.sched)
	require.NoError(t, err)
	second, err := f.pipeline.RunEval(f.batch(t, "abcde", "cdeab"), f.units, f.sched)
	require.NoError(t, err)

	assert.Equal(t, first.BestScore, second.BestScore)
	assert.Equal(t, first.BestStart, second.BestStart)
	assert.Equal(t, first.BestEnd, second.BestEnd)
	assert.Equal(t, first.BestVocab, second.BestVocab)
	assert.Equal(t, first.Score.Data(), second.Score.Data())
	assert.Equal(t, first.EdDist.Data(), second.EdDist.Data())
}

func TestPipelineDegenerateSequence(t *testing.T) {
	f := newTestFixture(t)
	batch := f.batch(t, "abcde", "a")

	result, err := f.pipeline.RunEval(batch, f.units, f.sched)
	require.NoError(t, err)

	// The long sequence still matches.
	assert.True(t, result.Matched[0])

	// The short one has no viable spans: zero score, the whole remaining
	// sequence as the span, no matched entry.
	assert.Zero(t, result.BestScore[1])
	assert.Equal(t, 0, result.BestStart[1])
	assert.Equal(t, 0, result.BestEnd[1])
	assert.Equal(t, -1, result.BestVocab[1])
	assert.False(t, result.Matched[1])
	assert.GreaterOrEqual(t, result.BestEdDist[1], float32(99))

	// Its dense rows are entirely zero.
	scores := result.Score.Data().([]float32)
	rowSize := result.Viable.LenS * result.Viable.LenE
	for _, v := range scores[rowSize:] {
		assert.Zero(t, v)
	}
}

func TestPipelineZeroLengthSequence(t *testing.T) {
	f := newTestFixture(t)
	batch := f.batch(t, "abcde", "")

	result, err := f.pipeline.RunEval(batch, f.units, f.sched)
	require.NoError(t, err)

	// An empty sequence follows the degenerate policy with the end clamped
	// to a valid offset.
	assert.Zero(t, result.BestScore[1])
	assert.Equal(t, 0, result.BestStart[1])
	assert.Equal(t, 0, result.BestEnd[1])
	assert.Equal(t, -1, result.BestVocab[1])
	assert.False(t, result.Matched[1])
}

func TestPipelineSoftLevels(t *testing.T) {
	for _, level := range []options.RelaxationLevel{
		options.RelaxationSoftValue,
		options.RelaxationSoftThreshold,
		options.RelaxationSoftScore,
	} {
		f := newTestFixture(t, options.WithRelaxationLevel(level))
		result, err := f.pipeline.Run(f.batch(t, "abcde"), f.units, f.sched)
		require.NoError(t, err)

		// Soft selection keeps the hard indices while the value becomes a
		// temperature-weighted surrogate.
		assert.Equal(t, 1, result.BestStart[0], "level %d", level)
		assert.Equal(t, 2, result.BestEnd[0], "level %d", level)
		assert.Equal(t, 0, result.BestVocab[0], "level %d", level)
		assert.Positive(t, result.BestScore[0], "level %d", level)
	}
}

func TestPipelineJointLevel(t *testing.T) {
	f := newTestFixture(t, options.WithRelaxationLevel(options.RelaxationJoint))
	result, err := f.pipeline.Run(f.batch(t, "abcde"), f.units, f.sched)
	require.NoError(t, err)

	// Level 4 selects span and vocabulary entry jointly from the full
	// (lenS, lenE, vocab) score table.
	assert.Equal(t, 1, result.BestStart[0])
	assert.Equal(t, 2, result.BestEnd[0])
	assert.Equal(t, 0, result.BestVocab[0])
	assert.Nil(t, result.MatchedVocab)
	assert.Equal(t, []int{1, 5, 3, 2}, []int(result.Score.Shape()))
}

func TestNewBatchValidation(t *testing.T) {
	flat := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(2, 3), tensor.WithBacking(make([]float32, 6)))
	_, err := NewBatch(flat, []int{3, 3})
	assert.Error(t, err)

	cube := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(2, 3, 4), tensor.WithBacking(make([]float32, 24)))
	_, err = NewBatch(cube, []int{3})
	assert.Error(t, err, "length count must match batch size")

	_, err = NewBatch(cube, []int{3, 5})
	assert.Error(t, err, "lengths may not exceed the padded length")

	batch, err := NewBatch(cube, []int{3, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Size)
	assert.Equal(t, 3, batch.MaxLength)
	assert.Equal(t, 4, batch.Dim)
}

func TestPipelineValidate(t *testing.T) {
	voc, err := vocab.FromWords([]string{"ab"}, 2, 2)
	require.NoError(t, err)

	_, err = NewPipeline(nil, options.Defaults())
	assert.Error(t, err)

	badOpts := options.Defaults()
	badOpts.MinWordLength = 5
	badOpts.MaxWordLength = 2
	_, err = NewPipeline(voc, badOpts)
	assert.Error(t, err)

	// Entries longer than maxWordLength + bandWidth can never terminate
	// inside the band.
	longVoc, err := vocab.FromWords([]string{"abcdefgh"}, 2, 8)
	require.NoError(t, err)
	shortOpts := options.Defaults()
	shortOpts.MaxWordLength = 4
	shortOpts.MinWordLength = 2
	_, err = NewPipeline(longVoc, shortOpts)
	assert.Error(t, err)
}
