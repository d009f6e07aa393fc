// Package extract implements the span-extraction and alignment-scoring
// engine: it enumerates all admissible substrings of a batch of sequences,
// scores each one against every vocabulary entry with a banded edit-distance
// dynamic program over learned embeddings, and turns the distances into
// matching scores through a hierarchy of differentiable relaxations.
//
// Axis conventions for flat float32 buffers, in order:
//
//	span representations  (viable, position, dim)
//	distance table        (viable, position, unit)
//	edit distances        (viable, vocab)
//	restored outputs      (batch, lenS, lenE[, vocab])
//
// where lenS is the span start offset and lenE the length offset relative
// to the minimum word length.
package extract

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"gorgonia.org/tensor"

	"github.com/wordseek/wordseek/options"
	"github.com/wordseek/wordseek/vocab"
)

// Batch carries one batch of sequences through the pipeline stages. The
// embedding tensor has shape (batch, maxLength, dim); Lengths holds the true
// per-sequence lengths. Intermediate fields are filled in by Preprocess and
// Forward.
type Batch struct {
	Size      int
	MaxLength int
	Dim       int
	Lengths   []int

	Embeddings *tensor.Dense

	Viable   *ViableSet
	SpanRepr []float32
	Dist     []float32
	EdDist   []float32
	Match    *MatchResult
}

// NewBatch validates the embedding tensor shape against the sequence
// lengths and wraps both into a Batch.
func NewBatch(embeddings *tensor.Dense, lengths []int) (*Batch, error) {
	shape := embeddings.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("batch embeddings must be 3D (batch, length, dim), got shape %v", shape)
	}
	if embeddings.Dtype() != tensor.Float32 {
		return nil, fmt.Errorf("batch embeddings must be float32, got %v", embeddings.Dtype())
	}
	if len(lengths) != shape[0] {
		return nil, fmt.Errorf("got %d sequence lengths for batch size %d", len(lengths), shape[0])
	}
	for i, l := range lengths {
		if l < 0 || l > shape[1] {
			return nil, fmt.Errorf("sequence %d has length %d, outside [0, %d]", i, l, shape[1])
		}
	}
	return &Batch{
		Size:       shape[0],
		MaxLength:  shape[1],
		Dim:        shape[2],
		Lengths:    lengths,
		Embeddings: embeddings,
	}, nil
}

// Result is the output of one scoring call. Best* fields are per sequence;
// BestEnd is inclusive. The dense tensors are the sparse per-viable fields
// scattered back onto the (batch, lenS, lenE[, vocab]) grid with zeros at
// non-viable cells.
type Result struct {
	BestScore []float32
	BestStart []int
	BestEnd   []int
	BestVocab []int
	// BestEdDist is the hard edit distance between the selected span and its
	// selected vocabulary entry; the sentinel for degenerate sequences.
	BestEdDist []float32
	Matched    []bool

	// Score is (batch, lenS, lenE) for levels 0-3 and
	// (batch, lenS, lenE, vocab) for level 4.
	Score  *tensor.Dense
	EdDist *tensor.Dense
	// MatchedVocab is nil at level 4, where no vocabulary reduction happens
	// before span selection.
	MatchedVocab *tensor.Dense
	MatchedMask  *tensor.Dense

	Viable *ViableSet
	Match  *MatchResult
}

type timings struct {
	NumCalls uint64
	TotalNS  uint64
}

// Pipeline scores batches of sequences against a fixed vocabulary. The
// vocabulary and options are read-only after construction; the annealed
// schedule and the embedding buffers are passed into every call so that the
// external trainer owns all mutable state.
type Pipeline struct {
	Vocabulary *vocab.Vocabulary
	Options    *options.Options

	PipelineTimings *timings
}

// NewPipeline builds a scoring pipeline and validates its configuration.
func NewPipeline(voc *vocab.Vocabulary, opts *options.Options) (*Pipeline, error) {
	p := &Pipeline{
		Vocabulary:      voc,
		Options:         opts,
		PipelineTimings: &timings{},
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that the pipeline is usable. All violations are fatal.
func (p *Pipeline) Validate() error {
	var validationErrors []error
	if p.Vocabulary == nil || p.Vocabulary.Size() == 0 {
		validationErrors = append(validationErrors, errors.New("pipeline requires a non-empty vocabulary"))
	}
	if p.Options == nil {
		validationErrors = append(validationErrors, errors.New("pipeline requires options"))
	} else if err := p.Options.Validate(); err != nil {
		validationErrors = append(validationErrors, err)
	}
	if p.Vocabulary != nil && p.Options != nil && p.Vocabulary.MaxLength > p.Options.MaxWordLength+p.Options.BandWidth {
		// Entries this long can never terminate inside the band; they would
		// only ever score as the sentinel.
		validationErrors = append(validationErrors, fmt.Errorf(
			"vocabulary max length %d is unreachable with max word length %d and band width %d",
			p.Vocabulary.MaxLength, p.Options.MaxWordLength, p.Options.BandWidth))
	}
	return errors.Join(validationErrors...)
}

// GetStats returns the pipeline's run statistics.
func (p *Pipeline) GetStats() []string {
	return []string{
		fmt.Sprintf("Extraction: Total time=%s, Execution count=%d, Average batch time=%s",
			time.Duration(p.PipelineTimings.TotalNS),
			p.PipelineTimings.NumCalls,
			time.Duration(float64(p.PipelineTimings.TotalNS)/math.Max(1, float64(p.PipelineTimings.NumCalls)))),
	}
}

// Preprocess enumerates the candidate spans and gathers their embedding
// blocks.
func (p *Pipeline) Preprocess(batch *Batch) error {
	o := p.Options
	batch.Viable = EnumerateSpans(batch.Lengths, batch.MaxLength, o.MinWordLength, o.MaxWordLength)
	embeddings, ok := batch.Embeddings.Data().([]float32)
	if !ok {
		return fmt.Errorf("batch embeddings backing is %T, expected []float32", batch.Embeddings.Data())
	}
	batch.SpanRepr = GatherSpans(batch.Viable, embeddings, batch.MaxLength, batch.Dim, o.MaxWordLength)
	return nil
}

// Forward computes the distance table and runs the alignment DP. unitRepr
// holds the vocabulary-unit embeddings with shape (units, dim); it is
// read-only during the call.
func (p *Pipeline) Forward(batch *Batch, unitRepr *tensor.Dense) error {
	o := p.Options
	numUnits := p.Vocabulary.NumUnits()

	shape := unitRepr.Shape()
	if len(shape) != 2 || shape[0] != numUnits || shape[1] != batch.Dim {
		return fmt.Errorf("unit embeddings must have shape (%d, %d), got %v", numUnits, batch.Dim, shape)
	}
	units, ok := unitRepr.Data().([]float32)
	if !ok {
		return fmt.Errorf("unit embeddings backing is %T, expected []float32", unitRepr.Data())
	}

	batch.Dist = DistanceMatrix(batch.SpanRepr, units, batch.Viable.NumViable(), o.MaxWordLength, batch.Dim, numUnits, o.Metric)
	batch.EdDist = AlignSpans(batch.Dist, batch.Viable, p.Vocabulary, o.MaxWordLength, numUnits, o.InsDelCost, o.BandWidth)
	return nil
}

// Postprocess applies the relaxation level, picks the best span per
// sequence, and restores all sparse fields to dense grids.
func (p *Pipeline) Postprocess(batch *Batch, sched options.Schedule, level options.RelaxationLevel) (*Result, error) {
	vs := batch.Viable
	batch.Match = SelectMatches(batch.EdDist, vs.NumViable(), p.Vocabulary, level, sched)
	return p.selectBestSpans(batch, sched, level)
}

// Run scores one batch under the configured relaxation level. The schedule
// is read-only for the duration of the call.
func (p *Pipeline) Run(batch *Batch, unitRepr *tensor.Dense, sched options.Schedule) (*Result, error) {
	return p.run(batch, unitRepr, sched, p.Options.RelaxationLevel)
}

// RunEval scores one batch with fully hard selection (level 0), regardless
// of the configured training level.
func (p *Pipeline) RunEval(batch *Batch, unitRepr *tensor.Dense, sched options.Schedule) (*Result, error) {
	return p.run(batch, unitRepr, sched, options.RelaxationHard)
}

func (p *Pipeline) run(batch *Batch, unitRepr *tensor.Dense, sched options.Schedule, level options.RelaxationLevel) (*Result, error) {
	start := time.Now()
	if err := p.Preprocess(batch); err != nil {
		return nil, err
	}
	if err := p.Forward(batch, unitRepr); err != nil {
		return nil, err
	}
	result, err := p.Postprocess(batch, sched, level)
	if err != nil {
		return nil, err
	}
	atomic.AddUint64(&p.PipelineTimings.NumCalls, 1)
	atomic.AddUint64(&p.PipelineTimings.TotalNS, uint64(time.Since(start)))
	return result, nil
}

// selectBestSpans flattens the candidate axes per sequence and picks the
// arg-max score: hard at level 0, soft value with hard index otherwise.
// Sequences with no viable span produce the degenerate output: score 0,
// the whole remaining sequence as the span, and no matched vocabulary.
func (p *Pipeline) selectBestSpans(batch *Batch, sched options.Schedule, level options.RelaxationLevel) (*Result, error) {
	o := p.Options
	vs := batch.Viable
	m := batch.Match
	nt := p.Vocabulary.Size()
	softSpan := level != options.RelaxationHard

	result := &Result{
		BestScore:  make([]float32, batch.Size),
		BestStart:  make([]int, batch.Size),
		BestEnd:    make([]int, batch.Size),
		BestVocab:  make([]int, batch.Size),
		BestEdDist: make([]float32, batch.Size),
		Matched:    make([]bool, batch.Size),
		Viable:     vs,
		Match:      m,
	}

	result.EdDist = RestoreDense(vs, m.EdDist, nt)
	result.MatchedMask = RestoreDenseBool(vs, m.Matched)
	if m.Reduced() {
		result.Score = RestoreDense(vs, m.MatchedScore, 1)
		result.MatchedVocab = RestoreDenseInt(vs, m.MatchedVocab)
	} else {
		result.Score = RestoreDense(vs, m.Score, nt)
	}

	// Sequence-level matched flag: any viable span of the sequence matched.
	for v, b := range vs.BatchIdx {
		if m.Matched[v] {
			result.Matched[b] = true
		}
	}

	counts := vs.CountPerSequence()
	scores, ok := result.Score.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("restored score backing is %T, expected []float32", result.Score.Data())
	}

	candPerSeq := vs.LenS * vs.LenE
	if !m.Reduced() {
		candPerSeq *= nt
	}

	for b := 0; b < batch.Size; b++ {
		if counts[b] == 0 {
			result.BestScore[b] = 0
			result.BestStart[b] = 0
			// Whole remaining sequence, clamped for zero-length sequences.
			result.BestEnd[b] = max(batch.Lengths[b]-1, 0)
			result.BestVocab[b] = -1
			result.BestEdDist[b] = noPathSentinel
			continue
		}

		row := scores[b*candPerSeq : (b+1)*candPerSeq]
		idx := argMax(row)
		value := row[idx]
		if softSpan {
			value, idx = softMax(row, sched.Temperature)
		}

		var s, e, k, vi int
		if m.Reduced() {
			s = idx / vs.LenE
			e = idx % vs.LenE
			vi = vs.ViableAt(b, s, e)
			if vi < 0 {
				// All-zero ties can land on a non-viable cell; fall back to
				// the sequence's first viable span.
				vi = firstViableOf(vs, b)
				s = vs.StartIdx[vi]
				e = vs.LenIdx[vi]
			}
			k = m.MatchedVocab[vi]
		} else {
			s = idx / (vs.LenE * nt)
			e = (idx / nt) % vs.LenE
			k = idx % nt
			vi = vs.ViableAt(b, s, e)
			if vi < 0 {
				vi = firstViableOf(vs, b)
				s = vs.StartIdx[vi]
				e = vs.LenIdx[vi]
				k = argMax(m.Score[vi*nt : (vi+1)*nt])
			}
		}

		result.BestScore[b] = value
		result.BestStart[b] = s
		// The length axis is offset by the minimum word length.
		result.BestEnd[b] = s + e + o.MinWordLength - 1
		result.BestVocab[b] = k
		result.BestEdDist[b] = m.EdDist[vi*nt+k]
	}

	return result, nil
}

func firstViableOf(vs *ViableSet, b int) int {
	for v, bi := range vs.BatchIdx {
		if bi == b {
			return v
		}
	}
	return -1
}
