// Package wordseek discovers occurrences of known-vocabulary words inside
// unsegmented character streams of an unknown writing system, by aligning
// candidate substrings against the vocabulary in a learned embedding space.
package wordseek

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/wordseek/wordseek/eval"
	"github.com/wordseek/wordseek/extract"
	"github.com/wordseek/wordseek/options"
	"github.com/wordseek/wordseek/vocab"
)

// EmbeddingTable maps character units to their embedding vectors. It is
// produced by an external embedding component; units missing from the table
// embed as zero vectors, which the epsilon-guarded cosine distance handles.
type EmbeddingTable map[string][]float32

// Dim returns the embedding dimension, or an error if the table is empty or
// ragged.
func (t EmbeddingTable) Dim() (int, error) {
	dim := -1
	for unit, vec := range t {
		if dim == -1 {
			dim = len(vec)
		} else if len(vec) != dim {
			return 0, fmt.Errorf("embedding for %q has dimension %d, expected %d", unit, len(vec), dim)
		}
	}
	if dim <= 0 {
		return 0, fmt.Errorf("embedding table is empty")
	}
	return dim, nil
}

// Extractor is the top-level scoring session: a vocabulary, the static
// configuration, and the annealed schedule advanced between training steps.
type Extractor struct {
	Vocabulary *vocab.Vocabulary
	Options    *options.Options
	Pipeline   *extract.Pipeline
	Schedule   options.Schedule
}

// NewExtractor builds an extractor for the given vocabulary.
func NewExtractor(voc *vocab.Vocabulary, withOptions ...options.WithOption) (*Extractor, error) {
	opts := options.Defaults()
	for _, option := range withOptions {
		if err := option(opts); err != nil {
			return nil, err
		}
	}
	pipeline, err := extract.NewPipeline(voc, opts)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		Vocabulary: voc,
		Options:    opts,
		Pipeline:   pipeline,
		Schedule:   options.NewSchedule(opts),
	}, nil
}

// Anneal advances the threshold schedule by one step. Callers must not run
// it concurrently with Extract on the same extractor.
func (e *Extractor) Anneal() {
	e.Schedule = e.Schedule.Anneal()
}

// EncodeBatch turns raw sequences into a padded embedding batch by looking
// up each character unit in the table.
func (e *Extractor) EncodeBatch(sequences []string, table EmbeddingTable) (*extract.Batch, error) {
	dim, err := table.Dim()
	if err != nil {
		return nil, err
	}

	lengths := make([]int, len(sequences))
	unitised := make([][]string, len(sequences))
	maxLength := 0
	for i, seq := range sequences {
		for _, r := range seq {
			unitised[i] = append(unitised[i], string(r))
		}
		lengths[i] = len(unitised[i])
		if lengths[i] > maxLength {
			maxLength = lengths[i]
		}
	}
	if maxLength == 0 {
		return nil, fmt.Errorf("batch has no characters")
	}

	backing := make([]float32, len(sequences)*maxLength*dim)
	for i, units := range unitised {
		for j, u := range units {
			if vec, ok := table[u]; ok {
				copy(backing[(i*maxLength+j)*dim:], vec)
			}
		}
	}
	embeddings := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(sequences), maxLength, dim),
		tensor.WithBacking(backing),
	)
	return extract.NewBatch(embeddings, lengths)
}

// UnitEmbeddings assembles the vocabulary-unit embedding tensor in unit-id
// order from the table.
func (e *Extractor) UnitEmbeddings(table EmbeddingTable) (*tensor.Dense, error) {
	dim, err := table.Dim()
	if err != nil {
		return nil, err
	}
	numUnits := e.Vocabulary.NumUnits()
	backing := make([]float32, numUnits*dim)
	for id, unit := range e.Vocabulary.IDToUnit {
		if vec, ok := table[unit]; ok {
			copy(backing[id*dim:], vec)
		}
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(numUnits, dim),
		tensor.WithBacking(backing),
	), nil
}

// Extract scores a batch under the configured relaxation level.
func (e *Extractor) Extract(batch *extract.Batch, unitRepr *tensor.Dense) (*extract.Result, error) {
	return e.Pipeline.Run(batch, unitRepr, e.Schedule)
}

// ExtractEval scores a batch with fully hard selection, as used at
// evaluation time.
func (e *Extractor) ExtractEval(batch *extract.Batch, unitRepr *tensor.Dense) (*extract.Result, error) {
	return e.Pipeline.RunEval(batch, unitRepr, e.Schedule)
}

// Segmentations converts a result into per-sequence segmentations for
// evaluation: each sequence contributes its best span when the sequence
// matched and the selected span's edit distance falls below the matched
// threshold, and an empty segmentation otherwise.
func (e *Extractor) Segmentations(result *extract.Result, sequences []string) []eval.Segmentation {
	segmentations := make([]eval.Segmentation, len(sequences))
	for b := range sequences {
		if !result.Matched[b] || result.BestVocab[b] < 0 ||
			result.BestEdDist[b] >= e.Options.MatchedThreshold {
			continue
		}
		segmentations[b] = eval.Segmentation{{
			Word:  e.Vocabulary.Entries[result.BestVocab[b]].Word,
			Start: result.BestStart[b],
			End:   result.BestEnd[b],
		}}
	}
	return segmentations
}
