package options

import (
	"errors"
	"fmt"
)

// RelaxationLevel selects how much of the arg-min/arg-max selection chain is
// replaced by a differentiable soft surrogate. Level 0 is fully hard and is
// always used at evaluation time.
type RelaxationLevel int

const (
	RelaxationHard          RelaxationLevel = 0
	RelaxationSoftValue     RelaxationLevel = 1
	RelaxationSoftThreshold RelaxationLevel = 2
	RelaxationSoftScore     RelaxationLevel = 3
	RelaxationJoint         RelaxationLevel = 4
)

// Distance metric used for the substitution cost table.
type DistanceMetric int

const (
	MetricCosine DistanceMetric = iota
	MetricHamming
)

// Edit policy for insertion/deletion steps in the alignment DP.
const (
	// CheapEditCost is the standard unit insertion/deletion cost.
	CheapEditCost float32 = 1.0
	// SubOnlyEditCost makes insertions/deletions effectively unreachable,
	// forcing substitution-only alignments.
	SubOnlyEditCost float32 = 100.0
)

// Options holds the static configuration of an extractor. Construct with
// Defaults and apply WithOption functions, then Validate before use.
type Options struct {
	MinWordLength   int
	MaxWordLength   int
	MaxNumWords     int
	RelaxationLevel RelaxationLevel
	Metric          DistanceMetric
	InsDelCost      float32
	// BandWidth bounds the alignment DP to cells with |ls-lt| <= BandWidth.
	// The production value is 2; widening it is only meaningful for
	// verification against the unbanded edit distance.
	BandWidth int

	Temperature   float32
	InitThreshold float32
	AnnealFactor  float32
	MinThreshold  float32

	// MatchedThreshold is the evaluation-time cut: a selected span only
	// counts as a found word when its edit distance falls below it. It is
	// independent of the annealed training threshold.
	MatchedThreshold float32
}

// Defaults returns the option values used by the original extraction system.
func Defaults() *Options {
	return &Options{
		MinWordLength:    4,
		MaxWordLength:    10,
		MaxNumWords:      3,
		RelaxationLevel:  RelaxationHard,
		Metric:           MetricCosine,
		InsDelCost:       CheapEditCost,
		BandWidth:        2,
		Temperature:      0.2,
		InitThreshold:    0.5,
		AnnealFactor:     0.8,
		MinThreshold:     0.01,
		MatchedThreshold: 0.99,
	}
}

// WithOption is the interface for all option functions.
type WithOption func(o *Options) error

func WithWordLengths(minLength, maxLength int) WithOption {
	return func(o *Options) error {
		o.MinWordLength = minLength
		o.MaxWordLength = maxLength
		return nil
	}
}

func WithMaxNumWords(n int) WithOption {
	return func(o *Options) error {
		o.MaxNumWords = n
		return nil
	}
}

func WithRelaxationLevel(level RelaxationLevel) WithOption {
	return func(o *Options) error {
		if level < RelaxationHard || level > RelaxationJoint {
			return fmt.Errorf("relaxation level must be in [0, 4], got %d", level)
		}
		o.RelaxationLevel = level
		return nil
	}
}

// WithHammingDistance switches the substitution cost from cosine distance to
// the feature-group Hamming distance.
func WithHammingDistance() WithOption {
	return func(o *Options) error {
		o.Metric = MetricHamming
		return nil
	}
}

// WithSubstitutionOnly discourages insertions and deletions in the alignment
// by pricing them at SubOnlyEditCost.
func WithSubstitutionOnly() WithOption {
	return func(o *Options) error {
		o.InsDelCost = SubOnlyEditCost
		return nil
	}
}

func WithTemperature(t float32) WithOption {
	return func(o *Options) error {
		if t <= 0 {
			return fmt.Errorf("temperature must be positive, got %f", t)
		}
		o.Temperature = t
		return nil
	}
}

func WithThresholdSchedule(initThreshold, annealFactor float32) WithOption {
	return func(o *Options) error {
		o.InitThreshold = initThreshold
		o.AnnealFactor = annealFactor
		return nil
	}
}

// WithMatchedThreshold sets the evaluation-time edit-distance cut below
// which a selected span counts as a found word.
func WithMatchedThreshold(t float32) WithOption {
	return func(o *Options) error {
		if t <= 0 {
			return fmt.Errorf("matched threshold must be positive, got %f", t)
		}
		o.MatchedThreshold = t
		return nil
	}
}

// WithBandWidth widens the alignment DP band. The production band is 2;
// widening it only serves verification against the unbanded edit distance.
func WithBandWidth(w int) WithOption {
	return func(o *Options) error {
		if w < 1 {
			return fmt.Errorf("band width must be at least 1, got %d", w)
		}
		o.BandWidth = w
		return nil
	}
}

// Validate checks the options for consistency. All violations are fatal at
// construction time.
func (o *Options) Validate() error {
	var validationErrors []error
	if o.MinWordLength < 1 {
		validationErrors = append(validationErrors, fmt.Errorf("min word length must be at least 1, got %d", o.MinWordLength))
	}
	if o.MinWordLength > o.MaxWordLength {
		validationErrors = append(validationErrors, fmt.Errorf("min word length %d exceeds max word length %d", o.MinWordLength, o.MaxWordLength))
	}
	if o.MaxNumWords < 1 {
		validationErrors = append(validationErrors, fmt.Errorf("max num words must be at least 1, got %d", o.MaxNumWords))
	}
	if o.RelaxationLevel < RelaxationHard || o.RelaxationLevel > RelaxationJoint {
		validationErrors = append(validationErrors, fmt.Errorf("relaxation level must be in [0, 4], got %d", o.RelaxationLevel))
	}
	if o.Temperature <= 0 {
		validationErrors = append(validationErrors, fmt.Errorf("temperature must be positive, got %f", o.Temperature))
	}
	if o.InitThreshold <= 0 {
		validationErrors = append(validationErrors, fmt.Errorf("initial threshold must be positive, got %f", o.InitThreshold))
	}
	if o.BandWidth < 1 {
		validationErrors = append(validationErrors, fmt.Errorf("band width must be at least 1, got %d", o.BandWidth))
	}
	if o.MatchedThreshold <= 0 {
		validationErrors = append(validationErrors, fmt.Errorf("matched threshold must be positive, got %f", o.MatchedThreshold))
	}
	return errors.Join(validationErrors...)
}

// Schedule carries the annealed scalars that change between training steps.
// A Schedule is read-only inside a single scoring call; the external trainer
// advances it between calls.
type Schedule struct {
	Threshold   float32
	Temperature float32

	annealFactor float32
	minThreshold float32
}

// NewSchedule initializes the schedule from the configured initial values.
func NewSchedule(o *Options) Schedule {
	return Schedule{
		Threshold:    o.InitThreshold,
		Temperature:  o.Temperature,
		annealFactor: o.AnnealFactor,
		minThreshold: o.MinThreshold,
	}
}

// Anneal returns the schedule advanced by one step: the threshold decays by
// the anneal factor, floored at the configured minimum.
func (s Schedule) Anneal() Schedule {
	next := s
	next.Threshold *= s.annealFactor
	if next.Threshold < s.minThreshold {
		next.Threshold = s.minThreshold
	}
	return next
}
