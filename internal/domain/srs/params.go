package srs

// Params defines all configurable parameters for the SRS algorithm and
// the knowledge-tier classifier.
type Params struct {
	// Core limits
	MinEaseFactor     float64
	DefaultEaseFactor float64

	// FailureThreshold is the lowest quality rating that still counts as
	// a successful recall. Ratings below it reset the repetition ladder.
	FailureThreshold int

	// Fixed intervals for the first and second consecutive successes,
	// in days. Later successes grow by the ease factor.
	FirstInterval  int
	SecondInterval int

	// MasteryThreshold is the number of consecutive successful
	// repetitions at which a unit is classified LEARNED rather than
	// SEEN. This is policy, not a property of the algorithm.
	MasteryThreshold int

	// MaxQuality is the top of the accepted quality rating range.
	MaxQuality int
}

// ParamsConfig allows overriding the default parameters when creating a
// new Params instance.
type ParamsConfig struct {
	MinEaseFactor     float64
	DefaultEaseFactor float64
	FailureThreshold  int
	FirstInterval     int
	SecondInterval    int
	MasteryThreshold  int
}

// NewDefaultParams creates a new Params instance with the standard SM-2
// values.
func NewDefaultParams() *Params {
	return &Params{
		MinEaseFactor:     1.3,
		DefaultEaseFactor: 2.5,
		FailureThreshold:  3,
		FirstInterval:     1,
		SecondInterval:    6,
		MasteryThreshold:  2,
		MaxQuality:        5,
	}
}

// NewParams creates a new Params instance with custom configuration.
// Zero-valued fields keep their defaults.
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.MinEaseFactor > 0 {
		params.MinEaseFactor = config.MinEaseFactor
	}
	if config.DefaultEaseFactor > 0 {
		params.DefaultEaseFactor = config.DefaultEaseFactor
	}
	if config.FailureThreshold > 0 {
		params.FailureThreshold = config.FailureThreshold
	}
	if config.FirstInterval > 0 {
		params.FirstInterval = config.FirstInterval
	}
	if config.SecondInterval > 0 {
		params.SecondInterval = config.SecondInterval
	}
	if config.MasteryThreshold > 0 {
		params.MasteryThreshold = config.MasteryThreshold
	}

	return params
}
