package tsetlin

import "fmt"

// Hyperparameters configure a Tsetlin Machine engine. They are validated and
// translated into an internal params value at construction or load time.
type Hyperparameters struct {
	// NumClasses is the number of classes the machine votes over.
	NumClasses int

	// Threshold (T) is the symmetric clipping bound applied to summed votes.
	Threshold int32

	// NumLiterals (L) is the number of binary features. Each feature
	// contributes two literals (positive and negated), so the automaton
	// index space has size 2*NumLiterals.
	NumLiterals int

	// NumClauses (K) is the total number of clauses. Every clause is shared
	// by all classes and carries one weight per class.
	NumClauses int

	// MaxState and MinState bound every automaton counter. MinState must be
	// strictly less than MaxState.
	MaxState int8
	MinState int8

	// BoostTruePositiveFeedback, when true, applies Type I-a inclusion
	// rewards unconditionally instead of with probability SM1Inv. Type I-a
	// punishments still consult the PRNG.
	BoostTruePositiveFeedback bool

	// S controls the feedback probabilities; must be > 1.0.
	S float64

	// YSize is the number of label elements per row (1 for class-index
	// labels, NumClasses for binary-vector labels).
	YSize int

	// YElementSize is the width in bytes of each label element.
	YElementSize int
}

// params holds the validated, derived form of Hyperparameters used
// internally by every engine variant.
type params struct {
	numClasses   int
	threshold    int32
	numLiterals  int
	numClauses   int
	maxState     int8
	minState     int8
	boostTPF     bool
	s            float64
	ySize        int
	yElementSize int

	midState        int8
	sInv            float64
	sM1Inv          float64
	sparseMinState  int8
	sparseInitState int8
	bitmapStride    int
}

// sparseStateMargin is the fixed offset below midState at which a sparse
// automaton is considered absent and pruned.
const sparseStateMargin = 40

// sparseInitOffset is the offset above sparseMinState at which newly grown
// sparse automata start.
const sparseInitOffset = 5

func (hp Hyperparameters) validate() error {
	if hp.NumClasses <= 0 {
		return fmt.Errorf("NumClasses must be positive, got %d", hp.NumClasses)
	}
	if hp.NumLiterals <= 0 {
		return fmt.Errorf("NumLiterals must be positive, got %d", hp.NumLiterals)
	}
	if hp.NumClauses <= 0 {
		return fmt.Errorf("NumClauses must be positive, got %d", hp.NumClauses)
	}
	if hp.MinState >= hp.MaxState {
		return fmt.Errorf("MinState (%d) must be less than MaxState (%d)", hp.MinState, hp.MaxState)
	}
	if hp.S <= 1.0 {
		return fmt.Errorf("S must be greater than 1.0, got %f", hp.S)
	}
	if hp.YSize <= 0 {
		return fmt.Errorf("YSize must be positive, got %d", hp.YSize)
	}
	if hp.YElementSize <= 0 {
		return fmt.Errorf("YElementSize must be positive, got %d", hp.YElementSize)
	}
	if int64(hp.MinState)+int64(sparseStateMargin) > int64(hp.MaxState) {
		return fmt.Errorf("MaxState-MinState must be at least %d for sparse pruning margins", sparseStateMargin)
	}
	return nil
}

// toInternal validates hp and computes the derived constants every engine
// variant shares.
func (hp Hyperparameters) toInternal() (*params, error) {
	if err := hp.validate(); err != nil {
		return nil, err
	}

	mid := int8((int32(hp.MaxState) + int32(hp.MinState)) / 2)
	sparseMin := int8(int32(mid) - sparseStateMargin)
	sparseInit := int8(int32(sparseMin) + sparseInitOffset)

	return &params{
		numClasses:      hp.NumClasses,
		threshold:       hp.Threshold,
		numLiterals:     hp.NumLiterals,
		numClauses:      hp.NumClauses,
		maxState:        hp.MaxState,
		minState:        hp.MinState,
		boostTPF:        hp.BoostTruePositiveFeedback,
		s:               hp.S,
		ySize:           hp.YSize,
		yElementSize:    hp.YElementSize,
		midState:        mid,
		sInv:            1.0 / hp.S,
		sM1Inv:          (hp.S - 1.0) / hp.S,
		sparseMinState:  sparseMin,
		sparseInitState: sparseInit,
		bitmapStride:    divideBy8RoundUp(hp.NumLiterals),
	}, nil
}

// toExternal translates the internal params back to their exported form.
func (p *params) toExternal() Hyperparameters {
	return Hyperparameters{
		NumClasses:                p.numClasses,
		Threshold:                 p.threshold,
		NumLiterals:               p.numLiterals,
		NumClauses:                p.numClauses,
		MaxState:                  p.maxState,
		MinState:                  p.minState,
		BoostTruePositiveFeedback: p.boostTPF,
		S:                         p.s,
		YSize:                     p.ySize,
		YElementSize:              p.yElementSize,
	}
}

// numAutomata is the size of the literal index space, 2*NumLiterals.
func (p *params) numAutomata() int {
	return 2 * p.numLiterals
}

// included reports whether a counter value is included in its clause.
func (p *params) included(state int8) bool {
	return state >= p.midState
}
