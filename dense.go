package tsetlin

import (
	"os"

	"github.com/pkg/errors"
	"github.com/segmentio/go-tsetlin/internal/satmath"
	"github.com/segmentio/go-tsetlin/rng"
)

// DenseEngine is the flat-array Tsetlin Machine representation. Every
// automaton's counter is stored whether or not it is included, which makes
// clause evaluation a straight scan but gives the largest model size of the
// three variants.
type DenseEngine struct {
	p *params
	r *rng.Rng

	// taState is indexed [clause*numAutomata() + literalIndex].
	taState []int8

	// weights is indexed [clause*numClasses + class].
	weights []int16

	outputActivation OutputActivation
	groundTruth      GroundTruthInterpretation
	equality         EqualityPredicate
}

// NewDense constructs a randomly-initialized Dense engine per §4.8: for
// each clause and literal, a fair coin decides whether the positive or
// negated automaton starts included; weights start at +-1 by fair coin.
func NewDense(hp Hyperparameters, seed uint32) (*DenseEngine, error) {
	p, err := hp.toInternal()
	if err != nil {
		return nil, err
	}

	e := &DenseEngine{
		p:        p,
		r:        rng.New(seed),
		taState:  make([]int8, p.numClauses*p.numAutomata()),
		weights:  make([]int16, p.numClauses*p.numClasses),
		equality: defaultEqualityPredicate,
	}
	e.outputActivation, e.groundTruth = defaultStrategies(p)

	for clause := 0; clause < p.numClauses; clause++ {
		base := clause * p.numAutomata()
		for l := 0; l < p.numLiterals; l++ {
			if e.r.NextU32()&1 == 0 {
				e.taState[base+2*l] = p.midState - 1
				e.taState[base+2*l+1] = p.midState
			} else {
				e.taState[base+2*l] = p.midState
				e.taState[base+2*l+1] = p.midState - 1
			}
		}

		wbase := clause * p.numClasses
		for c := 0; c < p.numClasses; c++ {
			if e.r.NextU32()&1 == 0 {
				e.weights[wbase+c] = 1
			} else {
				e.weights[wbase+c] = -1
			}
		}
	}

	return e, nil
}

// defaultStrategies picks the output activation and ground-truth
// interpretation implied by the label shape, matching the y_size
// convention from §3: y_size==1 is class-index, y_size==C is binary
// vector.
func defaultStrategies(p *params) (OutputActivation, GroundTruthInterpretation) {
	if p.ySize == 1 {
		return ClassIndexActivation(), ClassIndexLabels()
	}
	return BinaryVectorActivation(), BinaryVectorLabels()
}

// Hyperparameters returns the effective configuration of this engine.
func (e *DenseEngine) Hyperparameters() Hyperparameters {
	return e.p.toExternal()
}

// SetOutputActivation installs a, replacing the default activation chosen
// from YSize.
func (e *DenseEngine) SetOutputActivation(a OutputActivation) {
	e.outputActivation = a
}

// SetCalculateFeedback installs g as the ground-truth interpretation and
// class-selection strategy used during Train, replacing the default chosen
// from YSize.
func (e *DenseEngine) SetCalculateFeedback(g GroundTruthInterpretation) {
	e.groundTruth = g
}

// SetEqualityPredicate installs eq, replacing raw byte equality, for use by
// Evaluate.
func (e *DenseEngine) SetEqualityPredicate(eq EqualityPredicate) {
	e.equality = eq
}

// Clear re-randomizes this engine's clauses and weights in place, as if
// freshly constructed with a new seed.
func (e *DenseEngine) Clear(seed uint32) {
	fresh, _ := NewDense(e.p.toExternal(), seed)
	e.r = fresh.r
	e.taState = fresh.taState
	e.weights = fresh.weights
}

// clauseOutputs computes the output of every clause against one row, per
// §4.2. skipEmpty should be false during training (so empty clauses remain
// Type-I-a eligible) and true during inference.
func (e *DenseEngine) clauseOutputs(x []byte, skipEmpty bool, out []bool) {
	p := e.p
	for clause := 0; clause < p.numClauses; clause++ {
		base := clause * p.numAutomata()
		nonEmpty := false
		output := true

		for l := 0; l < p.numLiterals; l++ {
			posState := e.taState[base+2*l]
			negState := e.taState[base+2*l+1]

			if p.included(posState) {
				nonEmpty = true
				if x[l] != 1 {
					output = false
					break
				}
			}
			if p.included(negState) {
				nonEmpty = true
				if x[l] != 0 {
					output = false
					break
				}
			}
		}

		if output && !nonEmpty && skipEmpty {
			output = false
		}
		out[clause] = output
	}
}

// sumVotes adds each active clause's per-class weight into votes and
// symmetrically clips the result, per §4.3. votes must be zeroed by the
// caller.
func (e *DenseEngine) sumVotes(clauseOut []bool, votes []int32) {
	p := e.p
	for clause := 0; clause < p.numClauses; clause++ {
		if !clauseOut[clause] {
			continue
		}
		wbase := clause * p.numClasses
		for c := 0; c < p.numClasses; c++ {
			votes[c] += int32(e.weights[wbase+c])
		}
	}
	for c := range votes {
		votes[c] = satmath.ClipVote(votes[c], p.threshold)
	}
}

// applyTypeIa strengthens clause's vote for class and nudges its automata
// toward the literals that agree with x, per §4.4.
func (e *DenseEngine) applyTypeIa(clause, class int, x []byte) {
	p := e.p
	widx := clause*p.numClasses + class
	e.weights[widx] = satmath.IncWeightMagnitude(e.weights[widx])

	base := clause * p.numAutomata()
	for l := 0; l < p.numLiterals; l++ {
		for parity := 0; parity < 2; parity++ {
			i := base + 2*l + parity
			state := e.taState[i]
			correct := parity != int(x[l])

			if correct {
				if p.boostTPF || float64(e.r.NextF32()) < p.sM1Inv {
					e.taState[i] = satmath.IncCounter(state, p.maxState)
				}
			} else if float64(e.r.NextF32()) < p.sInv {
				e.taState[i] = satmath.DecCounter(state, p.minState)
			}
		}
	}
}

// applyTypeIb weakens clause's automata non-destructively, without
// touching its weight, per §4.4.
func (e *DenseEngine) applyTypeIb(clause int, x []byte) {
	p := e.p
	base := clause * p.numAutomata()
	for l := 0; l < p.numLiterals; l++ {
		for parity := 0; parity < 2; parity++ {
			i := base + 2*l + parity
			if float64(e.r.NextF32()) < p.sInv {
				e.taState[i] = satmath.DecCounter(e.taState[i], p.minState)
			}
		}
	}
}

// applyTypeII corrects clause's vote for class toward zero and raises any
// excluded automaton whose inclusion would have deactivated the clause,
// per §4.4.
func (e *DenseEngine) applyTypeII(clause, class int, x []byte) {
	p := e.p
	widx := clause*p.numClasses + class
	e.weights[widx] = satmath.DecWeightTowardZero(e.weights[widx])

	base := clause * p.numAutomata()
	for l := 0; l < p.numLiterals; l++ {
		for parity := 0; parity < 2; parity++ {
			i := base + 2*l + parity
			state := e.taState[i]
			if p.included(state) {
				continue
			}
			wouldDeactivate := parity == int(x[l])
			if wouldDeactivate {
				e.taState[i] = satmath.IncCounter(state, p.maxState)
			}
		}
	}
}

// applyFeedback dispatches and applies the appropriate rule for (clause,
// class), given whether class is this row's positive or negative target.
func (e *DenseEngine) applyFeedback(clause, class int, isPositiveClass bool, clauseOut bool, x []byte) {
	widx := clause*e.p.numClasses + class
	switch dispatchFeedback(e.weights[widx], isPositiveClass, clauseOut) {
	case typeIaFeedback:
		e.applyTypeIa(clause, class, x)
	case typeIbFeedback:
		e.applyTypeIb(clause, x)
	case typeIIFeedback:
		e.applyTypeII(clause, class, x)
	}
}

// Train runs epochs passes over rows rows of (x, y), applying feedback per
// §4.5.
func (e *DenseEngine) Train(x, y []byte, rows, epochs int) error {
	p := e.p
	if len(x) != rows*p.numLiterals {
		return ErrBufferShape
	}
	if len(y) != rows*p.ySize*p.yElementSize {
		return ErrBufferShape
	}

	clauseOut := make([]bool, p.numClauses)
	votes := make([]int32, p.numClasses)

	for epoch := 0; epoch < epochs; epoch++ {
		for row := 0; row < rows; row++ {
			xRow := x[row*p.numLiterals : (row+1)*p.numLiterals]
			yRow := y[row*p.ySize*p.yElementSize : (row+1)*p.ySize*p.yElementSize]

			e.clauseOutputs(xRow, false, clauseOut)
			for c := range votes {
				votes[c] = 0
			}
			e.sumVotes(clauseOut, votes)

			positive, negative := e.groundTruth.selectClasses(e.r, p, votes, yRow)

			var pPos, pNeg float64
			if positive.present {
				pPos = feedbackProbability(p.threshold, votes[positive.class], true)
			}
			if negative.present {
				pNeg = feedbackProbability(p.threshold, votes[negative.class], false)
			}

			for clause := 0; clause < p.numClauses; clause++ {
				if positive.present && float64(e.r.NextF32()) < pPos {
					e.applyFeedback(clause, positive.class, true, clauseOut[clause], xRow)
				}
				if negative.present && float64(e.r.NextF32()) < pNeg {
					e.applyFeedback(clause, negative.class, false, clauseOut[clause], xRow)
				}
			}
		}
	}

	return nil
}

// Predict writes the activated prediction for each of rows rows of x into
// yPred, per §4.6.
func (e *DenseEngine) Predict(x, yPred []byte, rows int) error {
	p := e.p
	if len(x) != rows*p.numLiterals {
		return ErrBufferShape
	}
	if len(yPred) != rows*p.ySize*p.yElementSize {
		return ErrBufferShape
	}

	clauseOut := make([]bool, p.numClauses)
	votes := make([]int32, p.numClasses)

	for row := 0; row < rows; row++ {
		xRow := x[row*p.numLiterals : (row+1)*p.numLiterals]
		yPredRow := yPred[row*p.ySize*p.yElementSize : (row+1)*p.ySize*p.yElementSize]

		e.clauseOutputs(xRow, true, clauseOut)
		for c := range votes {
			votes[c] = 0
		}
		e.sumVotes(clauseOut, votes)

		e.outputActivation.apply(p, votes, yPredRow)
	}

	return nil
}

// Evaluate runs Predict and returns the number of rows whose prediction
// matches y under the configured equality predicate.
func (e *DenseEngine) Evaluate(x, y []byte, rows int) (int, error) {
	p := e.p
	yPred := make([]byte, rows*p.ySize*p.yElementSize)
	if err := e.Predict(x, yPred, rows); err != nil {
		return 0, err
	}

	rowSize := p.ySize * p.yElementSize
	correct := 0
	for row := 0; row < rows; row++ {
		off := row * rowSize
		if e.equality(yPred[off:off+rowSize], y[off:off+rowSize]) {
			correct++
		}
	}
	return correct, nil
}

// Save writes this engine's dense binary model to path, per §4.7.
func (e *DenseEngine) Save(path string) error {
	buf := encodeDense(e.p, e.weights, e.taState)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return errors.Wrap(err, "writing dense tsetlin machine model")
	}
	return nil
}

// LoadDense reads a dense binary model from path, interpreting its labels
// with the given shape.
func LoadDense(path string, ySize, yElementSize int) (*DenseEngine, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading dense tsetlin machine model")
	}

	p, weights, taState, err := decodeDense(buf, ySize, yElementSize)
	if err != nil {
		return nil, err
	}

	e := &DenseEngine{
		p:        p,
		r:        rng.New(1),
		taState:  taState,
		weights:  weights,
		equality: defaultEqualityPredicate,
	}
	e.outputActivation, e.groundTruth = defaultStrategies(p)
	return e, nil
}
