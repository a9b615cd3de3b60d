package tsetlin

import (
	"os"

	"github.com/pkg/errors"
	"github.com/segmentio/go-tsetlin/internal/satmath"
	"github.com/segmentio/go-tsetlin/rng"
)

// SparseEngine represents each clause as an ordered list of (ta_id,
// counter) pairs for automata whose counter has not fallen below
// sparse_min_state, plus a per-class bitmap of literals that have ever
// been observed true while growing Type-I-a eligibility. It trades a
// smaller model and faster clause evaluation for an approximation of the
// dense feedback rules around automata it has pruned away.
type SparseEngine struct {
	p *params
	r *rng.Rng

	// clauses[c] holds clause c's nodes sorted by ascending taID.
	clauses [][]sparseNode

	// weights is indexed [clause*numClasses + class], identical layout to
	// DenseEngine.
	weights []int16

	// activeLiterals is a row-major bitmap, one row of bitmapStride bytes
	// per class, one bit per literal l (not per automaton index).
	activeLiterals []byte

	outputActivation OutputActivation
	groundTruth      GroundTruthInterpretation
	equality         EqualityPredicate
}

// NewSparse constructs a Sparse engine with every clause empty and weights
// initialized to +-1 by fair coin, per §4.8.
func NewSparse(hp Hyperparameters, seed uint32) (*SparseEngine, error) {
	p, err := hp.toInternal()
	if err != nil {
		return nil, err
	}

	e := &SparseEngine{
		p:              p,
		r:              rng.New(seed),
		clauses:        make([][]sparseNode, p.numClauses),
		weights:        make([]int16, p.numClauses*p.numClasses),
		activeLiterals: make([]byte, p.numClasses*p.bitmapStride),
		equality:       defaultEqualityPredicate,
	}
	e.outputActivation, e.groundTruth = defaultStrategies(p)

	for clause := 0; clause < p.numClauses; clause++ {
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

// Hyperparameters returns the effective configuration of this engine.
func (e *SparseEngine) Hyperparameters() Hyperparameters {
	return e.p.toExternal()
}

// SetOutputActivation installs a, replacing the default activation chosen
// from YSize.
func (e *SparseEngine) SetOutputActivation(a OutputActivation) {
	e.outputActivation = a
}

// SetCalculateFeedback installs g as the ground-truth interpretation and
// class-selection strategy used during Train.
func (e *SparseEngine) SetCalculateFeedback(g GroundTruthInterpretation) {
	e.groundTruth = g
}

// SetEqualityPredicate installs eq, replacing raw byte equality, for use by
// Evaluate.
func (e *SparseEngine) SetEqualityPredicate(eq EqualityPredicate) {
	e.equality = eq
}

// Clear empties every clause and active-literal bit and re-randomizes the
// weights, as if freshly constructed with a new seed.
func (e *SparseEngine) Clear(seed uint32) {
	fresh, _ := NewSparse(e.p.toExternal(), seed)
	e.r = fresh.r
	e.clauses = fresh.clauses
	e.weights = fresh.weights
	e.activeLiterals = fresh.activeLiterals
}

// clauseOutputs computes the output of every clause against one row by
// walking each clause's node list in ascending ta_id order, per §4.2.
func (e *SparseEngine) clauseOutputs(x []byte, skipEmpty bool, out []bool) {
	p := e.p
	for clause := 0; clause < p.numClauses; clause++ {
		nodes := e.clauses[clause]
		output := true
		for _, n := range nodes {
			l := int(n.taID) >> 1
			parity := int(n.taID) & 1
			if parity == int(x[l]) {
				output = false
				break
			}
		}
		if output && len(nodes) == 0 && skipEmpty {
			output = false
		}
		out[clause] = output
	}
}

// sumVotes adds each active clause's per-class weight into votes and
// symmetrically clips the result, identical in layout to DenseEngine.
func (e *SparseEngine) sumVotes(clauseOut []bool, votes []int32) {
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

// applyTypeIa strengthens clause's vote for class, updates present
// automata as dense does (pruning any that fall below sparse_min_state),
// and for absent automata grows active-literal eligibility without
// creating a node, per the sparse-specific rules in §4.4.
func (e *SparseEngine) applyTypeIa(clause, class int, x []byte) {
	p := e.p
	widx := clause*p.numClasses + class
	e.weights[widx] = satmath.IncWeightMagnitude(e.weights[widx])

	old := e.clauses[clause]
	next := make([]sparseNode, 0, len(old))
	idx := 0

	for i := 0; i < p.numAutomata(); i++ {
		l := i >> 1
		parity := i & 1

		if idx < len(old) && int(old[idx].taID) == i {
			node := old[idx]
			idx++
			state := node.state
			correct := parity != int(x[l])

			if correct {
				if p.boostTPF || float64(e.r.NextF32()) < p.sM1Inv {
					state = satmath.IncCounter(state, p.maxState)
				}
			} else if float64(e.r.NextF32()) < p.sInv {
				state = satmath.DecCounter(state, p.minState)
			}

			if state >= p.sparseMinState {
				next = append(next, sparseNode{taID: uint32(i), state: state})
			}
		} else if parity == 0 && x[l] == 1 && !bitmapGet(e.activeLiterals, p.bitmapStride, class, l) {
			bitmapSet(e.activeLiterals, p.bitmapStride, class, l)
		}
	}

	e.clauses[clause] = next
}

// applyTypeIb weakens clause's present automata non-destructively, pruning
// any that fall below sparse_min_state, without touching its weight or
// growing active-literal eligibility.
func (e *SparseEngine) applyTypeIb(clause int, x []byte) {
	p := e.p
	old := e.clauses[clause]
	next := make([]sparseNode, 0, len(old))
	idx := 0

	for i := 0; i < p.numAutomata(); i++ {
		if idx < len(old) && int(old[idx].taID) == i {
			node := old[idx]
			idx++
			state := node.state
			if float64(e.r.NextF32()) < p.sInv {
				state = satmath.DecCounter(state, p.minState)
			}
			if state >= p.sparseMinState {
				next = append(next, sparseNode{taID: uint32(i), state: state})
			}
		}
	}

	e.clauses[clause] = next
}

// applyTypeII corrects clause's vote for class toward zero, raises any
// present-but-excluded automaton whose inclusion would have deactivated
// the clause, and grows new nodes for absent automata gated by the
// active-literal bitmap, per the sparse-specific rules in §4.4.
func (e *SparseEngine) applyTypeII(clause, class int, x []byte) {
	p := e.p
	widx := clause*p.numClasses + class
	e.weights[widx] = satmath.DecWeightTowardZero(e.weights[widx])

	old := e.clauses[clause]
	next := make([]sparseNode, 0, len(old)+1)
	idx := 0

	for i := 0; i < p.numAutomata(); i++ {
		l := i >> 1
		parity := i & 1

		if idx < len(old) && int(old[idx].taID) == i {
			node := old[idx]
			idx++
			state := node.state
			if !p.included(state) && parity == int(x[l]) {
				state = satmath.IncCounter(state, p.maxState)
			}
			next = append(next, sparseNode{taID: uint32(i), state: state})
		} else {
			active := bitmapGet(e.activeLiterals, p.bitmapStride, class, l)
			insert := active && (parity == 0 || (parity == 1 && x[l] == 1))
			if insert {
				next = append(next, sparseNode{taID: uint32(i), state: p.sparseInitState})
			}
		}
	}

	e.clauses[clause] = next
}

// applyFeedback dispatches and applies the appropriate rule for (clause,
// class), given whether class is this row's positive or negative target.
func (e *SparseEngine) applyFeedback(clause, class int, isPositiveClass bool, clauseOut bool, x []byte) {
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
func (e *SparseEngine) Train(x, y []byte, rows, epochs int) error {
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
func (e *SparseEngine) Predict(x, yPred []byte, rows int) error {
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
func (e *SparseEngine) Evaluate(x, y []byte, rows int) (int, error) {
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

// Save writes this engine's sparse binary model to path, per §4.7.
func (e *SparseEngine) Save(path string) error {
	weightsSize := len(e.weights) * 2
	header := make([]byte, denseHeaderSize)
	encodeHeader(header, e.p)

	weights := make([]byte, weightsSize)
	encodeWeights(weights, e.weights)

	records := encodeSparseClauses(e.clauses)

	buf := make([]byte, 0, len(header)+len(weights)+len(records))
	buf = append(buf, header...)
	buf = append(buf, weights...)
	buf = append(buf, records...)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return errors.Wrap(err, "writing sparse tsetlin machine model")
	}
	return nil
}

// LoadSparse reads a native sparse binary model from path.
func LoadSparse(path string, ySize, yElementSize int) (*SparseEngine, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading sparse tsetlin machine model")
	}

	h, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}
	p, err := h.toParams(ySize, yElementSize)
	if err != nil {
		return nil, err
	}

	weightsCount := p.numClauses * p.numClasses
	weightsSize := weightsCount * 2
	rest := buf[denseHeaderSize:]
	weights, err := decodeWeights(rest, weightsCount)
	if err != nil {
		return nil, err
	}

	clauses, err := decodeSparseClauses(rest[weightsSize:], p.numClauses)
	if err != nil {
		return nil, err
	}

	e := &SparseEngine{
		p:              p,
		r:              rng.New(1),
		clauses:        clauses,
		weights:        weights,
		activeLiterals: make([]byte, p.numClasses*p.bitmapStride),
		equality:       defaultEqualityPredicate,
	}
	e.outputActivation, e.groundTruth = defaultStrategies(p)
	return e, nil
}

// LoadDenseIntoSparse reads a dense binary model from path and converts it
// into a Sparse engine, retaining each automaton whose dense counter is at
// or above mid_state and preserving its original counter, per §4.7's
// cross-load rule.
func LoadDenseIntoSparse(path string, ySize, yElementSize int) (*SparseEngine, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading dense tsetlin machine model")
	}

	p, weights, taState, err := decodeDense(buf, ySize, yElementSize)
	if err != nil {
		return nil, err
	}

	clauses := make([][]sparseNode, p.numClauses)
	automataPerClause := p.numAutomata()
	for clause := 0; clause < p.numClauses; clause++ {
		clauseState := taState[clause*automataPerClause : (clause+1)*automataPerClause]
		clauses[clause] = denseTAStateToNodes(p, clauseState)
	}

	e := &SparseEngine{
		p:              p,
		r:              rng.New(1),
		clauses:        clauses,
		weights:        weights,
		activeLiterals: make([]byte, p.numClasses*p.bitmapStride),
		equality:       defaultEqualityPredicate,
	}
	e.outputActivation, e.groundTruth = defaultStrategies(p)
	return e, nil
}
