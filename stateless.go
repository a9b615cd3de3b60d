package tsetlin

import (
	"os"

	"github.com/pkg/errors"
	"github.com/segmentio/go-tsetlin/internal/satmath"
)

// StatelessEngine is the inference-only Tsetlin Machine representation:
// each clause retains only the literal indices that were included at
// cross-load time, with no counters at all. It has no constructor of its
// own and no Train method — it is produced only by cross-loading a
// previously-trained Dense model (LoadDenseIntoStateless) or by reloading
// a saved stateless model (LoadStateless).
type StatelessEngine struct {
	p *params

	// clauses[c] holds the sorted ta_ids included in clause c.
	clauses [][]uint32

	// weights is indexed [clause*numClasses + class], identical layout to
	// DenseEngine and SparseEngine.
	weights []int16

	outputActivation OutputActivation
	equality         EqualityPredicate
}

// Hyperparameters returns the effective configuration of this engine.
func (e *StatelessEngine) Hyperparameters() Hyperparameters {
	return e.p.toExternal()
}

// SetOutputActivation installs a, replacing the default activation chosen
// from YSize.
func (e *StatelessEngine) SetOutputActivation(a OutputActivation) {
	e.outputActivation = a
}

// SetEqualityPredicate installs eq, replacing raw byte equality, for use by
// Evaluate.
func (e *StatelessEngine) SetEqualityPredicate(eq EqualityPredicate) {
	e.equality = eq
}

// clauseOutputs computes the output of every clause against one row by
// walking each clause's literal-id list in ascending order, per §4.2.
// Stateless omits every state check: every listed literal is, by
// definition, included.
func (e *StatelessEngine) clauseOutputs(x []byte, skipEmpty bool, out []bool) {
	p := e.p
	for clause := 0; clause < p.numClauses; clause++ {
		ids := e.clauses[clause]
		output := true
		for _, id := range ids {
			l := int(id) >> 1
			parity := int(id) & 1
			if parity == int(x[l]) {
				output = false
				break
			}
		}
		if output && len(ids) == 0 && skipEmpty {
			output = false
		}
		out[clause] = output
	}
}

// sumVotes adds each active clause's per-class weight into votes and
// symmetrically clips the result, identical in layout to DenseEngine.
func (e *StatelessEngine) sumVotes(clauseOut []bool, votes []int32) {
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

// Predict writes the activated prediction for each of rows rows of x into
// yPred, per §4.6.
func (e *StatelessEngine) Predict(x, yPred []byte, rows int) error {
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
func (e *StatelessEngine) Evaluate(x, y []byte, rows int) (int, error) {
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

// Save writes this engine's stateless binary model to path, per §4.7.
func (e *StatelessEngine) Save(path string) error {
	header := make([]byte, denseHeaderSize)
	encodeHeader(header, e.p)

	weights := make([]byte, len(e.weights)*2)
	encodeWeights(weights, e.weights)

	records := encodeStatelessClauses(e.clauses)

	buf := make([]byte, 0, len(header)+len(weights)+len(records))
	buf = append(buf, header...)
	buf = append(buf, weights...)
	buf = append(buf, records...)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return errors.Wrap(err, "writing stateless tsetlin machine model")
	}
	return nil
}

// LoadStateless reads a native stateless binary model from path.
func LoadStateless(path string, ySize, yElementSize int) (*StatelessEngine, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading stateless tsetlin machine model")
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

	clauses, err := decodeStatelessClauses(rest[weightsSize:], p.numClauses)
	if err != nil {
		return nil, err
	}

	e := &StatelessEngine{
		p:        p,
		clauses:  clauses,
		weights:  weights,
		equality: defaultEqualityPredicate,
	}
	e.outputActivation, _ = defaultStrategies(p)
	return e, nil
}

// LoadDenseIntoStateless reads a dense binary model from path and converts
// it into a Stateless engine, retaining the literal id of every automaton
// whose dense counter is at or above mid_state and discarding its counter,
// per §4.7's cross-load rule.
func LoadDenseIntoStateless(path string, ySize, yElementSize int) (*StatelessEngine, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading dense tsetlin machine model")
	}

	p, weights, taState, err := decodeDense(buf, ySize, yElementSize)
	if err != nil {
		return nil, err
	}

	clauses := make([][]uint32, p.numClauses)
	automataPerClause := p.numAutomata()
	for clause := 0; clause < p.numClauses; clause++ {
		clauseState := taState[clause*automataPerClause : (clause+1)*automataPerClause]
		nodes := denseTAStateToNodes(p, clauseState)
		ids := make([]uint32, len(nodes))
		for i, n := range nodes {
			ids[i] = n.taID
		}
		clauses[clause] = ids
	}

	e := &StatelessEngine{
		p:        p,
		clauses:  clauses,
		weights:  weights,
		equality: defaultEqualityPredicate,
	}
	e.outputActivation, _ = defaultStrategies(p)
	return e, nil
}
