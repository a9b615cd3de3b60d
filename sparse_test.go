package tsetlin

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewSparse_StartsEmpty(t *testing.T) {
	hp := Hyperparameters{
		NumClasses: 2, Threshold: 15, NumLiterals: 4, NumClauses: 3,
		MaxState: 100, MinState: -100, S: 3.0, YSize: 1, YElementSize: 1,
	}
	e, err := NewSparse(hp, 1)
	require.NoError(t, err)

	for _, clause := range e.clauses {
		assert.Empty(t, clause)
	}
	for _, b := range e.activeLiterals {
		assert.Equal(t, byte(0), b)
	}
}

func Test_Sparse_ClauseOutputs_EmptyClauseMatchesSkipEmpty(t *testing.T) {
	hp := Hyperparameters{
		NumClasses: 1, Threshold: 5, NumLiterals: 2, NumClauses: 1,
		MaxState: 100, MinState: -100, S: 3.0, YSize: 1, YElementSize: 1,
	}
	e, err := NewSparse(hp, 1)
	require.NoError(t, err)

	out := make([]bool, 1)
	e.clauseOutputs([]byte{0, 0}, true, out)
	assert.False(t, out[0])

	e.clauseOutputs([]byte{0, 0}, false, out)
	assert.True(t, out[0])
}

// applyTypeIa on an absent automaton must grow active-literal eligibility
// without creating a node.
func Test_Sparse_TypeIa_GrowsBitmapNotNode(t *testing.T) {
	hp := Hyperparameters{
		NumClasses: 1, Threshold: 5, NumLiterals: 2, NumClauses: 1,
		MaxState: 100, MinState: -100, S: 3.0, YSize: 1, YElementSize: 1,
	}
	e, err := NewSparse(hp, 1)
	require.NoError(t, err)

	e.applyTypeIa(0, 0, []byte{1, 0})

	assert.Empty(t, e.clauses[0])
	assert.True(t, bitmapGet(e.activeLiterals, e.p.bitmapStride, 0, 0))
	assert.False(t, bitmapGet(e.activeLiterals, e.p.bitmapStride, 0, 1))
}

// applyTypeII must insert a new node for an absent automaton once the
// active-literal bitmap marks it eligible.
func Test_Sparse_TypeII_GrowsNodeOnceBitmapSet(t *testing.T) {
	hp := Hyperparameters{
		NumClasses: 1, Threshold: 5, NumLiterals: 1, NumClauses: 1,
		MaxState: 100, MinState: -100, S: 3.0, YSize: 1, YElementSize: 1,
	}
	e, err := NewSparse(hp, 1)
	require.NoError(t, err)

	bitmapSet(e.activeLiterals, e.p.bitmapStride, 0, 0)
	e.applyTypeII(0, 0, []byte{1})

	// Both automata for literal 0 become insertion-eligible once its bit is
	// set: pos0 unconditionally, neg0 because x[0] == 1.
	require.Len(t, e.clauses[0], 2)
	assert.Equal(t, uint32(0), e.clauses[0][0].taID)
	assert.Equal(t, uint32(1), e.clauses[0][1].taID)
	assert.Equal(t, e.p.sparseInitState, e.clauses[0][0].state)
	assert.Equal(t, e.p.sparseInitState, e.clauses[0][1].state)
}

// applyTypeIb must prune a node whose counter falls below sparse_min_state.
func Test_Sparse_TypeIb_PrunesBelowMinState(t *testing.T) {
	hp := Hyperparameters{
		NumClasses: 1, Threshold: 5, NumLiterals: 1, NumClauses: 1,
		MaxState: 100, MinState: -100, S: 3.0, YSize: 1, YElementSize: 1,
	}
	e, err := NewSparse(hp, 1)
	require.NoError(t, err)

	// Already one below the pruning cutoff: DecCounter saturates at
	// MinState, so regardless of whether the probabilistic punish fires
	// this round, the node stays below sparseMinState and gets dropped.
	e.clauses[0] = []sparseNode{{taID: 0, state: e.p.sparseMinState - 1}}
	e.applyTypeIb(0, []byte{0})

	assert.Empty(t, e.clauses[0])
}

func Test_Sparse_Train_RejectsWrongShapes(t *testing.T) {
	hp := Hyperparameters{
		NumClasses: 1, Threshold: 5, NumLiterals: 3, NumClauses: 1,
		MaxState: 100, MinState: -100, S: 3.0, YSize: 1, YElementSize: 1,
	}
	e, err := NewSparse(hp, 1)
	require.NoError(t, err)

	assert.Equal(t, ErrBufferShape, e.Train([]byte{1, 0}, []byte{0}, 1, 1))
	assert.Equal(t, ErrBufferShape, e.Predict([]byte{1, 0, 1}, []byte{0, 0}, 1))
}

func Test_Sparse_Train_GrowsClauses(t *testing.T) {
	hp := Hyperparameters{
		NumClasses: 2, Threshold: 15, NumLiterals: 6, NumClauses: 4,
		MaxState: 100, MinState: -100, S: 3.0, YSize: 1, YElementSize: 1,
	}
	e, err := NewSparse(hp, 1)
	require.NoError(t, err)

	x := make([]byte, 30*hp.NumLiterals)
	y := make([]byte, 30)
	for i := range x {
		x[i] = byte((i * 5) % 2)
	}
	for i := range y {
		y[i] = byte(i % 2)
	}
	require.NoError(t, e.Train(x, y, 30, 5))

	grew := false
	for _, clause := range e.clauses {
		if len(clause) > 0 {
			grew = true
		}
		for i := 1; i < len(clause); i++ {
			assert.Less(t, clause[i-1].taID, clause[i].taID)
		}
	}
	assert.True(t, grew)
}

func Test_Sparse_SaveLoad_RoundTrip(t *testing.T) {
	hp := Hyperparameters{
		NumClasses: 2, Threshold: 15, NumLiterals: 6, NumClauses: 4,
		MaxState: 100, MinState: -100, S: 3.0, YSize: 1, YElementSize: 1,
	}
	e, err := NewSparse(hp, 3)
	require.NoError(t, err)

	x := make([]byte, 20*hp.NumLiterals)
	y := make([]byte, 20)
	for i := range x {
		x[i] = byte(i % 2)
	}
	for i := range y {
		y[i] = byte(i % 2)
	}
	require.NoError(t, e.Train(x, y, 20, 4))

	path := filepath.Join(t.TempDir(), "sparse.bin")
	require.NoError(t, e.Save(path))

	loaded, err := LoadSparse(path, hp.YSize, hp.YElementSize)
	require.NoError(t, err)

	assert.Equal(t, e.clauses, loaded.clauses)
	assert.Equal(t, e.weights, loaded.weights)
	assert.Equal(t, e.Hyperparameters(), loaded.Hyperparameters())
}

// Cross-loading a dense model into sparse must keep exactly the included
// automata with their original counters, and produce identical
// predictions afterward.
func Test_LoadDenseIntoSparse_MatchesDense(t *testing.T) {
	hp := Hyperparameters{
		NumClasses: 1, Threshold: 5, NumLiterals: 3, NumClauses: 2,
		MaxState: 100, MinState: -100, S: 3.0, YSize: 1, YElementSize: 1,
	}
	dense, err := NewDense(hp, 9)
	require.NoError(t, err)

	x := make([]byte, 10*hp.NumLiterals)
	y := make([]byte, 10)
	for i := range x {
		x[i] = byte(i % 2)
	}
	require.NoError(t, dense.Train(x, y, 10, 3))

	path := filepath.Join(t.TempDir(), "dense.bin")
	require.NoError(t, dense.Save(path))

	sparse, err := LoadDenseIntoSparse(path, hp.YSize, hp.YElementSize)
	require.NoError(t, err)

	xTest := make([]byte, 4*hp.NumLiterals)
	for i := range xTest {
		xTest[i] = byte((i * 3) % 2)
	}
	densePred := make([]byte, 4)
	sparsePred := make([]byte, 4)
	require.NoError(t, dense.Predict(xTest, densePred, 4))
	require.NoError(t, sparse.Predict(xTest, sparsePred, 4))

	assert.Equal(t, densePred, sparsePred)
}
