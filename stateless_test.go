package tsetlin

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A Stateless engine cross-loaded from a Dense model must reproduce its
// predictions exactly.
func Test_LoadDenseIntoStateless_MatchesDense(t *testing.T) {
	hp := Hyperparameters{
		NumClasses: 2, Threshold: 10, NumLiterals: 5, NumClauses: 3,
		MaxState: 100, MinState: -100, S: 3.0, YSize: 1, YElementSize: 1,
	}
	dense, err := NewDense(hp, 11)
	require.NoError(t, err)

	x := make([]byte, 15*hp.NumLiterals)
	y := make([]byte, 15)
	for i := range x {
		x[i] = byte((i * 3) % 2)
	}
	for i := range y {
		y[i] = byte(i % 2)
	}
	require.NoError(t, dense.Train(x, y, 15, 4))

	path := filepath.Join(t.TempDir(), "dense.bin")
	require.NoError(t, dense.Save(path))

	stateless, err := LoadDenseIntoStateless(path, hp.YSize, hp.YElementSize)
	require.NoError(t, err)

	xTest := make([]byte, 6*hp.NumLiterals)
	for i := range xTest {
		xTest[i] = byte((i * 7) % 2)
	}
	densePred := make([]byte, 6)
	statelessPred := make([]byte, 6)
	require.NoError(t, dense.Predict(xTest, densePred, 6))
	require.NoError(t, stateless.Predict(xTest, statelessPred, 6))

	assert.Equal(t, densePred, statelessPred)
}

func Test_LoadDenseIntoStateless_DropsCounterKeepsID(t *testing.T) {
	hp := Hyperparameters{
		NumClasses: 1, Threshold: 5, NumLiterals: 2, NumClauses: 1,
		MaxState: 100, MinState: -100, S: 3.0, YSize: 1, YElementSize: 1,
	}
	dense, err := NewDense(hp, 1)
	require.NoError(t, err)

	dense.taState[0] = dense.p.midState
	dense.taState[1] = dense.p.midState - 1
	dense.taState[2] = dense.p.maxState
	dense.taState[3] = dense.p.minState

	path := filepath.Join(t.TempDir(), "dense.bin")
	require.NoError(t, dense.Save(path))

	stateless, err := LoadDenseIntoStateless(path, hp.YSize, hp.YElementSize)
	require.NoError(t, err)

	assert.Equal(t, []uint32{0, 2}, stateless.clauses[0])
}

func Test_Stateless_ClauseOutputs_SkipsEmptyOnPredict(t *testing.T) {
	hp := Hyperparameters{
		NumClasses: 1, Threshold: 5, NumLiterals: 2, NumClauses: 1,
		MaxState: 100, MinState: -100, S: 3.0, YSize: 1, YElementSize: 1,
	}
	dense, err := NewDense(hp, 1)
	require.NoError(t, err)
	// set every taState below midState so the clause has no included automata.
	for i := range dense.taState {
		dense.taState[i] = dense.p.minState
	}

	path := filepath.Join(t.TempDir(), "dense.bin")
	require.NoError(t, dense.Save(path))

	stateless, err := LoadDenseIntoStateless(path, hp.YSize, hp.YElementSize)
	require.NoError(t, err)
	assert.Empty(t, stateless.clauses[0])

	out := make([]bool, 1)
	stateless.clauseOutputs([]byte{0, 0}, true, out)
	assert.False(t, out[0])
}

func Test_Stateless_SaveLoad_RoundTrip(t *testing.T) {
	hp := Hyperparameters{
		NumClasses: 2, Threshold: 10, NumLiterals: 4, NumClauses: 2,
		MaxState: 100, MinState: -100, S: 3.0, YSize: 1, YElementSize: 1,
	}
	dense, err := NewDense(hp, 5)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "dense.bin")
	require.NoError(t, dense.Save(path))

	stateless, err := LoadDenseIntoStateless(path, hp.YSize, hp.YElementSize)
	require.NoError(t, err)

	statelessPath := filepath.Join(t.TempDir(), "stateless.bin")
	require.NoError(t, stateless.Save(statelessPath))

	reloaded, err := LoadStateless(statelessPath, hp.YSize, hp.YElementSize)
	require.NoError(t, err)

	assert.Equal(t, stateless.clauses, reloaded.clauses)
	assert.Equal(t, stateless.weights, reloaded.weights)
	assert.Equal(t, stateless.Hyperparameters(), reloaded.Hyperparameters())
}

func Test_Stateless_Predict_RejectsWrongShapes(t *testing.T) {
	hp := Hyperparameters{
		NumClasses: 1, Threshold: 5, NumLiterals: 3, NumClauses: 1,
		MaxState: 100, MinState: -100, S: 3.0, YSize: 1, YElementSize: 1,
	}
	dense, err := NewDense(hp, 1)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "dense.bin")
	require.NoError(t, dense.Save(path))

	stateless, err := LoadDenseIntoStateless(path, hp.YSize, hp.YElementSize)
	require.NoError(t, err)

	assert.Equal(t, ErrBufferShape, stateless.Predict([]byte{1, 0}, make([]byte, 1), 1))
}
