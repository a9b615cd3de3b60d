package tsetlin

import (
	"fmt"

	"github.com/segmentio/go-tsetlin/rng"
)

// activationKind is a closed tag over the supported output activations, plus
// a user-extension slot. See §9 of the design notes: representing strategies
// as tagged variants avoids dynamic function-pointer plumbing while still
// allowing a caller-supplied hook.
type activationKind int

const (
	classIndexActivationKind activationKind = iota
	binaryVectorActivationKind
	customActivationKind
)

// OutputActivation converts a clipped vote buffer into a y_pred buffer.
type OutputActivation struct {
	kind   activationKind
	custom func(votes []int32, ySize, yElementSize int) []byte
}

// ClassIndexActivation selects the argmax class, ties broken by lowest
// index, and writes it as a YElementSize-wide little-endian unsigned
// integer. It requires YSize == 1.
func ClassIndexActivation() OutputActivation {
	return OutputActivation{kind: classIndexActivationKind}
}

// BinaryVectorActivation writes one byte per class: 1 if votes[c] exceeds
// the automaton mid-state threshold, else 0. It requires YSize ==
// NumClasses.
func BinaryVectorActivation() OutputActivation {
	return OutputActivation{kind: binaryVectorActivationKind}
}

// CustomActivation installs a caller-supplied activation. fn receives the
// clipped vote buffer and must return a buffer of length
// ySize*yElementSize.
func CustomActivation(fn func(votes []int32, ySize, yElementSize int) []byte) OutputActivation {
	return OutputActivation{kind: customActivationKind, custom: fn}
}

// apply writes the activation result for one row into out, which must have
// length p.ySize*p.yElementSize. It panics on a strategy/configuration
// mismatch, since that is a programmer error per the error handling design
// (misconfigured strategies are fatal, not recoverable).
func (a OutputActivation) apply(p *params, votes []int32, out []byte) {
	switch a.kind {
	case classIndexActivationKind:
		if p.ySize != 1 {
			panic(fmt.Sprintf("ClassIndexActivation requires YSize == 1, got %d", p.ySize))
		}
		best := 0
		for c := 1; c < len(votes); c++ {
			if votes[c] > votes[best] {
				best = c
			}
		}
		putUintLE(out, uint64(best), p.yElementSize)
	case binaryVectorActivationKind:
		if p.ySize != p.numClasses {
			panic(fmt.Sprintf("BinaryVectorActivation requires YSize == NumClasses, got %d", p.ySize))
		}
		for c := 0; c < len(votes); c++ {
			off := c * p.yElementSize
			for i := 0; i < p.yElementSize; i++ {
				out[off+i] = 0
			}
			if votes[c] > int32(p.midState) {
				out[off] = 1
			}
		}
	case customActivationKind:
		result := a.custom(votes, p.ySize, p.yElementSize)
		copy(out, result)
	default:
		panic("unknown OutputActivation kind")
	}
}

// putUintLE writes the low width bytes of v into out in little-endian order.
func putUintLE(out []byte, v uint64, width int) {
	for i := 0; i < width; i++ {
		out[i] = byte(v >> uint(8*i))
	}
}

// getUintLE reads width little-endian bytes from b as an unsigned integer.
func getUintLE(b []byte, width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		v |= uint64(b[i]) << uint(8*i)
	}
	return v
}

// groundTruthKind is a closed tag over the supported label interpretations.
type groundTruthKind int

const (
	classIndexLabelsKind groundTruthKind = iota
	binaryVectorLabelsKind
	customGroundTruthKind
)

// classPick is the outcome of selecting a class for one side of feedback:
// either a concrete class index, or "no class selected" when the
// corresponding pool had zero total weight.
type classPick struct {
	class   int
	present bool
}

// GroundTruthInterpretation determines how a training row's label buffer is
// turned into a positive and negative class for feedback.
type GroundTruthInterpretation struct {
	kind   groundTruthKind
	custom func(r *rng.Rng, p *params, votes []int32, y []byte) (positive, negative classPick)
}

// ClassIndexLabels interprets y as a single class index (YSize == 1). The
// positive class is that index; the negative class is drawn by weighted
// sampling over the remaining classes.
func ClassIndexLabels() GroundTruthInterpretation {
	return GroundTruthInterpretation{kind: classIndexLabelsKind}
}

// BinaryVectorLabels interprets y as one byte per class (YSize ==
// NumClasses), nonzero meaning the class is a positive label. The positive
// and negative classes are each drawn by weighted sampling over the
// classes with a 1 or 0 label bit respectively.
func BinaryVectorLabels() GroundTruthInterpretation {
	return GroundTruthInterpretation{kind: binaryVectorLabelsKind}
}

// CustomGroundTruth installs a caller-supplied label interpretation.
func CustomGroundTruth(fn func(r *rng.Rng, p *params, votes []int32, y []byte) (positive, negative classPick)) GroundTruthInterpretation {
	return GroundTruthInterpretation{kind: customGroundTruthKind, custom: fn}
}

// selectClasses picks the positive and negative classes for one training
// row, per §4.5 step 3.
func (g GroundTruthInterpretation) selectClasses(r *rng.Rng, p *params, votes []int32, y []byte) (positive, negative classPick) {
	switch g.kind {
	case classIndexLabelsKind:
		if p.ySize != 1 {
			panic(fmt.Sprintf("ClassIndexLabels requires YSize == 1, got %d", p.ySize))
		}
		pos := int(getUintLE(y, p.yElementSize))
		positive = classPick{class: pos, present: true}

		negative = weightedSampleExcluding(r, p, votes, pos)
		return positive, negative

	case binaryVectorLabelsKind:
		if p.ySize != p.numClasses {
			panic(fmt.Sprintf("BinaryVectorLabels requires YSize == NumClasses, got %d", p.ySize))
		}
		positive = weightedSampleWhere(r, p, votes, func(c int) bool {
			return y[c*p.yElementSize] != 0
		})
		negative = weightedSampleWhere(r, p, votes, func(c int) bool {
			return y[c*p.yElementSize] == 0
		})
		return positive, negative

	case customGroundTruthKind:
		return g.custom(r, p, votes, y)

	default:
		panic("unknown GroundTruthInterpretation kind")
	}
}

// classWeight is the weighted-sampling weight for class c: clip(votes[c],T)+T.
func classWeight(p *params, votes []int32, c int) int64 {
	clipped := votes[c]
	if clipped > p.threshold {
		clipped = p.threshold
	} else if clipped < -p.threshold {
		clipped = -p.threshold
	}
	return int64(clipped) + int64(p.threshold)
}

// weightedSampleExcluding draws a class from all classes except exclude,
// weighted by classWeight.
func weightedSampleExcluding(r *rng.Rng, p *params, votes []int32, exclude int) classPick {
	return weightedSampleWhere(r, p, votes, func(c int) bool { return c != exclude })
}

// weightedSampleWhere draws a class among those for which include returns
// true, weighted by classWeight. If the pool's total weight is zero, no
// class is selected.
func weightedSampleWhere(r *rng.Rng, p *params, votes []int32, include func(c int) bool) classPick {
	var candidates []int
	var sum int64
	for c := 0; c < p.numClasses; c++ {
		if !include(c) {
			continue
		}
		candidates = append(candidates, c)
		sum += classWeight(p, votes, c)
	}

	if sum <= 0 {
		return classPick{}
	}

	target := int64(r.NextU32() % uint32(sum))
	var acc int64
	for _, c := range candidates {
		acc += classWeight(p, votes, c)
		if acc >= target {
			return classPick{class: c, present: true}
		}
	}

	// unreachable given the accumulation above, but guards against a
	// rounding edge case by picking the last candidate.
	return classPick{class: candidates[len(candidates)-1], present: true}
}

// EqualityPredicate reports whether a predicted label buffer matches the
// ground-truth label buffer for one row.
type EqualityPredicate func(yPred, y []byte) bool

// defaultEqualityPredicate compares the raw bytes of the two buffers.
func defaultEqualityPredicate(yPred, y []byte) bool {
	if len(yPred) != len(y) {
		return false
	}
	for i := range yPred {
		if yPred[i] != y[i] {
			return false
		}
	}
	return true
}
