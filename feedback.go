package tsetlin

// feedbackKind is the outcome of the per-clause feedback dispatch in §4.5
// step 6: compare sign(w) against the targeted class's polarity, then pick
// among Type I-a/I-b/II (or no-op) by clause output.
type feedbackKind int

const (
	noFeedback feedbackKind = iota
	typeIaFeedback
	typeIbFeedback
	typeIIFeedback
)

// dispatchFeedback decides which feedback rule applies to one (clause,
// class) pair, given the clause's current weight sign, whether class is the
// positive or negative target, and the clause's output on this row.
func dispatchFeedback(weight int16, isPositiveClass, clauseOutput bool) feedbackKind {
	agrees := (weight >= 0) == isPositiveClass
	if agrees {
		if clauseOutput {
			return typeIaFeedback
		}
		return typeIbFeedback
	}
	if clauseOutput {
		return typeIIFeedback
	}
	return noFeedback
}

// feedbackProbability computes p_pos or p_neg for a targeted class's
// (already-clipped) vote total, per §4.5 step 4. T == 0 degenerates to no
// feedback at all, since the formula's denominator would be zero.
func feedbackProbability(threshold int32, clippedVote int32, forPositive bool) float64 {
	if threshold <= 0 {
		return 0
	}
	t := float64(threshold)
	if forPositive {
		return (t - float64(clippedVote)) / (2 * t)
	}
	return (float64(clippedVote) + t) / (2 * t)
}
