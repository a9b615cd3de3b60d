package tsetlin

import (
	"encoding/binary"
	"math"
	"sort"
)

// denseHeaderSize is the fixed byte width of the header shared by all three
// storage variants, per §4.7.
const denseHeaderSize = 4 /*threshold*/ + 4 /*numLiterals*/ + 4 /*numClauses*/ + 4 /*numClasses*/ + 1 /*maxState*/ + 1 /*minState*/ + 1 /*boost*/ + 8 /*s*/

// sparseRecordSize is the width of one (ta_id, ta_state) record.
const sparseRecordSize = 4 + 1

// statelessRecordSize is the width of one bare ta_id record.
const statelessRecordSize = 4

// sparseSentinel terminates each clause's record stream.
const sparseSentinel uint32 = 0xFFFFFFFF

// sparseNode is one entry of a sparse clause's ordered automaton list.
type sparseNode struct {
	taID  uint32
	state int8
}

// encodeHeader writes the header shared by all variants into buf[0:denseHeaderSize].
func encodeHeader(buf []byte, p *params) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(p.threshold))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.numLiterals))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.numClauses))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(p.numClasses))
	buf[16] = byte(p.maxState)
	buf[17] = byte(p.minState)
	if p.boostTPF {
		buf[18] = 1
	} else {
		buf[18] = 0
	}
	binary.LittleEndian.PutUint64(buf[19:27], math.Float64bits(p.s))
}

// decodedHeader is the raw field set read back by decodeHeader, prior to
// being combined with the caller-supplied y_size/y_element_size into a
// Hyperparameters value.
type decodedHeader struct {
	threshold   uint32
	numLiterals uint32
	numClauses  uint32
	numClasses  uint32
	maxState    int8
	minState    int8
	boostTPF    bool
	s           float64
}

func decodeHeader(buf []byte) (decodedHeader, error) {
	if len(buf) < denseHeaderSize {
		return decodedHeader{}, ErrTruncated
	}
	return decodedHeader{
		threshold:   binary.LittleEndian.Uint32(buf[0:4]),
		numLiterals: binary.LittleEndian.Uint32(buf[4:8]),
		numClauses:  binary.LittleEndian.Uint32(buf[8:12]),
		numClasses:  binary.LittleEndian.Uint32(buf[12:16]),
		maxState:    int8(buf[16]),
		minState:    int8(buf[17]),
		boostTPF:    buf[18] != 0,
		s:           math.Float64frombits(binary.LittleEndian.Uint64(buf[19:27])),
	}, nil
}

func (h decodedHeader) toParams(ySize, yElementSize int) (*params, error) {
	hp := Hyperparameters{
		NumClasses:                int(h.numClasses),
		Threshold:                 int32(h.threshold),
		NumLiterals:               int(h.numLiterals),
		NumClauses:                int(h.numClauses),
		MaxState:                  h.maxState,
		MinState:                  h.minState,
		BoostTruePositiveFeedback: h.boostTPF,
		S:                         h.s,
		YSize:                     ySize,
		YElementSize:              yElementSize,
	}
	return hp.toInternal()
}

// encodeWeights writes the weights block: one little-endian int16 per
// (clause, class), in clause-major order.
func encodeWeights(buf []byte, weights []int16) {
	for i, w := range weights {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(w))
	}
}

func decodeWeights(buf []byte, count int) ([]int16, error) {
	if len(buf) < count*2 {
		return nil, ErrTruncated
	}
	weights := make([]int16, count)
	for i := range weights {
		weights[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	return weights, nil
}

// encodeDense serializes a full dense model: header, weights, then the flat
// ta_state array.
func encodeDense(p *params, weights []int16, taState []int8) []byte {
	weightsSize := len(weights) * 2
	buf := make([]byte, denseHeaderSize+weightsSize+len(taState))

	encodeHeader(buf, p)
	encodeWeights(buf[denseHeaderSize:denseHeaderSize+weightsSize], weights)

	taOff := denseHeaderSize + weightsSize
	for i, s := range taState {
		buf[taOff+i] = byte(s)
	}

	return buf
}

// decodeDense parses a full dense model, returning its derived params,
// weights, and flat ta_state array.
func decodeDense(buf []byte, ySize, yElementSize int) (*params, []int16, []int8, error) {
	h, err := decodeHeader(buf)
	if err != nil {
		return nil, nil, nil, err
	}

	p, err := h.toParams(ySize, yElementSize)
	if err != nil {
		return nil, nil, nil, err
	}

	weightsCount := p.numClauses * p.numClasses
	weightsSize := weightsCount * 2
	taCount := p.numClauses * p.numAutomata()

	rest := buf[denseHeaderSize:]
	weights, err := decodeWeights(rest, weightsCount)
	if err != nil {
		return nil, nil, nil, err
	}

	taBuf := rest[weightsSize:]
	if len(taBuf) < taCount {
		return nil, nil, nil, ErrTruncated
	}
	taState := make([]int8, taCount)
	for i := range taState {
		taState[i] = int8(taBuf[i])
	}

	return p, weights, taState, nil
}

// encodeSparseClauses serializes the per-clause record streams for the
// sparse variant: each clause's (ta_id, ta_state) pairs in increasing
// ta_id order, followed by the sentinel.
func encodeSparseClauses(clauses [][]sparseNode) []byte {
	size := 0
	for _, nodes := range clauses {
		size += len(nodes)*sparseRecordSize + 4
	}

	buf := make([]byte, size)
	off := 0
	for _, nodes := range clauses {
		sorted := sortedSparseNodes(nodes)
		for _, n := range sorted {
			binary.LittleEndian.PutUint32(buf[off:], n.taID)
			buf[off+4] = byte(n.state)
			off += sparseRecordSize
		}
		binary.LittleEndian.PutUint32(buf[off:], sparseSentinel)
		off += 4
	}
	return buf
}

func sortedSparseNodes(nodes []sparseNode) []sparseNode {
	sorted := make([]sparseNode, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].taID < sorted[j].taID })
	return sorted
}

// decodeSparseClauses parses numClauses record streams from buf, validating
// that each clause's ta_ids strictly increase and is sentinel-terminated.
func decodeSparseClauses(buf []byte, numClauses int) ([][]sparseNode, error) {
	clauses := make([][]sparseNode, numClauses)
	off := 0

	for c := 0; c < numClauses; c++ {
		var nodes []sparseNode
		lastID := int64(-1)

		for {
			if off+4 > len(buf) {
				return nil, ErrTruncated
			}
			id := binary.LittleEndian.Uint32(buf[off:])
			if id == sparseSentinel {
				off += 4
				break
			}
			if off+sparseRecordSize > len(buf) {
				return nil, ErrTruncated
			}
			if int64(id) <= lastID {
				return nil, ErrInvalidRecord
			}
			lastID = int64(id)

			state := int8(buf[off+4])
			nodes = append(nodes, sparseNode{taID: id, state: state})
			off += sparseRecordSize
		}

		clauses[c] = nodes
	}

	return clauses, nil
}

// encodeStatelessClauses serializes the per-clause ta_id-only record
// streams for the stateless variant.
func encodeStatelessClauses(clauses [][]uint32) []byte {
	size := 0
	for _, ids := range clauses {
		size += len(ids)*statelessRecordSize + 4
	}

	buf := make([]byte, size)
	off := 0
	for _, ids := range clauses {
		sorted := make([]uint32, len(ids))
		copy(sorted, ids)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		for _, id := range sorted {
			binary.LittleEndian.PutUint32(buf[off:], id)
			off += statelessRecordSize
		}
		binary.LittleEndian.PutUint32(buf[off:], sparseSentinel)
		off += 4
	}
	return buf
}

func decodeStatelessClauses(buf []byte, numClauses int) ([][]uint32, error) {
	clauses := make([][]uint32, numClauses)
	off := 0

	for c := 0; c < numClauses; c++ {
		var ids []uint32
		lastID := int64(-1)

		for {
			if off+4 > len(buf) {
				return nil, ErrTruncated
			}
			id := binary.LittleEndian.Uint32(buf[off:])
			off += 4
			if id == sparseSentinel {
				break
			}
			if int64(id) <= lastID {
				return nil, ErrInvalidRecord
			}
			lastID = int64(id)
			ids = append(ids, id)
		}

		clauses[c] = ids
	}

	return clauses, nil
}

// denseTAStateToNodes converts one clause's flat dense ta_state slice into
// the sorted node list a sparse or stateless engine would retain: every
// position whose counter is at or above midState, per §4.7's cross-load
// rule.
func denseTAStateToNodes(p *params, clauseTAState []int8) []sparseNode {
	var nodes []sparseNode
	for i, state := range clauseTAState {
		if p.included(state) {
			nodes = append(nodes, sparseNode{taID: uint32(i), state: state})
		}
	}
	return nodes
}
