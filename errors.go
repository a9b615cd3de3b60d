package tsetlin

import "github.com/pkg/errors"

// ErrTruncated is returned by the codec when a model file ends before all
// expected header, weight, or record bytes have been read.
var ErrTruncated = errors.New("truncated tsetlin machine model file")

// ErrInvalidRecord is returned when a sparse or stateless record stream is
// malformed: a ta_id that does not strictly increase. A stream that ends
// before its terminating sentinel yields ErrTruncated instead.
var ErrInvalidRecord = errors.New("invalid record in tsetlin machine model file")

// ErrNoTraining reports that an engine variant does not support training.
// StatelessEngine has no Train method, and no function in this package
// returns this error.
var ErrNoTraining = errors.New("this engine variant does not support training")

// ErrBufferShape is returned when a caller-supplied X, y, or y_pred buffer
// does not match the shape implied by the engine's hyperparameters and row
// count.
var ErrBufferShape = errors.New("buffer does not match the expected row shape")
