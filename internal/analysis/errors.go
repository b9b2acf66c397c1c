package analysis

import "errors"

// Error taxonomy shared by the pipeline stages. Per-record parse failures are
// carried as error records; the others are returned as errors and only abort
// the stage that depends on them.
var (
	ErrParse              = errors.New("parse failure")
	ErrInsufficientData   = errors.New("insufficient data")
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	ErrStoreUnavailable   = errors.New("history store unavailable")
)
