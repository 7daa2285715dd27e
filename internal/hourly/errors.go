package hourly

import "errors"

// Sentinel errors returned by the model stages. Callers classify failures
// with errors.Is; stages wrap these with context.
var (
	// ErrInsufficientData means the baseline window, a segment, or a
	// bin/occupancy cell has too few observations to fit reliably.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNoOverlap means the usage and temperature series share no timestamps.
	ErrNoOverlap = errors.New("usage and temperature series do not overlap")

	// ErrDuplicateTimestamp means a series carries the same instant twice.
	ErrDuplicateTimestamp = errors.New("duplicate timestamp in series")

	// ErrInvalidOptions means a caller-supplied option is out of range.
	ErrInvalidOptions = errors.New("invalid model options")
)
