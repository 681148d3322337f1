package ports

import "errors"

// Standard application-level errors.
// The engine, importer and adapters wrap their failures with these standard
// errors so callers can branch with errors.Is. Every rejection is local and
// recoverable: the operation that returned it had no effect.
var (
	// Engine rejections
	ErrValidation           = errors.New("invalid or missing input")
	ErrPortfolioFull        = errors.New("portfolio is full")
	ErrAllocationLimit      = errors.New("exceeds allocation limit")
	ErrPyramidCeiling       = errors.New("exceeds pyramid ceiling")
	ErrPyramidLimit         = errors.New("pyramid limit reached")
	ErrInvalidCloseQuantity = errors.New("invalid close quantity")

	// Import errors
	ErrMissingColumns = errors.New("import data is missing required columns")

	// General / database errors
	ErrNotFound     = errors.New("resource not found")
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrUpdateFailed = errors.New("database update failed")
)
