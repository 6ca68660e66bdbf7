package priorityfee

import "errors"

// Errors
var (
	ErrMissingEndpoint  = errors.New("priority fee endpoint is not configured")
	ErrClosed           = errors.New("subscriber map closed")
	ErrNilFetcher       = errors.New("fetcher is required")
	ErrInvalidFrequency = errors.New("frequency must be positive")
)
