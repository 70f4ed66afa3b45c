package services

import "errors"

// Error kinds surfaced by the service layer. Handlers match them with
// errors.Is and map each kind to a stable HTTP status.
var (
	// ErrValidation reports a missing or malformed field in the request.
	ErrValidation = errors.New("validation failed")
	// ErrUnknownItem reports an item ID that does not exist in the catalog.
	ErrUnknownItem = errors.New("unknown item")
	// ErrInsufficientAvailability reports a reservation that exceeds an
	// item's free stock. The enclosing transaction is rolled back.
	ErrInsufficientAvailability = errors.New("insufficient availability")
	// ErrNotFound reports an order, address or item referenced by an
	// identifier that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized reports a caller that is neither the order's owner
	// nor an admin.
	ErrUnauthorized = errors.New("unauthorized")
)
