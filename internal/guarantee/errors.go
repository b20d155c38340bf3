package guarantee

import "errors"

// Domain-level error values returned by the guarantee service.
var (
	ErrNotFoundOrForbidden  = errors.New("guarantee request not found or not owned by caller")
	ErrInvalidStatus        = errors.New("invalid guarantee status")
	ErrInvalidTransition    = errors.New("invalid guarantee transition")
	ErrAlreadyPurchased     = errors.New("guarantee request already purchased")
	ErrInvalidRequest       = errors.New("invalid guarantee request")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)
