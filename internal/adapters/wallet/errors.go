package wallet

import "errors"

// Sentinel kinds for wallet errors.
var (
	ErrNotConnected      = errors.New("wallet not connected")
	ErrUnavailable       = errors.New("no wallet available")
	ErrMockPinned        = errors.New("mock mode pins the chain")
	ErrSwitchUnsupported = errors.New("wallet cannot switch chains")
	ErrUnknownAccount    = errors.New("account not managed by wallet")
	ErrInvalidKey        = errors.New("invalid private key")
)
