package rating

import "errors"

// Sentinel kinds for coordinator errors.
var (
	ErrInFlight           = errors.New("operation of this kind already in flight")
	ErrNotDeployed        = errors.New("contract not deployed on current chain")
	ErrNoSigner           = errors.New("no signer")
	ErrEncryptionNotReady = errors.New("encryption instance not ready")
	ErrInvalidProject     = errors.New("invalid project")
)
