package signer

import "errors"

// Sentinel kinds for signer errors.
var (
	ErrNoSigner = errors.New("no signer available")
)
