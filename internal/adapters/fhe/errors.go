package fhe

import "errors"

// Sentinel kinds for encryption errors.
var (
	ErrNotReady          = errors.New("encryption instance not ready")
	ErrCanceled          = errors.New("encryption instance creation canceled")
	ErrUnsupportedChain  = errors.New("encryption not supported on chain")
	ErrUnknownHandle     = errors.New("unknown ciphertext handle")
	ErrInvalidProof      = errors.New("invalid input proof")
	ErrSignatureRequired = errors.New("decryption signature required")
)
