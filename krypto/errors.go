package krypto

import "errors"

// Failure taxonomy shared by every cryptographic operation in the module.
// Callers match with errors.Is; wrapped messages never say which envelope
// field was at fault.
var (
	// ErrInvalidParameter reports a caller-supplied parameter outside the
	// supported set (key size, chunk size, cost factor, empty password).
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrMalformedEnvelope reports structurally invalid input to a decrypt
	// call: bad encoding, wrong iv or salt length, unknown algorithm tag.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrAuthenticationFailed covers a wrong password, a wrong key and a
	// tampered ciphertext alike.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrPayloadTooLarge reports a payload above the capacity of the
	// asymmetric padding scheme.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrOperationCancelled reports a caller-initiated abort of a chunked
	// operation.
	ErrOperationCancelled = errors.New("operation cancelled")
)
