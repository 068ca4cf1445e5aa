package sealer

import "errors"

// Public, stable errors for callers.
var (
	ErrKeyMissing        = errors.New("sealer key missing")
	ErrKeyTooShort       = errors.New("sealer key too short")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecrypt           = errors.New("ciphertext authentication failed")
	ErrConfig            = errors.New("invalid sealer config")
)
