package signing

import "errors"

var (
	// ErrMissingHeaders is returned when the timestamp or signature header is absent.
	ErrMissingHeaders = errors.New("signing: missing timestamp or signature header")
	// ErrClockSkew is returned when the request timestamp is outside MaxClockSkew.
	ErrClockSkew = errors.New("signing: timestamp outside allowed clock skew")
	// ErrBadSignature is returned when the signature does not match.
	ErrBadSignature = errors.New("signing: signature mismatch")
)
