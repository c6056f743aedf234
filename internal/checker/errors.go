package checker

import "errors"

// ErrInvalidConfig is returned by NewVerifier when the configuration cannot
// produce a working HTTP client. No request is sent in that case.
var ErrInvalidConfig = errors.New("invalid verifier configuration")
