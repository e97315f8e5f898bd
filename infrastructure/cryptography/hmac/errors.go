package hmac

import "errors"

// ErrUnexpectedSignature is returned by Verify when the computed MAC does
// not match the supplied signature.
var ErrUnexpectedSignature = errors.New("hmac: unexpected signature")
