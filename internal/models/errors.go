package models

import "errors"

var (
	ErrInvalidQuery           = errors.New("invalid query")
	ErrIndexUnavailable       = errors.New("full-text index unavailable")
	ErrModelUnavailable       = errors.New("model unavailable")
	ErrModelTimeout           = errors.New("model timed out")
	ErrMalformedModelResponse = errors.New("malformed model response")
)
