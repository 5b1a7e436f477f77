package pipeline

import "errors"

// Terminal failure states of a submission. Rate-limit and validation
// failures resolve before any side effect; persistence failures surface
// without automatic retry because a blind retry is not idempotent.
var (
	ErrRateLimited    = errors.New("rate limited")
	ErrInvalidContent = errors.New("invalid content")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrPersistence    = errors.New("persistence failure")
)
