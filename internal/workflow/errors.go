package workflow

import "errors"

// Typed errors for role and stage violations. The HTTP layer maps them to
// 403 and 400 respectively.
var (
	ErrForbidden    = errors.New("operation not permitted for this user")
	ErrWrongStage   = errors.New("request is not in a stage that allows this operation")
	ErrEmptyReason  = errors.New("rejection reason is required")
	ErrMissingTitle = errors.New("title is required")
	ErrBadAmount    = errors.New("amount must be greater than zero")
)
