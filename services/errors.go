package services

import "errors"

// Domain errors returned by service methods; handlers map these to HTTP
// statuses. Store failures pass through wrapped and become 500s.
var (
	ErrNotFound            = errors.New("not found")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrInsufficientBalance = errors.New("insufficient point balance")
	ErrAlreadyApplied      = errors.New("already applied to this mission")
	ErrMissionFull         = errors.New("mission has reached max participants")
	ErrMissionEnded        = errors.New("mission has ended")
	ErrAlreadySubmitted    = errors.New("evidence already submitted")
)

// ValidationError carries a human-readable message for a 400 response.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErr(msg string) error {
	return &ValidationError{Message: msg}
}
