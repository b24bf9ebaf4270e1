package domain

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrConflict              = errors.New("conflict")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrInvalidPriority       = errors.New("invalid priority")
	ErrInvalidApplicant      = errors.New("invalid applicant")
	ErrCommentRequired       = errors.New("comment is required when status changes")
	ErrInvalidEnvelope       = errors.New("invalid event envelope")
	ErrUnsupportedEventType  = errors.New("unsupported event type")
	ErrStorageUnavailable    = errors.New("storage unavailable")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
