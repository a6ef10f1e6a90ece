package checkin

import (
	"errors"
	"fmt"
)

// Error kinds returned by the check-in service. Match them with errors.Is.
var (
	ErrValidation              = errors.New("invalid check-in request")
	ErrNotFound                = errors.New("not found")
	ErrRegistrationNotApproved = errors.New("registration not approved")
	ErrDuplicateCheckIn        = errors.New("already checked in today for this event")
	ErrForbidden               = errors.New("admin role required")
	ErrCheckInInProgress       = errors.New("another check-in for this user is in progress")
)

// NotFound kinds.
var (
	ErrNotRegistered        = fmt.Errorf("%w: not registered for this event", ErrNotFound)
	ErrEventNotFound        = fmt.Errorf("%w: event", ErrNotFound)
	ErrRegistrationNotFound = fmt.Errorf("%w: registration", ErrNotFound)
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// outcome labels an error for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRegistrationNotApproved):
		return "not_approved"
	case errors.Is(err, ErrDuplicateCheckIn):
		return "duplicate"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrCheckInInProgress):
		return "in_progress"
	default:
		return "error"
	}
}
