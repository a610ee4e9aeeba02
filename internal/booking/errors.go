package booking

// ValidationError reports missing or malformed input. Mapped to 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError reports a date-range overlap with an existing booking.
// Mapped to 400; the caller is expected to pick different dates.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NotFoundError reports an unknown booking id. Mapped to 404.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func validationErr(msg string) error { return &ValidationError{Message: msg} }
func conflictErr(msg string) error   { return &ConflictError{Message: msg} }
func notFoundErr(msg string) error   { return &NotFoundError{Message: msg} }
