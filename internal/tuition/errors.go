package tuition

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidMonthKey = errors.New("month must look like MM-YYYY")
	ErrMonthOutOfRange = errors.New("month is outside the batch's fee period")
	ErrNameRequired    = errors.New("name is required")
	ErrNameTooLong     = errors.New("name is too long")
	ErrInvalidFee      = errors.New("monthly fee must be zero or more")
	ErrInvalidDay      = errors.New("schedule day must be between 1 and 7")
	ErrInvalidTime     = errors.New("schedule time must look like 04:30 PM")
	ErrDuplicateSlot   = errors.New("schedule has the same day and time twice")
	ErrInvalidPhone    = errors.New("phone must be 10 digits")
	ErrFutureJoining   = errors.New("joining date cannot be in the future")
	ErrJoiningRequired = errors.New("joining date is required")
	ErrBatchRequired   = errors.New("batch is required")
	ErrNothingToRemind = errors.New("every student has paid or already has a reminder queued for this month")
	ErrReminderQueued  = errors.New("a reminder is already queued for this student and month")
)

// IsValidation reports whether err is caused by bad user input.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidMonthKey, ErrMonthOutOfRange, ErrNameRequired, ErrNameTooLong,
		ErrInvalidFee, ErrInvalidDay, ErrInvalidTime, ErrDuplicateSlot,
		ErrInvalidPhone, ErrFutureJoining, ErrJoiningRequired, ErrBatchRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
