package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrMedicineNotFound = &AppError{Code: "MED_001", Message: "medicine not found"}
	ErrOutOfStock       = &AppError{Code: "MED_002", Message: "no pills remaining"}

	ErrAppointmentNotFound = &AppError{Code: "APT_001", Message: "appointment not found"}

	ErrUserNotFound = &AppError{Code: "CIRCLE_001", Message: "user not found"}
	ErrNotMember    = &AppError{Code: "CIRCLE_002", Message: "not a member of this care circle"}
	ErrNoPatient    = &AppError{Code: "CIRCLE_003", Message: "no managed patient selected"}

	ErrScannerNotConfigured = &AppError{Code: "SCAN_001", Message: "prescription scanner not configured"}
	ErrScannerUnavailable   = &AppError{Code: "SCAN_002", Message: "prescription scanner unavailable"}

	ErrChannelNotConfigured = &AppError{Code: "CHAN_001", Message: "channel not configured"}
	ErrChannelUnavailable   = &AppError{Code: "CHAN_002", Message: "channel unavailable"}

	ErrUnauthorized = &AppError{Code: "AUTH_001", Message: "unauthorized"}
	ErrForbidden    = &AppError{Code: "AUTH_002", Message: "forbidden"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}
