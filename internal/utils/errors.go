package utils

type AppError struct {
	Code    string
	Message string
	Origin  error // Original error that caused this error, if any
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

// Standard error codes for the application
const (
	// Resource errors
	ErrNotFound     = "NOT_FOUND"
	ErrDuplicate    = "DUPLICATE"
	ErrInvalidInput = "INVALID_INPUT"

	// Authentication/Authorization errors
	ErrUnauthorized = "UNAUTHORIZED"
	ErrForbidden    = "FORBIDDEN"
	ErrInvalidToken = "INVALID_TOKEN"

	// Payment errors. A PAYMENT_NOT_FINALIZED failure means the external
	// provider confirmed the payment but the access grant did not reach the
	// store; replaying the completion call is safe and required.
	ErrPaymentNotFinalized = "PAYMENT_NOT_FINALIZED"

	// Actor communication errors
	ErrActorTimeout    = "ACTOR_TIMEOUT"
	ErrMessageRejected = "MESSAGE_REJECTED"

	// Rate limiting
	ErrTooManyRequests = "TOO_MANY_REQUESTS"

	ErrDatabase = "DATABASE_ERROR"
)

// Error creation helper functions
func NewAppError(code string, message string, originalErr error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

func NewUnauthorizedError(reason string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "Unauthorized: " + reason,
	}
}

func NewPostNotFoundError(postID string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: "Post not found: " + postID,
	}
}

// NewPaymentNotFinalizedError marks the distinct "paid but not granted"
// condition so callers can tell it apart from an ordinary write failure.
func NewPaymentNotFinalizedError(postID string, originalErr error) *AppError {
	return &AppError{
		Code:    ErrPaymentNotFinalized,
		Message: "Payment recorded but access was not finalized for post " + postID + "; retry the completion call",
		Origin:  originalErr,
	}
}

func NewActorTimeoutError(actorName string) *AppError {
	return &AppError{
		Code:    ErrActorTimeout,
		Message: "Actor communication timeout: " + actorName,
	}
}

// Helper method to check if an error is of a specific type
func IsErrorCode(err error, code string) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// IsRetryable reports whether replaying the failed operation is safe and
// worthwhile. Store failures and unfinished payment grants are; rejected
// input is not.
func IsRetryable(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == ErrDatabase ||
			appErr.Code == ErrPaymentNotFinalized ||
			appErr.Code == ErrActorTimeout
	}
	return false
}

// AppErrorToHTTPStatus converts an AppError code to an HTTP status code.
func AppErrorToHTTPStatus(errorCode string) int {
	switch errorCode {
	case ErrNotFound:
		return 404 // http.StatusNotFound
	case ErrInvalidInput:
		return 400 // http.StatusBadRequest
	case ErrUnauthorized, ErrInvalidToken:
		return 401 // http.StatusUnauthorized
	case ErrForbidden:
		return 403 // http.StatusForbidden
	case ErrDuplicate:
		return 409 // http.StatusConflict
	case ErrTooManyRequests:
		return 429 // http.StatusTooManyRequests
	case ErrDatabase, ErrPaymentNotFinalized, ErrActorTimeout, ErrMessageRejected:
		return 500 // http.StatusInternalServerError
	default:
		return 500 // http.StatusInternalServerError for unknown errors
	}
}
