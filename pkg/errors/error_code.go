package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Input validation errors (100-199)
	ErrCodeInvalidInput         ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidParameter     ErrorCode = 102
	ErrCodeInvalidBarOrder      ErrorCode = 103
	ErrCodeInvalidQuorum        ErrorCode = 104

	// Data errors (200-299)
	ErrCodeDataNotFound     ErrorCode = 200
	ErrCodeQueryFailed      ErrorCode = 201
	ErrCodeMissingIndicator ErrorCode = 202

	// Accounting invariant errors (300-399)
	ErrCodeInvariantViolation ErrorCode = 300
	ErrCodePositionNotFlat    ErrorCode = 301
	ErrCodePositionNotOpen    ErrorCode = 302
	ErrCodeSizeMismatch       ErrorCode = 303

	// Numeric errors (400-499)
	ErrCodeNumericDegenerate ErrorCode = 400

	// Strategy errors (500-599)
	ErrCodeUnknownStrategy     ErrorCode = 500
	ErrCodeStrategyConfigError ErrorCode = 501

	// Optimizer errors (600-699)
	ErrCodeEmptyGrid   ErrorCode = 600
	ErrCodeTrialFailed ErrorCode = 601
)
