package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidSymbol        ErrorCode = 102
	ErrCodeInvalidTimeframe     ErrorCode = 103
	ErrCodeInvalidPeriod        ErrorCode = 104
	ErrCodeMissingCredentials   ErrorCode = 105

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound  ErrorCode = 200
	ErrCodeEmptyResponse ErrorCode = 201
	ErrCodeSessionClosed ErrorCode = 202

	// Indicator errors (300-399)
	ErrCodeIndicatorCalculation ErrorCode = 300

	// Stream errors (400-499)
	ErrCodeStreamDialFailed        ErrorCode = 400
	ErrCodeStreamSendFailed        ErrorCode = 401
	ErrCodeStreamClosed            ErrorCode = 402
	ErrCodeStreamUpstream          ErrorCode = 403
	ErrCodeSubscriptionSyncFailed  ErrorCode = 404
	ErrCodeSubscriptionLimit       ErrorCode = 405
	ErrCodeStreamPolicyRejected    ErrorCode = 406
	ErrCodeStreamProtocolViolation ErrorCode = 407

	// Fetch errors (500-599)
	ErrCodeBarsFetchFailed      ErrorCode = 500
	ErrCodeSnapshotFetchFailed  ErrorCode = 501
	ErrCodeWatchlistFetchFailed ErrorCode = 502
	ErrCodeRequestFailed        ErrorCode = 503

	// Auth errors (600-699)
	ErrCodeStreamAuthFailed ErrorCode = 600
	ErrCodeUnauthorized     ErrorCode = 601
)
