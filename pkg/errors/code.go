package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Judge engine errors
// 14000-14999: Judge service errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError ErrorCode = 10100

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Object storage errors (10400-10499)
	StorageError ErrorCode = 10400

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Judge Engine Errors (13000-13999) ==========

	// Configuration (13000-13099), fatal for a judging run
	ConfigInvalid         ErrorCode = 13000
	UnsupportedExecutable ErrorCode = 13001
	SolutionNotFound      ErrorCode = 13002

	// Execution (13100-13199)
	JudgeSystemError      ErrorCode = 13100
	ProcessStartFailed    ErrorCode = 13101
	ProcessStatFailed     ErrorCode = 13102
	CheckerFailed         ErrorCode = 13103
	ArtifactStagingFailed ErrorCode = 13104
	ArbitrationFailed     ErrorCode = 13105

	// ========== Judge Service Errors (14000-14999) ==========

	JudgeQueueFull   ErrorCode = 14000
	RunNotFound      ErrorCode = 14001
	EventPublishFail ErrorCode = 14002
	ReportNotFound   ErrorCode = 14003
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError: "Database operation failed",

	// Cache
	CacheError: "Cache operation failed",

	// Object storage
	StorageError: "Object storage operation failed",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Judge configuration
	ConfigInvalid:         "Invalid judge configuration",
	UnsupportedExecutable: "No known way to execute the solution",
	SolutionNotFound:      "Solution does not exist",

	// Judge execution
	JudgeSystemError:      "Judge system error",
	ProcessStartFailed:    "Failed to start process",
	ProcessStatFailed:     "Failed to read process statistics",
	CheckerFailed:         "Checker failed",
	ArtifactStagingFailed: "Failed to stage test files",
	ArbitrationFailed:     "Inconsistent interactive run outcome",

	// Judge service
	JudgeQueueFull:   "Judge queue is full",
	RunNotFound:      "Judging run not found",
	EventPublishFail: "Failed to publish judge event",
	ReportNotFound:   "Run report not found",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == RunNotFound, c == SolutionNotFound, c == ReportNotFound:
		return 404
	case c == TooManyRequests, c == JudgeQueueFull:
		return 429
	case c == ServiceUnavailable:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == ConfigInvalid, c == UnsupportedExecutable:
		return 400
	default:
		return 500
	}
}

// Fatal reports whether the code is a configuration error that must abort a judging run.
func (c ErrorCode) Fatal() bool {
	return c >= 13000 && c < 13100
}
