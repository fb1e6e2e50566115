package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden          ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly  ErrCode = "STUDENT_ACCESS_ONLY"
	ErrInstructorOnly     ErrCode = "INSTRUCTOR_ACCESS_ONLY"
	ErrNotExamInstructor  ErrCode = "NOT_EXAM_INSTRUCTOR"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam taking ───────────────────────────────────────────────────
	ErrPolicyViolation ErrCode = "POLICY_VIOLATION"
	ErrExamClosed      ErrCode = "EXAM_CLOSED"
	ErrWrongPassword   ErrCode = "WRONG_EXAM_PASSWORD"
	ErrSessionConflict ErrCode = "SINGLE_SESSION_CONFLICT"
	ErrInvalidState    ErrCode = "INVALID_STATE"
	ErrNoActiveAttempt ErrCode = "NO_ACTIVE_ATTEMPT"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal          ErrCode = "INTERNAL_ERROR"
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrInstructorOnly:
		return "This resource is restricted to instructors."
	case ErrNotExamInstructor:
		return "You are not the instructor of this exam."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid identifier format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrConflict:
		return "The resource already exists."

	// ─── Exam taking ───────────────────────────────────────────────────
	case ErrPolicyViolation:
		return "This action is not allowed by the exam's security policy."
	case ErrExamClosed:
		return "The exam is not open at this time."
	case ErrWrongPassword:
		return "Incorrect exam password."
	case ErrSessionConflict:
		return "This exam is already being taken in another session."
	case ErrInvalidState:
		return "The submission is not in the expected state for this action."
	case ErrNoActiveAttempt:
		return "There is no active attempt for this action."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."
	default:
		return "An unexpected error occurred."
	}
}
