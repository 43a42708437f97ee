package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrEmailTaken         ErrCode = "EMAIL_TAKEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation        ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload    ErrCode = "INVALID_PAYLOAD"
	ErrUnknownCollection ErrCode = "UNKNOWN_COLLECTION"
	ErrUnknownAnalysis   ErrCode = "UNKNOWN_ANALYSIS"
	ErrInvalidRepoURL    ErrCode = "INVALID_REPO_URL"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Assessment ────────────────────────────────────────────────────
	ErrQuestionsUnavailable ErrCode = "QUESTIONS_UNAVAILABLE"
	ErrNoActiveTest         ErrCode = "NO_ACTIVE_TEST"
	ErrInvalidAnswer        ErrCode = "INVALID_ANSWER"
	ErrSessionTerminated    ErrCode = "SESSION_TERMINATED"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrUpstreamUnavailable ErrCode = "UPSTREAM_UNAVAILABLE"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired     ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile  ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge     ErrCode = "FILE_TOO_LARGE"
	ErrResumeUnreadable ErrCode = "RESUME_UNREADABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Incorrect email or password."
	case ErrSessionInvalidated:
		return "Your session has ended. Please sign in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrEmailTaken:
		return "An account with this email already exists."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "The request payload is invalid."
	case ErrUnknownCollection:
		return "Unknown document collection."
	case ErrUnknownAnalysis:
		return "Unknown analysis type."
	case ErrInvalidRepoURL:
		return "Cannot parse the GitHub repository URL."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Assessment ────────────────────────────────────────────────────
	case ErrQuestionsUnavailable:
		return "Questions could not be loaded. Please try again."
	case ErrNoActiveTest:
		return "No assessment is in progress. Load a test first."
	case ErrInvalidAnswer:
		return "The answer does not match any option of the question."
	case ErrSessionTerminated:
		return "The assessment was terminated after repeated integrity violations."

	// ─── Upstream ──────────────────────────────────────────────────────
	case ErrUpstreamUnavailable:
		return "The analysis service is unavailable. Please try again later."

	// ─── Media ─────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "No file uploaded. Use the key 'resume' in the form data."
	case ErrUnsupportedFile:
		return "Unsupported file type. Please upload a PDF or DOCX resume."
	case ErrFileTooLarge:
		return "The file exceeds the size limit."
	case ErrResumeUnreadable:
		return "The resume could not be read."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
