package apperr

import "net/http"

// Kind classifies an error for callers that do not care about the exact code.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindAuth        Kind = "auth"
	KindForbidden   Kind = "forbidden"
	KindRateLimited Kind = "rate_limited"
	KindInternal    Kind = "internal"
)

// Code is a stable machine-readable error code returned to clients.
type Code string

const (
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeInternal    Code = "INTERNAL_ERROR"
	CodeNotFound    Code = "NOT_FOUND"
	CodeForbidden   Code = "FORBIDDEN"
	CodeRateLimit   Code = "RATE_LIMITED"
	CodeUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeMethod      Code = "METHOD_NOT_ALLOWED"

	// Auth and account state
	CodeInvalidPassword    Code = "INVALID_PASSWORD"
	CodeEmailExists        Code = "EMAIL_EXISTS"
	CodePhoneExists        Code = "PHONE_EXISTS"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeAccountLocked      Code = "ACCOUNT_LOCKED"
	CodeAccountSuspended   Code = "ACCOUNT_SUSPENDED"
	CodeEmailNotVerified   Code = "EMAIL_NOT_VERIFIED"
	CodePhoneNotVerified   Code = "PHONE_NOT_VERIFIED"
	CodeUserNotFound       Code = "USER_NOT_FOUND"
	CodeInvalidToken       Code = "INVALID_TOKEN"
	CodeUnauthorized       Code = "UNAUTHORIZED"

	// OTP
	CodeOTPExpired  Code = "OTP_EXPIRED"
	CodeMaxAttempts Code = "MAX_ATTEMPTS"
	CodeInvalidOTP  Code = "INVALID_OTP"

	// Household
	CodeAlreadyHead       Code = "ALREADY_HEAD"
	CodeHouseholdNotFound Code = "HOUSEHOLD_NOT_FOUND"
	CodeAccessDenied      Code = "ACCESS_DENIED"
	CodeAlreadyMember     Code = "ALREADY_MEMBER"
	CodeInviteNotFound    Code = "INVITE_NOT_FOUND"
	CodeInviteAlreadyUsed Code = "INVITE_ALREADY_USED"
	CodeInviteExpired     Code = "INVITE_EXPIRED"
	CodeUseTransfer       Code = "USE_TRANSFER"
	CodeCannotRemoveSelf  Code = "CANNOT_REMOVE_SELF"
	CodeNotAMember        Code = "NOT_A_MEMBER"
	CodeCannotBeHead      Code = "CANNOT_BE_HEAD"
	CodeHeadCannotLeave   Code = "HEAD_CANNOT_LEAVE"
	CodeInvalidRole       Code = "INVALID_ROLE"

	// Service requests
	CodeAlreadyHandled Code = "ALREADY_HANDLED"
	CodeInvalidStatus  Code = "INVALID_STATUS"
)

// Kind maps a code to its kind. Unknown codes are internal.
func (c Code) Kind() Kind {
	switch c {
	case CodeValidation, CodeMethod, CodeInvalidPassword, CodeOTPExpired, CodeMaxAttempts, CodeInvalidOTP,
		CodeAlreadyHead, CodeAlreadyMember, CodeInviteAlreadyUsed, CodeInviteExpired,
		CodeUseTransfer, CodeCannotRemoveSelf, CodeNotAMember, CodeCannotBeHead,
		CodeHeadCannotLeave, CodeInvalidRole, CodeInvalidStatus:
		return KindValidation
	case CodeNotFound, CodeUserNotFound, CodeHouseholdNotFound, CodeInviteNotFound:
		return KindNotFound
	case CodeEmailExists, CodePhoneExists, CodeAlreadyHandled:
		return KindConflict
	case CodeInvalidCredentials, CodeAccountLocked, CodeAccountSuspended, CodeEmailNotVerified,
		CodePhoneNotVerified, CodeInvalidToken, CodeUnauthorized:
		return KindAuth
	case CodeForbidden, CodeAccessDenied:
		return KindForbidden
	case CodeRateLimit:
		return KindRateLimited
	default:
		return KindInternal
	}
}

// Status maps a code to the HTTP status returned to clients.
// Account-state auth failures carry their own status; everything else follows the kind.
func (c Code) Status() int {
	switch c {
	case CodeAccountLocked:
		return http.StatusLocked
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeMethod:
		return http.StatusMethodNotAllowed
	case CodeAccountSuspended, CodeEmailNotVerified, CodePhoneNotVerified:
		return http.StatusForbidden
	}
	switch c.Kind() {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
