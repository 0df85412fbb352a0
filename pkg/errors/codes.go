package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are namespaced by module prefix: COMMON_ for platform-wide failures,
// FIL_ for the filing assistant domain.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
	ErrCodeInvalidConfig      ErrorCode = "COMMON_017"
)

// Filing Module Error Codes
const (
	ErrCodeStepOutOfRange      ErrorCode = "FIL_001"
	ErrCodeUnknownField        ErrorCode = "FIL_002"
	ErrCodeFieldType           ErrorCode = "FIL_003"
	ErrCodeUploadTooLarge      ErrorCode = "FIL_004"
	ErrCodeMediaTypeNotAllowed ErrorCode = "FIL_005"
	ErrCodeInvalidCategory     ErrorCode = "FIL_006"
	ErrCodeUploadEmpty         ErrorCode = "FIL_007"
	ErrCodeSessionNotFound     ErrorCode = "FIL_008"
	ErrCodeApplicationNotFound ErrorCode = "FIL_009"
	ErrCodeCollaboratorFailure ErrorCode = "FIL_010"
	ErrCodeInvalidFilingType   ErrorCode = "FIL_011"
	ErrCodeClaimInvariant      ErrorCode = "FIL_012"
	ErrCodeUnknownDocumentKind ErrorCode = "FIL_013"
)

// Short aliases used at call sites.
const (
	CodeOK             = ErrorCode("OK")
	CodeUnknown        = ErrorCode("UNKNOWN")
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeUnauthorized   = ErrCodeUnauthorized
	CodeForbidden      = ErrCodeForbidden
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented
	CodeInvalidState   = ErrCodeValidation

	CodeDBConnectionError = ErrCodeDatabaseError
	CodeMessageQueueError = ErrCodeExternalService
	CodeStorageError      = ErrCodeExternalService
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeNotImplemented:     http.StatusNotImplemented,
	ErrCodeInvalidConfig:      http.StatusInternalServerError,

	ErrCodeStepOutOfRange:      http.StatusBadRequest,
	ErrCodeUnknownField:        http.StatusBadRequest,
	ErrCodeFieldType:           http.StatusBadRequest,
	ErrCodeUploadTooLarge:      http.StatusRequestEntityTooLarge,
	ErrCodeMediaTypeNotAllowed: http.StatusUnsupportedMediaType,
	ErrCodeInvalidCategory:     http.StatusBadRequest,
	ErrCodeUploadEmpty:         http.StatusBadRequest,
	ErrCodeSessionNotFound:     http.StatusNotFound,
	ErrCodeApplicationNotFound: http.StatusNotFound,
	ErrCodeCollaboratorFailure: http.StatusBadGateway,
	ErrCodeInvalidFilingType:   http.StatusBadRequest,
	ErrCodeClaimInvariant:      http.StatusUnprocessableEntity,
	ErrCodeUnknownDocumentKind: http.StatusBadRequest,
}

// ErrorCodeMessage holds the default user-facing message per code.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization error",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeNotImplemented:     "not implemented",
	ErrCodeInvalidConfig:      "invalid configuration",

	ErrCodeStepOutOfRange:      "step index out of range",
	ErrCodeUnknownField:        "unknown field for filing type",
	ErrCodeFieldType:           "field value has the wrong type",
	ErrCodeUploadTooLarge:      "upload exceeds the size limit",
	ErrCodeMediaTypeNotAllowed: "media type not allowed",
	ErrCodeInvalidCategory:     "upload category not allowed for filing type",
	ErrCodeUploadEmpty:         "upload is empty",
	ErrCodeSessionNotFound:     "filing session not found",
	ErrCodeApplicationNotFound: "application not found",
	ErrCodeCollaboratorFailure: "collaborator unavailable",
	ErrCodeInvalidFilingType:   "invalid filing type",
	ErrCodeClaimInvariant:      "claim structure invalid",
	ErrCodeUnknownDocumentKind: "unknown document kind",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
